// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"github.com/dark-bio/cose-go/cbor"
	"github.com/dark-bio/cose-go/mac"
)

// MAC is a message authenticated with a key conveyed to one or more
// recipients, RFC 8152 Section 6.1.
//
//	COSE_Mac = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    tag:         bstr,
//	    recipients:  [+COSE_recipient]
//	]
type MAC struct {
	envelope

	recipients []*Recipient
	tag        []byte
}

// NewMAC creates an empty tagged MAC message.
func NewMAC() *MAC {
	return new(MAC)
}

// Type implements Message.
func (m *MAC) Type() MessageType {
	return MessageMAC
}

// AddRecipient adds a recipient the MAC key is conveyed to.
func (m *MAC) AddRecipient(r *Recipient) {
	m.recipients = append(m.recipients, r)
}

// Recipients returns the top level recipients.
func (m *MAC) Recipients() []*Recipient {
	return m.recipients
}

// Recipient returns the i-th top level recipient, nil if out of range.
func (m *MAC) Recipient(i int) *Recipient {
	if i < 0 || i >= len(m.recipients) {
		return nil
	}
	return m.recipients[i]
}

// Tag returns the computed or decoded authentication tag.
func (m *MAC) Tag() []byte {
	return m.tag
}

// Create establishes the MAC key through the recipients and computes the tag
// over the content.
func (m *MAC) Create() error {
	alg, err := m.algorithm()
	if err != nil {
		return err
	}
	if alg.Family() != FamilyMAC {
		return ErrUnsupportedMAC
	}
	if m.content == nil {
		return ErrNoContent
	}
	key, err := contentKey(alg, m.recipients)
	if err != nil {
		return err
	}
	tag, err := m.authenticate(contextMAC, alg, key)
	if err != nil {
		return err
	}
	m.tag = tag
	return nil
}

// Validate recovers the MAC key through the given recipient, which may be
// nested at any depth, and checks the tag. A tag that does not match returns
// false without error.
func (m *MAC) Validate(r *Recipient) (bool, error) {
	if m.content == nil {
		return false, ErrNoContent
	}
	if m.tag == nil {
		return false, ErrNotComputed
	}
	alg, err := m.algorithm()
	if err != nil {
		return false, err
	}
	if alg.Family() != FamilyMAC {
		return false, ErrUnsupportedMAC
	}
	key, err := recoverKey(alg, m.recipients, r)
	if err != nil {
		return false, err
	}
	tag, err := m.authenticate(contextMAC, alg, key)
	if err != nil {
		return false, err
	}
	return mac.Equal(tag, m.tag), nil
}

// MarshalCBOR implements cbor.Marshaler.
func (m *MAC) MarshalCBOR() ([]byte, error) {
	if m.tag == nil {
		return nil, ErrNotComputed
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return nil, err
	}
	recipients, err := encodeRecipients(m.recipients)
	if err != nil {
		return nil, err
	}
	return m.encode(MessageMAC, []any{prot, m.unprotectedMap(), m.wire(m.content), m.tag, recipients})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *MAC) UnmarshalCBOR(data []byte) error {
	items, err := m.decode(MessageMAC, data, 5)
	if err != nil {
		return err
	}
	content, detached, err := decodeContent("MAC", items[2])
	if err != nil {
		return err
	}
	tag, ok := cbor.Bytes(items[3])
	if !ok {
		return structureError("MAC")
	}
	recipients, err := decodeRecipients(items[4])
	if err != nil {
		return err
	}
	m.content, m.Detached, m.tag, m.recipients = content, detached, tag, recipients
	return nil
}
