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

// MAC0 is a message authenticated with a key both parties already share, RFC
// 8152 Section 6.2.
//
//	COSE_Mac0 = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    tag:         bstr
//	]
type MAC0 struct {
	envelope

	tag []byte
}

// NewMAC0 creates an empty tagged MAC0 message.
func NewMAC0() *MAC0 {
	return new(MAC0)
}

// Type implements Message.
func (m *MAC0) Type() MessageType {
	return MessageMAC0
}

// Tag returns the computed or decoded authentication tag.
func (m *MAC0) Tag() []byte {
	return m.tag
}

// Create computes the tag over the content with the shared key.
func (m *MAC0) Create(key []byte) error {
	alg, err := m.algorithm()
	if err != nil {
		return err
	}
	tag, err := m.authenticate(contextMAC0, alg, key)
	if err != nil {
		return err
	}
	m.tag = tag
	return nil
}

// CreateWithKey computes the tag with a symmetric COSE key.
func (m *MAC0) CreateWithKey(key *Key) error {
	secret, err := symmetricSecret(&m.Attributes, key)
	if err != nil {
		return err
	}
	return m.Create(secret)
}

// Validate recomputes the tag with the shared key and compares it in constant
// time. A tag that does not match returns false without error.
func (m *MAC0) Validate(key []byte) (bool, error) {
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
	tag, err := m.authenticate(contextMAC0, alg, key)
	if err != nil {
		return false, err
	}
	return mac.Equal(tag, m.tag), nil
}

// ValidateWithKey validates the tag with a symmetric COSE key.
func (m *MAC0) ValidateWithKey(key *Key) (bool, error) {
	secret, err := symmetricSecret(&m.Attributes, key)
	if err != nil {
		return false, err
	}
	return m.Validate(secret)
}

// MarshalCBOR implements cbor.Marshaler.
func (m *MAC0) MarshalCBOR() ([]byte, error) {
	if m.tag == nil {
		return nil, ErrNotComputed
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return nil, err
	}
	return m.encode(MessageMAC0, []any{prot, m.unprotectedMap(), m.wire(m.content), m.tag})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *MAC0) UnmarshalCBOR(data []byte) error {
	items, err := m.decode(MessageMAC0, data, 4)
	if err != nil {
		return err
	}
	content, detached, err := decodeContent("MAC0", items[2])
	if err != nil {
		return err
	}
	tag, ok := cbor.Bytes(items[3])
	if !ok {
		return structureError("MAC0")
	}
	m.content, m.Detached, m.tag = content, detached, tag
	return nil
}

