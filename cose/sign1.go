// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"errors"

	"github.com/dark-bio/cose-go/cbor"
)

// Sign1 is a single signer message, RFC 8152 Section 4.2.
//
//	COSE_Sign1 = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    signature:   bstr
//	]
type Sign1 struct {
	envelope
	countersigners

	signature []byte
}

// NewSign1 creates an empty tagged Sign1 message.
func NewSign1() *Sign1 {
	return new(Sign1)
}

// Type implements Message.
func (m *Sign1) Type() MessageType {
	return MessageSign1
}

// Signature returns the computed or decoded signature.
func (m *Sign1) Signature() []byte {
	return m.signature
}

// Sign signs the content with the key. If the message declares no algorithm
// yet, the one the key is restricted to is added to the protected headers.
func (m *Sign1) Sign(key *Key) error {
	if m.content == nil {
		return ErrNoContent
	}
	alg, err := m.algorithm()
	if errors.Is(err, ErrNoAlgorithm) && key != nil && !m.Frozen() {
		if have, ok := key.Algorithm(); ok {
			if err = m.Add(HeaderAlgorithm, int64(have), Protected); err == nil {
				alg = have
			}
		}
	}
	if err != nil {
		return err
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return err
	}
	tbs := bodyContext(contextSignature1, prot, m.ExternalAAD(), m.content)
	sig, err := signBytes(alg, key, tbs)
	if err != nil {
		return err
	}
	m.freeze(prot)
	m.signature = sig
	return m.countersign(&m.Attributes, prot, sig)
}

// Verify checks the signature with the key. A signature that does not match
// returns false without error.
func (m *Sign1) Verify(key *Key) (bool, error) {
	if m.content == nil {
		return false, ErrNoContent
	}
	if m.signature == nil {
		return false, ErrNotComputed
	}
	alg, err := m.algorithm()
	if err != nil {
		return false, err
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return false, err
	}
	tbs := bodyContext(contextSignature1, prot, m.ExternalAAD(), m.content)
	return verifyBytes(alg, key, tbs, m.signature)
}

// ValidateCounterSignature checks a counter signature of the message with the
// counter signer's key.
func (m *Sign1) ValidateCounterSignature(cs *CounterSign) (bool, error) {
	prot, err := m.protectedBytes()
	if err != nil {
		return false, err
	}
	return cs.Validate(prot, m.signature)
}

// ValidateCounterSign1 checks the abbreviated counter signature of the message
// with the counter signer's key.
func (m *Sign1) ValidateCounterSign1(cs *CounterSign1) (bool, error) {
	prot, err := m.protectedBytes()
	if err != nil {
		return false, err
	}
	return cs.Validate(prot, m.signature)
}

// MarshalCBOR implements cbor.Marshaler.
func (m *Sign1) MarshalCBOR() ([]byte, error) {
	if m.signature == nil {
		return nil, ErrNotComputed
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return nil, err
	}
	return m.encode(MessageSign1, []any{prot, m.unprotectedMap(), m.wire(m.content), m.signature})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *Sign1) UnmarshalCBOR(data []byte) error {
	items, err := m.decode(MessageSign1, data, 4)
	if err != nil {
		return err
	}
	content, detached, err := decodeContent("Sign1", items[2])
	if err != nil {
		return err
	}
	sig, ok := cbor.Bytes(items[3])
	if !ok {
		return structureError("Sign1")
	}
	m.content, m.Detached, m.signature = content, detached, sig
	return m.restore(&m.Attributes)
}
