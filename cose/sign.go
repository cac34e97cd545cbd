// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/dark-bio/cose-go/cbor"
)

// Sign is a multi signer message, RFC 8152 Section 4.1.
//
//	COSE_Sign = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    signatures:  [+ COSE_Signature]
//	]
type Sign struct {
	envelope

	signers []*Signer
}

// NewSign creates an empty tagged Sign message.
func NewSign() *Sign {
	return new(Sign)
}

// Type implements Message.
func (m *Sign) Type() MessageType {
	return MessageSign
}

// AddSigner appends a signer to the message.
func (m *Sign) AddSigner(s *Signer) {
	m.signers = append(m.signers, s)
}

// Signers returns the signers in order.
func (m *Sign) Signers() []*Signer {
	return slices.Clone(m.signers)
}

// Signer returns the i-th signer, nil if out of range.
func (m *Sign) Signer(i int) *Signer {
	if i < 0 || i >= len(m.signers) {
		return nil
	}
	return m.signers[i]
}

// Sign has every signer sign the content with its own key and algorithm.
func (m *Sign) Sign() error {
	if len(m.signers) == 0 {
		return ErrNoSigners
	}
	if m.content == nil {
		return ErrNoContent
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return err
	}
	// Every signer computes before any is stored, so a failing signer leaves
	// the message and its signers untouched.
	type pending struct{ prot, sig []byte }
	results := make([]pending, len(m.signers))
	for i, s := range m.signers {
		sprot, sig, err := s.compute(contextSignature, prot, m.ExternalAAD(), m.content)
		if err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
		results[i] = pending{sprot, sig}
	}
	for i, s := range m.signers {
		if err := s.commit(results[i].prot, results[i].sig); err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
	}
	m.freeze(prot)
	return nil
}

// Verify checks the signature of one of the message's signers with the key
// set on that signer.
func (m *Sign) Verify(s *Signer) (bool, error) {
	if !slices.Contains(m.signers, s) {
		return false, ErrSignerNotFound
	}
	if m.content == nil {
		return false, ErrNoContent
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return false, err
	}
	return s.verify(contextSignature, prot, m.ExternalAAD(), m.content, s.key)
}

// VerifyWithKeySet checks the signers against candidate keys from the set,
// selected per signer by algorithm, key_ops and key id. With requireAll every
// signer must verify under some key (a message without signers passes);
// otherwise one verifying signer suffices (a message without signers fails).
func (m *Sign) VerifyWithKeySet(ks *KeySet, requireAll bool) (bool, error) {
	if m.content == nil {
		return false, ErrNoContent
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return false, err
	}
	for i, s := range m.signers {
		alg, err := s.algorithm()
		if err != nil {
			if requireAll {
				return false, err
			}
			slog.Debug("skipping signer without a usable algorithm", "signer", i, "error", err)
			continue
		}
		verified := false
		for _, key := range ks.SelectVerifiers(alg, s.bytesHeader(HeaderKeyID)) {
			valid, err := s.verify(contextSignature, prot, m.ExternalAAD(), m.content, key)
			if err != nil {
				slog.Debug("skipping unusable verification key", "signer", i, "alg", alg, "error", err)
				continue
			}
			if valid {
				verified = true
				break
			}
		}
		if requireAll && !verified {
			return false, nil
		}
		if !requireAll && verified {
			return true, nil
		}
	}
	return requireAll, nil
}

// MarshalCBOR implements cbor.Marshaler.
func (m *Sign) MarshalCBOR() ([]byte, error) {
	if len(m.signers) == 0 {
		return nil, ErrNoSigners
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return nil, err
	}
	signers := make([]any, len(m.signers))
	for i, s := range m.signers {
		if signers[i], err = s.items(); err != nil {
			return nil, err
		}
	}
	return m.encode(MessageSign, []any{prot, m.unprotectedMap(), m.wire(m.content), signers})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *Sign) UnmarshalCBOR(data []byte) error {
	items, err := m.decode(MessageSign, data, 4)
	if err != nil {
		return err
	}
	content, detached, err := decodeContent("Sign", items[2])
	if err != nil {
		return err
	}
	list, ok := cbor.Array(items[3])
	if !ok {
		return structureError("Sign")
	}
	signers := make([]*Signer, 0, len(list))
	for _, item := range list {
		s := NewSigner()
		if err := s.decode("Signer", item); err != nil {
			return err
		}
		signers = append(signers, s)
	}
	m.content, m.Detached, m.signers = content, detached, signers
	return nil
}
