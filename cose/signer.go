// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import "github.com/dark-bio/cose-go/cbor"

// Signer is one COSE_Signature of a Sign message: its own headers, the key it
// signs with and the resulting signature. A signer may carry counter
// signatures over its own signature.
//
//	COSE_Signature = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    signature:   bstr
//	]
type Signer struct {
	Attributes
	countersigners

	key       *Key
	signature []byte
}

// NewSigner creates a signer without headers or key.
func NewSigner() *Signer {
	return new(Signer)
}

// SetKey sets the signing or verification key. Unless already present and as
// long as the headers are not bound yet, the key's algorithm is copied into
// the protected headers and its key id into the unprotected ones.
func (s *Signer) SetKey(key *Key) error {
	s.key = key
	if key == nil || s.Frozen() {
		return nil
	}
	if _, ok := s.Find(HeaderAlgorithm); !ok {
		if alg, ok := key.Algorithm(); ok {
			if err := s.Add(HeaderAlgorithm, int64(alg), Protected); err != nil {
				return err
			}
		}
	}
	if _, ok := s.Find(HeaderKeyID); !ok {
		if kid := key.KeyID(); kid != nil {
			return s.Add(HeaderKeyID, kid, Unprotected)
		}
	}
	return nil
}

// ClearKey drops the key reference, for example before handing a signed
// message to another party.
func (s *Signer) ClearKey() {
	s.key = nil
}

// Key returns the key set on the signer.
func (s *Signer) Key() *Key {
	return s.key
}

// Signature returns the computed or decoded signature.
func (s *Signer) Signature() []byte {
	return s.signature
}

// ValidateCounterSignature checks a counter signature of this signer with the
// counter signer's key.
func (s *Signer) ValidateCounterSignature(cs *CounterSign) (bool, error) {
	prot, err := s.protectedBytes()
	if err != nil {
		return false, err
	}
	return cs.Validate(prot, s.signature)
}

// ValidateCounterSign1 checks the abbreviated counter signature of this signer
// with the counter signer's key.
func (s *Signer) ValidateCounterSign1(cs *CounterSign1) (bool, error) {
	prot, err := s.protectedBytes()
	if err != nil {
		return false, err
	}
	return cs.Validate(prot, s.signature)
}

// sign computes the signature over the Sig_structure built from the body
// protected headers and the payload, then the attached counter signatures.
func (s *Signer) sign(context string, bodyProt, aad, payload []byte) error {
	prot, sig, err := s.compute(context, bodyProt, aad, payload)
	if err != nil {
		return err
	}
	return s.commit(prot, sig)
}

// compute produces the encoded protected headers and the signature without
// modifying the signer.
func (s *Signer) compute(context string, bodyProt, aad, payload []byte) ([]byte, []byte, error) {
	alg, err := s.algorithm()
	if err != nil {
		return nil, nil, err
	}
	prot, err := s.protectedBytes()
	if err != nil {
		return nil, nil, err
	}
	tbs := signatureContext(context, bodyProt, prot, s.externalAADOr(aad), payload)
	sig, err := signBytes(alg, s.key, tbs)
	if err != nil {
		return nil, nil, err
	}
	return prot, sig, nil
}

// commit stores a computed signature, freezing the headers it covers, and
// runs the attached counter signatures over it.
func (s *Signer) commit(prot, sig []byte) error {
	s.freeze(prot)
	s.signature = sig
	return s.countersign(&s.Attributes, prot, sig)
}

// verify checks the signature against the given key.
func (s *Signer) verify(context string, bodyProt, aad, payload []byte, key *Key) (bool, error) {
	if s.signature == nil {
		return false, ErrNotComputed
	}
	alg, err := s.algorithm()
	if err != nil {
		return false, err
	}
	prot, err := s.protectedBytes()
	if err != nil {
		return false, err
	}
	tbs := signatureContext(context, bodyProt, prot, s.externalAADOr(aad), payload)
	return verifyBytes(alg, key, tbs, s.signature)
}

// items returns the wire elements of the signer.
func (s *Signer) items() ([]any, error) {
	if s.signature == nil {
		return nil, ErrNotComputed
	}
	prot, err := s.protectedBytes()
	if err != nil {
		return nil, err
	}
	return []any{prot, s.unprotectedMap(), s.signature}, nil
}

// MarshalCBOR implements cbor.Marshaler.
func (s *Signer) MarshalCBOR() ([]byte, error) {
	items, err := s.items()
	if err != nil {
		return nil, err
	}
	data, err := cbor.Marshal(items)
	if err != nil {
		return nil, malformed(err)
	}
	return data, nil
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (s *Signer) UnmarshalCBOR(data []byte) error {
	v, err := cbor.Decode(data)
	if err != nil {
		return malformed(err)
	}
	return s.decode("Signer", v)
}

// decode restores the signer from its wire elements, including any counter
// signatures carried in the unprotected headers.
func (s *Signer) decode(variant string, v any) error {
	items, ok := cbor.Array(v)
	if !ok || len(items) != 3 {
		return structureError(variant)
	}
	if err := s.decodeHeaders(variant, items[0], items[1]); err != nil {
		return err
	}
	sig, ok := cbor.Bytes(items[2])
	if !ok {
		return structureError(variant)
	}
	s.signature = sig
	return s.restore(&s.Attributes)
}
