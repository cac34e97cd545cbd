// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"log/slog"
	"slices"

	"github.com/dark-bio/cose-go/cbor"
)

// countersigners holds the counter signatures attached to a signed object.
type countersigners struct {
	list []*CounterSign
	one  *CounterSign1
}

// AddCounterSignature attaches a counter signer, computed whenever the owner
// is signed.
func (c *countersigners) AddCounterSignature(cs *CounterSign) {
	c.list = append(c.list, cs)
}

// CounterSignatures returns the attached or decoded counter signers.
func (c *countersigners) CounterSignatures() []*CounterSign {
	return slices.Clone(c.list)
}

// SetCounterSign1 attaches the abbreviated counter signer, replacing any
// previous one.
func (c *countersigners) SetCounterSign1(cs *CounterSign1) {
	c.one = cs
}

// CounterSign1 returns the attached or decoded abbreviated counter signer.
func (c *countersigners) CounterSign1() *CounterSign1 {
	return c.one
}

// countersign computes every attached counter signature over the owner's
// protected headers and signature and stores them in its unprotected headers:
// a single counter signature directly, several as an array.
func (c *countersigners) countersign(attrs *Attributes, bodyProt, bodySig []byte) error {
	if len(c.list) > 0 {
		items := make([]any, 0, len(c.list))
		for _, cs := range c.list {
			if err := cs.Sign(bodyProt, bodySig); err != nil {
				return err
			}
			item, err := cs.items()
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		var value any = items
		if len(items) == 1 {
			value = items[0]
		}
		if err := attrs.Add(HeaderCounterSignature, value, Unprotected); err != nil {
			return err
		}
	}
	if c.one != nil {
		if err := c.one.Sign(bodyProt, bodySig); err != nil {
			return err
		}
		if err := attrs.Add(HeaderCounterSignature0, c.one.signature, Unprotected); err != nil {
			return err
		}
	}
	return nil
}

// restore rebuilds the counter signers from decoded headers.
func (c *countersigners) restore(attrs *Attributes) error {
	c.list, c.one = nil, nil

	if v, ok := attrs.Find(HeaderCounterSignature); ok {
		items, ok := cbor.Array(v)
		if !ok || len(items) == 0 {
			return structureError("CounterSignature")
		}
		// A single counter signature starts with its protected byte string
		if _, single := items[0].([]byte); single {
			items = []any{items}
		}
		for _, item := range items {
			cs := NewCounterSign()
			if err := cs.decode("CounterSignature", item); err != nil {
				return err
			}
			c.list = append(c.list, cs)
		}
		slog.Debug("decoded counter signatures", "count", len(c.list))
	}
	if v, ok := attrs.Find(HeaderCounterSignature0); ok {
		sig, ok := cbor.Bytes(v)
		if !ok {
			return structureError("CounterSignature0")
		}
		c.one = &CounterSign1{signature: sig}
		slog.Debug("decoded abbreviated counter signature")
	}
	return nil
}

// CounterSign is a full counter signature, RFC 8152 Section 4.5. It has the
// shape of a Signer, but signs the countersigned object's protected headers
// and signature instead of a payload.
type CounterSign struct {
	Signer
}

// NewCounterSign creates a counter signer without headers or key.
func NewCounterSign() *CounterSign {
	return new(CounterSign)
}

// Sign computes the counter signature over the countersigned object's
// protected headers and signature.
func (cs *CounterSign) Sign(bodyProt, bodySig []byte) error {
	return cs.sign(contextCounterSignature, bodyProt, nil, bodySig)
}

// Validate checks the counter signature with the counter signer's key.
func (cs *CounterSign) Validate(bodyProt, bodySig []byte) (bool, error) {
	return cs.verify(contextCounterSignature, bodyProt, nil, bodySig, cs.key)
}

// CounterSign1 is an abbreviated counter signature: only the raw signature
// bytes travel, the algorithm is agreed out of band. It therefore carries no
// protected or unprotected headers; the algorithm comes from the do-not-send
// headers or from the key.
type CounterSign1 struct {
	Attributes

	key       *Key
	signature []byte
}

// NewCounterSign1 creates an abbreviated counter signer without key.
func NewCounterSign1() *CounterSign1 {
	return new(CounterSign1)
}

// SetKey sets the signing or verification key.
func (cs *CounterSign1) SetKey(key *Key) {
	cs.key = key
}

// Key returns the key set on the counter signer.
func (cs *CounterSign1) Key() *Key {
	return cs.key
}

// Signature returns the computed or decoded signature.
func (cs *CounterSign1) Signature() []byte {
	return cs.signature
}

// signingAlgorithm resolves the algorithm from the do-not-send headers, then
// from the key.
func (cs *CounterSign1) signingAlgorithm() (Algorithm, error) {
	if v, ok := cs.FindIn(HeaderAlgorithm, DoNotSend); ok {
		return ResolveAlgorithm(v, true)
	}
	if cs.key != nil {
		if alg, ok := cs.key.Algorithm(); ok {
			return alg, nil
		}
	}
	return 0, ErrNoAlgorithm
}

// checkHeaders fails if anything besides do-not-send headers is set.
func (cs *CounterSign1) checkHeaders() error {
	if len(cs.protected) > 0 || len(cs.unprotected) > 0 {
		return ErrCounterSign1Attributes
	}
	return nil
}

// Sign computes the abbreviated counter signature over the countersigned
// object's protected headers and signature.
func (cs *CounterSign1) Sign(bodyProt, bodySig []byte) error {
	if err := cs.checkHeaders(); err != nil {
		return err
	}
	alg, err := cs.signingAlgorithm()
	if err != nil {
		return err
	}
	tbs := bodyContext(contextCounterSignature0, bodyProt, cs.externalAADOr(nil), bodySig)
	sig, err := signBytes(alg, cs.key, tbs)
	if err != nil {
		return err
	}
	cs.signature = sig
	return nil
}

// Validate checks the abbreviated counter signature with the counter signer's
// key.
func (cs *CounterSign1) Validate(bodyProt, bodySig []byte) (bool, error) {
	if cs.signature == nil {
		return false, ErrNotComputed
	}
	alg, err := cs.signingAlgorithm()
	if err != nil {
		return false, err
	}
	tbs := bodyContext(contextCounterSignature0, bodyProt, cs.externalAADOr(nil), bodySig)
	return verifyBytes(alg, cs.key, tbs, cs.signature)
}

// MarshalCBOR implements cbor.Marshaler, emitting the bare signature.
func (cs *CounterSign1) MarshalCBOR() ([]byte, error) {
	if err := cs.checkHeaders(); err != nil {
		return nil, err
	}
	if cs.signature == nil {
		return nil, ErrNotComputed
	}
	return cbor.MustMarshal(cs.signature), nil
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (cs *CounterSign1) UnmarshalCBOR(data []byte) error {
	v, err := cbor.Decode(data)
	if err != nil {
		return malformed(err)
	}
	sig, ok := cbor.Bytes(v)
	if !ok {
		return structureError("CounterSignature0")
	}
	cs.signature = sig
	return nil
}
