// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"maps"

	"github.com/dark-bio/cose-go/cbor"
)

// Visibility selects which of the three attribute classes a header lives in.
type Visibility int

const (
	// Protected attributes are serialized into the protected byte string and
	// bound into every signature, tag and ciphertext.
	Protected Visibility = 1

	// Unprotected attributes are serialized but not integrity protected.
	Unprotected Visibility = 2

	// DoNotSend attributes are never serialized; they stage values such as an
	// out of band sender key for a computation.
	DoNotSend Visibility = 4
)

// Common header labels, RFC 8152 Section 3.1.
const (
	HeaderAlgorithm         int64 = 1
	HeaderCritical          int64 = 2
	HeaderContentType       int64 = 3
	HeaderKeyID             int64 = 4
	HeaderIV                int64 = 5
	HeaderPartialIV         int64 = 6
	HeaderCounterSignature  int64 = 7
	HeaderCounterSignature0 int64 = 9
)

// Key agreement header labels, RFC 8152 Sections 11 and 12.
const (
	HeaderEphemeralKey   int64 = -1
	HeaderStaticKey      int64 = -2
	HeaderStaticKeyID    int64 = -3
	HeaderSalt           int64 = -20
	HeaderPartyUIdentity int64 = -21
	HeaderPartyUNonce    int64 = -22
	HeaderPartyUOther    int64 = -23
	HeaderPartyVIdentity int64 = -24
	HeaderPartyVNonce    int64 = -25
	HeaderPartyVOther    int64 = -26
)

// Attributes holds the protected, unprotected and do-not-send headers of a
// message or of one of its parties, along with the external additional data.
//
// Once the owner computed a signature, tag or ciphertext (or was decoded from
// the wire) the protected headers are frozen: the serialized bytes are kept
// verbatim and every attempt to change them fails with ErrProtectedMutation.
//
// The zero value is ready to use. Attributes are not safe for concurrent
// mutation.
type Attributes struct {
	protected   map[any]any
	unprotected map[any]any
	dontSend    map[any]any

	frozen      []byte // protected encoding, non-nil once bound
	externalAAD []byte // nil until set
}

// normalizeLabel converts any Go integer kind to int64 and passes strings
// through, rejecting every other label type.
func normalizeLabel(label any) (any, error) {
	if s, ok := label.(string); ok {
		return s, nil
	}
	if n, ok := cbor.Int(label); ok {
		return n, nil
	}
	return nil, ErrInvalidLabel
}

// class returns the map backing a visibility, creating it if asked to.
func (a *Attributes) class(where Visibility, create bool) (map[any]any, error) {
	var m *map[any]any
	switch where {
	case Protected:
		m = &a.protected
	case Unprotected:
		m = &a.unprotected
	case DoNotSend:
		m = &a.dontSend
	default:
		return nil, ErrInvalidVisibility
	}
	if *m == nil && create {
		*m = make(map[any]any)
	}
	return *m, nil
}

// Add stores value under label in the given class, removing the label from the
// other two classes.
func (a *Attributes) Add(label, value any, where Visibility) error {
	key, err := normalizeLabel(label)
	if err != nil {
		return err
	}
	if _, err := a.class(where, false); err != nil {
		return err
	}
	if a.frozen != nil {
		if where == Protected {
			return ErrProtectedMutation
		}
		if _, ok := a.protected[key]; ok {
			return ErrProtectedMutation
		}
	}
	delete(a.protected, key)
	delete(a.unprotected, key)
	delete(a.dontSend, key)

	m, _ := a.class(where, true)
	m[key] = value
	return nil
}

// Find looks up a label in the protected, then the unprotected headers. The
// do-not-send class is never searched.
func (a *Attributes) Find(label any) (any, bool) {
	key, err := normalizeLabel(label)
	if err != nil {
		return nil, false
	}
	if v, ok := a.protected[key]; ok {
		return v, true
	}
	v, ok := a.unprotected[key]
	return v, ok
}

// FindIn looks up a label in exactly one class.
func (a *Attributes) FindIn(label any, where Visibility) (any, bool) {
	key, err := normalizeLabel(label)
	if err != nil {
		return nil, false
	}
	m, err := a.class(where, false)
	if err != nil {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// Remove deletes a label from whichever class holds it.
func (a *Attributes) Remove(label any) error {
	key, err := normalizeLabel(label)
	if err != nil {
		return err
	}
	if _, ok := a.protected[key]; ok && a.frozen != nil {
		return ErrProtectedMutation
	}
	delete(a.protected, key)
	delete(a.unprotected, key)
	delete(a.dontSend, key)
	return nil
}

// Protected returns a copy of the protected headers.
func (a *Attributes) Protected() map[any]any {
	return maps.Clone(a.protected)
}

// Unprotected returns a copy of the unprotected headers.
func (a *Attributes) Unprotected() map[any]any {
	return maps.Clone(a.unprotected)
}

// SetExternalAAD sets the application supplied data bound into the context
// structures alongside the protected headers.
func (a *Attributes) SetExternalAAD(aad []byte) {
	a.externalAAD = append([]byte{}, aad...)
}

// ExternalAAD returns the external additional data, an empty byte string if
// none was set.
func (a *Attributes) ExternalAAD() []byte {
	if a.externalAAD == nil {
		return []byte{}
	}
	return a.externalAAD
}

// externalAADOr returns the own external data if set, the fallback otherwise.
func (a *Attributes) externalAADOr(fallback []byte) []byte {
	if a.externalAAD != nil {
		return a.externalAAD
	}
	if fallback == nil {
		return []byte{}
	}
	return fallback
}

// Frozen reports whether the protected headers are bound.
func (a *Attributes) Frozen() bool {
	return a.frozen != nil
}

// protectedBytes returns the serialized protected headers: the frozen bytes if
// bound, an empty byte string for an empty map, the encoding otherwise.
func (a *Attributes) protectedBytes() ([]byte, error) {
	if a.frozen != nil {
		return a.frozen, nil
	}
	if len(a.protected) == 0 {
		return []byte{}, nil
	}
	data, err := cbor.Marshal(a.protected)
	if err != nil {
		return nil, malformed(err)
	}
	return data, nil
}

// freeze binds the protected headers to the given encoding.
func (a *Attributes) freeze(encoded []byte) {
	a.frozen = append([]byte{}, encoded...)
}

// unprotectedMap returns the unprotected headers for encoding, never nil so
// that it serializes as a map.
func (a *Attributes) unprotectedMap() map[any]any {
	if a.unprotected == nil {
		return map[any]any{}
	}
	return a.unprotected
}

// algorithm resolves the algorithm header.
func (a *Attributes) algorithm() (Algorithm, error) {
	v, ok := a.Find(HeaderAlgorithm)
	return ResolveAlgorithm(v, ok)
}

// bytesHeader returns a byte string header from the protected or unprotected
// class. A present value of another type is reported as not found.
func (a *Attributes) bytesHeader(label int64) []byte {
	v, ok := a.Find(label)
	if !ok {
		return nil
	}
	b, _ := cbor.Bytes(v)
	return b
}

// decodeHeaders restores the attributes from the first two elements of a wire
// array and freezes the protected bytes as received.
func (a *Attributes) decodeHeaders(variant string, prot, unprot any) error {
	protBytes, ok := cbor.Bytes(prot)
	if !ok {
		return structureError(variant)
	}
	unprotMap, ok := cbor.Map(unprot)
	if !ok {
		return structureError(variant)
	}
	protMap := map[any]any{}
	if len(protBytes) > 0 {
		v, err := cbor.Decode(protBytes)
		if err != nil {
			return malformed(err)
		}
		if protMap, ok = cbor.Map(v); !ok {
			return structureError(variant)
		}
	}
	a.protected, a.unprotected = make(map[any]any), make(map[any]any)
	for label, value := range protMap {
		key, err := normalizeLabel(label)
		if err != nil {
			return err
		}
		a.protected[key] = value
	}
	for label, value := range unprotMap {
		key, err := normalizeLabel(label)
		if err != nil {
			return err
		}
		if _, dup := a.protected[key]; dup {
			return structureError(variant)
		}
		a.unprotected[key] = value
	}
	a.freeze(protBytes)
	return nil
}
