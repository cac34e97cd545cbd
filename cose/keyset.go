// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import "slices"

// KeySet is an ordered collection of keys. Mutation is not safe for concurrent
// readers; filtered projections are independent sets.
type KeySet struct {
	keys []*Key
}

// NewKeySet creates a key set holding the given keys in order.
func NewKeySet(keys ...*Key) *KeySet {
	return &KeySet{keys: slices.Clone(keys)}
}

// Add appends a key to the set.
func (ks *KeySet) Add(key *Key) {
	ks.keys = append(ks.keys, key)
}

// Remove drops a key from the set by identity, reporting whether it was held.
func (ks *KeySet) Remove(key *Key) bool {
	i := slices.Index(ks.keys, key)
	if i < 0 {
		return false
	}
	ks.keys = slices.Delete(ks.keys, i, i+1)
	return true
}

// Keys returns the keys in order.
func (ks *KeySet) Keys() []*Key {
	return slices.Clone(ks.keys)
}

// Len returns the number of keys in the set.
func (ks *KeySet) Len() int {
	return len(ks.keys)
}

// Filter returns a new set with the keys accepted by keep, in order.
func (ks *KeySet) Filter(keep func(*Key) bool) *KeySet {
	out := new(KeySet)
	for _, key := range ks.keys {
		if keep(key) {
			out.keys = append(out.keys, key)
		}
	}
	return out
}

// FindByKeyID returns a new set with the keys whose key id equals kid.
func (ks *KeySet) FindByKeyID(kid []byte) *KeySet {
	return ks.Filter(func(key *Key) bool {
		return kid != nil && key.HasKeyID(kid)
	})
}

// SelectVerifiers returns the candidate keys for verifying a signature made
// with alg by a signer announcing kid. Keys bound to another algorithm and keys
// whose key_ops lack verify are excluded. Keys with a matching key id come
// first, then the rest, each group in set order.
func (ks *KeySet) SelectVerifiers(alg Algorithm, kid []byte) []*Key {
	var matched, rest []*Key
	for _, key := range ks.keys {
		if have, ok := key.Algorithm(); ok && have != alg {
			continue
		}
		if !key.allows(KeyOpVerify) {
			continue
		}
		if kid != nil && key.HasKeyID(kid) {
			matched = append(matched, key)
		} else {
			rest = append(rest, key)
		}
	}
	return append(matched, rest...)
}
