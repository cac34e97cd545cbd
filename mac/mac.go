// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mac provides the message authentication codes COSE defines: HMAC
// with an optionally truncated tag, and AES-CBC-MAC.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-9
package mac

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"hash"
)

// NewHMAC returns an HMAC keyed with key whose tag is truncated to tagSize
// bytes. A tagSize of zero keeps the full digest.
func NewHMAC(h crypto.Hash, key []byte, tagSize int) (hash.Hash, error) {
	if !h.Available() {
		return nil, errors.New("mac: hash function unavailable")
	}
	inner := hmac.New(h.New, key)
	if tagSize == 0 || tagSize == inner.Size() {
		return inner, nil
	}
	if tagSize < 0 || tagSize > inner.Size() {
		return nil, errors.New("mac: invalid tag size")
	}
	return &truncated{Hash: inner, size: tagSize}, nil
}

// truncated cuts the digest of the wrapped hash down to size bytes.
type truncated struct {
	hash.Hash
	size int
}

func (t *truncated) Size() int { return t.size }

func (t *truncated) Sum(b []byte) []byte {
	full := t.Hash.Sum(nil)
	return append(b, full[:t.size]...)
}

// NewCBCMAC returns an AES-CBC-MAC with a zero IV, zero padding of the final
// block and a tag of tagSize bytes (at most one block).
func NewCBCMAC(key []byte, tagSize int) (hash.Hash, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if tagSize <= 0 || tagSize > block.BlockSize() {
		return nil, errors.New("mac: invalid tag size")
	}
	return &cbcMAC{
		block: block,
		size:  tagSize,
		state: make([]byte, aes.BlockSize),
	}, nil
}

// cbcMAC chains every full block through the cipher as it is written.
type cbcMAC struct {
	block cipher.Block
	size  int

	state []byte
	pos   int
	dirty bool // pending bytes in state since the last encryption
}

func (m *cbcMAC) Write(p []byte) (int, error) {
	for _, b := range p {
		m.state[m.pos] ^= b
		m.pos++
		m.dirty = true
		if m.pos == aes.BlockSize {
			m.block.Encrypt(m.state, m.state)
			m.pos = 0
			m.dirty = false
		}
	}
	return len(p), nil
}

func (m *cbcMAC) Sum(b []byte) []byte {
	tag := append([]byte{}, m.state...)
	if m.dirty {
		m.block.Encrypt(tag, tag) // zero padding leaves the tail as is
	}
	return append(b, tag[:m.size]...)
}

func (m *cbcMAC) Reset() {
	clear(m.state)
	m.pos = 0
	m.dirty = false
}

func (m *cbcMAC) Size() int { return m.size }

func (m *cbcMAC) BlockSize() int { return aes.BlockSize }

// Equal compares two tags in constant time.
func Equal(a, b []byte) bool {
	return hmac.Equal(a, b)
}
