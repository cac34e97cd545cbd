// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keywrap implements the AES key wrap algorithm COSE recipients use to
// transport content keys.
//
// https://datatracker.ietf.org/doc/html/rfc3394
package keywrap

import (
	"crypto/aes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

// defaultIV is the RFC 3394 Section 2.2.3.1 initial value.
var defaultIV = []byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

var (
	// ErrInvalidLength is returned for key data that is not a whole number
	// of at least two 64-bit blocks.
	ErrInvalidLength = errors.New("keywrap: invalid key data length")

	// ErrUnwrapFailed is returned when the integrity check fails.
	ErrUnwrapFailed = errors.New("keywrap: integrity check failed")
)

// Wrap encrypts the key data with the key encryption key.
func Wrap(kek, plain []byte) ([]byte, error) {
	if len(plain)%8 != 0 || len(plain) < 16 {
		return nil, ErrInvalidLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	n := len(plain) / 8

	out := make([]byte, 8+len(plain))
	copy(out, defaultIV)
	copy(out[8:], plain)

	var buf [aes.BlockSize]byte
	for j := 0; j < 6; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], out[:8])
			copy(buf[8:], out[8*i:8*i+8])
			block.Encrypt(buf[:], buf[:])

			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(out[:8], binary.BigEndian.Uint64(buf[:8])^t)
			copy(out[8*i:8*i+8], buf[8:])
		}
	}
	return out, nil
}

// Unwrap decrypts wrapped key data and checks its integrity.
func Unwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 24 {
		return nil, ErrInvalidLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	n := len(wrapped)/8 - 1

	out := make([]byte, len(wrapped))
	copy(out, wrapped)

	var buf [aes.BlockSize]byte
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(buf[:8], binary.BigEndian.Uint64(out[:8])^t)
			copy(buf[8:], out[8*i:8*i+8])
			block.Decrypt(buf[:], buf[:])

			copy(out[:8], buf[:8])
			copy(out[8*i:8*i+8], buf[8:])
		}
	}
	if subtle.ConstantTimeCompare(out[:8], defaultIV) != 1 {
		return nil, ErrUnwrapFailed
	}
	return out[8:], nil
}
