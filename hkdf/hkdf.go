// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hkdf provides the HMAC based key derivation COSE uses to turn shared
// secrets into content encryption keys.
//
// https://datatracker.ietf.org/doc/html/rfc5869
// https://datatracker.ietf.org/doc/html/rfc8152#section-11.1
package hkdf

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key derives a key of length n from the secret, salt, and info using
// HKDF-SHA256. The salt and info may be nil or empty.
//
// Panics if n exceeds the maximum output length for SHA-256 HKDF, which is
// 255 * 32 = 8160 bytes.
func Key(secret, salt, info []byte, n int) []byte {
	return KeyWithHash(crypto.SHA256, secret, salt, info, n)
}

// KeyWithHash derives a key of length n from the secret, salt, and info using
// HKDF instantiated with the given hash.
//
// Panics if n exceeds 255 times the hash size.
func KeyWithHash(h crypto.Hash, secret, salt, info []byte, n int) []byte {
	r := hkdf.New(h.New, secret, salt, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		panic("hkdf: " + err.Error())
	}
	return out
}
