// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aead provides the content encryption ciphers COSE defines: AES-GCM,
// AES-CCM and ChaCha20-Poly1305, all behind the cipher.AEAD interface.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-10
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// GCMNonceSize is the IV length COSE fixes for AES-GCM.
const GCMNonceSize = 12

// ErrOpen is returned when a ciphertext fails authentication.
var ErrOpen = errors.New("aead: message authentication failed")

// NewGCM returns AES-GCM with a 128-bit tag and a 96-bit nonce. The key must
// be 16, 24 or 32 bytes.
func NewGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, GCMNonceSize)
}

// NewChaCha20Poly1305 returns ChaCha20-Poly1305 with a 256-bit key.
func NewChaCha20Poly1305(key []byte) (cipher.AEAD, error) {
	return chacha20poly1305.New(key)
}
