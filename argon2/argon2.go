// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package argon2 provides Argon2id derivation of symmetric COSE keys from
// passwords.
//
// https://datatracker.ietf.org/doc/html/rfc9106
package argon2

import (
	"errors"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters. Memory is in KiB.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultParams is the second recommended option of RFC 9106 Section 4, for
// environments where 2 GiB of memory is not available.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 4}

// MinSaltSize is the shortest salt accepted by DeriveKey.
const MinSaltSize = 16

// Key derives a key from the password, salt, and cost parameters using Argon2id,
// returning a byte slice of the requested length, that can be used as a
// cryptographic key. The CPU cost and parallelism degree must be greater than
// zero.
//
// The time parameter specifies the number of passes over the memory and the
// memory parameter specifies the size of the memory in KiB.
func Key(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte {
	return argon2.IDKey(password, salt, time, memory, threads, keyLen)
}

// DeriveKey derives a symmetric key of size bytes (16, 24, 32 or 64 for the
// COSE AEAD and MAC algorithms) from a password with the given parameters.
func DeriveKey(password, salt []byte, size int, params Params) ([]byte, error) {
	if len(salt) < MinSaltSize {
		return nil, errors.New("argon2: salt too short")
	}
	if size <= 0 || size > 1024 {
		return nil, errors.New("argon2: invalid key size")
	}
	if params.Time == 0 || params.Threads == 0 || params.Memory < 8*uint32(params.Threads) {
		return nil, errors.New("argon2: invalid cost parameters")
	}
	return Key(password, salt, params.Time, params.Memory, params.Threads, uint32(size)), nil
}
