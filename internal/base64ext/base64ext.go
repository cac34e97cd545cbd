// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package base64ext provides strict base64 decoding that rejects whitespace,
// used for PEM bodies and for keys passed on the command line.
package base64ext

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidCharacter is returned when the input contains \r or \n.
var ErrInvalidCharacter = errors.New("base64ext: invalid character")

// DecodeString decodes a padded base64 string using strict decoding and
// rejects any input containing \r or \n characters.
func DecodeString(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, ErrInvalidCharacter
	}
	return base64.StdEncoding.Strict().DecodeString(s)
}

// DecodeURLString decodes an unpadded base64url string, the form keys and
// identifiers take in JSON and in URLs, rejecting any \r or \n characters.
func DecodeURLString(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, ErrInvalidCharacter
	}
	return base64.RawURLEncoding.Strict().DecodeString(s)
}

// EncodeURLToString encodes b as unpadded base64url.
func EncodeURLToString(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
