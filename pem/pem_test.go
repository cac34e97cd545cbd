// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pem

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// Tests that encoding and decoding round trips, with both line endings.
func TestRoundtrip(t *testing.T) {
	blob := bytes.Repeat([]byte{0x01, 0x02, 0x03}, 40)

	enc := Encode("COSE KEY", blob)
	kind, dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if kind != "COSE KEY" || !bytes.Equal(dec, blob) {
		t.Fatalf("roundtrip mismatch: kind %q, blob %x", kind, dec)
	}
	crlf := bytes.ReplaceAll(enc, []byte("\n"), []byte("\r\n"))
	if _, dec, err = Decode(crlf); err != nil || !bytes.Equal(dec, blob) {
		t.Fatalf("CRLF roundtrip failed: %v", err)
	}
}

// Tests that malformed inputs are rejected with the right error.
func TestDecodeRejects(t *testing.T) {
	valid := string(Encode("PUBLIC KEY", []byte("hello world")))

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"leading space", " " + valid, ErrMalformedHeader},
		{"no footer", strings.Split(valid, "-----END")[0], ErrMalformedFooter},
		{"mismatched footer", strings.Replace(valid, "END PUBLIC", "END PRIVATE", 1), ErrMalformedFooter},
		{"trailing data", valid + "junk", ErrTrailingData},
		{"bad base64", strings.Replace(valid, "aGVs", "a*Vs", 1), ErrMalformedBody},
		{"empty body", "-----BEGIN X-----\n-----END X-----\n", ErrMalformedBody},
	}
	for _, tt := range tests {
		if _, _, err := Decode([]byte(tt.input)); !errors.Is(err, tt.want) {
			t.Errorf("%s: error mismatch: have %v, want %v", tt.name, err, tt.want)
		}
	}
}
