// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package base64ext

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeString(t *testing.T) {
	if b, err := DecodeString("aGVsbG8="); err != nil || string(b) != "hello" {
		t.Fatalf("decode mismatch: %q, %v", b, err)
	}
	if _, err := DecodeString("aGVs\nbG8="); !errors.Is(err, ErrInvalidCharacter) {
		t.Errorf("newline accepted: %v", err)
	}
	if _, err := DecodeString("aGVsbG9="); err == nil {
		t.Errorf("non-canonical padding bits accepted")
	}
}

func TestURLRoundtrip(t *testing.T) {
	blob := []byte{0xfb, 0xff, 0x00, 0x3e}
	enc := EncodeURLToString(blob)
	if enc != "-_8APg" {
		t.Fatalf("encoding mismatch: have %s", enc)
	}
	dec, err := DecodeURLString(enc)
	if err != nil || !bytes.Equal(dec, blob) {
		t.Fatalf("decode mismatch: %x, %v", dec, err)
	}
}
