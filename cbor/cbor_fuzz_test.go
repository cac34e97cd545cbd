// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cbor

import (
	"bytes"
	"testing"
)

func FuzzRoundtrip(f *testing.F) {
	f.Add([]byte{0x00})                         // uint 0
	f.Add([]byte{0x20})                         // int -1
	f.Add([]byte{0x60})                         // empty text
	f.Add([]byte{0x40})                         // empty bytes
	f.Add([]byte{0x80})                         // empty array
	f.Add([]byte{0xa0})                         // empty map
	f.Add([]byte{0xf6})                         // null
	f.Add([]byte{0xd2, 0x80})                   // 18([])
	f.Add([]byte{0x65, 'h', 'e', 'l', 'l', 'o'}) // text "hello"

	f.Fuzz(func(t *testing.T, data []byte) {
		decoded, err := Decode(data)
		if err != nil {
			return
		}
		encoded, err := Marshal(decoded)
		if err != nil {
			return // floats and simple values are out of scope
		}
		decoded2, err := Decode(encoded)
		if err != nil {
			t.Fatalf("failed to decode re-encoded data: %v", err)
		}
		// Deterministic encoding must be a fixed point
		encoded2, err := Marshal(decoded2)
		if err != nil {
			t.Fatalf("failed to re-encode decoded data: %v", err)
		}
		if !bytes.Equal(encoded, encoded2) {
			t.Fatalf("re-encoding not stable: %x != %x", encoded, encoded2)
		}
	})
}
