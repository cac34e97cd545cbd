// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cbor

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMarshalUnmarshalInt64(t *testing.T) {
	cases := []int64{0, 1, -1, 23, 24, -24, -25, 255, -256, math.MaxInt64, math.MinInt64}
	for _, v := range cases {
		data, err := Marshal(v)
		if err != nil {
			t.Errorf("Marshal(%d) error: %v", v, err)
			continue
		}
		var got int64
		if err := Unmarshal(data, &got); err != nil {
			t.Errorf("Unmarshal(%d) error: %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("roundtrip %d: got %d", v, got)
		}
	}
}

// Tests that the encoder emits the Core Deterministic map key order, which
// is what makes protected header bytes reproducible.
func TestMarshalDeterministicMap(t *testing.T) {
	tests := []struct {
		in   map[any]any
		want string
	}{
		{map[any]any{}, "a0"},
		{map[any]any{int64(1): int64(-7)}, "a10126"},
		{map[any]any{int64(4): []byte("11"), int64(1): int64(-7)}, "a201260442" + "3131"},
		{map[any]any{"a": int64(1), int64(-1): int64(2), int64(10): int64(3)}, "a30a032002616101"},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			data, err := Marshal(tt.in)
			if err != nil {
				t.Fatalf("expected success, have error: %v", err)
			}
			if have := hex.EncodeToString(data); have != tt.want {
				t.Fatalf("encoding mismatch: have %s, want %s", have, tt.want)
			}
		})
	}
}

// Tests that generic decoding preserves the map key types COSE relies on.
func TestDecodeGeneric(t *testing.T) {
	data, _ := hex.DecodeString("a3012604423131636b6964f6")
	v, err := Decode(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	want := map[any]any{
		int64(1): int64(-7),
		int64(4): []byte("11"),
		"kid":    nil,
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Fatalf("decoded value mismatch (-want +have):\n%s", diff)
	}
}

// Tests that malformed or abusive inputs are rejected with the right error.
func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		data string
		err  error
	}{
		{"a201010102", ErrDuplicateMapKey}, // {1: 1, 1: 2}
		{"0000", ErrTrailingBytes},         // 0 followed by 0
		{"61", ErrUnexpectedEOF},           // text header without data
		{"9f01ff", ErrInvalidEncoding},     // indefinite length array
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			data, _ := hex.DecodeString(tt.data)
			if _, err := Decode(data); !errors.Is(err, tt.err) {
				t.Fatalf("error mismatch: have %v, want %v", err, tt.err)
			}
		})
	}
}

// Tests that nil byte slices encode as null while empty ones stay byte strings.
func TestMarshalNilBytes(t *testing.T) {
	data, err := Marshal([]any{[]byte{}, []byte(nil), nil})
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if want := []byte{0x83, 0x40, 0xf6, 0xf6}; !bytes.Equal(data, want) {
		t.Fatalf("encoding mismatch: have %x, want %x", data, want)
	}
}

// Tests tag detection and splitting.
func TestUnmarshalTag(t *testing.T) {
	data := MustMarshal(Tag{Number: 18, Content: []any{[]byte{}, map[any]any{}, nil, []byte{1}}})
	if !IsTagged(data) {
		t.Fatalf("tagged item not detected")
	}
	num, content, err := UnmarshalTag(data)
	if err != nil {
		t.Fatalf("failed to split tag: %v", err)
	}
	if num != 18 {
		t.Fatalf("tag mismatch: have %d, want %d", num, 18)
	}
	if err := Wellformed(content); err != nil {
		t.Fatalf("content not well-formed: %v", err)
	}
	if _, _, err := UnmarshalTag(content); !errors.Is(err, ErrUnexpectedType) {
		t.Fatalf("untagged content accepted as tag: %v", err)
	}
}

// Tests the integer accessor across Go integer kinds.
func TestInt(t *testing.T) {
	type enum int64

	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(-7), -7, true},
		{int(5), 5, true},
		{uint64(math.MaxUint64), 0, false},
		{uint8(200), 200, true},
		{enum(-35), -35, true},
		{"1", 0, false},
		{nil, 0, false},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			have, ok := Int(tt.in)
			if ok != tt.ok || have != tt.want {
				t.Fatalf("conversion mismatch: have %d/%v, want %d/%v", have, ok, tt.want, tt.ok)
			}
		})
	}
}
