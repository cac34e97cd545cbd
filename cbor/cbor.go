// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cbor implements a strict CBOR encoder and decoder on top of the
// fxamacker/cbor library.
//
// https://datatracker.ietf.org/doc/html/rfc8949
//
// Encoding always uses the Core Deterministic rules of RFC 8949 Section 4.2.1.
// Decoding is lenient about canonical form (COSE peers are not required to be
// deterministic), but strict about everything that could be abused:
//   - duplicate map keys are rejected
//   - indefinite length items are rejected
//   - trailing bytes after the top level item are rejected
//   - integers decode into int64 (overflow is an error)
//   - maps decode into map[any]any, preserving integer and text key types
package cbor

import (
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// maxNestedLevels caps the nesting depth accepted by the decoder. COSE messages
// with counter signatures and nested recipients stay well below this.
const maxNestedLevels = 32

// Major type of tagged items, used for cheap tag detection.
const majorTag = 6

// Error types for CBOR encoding/decoding failures
var (
	ErrInvalidEncoding = errors.New("cbor: invalid encoding")
	ErrTrailingBytes   = errors.New("cbor: unexpected trailing bytes")
	ErrDuplicateMapKey = errors.New("cbor: duplicate map key")
	ErrUnexpectedType  = errors.New("cbor: unexpected type")
	ErrUnexpectedEOF   = errors.New("cbor: unexpected end of data")
	ErrUnsupportedType = errors.New("cbor: unsupported type")
)

// RawMessage is a raw encoded CBOR value, passed through verbatim.
type RawMessage = cbor.RawMessage

// Tag is a CBOR tag with a decoded content.
type Tag = cbor.Tag

// RawTag is a CBOR tag with a still encoded content.
type RawTag = cbor.RawTag

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		IntDec:          cbor.IntDecConvertSigned,
		DefaultMapType:  reflect.TypeOf(map[any]any(nil)),
		MaxNestedLevels: maxNestedLevels,
		UTF8:            cbor.UTF8RejectInvalid,
		TagsMd:          cbor.TagsAllowed,
	}.DecMode()
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
}

// Marshal encodes a value to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return data, nil
}

// MustMarshal encodes a value to deterministic CBOR.
// It panics if the encoding fails.
func MustMarshal(v any) []byte {
	data, err := Marshal(v)
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	return data
}

// Unmarshal decodes a single CBOR item into v, rejecting trailing data.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return convertError(err)
	}
	return nil
}

// Decode decodes a single CBOR item into its generic representation:
// int64, string, []byte, bool, nil, []any, map[any]any or Tag.
func Decode(data []byte) (any, error) {
	var v any
	if err := Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Wellformed checks that data holds exactly one well-formed CBOR item.
func Wellformed(data []byte) error {
	if err := decMode.Wellformed(data); err != nil {
		return convertError(err)
	}
	return nil
}

// Diagnose returns the RFC 8949 diagnostic notation of the data.
func Diagnose(data []byte) (string, error) {
	s, err := cbor.Diagnose(data)
	if err != nil {
		return "", convertError(err)
	}
	return s, nil
}

// IsTagged reports whether the first item in data is a tagged value.
func IsTagged(data []byte) bool {
	return len(data) > 0 && data[0]>>5 == majorTag
}

// UnmarshalTag splits a tagged item into its tag number and raw content.
func UnmarshalTag(data []byte) (uint64, RawMessage, error) {
	if !IsTagged(data) {
		return 0, nil, fmt.Errorf("%w: item is not tagged", ErrUnexpectedType)
	}
	var tag RawTag
	if err := Unmarshal(data, &tag); err != nil {
		return 0, nil, err
	}
	return tag.Number, tag.Content, nil
}

// convertError maps the library's error types onto this package's sentinels.
func convertError(err error) error {
	var (
		extra *cbor.ExtraneousDataError
		dup   *cbor.DupMapKeyError
		typ   *cbor.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &extra):
		return fmt.Errorf("%w: %v", ErrTrailingBytes, err)
	case errors.As(err, &dup):
		return fmt.Errorf("%w: %v", ErrDuplicateMapKey, err)
	case errors.As(err, &typ):
		return fmt.Errorf("%w: %v", ErrUnexpectedType, err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", ErrUnexpectedEOF, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
}

// Int converts a decoded integer of any Go integer kind into an int64.
func Int(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	// Named integer types (enums) are resolved through reflection
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, false
		}
		return int64(rv.Uint()), true
	}
	return 0, false
}

// Bytes returns the value as a byte string, if it is one.
func Bytes(v any) ([]byte, bool) {
	b, ok := v.([]byte)
	return b, ok
}

// Text returns the value as a text string, if it is one.
func Text(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Bool returns the value as a boolean, if it is one.
func Bool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// Array returns the value as an array, if it is one.
func Array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// Map returns the value as a map, if it is one.
func Map(v any) (map[any]any, bool) {
	m, ok := v.(map[any]any)
	return m, ok
}
