// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pem provides strict PEM encoding and decoding of the single-block
// key files the cose tool reads and writes.
package pem

import (
	"bytes"
	"encoding/base64"
	"errors"

	"github.com/dark-bio/cose-go/internal/base64ext"
)

var (
	pemHeader = []byte("-----BEGIN ")
	pemFooter = []byte("-----END ")
	pemEnding = []byte("-----")
)

var (
	// ErrMalformedHeader is returned if the BEGIN line is missing or broken.
	ErrMalformedHeader = errors.New("pem: malformed PEM header")

	// ErrMalformedFooter is returned if the END line is missing or mismatched.
	ErrMalformedFooter = errors.New("pem: malformed PEM footer")

	// ErrMalformedBody is returned if the base64 body is empty or broken.
	ErrMalformedBody = errors.New("pem: malformed PEM body")

	// ErrTrailingData is returned if anything follows the END line.
	ErrTrailingData = errors.New("pem: trailing data after PEM block")
)

// Decode decodes a single PEM block with strict validation.
//
// Rules:
//   - Header must start at byte 0 (no leading whitespace)
//   - Footer must end the data (only optional line ending after)
//   - Line endings must be consistent (\n or \r\n throughout)
//   - Base64 lines contain only base64 characters
//   - Strict base64 decoding (no padding errors, etc.)
//   - No trailing data after the PEM block
func Decode(data []byte) (kind string, blob []byte, err error) {
	// Must start with header immediately (no leading whitespace)
	if !bytes.HasPrefix(data, pemHeader) {
		return "", nil, ErrMalformedHeader
	}
	// Find the end of header line (first \n)
	headerEnd := bytes.Index(data, []byte("\n"))
	if headerEnd < 0 {
		return "", nil, ErrMalformedHeader
	}
	// Detect line ending style from first line
	var lineEnding []byte
	if headerEnd > 0 && data[headerEnd-1] == '\r' {
		lineEnding = []byte("\r\n")
	} else {
		lineEnding = []byte("\n")
	}
	// Extract header (without line ending)
	header := data[:headerEnd]
	if len(lineEnding) == 2 {
		header = header[:len(header)-1]
	}
	// Parse the block type from the header
	if !bytes.HasPrefix(header, pemHeader) || !bytes.HasSuffix(header, pemEnding) {
		return "", nil, ErrMalformedHeader
	}
	blockType := string(header[len(pemHeader) : len(header)-len(pemEnding)])
	if len(blockType) == 0 {
		return "", nil, ErrMalformedHeader
	}
	// Build expected footer
	footer := append(append(append([]byte(nil), pemFooter...), blockType...), pemEnding...)

	// Find the footer
	footerIdx := bytes.Index(data[headerEnd+1:], footer)
	if footerIdx < 0 {
		return "", nil, ErrMalformedFooter
	}
	footerStart := headerEnd + 1 + footerIdx
	footerEnd := footerStart + len(footer)

	// Validate what comes after footer: nothing or same line ending
	rest := data[footerEnd:]
	if len(rest) > 0 {
		if !bytes.Equal(rest, lineEnding) {
			return "", nil, ErrTrailingData
		}
	}
	// Extract body (between header and footer)
	body := data[headerEnd+1 : footerStart]

	// Body must end with the line ending (the line before footer)
	if len(body) == 0 {
		return "", nil, ErrMalformedBody
	}
	if !bytes.HasSuffix(body, lineEnding) {
		return "", nil, ErrMalformedBody
	}
	body = body[:len(body)-len(lineEnding)]

	// Strip line endings and decode
	b64 := bytes.ReplaceAll(body, lineEnding, nil)

	decoded, err := base64ext.DecodeString(string(b64))
	if err != nil {
		return "", nil, ErrMalformedBody
	}
	return blockType, decoded, nil
}

// Encode encodes data as a PEM block with the given type.
// Lines are 64 characters, using \n line endings.
func Encode(kind string, blob []byte) []byte {
	b64 := base64.StdEncoding.EncodeToString(blob)

	var buf bytes.Buffer
	buf.Write(pemHeader)
	buf.WriteString(kind)
	buf.Write(pemEnding)
	buf.WriteByte('\n')

	for len(b64) > 0 {
		line := b64
		if len(line) > 64 {
			line = b64[:64]
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		b64 = b64[len(line):]
	}

	buf.Write(pemFooter)
	buf.WriteString(kind)
	buf.Write(pemEnding)
	buf.WriteByte('\n')

	return buf.Bytes()
}
