// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ecdsa

import (
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// derSequenceTag is the leading byte of every DER encoded ECDSA signature.
const derSequenceTag = 0x30

// ErrMalformedSignature is returned when a signature cannot be converted
// between its DER and fixed-width forms.
var ErrMalformedSignature = errors.New("ecdsa: malformed signature")

// DERToConcat converts an ASN.1 SEQUENCE{INTEGER r, INTEGER s} signature into
// the fixed-width r||s form COSE mandates, each half left padded with zeroes
// to size bytes.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-8.1
func DERToConcat(der []byte, size int) ([]byte, error) {
	if len(der) == 0 || der[0] != derSequenceTag {
		return nil, fmt.Errorf("%w: not a DER sequence", ErrMalformedSignature)
	}
	var (
		input = cryptobyte.String(der)
		seq   cryptobyte.String
		r     = new(big.Int)
		s     = new(big.Int)
	)
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, fmt.Errorf("%w: invalid DER sequence", ErrMalformedSignature)
	}
	if !seq.ReadASN1Integer(r) || !seq.ReadASN1Integer(s) || !seq.Empty() {
		return nil, fmt.Errorf("%w: invalid DER integers", ErrMalformedSignature)
	}
	// Sign disambiguation bytes are dropped by the big.Int parse, negative
	// values and oversized halves are not representable in the concat form.
	if r.Sign() < 0 || s.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative signature component", ErrMalformedSignature)
	}
	if r.BitLen() > 8*size || s.BitLen() > 8*size {
		return nil, fmt.Errorf("%w: signature component exceeds %d bytes", ErrMalformedSignature, size)
	}
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out, nil
}

// ConcatToDER converts a fixed-width r||s signature back into the ASN.1
// SEQUENCE{INTEGER r, INTEGER s} form, re-wrapping each half as a minimal
// length signed integer.
func ConcatToDER(sig []byte) ([]byte, error) {
	if len(sig) == 0 || len(sig)%2 != 0 {
		return nil, fmt.Errorf("%w: concat signature length %d", ErrMalformedSignature, len(sig))
	}
	var (
		half = len(sig) / 2
		r    = new(big.Int).SetBytes(sig[:half])
		s    = new(big.Int).SetBytes(sig[half:])
	)
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	der, err := b.Bytes()
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	return der, nil
}
