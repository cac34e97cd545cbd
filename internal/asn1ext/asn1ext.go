// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asn1ext provides the handful of ASN.1 structures needed to move key
// material between COSE key maps and PKCS#8, SPKI and SEC1 encodings.
package asn1ext

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
)

// Object identifiers for the key algorithms and curves COSE keys carry.
var (
	OIDPublicKeyECDSA   = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	OIDPublicKeyRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	OIDPublicKeyX25519  = asn1.ObjectIdentifier{1, 3, 101, 110}
	OIDPublicKeyX448    = asn1.ObjectIdentifier{1, 3, 101, 111}
	OIDPublicKeyEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}
	OIDPublicKeyEd448   = asn1.ObjectIdentifier{1, 3, 101, 113}
	OIDPublicKeyMLDSA65 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 18}

	OIDNamedCurveP256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	OIDNamedCurveP384 = asn1.ObjectIdentifier{1, 3, 132, 0, 34}
	OIDNamedCurveP521 = asn1.ObjectIdentifier{1, 3, 132, 0, 35}
)

// ErrTrailingData is returned when a DER structure is followed by junk.
var ErrTrailingData = errors.New("asn1ext: trailing data after DER structure")

// PKCS8PrivateKey is the ASN.1 structure for PKCS#8 private keys.
type PKCS8PrivateKey struct {
	Version    int
	Algorithm  pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// SubjectPublicKeyInfo is the ASN.1 structure for SPKI public keys.
type SubjectPublicKeyInfo struct {
	Algorithm        pkix.AlgorithmIdentifier
	SubjectPublicKey asn1.BitString
}

// ECPrivateKey is the SEC1 (RFC 5915) structure for EC private keys. The curve
// and public point are optional; inside PKCS#8 the curve lives in the
// algorithm identifier instead.
type ECPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

// ParsePKCS8PrivateKey parses a DER encoded PKCS#8 container without
// interpreting the wrapped key.
func ParsePKCS8PrivateKey(der []byte) (*PKCS8PrivateKey, error) {
	var key PKCS8PrivateKey
	rest, err := asn1.Unmarshal(der, &key)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ErrTrailingData
	}
	return &key, nil
}

// ParseSubjectPublicKeyInfo parses a DER encoded SPKI container without
// interpreting the wrapped key.
func ParseSubjectPublicKeyInfo(der []byte) (*SubjectPublicKeyInfo, error) {
	var spki SubjectPublicKeyInfo
	rest, err := asn1.Unmarshal(der, &spki)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ErrTrailingData
	}
	return &spki, nil
}

// MarshalSubjectPublicKeyInfo wraps a raw public key into an SPKI container.
// A nil curve omits the algorithm parameters altogether (as the Edwards and
// Montgomery curve OIDs require).
func MarshalSubjectPublicKeyInfo(algo, curve asn1.ObjectIdentifier, key []byte) ([]byte, error) {
	spki := SubjectPublicKeyInfo{
		Algorithm: algorithmIdentifier(algo, curve),
		SubjectPublicKey: asn1.BitString{
			Bytes:     key,
			BitLength: 8 * len(key),
		},
	}
	return asn1.Marshal(spki)
}

// MarshalPKCS8PrivateKey wraps a raw, algorithm specific private key blob into a
// PKCS#8 container.
func MarshalPKCS8PrivateKey(algo, curve asn1.ObjectIdentifier, key []byte) ([]byte, error) {
	pkcs8 := PKCS8PrivateKey{
		Algorithm:  algorithmIdentifier(algo, curve),
		PrivateKey: key,
	}
	return asn1.Marshal(pkcs8)
}

// algorithmIdentifier assembles an algorithm identifier with an optional named
// curve parameter.
func algorithmIdentifier(algo, curve asn1.ObjectIdentifier) pkix.AlgorithmIdentifier {
	id := pkix.AlgorithmIdentifier{Algorithm: algo}
	if curve != nil {
		param, err := asn1.Marshal(curve)
		if err != nil {
			panic(err) // cannot fail, be loud if it does
		}
		id.Parameters = asn1.RawValue{FullBytes: param}
	}
	return id
}
