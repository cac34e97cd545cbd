// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ecdh provides the Diffie-Hellman key agreements COSE recipients use:
// the NIST curves and X25519 from the standard library, X448 from circl.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-12.4
package ecdh

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/dh/x448"
	"github.com/dark-bio/cose-go/internal/asn1ext"
	"github.com/dark-bio/cose-go/pem"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Curve identifies a key agreement curve. The values match the COSE Elliptic
// Curves registry.
type Curve int

const (
	P256   Curve = 1
	P384   Curve = 2
	P521   Curve = 3
	X25519 Curve = 4
	X448   Curve = 5
)

// ErrInvalidPublicKey is returned when a peer key is not a usable point.
var ErrInvalidPublicKey = errors.New("ecdh: invalid public key")

// String implements fmt.Stringer.
func (c Curve) String() string {
	switch c {
	case P256:
		return "P-256"
	case P384:
		return "P-384"
	case P521:
		return "P-521"
	case X25519:
		return "X25519"
	case X448:
		return "X448"
	default:
		return fmt.Sprintf("Curve(%d)", int(c))
	}
}

// Size returns the byte length of a scalar and of a coordinate.
func (c Curve) Size() int {
	switch c {
	case P256, X25519:
		return 32
	case P384:
		return 48
	case P521:
		return 66
	case X448:
		return x448.Size
	default:
		return 0
	}
}

// Montgomery reports whether the curve is used as an OKP key (X25519, X448).
func (c Curve) Montgomery() bool {
	return c == X25519 || c == X448
}

// stdlib returns the standard library curve, nil for X448 or unknown ones.
func (c Curve) stdlib() ecdh.Curve {
	switch c {
	case P256:
		return ecdh.P256()
	case P384:
		return ecdh.P384()
	case P521:
		return ecdh.P521()
	case X25519:
		return ecdh.X25519()
	default:
		return nil
	}
}

// oid returns the PKIX algorithm identifier of a Montgomery curve.
func (c Curve) oid() (asn1.ObjectIdentifier, bool) {
	switch c {
	case X25519:
		return asn1ext.OIDPublicKeyX25519, true
	case X448:
		return asn1ext.OIDPublicKeyX448, true
	default:
		return nil, false
	}
}

// SecretKey is a private key for one of the supported curves.
type SecretKey struct {
	curve Curve
	std   *ecdh.PrivateKey
	x448  x448.Key
}

// GenerateKey creates a new, random private key on the curve.
func GenerateKey(curve Curve) (*SecretKey, error) {
	if curve == X448 {
		var d x448.Key
		if _, err := rand.Read(d[:]); err != nil {
			return nil, err
		}
		return &SecretKey{curve: curve, x448: d}, nil
	}
	std := curve.stdlib()
	if std == nil {
		return nil, fmt.Errorf("ecdh: unsupported curve %v", curve)
	}
	key, err := std.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &SecretKey{curve: curve, std: key}, nil
}

// ParseSecretKey creates a private key from its scalar encoding (the COSE d
// value).
func ParseSecretKey(curve Curve, d []byte) (*SecretKey, error) {
	if len(d) != curve.Size() {
		return nil, fmt.Errorf("ecdh: %v private key must be %d bytes", curve, curve.Size())
	}
	if curve == X448 {
		k := &SecretKey{curve: curve}
		copy(k.x448[:], d)
		return k, nil
	}
	std := curve.stdlib()
	if std == nil {
		return nil, fmt.Errorf("ecdh: unsupported curve %v", curve)
	}
	key, err := std.NewPrivateKey(d)
	if err != nil {
		return nil, err
	}
	return &SecretKey{curve: curve, std: key}, nil
}

// NewSecretKey wraps a standard library private key.
func NewSecretKey(key *ecdh.PrivateKey) (*SecretKey, error) {
	curve, err := curveOf(key.Curve())
	if err != nil {
		return nil, err
	}
	return &SecretKey{curve: curve, std: key}, nil
}

// ParseSecretKeyDER parses a PKCS#8 DER buffer holding an X25519 or X448 key.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	info, err := asn1ext.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	var curve Curve
	switch {
	case info.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyX25519):
		curve = X25519
	case info.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyX448):
		curve = X448
	default:
		return nil, errors.New("ecdh: not an X25519 or X448 private key")
	}
	input := cryptobyte.String(info.PrivateKey)
	var d cryptobyte.String
	if !input.ReadASN1(&d, cbasn1.OCTET_STRING) || !input.Empty() {
		return nil, errors.New("ecdh: invalid private key encoding")
	}
	return ParseSecretKey(curve, d)
}

// ParseSecretKeyPEM parses a PEM string into a private key.
func ParseSecretKeyPEM(s string) (*SecretKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PRIVATE KEY" {
		return nil, errors.New("ecdh: invalid PEM type: " + kind)
	}
	return ParseSecretKeyDER(blob)
}

// Curve returns the curve the key is on.
func (k *SecretKey) Curve() Curve {
	return k.curve
}

// Marshal returns the scalar encoding of the private key.
func (k *SecretKey) Marshal() []byte {
	if k.curve == X448 {
		return append([]byte{}, k.x448[:]...)
	}
	return k.std.Bytes()
}

// MarshalDER serializes an X25519 or X448 private key into a PKCS#8 buffer.
// NIST curve keys are serialized through the ecdsa package instead.
func (k *SecretKey) MarshalDER() ([]byte, error) {
	oid, ok := k.curve.oid()
	if !ok {
		return nil, fmt.Errorf("ecdh: no OKP encoding for %v", k.curve)
	}
	var b cryptobyte.Builder
	b.AddASN1OctetString(k.Marshal())
	inner, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return asn1ext.MarshalPKCS8PrivateKey(oid, nil, inner)
}

// MarshalPEM serializes an X25519 or X448 private key into a PEM string.
func (k *SecretKey) MarshalPEM() (string, error) {
	der, err := k.MarshalDER()
	if err != nil {
		return "", err
	}
	return string(pem.Encode("PRIVATE KEY", der)), nil
}

// PublicKey returns the public counterpart of the secret key.
func (k *SecretKey) PublicKey() *PublicKey {
	if k.curve == X448 {
		pub := &PublicKey{curve: k.curve}
		x448.KeyGen(&pub.x448, &k.x448)
		return pub
	}
	return &PublicKey{curve: k.curve, std: k.std.PublicKey()}
}

// ECDH computes the shared secret with a peer public key. For NIST curves the
// secret is the x-coordinate of the shared point, as COSE requires.
func (k *SecretKey) ECDH(peer *PublicKey) ([]byte, error) {
	if peer.curve != k.curve {
		return nil, fmt.Errorf("ecdh: curve mismatch: %v vs %v", k.curve, peer.curve)
	}
	if k.curve == X448 {
		var shared x448.Key
		if !x448.Shared(&shared, &k.x448, &peer.x448) {
			return nil, ErrInvalidPublicKey
		}
		return shared[:], nil
	}
	return k.std.ECDH(peer.std)
}

// PublicKey is a public key for one of the supported curves.
type PublicKey struct {
	curve Curve
	std   *ecdh.PublicKey
	x448  x448.Key
}

// ParsePublicKey parses a public key from its wire encoding: an uncompressed
// SEC 1 point for NIST curves, the u-coordinate for Montgomery curves.
func ParsePublicKey(curve Curve, b []byte) (*PublicKey, error) {
	if curve == X448 {
		if len(b) != x448.Size {
			return nil, ErrInvalidPublicKey
		}
		pub := &PublicKey{curve: curve}
		copy(pub.x448[:], b)
		return pub, nil
	}
	std := curve.stdlib()
	if std == nil {
		return nil, fmt.Errorf("ecdh: unsupported curve %v", curve)
	}
	key, err := std.NewPublicKey(b)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return &PublicKey{curve: curve, std: key}, nil
}

// ParsePublicKeyCoordinates parses a NIST curve public key from its affine
// coordinates (the COSE EC2 x and y values).
func ParsePublicKeyCoordinates(curve Curve, x, y []byte) (*PublicKey, error) {
	size := curve.Size()
	if curve.Montgomery() || size == 0 {
		return nil, fmt.Errorf("ecdh: %v has no affine coordinates", curve)
	}
	if len(x) != size || len(y) != size {
		return nil, ErrInvalidPublicKey
	}
	point := make([]byte, 0, 1+2*size)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)
	return ParsePublicKey(curve, point)
}

// NewPublicKey wraps a standard library public key.
func NewPublicKey(key *ecdh.PublicKey) (*PublicKey, error) {
	curve, err := curveOf(key.Curve())
	if err != nil {
		return nil, err
	}
	return &PublicKey{curve: curve, std: key}, nil
}

// ParsePublicKeyDER parses a PKIX DER buffer holding an X25519 or X448 key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	info, err := asn1ext.ParseSubjectPublicKeyInfo(der)
	if err != nil {
		return nil, err
	}
	var curve Curve
	switch {
	case info.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyX25519):
		curve = X25519
	case info.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyX448):
		curve = X448
	default:
		return nil, errors.New("ecdh: not an X25519 or X448 public key")
	}
	if info.SubjectPublicKey.BitLength != curve.Size()*8 {
		return nil, ErrInvalidPublicKey
	}
	return ParsePublicKey(curve, info.SubjectPublicKey.Bytes)
}

// ParsePublicKeyPEM parses a PEM string into a public key.
func ParsePublicKeyPEM(s string) (*PublicKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PUBLIC KEY" {
		return nil, errors.New("ecdh: invalid PEM type: " + kind)
	}
	return ParsePublicKeyDER(blob)
}

// Curve returns the curve the key is on.
func (k *PublicKey) Curve() Curve {
	return k.curve
}

// Marshal returns the wire encoding of the public key.
func (k *PublicKey) Marshal() []byte {
	if k.curve == X448 {
		return append([]byte{}, k.x448[:]...)
	}
	return k.std.Bytes()
}

// Coordinates returns the affine coordinates of a NIST curve public key.
func (k *PublicKey) Coordinates() (x, y []byte, err error) {
	if k.curve.Montgomery() {
		return nil, nil, fmt.Errorf("ecdh: %v has no affine coordinates", k.curve)
	}
	point := k.std.Bytes()
	size := k.curve.Size()
	return point[1 : 1+size], point[1+size:], nil
}

// MarshalDER serializes an X25519 or X448 public key into a PKIX buffer.
func (k *PublicKey) MarshalDER() ([]byte, error) {
	oid, ok := k.curve.oid()
	if !ok {
		return nil, fmt.Errorf("ecdh: no OKP encoding for %v", k.curve)
	}
	return asn1ext.MarshalSubjectPublicKeyInfo(oid, nil, k.Marshal())
}

// MarshalPEM serializes an X25519 or X448 public key into a PEM string.
func (k *PublicKey) MarshalPEM() (string, error) {
	der, err := k.MarshalDER()
	if err != nil {
		return "", err
	}
	return string(pem.Encode("PUBLIC KEY", der)), nil
}

// curveOf maps a standard library curve back to its identifier.
func curveOf(c ecdh.Curve) (Curve, error) {
	switch c {
	case ecdh.P256():
		return P256, nil
	case ecdh.P384():
		return P384, nil
	case ecdh.P521():
		return P521, nil
	case ecdh.X25519():
		return X25519, nil
	default:
		return 0, errors.New("ecdh: unsupported curve")
	}
}
