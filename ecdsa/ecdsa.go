// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ecdsa provides ECDSA signatures over the NIST curves in the
// fixed-width encoding used by COSE.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-8.1
package ecdsa

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/dark-bio/cose-go/internal/asn1ext"
	"github.com/dark-bio/cose-go/pem"
)

// ErrInvalidScalar is returned for a private scalar outside [1, n-1].
var ErrInvalidScalar = errors.New("ecdsa: invalid private scalar")

// Curve identifies one of the supported NIST curves.
type Curve int

// Supported curves.
const (
	P256 Curve = iota + 1
	P384
	P521
)

// ecPrivKeyVersion is the SEC1 structure version, RFC 5915 Section 3.
const ecPrivKeyVersion = 1

// Size returns the byte size of a coordinate (and of each signature half).
func (c Curve) Size() int {
	switch c {
	case P256:
		return 32
	case P384:
		return 48
	case P521:
		return 66
	}
	return 0
}

// String implements fmt.Stringer.
func (c Curve) String() string {
	switch c {
	case P256:
		return "P-256"
	case P384:
		return "P-384"
	case P521:
		return "P-521"
	}
	return fmt.Sprintf("Curve(%d)", int(c))
}

// OID returns the named curve object identifier.
func (c Curve) OID() asn1.ObjectIdentifier {
	switch c {
	case P256:
		return asn1ext.OIDNamedCurveP256
	case P384:
		return asn1ext.OIDNamedCurveP384
	case P521:
		return asn1ext.OIDNamedCurveP521
	}
	return nil
}

// elliptic returns the standard library curve implementation.
func (c Curve) elliptic() elliptic.Curve {
	switch c {
	case P256:
		return elliptic.P256()
	case P384:
		return elliptic.P384()
	case P521:
		return elliptic.P521()
	}
	return nil
}

// curveOf maps a standard library curve back onto the enum.
func curveOf(c elliptic.Curve) (Curve, error) {
	switch c {
	case elliptic.P256():
		return P256, nil
	case elliptic.P384():
		return P384, nil
	case elliptic.P521():
		return P521, nil
	}
	return 0, errors.New("ecdsa: unsupported curve")
}

// SecretKey contains an ECDSA private key usable for signing.
type SecretKey struct {
	inner *ecdsa.PrivateKey
	curve Curve
	point *ecdh.PrivateKey // validated scalar
}

// GenerateKey creates a new, random private key on the given curve.
func GenerateKey(curve Curve) (*SecretKey, error) {
	if curve.Size() == 0 {
		return nil, errors.New("ecdsa: unsupported curve")
	}
	key, err := ecdsa.GenerateKey(curve.elliptic(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewSecretKey(key)
}

// NewSecretKey wraps a standard library private key. The scalar must lie in
// [1, n-1] and the public point must match it.
func NewSecretKey(key *ecdsa.PrivateKey) (*SecretKey, error) {
	curve, err := curveOf(key.Curve)
	if err != nil {
		return nil, err
	}
	if key.D == nil || key.D.Sign() <= 0 || key.D.Cmp(curve.elliptic().Params().N) >= 0 {
		return nil, ErrInvalidScalar
	}
	priv, err := key.ECDH()
	if err != nil {
		return nil, ErrInvalidScalar
	}
	pub, err := key.PublicKey.ECDH()
	if err != nil || !priv.PublicKey().Equal(pub) {
		return nil, errors.New("ecdsa: public point does not match the private scalar")
	}
	return &SecretKey{inner: key, curve: curve, point: priv}, nil
}

// ParseSecretKey creates a private key from the big-endian scalar d. The key is
// routed through a minimal PKCS#8 structure, which also derives the public
// point from the scalar.
func ParseSecretKey(curve Curve, d []byte) (*SecretKey, error) {
	if curve.Size() == 0 {
		return nil, errors.New("ecdsa: unsupported curve")
	}
	if len(d) == 0 || len(d) > curve.Size() {
		return nil, errors.New("ecdsa: invalid private scalar length")
	}
	if scalar := new(big.Int).SetBytes(d); scalar.Sign() == 0 || scalar.Cmp(curve.elliptic().Params().N) >= 0 {
		return nil, ErrInvalidScalar
	}
	padded := make([]byte, curve.Size())
	copy(padded[curve.Size()-len(d):], d)

	sec1, err := asn1.Marshal(asn1ext.ECPrivateKey{
		Version:    ecPrivKeyVersion,
		PrivateKey: padded,
	})
	if err != nil {
		return nil, err
	}
	der, err := asn1ext.MarshalPKCS8PrivateKey(asn1ext.OIDPublicKeyECDSA, curve.OID(), sec1)
	if err != nil {
		return nil, err
	}
	return ParseSecretKeyDER(der)
}

// ParseSecretKeyDER parses a PKCS#8 DER buffer into a private key.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("ecdsa: not an ECDSA private key")
	}
	return NewSecretKey(ecKey)
}

// ParseSecretKeyPEM parses a PEM string into a private key.
func ParseSecretKeyPEM(s string) (*SecretKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PRIVATE KEY" {
		return nil, errors.New("ecdsa: invalid PEM type: " + kind)
	}
	return ParseSecretKeyDER(blob)
}

// Curve returns the curve the key lives on.
func (k *SecretKey) Curve() Curve {
	return k.curve
}

// Crypto returns the standard library private key.
func (k *SecretKey) Crypto() *ecdsa.PrivateKey {
	return k.inner
}

// Marshal returns the private scalar, left padded to the coordinate size.
func (k *SecretKey) Marshal() []byte {
	return k.point.Bytes()
}

// MarshalDER serializes a private key into a PKCS#8 DER buffer.
func (k *SecretKey) MarshalDER() []byte {
	der, err := x509.MarshalPKCS8PrivateKey(k.inner)
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	return der
}

// MarshalPEM serializes a private key into a PEM string.
func (k *SecretKey) MarshalPEM() string {
	return string(pem.Encode("PRIVATE KEY", k.MarshalDER()))
}

// PublicKey retrieves the public counterpart of the secret key.
func (k *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{inner: &k.inner.PublicKey, curve: k.curve, point: k.point.PublicKey()}
}

// Sign creates a fixed-width r||s signature of the message, hashed with h.
func (k *SecretKey) Sign(message []byte, h crypto.Hash) ([]byte, error) {
	hasher := h.New()
	hasher.Write(message)

	der, err := ecdsa.SignASN1(rand.Reader, k.inner, hasher.Sum(nil))
	if err != nil {
		return nil, err
	}
	return DERToConcat(der, k.curve.Size())
}

// PublicKey contains an ECDSA public key usable for verification.
type PublicKey struct {
	inner *ecdsa.PublicKey
	curve Curve
	point *ecdh.PublicKey // validated point
}

// NewPublicKey wraps a standard library public key. The point must be a valid
// point on the curve other than the identity.
func NewPublicKey(key *ecdsa.PublicKey) (*PublicKey, error) {
	curve, err := curveOf(key.Curve)
	if err != nil {
		return nil, err
	}
	point, err := key.ECDH()
	if err != nil {
		return nil, errors.New("ecdsa: invalid public point")
	}
	return &PublicKey{inner: key, curve: curve, point: point}, nil
}

// ParsePublicKey creates a public key from its big-endian affine coordinates.
// The point is validated to be on the curve.
func ParsePublicKey(curve Curve, x, y []byte) (*PublicKey, error) {
	size := curve.Size()
	if size == 0 {
		return nil, errors.New("ecdsa: unsupported curve")
	}
	if len(x) != size || len(y) != size {
		return nil, errors.New("ecdsa: invalid coordinate length")
	}
	point := make([]byte, 0, 1+2*size)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)

	der, err := asn1ext.MarshalSubjectPublicKeyInfo(asn1ext.OIDPublicKeyECDSA, curve.OID(), point)
	if err != nil {
		return nil, err
	}
	return ParsePublicKeyDER(der)
}

// ParseCompressedPublicKey creates a public key from its x coordinate and the
// sign bit of y.
func ParseCompressedPublicKey(curve Curve, x []byte, odd bool) (*PublicKey, error) {
	size := curve.Size()
	if size == 0 {
		return nil, errors.New("ecdsa: unsupported curve")
	}
	if len(x) != size {
		return nil, errors.New("ecdsa: invalid coordinate length")
	}
	compressed := make([]byte, 0, 1+size)
	if odd {
		compressed = append(compressed, 0x03)
	} else {
		compressed = append(compressed, 0x02)
	}
	compressed = append(compressed, x...)

	px, py := elliptic.UnmarshalCompressed(curve.elliptic(), compressed)
	if px == nil {
		return nil, errors.New("ecdsa: invalid compressed point")
	}
	return ParsePublicKey(curve, px.FillBytes(make([]byte, size)), py.FillBytes(make([]byte, size)))
}

// ParsePublicKeyDER parses a PKIX DER buffer into a public key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("ecdsa: not an ECDSA public key")
	}
	return NewPublicKey(ecKey)
}

// ParsePublicKeyPEM parses a PEM string into a public key.
func ParsePublicKeyPEM(s string) (*PublicKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PUBLIC KEY" {
		return nil, errors.New("ecdsa: invalid PEM type: " + kind)
	}
	return ParsePublicKeyDER(blob)
}

// Curve returns the curve the key lives on.
func (k *PublicKey) Curve() Curve {
	return k.curve
}

// Crypto returns the standard library public key.
func (k *PublicKey) Crypto() *ecdsa.PublicKey {
	return k.inner
}

// Coordinates returns the big-endian affine coordinates, each padded to the
// coordinate size.
func (k *PublicKey) Coordinates() (x, y []byte) {
	point := k.point.Bytes() // 0x04 || x || y
	size := k.curve.Size()
	return point[1 : 1+size], point[1+size:]
}

// MarshalDER serializes a public key into a PKIX DER buffer.
func (k *PublicKey) MarshalDER() []byte {
	der, err := x509.MarshalPKIXPublicKey(k.inner)
	if err != nil {
		panic(err) // cannot fail for valid key
	}
	return der
}

// MarshalPEM serializes a public key into a PEM string.
func (k *PublicKey) MarshalPEM() string {
	return string(pem.Encode("PUBLIC KEY", k.MarshalDER()))
}

// Verify verifies a fixed-width r||s signature of the message, hashed with h.
func (k *PublicKey) Verify(message, sig []byte, h crypto.Hash) error {
	if len(sig) != 2*k.curve.Size() {
		return fmt.Errorf("%w: signature length %d, want %d", ErrMalformedSignature, len(sig), 2*k.curve.Size())
	}
	der, err := ConcatToDER(sig)
	if err != nil {
		return err
	}
	hasher := h.New()
	hasher.Write(message)

	if !ecdsa.VerifyASN1(k.inner, hasher.Sum(nil), der) {
		return errors.New("ecdsa: signature verification failed")
	}
	return nil
}
