// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ed448 provides Ed448 digital signatures for COSE OKP keys.
//
// https://datatracker.ietf.org/doc/html/rfc8032#section-5.2
package ed448

import (
	"crypto/rand"
	"errors"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/dark-bio/cose-go/internal/asn1ext"
	"github.com/dark-bio/cose-go/pem"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const (
	// SecretKeySize is the size of the secret key seed in bytes.
	SecretKeySize = ed448.SeedSize

	// PublicKeySize is the size of the public key in bytes.
	PublicKeySize = ed448.PublicKeySize

	// SignatureSize is the size of a signature in bytes.
	SignatureSize = ed448.SignatureSize
)

// context is the Ed448 domain separation string. COSE uses pure Ed448 with an
// empty context.
const context = ""

// ErrVerificationFailed is returned when a signature does not match.
var ErrVerificationFailed = errors.New("ed448: signature verification failed")

// SecretKey contains an Ed448 private key usable for signing.
type SecretKey struct {
	key ed448.PrivateKey
}

// GenerateKey creates a new, random private key.
func GenerateKey() *SecretKey {
	_, key, err := ed448.GenerateKey(rand.Reader)
	if err != nil {
		panic("ed448: " + err.Error())
	}
	return &SecretKey{key: key}
}

// NewSecretKey wraps a circl private key.
func NewSecretKey(key ed448.PrivateKey) (*SecretKey, error) {
	if len(key) != ed448.PrivateKeySize {
		return nil, errors.New("ed448: invalid private key length")
	}
	return &SecretKey{key: key}, nil
}

// ParseSecretKey creates a private key from a 57-byte seed (the COSE d value).
func ParseSecretKey(seed []byte) (*SecretKey, error) {
	if len(seed) != SecretKeySize {
		return nil, errors.New("ed448: invalid seed length")
	}
	return &SecretKey{key: ed448.NewKeyFromSeed(seed)}, nil
}

// ParseSecretKeyDER parses a PKCS#8 DER buffer into a private key.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	pkcs8, err := asn1ext.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	if !pkcs8.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyEd448) {
		return nil, errors.New("ed448: not an Ed448 private key")
	}
	input := cryptobyte.String(pkcs8.PrivateKey)
	var seed cryptobyte.String
	if !input.ReadASN1(&seed, cbasn1.OCTET_STRING) || !input.Empty() {
		return nil, errors.New("ed448: invalid seed encoding")
	}
	return ParseSecretKey(seed)
}

// ParseSecretKeyPEM parses a PEM string into a private key.
func ParseSecretKeyPEM(s string) (*SecretKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PRIVATE KEY" {
		return nil, errors.New("ed448: invalid PEM type: " + kind)
	}
	return ParseSecretKeyDER(blob)
}

// Crypto returns the circl private key.
func (k *SecretKey) Crypto() ed448.PrivateKey {
	return k.key
}

// Marshal returns the 57-byte seed.
func (k *SecretKey) Marshal() []byte {
	return k.key.Seed()
}

// MarshalDER serializes a private key into a PKCS#8 DER buffer.
func (k *SecretKey) MarshalDER() []byte {
	var b cryptobyte.Builder
	b.AddASN1OctetString(k.key.Seed())
	inner, err := b.Bytes()
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	der, err := asn1ext.MarshalPKCS8PrivateKey(asn1ext.OIDPublicKeyEd448, nil, inner)
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
	return &PublicKey{key: k.key.Public().(ed448.PublicKey)}
}

// Sign creates a digital signature of the message.
func (k *SecretKey) Sign(message []byte) []byte {
	return ed448.Sign(k.key, message, context)
}

// PublicKey contains an Ed448 public key usable for verification.
type PublicKey struct {
	key ed448.PublicKey
}

// ParsePublicKey converts a 57-byte encoded point (the COSE x value) into a
// public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, errors.New("ed448: invalid public key length")
	}
	return &PublicKey{key: append(ed448.PublicKey{}, b...)}, nil
}

// ParsePublicKeyDER parses a PKIX DER buffer into a public key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	spki, err := asn1ext.ParseSubjectPublicKeyInfo(der)
	if err != nil {
		return nil, err
	}
	if !spki.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyEd448) {
		return nil, errors.New("ed448: not an Ed448 public key")
	}
	if spki.SubjectPublicKey.BitLength != PublicKeySize*8 {
		return nil, errors.New("ed448: invalid public key length")
	}
	return ParsePublicKey(spki.SubjectPublicKey.Bytes)
}

// ParsePublicKeyPEM parses a PEM string into a public key.
func ParsePublicKeyPEM(s string) (*PublicKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PUBLIC KEY" {
		return nil, errors.New("ed448: invalid PEM type: " + kind)
	}
	return ParsePublicKeyDER(blob)
}

// Crypto returns the circl public key.
func (k *PublicKey) Crypto() ed448.PublicKey {
	return k.key
}

// Marshal returns the 57-byte encoded point.
func (k *PublicKey) Marshal() []byte {
	return append([]byte{}, k.key...)
}

// MarshalDER serializes a public key into a PKIX DER buffer.
func (k *PublicKey) MarshalDER() []byte {
	der, err := asn1ext.MarshalSubjectPublicKeyInfo(asn1ext.OIDPublicKeyEd448, nil, k.key)
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	return der
}

// MarshalPEM serializes a public key into a PEM string.
func (k *PublicKey) MarshalPEM() string {
	return string(pem.Encode("PUBLIC KEY", k.MarshalDER()))
}

// Verify verifies a digital signature.
func (k *PublicKey) Verify(message, sig []byte) error {
	if len(sig) != SignatureSize || !ed448.Verify(k.key, message, sig, context) {
		return ErrVerificationFailed
	}
	return nil
}
