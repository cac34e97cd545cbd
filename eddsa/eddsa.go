// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eddsa provides Ed25519 digital signatures for COSE OKP keys.
//
// https://datatracker.ietf.org/doc/html/rfc8032
// https://datatracker.ietf.org/doc/html/rfc8152#section-8.2
package eddsa

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"errors"

	"filippo.io/edwards25519"
	"github.com/dark-bio/cose-go/internal/asn1ext"
	"github.com/dark-bio/cose-go/pem"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const (
	// SecretKeySize is the size of the secret key seed in bytes.
	SecretKeySize = 32

	// PublicKeySize is the size of the public key in bytes.
	PublicKeySize = 32

	// SignatureSize is the size of a signature in bytes.
	SignatureSize = 64
)

// ErrVerificationFailed is returned when a signature does not match.
var ErrVerificationFailed = errors.New("eddsa: signature verification failed")

// SecretKey contains an Ed25519 private key usable for signing.
type SecretKey struct {
	key ed25519.PrivateKey
}

// GenerateKey creates a new, random private key.
func GenerateKey() *SecretKey {
	var seed [SecretKeySize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("eddsa: " + err.Error())
	}
	key, _ := ParseSecretKey(seed[:])
	return key
}

// NewSecretKey wraps a standard library private key.
func NewSecretKey(key ed25519.PrivateKey) (*SecretKey, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("eddsa: invalid Ed25519 private key length")
	}
	return &SecretKey{key: key}, nil
}

// ParseSecretKey creates a private key from a 32-byte seed (the COSE d value).
func ParseSecretKey(seed []byte) (*SecretKey, error) {
	if len(seed) != SecretKeySize {
		return nil, errors.New("eddsa: invalid Ed25519 seed length")
	}
	return &SecretKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// ParseSecretKeyDER parses a PKCS#8 DER buffer into a private key.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	pkcs8, err := asn1ext.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	if !pkcs8.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyEd25519) {
		return nil, errors.New("eddsa: not an Ed25519 private key")
	}
	input := cryptobyte.String(pkcs8.PrivateKey)
	var seed cryptobyte.String
	if !input.ReadASN1(&seed, cbasn1.OCTET_STRING) || !input.Empty() {
		return nil, errors.New("eddsa: invalid Ed25519 seed encoding")
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
		return nil, errors.New("eddsa: invalid PEM type: " + kind)
	}
	return ParseSecretKeyDER(blob)
}

// Crypto returns the standard library private key.
func (k *SecretKey) Crypto() ed25519.PrivateKey {
	return k.key
}

// Marshal returns the 32-byte seed.
func (k *SecretKey) Marshal() []byte {
	return k.key.Seed()
}

// MarshalDER serializes a private key into a PKCS#8 DER buffer.
func (k *SecretKey) MarshalDER() []byte {
	der, err := x509.MarshalPKCS8PrivateKey(k.key)
	if err != nil {
		panic(err) // cannot fail for valid key
	}
	return der
}

// MarshalPEM serializes a private key into a PEM string.
func (k *SecretKey) MarshalPEM() string {
	return string(pem.Encode("PRIVATE KEY", k.MarshalDER()))
}

// PublicKey retrieves the public counterpart of the secret key.
func (k *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{key: k.key.Public().(ed25519.PublicKey)}
}

// Sign creates a digital signature of the message.
func (k *SecretKey) Sign(message []byte) []byte {
	return ed25519.Sign(k.key, message)
}

// PublicKey contains an Ed25519 public key usable for verification.
type PublicKey struct {
	key ed25519.PublicKey
}

// NewPublicKey wraps a standard library public key.
func NewPublicKey(key ed25519.PublicKey) (*PublicKey, error) {
	return ParsePublicKey(key)
}

// ParsePublicKey converts a 32-byte encoded point (the COSE x value) into a
// public key, rejecting encodings that are not valid curve points.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, errors.New("eddsa: invalid Ed25519 public key length")
	}
	if _, err := new(edwards25519.Point).SetBytes(b); err != nil {
		return nil, errors.New("eddsa: invalid Ed25519 public key")
	}
	return &PublicKey{key: append(ed25519.PublicKey{}, b...)}, nil
}

// ParsePublicKeyDER parses a PKIX DER buffer into a public key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	spki, err := asn1ext.ParseSubjectPublicKeyInfo(der)
	if err != nil {
		return nil, err
	}
	if !spki.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyEd25519) {
		return nil, errors.New("eddsa: not an Ed25519 public key")
	}
	if spki.SubjectPublicKey.BitLength != PublicKeySize*8 {
		return nil, errors.New("eddsa: invalid Ed25519 public key length")
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
		return nil, errors.New("eddsa: invalid PEM type: " + kind)
	}
	return ParsePublicKeyDER(blob)
}

// Crypto returns the standard library public key.
func (k *PublicKey) Crypto() ed25519.PublicKey {
	return k.key
}

// Marshal returns the 32-byte encoded point.
func (k *PublicKey) Marshal() []byte {
	return append([]byte{}, k.key...)
}

// MarshalDER serializes a public key into a PKIX DER buffer.
func (k *PublicKey) MarshalDER() []byte {
	der, err := x509.MarshalPKIXPublicKey(k.key)
	if err != nil {
		panic(err) // cannot fail for valid key
	}
	return der
}

// MarshalPEM serializes a public key into a PEM string.
func (k *PublicKey) MarshalPEM() string {
	return string(pem.Encode("PUBLIC KEY", k.MarshalDER()))
}

// Verify verifies a digital signature.
func (k *PublicKey) Verify(message, sig []byte) error {
	if len(sig) != SignatureSize || !ed25519.Verify(k.key, message, sig) {
		return ErrVerificationFailed
	}
	return nil
}
