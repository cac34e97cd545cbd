// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mldsa provides ML-DSA-65 digital signatures for COSE AKP keys.
//
// https://datatracker.ietf.org/doc/html/draft-ietf-cose-dilithium
// https://datatracker.ietf.org/doc/html/draft-ietf-lamps-dilithium-certificates
package mldsa

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/dark-bio/cose-go/internal/asn1ext"
	"github.com/dark-bio/cose-go/pem"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const (
	// SecretKeySize is the size of the secret key seed in bytes. The seed is
	// what an AKP key carries as its private value.
	SecretKeySize = mldsa65.SeedSize

	// PublicKeySize is the size of the public key in bytes.
	PublicKeySize = mldsa65.PublicKeySize

	// SignatureSize is the size of a signature in bytes.
	SignatureSize = mldsa65.SignatureSize

	// expandedKeySize is the size of the expanded private key in PKCS#8.
	expandedKeySize = mldsa65.PrivateKeySize
)

// ErrVerificationFailed is returned when a signature does not match.
var ErrVerificationFailed = errors.New("mldsa: signature verification failed")

// SecretKey contains an ML-DSA-65 private key for creating digital signatures.
type SecretKey struct {
	key  *mldsa65.PrivateKey
	seed [SecretKeySize]byte
}

// GenerateKey creates a new, random private key.
func GenerateKey() *SecretKey {
	var seed [SecretKeySize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("mldsa: " + err.Error())
	}
	key, _ := ParseSecretKey(seed[:])
	return key
}

// ParseSecretKey creates a private key from a 32-byte seed.
func ParseSecretKey(seed []byte) (*SecretKey, error) {
	if len(seed) != SecretKeySize {
		return nil, errors.New("mldsa: seed must be 32 bytes")
	}
	k := new(SecretKey)
	copy(k.seed[:], seed)
	_, k.key = mldsa65.NewKeyFromSeed(&k.seed)
	return k, nil
}

// ParseSecretKeyDER parses a PKCS#8 DER buffer into a private key. The key
// must carry both the seed and the expanded form, and the two must agree.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	info, err := asn1ext.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	if info.Version != 0 {
		return nil, errors.New("mldsa: unsupported version")
	}
	if !info.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyMLDSA65) {
		return nil, errors.New("mldsa: not an ML-DSA-65 private key")
	}
	// SEQUENCE { seed OCTET STRING, expandedKey OCTET STRING }
	input := cryptobyte.String(info.PrivateKey)

	var inner, seed, expanded cryptobyte.String
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("mldsa: invalid private key structure")
	}
	if !inner.ReadASN1(&seed, cbasn1.OCTET_STRING) {
		return nil, errors.New("mldsa: invalid seed encoding")
	}
	if !inner.ReadASN1(&expanded, cbasn1.OCTET_STRING) || !inner.Empty() {
		return nil, errors.New("mldsa: invalid expanded key encoding")
	}
	if len(expanded) != expandedKeySize {
		return nil, errors.New("mldsa: expanded key must be 4032 bytes")
	}
	key, err := ParseSecretKey(seed)
	if err != nil {
		return nil, err
	}
	derived, _ := key.key.MarshalBinary()
	if subtle.ConstantTimeCompare(derived, expanded) != 1 {
		return nil, errors.New("mldsa: expanded key does not match seed")
	}
	return key, nil
}

// ParseSecretKeyPEM parses a PEM string into a private key.
func ParseSecretKeyPEM(s string) (*SecretKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PRIVATE KEY" {
		return nil, errors.New("mldsa: invalid PEM type: " + kind)
	}
	return ParseSecretKeyDER(blob)
}

// Marshal returns the 32-byte seed of the private key.
func (k *SecretKey) Marshal() []byte {
	return append([]byte{}, k.seed[:]...)
}

// MarshalDER serializes a private key into a PKCS#8 DER buffer.
func (k *SecretKey) MarshalDER() []byte {
	expanded, _ := k.key.MarshalBinary()

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1OctetString(k.seed[:])
		b.AddASN1OctetString(expanded)
	})
	inner, err := b.Bytes()
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	der, err := asn1ext.MarshalPKCS8PrivateKey(asn1ext.OIDPublicKeyMLDSA65, nil, inner)
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
	return &PublicKey{key: k.key.Public().(*mldsa65.PublicKey)}
}

// Sign creates a digital signature of the message. COSE signs with an empty
// context string.
func (k *SecretKey) Sign(message []byte) []byte {
	sig := make([]byte, SignatureSize)
	if err := mldsa65.SignTo(k.key, message, nil, false, sig); err != nil {
		panic("mldsa: " + err.Error())
	}
	return sig
}

// PublicKey contains an ML-DSA-65 public key for verifying digital signatures.
type PublicKey struct {
	key *mldsa65.PublicKey
}

// ParsePublicKey converts a 1952-byte encoding (the AKP pub value) into a
// public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, errors.New("mldsa: public key must be 1952 bytes")
	}
	key := new(mldsa65.PublicKey)
	if err := key.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &PublicKey{key: key}, nil
}

// ParsePublicKeyDER parses a PKIX DER buffer into a public key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	info, err := asn1ext.ParseSubjectPublicKeyInfo(der)
	if err != nil {
		return nil, err
	}
	if !info.Algorithm.Algorithm.Equal(asn1ext.OIDPublicKeyMLDSA65) {
		return nil, errors.New("mldsa: not an ML-DSA-65 public key")
	}
	if info.SubjectPublicKey.BitLength != PublicKeySize*8 {
		return nil, errors.New("mldsa: public key BIT STRING must be byte-aligned")
	}
	return ParsePublicKey(info.SubjectPublicKey.Bytes)
}

// ParsePublicKeyPEM parses a PEM string into a public key.
func ParsePublicKeyPEM(s string) (*PublicKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PUBLIC KEY" {
		return nil, errors.New("mldsa: invalid PEM type: " + kind)
	}
	return ParsePublicKeyDER(blob)
}

// Marshal converts a public key into its 1952-byte encoding.
func (k *PublicKey) Marshal() []byte {
	b, _ := k.key.MarshalBinary()
	return b
}

// MarshalDER serializes a public key into a PKIX DER buffer.
func (k *PublicKey) MarshalDER() []byte {
	der, err := asn1ext.MarshalSubjectPublicKeyInfo(asn1ext.OIDPublicKeyMLDSA65, nil, k.Marshal())
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	return der
}

// MarshalPEM serializes a public key into a PEM string.
func (k *PublicKey) MarshalPEM() string {
	return string(pem.Encode("PUBLIC KEY", k.MarshalDER()))
}

// Verify verifies a digital signature made with an empty context.
func (k *PublicKey) Verify(message, sig []byte) error {
	if len(sig) != SignatureSize || !mldsa65.Verify(k.key, message, nil, sig) {
		return ErrVerificationFailed
	}
	return nil
}
