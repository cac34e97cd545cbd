// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rsa provides RSASSA-PSS signing and verification for COSE RSA keys,
// including multi-prime private keys.
//
// https://datatracker.ietf.org/doc/html/rfc8017
// https://datatracker.ietf.org/doc/html/rfc8230
package rsa

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"errors"
	"math/big"

	"github.com/dark-bio/cose-go/pem"
)

const (
	// MinBits is the smallest modulus accepted, RFC 8230 Section 2.
	MinBits = 2048

	// DefaultBits is the modulus size used by key generation.
	DefaultBits = 2048

	// PublicExponent is the only public exponent accepted.
	PublicExponent = 65537
)

// ErrVerificationFailed is returned when a signature does not match.
var ErrVerificationFailed = errors.New("rsa: signature verification failed")

// pssOptions are the RSASSA-PSS parameters COSE fixes: MGF1 with the message
// hash and a salt as long as the hash.
var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}

// PrimeInfo is one additional prime of a multi-prime key with its CRT
// exponent and coefficient, RFC 8017 Appendix A.1.2.
type PrimeInfo struct {
	R *big.Int // prime factor
	D *big.Int // CRT exponent, d mod (r-1)
	T *big.Int // CRT coefficient, (r_1 * ... * r_{i-1})^-1 mod r
}

// SecretKey contains an RSA private key usable for signing.
type SecretKey struct {
	inner *rsa.PrivateKey
}

// GenerateKey creates a new, random two-prime private key.
func GenerateKey(bits int) (*SecretKey, error) {
	if bits < MinBits {
		return nil, errors.New("rsa: modulus too small")
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &SecretKey{inner: key}, nil
}

// NewSecretKey wraps a standard library private key.
func NewSecretKey(key *rsa.PrivateKey) (*SecretKey, error) {
	if err := checkPublic(&key.PublicKey); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if key.Precomputed.Dp == nil {
		key.Precompute()
	}
	return &SecretKey{inner: key}, nil
}

// ParseSecretKey assembles a private key from its RFC 8017 components. The CRT
// values supplied must match the ones implied by the primes; they are checked,
// not trusted.
func ParseSecretKey(n, e, d, p, q, dp, dq, qinv *big.Int, others []PrimeInfo) (*SecretKey, error) {
	for _, v := range []*big.Int{d, p, q, dp, dq, qinv} {
		if v == nil || v.Sign() <= 0 {
			return nil, errors.New("rsa: missing private key component")
		}
	}
	for _, other := range others {
		if other.R == nil || other.D == nil || other.T == nil {
			return nil, errors.New("rsa: missing multi-prime component")
		}
	}
	pub, err := newPublicKey(n, e)
	if err != nil {
		return nil, err
	}
	key := &rsa.PrivateKey{
		PublicKey: *pub,
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	for _, other := range others {
		key.Primes = append(key.Primes, other.R)
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	key.Precompute()

	if key.Precomputed.Dp.Cmp(dp) != 0 || key.Precomputed.Dq.Cmp(dq) != 0 || key.Precomputed.Qinv.Cmp(qinv) != 0 {
		return nil, errors.New("rsa: inconsistent CRT parameters")
	}
	sk := &SecretKey{inner: key}
	for i, other := range sk.extraPrimes() {
		if other.D.Cmp(others[i].D) != 0 || other.T.Cmp(others[i].T) != 0 {
			return nil, errors.New("rsa: inconsistent multi-prime CRT parameters")
		}
	}
	return sk, nil
}

// ParseSecretKeyDER parses a PKCS#8 DER-encoded private key.
func ParseSecretKeyDER(der []byte) (*SecretKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("rsa: not an RSA private key")
	}
	// Go's ASN1 parser permits unused trailing bytes, which may end up with a
	// weird interplay with the optional RSA CRT parameters (junk ignored). We
	// don't want to allow that, so just round trip the format and see if it's
	// matching or not.
	recoded, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(recoded, der) {
		return nil, errors.New("rsa: non-canonical DER encoding")
	}
	return NewSecretKey(rsaKey)
}

// ParseSecretKeyPEM parses a PEM-encoded private key.
func ParseSecretKeyPEM(s string) (*SecretKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PRIVATE KEY" {
		return nil, errors.New("rsa: invalid PEM type: " + kind)
	}
	return ParseSecretKeyDER(blob)
}

// Crypto returns the standard library private key.
func (k *SecretKey) Crypto() *rsa.PrivateKey {
	return k.inner
}

// Components returns the private exponent and the two-prime CRT values.
func (k *SecretKey) Components() (d, p, q, dp, dq, qinv *big.Int) {
	pre := k.inner.Precomputed
	return k.inner.D, k.inner.Primes[0], k.inner.Primes[1], pre.Dp, pre.Dq, pre.Qinv
}

// OtherPrimes returns the third and subsequent primes of a multi-prime key.
func (k *SecretKey) OtherPrimes() []PrimeInfo {
	return k.extraPrimes()
}

// MarshalDER serializes the private key to PKCS#8 DER format.
func (k *SecretKey) MarshalDER() []byte {
	der, err := x509.MarshalPKCS8PrivateKey(k.inner)
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	return der
}

// MarshalPEM serializes the private key to PEM format.
func (k *SecretKey) MarshalPEM() string {
	return string(pem.Encode("PRIVATE KEY", k.MarshalDER()))
}

// PublicKey returns the public counterpart of the secret key.
func (k *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{inner: &k.inner.PublicKey}
}

// Sign creates an RSASSA-PSS signature of the message, hashed with h.
func (k *SecretKey) Sign(message []byte, h crypto.Hash) ([]byte, error) {
	hasher := h.New()
	hasher.Write(message)
	return rsa.SignPSS(rand.Reader, k.inner, h, hasher.Sum(nil), pssOptions)
}

// extraPrimes derives the CRT values of every prime past the first two.
func (k *SecretKey) extraPrimes() []PrimeInfo {
	var (
		primes = k.inner.Primes
		infos  []PrimeInfo
		prod   = new(big.Int).Mul(primes[0], primes[1])
		one    = big.NewInt(1)
	)
	for i := 2; i < len(primes); i++ {
		r := primes[i]
		info := PrimeInfo{
			R: new(big.Int).Set(r),
			D: new(big.Int).Mod(k.inner.D, new(big.Int).Sub(r, one)),
			T: new(big.Int).ModInverse(prod, r),
		}
		infos = append(infos, info)
		prod.Mul(prod, r)
	}
	return infos
}

// PublicKey contains an RSA public key usable for verification.
type PublicKey struct {
	inner *rsa.PublicKey
}

// NewPublicKey wraps a standard library public key.
func NewPublicKey(key *rsa.PublicKey) (*PublicKey, error) {
	if err := checkPublic(key); err != nil {
		return nil, err
	}
	return &PublicKey{inner: key}, nil
}

// ParsePublicKey assembles a public key from its modulus and exponent.
func ParsePublicKey(n, e *big.Int) (*PublicKey, error) {
	pub, err := newPublicKey(n, e)
	if err != nil {
		return nil, err
	}
	return &PublicKey{inner: pub}, nil
}

// ParsePublicKeyDER parses a PKIX DER-encoded public key.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("rsa: not an RSA public key")
	}
	return NewPublicKey(rsaKey)
}

// ParsePublicKeyPEM parses a PEM-encoded public key.
func ParsePublicKeyPEM(s string) (*PublicKey, error) {
	kind, blob, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, err
	}
	if kind != "PUBLIC KEY" {
		return nil, errors.New("rsa: invalid PEM type: " + kind)
	}
	return ParsePublicKeyDER(blob)
}

// Crypto returns the standard library public key.
func (k *PublicKey) Crypto() *rsa.PublicKey {
	return k.inner
}

// Components returns the modulus and public exponent.
func (k *PublicKey) Components() (n, e *big.Int) {
	return k.inner.N, big.NewInt(int64(k.inner.E))
}

// MarshalDER serializes the public key to PKIX DER format.
func (k *PublicKey) MarshalDER() []byte {
	der, err := x509.MarshalPKIXPublicKey(k.inner)
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	return der
}

// MarshalPEM serializes the public key to PEM format.
func (k *PublicKey) MarshalPEM() string {
	return string(pem.Encode("PUBLIC KEY", k.MarshalDER()))
}

// Verify verifies an RSASSA-PSS signature of the message, hashed with h.
func (k *PublicKey) Verify(message, sig []byte, h crypto.Hash) error {
	hasher := h.New()
	hasher.Write(message)
	if err := rsa.VerifyPSS(k.inner, h, hasher.Sum(nil), sig, pssOptions); err != nil {
		return ErrVerificationFailed
	}
	return nil
}

// newPublicKey validates and assembles a standard library public key.
func newPublicKey(n, e *big.Int) (*rsa.PublicKey, error) {
	if n == nil || e == nil || n.Sign() <= 0 {
		return nil, errors.New("rsa: invalid modulus")
	}
	if !e.IsInt64() {
		return nil, errors.New("rsa: exponent must be 65537")
	}
	pub := &rsa.PublicKey{N: n, E: int(e.Int64())}
	if err := checkPublic(pub); err != nil {
		return nil, err
	}
	return pub, nil
}

// checkPublic enforces the modulus and exponent policy.
func checkPublic(key *rsa.PublicKey) error {
	if key.N.BitLen() < MinBits {
		return errors.New("rsa: modulus too small")
	}
	// The modulus must be odd (product of odd primes)
	if key.N.Bit(0) == 0 {
		return errors.New("rsa: modulus must be odd")
	}
	// Whilst the RSA algorithm permits different exponents, every modern
	// system only ever uses 65537 and most also enforce this. Might as
	// well do the same.
	if key.E != PublicExponent {
		return errors.New("rsa: exponent must be 65537")
	}
	return nil
}
