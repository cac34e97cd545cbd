// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"hash"

	"github.com/dark-bio/cose-go/aead"
	"github.com/dark-bio/cose-go/cbor"
	"github.com/dark-bio/cose-go/mac"
)

// randomBytes returns n bytes from the system CSPRNG.
func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("cose: " + err.Error())
	}
	return b
}

// checkKeySize fails if the key does not match the size the algorithm fixes.
func checkKeySize(alg Algorithm, key []byte) error {
	if len(key)*8 != alg.KeySize() {
		return fmt.Errorf("%w: %v needs %d bits, have %d", ErrKeySize, alg, alg.KeySize(), len(key)*8)
	}
	return nil
}

// symmetricSecret extracts the secret of a symmetric key after checking it
// against the algorithm of the message.
func symmetricSecret(attrs *Attributes, key *Key) ([]byte, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	alg, err := attrs.algorithm()
	if err != nil {
		return nil, err
	}
	if err := checkKeyAlgorithm(key, alg); err != nil {
		return nil, err
	}
	secret := key.SymmetricKey()
	if secret == nil {
		return nil, ErrWrongKeyType
	}
	return secret, nil
}

// macBytes computes the tag of data with a MAC algorithm.
func macBytes(alg Algorithm, key, data []byte) ([]byte, error) {
	if alg.Family() != FamilyMAC {
		return nil, ErrUnsupportedMAC
	}
	if err := checkKeySize(alg, key); err != nil {
		return nil, err
	}
	var (
		h   hash.Hash
		err error
	)
	if alg.hash() != 0 {
		h, err = mac.NewHMAC(alg.hash(), key, alg.TagSize()/8)
	} else {
		h, err = mac.NewCBCMAC(key, alg.TagSize()/8)
	}
	if err != nil {
		return nil, malformed(err)
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// newAEAD creates the content cipher of an AEAD algorithm.
func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	if alg.Family() != FamilyAEAD {
		return nil, fmt.Errorf("%w: %v is not a content encryption algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if err := checkKeySize(alg, key); err != nil {
		return nil, err
	}
	var (
		c   cipher.AEAD
		err error
	)
	switch alg {
	case AlgorithmA128GCM, AlgorithmA192GCM, AlgorithmA256GCM:
		c, err = aead.NewGCM(key)
	case AlgorithmChaCha20Poly1305:
		c, err = aead.NewChaCha20Poly1305(key)
	default:
		c, err = aead.NewCCM(key, alg.ccmNonceSize(), alg.TagSize()/8)
	}
	if err != nil {
		return nil, malformed(err)
	}
	return c, nil
}

// resolveIV returns the nonce of a message: the full IV header if present,
// otherwise the partial IV left padded and XORed into the base IV.
func resolveIV(attrs *Attributes, size int, baseIV []byte) ([]byte, error) {
	if v, ok := attrs.Find(HeaderIV); ok {
		iv, ok := cbor.Bytes(v)
		if !ok {
			return nil, ErrMalformedIV
		}
		if len(iv) != size {
			return nil, ErrIVSize
		}
		return iv, nil
	}
	v, ok := attrs.Find(HeaderPartialIV)
	if !ok {
		return nil, ErrMissingIV
	}
	partial, ok := cbor.Bytes(v)
	if !ok {
		return nil, ErrMalformedIV
	}
	if len(baseIV) == 0 {
		return nil, fmt.Errorf("%w: partial IV without a base IV", ErrMissingIV)
	}
	if len(partial) > size || len(baseIV) > size {
		return nil, ErrIVSize
	}
	iv := make([]byte, size)
	copy(iv[size-len(partial):], partial)
	for i := range baseIV {
		iv[i] ^= baseIV[i]
	}
	return iv, nil
}

// seal encrypts the content under key, binding the protected headers. If no IV
// is given and generate is set, a random one is added to the unprotected
// headers.
func (e *envelope) seal(context string, alg Algorithm, key, baseIV []byte, generate bool) ([]byte, error) {
	if e.content == nil {
		return nil, ErrNoContent
	}
	c, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	iv, err := resolveIV(&e.Attributes, c.NonceSize(), baseIV)
	if errors.Is(err, ErrMissingIV) && generate {
		iv = randomBytes(c.NonceSize())
		err = e.Add(HeaderIV, iv, Unprotected)
	}
	if err != nil {
		return nil, err
	}
	prot, err := e.protectedBytes()
	if err != nil {
		return nil, err
	}
	ct := c.Seal(nil, iv, e.content, encContext(context, prot, e.ExternalAAD()))
	e.freeze(prot)
	return ct, nil
}

// open decrypts the ciphertext under key into the content.
func (e *envelope) open(context string, alg Algorithm, key, baseIV, ciphertext []byte) ([]byte, error) {
	if ciphertext == nil {
		return nil, ErrNoContent
	}
	c, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	iv, err := resolveIV(&e.Attributes, c.NonceSize(), baseIV)
	if err != nil {
		return nil, err
	}
	prot, err := e.protectedBytes()
	if err != nil {
		return nil, err
	}
	pt, err := c.Open(nil, iv, ciphertext, encContext(context, prot, e.ExternalAAD()))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	e.content = nonNil(pt)
	return e.content, nil
}

// authenticate computes the tag over the content, binding the protected
// headers.
func (e *envelope) authenticate(context string, alg Algorithm, key []byte) ([]byte, error) {
	if e.content == nil {
		return nil, ErrNoContent
	}
	if alg.Family() != FamilyMAC {
		return nil, ErrUnsupportedMAC
	}
	prot, err := e.protectedBytes()
	if err != nil {
		return nil, err
	}
	tag, err := macBytes(alg, key, bodyContext(context, prot, e.ExternalAAD(), e.content))
	if err != nil {
		return nil, err
	}
	e.freeze(prot)
	return tag, nil
}
