// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"crypto"
	"fmt"
	"strconv"
	"strings"

	"github.com/dark-bio/cose-go/cbor"
)

// Algorithm is a COSE algorithm identifier from the closed set this package
// understands, RFC 8152 Sections 8 to 13 and the ML-DSA draft.
type Algorithm int64

// Content encryption algorithms.
const (
	AlgorithmA128GCM          Algorithm = 1
	AlgorithmA192GCM          Algorithm = 2
	AlgorithmA256GCM          Algorithm = 3
	AlgorithmAESCCM16_64_128  Algorithm = 10
	AlgorithmAESCCM16_64_256  Algorithm = 11
	AlgorithmAESCCM64_64_128  Algorithm = 12
	AlgorithmAESCCM64_64_256  Algorithm = 13
	AlgorithmChaCha20Poly1305 Algorithm = 24
	AlgorithmAESCCM16_128_128 Algorithm = 30
	AlgorithmAESCCM16_128_256 Algorithm = 31
	AlgorithmAESCCM64_128_128 Algorithm = 32
	AlgorithmAESCCM64_128_256 Algorithm = 33
)

// MAC algorithms.
const (
	AlgorithmHMAC256_64    Algorithm = 4
	AlgorithmHMAC256       Algorithm = 5
	AlgorithmHMAC384       Algorithm = 6
	AlgorithmHMAC512       Algorithm = 7
	AlgorithmAESMAC128_64  Algorithm = 14
	AlgorithmAESMAC256_64  Algorithm = 15
	AlgorithmAESMAC128_128 Algorithm = 25
	AlgorithmAESMAC256_128 Algorithm = 26
)

// Key distribution algorithms.
const (
	AlgorithmA128KW           Algorithm = -3
	AlgorithmA192KW           Algorithm = -4
	AlgorithmA256KW           Algorithm = -5
	AlgorithmDirect           Algorithm = -6
	AlgorithmDirectHKDFSHA256 Algorithm = -10
	AlgorithmDirectHKDFSHA512 Algorithm = -11
	AlgorithmDirectHKDFAES128 Algorithm = -12
	AlgorithmDirectHKDFAES256 Algorithm = -13
	AlgorithmECDHESHKDF256    Algorithm = -25
	AlgorithmECDHESHKDF512    Algorithm = -26
	AlgorithmECDHSSHKDF256    Algorithm = -27
	AlgorithmECDHSSHKDF512    Algorithm = -28
	AlgorithmECDHESA128KW     Algorithm = -29
	AlgorithmECDHESA192KW     Algorithm = -30
	AlgorithmECDHESA256KW     Algorithm = -31
	AlgorithmECDHSSA128KW     Algorithm = -32
	AlgorithmECDHSSA192KW     Algorithm = -33
	AlgorithmECDHSSA256KW     Algorithm = -34
)

// Signature algorithms.
const (
	AlgorithmES256   Algorithm = -7
	AlgorithmEdDSA   Algorithm = -8
	AlgorithmES384   Algorithm = -35
	AlgorithmES512   Algorithm = -36
	AlgorithmPS256   Algorithm = -37
	AlgorithmPS384   Algorithm = -38
	AlgorithmPS512   Algorithm = -39
	AlgorithmMLDSA65 Algorithm = -49
)

// Family groups algorithms by the operation that consumes them.
type Family int

const (
	FamilyAEAD Family = iota + 1
	FamilyMAC
	FamilyKeyWrap
	FamilyDirect
	FamilyDirectKDF
	FamilyKeyAgreement
	FamilyKeyAgreementWrap
	FamilySignature
)

// algorithmInfo is the registry entry of an algorithm. Key and tag sizes are
// in bits, zero where not applicable.
type algorithmInfo struct {
	name    string
	family  Family
	keyBits int
	tagBits int
	hash    crypto.Hash // signature, HMAC and HKDF hash
}

var algorithms = map[Algorithm]algorithmInfo{
	AlgorithmA128GCM:          {"A128GCM", FamilyAEAD, 128, 128, 0},
	AlgorithmA192GCM:          {"A192GCM", FamilyAEAD, 192, 128, 0},
	AlgorithmA256GCM:          {"A256GCM", FamilyAEAD, 256, 128, 0},
	AlgorithmAESCCM16_64_128:  {"AES-CCM-16-64-128", FamilyAEAD, 128, 64, 0},
	AlgorithmAESCCM16_64_256:  {"AES-CCM-16-64-256", FamilyAEAD, 256, 64, 0},
	AlgorithmAESCCM64_64_128:  {"AES-CCM-64-64-128", FamilyAEAD, 128, 64, 0},
	AlgorithmAESCCM64_64_256:  {"AES-CCM-64-64-256", FamilyAEAD, 256, 64, 0},
	AlgorithmChaCha20Poly1305: {"ChaCha20/Poly1305", FamilyAEAD, 256, 128, 0},
	AlgorithmAESCCM16_128_128: {"AES-CCM-16-128-128", FamilyAEAD, 128, 128, 0},
	AlgorithmAESCCM16_128_256: {"AES-CCM-16-128-256", FamilyAEAD, 256, 128, 0},
	AlgorithmAESCCM64_128_128: {"AES-CCM-64-128-128", FamilyAEAD, 128, 128, 0},
	AlgorithmAESCCM64_128_256: {"AES-CCM-64-128-256", FamilyAEAD, 256, 128, 0},

	AlgorithmHMAC256_64:    {"HMAC 256/64", FamilyMAC, 256, 64, crypto.SHA256},
	AlgorithmHMAC256:       {"HMAC 256/256", FamilyMAC, 256, 256, crypto.SHA256},
	AlgorithmHMAC384:       {"HMAC 384/384", FamilyMAC, 384, 384, crypto.SHA384},
	AlgorithmHMAC512:       {"HMAC 512/512", FamilyMAC, 512, 512, crypto.SHA512},
	AlgorithmAESMAC128_64:  {"AES-MAC 128/64", FamilyMAC, 128, 64, 0},
	AlgorithmAESMAC256_64:  {"AES-MAC 256/64", FamilyMAC, 256, 64, 0},
	AlgorithmAESMAC128_128: {"AES-MAC 128/128", FamilyMAC, 128, 128, 0},
	AlgorithmAESMAC256_128: {"AES-MAC 256/128", FamilyMAC, 256, 128, 0},

	AlgorithmA128KW:           {"A128KW", FamilyKeyWrap, 128, 64, 0},
	AlgorithmA192KW:           {"A192KW", FamilyKeyWrap, 192, 64, 0},
	AlgorithmA256KW:           {"A256KW", FamilyKeyWrap, 256, 64, 0},
	AlgorithmDirect:           {"direct", FamilyDirect, 0, 0, 0},
	AlgorithmDirectHKDFSHA256: {"direct+HKDF-SHA-256", FamilyDirectKDF, 256, 0, crypto.SHA256},
	AlgorithmDirectHKDFSHA512: {"direct+HKDF-SHA-512", FamilyDirectKDF, 512, 0, crypto.SHA512},
	AlgorithmDirectHKDFAES128: {"direct+HKDF-AES-128", FamilyDirectKDF, 128, 0, 0},
	AlgorithmDirectHKDFAES256: {"direct+HKDF-AES-256", FamilyDirectKDF, 256, 0, 0},
	AlgorithmECDHESHKDF256:    {"ECDH-ES + HKDF-256", FamilyKeyAgreement, 0, 0, crypto.SHA256},
	AlgorithmECDHESHKDF512:    {"ECDH-ES + HKDF-512", FamilyKeyAgreement, 0, 0, crypto.SHA512},
	AlgorithmECDHSSHKDF256:    {"ECDH-SS + HKDF-256", FamilyKeyAgreement, 0, 0, crypto.SHA256},
	AlgorithmECDHSSHKDF512:    {"ECDH-SS + HKDF-512", FamilyKeyAgreement, 0, 0, crypto.SHA512},
	AlgorithmECDHESA128KW:     {"ECDH-ES + A128KW", FamilyKeyAgreementWrap, 128, 64, crypto.SHA256},
	AlgorithmECDHESA192KW:     {"ECDH-ES + A192KW", FamilyKeyAgreementWrap, 192, 64, crypto.SHA256},
	AlgorithmECDHESA256KW:     {"ECDH-ES + A256KW", FamilyKeyAgreementWrap, 256, 64, crypto.SHA256},
	AlgorithmECDHSSA128KW:     {"ECDH-SS + A128KW", FamilyKeyAgreementWrap, 128, 64, crypto.SHA256},
	AlgorithmECDHSSA192KW:     {"ECDH-SS + A192KW", FamilyKeyAgreementWrap, 192, 64, crypto.SHA256},
	AlgorithmECDHSSA256KW:     {"ECDH-SS + A256KW", FamilyKeyAgreementWrap, 256, 64, crypto.SHA256},

	AlgorithmES256:   {"ES256", FamilySignature, 0, 0, crypto.SHA256},
	AlgorithmEdDSA:   {"EdDSA", FamilySignature, 0, 0, 0},
	AlgorithmES384:   {"ES384", FamilySignature, 0, 0, crypto.SHA384},
	AlgorithmES512:   {"ES512", FamilySignature, 0, 0, crypto.SHA512},
	AlgorithmPS256:   {"PS256", FamilySignature, 0, 0, crypto.SHA256},
	AlgorithmPS384:   {"PS384", FamilySignature, 0, 0, crypto.SHA384},
	AlgorithmPS512:   {"PS512", FamilySignature, 0, 0, crypto.SHA512},
	AlgorithmMLDSA65: {"ML-DSA-65", FamilySignature, 0, 0, 0},
}

// ResolveAlgorithm maps a decoded header value onto a registered algorithm.
// An absent value fails with ErrNoAlgorithm, anything that is not a registered
// integer (text names included) with ErrUnknownAlgorithm.
func ResolveAlgorithm(v any, present bool) (Algorithm, error) {
	if !present || v == nil {
		return 0, ErrNoAlgorithm
	}
	id, ok := cbor.Int(v)
	if !ok {
		return 0, ErrUnknownAlgorithm
	}
	if _, ok := algorithms[Algorithm(id)]; !ok {
		return 0, ErrUnknownAlgorithm
	}
	return Algorithm(id), nil
}

// ParseAlgorithm maps a registered name or a decimal identifier, as a person
// would type it, onto an algorithm. Names compare case insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ResolveAlgorithm(id, true)
	}
	for alg, info := range algorithms {
		if strings.EqualFold(info.name, s) {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Family returns the operation family, zero for unregistered values.
func (a Algorithm) Family() Family {
	return algorithms[a].family
}

// KeySize returns the symmetric key length in bits, zero if not applicable.
func (a Algorithm) KeySize() int {
	return algorithms[a].keyBits
}

// TagSize returns the authentication tag length in bits, zero if not
// applicable.
func (a Algorithm) TagSize() int {
	return algorithms[a].tagBits
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	if info, ok := algorithms[a]; ok {
		return info.name
	}
	return fmt.Sprintf("Algorithm(%d)", int64(a))
}

// hash returns the hash function bound to the algorithm.
func (a Algorithm) hash() crypto.Hash {
	return algorithms[a].hash
}

// direct reports whether the recipient algorithm yields the content key itself
// rather than transporting a wrapped one.
func (a Algorithm) direct() bool {
	switch a.Family() {
	case FamilyDirect, FamilyDirectKDF, FamilyKeyAgreement:
		return true
	}
	return false
}

// static reports whether a key agreement algorithm uses a static sender key.
func (a Algorithm) static() bool {
	switch a {
	case AlgorithmECDHSSHKDF256, AlgorithmECDHSSHKDF512,
		AlgorithmECDHSSA128KW, AlgorithmECDHSSA192KW, AlgorithmECDHSSA256KW:
		return true
	}
	return false
}

// keyWrap returns the AES key wrap algorithm a key agreement wrap mode uses.
func (a Algorithm) keyWrap() Algorithm {
	switch a {
	case AlgorithmECDHESA128KW, AlgorithmECDHSSA128KW:
		return AlgorithmA128KW
	case AlgorithmECDHESA192KW, AlgorithmECDHSSA192KW:
		return AlgorithmA192KW
	case AlgorithmECDHESA256KW, AlgorithmECDHSSA256KW:
		return AlgorithmA256KW
	}
	return 0
}

// IVSize returns the nonce length in bytes of a content encryption algorithm,
// zero for other families.
func (a Algorithm) IVSize() int {
	switch {
	case a.Family() != FamilyAEAD:
		return 0
	case a.ccmNonceSize() != 0:
		return a.ccmNonceSize()
	}
	return 12
}

// ccmNonceSize returns the nonce size of a CCM variant: 13 bytes for a 16 bit
// length field, 7 bytes for a 64 bit one.
func (a Algorithm) ccmNonceSize() int {
	switch a {
	case AlgorithmAESCCM16_64_128, AlgorithmAESCCM16_64_256,
		AlgorithmAESCCM16_128_128, AlgorithmAESCCM16_128_256:
		return 13
	case AlgorithmAESCCM64_64_128, AlgorithmAESCCM64_64_256,
		AlgorithmAESCCM64_128_128, AlgorithmAESCCM64_128_256:
		return 7
	}
	return 0
}
