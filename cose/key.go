// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"fmt"
	"maps"
	"math/big"
	"slices"

	"github.com/dark-bio/cose-go/cbor"
	"github.com/dark-bio/cose-go/ecdh"
	"github.com/dark-bio/cose-go/ecdsa"
	"github.com/dark-bio/cose-go/ed448"
	"github.com/dark-bio/cose-go/eddsa"
	"github.com/dark-bio/cose-go/mldsa"
	"github.com/dark-bio/cose-go/rsa"
)

// KeyType is the kty discriminant of a COSE key, RFC 8152 Section 13.
type KeyType int64

const (
	KeyTypeOKP       KeyType = 1
	KeyTypeEC2       KeyType = 2
	KeyTypeRSA       KeyType = 3
	KeyTypeSymmetric KeyType = 4
	KeyTypeAKP       KeyType = 7
)

// Curve is an elliptic curve identifier of an EC2 or OKP key. The values of
// the key agreement curves equal the ecdh package's identifiers.
type Curve int64

const (
	CurveP256    Curve = 1
	CurveP384    Curve = 2
	CurveP521    Curve = 3
	CurveX25519  Curve = 4
	CurveX448    Curve = 5
	CurveEd25519 Curve = 6
	CurveEd448   Curve = 7
)

// KeyOp is a permitted operation listed in a key's key_ops.
type KeyOp int64

const (
	KeyOpSign       KeyOp = 1
	KeyOpVerify     KeyOp = 2
	KeyOpEncrypt    KeyOp = 3
	KeyOpDecrypt    KeyOp = 4
	KeyOpWrapKey    KeyOp = 5
	KeyOpUnwrapKey  KeyOp = 6
	KeyOpDeriveKey  KeyOp = 7
	KeyOpDeriveBits KeyOp = 8
	KeyOpMACCreate  KeyOp = 9
	KeyOpMACVerify  KeyOp = 10
)

// Common key labels.
const (
	KeyLabelKeyType   int64 = 1
	KeyLabelKeyID     int64 = 2
	KeyLabelAlgorithm int64 = 3
	KeyLabelKeyOps    int64 = 4
	KeyLabelBaseIV    int64 = 5
)

// EC2 and OKP key labels.
const (
	KeyLabelCurve int64 = -1
	KeyLabelX     int64 = -2
	KeyLabelY     int64 = -3
	KeyLabelD     int64 = -4
)

// RSA key labels, RFC 8230 Section 4.
const (
	KeyLabelRSAN     int64 = -1
	KeyLabelRSAE     int64 = -2
	KeyLabelRSAD     int64 = -3
	KeyLabelRSAP     int64 = -4
	KeyLabelRSAQ     int64 = -5
	KeyLabelRSADP    int64 = -6
	KeyLabelRSADQ    int64 = -7
	KeyLabelRSAQInv  int64 = -8
	KeyLabelRSAOther int64 = -9
	KeyLabelRSARi    int64 = -10
	KeyLabelRSADi    int64 = -11
	KeyLabelRSATi    int64 = -12
)

// Symmetric and AKP key labels.
const (
	KeyLabelSymmetricK int64 = -1
	KeyLabelAKPPublic  int64 = -1
	KeyLabelAKPPrivate int64 = -2
)

// marshaler is implemented by the public keys whose COSE form is a single
// byte string.
type marshaler interface {
	Marshal() []byte
}

// Key is a COSE key: a CBOR map plus the native key handles derived from it
// at construction. The material labels (kty and every negative label) never
// change afterwards, so the handles stay in sync with the map and a Key may be
// shared between goroutines for signing and verification.
type Key struct {
	m    map[any]any
	pub  any // *ecdsa.PublicKey, *eddsa.PublicKey, *ed448.PublicKey, *ecdh.PublicKey, *rsa.PublicKey or *mldsa.PublicKey
	priv any // matching secret key, nil for public keys
}

// NewKey validates a key map and derives its native handles.
func NewKey(m map[any]any) (*Key, error) {
	k := &Key{m: make(map[any]any, len(m))}
	for label, value := range m {
		key, err := normalizeLabel(label)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		k.m[key] = value
	}
	if err := k.load(); err != nil {
		return nil, err
	}
	return k, nil
}

// ParseKey decodes and validates a CBOR encoded key.
func ParseKey(data []byte) (*Key, error) {
	v, err := cbor.Decode(data)
	if err != nil {
		return nil, malformed(err)
	}
	m, ok := cbor.Map(v)
	if !ok {
		return nil, ErrMalformedKey
	}
	return NewKey(m)
}

// MarshalCBOR implements cbor.Marshaler.
func (k *Key) MarshalCBOR() ([]byte, error) {
	data, err := cbor.Marshal(k.m)
	if err != nil {
		return nil, malformed(err)
	}
	return data, nil
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (k *Key) UnmarshalCBOR(data []byte) error {
	parsed, err := ParseKey(data)
	if err != nil {
		return err
	}
	*k = *parsed
	return nil
}

// Map returns a copy of the key map.
func (k *Key) Map() map[any]any {
	return maps.Clone(k.m)
}

// Get returns the value stored under a label.
func (k *Key) Get(label any) (any, bool) {
	key, err := normalizeLabel(label)
	if err != nil {
		return nil, false
	}
	v, ok := k.m[key]
	return v, ok
}

// Add sets a descriptive label such as the key id, algorithm, key_ops, base IV
// or an application defined positive or text label. The key type and the key
// material are immutable.
func (k *Key) Add(label, value any) error {
	key, err := normalizeLabel(label)
	if err != nil {
		return err
	}
	if n, ok := key.(int64); ok && (n == KeyLabelKeyType || n < 0) {
		return ErrKeyImmutable
	}
	switch key {
	case KeyLabelKeyID, KeyLabelBaseIV:
		if _, ok := cbor.Bytes(value); !ok {
			return ErrMalformedKey
		}
	case KeyLabelAlgorithm:
		alg, ok := cbor.Int(value)
		if !ok {
			return ErrMalformedKey
		}
		value = alg
	case KeyLabelKeyOps:
		if _, ok := cbor.Array(value); !ok {
			return ErrMalformedKey
		}
	}
	k.m[key] = value
	return nil
}

// SetKeyOps replaces the key_ops of the key.
func (k *Key) SetKeyOps(ops ...KeyOp) {
	list := make([]any, len(ops))
	for i, op := range ops {
		list[i] = int64(op)
	}
	k.m[KeyLabelKeyOps] = list
}

// Type returns the key type.
func (k *Key) Type() KeyType {
	kty, _ := cbor.Int(k.m[KeyLabelKeyType])
	return KeyType(kty)
}

// Curve returns the curve of an EC2 or OKP key, zero for other key types.
func (k *Key) Curve() Curve {
	if t := k.Type(); t != KeyTypeEC2 && t != KeyTypeOKP {
		return 0
	}
	crv, _ := cbor.Int(k.m[KeyLabelCurve])
	return Curve(crv)
}

// KeyID returns the key id, nil if the key has none.
func (k *Key) KeyID() []byte {
	kid, _ := cbor.Bytes(k.m[KeyLabelKeyID])
	return kid
}

// Algorithm returns the algorithm the key is restricted to, if any.
func (k *Key) Algorithm() (Algorithm, bool) {
	v, ok := k.m[KeyLabelAlgorithm]
	if !ok {
		return 0, false
	}
	alg, ok := cbor.Int(v)
	return Algorithm(alg), ok
}

// BaseIV returns the base IV that partial IVs are combined with, nil if the key
// has none.
func (k *Key) BaseIV() []byte {
	iv, _ := cbor.Bytes(k.m[KeyLabelBaseIV])
	return iv
}

// KeyOps returns the declared key operations, nil if the key declares none.
func (k *Key) KeyOps() []KeyOp {
	v, ok := k.m[KeyLabelKeyOps]
	if !ok {
		return nil
	}
	list, _ := cbor.Array(v)
	ops := make([]KeyOp, 0, len(list))
	for _, item := range list {
		if op, ok := cbor.Int(item); ok {
			ops = append(ops, KeyOp(op))
		}
	}
	return ops
}

// HasAlgorithm reports whether the key is restricted to alg. Zero asks whether
// the key declares no algorithm at all.
func (k *Key) HasAlgorithm(alg Algorithm) bool {
	have, ok := k.Algorithm()
	if !ok {
		return alg == 0
	}
	return have == alg
}

// HasKeyID reports whether the key id equals kid. Nil asks whether the key has
// no key id at all.
func (k *Key) HasKeyID(kid []byte) bool {
	have := k.KeyID()
	if kid == nil {
		return have == nil
	}
	return have != nil && bytes.Equal(have, kid)
}

// HasKeyType reports whether the key is of the given type.
func (k *Key) HasKeyType(kty KeyType) bool {
	return k.Type() == kty
}

// HasKeyOp reports whether the key declares op in its key_ops.
func (k *Key) HasKeyOp(op KeyOp) bool {
	return slices.Contains(k.KeyOps(), op)
}

// allows reports whether the key may be used for op: keys without key_ops are
// unrestricted.
func (k *Key) allows(op KeyOp) bool {
	if _, ok := k.m[KeyLabelKeyOps]; !ok {
		return true
	}
	return k.HasKeyOp(op)
}

// HasPrivate reports whether the key holds secret material.
func (k *Key) HasPrivate() bool {
	return k.priv != nil || k.Type() == KeyTypeSymmetric
}

// SymmetricKey returns the key bytes of a symmetric key, nil otherwise.
func (k *Key) SymmetricKey() []byte {
	if k.Type() != KeyTypeSymmetric {
		return nil
	}
	b, _ := cbor.Bytes(k.m[KeyLabelSymmetricK])
	return b
}

// Public returns the native public key handle from this module's primitive
// packages, nil for symmetric keys.
func (k *Key) Public() any {
	return k.pub
}

// Private returns the native private key handle from this module's primitive
// packages, nil if the key holds no private part.
func (k *Key) Private() any {
	return k.priv
}

// PublicKey returns the public projection of the key: the key type, curve and
// public fields of the type together with every positive integer and text
// label. Private components are dropped, public ones derived when the map only
// held the private part. Symmetric keys have no projection and return nil.
func (k *Key) PublicKey() *Key {
	if k.Type() == KeyTypeSymmetric {
		return nil
	}
	m := make(map[any]any)
	for label, value := range k.m {
		switch l := label.(type) {
		case string:
			m[l] = value
		case int64:
			if l > 0 {
				m[l] = value
			}
		}
	}
	switch pub := k.pub.(type) {
	case *ecdsa.PublicKey:
		x, y := pub.Coordinates()
		m[KeyLabelCurve], m[KeyLabelX], m[KeyLabelY] = int64(k.Curve()), x, y
	case *ecdh.PublicKey:
		if pub.Curve().Montgomery() {
			m[KeyLabelCurve], m[KeyLabelX] = int64(k.Curve()), pub.Marshal()
		} else {
			x, y, _ := pub.Coordinates()
			m[KeyLabelCurve], m[KeyLabelX], m[KeyLabelY] = int64(k.Curve()), x, y
		}
	case *eddsa.PublicKey, *ed448.PublicKey:
		m[KeyLabelCurve], m[KeyLabelX] = int64(k.Curve()), pub.(marshaler).Marshal()
	case *rsa.PublicKey:
		n, e := pub.Components()
		m[KeyLabelRSAN], m[KeyLabelRSAE] = n.Bytes(), e.Bytes()
	case *mldsa.PublicKey:
		m[KeyLabelAKPPublic] = pub.Marshal()
	}
	return &Key{m: m, pub: k.pub}
}

// malformedKey wraps a primitive package error into ErrMalformedKey.
func malformedKey(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedKey, err)
}

// field returns a byte string field, failing if present with another type.
func (k *Key) field(label int64) ([]byte, bool, error) {
	v, ok := k.m[label]
	if !ok {
		return nil, false, nil
	}
	b, ok := cbor.Bytes(v)
	if !ok {
		return nil, true, ErrMalformedKey
	}
	return b, true, nil
}

// load validates the map and derives the native handles.
func (k *Key) load() error {
	v, ok := k.m[KeyLabelKeyType]
	if !ok {
		return ErrMalformedKey
	}
	kty, ok := cbor.Int(v)
	if !ok {
		return ErrMalformedKey
	}
	for _, label := range []int64{KeyLabelKeyID, KeyLabelBaseIV} {
		if _, _, err := k.field(label); err != nil {
			return err
		}
	}
	if v, ok := k.m[KeyLabelAlgorithm]; ok {
		alg, ok := cbor.Int(v)
		if !ok {
			return ErrMalformedKey
		}
		k.m[KeyLabelAlgorithm] = alg
	}
	if v, ok := k.m[KeyLabelKeyOps]; ok {
		if _, ok := cbor.Array(v); !ok {
			return ErrMalformedKey
		}
	}
	switch KeyType(kty) {
	case KeyTypeSymmetric:
		if _, ok, err := k.field(KeyLabelSymmetricK); err != nil || !ok {
			return ErrMalformedKey
		}
		return nil
	case KeyTypeEC2:
		return k.loadEC2()
	case KeyTypeOKP:
		return k.loadOKP()
	case KeyTypeRSA:
		return k.loadRSA()
	case KeyTypeAKP:
		return k.loadAKP()
	default:
		return ErrUnsupportedKeyType
	}
}

// loadEC2 derives the handles of an EC2 key. The public point comes from x and
// y (or x and the sign bit of y) or is derived from d.
func (k *Key) loadEC2() error {
	crv, ok := cbor.Int(k.m[KeyLabelCurve])
	if !ok {
		return ErrMalformedKey
	}
	var curve ecdsa.Curve
	switch Curve(crv) {
	case CurveP256:
		curve = ecdsa.P256
	case CurveP384:
		curve = ecdsa.P384
	case CurveP521:
		curve = ecdsa.P521
	default:
		return fmt.Errorf("%w: unsupported EC2 curve %d", ErrMalformedKey, crv)
	}
	d, hasD, err := k.field(KeyLabelD)
	if err != nil {
		return err
	}
	x, hasX, err := k.field(KeyLabelX)
	if err != nil {
		return err
	}
	var (
		secret *ecdsa.SecretKey
		public *ecdsa.PublicKey
	)
	if hasD {
		if secret, err = ecdsa.ParseSecretKey(curve, d); err != nil {
			return malformedKey(err)
		}
	}
	if hasX {
		yv, hasY := k.m[KeyLabelY]
		switch y := yv.(type) {
		case []byte:
			public, err = ecdsa.ParsePublicKey(curve, x, y)
		case bool:
			public, err = ecdsa.ParseCompressedPublicKey(curve, x, y)
		default:
			if hasY || secret == nil {
				return ErrMalformedKey
			}
		}
		if err != nil {
			return malformedKey(err)
		}
	}
	switch {
	case secret != nil && public != nil:
		if !secret.PublicKey().Crypto().Equal(public.Crypto()) {
			return fmt.Errorf("%w: public point does not match the private scalar", ErrKeyMismatch)
		}
	case secret != nil:
		public = secret.PublicKey()
		if derived, _ := public.Coordinates(); hasX && !bytes.Equal(derived, x) {
			return fmt.Errorf("%w: public point does not match the private scalar", ErrKeyMismatch)
		}
	case public == nil:
		return ErrMalformedKey
	}
	k.pub = public
	if secret != nil {
		k.priv = secret
	}
	return nil
}

// loadOKP derives the handles of an OKP key.
func (k *Key) loadOKP() error {
	crv, ok := cbor.Int(k.m[KeyLabelCurve])
	if !ok {
		return ErrMalformedKey
	}
	var (
		parseSecret func([]byte) (any, marshaler, error)
		parsePublic func([]byte) (marshaler, error)
	)
	switch Curve(crv) {
	case CurveEd25519:
		parseSecret = func(d []byte) (any, marshaler, error) {
			sk, err := eddsa.ParseSecretKey(d)
			if err != nil {
				return nil, nil, err
			}
			return sk, sk.PublicKey(), nil
		}
		parsePublic = func(x []byte) (marshaler, error) { return eddsa.ParsePublicKey(x) }
	case CurveEd448:
		parseSecret = func(d []byte) (any, marshaler, error) {
			sk, err := ed448.ParseSecretKey(d)
			if err != nil {
				return nil, nil, err
			}
			return sk, sk.PublicKey(), nil
		}
		parsePublic = func(x []byte) (marshaler, error) { return ed448.ParsePublicKey(x) }
	case CurveX25519, CurveX448:
		curve := ecdh.Curve(crv)
		parseSecret = func(d []byte) (any, marshaler, error) {
			sk, err := ecdh.ParseSecretKey(curve, d)
			if err != nil {
				return nil, nil, err
			}
			return sk, sk.PublicKey(), nil
		}
		parsePublic = func(x []byte) (marshaler, error) { return ecdh.ParsePublicKey(curve, x) }
	default:
		return fmt.Errorf("%w: unsupported OKP curve %d", ErrMalformedKey, crv)
	}
	return k.loadPair(KeyLabelD, KeyLabelX, parseSecret, parsePublic)
}

// loadAKP derives the handles of an ML-DSA key.
func (k *Key) loadAKP() error {
	if alg, ok := k.Algorithm(); !ok || alg != AlgorithmMLDSA65 {
		return fmt.Errorf("%w: AKP keys must declare ML-DSA-65", ErrMalformedKey)
	}
	parseSecret := func(seed []byte) (any, marshaler, error) {
		sk, err := mldsa.ParseSecretKey(seed)
		if err != nil {
			return nil, nil, err
		}
		return sk, sk.PublicKey(), nil
	}
	parsePublic := func(pub []byte) (marshaler, error) { return mldsa.ParsePublicKey(pub) }
	return k.loadPair(KeyLabelAKPPrivate, KeyLabelAKPPublic, parseSecret, parsePublic)
}

// loadPair derives the handles of a key whose private and public parts are
// single byte strings, checking that they agree when both are present.
func (k *Key) loadPair(privLabel, pubLabel int64, parseSecret func([]byte) (any, marshaler, error), parsePublic func([]byte) (marshaler, error)) error {
	d, hasD, err := k.field(privLabel)
	if err != nil {
		return err
	}
	x, hasX, err := k.field(pubLabel)
	if err != nil {
		return err
	}
	var public marshaler
	if hasD {
		secret, derived, err := parseSecret(d)
		if err != nil {
			return malformedKey(err)
		}
		k.priv, public = secret, derived
	}
	if hasX {
		parsed, err := parsePublic(x)
		if err != nil {
			return malformedKey(err)
		}
		if public != nil && !bytes.Equal(public.Marshal(), parsed.Marshal()) {
			return fmt.Errorf("%w: public key does not match the private key", ErrKeyMismatch)
		}
		public = parsed
	}
	if public == nil {
		return ErrMalformedKey
	}
	k.pub = public
	return nil
}

// loadRSA derives the handles of an RSA key, two-prime or multi-prime.
func (k *Key) loadRSA() error {
	ints := make(map[int64]*big.Int)
	for _, label := range []int64{KeyLabelRSAN, KeyLabelRSAE, KeyLabelRSAD, KeyLabelRSAP, KeyLabelRSAQ, KeyLabelRSADP, KeyLabelRSADQ, KeyLabelRSAQInv} {
		b, ok, err := k.field(label)
		if err != nil {
			return err
		}
		if ok {
			ints[label] = new(big.Int).SetBytes(b)
		}
	}
	if ints[KeyLabelRSAN] == nil || ints[KeyLabelRSAE] == nil {
		return ErrMalformedKey
	}
	public, err := rsa.ParsePublicKey(ints[KeyLabelRSAN], ints[KeyLabelRSAE])
	if err != nil {
		return malformedKey(err)
	}
	k.pub = public

	if ints[KeyLabelRSAD] == nil {
		if len(ints) != 2 {
			return fmt.Errorf("%w: RSA private components without d", ErrMalformedKey)
		}
		return nil
	}
	if len(ints) != 8 {
		return fmt.Errorf("%w: incomplete RSA private key", ErrMalformedKey)
	}
	var others []rsa.PrimeInfo
	if v, ok := k.m[KeyLabelRSAOther]; ok {
		list, ok := cbor.Array(v)
		if !ok || len(list) == 0 {
			return ErrMalformedKey
		}
		for _, item := range list {
			entry, ok := cbor.Map(item)
			if !ok {
				return ErrMalformedKey
			}
			var info [3]*big.Int
			for i, label := range []int64{KeyLabelRSARi, KeyLabelRSADi, KeyLabelRSATi} {
				b, ok := cbor.Bytes(entry[label])
				if !ok {
					return fmt.Errorf("%w: incomplete RSA prime info", ErrMalformedKey)
				}
				info[i] = new(big.Int).SetBytes(b)
			}
			others = append(others, rsa.PrimeInfo{R: info[0], D: info[1], T: info[2]})
		}
	}
	secret, err := rsa.ParseSecretKey(ints[KeyLabelRSAN], ints[KeyLabelRSAE], ints[KeyLabelRSAD],
		ints[KeyLabelRSAP], ints[KeyLabelRSAQ], ints[KeyLabelRSADP], ints[KeyLabelRSADQ], ints[KeyLabelRSAQInv], others)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	k.priv = secret
	return nil
}

// ecdhSecret returns the private key as a key agreement handle.
func (k *Key) ecdhSecret() (*ecdh.SecretKey, error) {
	switch sk := k.priv.(type) {
	case *ecdh.SecretKey:
		return sk, nil
	case *ecdsa.SecretKey:
		std, err := sk.Crypto().ECDH()
		if err != nil {
			return nil, malformedKey(err)
		}
		return ecdh.NewSecretKey(std)
	case nil:
		if k.Type() == KeyTypeSymmetric {
			return nil, ErrWrongKeyType
		}
		return nil, ErrPrivateKeyRequired
	default:
		return nil, ErrWrongKeyType
	}
}

// ecdhPublic returns the public key as a key agreement handle.
func (k *Key) ecdhPublic() (*ecdh.PublicKey, error) {
	switch pk := k.pub.(type) {
	case *ecdh.PublicKey:
		return pk, nil
	case *ecdsa.PublicKey:
		std, err := pk.Crypto().ECDH()
		if err != nil {
			return nil, malformedKey(err)
		}
		return ecdh.NewPublicKey(std)
	default:
		return nil, ErrWrongKeyType
	}
}

// agreementKeyMap encodes a key agreement public key as a COSE key map, the
// form ephemeral and static sender keys travel in.
func agreementKeyMap(pub *ecdh.PublicKey) map[any]any {
	crv := int64(pub.Curve())
	if pub.Curve().Montgomery() {
		return map[any]any{
			KeyLabelKeyType: int64(KeyTypeOKP),
			KeyLabelCurve:   crv,
			KeyLabelX:       pub.Marshal(),
		}
	}
	x, y, _ := pub.Coordinates()
	return map[any]any{
		KeyLabelKeyType: int64(KeyTypeEC2),
		KeyLabelCurve:   crv,
		KeyLabelX:       x,
		KeyLabelY:       y,
	}
}
