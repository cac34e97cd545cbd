// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"crypto/rand"
	"fmt"

	"github.com/dark-bio/cose-go/ecdh"
	"github.com/dark-bio/cose-go/ecdsa"
	"github.com/dark-bio/cose-go/ed448"
	"github.com/dark-bio/cose-go/eddsa"
	"github.com/dark-bio/cose-go/mldsa"
	"github.com/dark-bio/cose-go/rsa"
)

// GenerateKey creates a fresh key for the algorithm and restricts it to that
// algorithm. Signature algorithms get a key pair on their canonical curve or
// size, key agreement algorithms a P-256 pair, the symmetric families a random
// key of the registered size.
func GenerateKey(alg Algorithm) (*Key, error) {
	var (
		key *Key
		err error
	)
	switch alg {
	case AlgorithmES256:
		key, err = GenerateKeyForCurve(CurveP256)
	case AlgorithmES384:
		key, err = GenerateKeyForCurve(CurveP384)
	case AlgorithmES512:
		key, err = GenerateKeyForCurve(CurveP521)
	case AlgorithmEdDSA:
		key, err = GenerateKeyForCurve(CurveEd25519)
	case AlgorithmPS256, AlgorithmPS384, AlgorithmPS512:
		var secret *rsa.SecretKey
		if secret, err = rsa.GenerateKey(rsa.DefaultBits); err == nil {
			key = rsaKey(secret, secret.PublicKey())
		}
	case AlgorithmMLDSA65:
		secret := mldsa.GenerateKey()
		key = pairKey(KeyTypeAKP, 0, KeyLabelAKPPrivate, KeyLabelAKPPublic, secret.Marshal(), secret, secret.PublicKey())
	default:
		switch alg.Family() {
		case FamilyAEAD, FamilyMAC, FamilyKeyWrap, FamilyDirectKDF:
			k := make([]byte, alg.KeySize()/8)
			if _, err := rand.Read(k); err != nil {
				return nil, err
			}
			key = symmetricKey(k)
		case FamilyKeyAgreement, FamilyKeyAgreementWrap:
			key, err = GenerateKeyForCurve(CurveP256)
		default:
			return nil, fmt.Errorf("%w: cannot generate a key for %v", ErrUnsupportedAlgorithm, alg)
		}
	}
	if err != nil {
		return nil, err
	}
	key.m[KeyLabelAlgorithm] = int64(alg)
	return key, nil
}

// GenerateKeyForCurve creates a fresh EC2 or OKP key pair on the curve. The
// key is not restricted to an algorithm.
func GenerateKeyForCurve(crv Curve) (*Key, error) {
	switch crv {
	case CurveP256, CurveP384, CurveP521:
		secret, err := ecdsa.GenerateKey(ecdsa.Curve(crv))
		if err != nil {
			return nil, err
		}
		return ecKey(secret, secret.PublicKey()), nil
	case CurveEd25519:
		secret := eddsa.GenerateKey()
		return pairKey(KeyTypeOKP, crv, KeyLabelD, KeyLabelX, secret.Marshal(), secret, secret.PublicKey()), nil
	case CurveEd448:
		secret := ed448.GenerateKey()
		return pairKey(KeyTypeOKP, crv, KeyLabelD, KeyLabelX, secret.Marshal(), secret, secret.PublicKey()), nil
	case CurveX25519, CurveX448:
		secret, err := ecdh.GenerateKey(ecdh.Curve(crv))
		if err != nil {
			return nil, err
		}
		return pairKey(KeyTypeOKP, crv, KeyLabelD, KeyLabelX, secret.Marshal(), secret, secret.PublicKey()), nil
	default:
		return nil, fmt.Errorf("%w: unsupported curve %d", ErrMalformedKey, crv)
	}
}

// symmetricKey wraps raw key bytes into a symmetric key.
func symmetricKey(k []byte) *Key {
	return &Key{m: map[any]any{
		KeyLabelKeyType:    int64(KeyTypeSymmetric),
		KeyLabelSymmetricK: append([]byte{}, k...),
	}}
}

// ecKey builds an EC2 key from native handles, the secret being optional.
func ecKey(secret *ecdsa.SecretKey, public *ecdsa.PublicKey) *Key {
	x, y := public.Coordinates()
	key := &Key{
		m: map[any]any{
			KeyLabelKeyType: int64(KeyTypeEC2),
			KeyLabelCurve:   int64(public.Curve()),
			KeyLabelX:       x,
			KeyLabelY:       y,
		},
		pub: public,
	}
	if secret != nil {
		key.m[KeyLabelD] = secret.Marshal()
		key.priv = secret
	}
	return key
}

// pairKey builds an OKP or AKP key from native handles whose private and
// public parts are single byte strings. A nil d builds a public key.
func pairKey(kty KeyType, crv Curve, privLabel, pubLabel int64, d []byte, secret any, public marshaler) *Key {
	key := &Key{
		m: map[any]any{
			KeyLabelKeyType: int64(kty),
			pubLabel:        public.Marshal(),
		},
		pub: public,
	}
	if crv != 0 {
		key.m[KeyLabelCurve] = int64(crv)
	}
	if kty == KeyTypeAKP {
		key.m[KeyLabelAlgorithm] = int64(AlgorithmMLDSA65)
	}
	if d != nil {
		key.m[privLabel] = d
		key.priv = secret
	}
	return key
}

// rsaKey builds an RSA key from native handles, the secret being optional.
func rsaKey(secret *rsa.SecretKey, public *rsa.PublicKey) *Key {
	n, e := public.Components()
	key := &Key{
		m: map[any]any{
			KeyLabelKeyType: int64(KeyTypeRSA),
			KeyLabelRSAN:    n.Bytes(),
			KeyLabelRSAE:    e.Bytes(),
		},
		pub: public,
	}
	if secret == nil {
		return key
	}
	d, p, q, dp, dq, qinv := secret.Components()
	key.m[KeyLabelRSAD] = d.Bytes()
	key.m[KeyLabelRSAP] = p.Bytes()
	key.m[KeyLabelRSAQ] = q.Bytes()
	key.m[KeyLabelRSADP] = dp.Bytes()
	key.m[KeyLabelRSADQ] = dq.Bytes()
	key.m[KeyLabelRSAQInv] = qinv.Bytes()

	if others := secret.OtherPrimes(); len(others) > 0 {
		list := make([]any, len(others))
		for i, other := range others {
			list[i] = map[any]any{
				KeyLabelRSARi: other.R.Bytes(),
				KeyLabelRSADi: other.D.Bytes(),
				KeyLabelRSATi: other.T.Bytes(),
			}
		}
		key.m[KeyLabelRSAOther] = list
	}
	key.priv = secret
	return key
}
