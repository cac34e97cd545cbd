// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"fmt"

	"github.com/dark-bio/cose-go/ecdsa"
	"github.com/dark-bio/cose-go/ed448"
	"github.com/dark-bio/cose-go/eddsa"
	"github.com/dark-bio/cose-go/mldsa"
	"github.com/dark-bio/cose-go/rsa"
)

// checkKeyAlgorithm fails if the key is restricted to another algorithm.
func checkKeyAlgorithm(key *Key, alg Algorithm) error {
	if have, ok := key.Algorithm(); ok && have != alg {
		return fmt.Errorf("%w: key is restricted to %v, message uses %v", ErrKeyMismatch, have, alg)
	}
	return nil
}

// signBytes signs the to-be-signed structure with the private half of key.
// ECDSA signatures are produced in the fixed width r||s form.
func signBytes(alg Algorithm, key *Key, tbs []byte) ([]byte, error) {
	if alg.Family() != FamilySignature {
		return nil, fmt.Errorf("%w: %v is not a signature algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if key == nil {
		return nil, ErrNoKey
	}
	if err := checkKeyAlgorithm(key, alg); err != nil {
		return nil, err
	}
	if key.priv == nil {
		if key.Type() == KeyTypeSymmetric {
			return nil, ErrWrongKeyType
		}
		return nil, ErrPrivateKeyRequired
	}
	switch alg {
	case AlgorithmES256, AlgorithmES384, AlgorithmES512:
		if sk, ok := key.priv.(*ecdsa.SecretKey); ok {
			sig, err := sk.Sign(tbs, alg.hash())
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
			}
			return sig, nil
		}
	case AlgorithmEdDSA:
		switch sk := key.priv.(type) {
		case *eddsa.SecretKey:
			return sk.Sign(tbs), nil
		case *ed448.SecretKey:
			return sk.Sign(tbs), nil
		}
	case AlgorithmPS256, AlgorithmPS384, AlgorithmPS512:
		if sk, ok := key.priv.(*rsa.SecretKey); ok {
			sig, err := sk.Sign(tbs, alg.hash())
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
			}
			return sig, nil
		}
	case AlgorithmMLDSA65:
		if sk, ok := key.priv.(*mldsa.SecretKey); ok {
			return sk.Sign(tbs), nil
		}
	}
	return nil, ErrWrongKeyType
}

// verifyBytes checks a signature over the to-be-signed structure with the
// public half of key. A mismatching signature is reported as false, an
// unusable key as an error.
func verifyBytes(alg Algorithm, key *Key, tbs, sig []byte) (bool, error) {
	if alg.Family() != FamilySignature {
		return false, fmt.Errorf("%w: %v is not a signature algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if key == nil {
		return false, ErrNoKey
	}
	if err := checkKeyAlgorithm(key, alg); err != nil {
		return false, err
	}
	var err error
	switch alg {
	case AlgorithmES256, AlgorithmES384, AlgorithmES512:
		pk, ok := key.pub.(*ecdsa.PublicKey)
		if !ok {
			return false, ErrWrongKeyType
		}
		err = pk.Verify(tbs, sig, alg.hash())
	case AlgorithmEdDSA:
		switch pk := key.pub.(type) {
		case *eddsa.PublicKey:
			err = pk.Verify(tbs, sig)
		case *ed448.PublicKey:
			err = pk.Verify(tbs, sig)
		default:
			return false, ErrWrongKeyType
		}
	case AlgorithmPS256, AlgorithmPS384, AlgorithmPS512:
		pk, ok := key.pub.(*rsa.PublicKey)
		if !ok {
			return false, ErrWrongKeyType
		}
		err = pk.Verify(tbs, sig, alg.hash())
	case AlgorithmMLDSA65:
		pk, ok := key.pub.(*mldsa.PublicKey)
		if !ok {
			return false, ErrWrongKeyType
		}
		err = pk.Verify(tbs, sig)
	}
	return err == nil, nil
}
