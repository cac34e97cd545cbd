// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	stdecdh "crypto/ecdh"
	stdecdsa "crypto/ecdsa"
	"crypto/ed25519"
	stdrsa "crypto/rsa"
	"fmt"

	circled448 "github.com/cloudflare/circl/sign/ed448"
	"github.com/dark-bio/cose-go/ecdh"
	"github.com/dark-bio/cose-go/ecdsa"
	"github.com/dark-bio/cose-go/ed448"
	"github.com/dark-bio/cose-go/eddsa"
	"github.com/dark-bio/cose-go/internal/asn1ext"
	"github.com/dark-bio/cose-go/mldsa"
	"github.com/dark-bio/cose-go/pem"
	"github.com/dark-bio/cose-go/rsa"
)

// NewKeyFromPublic converts a native public key into a COSE key. Standard
// library keys, circl Ed448 keys and this module's primitive handles are
// accepted.
func NewKeyFromPublic(pub any) (*Key, error) {
	switch p := pub.(type) {
	case *stdecdsa.PublicKey:
		wrapped, err := ecdsa.NewPublicKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPublic(wrapped)
	case ed25519.PublicKey:
		wrapped, err := eddsa.NewPublicKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPublic(wrapped)
	case circled448.PublicKey:
		wrapped, err := ed448.ParsePublicKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPublic(wrapped)
	case *stdrsa.PublicKey:
		wrapped, err := rsa.NewPublicKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPublic(wrapped)
	case *stdecdh.PublicKey:
		wrapped, err := ecdh.NewPublicKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPublic(wrapped)

	case *ecdsa.PublicKey:
		return ecKey(nil, p), nil
	case *eddsa.PublicKey:
		return pairKey(KeyTypeOKP, CurveEd25519, KeyLabelD, KeyLabelX, nil, nil, p), nil
	case *ed448.PublicKey:
		return pairKey(KeyTypeOKP, CurveEd448, KeyLabelD, KeyLabelX, nil, nil, p), nil
	case *ecdh.PublicKey:
		if !p.Curve().Montgomery() {
			x, y, err := p.Coordinates()
			if err != nil {
				return nil, malformedKey(err)
			}
			wrapped, err := ecdsa.ParsePublicKey(ecdsa.Curve(p.Curve()), x, y)
			if err != nil {
				return nil, malformedKey(err)
			}
			return ecKey(nil, wrapped), nil
		}
		return pairKey(KeyTypeOKP, Curve(p.Curve()), KeyLabelD, KeyLabelX, nil, nil, p), nil
	case *rsa.PublicKey:
		return rsaKey(nil, p), nil
	case *mldsa.PublicKey:
		return pairKey(KeyTypeAKP, 0, KeyLabelAKPPrivate, KeyLabelAKPPublic, nil, nil, p), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, pub)
	}
}

// NewKeyFromPrivate converts a native private key into a COSE key holding both
// halves of the pair.
func NewKeyFromPrivate(priv any) (*Key, error) {
	switch p := priv.(type) {
	case *stdecdsa.PrivateKey:
		wrapped, err := ecdsa.NewSecretKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPrivate(wrapped)
	case ed25519.PrivateKey:
		wrapped, err := eddsa.NewSecretKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPrivate(wrapped)
	case circled448.PrivateKey:
		wrapped, err := ed448.NewSecretKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPrivate(wrapped)
	case *stdrsa.PrivateKey:
		wrapped, err := rsa.NewSecretKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPrivate(wrapped)
	case *stdecdh.PrivateKey:
		wrapped, err := ecdh.NewSecretKey(p)
		if err != nil {
			return nil, malformedKey(err)
		}
		return NewKeyFromPrivate(wrapped)

	case *ecdsa.SecretKey:
		return ecKey(p, p.PublicKey()), nil
	case *eddsa.SecretKey:
		return pairKey(KeyTypeOKP, CurveEd25519, KeyLabelD, KeyLabelX, p.Marshal(), p, p.PublicKey()), nil
	case *ed448.SecretKey:
		return pairKey(KeyTypeOKP, CurveEd448, KeyLabelD, KeyLabelX, p.Marshal(), p, p.PublicKey()), nil
	case *ecdh.SecretKey:
		if !p.Curve().Montgomery() {
			wrapped, err := ecdsa.ParseSecretKey(ecdsa.Curve(p.Curve()), p.Marshal())
			if err != nil {
				return nil, malformedKey(err)
			}
			return ecKey(wrapped, wrapped.PublicKey()), nil
		}
		return pairKey(KeyTypeOKP, Curve(p.Curve()), KeyLabelD, KeyLabelX, p.Marshal(), p, p.PublicKey()), nil
	case *rsa.SecretKey:
		return rsaKey(p, p.PublicKey()), nil
	case *mldsa.SecretKey:
		return pairKey(KeyTypeAKP, 0, KeyLabelAKPPrivate, KeyLabelAKPPublic, p.Marshal(), p, p.PublicKey()), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, priv)
	}
}

// NewKeyFromSPKI converts a DER encoded SubjectPublicKeyInfo into a COSE key.
func NewKeyFromSPKI(der []byte) (*Key, error) {
	spki, err := asn1ext.ParseSubjectPublicKeyInfo(der)
	if err != nil {
		return nil, malformedKey(err)
	}
	var pub any
	switch oid := spki.Algorithm.Algorithm; {
	case oid.Equal(asn1ext.OIDPublicKeyECDSA):
		pub, err = ecdsa.ParsePublicKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyRSA):
		pub, err = rsa.ParsePublicKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyEd25519):
		pub, err = eddsa.ParsePublicKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyEd448):
		pub, err = ed448.ParsePublicKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyX25519), oid.Equal(asn1ext.OIDPublicKeyX448):
		pub, err = ecdh.ParsePublicKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyMLDSA65):
		pub, err = mldsa.ParsePublicKeyDER(der)
	default:
		return nil, fmt.Errorf("%w: key algorithm %v", ErrUnsupportedKeyType, oid)
	}
	if err != nil {
		return nil, malformedKey(err)
	}
	return NewKeyFromPublic(pub)
}

// NewKeyFromPKCS8 converts a DER encoded PKCS#8 private key into a COSE key.
func NewKeyFromPKCS8(der []byte) (*Key, error) {
	pkcs8, err := asn1ext.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, malformedKey(err)
	}
	var priv any
	switch oid := pkcs8.Algorithm.Algorithm; {
	case oid.Equal(asn1ext.OIDPublicKeyECDSA):
		priv, err = ecdsa.ParseSecretKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyRSA):
		priv, err = rsa.ParseSecretKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyEd25519):
		priv, err = eddsa.ParseSecretKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyEd448):
		priv, err = ed448.ParseSecretKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyX25519), oid.Equal(asn1ext.OIDPublicKeyX448):
		priv, err = ecdh.ParseSecretKeyDER(der)
	case oid.Equal(asn1ext.OIDPublicKeyMLDSA65):
		priv, err = mldsa.ParseSecretKeyDER(der)
	default:
		return nil, fmt.Errorf("%w: key algorithm %v", ErrUnsupportedKeyType, oid)
	}
	if err != nil {
		return nil, malformedKey(err)
	}
	return NewKeyFromPrivate(priv)
}

// ParseKeyPEM converts a PEM encoded PUBLIC KEY or PRIVATE KEY into a COSE key.
func ParseKeyPEM(s string) (*Key, error) {
	kind, der, err := pem.Decode([]byte(s))
	if err != nil {
		return nil, malformedKey(err)
	}
	switch kind {
	case "PUBLIC KEY":
		return NewKeyFromSPKI(der)
	case "PRIVATE KEY":
		return NewKeyFromPKCS8(der)
	default:
		return nil, fmt.Errorf("%w: invalid PEM type %q", ErrMalformedKey, kind)
	}
}

// MarshalSPKI exports the public half of the key as a DER encoded
// SubjectPublicKeyInfo.
func (k *Key) MarshalSPKI() ([]byte, error) {
	switch p := k.pub.(type) {
	case *ecdsa.PublicKey:
		return p.MarshalDER(), nil
	case *eddsa.PublicKey:
		return p.MarshalDER(), nil
	case *ed448.PublicKey:
		return p.MarshalDER(), nil
	case *ecdh.PublicKey:
		return p.MarshalDER()
	case *rsa.PublicKey:
		return p.MarshalDER(), nil
	case *mldsa.PublicKey:
		return p.MarshalDER(), nil
	default:
		return nil, ErrWrongKeyType
	}
}

// MarshalPKCS8 exports the private half of the key as a DER encoded PKCS#8
// structure.
func (k *Key) MarshalPKCS8() ([]byte, error) {
	switch p := k.priv.(type) {
	case *ecdsa.SecretKey:
		return p.MarshalDER(), nil
	case *eddsa.SecretKey:
		return p.MarshalDER(), nil
	case *ed448.SecretKey:
		return p.MarshalDER(), nil
	case *ecdh.SecretKey:
		return p.MarshalDER()
	case *rsa.SecretKey:
		return p.MarshalDER(), nil
	case *mldsa.SecretKey:
		return p.MarshalDER(), nil
	case nil:
		if k.Type() == KeyTypeSymmetric {
			return nil, ErrWrongKeyType
		}
		return nil, ErrPrivateKeyRequired
	default:
		return nil, ErrWrongKeyType
	}
}

// MarshalPEM exports the key as PEM: the private key if the key holds one, the
// public key otherwise.
func (k *Key) MarshalPEM() (string, error) {
	if k.priv != nil {
		der, err := k.MarshalPKCS8()
		if err != nil {
			return "", err
		}
		return string(pem.Encode("PRIVATE KEY", der)), nil
	}
	der, err := k.MarshalSPKI()
	if err != nil {
		return "", err
	}
	return string(pem.Encode("PUBLIC KEY", der)), nil
}
