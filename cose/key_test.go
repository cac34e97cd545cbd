// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"crypto/rand"
	stdrsa "crypto/rsa"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Tests that the public projection keeps the descriptive labels and the public
// material, and drops every private component, for every asymmetric key type.
func TestKeyPublicProjection(t *testing.T) {
	x25519, err := GenerateKeyForCurve(CurveX25519)
	if err != nil {
		t.Fatalf("failed to generate X25519 key: %v", err)
	}
	tests := []struct {
		name    string
		key     *Key
		public  []int64
		private []int64
	}{
		{"EC2", mustGenerate(t, AlgorithmES256), []int64{KeyLabelCurve, KeyLabelX, KeyLabelY}, []int64{KeyLabelD}},
		{"OKP Ed25519", mustGenerate(t, AlgorithmEdDSA), []int64{KeyLabelCurve, KeyLabelX}, []int64{KeyLabelD}},
		{"OKP X25519", x25519, []int64{KeyLabelCurve, KeyLabelX}, []int64{KeyLabelD}},
		{"RSA", mustGenerate(t, AlgorithmPS256), []int64{KeyLabelRSAN, KeyLabelRSAE}, []int64{
			KeyLabelRSAD, KeyLabelRSAP, KeyLabelRSAQ, KeyLabelRSADP, KeyLabelRSADQ, KeyLabelRSAQInv,
		}},
		{"AKP", mustGenerate(t, AlgorithmMLDSA65), []int64{KeyLabelAKPPublic}, []int64{KeyLabelAKPPrivate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := tt.key
			if err := key.Add(KeyLabelKeyID, []byte("kid")); err != nil {
				t.Fatalf("failed to add kid: %v", err)
			}
			key.Add(int64(100), "app")
			key.Add("note", "kept")

			full := key.Map()
			for _, label := range tt.private {
				if _, ok := full[label]; !ok {
					t.Fatalf("private key lacks label %d", label)
				}
			}
			want := map[any]any{
				KeyLabelKeyType: full[KeyLabelKeyType],
				KeyLabelKeyID:   []byte("kid"),
				int64(100):      "app",
				"note":          "kept",
			}
			if alg, ok := full[KeyLabelAlgorithm]; ok {
				want[KeyLabelAlgorithm] = alg
			}
			for _, label := range tt.public {
				want[label] = full[label]
			}
			pub := key.PublicKey()
			if diff := cmp.Diff(want, pub.Map()); diff != "" {
				t.Fatalf("projection mismatch (-want +have):\n%s", diff)
			}
			if pub.HasPrivate() {
				t.Fatalf("projection holds a private key")
			}
			if pub.Public() == nil {
				t.Fatalf("projection lost the public key")
			}
		})
	}
	if newSymmetricKey(t, key256).PublicKey() != nil {
		t.Fatalf("symmetric key has a projection")
	}
}

// Tests EC2 keys holding only the private scalar or a compressed point.
func TestKeyEC2Forms(t *testing.T) {
	key := mustGenerate(t, AlgorithmES256)
	full := key.Map()
	x, y, d := full[KeyLabelX].([]byte), full[KeyLabelY].([]byte), full[KeyLabelD].([]byte)

	private, err := NewKey(map[any]any{
		KeyLabelKeyType: int64(KeyTypeEC2),
		KeyLabelCurve:   int64(CurveP256),
		KeyLabelD:       d,
	})
	if err != nil {
		t.Fatalf("failed to load private only key: %v", err)
	}
	derived := private.PublicKey().Map()
	if !bytes.Equal(derived[KeyLabelX].([]byte), x) || !bytes.Equal(derived[KeyLabelY].([]byte), y) {
		t.Fatalf("derived public point mismatch")
	}
	compressed, err := NewKey(map[any]any{
		KeyLabelKeyType: int64(KeyTypeEC2),
		KeyLabelCurve:   int64(CurveP256),
		KeyLabelX:       x,
		KeyLabelY:       y[len(y)-1]&1 == 1,
	})
	if err != nil {
		t.Fatalf("failed to load compressed key: %v", err)
	}
	msg := NewSign1()
	msg.Add(HeaderAlgorithm, int64(AlgorithmES256), Protected)
	msg.SetContent(content)
	if err := msg.Sign(private); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if valid, err := msg.Verify(compressed); err != nil || !valid {
		t.Fatalf("verification with compressed key failed: %v/%v", valid, err)
	}
	other := mustGenerate(t, AlgorithmES256).Map()
	_, err = NewKey(map[any]any{
		KeyLabelKeyType: int64(KeyTypeEC2),
		KeyLabelCurve:   int64(CurveP256),
		KeyLabelX:       other[KeyLabelX],
		KeyLabelY:       other[KeyLabelY],
		KeyLabelD:       d,
	})
	if !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("mismatched pair: have %v, want %v", err, ErrKeyMismatch)
	}
}

// Tests that a multi-prime RSA key survives the COSE encoding and signs.
func TestKeyRSAMultiPrime(t *testing.T) {
	std, err := stdrsa.GenerateMultiPrimeKey(rand.Reader, 3, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	key, err := NewKeyFromPrivate(std)
	if err != nil {
		t.Fatalf("failed to convert key: %v", err)
	}
	if _, ok := key.Get(KeyLabelRSAOther); !ok {
		t.Fatalf("other primes missing")
	}
	data, err := key.MarshalCBOR()
	if err != nil {
		t.Fatalf("failed to encode key: %v", err)
	}
	parsed, err := ParseKey(data)
	if err != nil {
		t.Fatalf("failed to parse key: %v", err)
	}
	msg := NewSign1()
	msg.Add(HeaderAlgorithm, int64(AlgorithmPS384), Protected)
	msg.SetContent(content)
	if err := msg.Sign(parsed); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if valid, err := msg.Verify(key.PublicKey()); err != nil || !valid {
		t.Fatalf("verification failed: %v/%v", valid, err)
	}
	broken := parsed.Map()
	dp := append([]byte{}, broken[KeyLabelRSADP].([]byte)...)
	dp[len(dp)-1] ^= 0x02
	broken[KeyLabelRSADP] = dp
	if _, err := NewKey(broken); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("inconsistent CRT value: have %v, want %v", err, ErrKeyMismatch)
	}
}

// Tests the key map validation and the immutability of key material.
func TestKeyValidation(t *testing.T) {
	p256Order, _ := hex.DecodeString("ffffffff00000000ffffffffffffffffbce6faada7179e84f3b9cac2fc632551")

	tests := []struct {
		name string
		m    map[any]any
		want error
	}{
		{"no kty", map[any]any{KeyLabelSymmetricK: key256}, ErrMalformedKey},
		{"unknown kty", map[any]any{KeyLabelKeyType: int64(9)}, ErrUnsupportedKeyType},
		{"text kid", map[any]any{KeyLabelKeyType: int64(KeyTypeSymmetric), KeyLabelSymmetricK: key256, KeyLabelKeyID: "kid"}, ErrMalformedKey},
		{"no k", map[any]any{KeyLabelKeyType: int64(KeyTypeSymmetric)}, ErrMalformedKey},
		{"bad curve", map[any]any{KeyLabelKeyType: int64(KeyTypeEC2), KeyLabelCurve: int64(CurveEd25519), KeyLabelX: key256}, ErrMalformedKey},
		{"AKP without alg", map[any]any{KeyLabelKeyType: int64(KeyTypeAKP), KeyLabelAKPPublic: key256}, ErrMalformedKey},
		{"float label", map[any]any{KeyLabelKeyType: int64(KeyTypeSymmetric), KeyLabelSymmetricK: key256, 1.5: int64(1)}, ErrMalformedKey},
		{"zero EC2 scalar", map[any]any{KeyLabelKeyType: int64(KeyTypeEC2), KeyLabelCurve: int64(CurveP256), KeyLabelD: []byte{0}}, ErrMalformedKey},
		{"zero EC2 scalar padded", map[any]any{KeyLabelKeyType: int64(KeyTypeEC2), KeyLabelCurve: int64(CurveP256), KeyLabelD: make([]byte, 32)}, ErrMalformedKey},
		{"EC2 scalar at order", map[any]any{KeyLabelKeyType: int64(KeyTypeEC2), KeyLabelCurve: int64(CurveP256), KeyLabelD: p256Order}, ErrMalformedKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewKey(tt.m); !errors.Is(err, tt.want) {
				t.Fatalf("have %v, want %v", err, tt.want)
			}
		})
	}
	key := newSymmetricKey(t, key256)
	if err := key.Add(KeyLabelSymmetricK, key256[:16]); !errors.Is(err, ErrKeyImmutable) {
		t.Fatalf("material change: have %v, want %v", err, ErrKeyImmutable)
	}
	if err := key.Add(KeyLabelKeyType, int64(KeyTypeEC2)); !errors.Is(err, ErrKeyImmutable) {
		t.Fatalf("kty change: have %v, want %v", err, ErrKeyImmutable)
	}
	if err := key.Add(KeyLabelAlgorithm, "A128GCM"); !errors.Is(err, ErrMalformedKey) {
		t.Fatalf("text alg: have %v, want %v", err, ErrMalformedKey)
	}
	key.SetKeyOps(KeyOpMACCreate, KeyOpMACVerify)
	if !key.HasKeyOp(KeyOpMACVerify) || key.HasKeyOp(KeyOpSign) {
		t.Fatalf("key_ops mismatch: %v", key.KeyOps())
	}
}

// Tests the DER and PEM conversions for the supported key families.
func TestKeyConversions(t *testing.T) {
	curves := []Curve{CurveP256, CurveP521, CurveEd25519, CurveEd448, CurveX25519, CurveX448}
	for _, crv := range curves {
		key, err := GenerateKeyForCurve(crv)
		if err != nil {
			t.Fatalf("curve %d: failed to generate key: %v", crv, err)
		}
		spki, err := key.MarshalSPKI()
		if err != nil {
			t.Fatalf("curve %d: failed to export public key: %v", crv, err)
		}
		pub, err := NewKeyFromSPKI(spki)
		if err != nil {
			t.Fatalf("curve %d: failed to import public key: %v", crv, err)
		}
		if diff := cmp.Diff(key.PublicKey().Map(), pub.Map()); diff != "" {
			t.Fatalf("curve %d: public key mismatch (-want +have):\n%s", crv, diff)
		}
		pemText, err := key.MarshalPEM()
		if err != nil {
			t.Fatalf("curve %d: failed to export private key: %v", crv, err)
		}
		priv, err := ParseKeyPEM(pemText)
		if err != nil {
			t.Fatalf("curve %d: failed to import private key: %v", crv, err)
		}
		if diff := cmp.Diff(key.Map(), priv.Map()); diff != "" {
			t.Fatalf("curve %d: private key mismatch (-want +have):\n%s", crv, diff)
		}
	}
}

// Tests the key set lookups.
func TestKeySet(t *testing.T) {
	a, b := newSymmetricKey(t, key256), newSymmetricKey(t, key256[:16])
	a.Add(KeyLabelKeyID, []byte("a"))

	ks := NewKeySet(a, b)
	if have := ks.FindByKeyID([]byte("a")).Keys(); len(have) != 1 || have[0] != a {
		t.Fatalf("lookup by key id failed")
	}
	if !ks.Remove(a) || ks.Remove(a) {
		t.Fatalf("remove reported wrong result")
	}
	if ks.Len() != 1 {
		t.Fatalf("set size: have %d, want 1", ks.Len())
	}
}
