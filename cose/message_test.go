// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/dark-bio/cose-go/cbor"
)

var (
	key256 = []byte{'a', 'b', 'c', 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
		17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32}
	iv96    = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	content = []byte("This is some content")
)

// newSymmetricKey wraps raw bytes into a COSE symmetric key.
func newSymmetricKey(t *testing.T, k []byte) *Key {
	t.Helper()

	key, err := NewKey(map[any]any{
		KeyLabelKeyType:    int64(KeyTypeSymmetric),
		KeyLabelSymmetricK: k,
	})
	if err != nil {
		t.Fatalf("failed to create symmetric key: %v", err)
	}
	return key
}

// roundtrip encodes a message and decodes it back without a default type.
func roundtrip(t *testing.T, msg Message) Message {
	t.Helper()

	data, err := msg.MarshalCBOR()
	if err != nil {
		t.Fatalf("failed to encode %v: %v", msg.Type(), err)
	}
	if !cbor.IsTagged(data) {
		t.Fatalf("%v encoded without tag", msg.Type())
	}
	decoded, err := Decode(data, 0)
	if err != nil {
		t.Fatalf("failed to decode %v: %v", msg.Type(), err)
	}
	if decoded.Type() != msg.Type() {
		t.Fatalf("type mismatch: have %v, want %v", decoded.Type(), msg.Type())
	}
	return decoded
}

// envelopeOf returns the shared envelope of any message variant.
func envelopeOf(m Message) *envelope {
	switch m := m.(type) {
	case *Sign1:
		return &m.envelope
	case *Sign:
		return &m.envelope
	case *Encrypt0:
		return &m.envelope
	case *Encrypt:
		return &m.envelope
	case *MAC0:
		return &m.envelope
	case *MAC:
		return &m.envelope
	}
	return nil
}

// Tests every message variant through encoding and decoding, tagged and
// untagged, with the payload or ciphertext inline and detached.
func TestRoundtripAllVariants(t *testing.T) {
	signKey := mustGenerate(t, AlgorithmES256)
	wrapKey := mustGenerate(t, AlgorithmA256KW)

	tests := []struct {
		typ    MessageType
		create func(t *testing.T, setup func(*envelope)) Message
		result func(m Message) []byte
		open   func(t *testing.T, m, sent Message) []byte
	}{
		{
			typ: MessageSign1,
			create: func(t *testing.T, setup func(*envelope)) Message {
				msg := NewSign1()
				setup(&msg.envelope)
				if err := msg.Sign(signKey); err != nil {
					t.Fatalf("failed to sign: %v", err)
				}
				return msg
			},
			result: func(m Message) []byte { return m.(*Sign1).Signature() },
			open: func(t *testing.T, m, sent Message) []byte {
				msg := m.(*Sign1)
				if msg.Detached {
					msg.SetContent(content)
				}
				if valid, err := msg.Verify(signKey.PublicKey()); err != nil || !valid {
					t.Fatalf("verification failed: %v/%v", valid, err)
				}
				return msg.Content()
			},
		},
		{
			typ: MessageSign,
			create: func(t *testing.T, setup func(*envelope)) Message {
				msg := NewSign()
				setup(&msg.envelope)
				s := NewSigner()
				if err := s.SetKey(signKey); err != nil {
					t.Fatalf("failed to set key: %v", err)
				}
				msg.AddSigner(s)
				if err := msg.Sign(); err != nil {
					t.Fatalf("failed to sign: %v", err)
				}
				return msg
			},
			result: func(m Message) []byte { return m.(*Sign).Signer(0).Signature() },
			open: func(t *testing.T, m, sent Message) []byte {
				msg := m.(*Sign)
				if msg.Detached {
					msg.SetContent(content)
				}
				s := msg.Signer(0)
				if err := s.SetKey(signKey.PublicKey()); err != nil {
					t.Fatalf("failed to set key: %v", err)
				}
				if valid, err := msg.Verify(s); err != nil || !valid {
					t.Fatalf("verification failed: %v/%v", valid, err)
				}
				return msg.Content()
			},
		},
		{
			typ: MessageEncrypt0,
			create: func(t *testing.T, setup func(*envelope)) Message {
				msg := NewEncrypt0()
				msg.Add(HeaderAlgorithm, int64(AlgorithmA128GCM), Protected)
				msg.Add(HeaderIV, iv96, Unprotected)
				setup(&msg.envelope)
				if err := msg.Encrypt(key256[:16]); err != nil {
					t.Fatalf("failed to encrypt: %v", err)
				}
				return msg
			},
			result: func(m Message) []byte { return m.(*Encrypt0).EncryptedContent() },
			open: func(t *testing.T, m, sent Message) []byte {
				msg := m.(*Encrypt0)
				if msg.Detached {
					msg.SetEncryptedContent(sent.(*Encrypt0).EncryptedContent())
				}
				plain, err := msg.Decrypt(key256[:16])
				if err != nil {
					t.Fatalf("failed to decrypt: %v", err)
				}
				return plain
			},
		},
		{
			typ: MessageEncrypt,
			create: func(t *testing.T, setup func(*envelope)) Message {
				msg := NewEncrypt()
				msg.Add(HeaderAlgorithm, int64(AlgorithmA256GCM), Protected)
				setup(&msg.envelope)
				r := NewRecipient()
				if err := r.SetKey(wrapKey); err != nil {
					t.Fatalf("failed to set key: %v", err)
				}
				msg.AddRecipient(r)
				if err := msg.Encrypt(); err != nil {
					t.Fatalf("failed to encrypt: %v", err)
				}
				return msg
			},
			result: func(m Message) []byte { return m.(*Encrypt).EncryptedContent() },
			open: func(t *testing.T, m, sent Message) []byte {
				msg := m.(*Encrypt)
				if msg.Detached {
					msg.SetEncryptedContent(sent.(*Encrypt).EncryptedContent())
				}
				r := msg.Recipient(0)
				if err := r.SetKey(wrapKey); err != nil {
					t.Fatalf("failed to set key: %v", err)
				}
				plain, err := msg.Decrypt(r)
				if err != nil {
					t.Fatalf("failed to decrypt: %v", err)
				}
				return plain
			},
		},
		{
			typ: MessageMAC0,
			create: func(t *testing.T, setup func(*envelope)) Message {
				msg := NewMAC0()
				msg.Add(HeaderAlgorithm, int64(AlgorithmHMAC256), Protected)
				setup(&msg.envelope)
				if err := msg.Create(key256); err != nil {
					t.Fatalf("failed to create tag: %v", err)
				}
				return msg
			},
			result: func(m Message) []byte { return m.(*MAC0).Tag() },
			open: func(t *testing.T, m, sent Message) []byte {
				msg := m.(*MAC0)
				if msg.Detached {
					msg.SetContent(content)
				}
				if valid, err := msg.Validate(key256); err != nil || !valid {
					t.Fatalf("validation failed: %v/%v", valid, err)
				}
				return msg.Content()
			},
		},
		{
			typ: MessageMAC,
			create: func(t *testing.T, setup func(*envelope)) Message {
				msg := NewMAC()
				msg.Add(HeaderAlgorithm, int64(AlgorithmHMAC256), Protected)
				setup(&msg.envelope)
				r := NewRecipient()
				if err := r.SetKey(wrapKey); err != nil {
					t.Fatalf("failed to set key: %v", err)
				}
				msg.AddRecipient(r)
				if err := msg.Create(); err != nil {
					t.Fatalf("failed to create tag: %v", err)
				}
				return msg
			},
			result: func(m Message) []byte { return m.(*MAC).Tag() },
			open: func(t *testing.T, m, sent Message) []byte {
				msg := m.(*MAC)
				if msg.Detached {
					msg.SetContent(content)
				}
				r := msg.Recipient(0)
				if err := r.SetKey(wrapKey); err != nil {
					t.Fatalf("failed to set key: %v", err)
				}
				if valid, err := msg.Validate(r); err != nil || !valid {
					t.Fatalf("validation failed: %v/%v", valid, err)
				}
				return msg.Content()
			},
		},
	}
	for _, tt := range tests {
		for _, untagged := range []bool{false, true} {
			for _, detached := range []bool{false, true} {
				name := fmt.Sprintf("%v/untagged=%v/detached=%v", tt.typ, untagged, detached)
				t.Run(name, func(t *testing.T) {
					sent := tt.create(t, func(e *envelope) {
						e.SetContent(content)
						e.Untagged = untagged
						e.Detached = detached
					})
					data, err := sent.MarshalCBOR()
					if err != nil {
						t.Fatalf("failed to encode: %v", err)
					}
					if cbor.IsTagged(data) == untagged {
						t.Fatalf("tagged: have %v, want %v", cbor.IsTagged(data), !untagged)
					}
					raw := data
					if !untagged {
						tag, inner, err := cbor.UnmarshalTag(data)
						if err != nil {
							t.Fatalf("failed to split tag: %v", err)
						}
						if tag != tt.typ.Tag() {
							t.Fatalf("tag: have %d, want %d", tag, tt.typ.Tag())
						}
						raw = inner
					}
					v, err := cbor.Decode(raw)
					if err != nil {
						t.Fatalf("failed to decode array: %v", err)
					}
					items, _ := cbor.Array(v)
					if len(items) < 3 {
						t.Fatalf("short message: %d elements", len(items))
					}
					if (items[2] == nil) != detached {
						t.Fatalf("element 2 null: have %v, want %v", items[2] == nil, detached)
					}
					decoded, err := Decode(data, tt.typ)
					if err != nil {
						t.Fatalf("failed to decode: %v", err)
					}
					if decoded.Type() != tt.typ {
						t.Fatalf("type: have %v, want %v", decoded.Type(), tt.typ)
					}
					have, want := envelopeOf(decoded), envelopeOf(sent)
					if have.Untagged != untagged || have.Detached != detached {
						t.Fatalf("flags: have %v/%v, want %v/%v", have.Untagged, have.Detached, untagged, detached)
					}
					haveProt, _ := have.protectedBytes()
					wantProt, _ := want.protectedBytes()
					if !bytes.Equal(haveProt, wantProt) {
						t.Fatalf("protected headers: have %x, want %x", haveProt, wantProt)
					}
					if tt.typ == MessageEncrypt0 || tt.typ == MessageEncrypt {
						if detached && tt.result(decoded) != nil {
							t.Fatalf("detached ciphertext decoded as %x", tt.result(decoded))
						}
					} else if !bytes.Equal(tt.result(decoded), tt.result(sent)) {
						t.Fatalf("result: have %x, want %x", tt.result(decoded), tt.result(sent))
					}
					if !detached && (tt.typ == MessageSign1 || tt.typ == MessageSign || tt.typ == MessageMAC0 || tt.typ == MessageMAC) {
						if !bytes.Equal(have.Content(), content) {
							t.Fatalf("payload: have %q, want %q", have.Content(), content)
						}
					}
					if payload := tt.open(t, decoded, sent); !bytes.Equal(payload, content) {
						t.Fatalf("payload: have %q, want %q", payload, content)
					}
					if !bytes.Equal(tt.result(decoded), tt.result(sent)) {
						t.Fatalf("result: have %x, want %x", tt.result(decoded), tt.result(sent))
					}
					again, err := decoded.MarshalCBOR()
					if err != nil {
						t.Fatalf("failed to re-encode: %v", err)
					}
					if !bytes.Equal(again, data) {
						t.Fatalf("re-encoding mismatch: have %x, want %x", again, data)
					}
				})
			}
		}
	}
}

// Tests that untagged messages need a default type and decode under it.
func TestDecodeUntagged(t *testing.T) {
	msg := NewMAC0()
	msg.Add(HeaderAlgorithm, int64(AlgorithmHMAC256), Protected)
	msg.SetContent(content)
	msg.Untagged = true
	if err := msg.Create(key256); err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
	data, err := msg.MarshalCBOR()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if cbor.IsTagged(data) {
		t.Fatalf("untagged message encoded with tag")
	}
	if _, err := Decode(data, 0); !errors.Is(err, ErrNotTagged) {
		t.Fatalf("no default: have %v, want %v", err, ErrNotTagged)
	}
	decoded, err := Decode(data, MessageMAC0)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	mac0 := decoded.(*MAC0)
	if !mac0.Untagged {
		t.Fatalf("decoded message not marked untagged")
	}
	if valid, err := mac0.Validate(key256); err != nil || !valid {
		t.Fatalf("validation failed: %v/%v", valid, err)
	}
}

// Tests the decoder's rejection of inputs that are not the expected message.
func TestDecodeErrors(t *testing.T) {
	sign1 := NewSign1()
	sign1.SetContent(content)
	key, err := GenerateKey(AlgorithmEdDSA)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if err := sign1.Sign(key); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	tagged, err := sign1.MarshalCBOR()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	tests := []struct {
		name string
		data []byte
		def  MessageType
		want error
	}{
		{"tag mismatch", tagged, MessageMAC0, ErrTagMismatch},
		{"unknown tag", cbor.MustMarshal(cbor.Tag{Number: 99, Content: []any{}}), 0, ErrNotCOSE},
		{"not an array", cbor.MustMarshal(cbor.Tag{Number: 18, Content: int64(1)}), 0, ErrNotCOSE},
		{"wrong arity", cbor.MustMarshal(cbor.Tag{Number: 18, Content: []any{[]byte{}, map[any]any{}, []byte{}}}), 0, ErrMalformedInput},
		{"bad protected", cbor.MustMarshal(cbor.Tag{Number: 17, Content: []any{int64(1), map[any]any{}, []byte{}, []byte{}}}), 0, ErrMalformedInput},
		{"duplicate label", cbor.MustMarshal(cbor.Tag{Number: 17, Content: []any{
			cbor.MustMarshal(map[any]any{int64(1): int64(5)}), map[any]any{int64(1): int64(5)}, []byte{}, []byte{}}}), 0, ErrMalformedInput},
		{"garbage", []byte{0xff}, MessageSign1, ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data, tt.def); !errors.Is(err, tt.want) {
				t.Fatalf("have %v, want %v", err, tt.want)
			}
		})
	}
}

// Tests that uncomputed messages refuse to encode.
func TestEncodeNotComputed(t *testing.T) {
	for _, msg := range []Message{NewSign1(), NewMAC0(), NewEncrypt0(), NewMAC(), NewEncrypt()} {
		if _, err := msg.MarshalCBOR(); !errors.Is(err, ErrNotComputed) {
			t.Errorf("%v: have %v, want %v", msg.Type(), err, ErrNotComputed)
		}
	}
	if _, err := NewSign().MarshalCBOR(); !errors.Is(err, ErrNoSigners) {
		t.Errorf("Sign: have %v, want %v", err, ErrNoSigners)
	}
}

// Tests that a detached payload encodes as null and must be resupplied.
func TestDetachedContent(t *testing.T) {
	msg := NewSign1()
	msg.SetContent(content)
	msg.Detached = true

	key, err := GenerateKey(AlgorithmES256)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if err := msg.Sign(key); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	decoded := roundtrip(t, msg).(*Sign1)
	if !decoded.Detached || decoded.HasContent() {
		t.Fatalf("payload was not detached")
	}
	if _, err := decoded.Verify(key); !errors.Is(err, ErrNoContent) {
		t.Fatalf("missing payload: have %v, want %v", err, ErrNoContent)
	}
	decoded.SetContent(content)
	if valid, err := decoded.Verify(key.PublicKey()); err != nil || !valid {
		t.Fatalf("verification failed: %v/%v", valid, err)
	}
	if !bytes.Equal(decoded.Signature(), msg.Signature()) {
		t.Fatalf("signature mismatch")
	}
}
