// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

// Encrypt0 is a message encrypted with a key both parties already share, RFC
// 8152 Section 5.2.
//
//	COSE_Encrypt0 = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    ciphertext:  bstr / nil
//	]
type Encrypt0 struct {
	envelope

	ciphertext []byte
}

// NewEncrypt0 creates an empty tagged Encrypt0 message.
func NewEncrypt0() *Encrypt0 {
	return new(Encrypt0)
}

// Type implements Message.
func (m *Encrypt0) Type() MessageType {
	return MessageEncrypt0
}

// EncryptedContent returns the computed or decoded ciphertext.
func (m *Encrypt0) EncryptedContent() []byte {
	return m.ciphertext
}

// SetEncryptedContent supplies the ciphertext of a message whose ciphertext
// was detached.
func (m *Encrypt0) SetEncryptedContent(ciphertext []byte) {
	m.ciphertext = append([]byte{}, ciphertext...)
}

// Encrypt encrypts the content with the shared key. The IV header, or a
// partial IV combined with a base IV, must be supplied by the caller.
func (m *Encrypt0) Encrypt(key []byte) error {
	return m.encrypt(key, nil)
}

// EncryptWithKey encrypts with a symmetric COSE key, whose base IV a partial
// IV header is combined with.
func (m *Encrypt0) EncryptWithKey(key *Key) error {
	secret, err := symmetricSecret(&m.Attributes, key)
	if err != nil {
		return err
	}
	return m.encrypt(secret, key.BaseIV())
}

func (m *Encrypt0) encrypt(key, baseIV []byte) error {
	alg, err := m.algorithm()
	if err != nil {
		return err
	}
	ct, err := m.seal(contextEncrypt0, alg, key, baseIV, false)
	if err != nil {
		return err
	}
	m.ciphertext = ct
	return nil
}

// Decrypt decrypts the ciphertext with the shared key, returning and storing
// the plaintext content.
func (m *Encrypt0) Decrypt(key []byte) ([]byte, error) {
	return m.decrypt(key, nil)
}

// DecryptWithKey decrypts with a symmetric COSE key.
func (m *Encrypt0) DecryptWithKey(key *Key) ([]byte, error) {
	secret, err := symmetricSecret(&m.Attributes, key)
	if err != nil {
		return nil, err
	}
	return m.decrypt(secret, key.BaseIV())
}

func (m *Encrypt0) decrypt(key, baseIV []byte) ([]byte, error) {
	alg, err := m.algorithm()
	if err != nil {
		return nil, err
	}
	return m.open(contextEncrypt0, alg, key, baseIV, m.ciphertext)
}

// MarshalCBOR implements cbor.Marshaler.
func (m *Encrypt0) MarshalCBOR() ([]byte, error) {
	if m.ciphertext == nil {
		return nil, ErrNotComputed
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return nil, err
	}
	return m.encode(MessageEncrypt0, []any{prot, m.unprotectedMap(), m.wire(m.ciphertext)})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *Encrypt0) UnmarshalCBOR(data []byte) error {
	items, err := m.decode(MessageEncrypt0, data, 3)
	if err != nil {
		return err
	}
	ct, detached, err := decodeContent("Encrypt0", items[2])
	if err != nil {
		return err
	}
	m.ciphertext, m.Detached, m.content = ct, detached, nil
	return nil
}

