// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

// Encrypt is a message encrypted with a content key conveyed to one or more
// recipients, RFC 8152 Section 5.1.
//
//	COSE_Encrypt = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    ciphertext:  bstr / nil,
//	    recipients:  [+COSE_recipient]
//	]
type Encrypt struct {
	envelope

	recipients []*Recipient
	ciphertext []byte
}

// NewEncrypt creates an empty tagged Encrypt message.
func NewEncrypt() *Encrypt {
	return new(Encrypt)
}

// Type implements Message.
func (m *Encrypt) Type() MessageType {
	return MessageEncrypt
}

// AddRecipient adds a recipient the content key is conveyed to.
func (m *Encrypt) AddRecipient(r *Recipient) {
	m.recipients = append(m.recipients, r)
}

// Recipients returns the top level recipients.
func (m *Encrypt) Recipients() []*Recipient {
	return m.recipients
}

// Recipient returns the i-th top level recipient, nil if out of range.
func (m *Encrypt) Recipient(i int) *Recipient {
	if i < 0 || i >= len(m.recipients) {
		return nil
	}
	return m.recipients[i]
}

// EncryptedContent returns the computed or decoded ciphertext.
func (m *Encrypt) EncryptedContent() []byte {
	return m.ciphertext
}

// SetEncryptedContent supplies the ciphertext of a message whose ciphertext
// was detached.
func (m *Encrypt) SetEncryptedContent(ciphertext []byte) {
	m.ciphertext = append([]byte{}, ciphertext...)
}

// Encrypt establishes the content key through the recipients and encrypts the
// content. Unless an IV or partial IV header is present, a random IV is added
// to the unprotected headers.
func (m *Encrypt) Encrypt() error {
	alg, err := m.algorithm()
	if err != nil {
		return err
	}
	if alg.Family() != FamilyAEAD {
		return ErrUnsupportedAlgorithm
	}
	if m.content == nil {
		return ErrNoContent
	}
	key, err := contentKey(alg, m.recipients)
	if err != nil {
		return err
	}
	ct, err := m.seal(contextEncrypt, alg, key, nil, true)
	if err != nil {
		return err
	}
	m.ciphertext = ct
	return nil
}

// Decrypt recovers the content key through the given recipient, which may be
// nested at any depth, and decrypts the ciphertext, returning and storing the
// plaintext content.
func (m *Encrypt) Decrypt(r *Recipient) ([]byte, error) {
	if m.ciphertext == nil {
		return nil, ErrNoContent
	}
	alg, err := m.algorithm()
	if err != nil {
		return nil, err
	}
	if alg.Family() != FamilyAEAD {
		return nil, ErrUnsupportedAlgorithm
	}
	key, err := recoverKey(alg, m.recipients, r)
	if err != nil {
		return nil, err
	}
	return m.open(contextEncrypt, alg, key, nil, m.ciphertext)
}

// MarshalCBOR implements cbor.Marshaler.
func (m *Encrypt) MarshalCBOR() ([]byte, error) {
	if m.ciphertext == nil {
		return nil, ErrNotComputed
	}
	prot, err := m.protectedBytes()
	if err != nil {
		return nil, err
	}
	recipients, err := encodeRecipients(m.recipients)
	if err != nil {
		return nil, err
	}
	return m.encode(MessageEncrypt, []any{prot, m.unprotectedMap(), m.wire(m.ciphertext), recipients})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *Encrypt) UnmarshalCBOR(data []byte) error {
	items, err := m.decode(MessageEncrypt, data, 4)
	if err != nil {
		return err
	}
	ct, detached, err := decodeContent("Encrypt", items[2])
	if err != nil {
		return err
	}
	recipients, err := decodeRecipients(items[3])
	if err != nil {
		return err
	}
	m.ciphertext, m.Detached, m.recipients, m.content = ct, detached, recipients, nil
	return nil
}
