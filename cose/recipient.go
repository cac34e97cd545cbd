// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"crypto"
	"fmt"
	"log/slog"

	"github.com/dark-bio/cose-go/cbor"
	"github.com/dark-bio/cose-go/ecdh"
	"github.com/dark-bio/cose-go/hkdf"
	"github.com/dark-bio/cose-go/keywrap"
)

// Recipient conveys the content key of an Encrypt or MAC message to one party,
// RFC 8152 Section 5.1. Recipients using key wrap may nest further recipients
// that convey the key encryption key.
//
//	COSE_recipient = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    ciphertext:  bstr / nil,
//	    ? recipients: [+COSE_recipient]
//	]
type Recipient struct {
	Attributes

	recipients []*Recipient
	key        *Key
	senderKey  *Key
	ciphertext []byte
}

// NewRecipient creates an empty recipient.
func NewRecipient() *Recipient {
	return new(Recipient)
}

// SetKey sets the recipient key: the shared secret of direct and key wrap
// modes, the recipient's agreement key otherwise. Its key ID is copied to the
// unprotected headers and its algorithm to the headers the mode requires, if
// neither is present yet.
func (r *Recipient) SetKey(key *Key) error {
	r.key = key
	if key == nil || r.Frozen() {
		return nil
	}
	if _, ok := r.Find(HeaderAlgorithm); !ok {
		if alg, ok := key.Algorithm(); ok {
			where := Unprotected
			switch alg.Family() {
			case FamilyKeyAgreement, FamilyKeyAgreementWrap, FamilyDirectKDF:
				where = Protected
			}
			if err := r.Add(HeaderAlgorithm, int64(alg), where); err != nil {
				return err
			}
		}
	}
	if _, ok := r.Find(HeaderKeyID); !ok {
		if kid := key.KeyID(); kid != nil {
			return r.Add(HeaderKeyID, kid, Unprotected)
		}
	}
	return nil
}

// Key returns the recipient key, nil if none is set.
func (r *Recipient) Key() *Key {
	return r.key
}

// SetSenderKey sets the static sender key of the ECDH-SS modes. Unless the
// sender is already identified by a static key ID header, its public key is
// published in the unprotected headers.
func (r *Recipient) SetSenderKey(key *Key) error {
	r.senderKey = key
	if key == nil || r.Frozen() {
		return nil
	}
	if _, ok := r.Find(HeaderStaticKeyID); ok {
		return nil
	}
	pub, err := key.ecdhPublic()
	if err != nil {
		return err
	}
	return r.Add(HeaderStaticKey, agreementKeyMap(pub), Unprotected)
}

// AddRecipient nests a recipient conveying this recipient's key encryption
// key.
func (r *Recipient) AddRecipient(child *Recipient) {
	r.recipients = append(r.recipients, child)
}

// Recipients returns the nested recipients.
func (r *Recipient) Recipients() []*Recipient {
	return r.recipients
}

// Recipient returns the i-th nested recipient, nil if out of range.
func (r *Recipient) Recipient(i int) *Recipient {
	if i < 0 || i >= len(r.recipients) {
		return nil
	}
	return r.recipients[i]
}

// EncryptedKey returns the wrapped content key, empty for direct modes.
func (r *Recipient) EncryptedKey() []byte {
	return r.ciphertext
}

// contentKey establishes the key content protected with alg is processed
// under: the key a direct recipient derives, or a fresh random key wrapped for
// every recipient.
func contentKey(alg Algorithm, recipients []*Recipient) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	for _, r := range recipients {
		ralg, err := r.algorithm()
		if err != nil {
			return nil, err
		}
		if !ralg.direct() {
			continue
		}
		if len(recipients) != 1 {
			return nil, ErrSingleRecipient
		}
		slog.Debug("deriving direct content key", "recipient", ralg, "content", alg)
		return r.derive(ralg, alg, true)
	}
	if alg.KeySize() == 0 {
		return nil, fmt.Errorf("%w: %v has no fixed key size", ErrUnsupportedAlgorithm, alg)
	}
	cek := randomBytes(alg.KeySize() / 8)
	for _, r := range recipients {
		if err := r.wrap(cek); err != nil {
			return nil, err
		}
	}
	return cek, nil
}

// recoverKey recovers the key content protected with alg is processed under,
// through the path of recipients from the message down to target.
func recoverKey(alg Algorithm, recipients []*Recipient, target *Recipient) ([]byte, error) {
	path := findRecipient(recipients, target)
	if path == nil {
		return nil, ErrRecipientNotFound
	}
	var key []byte
	for i := len(path) - 1; i >= 0; i-- {
		want := alg
		if i > 0 {
			parent, err := path[i-1].algorithm()
			if err != nil {
				return nil, err
			}
			want = parent
		}
		k, err := path[i].unwrap(want, key)
		if err != nil {
			return nil, err
		}
		key = k
	}
	return key, nil
}

// findRecipient returns the chain of recipients leading to target.
func findRecipient(list []*Recipient, target *Recipient) []*Recipient {
	for _, r := range list {
		if r == target {
			return []*Recipient{r}
		}
		if sub := findRecipient(r.recipients, target); sub != nil {
			return append([]*Recipient{r}, sub...)
		}
	}
	return nil
}

// derive computes the key for target with a direct mode recipient algorithm.
// The sender side publishes the ephemeral key and nonces it generates.
func (r *Recipient) derive(ralg, target Algorithm, sender bool) ([]byte, error) {
	size := target.KeySize() / 8
	switch ralg.Family() {
	case FamilyDirect:
		key, err := r.secret(ralg)
		if err != nil {
			return nil, err
		}
		if err := checkKeySize(target, key); err != nil {
			return nil, err
		}
		return key, r.bind(sender, []byte{})

	case FamilyDirectKDF:
		if ralg.hash() == 0 {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, ralg)
		}
		secret, err := r.secret(ralg)
		if err != nil {
			return nil, err
		}
		if sender {
			if err := r.addNonce(); err != nil {
				return nil, err
			}
		}
		key, err := r.kdf(ralg.hash(), secret, target, size)
		if err != nil {
			return nil, err
		}
		return key, r.bind(sender, []byte{})

	case FamilyKeyAgreement:
		shared, err := r.agree(ralg, sender)
		if err != nil {
			return nil, err
		}
		key, err := r.kdf(ralg.hash(), shared, target, size)
		if err != nil {
			return nil, err
		}
		return key, r.bind(sender, []byte{})

	default:
		return nil, fmt.Errorf("%w: %v is not a direct mode", ErrUnsupportedAlgorithm, ralg)
	}
}

// wrap encrypts the content key for this recipient with a key wrap or key
// agreement wrap algorithm.
func (r *Recipient) wrap(cek []byte) error {
	ralg, err := r.algorithm()
	if err != nil {
		return err
	}
	kek, err := r.keyEncryptionKey(ralg, nil, true)
	if err != nil {
		return err
	}
	wrapped, err := keywrap.Wrap(kek, cek)
	if err != nil {
		return malformed(err)
	}
	slog.Debug("wrapped content key", "recipient", ralg, "bits", len(cek)*8)
	return r.bind(true, wrapped)
}

// unwrap recovers the key for target from this recipient. For key wrap modes
// with nested recipients, child is the key encryption key recovered from
// them.
func (r *Recipient) unwrap(target Algorithm, child []byte) ([]byte, error) {
	ralg, err := r.algorithm()
	if err != nil {
		return nil, err
	}
	if ralg.direct() {
		return r.derive(ralg, target, false)
	}
	kek, err := r.keyEncryptionKey(ralg, child, false)
	if err != nil {
		return nil, err
	}
	if len(r.ciphertext) == 0 {
		return nil, ErrNoContent
	}
	cek, err := keywrap.Unwrap(kek, r.ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if target.KeySize() != 0 {
		if err := checkKeySize(target, cek); err != nil {
			return nil, err
		}
	}
	return cek, nil
}

// keyEncryptionKey returns the AES key wrap key of a wrapping recipient: the
// shared secret or the key conveyed by nested recipients for key wrap, the
// HKDF output over the agreed secret for key agreement wrap.
func (r *Recipient) keyEncryptionKey(ralg Algorithm, child []byte, sender bool) ([]byte, error) {
	switch ralg.Family() {
	case FamilyKeyWrap:
		kek := child
		if len(r.recipients) > 0 && sender {
			var err error
			if kek, err = contentKey(ralg, r.recipients); err != nil {
				return nil, err
			}
		}
		if kek == nil {
			var err error
			if kek, err = r.secret(ralg); err != nil {
				return nil, err
			}
		}
		if err := checkKeySize(ralg, kek); err != nil {
			return nil, err
		}
		return kek, nil

	case FamilyKeyAgreementWrap:
		shared, err := r.agree(ralg, sender)
		if err != nil {
			return nil, err
		}
		return r.kdf(ralg.hash(), shared, ralg.keyWrap(), ralg.KeySize()/8)

	default:
		return nil, fmt.Errorf("%w: %v cannot be used by a recipient", ErrUnsupportedAlgorithm, ralg)
	}
}

// secret returns the symmetric recipient key.
func (r *Recipient) secret(ralg Algorithm) ([]byte, error) {
	if r.key == nil {
		return nil, ErrNoKey
	}
	if err := checkKeyAlgorithm(r.key, ralg); err != nil {
		return nil, err
	}
	key := r.key.SymmetricKey()
	if key == nil {
		return nil, ErrWrongKeyType
	}
	return key, nil
}

// addNonce adds a random PartyU nonce unless a salt or a nonce already makes
// the derivation unique.
func (r *Recipient) addNonce() error {
	if _, ok := r.Find(HeaderSalt); ok {
		return nil
	}
	if _, ok := r.Find(HeaderPartyUNonce); ok {
		return nil
	}
	return r.Add(HeaderPartyUNonce, randomBytes(32), Unprotected)
}

// agree computes the ECDH shared secret. The sender combines a fresh ephemeral
// key or its static key with the recipient's public key; the receiver combines
// its private key with the sender key carried in the headers.
func (r *Recipient) agree(ralg Algorithm, sender bool) ([]byte, error) {
	if r.key == nil {
		return nil, ErrNoKey
	}
	if err := checkKeyAlgorithm(r.key, ralg); err != nil {
		return nil, err
	}
	var (
		secret *ecdh.SecretKey
		peer   *ecdh.PublicKey
		err    error
	)
	if sender {
		if peer, err = r.key.ecdhPublic(); err != nil {
			return nil, err
		}
		if ralg.static() {
			if r.senderKey == nil {
				return nil, fmt.Errorf("%w: static sender key required", ErrNoKey)
			}
			if secret, err = r.senderKey.ecdhSecret(); err != nil {
				return nil, err
			}
			if err := r.addNonce(); err != nil {
				return nil, err
			}
		} else {
			if secret, err = ecdh.GenerateKey(peer.Curve()); err != nil {
				return nil, malformed(err)
			}
			if err := r.Add(HeaderEphemeralKey, agreementKeyMap(secret.PublicKey()), Unprotected); err != nil {
				return nil, err
			}
		}
	} else {
		if secret, err = r.key.ecdhSecret(); err != nil {
			return nil, err
		}
		if peer, err = r.peerKey(ralg); err != nil {
			return nil, err
		}
	}
	shared, err := secret.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	return shared, nil
}

// peerKey returns the sender key the receiver agrees with: the ephemeral key
// for ECDH-ES, the static key (sent or staged as do-not-send) for ECDH-SS.
func (r *Recipient) peerKey(ralg Algorithm) (*ecdh.PublicKey, error) {
	label := HeaderEphemeralKey
	if ralg.static() {
		label = HeaderStaticKey
	}
	v, ok := r.Find(label)
	if !ok && ralg.static() {
		v, ok = r.FindIn(label, DoNotSend)
	}
	if !ok {
		return nil, fmt.Errorf("%w: sender key not present", ErrNoKey)
	}
	var key *Key
	switch v := v.(type) {
	case *Key:
		key = v
	default:
		m, ok := cbor.Map(v)
		if !ok {
			return nil, ErrMalformedKey
		}
		var err error
		if key, err = NewKey(m); err != nil {
			return nil, err
		}
	}
	return key.ecdhPublic()
}

// kdf derives size bytes for target with HKDF, salted by the salt header and
// bound to the recipient's protected headers, which it freezes.
func (r *Recipient) kdf(h crypto.Hash, secret []byte, target Algorithm, size int) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: %v has no fixed key size", ErrUnsupportedAlgorithm, target)
	}
	prot, err := r.protectedBytes()
	if err != nil {
		return nil, err
	}
	info := kdfInfo(target, size*8, prot, &r.Attributes)
	key := hkdf.KeyWithHash(h, secret, r.bytesHeader(HeaderSalt), info, size)
	r.freeze(prot)
	return key, nil
}

// bind freezes the protected headers and stores the ciphertext on the sender
// side.
func (r *Recipient) bind(sender bool, ciphertext []byte) error {
	if !sender {
		return nil
	}
	prot, err := r.protectedBytes()
	if err != nil {
		return err
	}
	r.freeze(prot)
	r.ciphertext = ciphertext
	return nil
}

// items returns the wire elements of the recipient.
func (r *Recipient) items() ([]any, error) {
	if r.ciphertext == nil {
		return nil, ErrNotComputed
	}
	prot, err := r.protectedBytes()
	if err != nil {
		return nil, err
	}
	items := []any{prot, r.unprotectedMap(), r.ciphertext}
	if len(r.recipients) > 0 {
		nested := make([]any, len(r.recipients))
		for i, child := range r.recipients {
			if nested[i], err = child.items(); err != nil {
				return nil, err
			}
		}
		items = append(items, nested)
	}
	return items, nil
}

// MarshalCBOR implements cbor.Marshaler.
func (r *Recipient) MarshalCBOR() ([]byte, error) {
	items, err := r.items()
	if err != nil {
		return nil, err
	}
	data, err := cbor.Marshal(items)
	if err != nil {
		return nil, malformed(err)
	}
	return data, nil
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (r *Recipient) UnmarshalCBOR(data []byte) error {
	v, err := cbor.Decode(data)
	if err != nil {
		return malformed(err)
	}
	return r.decode(v)
}

// decode restores the recipient and its nested recipients from a decoded
// array.
func (r *Recipient) decode(v any) error {
	items, ok := cbor.Array(v)
	if !ok || (len(items) != 3 && len(items) != 4) {
		return structureError("Recipient")
	}
	if err := r.decodeHeaders("Recipient", items[0], items[1]); err != nil {
		return err
	}
	ct, _, err := decodeContent("Recipient", items[2])
	if err != nil {
		return err
	}
	r.ciphertext = nonNil(ct)
	r.recipients = nil
	if len(items) == 4 {
		nested, err := decodeRecipients(items[3])
		if err != nil {
			return err
		}
		r.recipients = nested
	}
	return nil
}

// decodeRecipients restores a non-empty recipient array.
func decodeRecipients(v any) ([]*Recipient, error) {
	list, ok := cbor.Array(v)
	if !ok || len(list) == 0 {
		return nil, structureError("Recipient")
	}
	out := make([]*Recipient, len(list))
	for i, item := range list {
		out[i] = NewRecipient()
		if err := out[i].decode(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// encodeRecipients returns the wire elements of a recipient list.
func encodeRecipients(list []*Recipient) ([]any, error) {
	if len(list) == 0 {
		return nil, ErrNoRecipients
	}
	out := make([]any, len(list))
	for i, r := range list {
		items, err := r.items()
		if err != nil {
			return nil, err
		}
		out[i] = items
	}
	return out, nil
}

