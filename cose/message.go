// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"fmt"

	"github.com/dark-bio/cose-go/cbor"
)

// MessageType identifies one of the six COSE message variants. The values are
// the CBOR tags of RFC 8152 Section 2.
type MessageType uint64

const (
	MessageEncrypt0 MessageType = 16
	MessageMAC0     MessageType = 17
	MessageSign1    MessageType = 18
	MessageEncrypt  MessageType = 96
	MessageMAC      MessageType = 97
	MessageSign     MessageType = 98
)

// Tag returns the CBOR tag number of the message type.
func (t MessageType) Tag() uint64 {
	return uint64(t)
}

// String implements fmt.Stringer.
func (t MessageType) String() string {
	switch t {
	case MessageEncrypt0:
		return "Encrypt0"
	case MessageMAC0:
		return "MAC0"
	case MessageSign1:
		return "Sign1"
	case MessageEncrypt:
		return "Encrypt"
	case MessageMAC:
		return "MAC"
	case MessageSign:
		return "Sign"
	default:
		return fmt.Sprintf("MessageType(%d)", uint64(t))
	}
}

// Message is implemented by the six COSE message variants.
type Message interface {
	// Type returns the variant of the message.
	Type() MessageType

	// MarshalCBOR encodes the message, tagged unless configured otherwise.
	MarshalCBOR() ([]byte, error)

	// UnmarshalCBOR decodes a tagged or untagged message of this variant.
	UnmarshalCBOR(data []byte) error
}

// newMessage creates an empty message of the given variant.
func newMessage(t MessageType) Message {
	switch t {
	case MessageEncrypt0:
		return NewEncrypt0()
	case MessageMAC0:
		return NewMAC0()
	case MessageSign1:
		return NewSign1()
	case MessageEncrypt:
		return NewEncrypt()
	case MessageMAC:
		return NewMAC()
	case MessageSign:
		return NewSign()
	default:
		return nil
	}
}

// Decode parses a COSE message. A tagged input selects its own variant, which
// must agree with def if def is non-zero. An untagged input is decoded as def,
// failing with ErrNotTagged if def is zero.
func Decode(data []byte, def MessageType) (Message, error) {
	typ := def
	if cbor.IsTagged(data) {
		tag, _, err := cbor.UnmarshalTag(data)
		if err != nil {
			return nil, malformed(err)
		}
		if newMessage(MessageType(tag)) == nil {
			return nil, ErrNotCOSE
		}
		if def != 0 && MessageType(tag) != def {
			return nil, ErrTagMismatch
		}
		typ = MessageType(tag)
	} else if def == 0 {
		return nil, ErrNotTagged
	}
	msg := newMessage(typ)
	if msg == nil {
		return nil, ErrNotCOSE
	}
	if err := msg.UnmarshalCBOR(data); err != nil {
		return nil, err
	}
	return msg, nil
}

// envelope is the state shared by every message variant: the body attributes,
// the content and the wire options.
type envelope struct {
	Attributes

	// Untagged makes the message encode without its CBOR tag. Decoding sets it
	// to reflect the input.
	Untagged bool

	// Detached makes the message encode its payload or ciphertext as null, to
	// be conveyed out of band. Decoding sets it if the input carried null.
	Detached bool

	content []byte
}

// SetContent sets the payload of a signed or MACed message, or the plaintext
// of an encrypted one.
func (e *envelope) SetContent(content []byte) {
	e.content = append([]byte{}, content...)
}

// Content returns the payload or plaintext, nil if none is held.
func (e *envelope) Content() []byte {
	return e.content
}

// HasContent reports whether a payload or plaintext is held.
func (e *envelope) HasContent() bool {
	return e.content != nil
}

// wire returns the element that goes into the payload or ciphertext slot.
func (e *envelope) wire(data []byte) any {
	if e.Detached || data == nil {
		return nil
	}
	return data
}

// encode serializes the message elements, wrapping them into the tag of the
// variant unless untagged.
func (e *envelope) encode(t MessageType, items []any) ([]byte, error) {
	var v any = items
	if !e.Untagged {
		v = cbor.Tag{Number: t.Tag(), Content: items}
	}
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, malformed(err)
	}
	return data, nil
}

// decode splits a message into its n elements and restores the body headers
// from the first two. The payload or ciphertext slot is returned as is.
func (e *envelope) decode(t MessageType, data []byte, n int) ([]any, error) {
	raw := data
	e.Untagged = true
	if cbor.IsTagged(data) {
		tag, content, err := cbor.UnmarshalTag(data)
		if err != nil {
			return nil, malformed(err)
		}
		if MessageType(tag) != t {
			return nil, ErrTagMismatch
		}
		raw, e.Untagged = content, false
	}
	v, err := cbor.Decode(raw)
	if err != nil {
		return nil, malformed(err)
	}
	items, ok := cbor.Array(v)
	if !ok {
		return nil, ErrNotCOSE
	}
	if len(items) != n {
		return nil, structureError(t.String())
	}
	if err := e.decodeHeaders(t.String(), items[0], items[1]); err != nil {
		return nil, err
	}
	return items, nil
}

// decodeContent restores the payload or ciphertext slot: a byte string, or
// null for detached content.
func decodeContent(variant string, item any) ([]byte, bool, error) {
	if item == nil {
		return nil, true, nil
	}
	b, ok := cbor.Bytes(item)
	if !ok {
		return nil, false, structureError(variant)
	}
	return b, false, nil
}
