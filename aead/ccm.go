// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"math"
)

// ccm implements AES-CCM, RFC 3610. COSE names its variants after the length
// field size in bits and the tag size in bits (AES-CCM-16-64-128 uses a 2 byte
// length, 13 byte nonce and 8 byte tag).
type ccm struct {
	block  cipher.Block
	lsize  int // bytes in the length field, 2..8
	tagLen int // bytes in the tag, even 4..16
}

// NewCCM returns AES-CCM with the given nonce and tag lengths in bytes. The
// nonce must be 7..13 bytes and the tag an even 4..16 bytes.
func NewCCM(key []byte, nonceSize, tagSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if nonceSize < 7 || nonceSize > 13 {
		return nil, errors.New("aead: invalid CCM nonce size")
	}
	if tagSize < 4 || tagSize > 16 || tagSize%2 != 0 {
		return nil, errors.New("aead: invalid CCM tag size")
	}
	return &ccm{block: block, lsize: 15 - nonceSize, tagLen: tagSize}, nil
}

func (c *ccm) NonceSize() int { return 15 - c.lsize }

func (c *ccm) Overhead() int { return c.tagLen }

// maxLength is the largest message the length field can describe.
func (c *ccm) maxLength() uint64 {
	if c.lsize >= 8 {
		return math.MaxInt
	}
	return 1<<(8*c.lsize) - 1
}

func (c *ccm) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if len(nonce) != c.NonceSize() {
		panic("aead: incorrect nonce length given to CCM")
	}
	if uint64(len(plaintext)) > c.maxLength() {
		panic("aead: message too large for CCM length field")
	}
	tag := c.auth(nonce, plaintext, additionalData)

	ret, out := sliceForAppend(dst, len(plaintext)+c.tagLen)
	c.crypt(nonce, out[:len(plaintext)], plaintext)
	c.tagMask(nonce, out[len(plaintext):], tag)
	return ret
}

func (c *ccm) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != c.NonceSize() {
		panic("aead: incorrect nonce length given to CCM")
	}
	if len(ciphertext) < c.tagLen || uint64(len(ciphertext)-c.tagLen) > c.maxLength() {
		return nil, ErrOpen
	}
	body, sealed := ciphertext[:len(ciphertext)-c.tagLen], ciphertext[len(ciphertext)-c.tagLen:]

	plaintext := make([]byte, len(body))
	c.crypt(nonce, plaintext, body)

	expected := make([]byte, c.tagLen)
	c.tagMask(nonce, expected, c.auth(nonce, plaintext, additionalData))
	if subtle.ConstantTimeCompare(expected, sealed) != 1 {
		clear(plaintext)
		return nil, ErrOpen
	}
	ret, out := sliceForAppend(dst, len(plaintext))
	copy(out, plaintext)
	return ret, nil
}

// auth computes the raw CBC-MAC tag T over B_0, the encoded additional data
// and the message, each section zero padded to the block size.
func (c *ccm) auth(nonce, plaintext, additionalData []byte) []byte {
	var b0 [aes.BlockSize]byte
	b0[0] = byte((c.tagLen-2)/2<<3 | (c.lsize - 1))
	if len(additionalData) > 0 {
		b0[0] |= 1 << 6
	}
	copy(b0[1:], nonce)
	putLength(b0[1+len(nonce):], uint64(len(plaintext)))

	var stream []byte
	stream = append(stream, b0[:]...)
	if n := len(additionalData); n > 0 {
		switch {
		case n < 1<<16-1<<8:
			stream = binary.BigEndian.AppendUint16(stream, uint16(n))
		case uint64(n) <= math.MaxUint32:
			stream = append(stream, 0xff, 0xfe)
			stream = binary.BigEndian.AppendUint32(stream, uint32(n))
		default:
			stream = append(stream, 0xff, 0xff)
			stream = binary.BigEndian.AppendUint64(stream, uint64(n))
		}
		stream = append(stream, additionalData...)
		stream = pad(stream)
	}
	stream = append(stream, plaintext...)
	stream = pad(stream)

	state := make([]byte, aes.BlockSize)
	for i := 0; i < len(stream); i += aes.BlockSize {
		subtle.XORBytes(state, state, stream[i:i+aes.BlockSize])
		c.block.Encrypt(state, state)
	}
	return state[:c.tagLen]
}

// crypt runs CTR mode from counter block A_1 over src.
func (c *ccm) crypt(nonce, dst, src []byte) {
	cipher.NewCTR(c.block, c.counter(nonce, 1)).XORKeyStream(dst, src)
}

// tagMask encrypts the tag with S_0.
func (c *ccm) tagMask(nonce, dst, tag []byte) {
	s0 := c.counter(nonce, 0)
	c.block.Encrypt(s0, s0)
	subtle.XORBytes(dst, tag, s0[:c.tagLen])
}

// counter builds counter block A_i.
func (c *ccm) counter(nonce []byte, i uint64) []byte {
	a := make([]byte, aes.BlockSize)
	a[0] = byte(c.lsize - 1)
	copy(a[1:], nonce)
	putLength(a[1+len(nonce):], i)
	return a
}

// putLength writes v big endian into the whole of b.
func putLength(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// pad zero extends b to a multiple of the block size.
func pad(b []byte) []byte {
	if rem := len(b) % aes.BlockSize; rem != 0 {
		b = append(b, make([]byte, aes.BlockSize-rem)...)
	}
	return b
}

// sliceForAppend extends in by n bytes, returning the whole slice and the
// newly added tail.
func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}
