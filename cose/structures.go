// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import "github.com/dark-bio/cose-go/cbor"

// Context strings of the structures integrity protected data is built from,
// RFC 8152 Sections 4.4, 5.3, 6.3 and 11.2.
const (
	contextSignature         = "Signature"
	contextSignature1        = "Signature1"
	contextCounterSignature  = "CounterSignature"
	contextCounterSignature0 = "CounterSignature0"
	contextMAC               = "MAC"
	contextMAC0              = "MAC0"
	contextEncrypt           = "Encrypt"
	contextEncrypt0          = "Encrypt0"
)

// sigStructure is the Sig_structure of a signer or a counter signer.
//
//	Sig_structure = [
//	    context:        "Signature" / "CounterSignature",
//	    body_protected: bstr,
//	    sign_protected: bstr,
//	    external_aad:   bstr,
//	    payload:        bstr
//	]
type sigStructure struct {
	_             struct{} `cbor:",toarray"`
	Context       string
	BodyProtected []byte
	SignProtected []byte
	ExternalAAD   []byte
	Payload       []byte
}

// bodyStructure is the four element structure shared by Sign1, MAC, MAC0 and
// CounterSignature0, none of which carries separate signer attributes.
//
//	Structure = [
//	    context:      "Signature1" / "MAC" / "MAC0" / "CounterSignature0",
//	    protected:    bstr,
//	    external_aad: bstr,
//	    payload:      bstr
//	]
type bodyStructure struct {
	_           struct{} `cbor:",toarray"`
	Context     string
	Protected   []byte
	ExternalAAD []byte
	Payload     []byte
}

// encStructure is the Enc_structure used as AEAD associated data.
//
//	Enc_structure = [
//	    context:      "Encrypt" / "Encrypt0" / "Enc_Recipient",
//	    protected:    bstr,
//	    external_aad: bstr
//	]
type encStructure struct {
	_           struct{} `cbor:",toarray"`
	Context     string
	Protected   []byte
	ExternalAAD []byte
}

// partyInfo is the PartyUInfo or PartyVInfo of a KDF context. Absent fields
// encode as null.
type partyInfo struct {
	_        struct{} `cbor:",toarray"`
	Identity []byte
	Nonce    []byte
	Other    []byte
}

// suppPubInfo is the SuppPubInfo of a KDF context.
type suppPubInfo struct {
	_         struct{} `cbor:",toarray"`
	KeyBits   int
	Protected []byte
}

// kdfContext is the COSE_KDF_Context bound into every HKDF derived key.
//
//	COSE_KDF_Context = [
//	    AlgorithmID: int,
//	    PartyUInfo:  [identity, nonce, other],
//	    PartyVInfo:  [identity, nonce, other],
//	    SuppPubInfo: [keyDataLength, protected]
//	]
type kdfContext struct {
	_           struct{} `cbor:",toarray"`
	AlgorithmID int64
	PartyU      partyInfo
	PartyV      partyInfo
	SuppPub     suppPubInfo
}

// nonNil maps a nil byte slice onto an empty one so it encodes as a zero
// length byte string instead of null.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func signatureContext(context string, bodyProt, signProt, aad, payload []byte) []byte {
	return cbor.MustMarshal(&sigStructure{
		Context:       context,
		BodyProtected: nonNil(bodyProt),
		SignProtected: nonNil(signProt),
		ExternalAAD:   nonNil(aad),
		Payload:       nonNil(payload),
	})
}

func bodyContext(context string, prot, aad, payload []byte) []byte {
	return cbor.MustMarshal(&bodyStructure{
		Context:     context,
		Protected:   nonNil(prot),
		ExternalAAD: nonNil(aad),
		Payload:     nonNil(payload),
	})
}

func encContext(context string, prot, aad []byte) []byte {
	return cbor.MustMarshal(&encStructure{
		Context:     context,
		Protected:   nonNil(prot),
		ExternalAAD: nonNil(aad),
	})
}

// kdfInfo builds the HKDF info input for a key of keyBits bits used with alg.
// The party fields are read from the recipient headers.
func kdfInfo(alg Algorithm, keyBits int, recipientProt []byte, attrs *Attributes) []byte {
	return cbor.MustMarshal(&kdfContext{
		AlgorithmID: int64(alg),
		PartyU: partyInfo{
			Identity: attrs.bytesHeader(HeaderPartyUIdentity),
			Nonce:    attrs.bytesHeader(HeaderPartyUNonce),
			Other:    attrs.bytesHeader(HeaderPartyUOther),
		},
		PartyV: partyInfo{
			Identity: attrs.bytesHeader(HeaderPartyVIdentity),
			Nonce:    attrs.bytesHeader(HeaderPartyVNonce),
			Other:    attrs.bytesHeader(HeaderPartyVOther),
		},
		SuppPub: suppPubInfo{
			KeyBits:   keyBits,
			Protected: nonNil(recipientProt),
		},
	})
}
