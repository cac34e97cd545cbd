// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of them,
// so callers can branch with errors.Is on the kind alone.
var (
	// ErrMalformedInput covers bad CBOR structure, wrong array arity, wrong
	// element types and bad key field types.
	ErrMalformedInput = errors.New("cose: malformed input")

	// ErrAlgorithm covers absent, unknown and unsupported algorithms.
	ErrAlgorithm = errors.New("cose: algorithm error")

	// ErrKeyMismatch covers keys unfit for the requested operation.
	ErrKeyMismatch = errors.New("cose: key mismatch")

	// ErrIntegrity is returned when authenticated decryption fails. Signature
	// and tag mismatches are reported as a false result instead.
	ErrIntegrity = errors.New("cose: integrity violation")

	// ErrProtectedMutation is returned when changing protected attributes
	// after they were bound by a computation or decoded from the wire.
	ErrProtectedMutation = errors.New("cose: operation would modify integrity protected attributes")
)

// Malformed input errors.
var (
	ErrInvalidLabel           = fmt.Errorf("%w: labels must be integers or strings", ErrMalformedInput)
	ErrInvalidVisibility      = fmt.Errorf("%w: invalid attribute location given", ErrMalformedInput)
	ErrMalformedKey           = fmt.Errorf("%w: malformed key structure", ErrMalformedInput)
	ErrUnsupportedKeyType     = fmt.Errorf("%w: unsupported key type", ErrMalformedInput)
	ErrNotTagged              = fmt.Errorf("%w: object was not tagged and no default tagging option given", ErrMalformedInput)
	ErrTagMismatch            = fmt.Errorf("%w: object tag does not match the expected message type", ErrMalformedInput)
	ErrNotCOSE                = fmt.Errorf("%w: object is not a COSE security object", ErrMalformedInput)
	ErrNoContent              = fmt.Errorf("%w: no content specified", ErrMalformedInput)
	ErrNoRecipients           = fmt.Errorf("%w: no recipients supplied", ErrMalformedInput)
	ErrNoSigners              = fmt.Errorf("%w: no signers supplied", ErrMalformedInput)
	ErrSingleRecipient        = fmt.Errorf("%w: direct key modes require a single recipient", ErrMalformedInput)
	ErrRecipientNotFound      = fmt.Errorf("%w: recipient is not part of the message", ErrMalformedInput)
	ErrSignerNotFound         = fmt.Errorf("%w: signer is not part of the message", ErrMalformedInput)
	ErrNotComputed            = fmt.Errorf("%w: message must be signed, MACed or encrypted before encoding", ErrMalformedInput)
	ErrMissingIV              = fmt.Errorf("%w: no IV specified", ErrMalformedInput)
	ErrMalformedIV            = fmt.Errorf("%w: IV is incorrectly formed", ErrMalformedInput)
	ErrIVSize                 = fmt.Errorf("%w: IV size is incorrect", ErrMalformedInput)
	ErrCounterSign1Attributes = fmt.Errorf("%w: CounterSign1 object cannot have protected or unprotected attributes", ErrMalformedInput)
)

// Algorithm errors.
var (
	ErrNoAlgorithm          = fmt.Errorf("%w: no algorithm specified", ErrAlgorithm)
	ErrUnknownAlgorithm     = fmt.Errorf("%w: unknown algorithm specified", ErrAlgorithm)
	ErrUnsupportedAlgorithm = fmt.Errorf("%w: unsupported algorithm specified", ErrAlgorithm)
	ErrUnsupportedMAC       = fmt.Errorf("%w: unsupported MAC algorithm", ErrUnsupportedAlgorithm)
)

// Key errors.
var (
	ErrNoKey              = fmt.Errorf("%w: no key specified", ErrKeyMismatch)
	ErrPrivateKeyRequired = fmt.Errorf("%w: private key required to sign", ErrKeyMismatch)
	ErrKeySize            = fmt.Errorf("%w: key size is incorrect", ErrKeyMismatch)
	ErrWrongKeyType       = fmt.Errorf("%w: key type does not match the algorithm", ErrKeyMismatch)
	ErrKeyImmutable       = fmt.Errorf("%w: key material labels cannot be changed", ErrKeyMismatch)
)

// ErrDecryptionFailed is returned when a ciphertext or wrapped key fails to
// authenticate.
var ErrDecryptionFailed = fmt.Errorf("%w: decryption failed", ErrIntegrity)

// structureError reports a wire shape violation of the named variant.
func structureError(variant string) error {
	return fmt.Errorf("%w: invalid %s structure", ErrMalformedInput, variant)
}

// malformed wraps a collaborator error into the malformed input kind.
func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedInput, err)
}
