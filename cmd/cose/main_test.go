// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dark-bio/cose-go/internal/base64ext"
	"github.com/urfave/cli/v2"
)

// run executes the command line in a fresh app that reports errors instead of
// exiting.
func run(t *testing.T, args ...string) error {
	t.Helper()

	a := app()
	a.Writer = io.Discard
	a.ErrWriter = io.Discard
	a.Reader = strings.NewReader("")
	a.ExitErrHandler = func(*cli.Context, error) {}
	return a.Run(append([]string{"cose"}, args...))
}

// mustRun executes the command line and fails the test on error.
func mustRun(t *testing.T, args ...string) {
	t.Helper()
	if err := run(t, args...); err != nil {
		t.Fatalf("cose %s: %v", strings.Join(args, " "), err)
	}
}

// writeFile creates a file in the test directory.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// readFile reads a file from the test directory.
func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

// Tests signing and verifying through the command line, attached and detached.
func TestSignVerify(t *testing.T) {
	dir := t.TempDir()
	var (
		payload = writeFile(t, dir, "payload", []byte("signed by the command line"))
		secret  = filepath.Join(dir, "secret.key")
		public  = filepath.Join(dir, "public.key")
		signed  = filepath.Join(dir, "signed.cose")
		output  = filepath.Join(dir, "output")
	)
	mustRun(t, "keygen", "--alg", "ES256", "--kid", "cli", "--out", secret)
	mustRun(t, "pubkey", "--key", secret, "--out", public)
	mustRun(t, "sign", "--key", secret, "--aad", "context", "--in", payload, "--out", signed)
	mustRun(t, "verify", "--key", public, "--aad", "context", "--in", signed, "--out", output)

	if have, want := readFile(t, output), readFile(t, payload); !bytes.Equal(have, want) {
		t.Fatalf("payload mismatch: have %q, want %q", have, want)
	}
	if err := run(t, "verify", "--key", public, "--aad", "other", "--in", signed); err == nil {
		t.Fatalf("verification with the wrong external data succeeded")
	}
	mustRun(t, "sign", "--key", secret, "--detached", "--in", payload, "--out", signed)
	if err := run(t, "verify", "--key", public, "--in", signed); err == nil {
		t.Fatalf("verification without the detached payload succeeded")
	}
	mustRun(t, "verify", "--key", public, "--content", payload, "--in", signed)
}

// Tests multi-signer messages verified against a key set.
func TestSignMultiple(t *testing.T) {
	dir := t.TempDir()
	var (
		payload = writeFile(t, dir, "payload", []byte("two signers"))
		first   = filepath.Join(dir, "first.key")
		second  = filepath.Join(dir, "second.key")
		signed  = filepath.Join(dir, "signed.cose")
	)
	mustRun(t, "keygen", "--alg", "EdDSA", "--out", first)
	mustRun(t, "keygen", "--alg", "ES384", "--base64", "--out", second)
	mustRun(t, "sign", "--key", first, "--signer", second, "--in", payload, "--out", signed)

	mustRun(t, "verify", "--key", first, "--in", signed)
	if err := run(t, "verify", "--key", first, "--all", "--in", signed); err == nil {
		t.Fatalf("verification of every signer succeeded with one key")
	}
	mustRun(t, "verify", "--key", first, "--signer", second, "--all", "--in", signed)
}

// Tests MAC creation and validation with a password derived key.
func TestMACPassword(t *testing.T) {
	dir := t.TempDir()
	var (
		payload = writeFile(t, dir, "payload", []byte("authenticated"))
		tagged  = filepath.Join(dir, "tagged.cose")
		salt    = base64ext.EncodeURLToString([]byte("0123456789abcdef"))
	)
	mustRun(t, "mac", "--password", "hunter2", "--salt", salt, "--alg", "HMAC 256/64", "--base64", "--in", payload, "--out", tagged)
	mustRun(t, "validate", "--password", "hunter2", "--salt", salt, "--base64", "--in", tagged)

	if err := run(t, "validate", "--password", "hunter3", "--salt", salt, "--base64", "--in", tagged); err == nil {
		t.Fatalf("validation with the wrong password succeeded")
	}
}

// Tests single recipient symmetric encryption.
func TestEncrypt0(t *testing.T) {
	dir := t.TempDir()
	var (
		payload   = writeFile(t, dir, "payload", []byte("encrypted content"))
		secret    = filepath.Join(dir, "secret.key")
		encrypted = filepath.Join(dir, "encrypted.cose")
		output    = filepath.Join(dir, "output")
	)
	mustRun(t, "keygen", "--alg", "AES-CCM-16-64-128", "--out", secret)
	mustRun(t, "encrypt", "--key", secret, "--alg", "AES-CCM-16-64-128", "--in", payload, "--out", encrypted)
	mustRun(t, "decrypt", "--key", secret, "--in", encrypted, "--out", output)

	if have, want := readFile(t, output), readFile(t, payload); !bytes.Equal(have, want) {
		t.Fatalf("content mismatch: have %q, want %q", have, want)
	}
}

// Tests encryption to key agreement and key wrap recipients.
func TestEncryptRecipients(t *testing.T) {
	dir := t.TempDir()
	var (
		payload   = writeFile(t, dir, "payload", []byte("for several recipients"))
		agreed    = filepath.Join(dir, "agreed.key")
		public    = filepath.Join(dir, "agreed.pub")
		wrapped   = filepath.Join(dir, "wrapped.key")
		encrypted = filepath.Join(dir, "encrypted.cose")
		output    = filepath.Join(dir, "output")
	)
	mustRun(t, "keygen", "--curve", "X25519", "--kid", "agreed", "--out", agreed)
	mustRun(t, "pubkey", "--key", agreed, "--out", public)
	mustRun(t, "keygen", "--alg", "A256KW", "--kid", "wrapped", "--out", wrapped)

	// A lone recipient gets direct key agreement
	mustRun(t, "encrypt", "--recipient", public, "--in", payload, "--out", encrypted)
	mustRun(t, "decrypt", "--key", agreed, "--in", encrypted, "--out", output)
	if have, want := readFile(t, output), readFile(t, payload); !bytes.Equal(have, want) {
		t.Fatalf("direct agreement: content mismatch: have %q, want %q", have, want)
	}
	// Several recipients share a wrapped content key
	mustRun(t, "encrypt", "--alg", "ChaCha20/Poly1305", "--recipient", public, "--recipient", wrapped, "--in", payload, "--out", encrypted)
	for _, key := range []string{agreed, wrapped} {
		mustRun(t, "decrypt", "--key", key, "--in", encrypted, "--out", output)
		if have, want := readFile(t, output), readFile(t, payload); !bytes.Equal(have, want) {
			t.Fatalf("%s: content mismatch: have %q, want %q", filepath.Base(key), have, want)
		}
	}
}

// Tests that inspection names the message type and algorithm.
func TestInspect(t *testing.T) {
	dir := t.TempDir()
	var (
		payload = writeFile(t, dir, "payload", []byte("inspected"))
		secret  = filepath.Join(dir, "secret.key")
		signed  = filepath.Join(dir, "signed.cose")
		report  = filepath.Join(dir, "report")
	)
	mustRun(t, "keygen", "--alg", "ES256", "--out", secret)
	mustRun(t, "sign", "--key", secret, "--in", payload, "--out", signed)
	mustRun(t, "inspect", "--in", signed, "--out", report)

	text := string(readFile(t, report))
	for _, want := range []string{"type:        Sign1", "1: ES256", "diagnostic:  18("} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}
}

// Tests that keys load from PEM files as well.
func TestKeyPEM(t *testing.T) {
	dir := t.TempDir()
	var (
		payload = writeFile(t, dir, "payload", []byte("pem keys"))
		secret  = filepath.Join(dir, "secret.pem")
		public  = filepath.Join(dir, "public.pem")
		signed  = filepath.Join(dir, "signed.cose")
	)
	mustRun(t, "keygen", "--curve", "Ed25519", "--alg", "EdDSA", "--pem", "--out", secret)
	mustRun(t, "pubkey", "--key", secret, "--pem", "--out", public)
	mustRun(t, "sign", "--key", secret, "--alg", "EdDSA", "--in", payload, "--out", signed)
	mustRun(t, "verify", "--key", public, "--in", signed)
}
