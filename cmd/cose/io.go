// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dark-bio/cose-go/argon2"
	"github.com/dark-bio/cose-go/cose"
	"github.com/dark-bio/cose-go/internal/base64ext"
	"github.com/urfave/cli/v2"
)

// Flag names shared between commands.
const (
	inFlag       = "in"
	outFlag      = "out"
	keyFlag      = "key"
	algFlag      = "alg"
	aadFlag      = "aad"
	base64Flag   = "base64"
	passwordFlag = "password"
	saltFlag     = "salt"
)

var (
	inputFlag = &cli.StringFlag{
		Name:    inFlag,
		Aliases: []string{"i"},
		Usage:   "read input from `FILE` instead of stdin",
	}
	outputFlag = &cli.StringFlag{
		Name:    outFlag,
		Aliases: []string{"o"},
		Usage:   "write output to `FILE` instead of stdout",
	}
	keyFileFlag = &cli.StringFlag{
		Name:    keyFlag,
		Aliases: []string{"k"},
		Usage:   "COSE key `FILE`, as raw or base64url CBOR or as PEM",
		EnvVars: []string{keyEnvVar},
	}
	algorithmFlag = &cli.StringFlag{
		Name:    algFlag,
		Aliases: []string{"a"},
		Usage:   "algorithm `NAME` or identifier",
	}
	externalAADFlag = &cli.StringFlag{
		Name:  aadFlag,
		Usage: "externally supplied authenticated `DATA`",
	}
	armorFlag = &cli.BoolFlag{
		Name:  base64Flag,
		Usage: "read and write messages as base64url text",
	}
	passwordKeyFlag = &cli.StringFlag{
		Name:    passwordFlag,
		Usage:   "derive the symmetric key from `PASSWORD` with Argon2id",
		EnvVars: []string{passwordEnvVar},
	}
	passwordSaltFlag = &cli.StringFlag{
		Name:  saltFlag,
		Usage: "base64url Argon2id `SALT`, at least 16 bytes",
	}
)

// readInput returns the contents of the input file or of stdin.
func readInput(c *cli.Context) ([]byte, error) {
	if path := c.String(inFlag); path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(c.App.Reader)
}

// writeOutput writes data to the output file or to stdout.
func writeOutput(c *cli.Context, data []byte) error {
	if path := c.String(outFlag); path != "" {
		return os.WriteFile(path, data, 0o600)
	}
	_, err := c.App.Writer.Write(data)
	return err
}

// readMessage reads an encoded message, decoding the base64url armor if
// requested.
func readMessage(c *cli.Context) ([]byte, error) {
	data, err := readInput(c)
	if err != nil {
		return nil, err
	}
	if !c.Bool(base64Flag) {
		return data, nil
	}
	return base64ext.DecodeURLString(strings.TrimSpace(string(data)))
}

// writeMessage encodes and writes a message, armored if requested.
func writeMessage(c *cli.Context, msg cose.Message) error {
	data, err := msg.MarshalCBOR()
	if err != nil {
		return err
	}
	slog.Debug("encoded message", "type", msg.Type(), "size", len(data))
	if c.Bool(base64Flag) {
		data = []byte(base64ext.EncodeURLToString(data) + "\n")
	}
	return writeOutput(c, data)
}

// parseKey decodes a key file: PEM if it looks like one, raw CBOR, or CBOR in
// base64url text.
func parseKey(data []byte) (*cose.Key, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN")) {
		return cose.ParseKeyPEM(string(data))
	}
	key, err := cose.ParseKey(data)
	if err == nil {
		return key, nil
	}
	raw, berr := base64ext.DecodeURLString(strings.TrimSpace(string(data)))
	if berr != nil {
		return nil, err
	}
	return cose.ParseKey(raw)
}

// loadKey reads the key named by the key flag.
func loadKey(c *cli.Context) (*cose.Key, error) {
	path := c.String(keyFlag)
	if path == "" {
		return nil, fmt.Errorf("no key given, use --%s or %s", keyFlag, keyEnvVar)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := parseKey(data)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", path, err)
	}
	return key, nil
}

// loadSymmetricKey returns the key named by the key flag or, if a password is
// given, derives one of the size alg needs.
func loadSymmetricKey(c *cli.Context, alg cose.Algorithm) (*cose.Key, error) {
	password := c.String(passwordFlag)
	if password == "" {
		return loadKey(c)
	}
	salt, err := base64ext.DecodeURLString(c.String(saltFlag))
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	if alg.KeySize() == 0 {
		return nil, fmt.Errorf("%v does not take a symmetric key", alg)
	}
	secret, err := argon2.DeriveKey([]byte(password), salt, alg.KeySize()/8, argon2.DefaultParams)
	if err != nil {
		return nil, err
	}
	slog.Debug("derived key from password", "alg", alg, "bits", alg.KeySize())
	return cose.NewKey(map[any]any{
		cose.KeyLabelKeyType:    int64(cose.KeyTypeSymmetric),
		cose.KeyLabelSymmetricK: secret,
	})
}

// algorithm returns the algorithm flag, falling back to def if unset.
func algorithm(c *cli.Context, def cose.Algorithm) (cose.Algorithm, error) {
	name := c.String(algFlag)
	if name == "" {
		if def == 0 {
			return 0, errors.New("no algorithm given, use --" + algFlag)
		}
		return def, nil
	}
	return cose.ParseAlgorithm(name)
}

// decodeMessage reads a message and checks it is one of the wanted types.
func decodeMessage(c *cli.Context, want ...cose.MessageType) (cose.Message, error) {
	data, err := readMessage(c)
	if err != nil {
		return nil, err
	}
	msg, err := cose.Decode(data, 0)
	if err != nil {
		return nil, err
	}
	for _, t := range want {
		if msg.Type() == t {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("unexpected %v message", msg.Type())
}

// setExternalAAD applies the aad flag to the message.
func setExternalAAD(c *cli.Context, attrs interface{ SetExternalAAD([]byte) }) {
	if c.IsSet(aadFlag) {
		attrs.SetExternalAAD([]byte(c.String(aadFlag)))
	}
}
