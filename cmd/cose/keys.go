// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dark-bio/cose-go/cose"
	"github.com/dark-bio/cose-go/internal/base64ext"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

const (
	curveFlag = "curve"
	kidFlag   = "kid"
	pemFlag   = "pem"
)

var curves = map[string]cose.Curve{
	"p-256":   cose.CurveP256,
	"p-384":   cose.CurveP384,
	"p-521":   cose.CurveP521,
	"x25519":  cose.CurveX25519,
	"x448":    cose.CurveX448,
	"ed25519": cose.CurveEd25519,
	"ed448":   cose.CurveEd448,
}

var keygenCommand = &cli.Command{
	Name:  "keygen",
	Usage: "Generate a COSE key for an algorithm or a curve",
	Flags: []cli.Flag{
		algorithmFlag,
		&cli.StringFlag{
			Name:  curveFlag,
			Usage: "generate an unrestricted key pair on `CURVE` (P-256, X25519, Ed448, ...)",
		},
		&cli.StringFlag{
			Name:  kidFlag,
			Usage: "key id, a random UUID if unset",
		},
		&cli.BoolFlag{
			Name:  pemFlag,
			Usage: "write the key as PKCS#8 PEM instead of CBOR",
		},
		armorFlag,
		outputFlag,
	},
	Action: keygen,
}

func keygen(c *cli.Context) error {
	var (
		key *cose.Key
		err error
	)
	switch {
	case c.IsSet(curveFlag):
		crv, ok := curves[strings.ToLower(c.String(curveFlag))]
		if !ok {
			return fmt.Errorf("unknown curve %q", c.String(curveFlag))
		}
		if key, err = cose.GenerateKeyForCurve(crv); err != nil {
			return err
		}
		if c.IsSet(algFlag) {
			alg, err := cose.ParseAlgorithm(c.String(algFlag))
			if err != nil {
				return err
			}
			if err := key.Add(cose.KeyLabelAlgorithm, int64(alg)); err != nil {
				return err
			}
		}
	case c.IsSet(algFlag):
		alg, err := cose.ParseAlgorithm(c.String(algFlag))
		if err != nil {
			return err
		}
		if key, err = cose.GenerateKey(alg); err != nil {
			return err
		}
	default:
		return errors.New("either --alg or --curve is required")
	}
	kid := c.String(kidFlag)
	if kid == "" {
		kid = uuid.NewString()
	}
	if err := key.Add(cose.KeyLabelKeyID, []byte(kid)); err != nil {
		return err
	}
	slog.Debug("generated key", "type", key.Type(), "kid", kid)
	return writeKey(c, key)
}

var pubkeyCommand = &cli.Command{
	Name:  "pubkey",
	Usage: "Extract the public part of an asymmetric COSE key",
	Flags: []cli.Flag{
		keyFileFlag,
		&cli.BoolFlag{
			Name:  pemFlag,
			Usage: "write the key as SPKI PEM instead of CBOR",
		},
		armorFlag,
		outputFlag,
	},
	Action: pubkey,
}

func pubkey(c *cli.Context) error {
	key, err := loadKey(c)
	if err != nil {
		return err
	}
	pub := key.PublicKey()
	if pub == nil {
		return errors.New("symmetric keys have no public part")
	}
	return writeKey(c, pub)
}

// writeKey writes a key as CBOR, base64url CBOR or PEM as the flags ask.
func writeKey(c *cli.Context, key *cose.Key) error {
	if c.Bool(pemFlag) {
		s, err := key.MarshalPEM()
		if err != nil {
			return err
		}
		return writeOutput(c, []byte(s))
	}
	data, err := key.MarshalCBOR()
	if err != nil {
		return err
	}
	if c.Bool(base64Flag) {
		data = []byte(base64ext.EncodeURLToString(data) + "\n")
	}
	return writeOutput(c, data)
}
