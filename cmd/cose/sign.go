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
	"os"

	"github.com/dark-bio/cose-go/cose"
	"github.com/urfave/cli/v2"
)

const (
	detachedFlag = "detached"
	contentFlag  = "content"
	signerFlag   = "signer"
	allFlag      = "all"
)

var signCommand = &cli.Command{
	Name:  "sign",
	Usage: "Sign the input into a Sign1 message, or a Sign message with --signer",
	Flags: []cli.Flag{
		keyFileFlag,
		&cli.StringSliceFlag{
			Name:  signerFlag,
			Usage: "additional signer key `FILE`, producing a multi-signer message",
		},
		algorithmFlag,
		externalAADFlag,
		&cli.BoolFlag{
			Name:  detachedFlag,
			Usage: "leave the payload out of the message",
		},
		armorFlag,
		inputFlag,
		outputFlag,
	},
	Action: sign,
}

func sign(c *cli.Context) error {
	key, err := loadKey(c)
	if err != nil {
		return err
	}
	content, err := readInput(c)
	if err != nil {
		return err
	}
	if !c.IsSet(signerFlag) {
		msg := cose.NewSign1()
		msg.SetContent(content)
		msg.Detached = c.Bool(detachedFlag)
		setExternalAAD(c, msg)
		if c.IsSet(algFlag) {
			alg, err := cose.ParseAlgorithm(c.String(algFlag))
			if err != nil {
				return err
			}
			if err := msg.Add(cose.HeaderAlgorithm, int64(alg), cose.Protected); err != nil {
				return err
			}
		}
		if kid := key.KeyID(); kid != nil {
			if err := msg.Add(cose.HeaderKeyID, kid, cose.Unprotected); err != nil {
				return err
			}
		}
		if err := msg.Sign(key); err != nil {
			return err
		}
		return writeMessage(c, msg)
	}
	keys := []*cose.Key{key}
	for _, path := range c.StringSlice(signerFlag) {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		k, err := parseKey(data)
		if err != nil {
			return fmt.Errorf("signer %s: %w", path, err)
		}
		keys = append(keys, k)
	}
	msg := cose.NewSign()
	msg.SetContent(content)
	msg.Detached = c.Bool(detachedFlag)
	setExternalAAD(c, msg)
	for _, k := range keys {
		s := cose.NewSigner()
		if c.IsSet(algFlag) {
			alg, err := cose.ParseAlgorithm(c.String(algFlag))
			if err != nil {
				return err
			}
			if err := s.Add(cose.HeaderAlgorithm, int64(alg), cose.Protected); err != nil {
				return err
			}
		}
		if err := s.SetKey(k); err != nil {
			return err
		}
		msg.AddSigner(s)
	}
	if err := msg.Sign(); err != nil {
		return err
	}
	slog.Debug("signed message", "signers", len(keys))
	return writeMessage(c, msg)
}

var verifyCommand = &cli.Command{
	Name:  "verify",
	Usage: "Verify a Sign1 or Sign message and write its payload",
	Flags: []cli.Flag{
		keyFileFlag,
		&cli.StringSliceFlag{
			Name:  signerFlag,
			Usage: "additional verification key `FILE` for Sign messages",
		},
		&cli.BoolFlag{
			Name:  allFlag,
			Usage: "require every signer of a Sign message to verify",
		},
		externalAADFlag,
		&cli.StringFlag{
			Name:  contentFlag,
			Usage: "detached payload `FILE`",
		},
		armorFlag,
		inputFlag,
		outputFlag,
	},
	Action: verify,
}

func verify(c *cli.Context) error {
	msg, err := decodeMessage(c, cose.MessageSign1, cose.MessageSign)
	if err != nil {
		return err
	}
	key, err := loadKey(c)
	if err != nil {
		return err
	}
	var (
		valid   bool
		content []byte
	)
	switch m := msg.(type) {
	case *cose.Sign1:
		if err := attachContent(c, m); err != nil {
			return err
		}
		setExternalAAD(c, m)
		if valid, err = m.Verify(key); err != nil {
			return err
		}
		content = m.Content()
	case *cose.Sign:
		if err := attachContent(c, m); err != nil {
			return err
		}
		setExternalAAD(c, m)
		ks := cose.NewKeySet(key)
		for _, path := range c.StringSlice(signerFlag) {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			k, err := parseKey(data)
			if err != nil {
				return fmt.Errorf("signer %s: %w", path, err)
			}
			ks.Add(k)
		}
		if valid, err = m.VerifyWithKeySet(ks, c.Bool(allFlag)); err != nil {
			return err
		}
		content = m.Content()
	}
	if !valid {
		return cli.Exit(errors.New("signature verification failed"), 2)
	}
	slog.Info("signature verified", "type", msg.Type())
	return writeOutput(c, content)
}

// attachContent supplies the detached payload of a message from the content
// flag.
func attachContent(c *cli.Context, msg interface {
	HasContent() bool
	SetContent([]byte)
}) error {
	if !c.IsSet(contentFlag) {
		if !msg.HasContent() {
			return fmt.Errorf("message payload is detached, use --%s", contentFlag)
		}
		return nil
	}
	data, err := os.ReadFile(c.String(contentFlag))
	if err != nil {
		return err
	}
	msg.SetContent(data)
	return nil
}
