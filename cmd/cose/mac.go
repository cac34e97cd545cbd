// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"log/slog"

	"github.com/dark-bio/cose-go/cose"
	"github.com/urfave/cli/v2"
)

var macCommand = &cli.Command{
	Name:  "mac",
	Usage: "Authenticate the input into a MAC0 message",
	Flags: []cli.Flag{
		keyFileFlag,
		passwordKeyFlag,
		passwordSaltFlag,
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
	Action: macCreate,
}

func macCreate(c *cli.Context) error {
	alg, err := algorithm(c, cose.AlgorithmHMAC256)
	if err != nil {
		return err
	}
	key, err := loadSymmetricKey(c, alg)
	if err != nil {
		return err
	}
	content, err := readInput(c)
	if err != nil {
		return err
	}
	msg := cose.NewMAC0()
	msg.SetContent(content)
	msg.Detached = c.Bool(detachedFlag)
	setExternalAAD(c, msg)
	if err := msg.Add(cose.HeaderAlgorithm, int64(alg), cose.Protected); err != nil {
		return err
	}
	if kid := key.KeyID(); kid != nil {
		if err := msg.Add(cose.HeaderKeyID, kid, cose.Unprotected); err != nil {
			return err
		}
	}
	if err := msg.CreateWithKey(key); err != nil {
		return err
	}
	return writeMessage(c, msg)
}

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate a MAC0 message and write its payload",
	Flags: []cli.Flag{
		keyFileFlag,
		passwordKeyFlag,
		passwordSaltFlag,
		externalAADFlag,
		&cli.StringFlag{
			Name:  contentFlag,
			Usage: "detached payload `FILE`",
		},
		armorFlag,
		inputFlag,
		outputFlag,
	},
	Action: macValidate,
}

func macValidate(c *cli.Context) error {
	msg, err := decodeMessage(c, cose.MessageMAC0)
	if err != nil {
		return err
	}
	m := msg.(*cose.MAC0)
	alg, err := cose.ResolveAlgorithm(m.Find(cose.HeaderAlgorithm))
	if err != nil {
		return err
	}
	key, err := loadSymmetricKey(c, alg)
	if err != nil {
		return err
	}
	if err := attachContent(c, m); err != nil {
		return err
	}
	setExternalAAD(c, m)
	valid, err := m.ValidateWithKey(key)
	if err != nil {
		return err
	}
	if !valid {
		return cli.Exit(errors.New("tag validation failed"), 2)
	}
	slog.Info("tag validated", "alg", alg)
	return writeOutput(c, m.Content())
}
