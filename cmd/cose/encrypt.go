// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dark-bio/cose-go/cose"
	"github.com/urfave/cli/v2"
)

const (
	recipientFlag = "recipient"
	keyAlgFlag    = "key-alg"
)

var encryptCommand = &cli.Command{
	Name:  "encrypt",
	Usage: "Encrypt the input into an Encrypt0 message, or an Encrypt message with --recipient",
	Flags: []cli.Flag{
		keyFileFlag,
		passwordKeyFlag,
		passwordSaltFlag,
		&cli.StringSliceFlag{
			Name:  recipientFlag,
			Usage: "recipient key `FILE`, public for key agreement or symmetric for key wrap",
		},
		algorithmFlag,
		&cli.StringFlag{
			Name:  keyAlgFlag,
			Usage: "key distribution `ALGORITHM` for recipient keys not restricted to one",
		},
		externalAADFlag,
		&cli.BoolFlag{
			Name:  detachedFlag,
			Usage: "leave the ciphertext out of the message",
		},
		armorFlag,
		inputFlag,
		outputFlag,
	},
	Action: encrypt,
}

func encrypt(c *cli.Context) error {
	alg, err := algorithm(c, cose.AlgorithmA256GCM)
	if err != nil {
		return err
	}
	content, err := readInput(c)
	if err != nil {
		return err
	}
	if !c.IsSet(recipientFlag) {
		key, err := loadSymmetricKey(c, alg)
		if err != nil {
			return err
		}
		msg := cose.NewEncrypt0()
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
		iv := make([]byte, alg.IVSize())
		if _, err := rand.Read(iv); err != nil {
			return err
		}
		if err := msg.Add(cose.HeaderIV, iv, cose.Unprotected); err != nil {
			return err
		}
		if err := msg.EncryptWithKey(key); err != nil {
			return err
		}
		return writeMessage(c, msg)
	}
	paths := c.StringSlice(recipientFlag)
	msg := cose.NewEncrypt()
	msg.SetContent(content)
	msg.Detached = c.Bool(detachedFlag)
	setExternalAAD(c, msg)
	if err := msg.Add(cose.HeaderAlgorithm, int64(alg), cose.Protected); err != nil {
		return err
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		key, err := parseKey(data)
		if err != nil {
			return fmt.Errorf("recipient %s: %w", path, err)
		}
		if _, ok := key.Algorithm(); !ok {
			kalg, err := recipientAlgorithm(c, key, len(paths))
			if err != nil {
				return err
			}
			if err := key.Add(cose.KeyLabelAlgorithm, int64(kalg)); err != nil {
				return err
			}
		}
		r := cose.NewRecipient()
		if err := r.SetKey(key); err != nil {
			return err
		}
		msg.AddRecipient(r)
	}
	if err := msg.Encrypt(); err != nil {
		return err
	}
	slog.Debug("encrypted message", "alg", alg, "recipients", len(paths))
	return writeMessage(c, msg)
}

// recipientAlgorithm picks the key distribution algorithm of a recipient key
// that is not restricted to one. Direct key agreement needs a lone recipient,
// so several recipients default to agreement with key wrap.
func recipientAlgorithm(c *cli.Context, key *cose.Key, recipients int) (cose.Algorithm, error) {
	if c.IsSet(keyAlgFlag) {
		return cose.ParseAlgorithm(c.String(keyAlgFlag))
	}
	switch {
	case key.Type() == cose.KeyTypeSymmetric:
		return cose.AlgorithmA256KW, nil
	case recipients == 1:
		return cose.AlgorithmECDHESHKDF256, nil
	default:
		return cose.AlgorithmECDHESA256KW, nil
	}
}

var decryptCommand = &cli.Command{
	Name:  "decrypt",
	Usage: "Decrypt an Encrypt0 or Encrypt message and write its content",
	Flags: []cli.Flag{
		keyFileFlag,
		passwordKeyFlag,
		passwordSaltFlag,
		externalAADFlag,
		&cli.StringFlag{
			Name:  contentFlag,
			Usage: "detached ciphertext `FILE`",
		},
		armorFlag,
		inputFlag,
		outputFlag,
	},
	Action: decrypt,
}

func decrypt(c *cli.Context) error {
	msg, err := decodeMessage(c, cose.MessageEncrypt0, cose.MessageEncrypt)
	if err != nil {
		return err
	}
	var ciphertext []byte
	if c.IsSet(contentFlag) {
		if ciphertext, err = os.ReadFile(c.String(contentFlag)); err != nil {
			return err
		}
	}
	var content []byte
	switch m := msg.(type) {
	case *cose.Encrypt0:
		if ciphertext != nil {
			m.SetEncryptedContent(ciphertext)
		}
		setExternalAAD(c, m)
		alg, err := cose.ResolveAlgorithm(m.Find(cose.HeaderAlgorithm))
		if err != nil {
			return err
		}
		key, err := loadSymmetricKey(c, alg)
		if err != nil {
			return err
		}
		if content, err = m.DecryptWithKey(key); err != nil {
			return err
		}
	case *cose.Encrypt:
		if ciphertext != nil {
			m.SetEncryptedContent(ciphertext)
		}
		setExternalAAD(c, m)
		key, err := loadKey(c)
		if err != nil {
			return err
		}
		r, err := selectRecipient(m.Recipients(), key)
		if err != nil {
			return err
		}
		if err := r.SetKey(key); err != nil {
			return err
		}
		if content, err = m.Decrypt(r); err != nil {
			return err
		}
	}
	return writeOutput(c, content)
}

// selectRecipient finds the recipient addressed to the key by key id. A lone
// recipient is assumed to be addressed to the key.
func selectRecipient(recipients []*cose.Recipient, key *cose.Key) (*cose.Recipient, error) {
	if kid := key.KeyID(); kid != nil {
		for _, r := range recipients {
			if v, ok := r.Find(cose.HeaderKeyID); ok {
				if have, ok := v.([]byte); ok && bytes.Equal(have, kid) {
					return r, nil
				}
			}
		}
	}
	if len(recipients) == 1 {
		slog.Debug("no recipient matches the key id, trying the only one")
		return recipients[0], nil
	}
	return nil, errors.New("no recipient matches the key id")
}
