// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command cose creates, verifies and inspects COSE messages and keys from the
// command line.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	keyEnvVar      = "COSE_KEY"
	passwordEnvVar = "COSE_PASSWORD"
	logLevelEnvVar = "COSE_LOG_LEVEL"
)

var appCommands = []*cli.Command{
	keygenCommand,
	pubkeyCommand,
	signCommand,
	verifyCommand,
	macCommand,
	validateCommand,
	encryptCommand,
	decryptCommand,
	inspectCommand,
}

func main() {
	// Run should not return an error because of ExitErrHandler, but just in case
	if err := app().Run(os.Args); err != nil {
		log.New(os.Stderr, "", 0).Fatal(err)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:           "cose",
		Usage:          "Create, verify and inspect COSE messages and keys (RFC 8152)",
		Commands:       appCommands,
		ExitErrHandler: errHandler,
		Before:         beforeApp,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug events to stderr",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "minimum level of logged events (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{logLevelEnvVar},
			},
		},
	}
}

func beforeApp(c *cli.Context) error {
	if err := setupLogging(c.String("log-level"), c.Bool("verbose")); err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	return nil
}

func errHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	if _, ok := err.(cli.ExitCoder); !ok {
		n := c.App.Name
		if c.Command != nil {
			if nn := c.Command.FullName(); nn != "" {
				n += " " + nn
			}
		}
		err = cli.Exit(fmt.Errorf("%s: %w", n, err), 1)
	}
	cli.HandleExitCoder(err)
}
