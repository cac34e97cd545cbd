// cose-go: COSE messages and keys
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dark-bio/cose-go/cbor"
	"github.com/dark-bio/cose-go/cose"
	"github.com/urfave/cli/v2"
)

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Print the type, headers and diagnostic notation of a message",
	Flags: []cli.Flag{
		armorFlag,
		inputFlag,
		outputFlag,
	},
	Action: inspect,
}

// headers is implemented by every message variant through its attributes.
type headers interface {
	Protected() map[any]any
	Unprotected() map[any]any
}

func inspect(c *cli.Context) error {
	data, err := readMessage(c)
	if err != nil {
		return err
	}
	if err := cbor.Wellformed(data); err != nil {
		return err
	}
	diag, err := cbor.Diagnose(data)
	if err != nil {
		return err
	}
	var out strings.Builder
	msg, err := cose.Decode(data, 0)
	if err != nil {
		fmt.Fprintf(&out, "not a COSE message: %v\n", err)
	} else {
		fmt.Fprintf(&out, "type:        %v\n", msg.Type())
		if h, ok := msg.(headers); ok {
			fmt.Fprintf(&out, "protected:   %s\n", formatHeaders(h.Protected()))
			fmt.Fprintf(&out, "unprotected: %s\n", formatHeaders(h.Unprotected()))
		}
	}
	fmt.Fprintf(&out, "diagnostic:  %s\n", diag)
	return writeOutput(c, []byte(out.String()))
}

// formatHeaders renders a header map in label order, naming known algorithms.
func formatHeaders(m map[any]any) string {
	labels := make([]string, 0, len(m))
	values := make(map[string]string, len(m))
	for label, value := range m {
		name := fmt.Sprint(label)
		if label == cose.HeaderAlgorithm {
			if alg, err := cose.ResolveAlgorithm(value, true); err == nil {
				values[name] = alg.String()
				labels = append(labels, name)
				continue
			}
		}
		if b, ok := value.([]byte); ok {
			values[name] = fmt.Sprintf("h'%x'", b)
		} else {
			values[name] = fmt.Sprint(value)
		}
		labels = append(labels, name)
	}
	sort.Strings(labels)

	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = label + ": " + values[label]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
