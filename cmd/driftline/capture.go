// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

func newCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture --url <url> [text...]",
		Short: "Submit a signal capture to the running engine",
		Long:  "Classify and store a page capture. Text is taken from arguments, or from stdin when no arguments are given.",
		RunE:  runCapture,
	}

	cmd.Flags().String("address", "127.0.0.1:18600", "engine address")
	cmd.Flags().String("url", "", "page URL (required)")
	cmd.Flags().String("title", "", "page title")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func runCapture(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	url, _ := cmd.Flags().GetString("url")
	title, _ := cmd.Flags().GetString("title")

	text := strings.Join(args, " ")
	if text == "" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return dlerr.Wrap(err, dlerr.CodeCLIInputInvalid, "reading capture text from stdin")
		}
		text = strings.TrimSpace(string(raw))
	}
	if text == "" {
		return dlerr.New(dlerr.CodeCLIInputInvalid, "capture text is required (arguments or stdin)")
	}

	req := map[string]string{"url": url, "title": title, "text": text}
	var body struct {
		Stored bool `json:"stored"`
		Signal *struct {
			ID         string  `json:"id"`
			SpaceID    string  `json:"space_id"`
			SubspaceID string  `json:"subspace_id"`
			Confidence float64 `json:"confidence"`
		} `json:"signal"`
	}

	ec := newEngineClient(addr)
	if err := ec.postJSON("/v1/signals", req, &body); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !body.Stored {
		_, _ = fmt.Fprintln(out, "No subspace matched; capture was not stored.")
		return nil
	}
	if body.Signal != nil && body.Signal.SubspaceID != "" {
		_, _ = fmt.Fprintf(out, "Stored %s: %s/%s (confidence %.3f)\n",
			body.Signal.ID, body.Signal.SpaceID, body.Signal.SubspaceID, body.Signal.Confidence)
	} else if body.Signal != nil {
		_, _ = fmt.Fprintf(out, "Stored %s unclassified\n", body.Signal.ID)
	}
	return nil
}
