// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Force an immediate sync drain",
		Long:  "Ask the running engine to drain all pending signals to the backend now, bypassing the debounce timer.",
		RunE:  runSync,
	}

	cmd.Flags().String("address", "127.0.0.1:18600", "engine address")

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")

	ec := newEngineClient(addr)
	var body struct {
		Synced  int  `json:"synced"`
		Failed  int  `json:"failed"`
		Aborted bool `json:"aborted"`
	}
	if err := ec.postJSON("/v1/queue/sync", nil, &body); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Synced %d signal(s), %d failed\n", body.Synced, body.Failed)
	if body.Aborted {
		_, _ = fmt.Fprintln(out, "Drain aborted early; remaining signals stay queued.")
	}
	return nil
}
