// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine and sync queue status",
		Long:  "Query the running engine's status endpoint and display store and queue information.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:18600", "engine address to check")

	return cmd
}

type statusBody struct {
	Syncing        bool     `json:"syncing"`
	NextSyncInSecs *float64 `json:"next_sync_in_seconds"`
	Stats          *struct {
		Total    int64 `json:"total"`
		Synced   int64 `json:"synced"`
		Unsynced int64 `json:"unsynced"`
	} `json:"stats"`
	Backend *struct {
		Available    bool `json:"available"`
		FailureCount int  `json:"failure_count"`
	} `json:"backend"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	ec := newEngineClient(addr)
	var body statusBody
	if err := ec.getJSON("/v1/queue/status", &body); err != nil {
		if dlerr.HasCode(err, dlerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Engine at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Engine at %s\n", addr)
	if body.Stats != nil {
		_, _ = fmt.Fprintf(out, "  signals: %d total, %d synced, %d pending\n",
			body.Stats.Total, body.Stats.Synced, body.Stats.Unsynced)
	}
	if body.Syncing {
		_, _ = fmt.Fprintln(out, "  sync: in progress")
	} else if body.NextSyncInSecs != nil {
		_, _ = fmt.Fprintf(out, "  sync: next drain in %.0fs\n", *body.NextSyncInSecs)
	} else {
		_, _ = fmt.Fprintln(out, "  sync: idle")
	}
	switch {
	case body.Backend == nil:
		_, _ = fmt.Fprintln(out, "  backend: not configured (offline-only)")
	case body.Backend.Available:
		_, _ = fmt.Fprintln(out, "  backend: available")
	default:
		_, _ = fmt.Fprintf(out, "  backend: unavailable (%d consecutive failures)\n", body.Backend.FailureCount)
	}
	return nil
}
