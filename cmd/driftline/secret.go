// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftline-dev/driftline/internal/secrets"
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the backend token in the OS keyring",
		Long:  "Store and delete the backend API token under the driftline service in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretSetTokenCmd(),
		newSecretDeleteTokenCmd(),
	)

	return cmd
}

func newSecretSetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token",
		Short: "Store the backend API token",
		Long:  "Read the backend API token from stdin and store it in the OS keyring. Pipe the token in to avoid it showing up in shell history.",
		Args:  cobra.NoArgs,
		RunE:  runSecretSetToken,
	}
}

func newSecretDeleteTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-token",
		Short: "Delete the stored backend API token",
		Args:  cobra.NoArgs,
		RunE:  runSecretDeleteToken,
	}
}

func runSecretSetToken(cmd *cobra.Command, _ []string) error {
	token, err := readToken(cmd)
	if err != nil {
		return err
	}
	if token == "" {
		return dlerr.New(dlerr.CodeCLIInputInvalid, "token must not be empty")
	}

	store := secretStoreFactory()
	if err := store.Store(secrets.DefaultService, secrets.TokenKey, token); err != nil {
		return dlerr.Wrap(err, dlerr.CodeSecretStoreFailure, "storing backend token")
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Backend token stored in OS keyring.")
	return nil
}

func runSecretDeleteToken(cmd *cobra.Command, _ []string) error {
	store := secretStoreFactory()
	if err := store.Delete(secrets.DefaultService, secrets.TokenKey); err != nil {
		if dlerr.HasCode(err, dlerr.CodeSecretNotFound) {
			return dlerr.New(dlerr.CodeSecretNotFound, "no backend token stored")
		}
		return dlerr.Wrap(err, dlerr.CodeSecretStoreFailure, "deleting backend token")
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Backend token deleted.")
	return nil
}

// readToken reads one line from stdin, prompting first when stdin is a
// terminal.
func readToken(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "Backend token: ")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", dlerr.Wrap(err, dlerr.CodeCLIInputInvalid, "reading token from stdin")
	}
	return strings.TrimSpace(line), nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
