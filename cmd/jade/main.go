// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

// Command jade is the CLI front-end for the jade package manager: it
// loads a manifest and derivation tree, realizes derivations into a
// content-addressed store, composes a deployment directory, and
// resolves registry slugs via a pluggable driver (C9).
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "jade",
		Short:         "a declarative package manager for mod packs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := newGlobalConfig()
	g.registerFlags(rootCommand.PersistentFlags())

	showVerbose := &g.verbose
	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*showVerbose)
		return g.resolve()
	}

	rootCommand.AddCommand(
		newInitCommand(g),
		newComposeCommand(g),
		newInstallCommand(g),
		newSearchCommand(g),
		newEditCommand(g),
		newListCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showVerbose)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

var initLogOnce sync.Once

// initLogging wires zombiezen.com/go/log's LevelFilter as the process
// default, the same pattern the teacher uses in cmd/zb/main.go.
func initLogging(verbose bool) {
	initLogOnce.Do(func() {
		minLevel := log.Info
		if verbose {
			minLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLevel,
			Output: log.New(os.Stderr, "jade: ", log.StdFlags, nil),
		})
	})
}

// defaultDerivesDir returns the conventional "derives" subdirectory
// relative to the manifest's directory.
func defaultDerivesDir(manifestPath string) string {
	return filepath.Join(filepath.Dir(manifestPath), "derives")
}
