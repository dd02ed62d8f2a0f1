// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nimrodium/jade/internal/driverfactory"
)

func newSearchCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "search <query>",
		Short:                 "search the configured registry",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd.Context(), g, args[0])
	}
	return c
}

func runSearch(ctx context.Context, g *globalConfig, query string) error {
	manifest, err := g.loadManifest()
	if err != nil {
		return err
	}
	if manifest.RegistryName == "" {
		return fmt.Errorf("search: manifest has no `main.api` registry configured")
	}
	driver, err := driverfactory.GetAPIDriver(manifest.RegistryName, manifest)
	if err != nil {
		return err
	}

	hits, err := driver.Search(ctx, query)
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Fprintf(os.Stdout, "%s — %s (by %s, %d downloads) %v\n", h.Slug, h.Description, h.Author, h.Downloads, h.Tags)
	}
	return nil
}
