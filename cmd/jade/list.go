// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	jade "github.com/Nimrodium/jade"
	"github.com/Nimrodium/jade/internal/jadehash"
)

func newListCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "list [filter]",
		Short:                 "list derivations in the derives directory",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MaximumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		filter := ""
		if len(args) == 1 {
			filter = args[0]
		}
		return runList(g, filter)
	}
	return c
}

func runList(g *globalConfig, filter string) error {
	manifest, err := g.loadManifest()
	if err != nil {
		return err
	}
	set, err := jade.LoadFromDirectory(g.derivesDir(manifest))
	if err != nil {
		return err
	}
	set.Dedup()

	derivations := set.All()
	sort.Slice(derivations, func(i, j int) bool { return derivations[i].Name < derivations[j].Name })

	nf := jadehash.Normalize(filter)
	for _, d := range derivations {
		if nf != "" && !strings.Contains(jadehash.Normalize(d.Name), nf) {
			continue
		}
		status := "unrealized"
		if d.Hash != "" {
			status = d.Hash
		}
		fmt.Fprintf(os.Stdout, "%-24s %s\n", d.Name, status)
	}
	return nil
}
