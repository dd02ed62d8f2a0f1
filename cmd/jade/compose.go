// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"

	jade "github.com/Nimrodium/jade"
	"github.com/Nimrodium/jade/internal/jadeerr"
)

type composeOptions struct {
	target string
}

func newComposeCommand(g *globalConfig) *cobra.Command {
	opts := new(composeOptions)
	c := &cobra.Command{
		Use:                   "compose [options]",
		Short:                 "realize every derivation and deploy it into the target directory",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.Flags().StringVar(&opts.target, "target", "", "deployment target `dir` (overrides the manifest)")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runCompose(cmd.Context(), g, opts)
	}
	return c
}

func runCompose(ctx context.Context, g *globalConfig, opts *composeOptions) error {
	manifest, err := g.loadManifest()
	if err != nil {
		return err
	}
	target := opts.target
	if target == "" {
		target = manifest.Target
	}
	if target == "" {
		return fmt.Errorf("compose: no target directory (set --target or manifest `main.target`)")
	}

	set, err := jade.LoadFromDirectory(g.derivesDir(manifest))
	if err != nil {
		return err
	}
	set.Dedup()

	derivations := set.All()
	if len(manifest.EnabledTags) > 0 || len(manifest.DisabledTags) > 0 {
		set = set.FilterByTags(manifest.EnabledTags, manifest.DisabledTags, manifest.ExclusiveTags)
		derivations = set.All()
	}
	if err := checkDependenciesResolved(set, derivations); err != nil {
		log.Warnf(ctx, "%v", err)
	}

	store := g.newStore()
	paths, err := store.RealizeAll(ctx, derivations)
	if err != nil {
		return err
	}

	for _, d := range derivations {
		if d.BackingFile != "" {
			if err := d.WriteBack(); err != nil {
				return err
			}
		}
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i].Name < paths[j].Name })
	for _, sp := range paths {
		if err := sp.InstallTo(target, g.symlink); err != nil {
			return err
		}
		log.Infof(ctx, "deployed %s", sp.Name)
	}
	return nil
}

// checkDependenciesResolved reports an unresolved `depends` name as a
// DependencyMissing error. §7 makes this asymmetric by call site: compose
// (runCompose, above) only logs it as a warning, while install
// (runInstall) returns it as fatal — install is where a driver had its
// chance to fill the gap, so a gap surviving past it is a real problem.
func checkDependenciesResolved(set *jade.DerivationSet, derivations []*jade.Derivation) error {
	for _, d := range derivations {
		for _, dep := range d.Depends {
			if _, err := set.GetByFuzzyName(dep); err != nil {
				return jadeerr.New(jadeerr.DependencyMissing, "%s depends on %q, which is not present in the derivation set", d.Name, dep)
			}
		}
	}
	return nil
}
