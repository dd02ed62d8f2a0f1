// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"

	jade "github.com/Nimrodium/jade"
	"github.com/Nimrodium/jade/internal/driverfactory"
)

func newInstallCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "install <mod-slug>...",
		Short:                 "resolve and install one or more packages from the registry",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd.Context(), g, args)
	}
	return c
}

func runInstall(ctx context.Context, g *globalConfig, slugs []string) error {
	manifest, err := g.loadManifest()
	if err != nil {
		return err
	}
	if manifest.RegistryName == "" {
		return fmt.Errorf("install: manifest has no `main.api` registry configured")
	}
	driver, err := driverfactory.GetAPIDriver(manifest.RegistryName, manifest)
	if err != nil {
		return err
	}

	derivesDir := g.derivesDir(manifest)
	set, err := jade.LoadFromDirectory(derivesDir)
	if err != nil {
		return err
	}
	store := g.newStore()
	seen := jade.NewSeenSet(set.APIPkgIDList())

	for _, slug := range slugs {
		pkgID, err := resolveSlug(ctx, driver, slug)
		if err != nil {
			return err
		}
		if existing, installed := set.FindUnmanagedMatches(&jade.Derivation{Name: slug, DriverPkgID: pkgID}); existing != nil && installed {
			log.Infof(ctx, "%s already installed", slug)
			continue
		}
		derivations, err := driver.GetDerivationsFor(ctx, pkgID, seen, true, store)
		if err != nil {
			return err
		}
		for _, d := range derivations {
			d.BackingFile = filepath.Join(derivesDir, d.Name+".toml")
			if err := d.WriteBack(); err != nil {
				return err
			}
			set.Add(d)
			log.Infof(ctx, "installed %s", d.Name)
		}
	}

	// Unlike compose, where an unresolved `depends` name is only ever a
	// warning, install is the last point at which the driver (and the set
	// it just grew) could have filled the gap: §7 makes DependencyMissing
	// fatal here.
	if err := checkDependenciesResolved(set, set.All()); err != nil {
		return err
	}
	return nil
}

// resolveSlug searches the registry for slug and, when ambiguous, prompts
// on stdin for a selection — the interactive-selection requirement in §6.
func resolveSlug(ctx context.Context, driver jade.Driver, slug string) (string, error) {
	hits, err := driver.Search(ctx, slug)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return slug, nil
	}
	if len(hits) == 1 {
		return hits[0].ID, nil
	}

	fmt.Fprintf(os.Stdout, "multiple results for %q:\n", slug)
	for i, h := range hits {
		fmt.Fprintf(os.Stdout, "  [%d] %s — %s (by %s, %d downloads)\n", i+1, h.Slug, h.Description, h.Author, h.Downloads)
	}
	fmt.Fprint(os.Stdout, "select a package [1]: ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = trimNewline(line)
	if line == "" {
		return hits[0].ID, nil
	}
	idx, err := strconv.Atoi(line)
	if err != nil || idx < 1 || idx > len(hits) {
		return "", fmt.Errorf("install: invalid selection %q", line)
	}
	return hits[idx-1].ID, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
