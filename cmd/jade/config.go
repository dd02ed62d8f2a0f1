// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	jade "github.com/Nimrodium/jade"
)

// globalConfig holds the CLI's global flags (§6) plus the fields derived
// from them once PersistentPreRunE has run. It's the generalized
// equivalent of the teacher's cmd/zb globalConfig/mergeEnvironment
// layering: environment first, then flags override.
type globalConfig struct {
	cwd      string
	manifest string
	store    string
	root     string
	derives  string
	symlink  bool
	copy     bool
	verbose  bool

	// Resolved fields, populated by resolve().
	jadeRoot    string
	storeRoot   string
	stagingRoot string
}

func newGlobalConfig() *globalConfig {
	return &globalConfig{}
}

func (g *globalConfig) registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&g.cwd, "cwd", "", "run as if jade was started in `dir`")
	fs.StringVar(&g.manifest, "manifest", "manifest.jade.toml", "path to the manifest `file`")
	fs.StringVar(&g.store, "store", "", "override the store root `dir` (default JADEROOT/store)")
	fs.StringVar(&g.root, "root", "", "override JADEROOT (default $HOME/.jade or %APPDATA%/Local/jade)")
	fs.StringVar(&g.derives, "derives", "", "override the derivation directory `dir`")
	fs.BoolVar(&g.symlink, "symlink", true, "deploy by symlinking into the target (default)")
	fs.BoolVar(&g.copy, "copy", false, "deploy by copying into the target instead of symlinking")
	fs.BoolVar(&g.verbose, "verbose", false, "show debugging output")
}

// resolve fills in derived fields and applies --cwd. It must run in
// PersistentPreRunE, after flag parsing, before any subcommand body runs.
func (g *globalConfig) resolve() error {
	if g.cwd != "" {
		if err := os.Chdir(g.cwd); err != nil {
			return fmt.Errorf("--cwd %s: %w", g.cwd, err)
		}
	}
	if g.copy {
		g.symlink = false
	}

	g.jadeRoot = g.root
	if g.jadeRoot == "" {
		if env := os.Getenv("JADEROOT"); env != "" {
			g.jadeRoot = env
		} else {
			g.jadeRoot = defaultJadeRoot()
		}
	}

	g.storeRoot = g.store
	if g.storeRoot == "" {
		g.storeRoot = filepath.Join(g.jadeRoot, "store")
	}
	g.stagingRoot = filepath.Join(g.jadeRoot, "staging")
	return nil
}

// loadManifest loads the manifest at g.manifest, erroring out with the
// manifest path if absent — the CLI's sole entry point for obtaining a
// *jade.Manifest.
func (g *globalConfig) loadManifest() (*jade.Manifest, error) {
	return jade.LoadManifest(g.manifest)
}

// derivesDir resolves the effective derivation directory: --derives
// overrides the manifest's derives_dir, which in turn overrides the
// "derives" sibling of the manifest file.
func (g *globalConfig) derivesDir(m *jade.Manifest) string {
	if g.derives != "" {
		return g.derives
	}
	if m.DerivesDir != "" {
		return m.DerivesDir
	}
	return defaultDerivesDir(g.manifest)
}

func (g *globalConfig) newStore() *jade.Store {
	return jade.NewStore(g.storeRoot, g.stagingRoot)
}
