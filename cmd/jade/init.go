// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Nimrodium/jade/internal/jadeutil"
)

type initOptions struct {
	name    string
	derives string
	api     string
	target  string
}

func newInitCommand(g *globalConfig) *cobra.Command {
	opts := new(initOptions)
	c := &cobra.Command{
		Use:                   "init [options] [directory]",
		Short:                 "create a new manifest and derives directory",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MaximumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.Flags().StringVar(&opts.name, "name", "", "pack `name` (required)")
	c.Flags().StringVar(&opts.derives, "derives", "./derives", "derivation directory, relative to the manifest")
	c.Flags().StringVar(&opts.api, "api", "", "registry driver `name`")
	c.Flags().StringVar(&opts.target, "target", "", "default deployment target `dir`")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runInit(g, opts, dir)
	}
	return c
}

func runInit(g *globalConfig, opts *initOptions, dir string) error {
	if opts.name == "" {
		return fmt.Errorf("init: --name is required")
	}
	if err := jadeutil.MkdirAllPerm(dir, 0o755); err != nil {
		return err
	}
	if err := jadeutil.MkdirAllPerm(filepath.Join(dir, opts.derives), 0o755); err != nil {
		return err
	}

	var buf []byte
	buf = append(buf, fmt.Sprintf("[main]\nname = %q\npack_version = \"0.1\"\n", opts.name)...)
	if opts.derives != "" && opts.derives != "./derives" {
		buf = append(buf, fmt.Sprintf("derives = %q\n", opts.derives)...)
	}
	if opts.api != "" {
		buf = append(buf, fmt.Sprintf("api = %q\n", opts.api)...)
	}
	if opts.target != "" {
		buf = append(buf, fmt.Sprintf("target = %q\n", opts.target)...)
	}

	manifestPath := filepath.Join(dir, "manifest.jade.toml")
	if jadeutil.Exists(manifestPath) {
		return fmt.Errorf("init: %s already exists", manifestPath)
	}
	if err := os.WriteFile(manifestPath, buf, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "initialized %s\n", manifestPath)
	return nil
}
