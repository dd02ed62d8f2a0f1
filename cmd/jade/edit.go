// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	jade "github.com/Nimrodium/jade"
)

type editOptions struct {
	editor string
}

func newEditCommand(g *globalConfig) *cobra.Command {
	opts := new(editOptions)
	c := &cobra.Command{
		Use:                   "edit <modname>",
		Short:                 "open a derivation's backing file in an editor",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.Flags().StringVar(&opts.editor, "editor", "", "editor `command` to invoke (default $EDITOR)")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runEdit(g, opts, args[0])
	}
	return c
}

func runEdit(g *globalConfig, opts *editOptions, modName string) error {
	manifest, err := g.loadManifest()
	if err != nil {
		return err
	}
	set, err := jade.LoadFromDirectory(g.derivesDir(manifest))
	if err != nil {
		return err
	}
	d, err := set.GetByFuzzyName(modName)
	if err != nil {
		return err
	}

	editor := opts.editor
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		if runtime.GOOS == "windows" {
			editor = "notepad"
		} else {
			editor = "nano"
		}
	}

	c := exec.Command(editor, d.BackingFile)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}
