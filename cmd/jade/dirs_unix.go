// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

//go:build unix

package main

import (
	"os"
	"path/filepath"

	"go4.org/xdgdir"
)

// defaultJadeRoot resolves JADEROOT's POSIX default, $HOME/.jade, per §6.
// If $HOME can't be determined, fall back to a "jade" directory under the
// XDG cache base.
func defaultJadeRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".jade")
	}
	return filepath.Join(xdgdir.Cache.Path(), "jade")
}
