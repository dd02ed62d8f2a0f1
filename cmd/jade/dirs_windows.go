// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
)

// defaultJadeRoot resolves JADEROOT's Windows default,
// %APPDATA%/Local/jade, per §6.
func defaultJadeRoot() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "Local", "jade")
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "jade")
}
