// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

//go:build unix

package jade

import "os"

// installSymlink creates a single symlink entry at dest pointing at
// artifact, matching the POSIX deployment shape in §4.4: no distinction
// between file and directory targets.
func installSymlink(artifact, dest string) error {
	return os.Symlink(artifact, dest)
}
