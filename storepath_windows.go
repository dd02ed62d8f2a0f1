// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

//go:build windows

package jade

import "os"

// installSymlink creates a symlink at dest pointing at artifact. Windows
// distinguishes directory-symlinks from file-symlinks; os.Symlink handles
// this internally by statting artifact, matching the choice described in
// §4.4.
func installSymlink(artifact, dest string) error {
	return os.Symlink(artifact, dest)
}
