// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

//go:build unix

package jade

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isCrossDevice reports whether err (from os.Rename) failed because the
// source and destination are on different filesystems.
func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
