// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

//go:build windows

package jade

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isCrossDevice reports whether err (from os.Rename) failed because the
// source and destination are on different volumes. MoveFileEx surfaces
// this as ERROR_NOT_SAME_DEVICE.
func isCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
