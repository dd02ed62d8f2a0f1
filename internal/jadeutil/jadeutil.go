// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

// Package jadeutil provides small filesystem convenience functions shared
// by the derivation, store, and deploy layers. It is trimmed down from the
// teacher's internal/osutil: jade never manages sandboxed builds or mounted
// filesystems, so osutil's Freeze, MkdirAllInRoot, UnmountAndRemoveAll, and
// user/group lookups have no analogue here.
package jadeutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// MkdirPerm creates a new directory with the given permission bits (after
// umask), succeeding silently if the directory already exists.
func MkdirPerm(name string, perm os.FileMode) error {
	if err := os.Mkdir(name, perm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return err
	}
	return os.Chmod(name, perm)
}

// MkdirAllPerm is like os.MkdirAll but also chmods the leaf directory to
// perm (after umask), matching MkdirPerm's guarantee for single-level
// directories.
func MkdirAllPerm(name string, perm os.FileMode) error {
	if err := os.MkdirAll(name, perm); err != nil {
		return err
	}
	return os.Chmod(name, perm)
}

// WriteFilePerm writes data to the named file, creating it if necessary,
// and ensuring it has the given permissions (after umask).
func WriteFilePerm(name string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %v", name, err)
	}
	err = f.Chmod(perm)
	err2 := f.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		return fmt.Errorf("write %s: %v", name, err)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file in the same directory as
// name and renames it into place, so that readers never observe a
// partially written file. This backs Derivation.WriteBack's "write temp +
// rename" requirement.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	tmp := name + ".tmp"
	if err := WriteFilePerm(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// RemoveFSEntity removes the file, directory (recursively), or symlink at
// path, succeeding silently if nothing exists there. StorePath.InstallTo
// does not call it: the deployer's pre-clean step does its own Lstat and
// RemoveAll.
func RemoveFSEntity(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(path)
}

// Exists reports whether path names an existing filesystem entry, without
// following a trailing symlink.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
