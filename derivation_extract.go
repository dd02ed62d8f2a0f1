// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package jade

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"zombiezen.com/go/log"

	"github.com/Nimrodium/jade/internal/jadeerr"
	"github.com/Nimrodium/jade/internal/jadeutil"
)

// ExtractPackage expands the zip archive at path into a sibling directory
// (path + ".extracted") and returns that directory's path. It fails if
// path is not a valid zip archive. The original archive file is left in
// place for the caller to remove; Store.realize removes it after a
// successful extract.
func (d *Derivation) ExtractPackage(ctx context.Context, path string) (string, error) {
	dest := path + ".extracted"
	log.Debugf(ctx, "extracting %s -> %s", path, dest)

	r, err := zip.OpenReader(path)
	if err != nil {
		return "", jadeerr.Wrapf(jadeerr.IOFailure, err, "extract %s: not a zip archive", d.Name)
	}
	defer r.Close()

	if err := jadeutil.MkdirAllPerm(dest, 0o755); err != nil {
		return "", jadeerr.Wrapf(jadeerr.IOFailure, err, "extract %s", d.Name)
	}
	for _, f := range r.File {
		if err := extractZipEntry(dest, f); err != nil {
			return "", jadeerr.Wrapf(jadeerr.IOFailure, err, "extract %s", d.Name)
		}
	}
	return dest, nil
}

// extractZipEntry writes a single zip entry into destDir, refusing any
// entry whose name would escape destDir via ".." path components (zip
// slip).
func extractZipEntry(destDir string, f *zip.File) error {
	cleanName := filepath.Clean(f.Name)
	if cleanName == "." || cleanName == ".." || strings.HasPrefix(cleanName, ".."+string(filepath.Separator)) || filepath.IsAbs(cleanName) {
		return fmt.Errorf("zip entry %q escapes extraction directory", f.Name)
	}
	target := filepath.Join(destDir, cleanName)

	if f.FileInfo().IsDir() {
		return jadeutil.MkdirAllPerm(target, 0o755)
	}

	if err := jadeutil.MkdirAllPerm(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o600)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, rc)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// InstallToStore creates {store}/{sig}/ and atomically renames sourcePath
// to {store}/{sig}/artifact. Rename is atomic within a filesystem; if
// sourcePath and storeRoot live on different filesystems, InstallToStore
// falls back to copy+unlink; a successful fallback returns no error, and a
// failed one is reported as IOFailure (there is no separate StoreInstall
// kind).
func (d *Derivation) InstallToStore(storeRoot, sourcePath string) (*StorePath, error) {
	sigDir := filepath.Join(storeRoot, d.Signature())
	if err := jadeutil.MkdirAllPerm(sigDir, 0o755); err != nil {
		return nil, jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s to store", d.Name)
	}
	artifact := filepath.Join(sigDir, "artifact")

	if err := os.Rename(sourcePath, artifact); err != nil {
		if !isCrossDevice(err) {
			if os.IsExist(err) || jadeutil.Exists(artifact) {
				// Lost a commit race to a concurrent realize of the same
				// derivation; treat as a cache hit per the concurrency
				// contract.
				os.RemoveAll(sourcePath)
			} else {
				return nil, jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s to store", d.Name)
			}
		} else if err := copyThenRemove(sourcePath, artifact); err != nil {
			return nil, jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s to store (cross-filesystem rename)", d.Name)
		}
	}

	return &StorePath{
		Path: sigDir,
		Name: d.FileName,
		Hash: d.Hash,
	}, nil
}
