// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package jade

import (
	"os"
	"path/filepath"

	"github.com/Nimrodium/jade/internal/jadeerr"
	"github.com/Nimrodium/jade/internal/jadeutil"
)

// StorePath is the result of realizing a Derivation: a signature directory
// under a Store's root containing a single "artifact" entry, per the store
// layout in the data model.
type StorePath struct {
	// Path is the absolute path of the signature directory, {store}/{sig}/.
	Path string
	// Name is the deployment name: the basename the artifact receives when
	// installed into a composition target.
	Name string
	Hash string
}

// Artifact returns the absolute path of the realized artifact itself,
// {store}/{sig}/artifact.
func (sp *StorePath) Artifact() string {
	return filepath.Join(sp.Path, "artifact")
}

// InstallTo implements C5's install_to: it ensures destDir exists, removes
// any existing entry at destDir/{sp.Name} (file, directory, or symlink, per
// P8), and either symlinks or recursively copies the artifact into place.
func (sp *StorePath) InstallTo(destDir string, symlink bool) error {
	if err := jadeutil.MkdirAllPerm(destDir, 0o755); err != nil {
		return jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s", sp.Name)
	}
	dest := filepath.Join(destDir, sp.Name)

	if _, err := os.Lstat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s: clearing existing entry", sp.Name)
		}
	} else if !os.IsNotExist(err) {
		return jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s: checking existing entry", sp.Name)
	}

	artifact := sp.Artifact()
	if symlink {
		if err := installSymlink(artifact, dest); err != nil {
			return jadeerr.Wrapf(jadeerr.DeployLink, err, "install %s: symlink failed; retry with --copy", sp.Name)
		}
		return nil
	}

	info, err := os.Stat(artifact)
	if err != nil {
		return jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s", sp.Name)
	}
	if info.IsDir() {
		if err := copyDir(artifact, dest, info.Mode()); err != nil {
			return jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s", sp.Name)
		}
		return nil
	}
	if err := copyFile(artifact, dest, info.Mode()); err != nil {
		return jadeerr.Wrapf(jadeerr.IOFailure, err, "install %s", sp.Name)
	}
	return nil
}
