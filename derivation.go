// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

// Package jade implements the declarative package manager core described
// in the project's derivation/store/composition model: derivations are
// parsed from TOML records, realized into a content-addressed store by
// download and verification, and materialized into a deployment directory
// by symlink or copy.
package jade

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"zombiezen.com/go/log"

	"github.com/Nimrodium/jade/internal/jadeerr"
	"github.com/Nimrodium/jade/internal/jadehash"
	"github.com/Nimrodium/jade/internal/jadeutil"
)

// Derivation is the fundamental persisted unit: a declarative record
// describing how to obtain one artifact and its dependencies by name.
// See the derivation file format for the on-disk TOML shape.
type Derivation struct {
	URL  string
	Name string
	// FileName is both the filename the artifact receives on disk and the
	// in-target deployment name.
	FileName string
	// Extract, if true, means the downloaded artifact is a zip to be
	// expanded into a directory; the artifact then refers to that
	// directory.
	Extract bool
	// ExtractTarget is reserved: parsed and round-tripped, but never
	// consulted when computing the deployed artifact path.
	ExtractTarget string
	// Hash is the Nix-base32 SHA-256 of the fetched bytes. Empty means the
	// derivation is unhashed and will be filled in on first realization.
	Hash string
	// Depends lists normalized names of derivations this one's dependency
	// closure asserts membership of.
	Depends []string
	Tags    []string

	// BackingFile is the path of the TOML record this derivation was
	// parsed from, exactly as passed to ParseDerivation (or as set by the
	// caller); it is not made absolute, so a relative path stays relative
	// to the working directory. It is not persisted as a field and is empty for
	// derivations constructed in memory (e.g. by a registry driver) until
	// written to disk.
	BackingFile string

	// SourceSHA512 is a driver-supplied hex sha512, used only as a
	// verification boundary between a registry driver and the store (§9):
	// never the store's own identifier, and never persisted.
	SourceSHA512 string

	// DriverPkgID and DriverVersionID are the registry's own identifiers
	// for the package/version this derivation was resolved from (e.g. a
	// Modrinth project id and version id). They are empty for derivations
	// never resolved through a driver. Unlike SourceSHA512, these persist
	// to the backing file: they are what api_pkg_id_list() hands back to
	// a driver's already_seen dedup set, which is keyed on the driver's own
	// namespace, not on the normalized Name.
	DriverPkgID     string
	DriverVersionID string
}

// derivationRecord is the on-disk TOML shape. The omitempty tags let
// MarshalTOML omit default values (extract=false, empty lists) the way
// spec'd in the derivation file format.
type derivationRecord struct {
	URL             string   `toml:"url"`
	Name            string   `toml:"name,omitempty"`
	FileName        string   `toml:"file_name,omitempty"`
	Extract         bool     `toml:"extract,omitempty"`
	ExtractTarget   string   `toml:"extract_target,omitempty"`
	Hash            string   `toml:"hash,omitempty"`
	Depends         []string `toml:"depends,omitempty"`
	Tags            []string `toml:"tags,omitempty"`
	DriverPkgID     string   `toml:"driver_pkg_id,omitempty"`
	DriverVersionID string   `toml:"driver_version_id,omitempty"`
}

// ParseDerivation reads and parses a single derivation file from path.
func ParseDerivation(path string) (*Derivation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, jadeerr.Wrapf(jadeerr.IOFailure, err, "parse derivation %s", path)
	}
	return parseDerivation(path, data)
}

func parseDerivation(path string, data []byte) (*Derivation, error) {
	var rec derivationRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, jadeerr.Wrapf(jadeerr.ParseFailure, err, "parse derivation %s", path)
	}
	if rec.URL == "" {
		return nil, jadeerr.New(jadeerr.ParseFailure, "parse derivation %s: missing required field `url`", path)
	}

	name := rec.Name
	if name == "" {
		name = rec.FileName
	}
	if name == "" {
		name = jadehash.NameFromURL(rec.URL)
	}
	name = jadehash.Normalize(name)
	if name == "" {
		return nil, jadeerr.New(jadeerr.ParseFailure, "parse derivation %s: could not determine a name", path)
	}

	fileName := rec.FileName
	if fileName == "" {
		fileName = name
	}

	d := &Derivation{
		URL:             rec.URL,
		Name:            name,
		FileName:        fileName,
		Extract:         rec.Extract,
		ExtractTarget:   rec.ExtractTarget,
		Hash:            rec.Hash,
		Depends:         slices.Clone(rec.Depends),
		Tags:            slices.Clone(rec.Tags),
		DriverPkgID:     rec.DriverPkgID,
		DriverVersionID: rec.DriverVersionID,
		BackingFile:     path,
	}
	return d, nil
}

// toRecord converts d to its on-disk shape, omitting BackingFile (never
// serialized) and relying on derivationRecord's omitempty tags to elide
// default values.
func (d *Derivation) toRecord() *derivationRecord {
	return &derivationRecord{
		URL:             d.URL,
		Name:            d.Name,
		FileName:        d.FileName,
		Extract:         d.Extract,
		ExtractTarget:   d.ExtractTarget,
		Hash:            d.Hash,
		Depends:         d.Depends,
		Tags:            d.Tags,
		DriverPkgID:     d.DriverPkgID,
		DriverVersionID: d.DriverVersionID,
	}
}

// MarshalTOML serializes d back to its on-disk form. Round-tripping
// ParseDerivation(MarshalTOML(d)) reproduces d modulo default-elision (P3).
func (d *Derivation) MarshalTOML() ([]byte, error) {
	data, err := toml.Marshal(d.toRecord())
	if err != nil {
		return nil, jadeerr.Wrapf(jadeerr.ParseFailure, err, "marshal derivation %s", d.Name)
	}
	return data, nil
}

// WriteBack serializes d and overwrites BackingFile atomically (write
// temp + rename). It is the only way a derivation's hash field is ever
// mutated on disk, per the lifecycle in the data model.
func (d *Derivation) WriteBack() error {
	if d.BackingFile == "" {
		return jadeerr.New(jadeerr.IOFailure, "write back derivation %s: no backing file", d.Name)
	}
	data, err := d.MarshalTOML()
	if err != nil {
		return err
	}
	info, statErr := os.Stat(d.BackingFile)
	perm := os.FileMode(0o644)
	if statErr == nil {
		perm = info.Mode().Perm()
	}
	if err := jadeutil.WriteFileAtomic(d.BackingFile, data, perm); err != nil {
		return jadeerr.Wrapf(jadeerr.IOFailure, err, "write back derivation %s", d.Name)
	}
	return nil
}

// Equal reports whether d and other have identical persisted fields.
// BackingFile is excluded, matching the data model's definition of
// derivation equality.
func (d *Derivation) Equal(other *Derivation) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil {
		return false
	}
	return d.URL == other.URL &&
		d.Name == other.Name &&
		d.FileName == other.FileName &&
		d.Extract == other.Extract &&
		d.ExtractTarget == other.ExtractTarget &&
		d.Hash == other.Hash &&
		slices.Equal(d.Depends, other.Depends) &&
		slices.Equal(d.Tags, other.Tags) &&
		d.DriverPkgID == other.DriverPkgID &&
		d.DriverVersionID == other.DriverVersionID
}

// Signature implements I2: "{hash}-{name}", unique within a Store once
// Hash is set. Signature panics if Hash is empty; callers must realize (or
// otherwise hash) the derivation first.
func (d *Derivation) Signature() string {
	if d.Hash == "" {
		panic(fmt.Sprintf("jade: Signature called on unhashed derivation %s", d.Name))
	}
	return jadehash.Signature(d.Hash, d.Name)
}

// HTTPClient is the subset of *http.Client that Download depends on,
// allowing tests to substitute a fake transport per the teacher's own
// testing conventions (e.g. internal/backend/realize_test.go's fake
// store roots).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var defaultHTTPClient HTTPClient = http.DefaultClient

// Download performs a blocking GET of d.URL, writing the response body to
// stagingDir/d.FileName. It computes the SHA-256 (Nix-base32) of the
// received bytes and fills d.Hash if it was empty; if d.Hash was already
// set, Download verifies agreement and returns a HashMismatch error
// without committing anything to the store (P5).
func (d *Derivation) Download(ctx context.Context, stagingDir string) (string, error) {
	return d.download(ctx, stagingDir, defaultHTTPClient)
}

func (d *Derivation) download(ctx context.Context, stagingDir string, client HTTPClient) (string, error) {
	log.Debugf(ctx, "downloading %s -> %s", d.URL, d.FileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return "", jadeerr.Wrapf(jadeerr.NetworkFailure, err, "download %s", d.Name)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", jadeerr.Wrapf(jadeerr.NetworkFailure, err, "download %s", d.Name)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", jadeerr.New(jadeerr.NetworkFailure, "download %s: %s returned status %s", d.Name, d.URL, resp.Status)
	}

	path := filepath.Join(stagingDir, d.FileName)
	f, err := os.Create(path)
	if err != nil {
		return "", jadeerr.Wrapf(jadeerr.IOFailure, err, "download %s", d.Name)
	}

	hr := jadehash.NewHasher()
	_, copyErr := io.Copy(io.MultiWriter(f, hr), resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(path)
		return "", jadeerr.Wrapf(jadeerr.NetworkFailure, copyErr, "download %s", d.Name)
	}
	if closeErr != nil {
		os.Remove(path)
		return "", jadeerr.Wrapf(jadeerr.IOFailure, closeErr, "download %s", d.Name)
	}

	digest := hr.SumBase32()
	if d.Hash == "" {
		d.Hash = digest
	} else if d.Hash != digest {
		os.Remove(path)
		return "", jadeerr.New(jadeerr.HashMismatch, "download %s: hash mismatch: expected %s, got %s", d.Name, d.Hash, digest)
	}
	return path, nil
}
