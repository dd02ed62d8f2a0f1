// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package jade

import (
	"context"

	"github.com/Nimrodium/jade/sets"
)

// SearchHit is one registry search result, per C7.
type SearchHit struct {
	ID          string
	Slug        string
	Description string
	Author      string
	Downloads   int64
	Tags        []string
}

// Driver is the capability set required of any registry driver (C7). A
// driver translates a human-visible package id into a derivation list:
// the root derivation preceded by its transitive required dependencies,
// topologically ordered (dependencies first).
type Driver interface {
	// Search looks up query against the registry and returns matching
	// packages.
	Search(ctx context.Context, query string) ([]SearchHit, error)

	// GetDerivationsFor resolves pkgID (and its transitive required
	// dependencies) into derivations. alreadySeen is an in-out
	// deduplication set keyed on the driver's own package-id namespace: if
	// pkgID is already present, GetDerivationsFor returns an empty slice.
	// When doRealize is true, each newly emitted derivation is also
	// realized against store so its hash is pinned before the caller
	// writes it back.
	GetDerivationsFor(ctx context.Context, pkgID string, alreadySeen *SeenSet, doRealize bool, store *Store) ([]*Derivation, error)
}

// DriverRef identifies one (driver-package-id, driver-version-id) pair, as
// returned by DerivationSet.APIPkgIDList and consumed by NewSeenSet.
// VersionID may be empty when the derivation was resolved without an
// explicit version pin.
type DriverRef struct {
	PkgID     string
	VersionID string
}

// SeenSet is the already_seen in-out dedup set threaded through
// GetDerivationsFor, owned by the calling goroutine per §5 ("the driver
// mutates seen only under that thread"). It is keyed on driver package
// ids (e.g. a Modrinth project id), not on jade's own normalized
// derivation names, since that's the namespace a driver resolves within.
type SeenSet struct {
	seen     sets.Set[string]
	versions map[string]string
}

// NewSeenSet returns a SeenSet pre-populated from refs (typically
// DerivationSet.APIPkgIDList()), so a fresh install run already knows
// about every package previously realized to disk.
func NewSeenSet(refs []DriverRef) *SeenSet {
	s := &SeenSet{seen: sets.New[string](), versions: make(map[string]string, len(refs))}
	for _, r := range refs {
		s.seen.Add(r.PkgID)
		if r.VersionID != "" {
			s.versions[r.PkgID] = r.VersionID
		}
	}
	return s
}

// Contains reports whether pkgID has already been resolved.
func (s *SeenSet) Contains(pkgID string) bool {
	return s.seen.Has(pkgID)
}

// Mark records pkgID (at versionID, which may be empty) as resolved.
func (s *SeenSet) Mark(pkgID, versionID string) {
	s.seen.Add(pkgID)
	if versionID != "" {
		s.versions[pkgID] = versionID
	}
}

// VersionDrift reports whether pkgID was already marked at a different,
// non-empty version than versionID — the "optionally warn on version
// drift" case the registry driver interface calls out for an
// already-seen package id.
func (s *SeenSet) VersionDrift(pkgID, versionID string) bool {
	if versionID == "" {
		return false
	}
	prior, ok := s.versions[pkgID]
	return ok && prior != "" && prior != versionID
}
