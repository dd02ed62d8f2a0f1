// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package jade

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/Nimrodium/jade/internal/jadeerr"
	"github.com/Nimrodium/jade/internal/jadehash"
	"github.com/Nimrodium/jade/sortedset"
)

// DerivationSet is the in-memory collection of Derivations loaded from a
// directory tree, per C3. A DerivationSet is owned by a single goroutine;
// callers mutating it concurrently with a registry driver must serialize
// their own access, matching the "owned by one thread" contract in §5.
type DerivationSet struct {
	derivations []*Derivation
}

// NewDerivationSet returns an empty set.
func NewDerivationSet() *DerivationSet {
	return &DerivationSet{}
}

// LoadFromDirectory recursively loads every regular file under dir as a
// derivation record (depth-first). I/O and parse errors are fatal and
// carry the offending path.
func LoadFromDirectory(dir string) (*DerivationSet, error) {
	set := NewDerivationSet()
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return jadeerr.Wrapf(jadeerr.IOFailure, err, "load derivations from %s", path)
		}
		if entry.IsDir() {
			return nil
		}
		d, err := ParseDerivation(path)
		if err != nil {
			return err
		}
		set.derivations = append(set.derivations, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// All returns the set's derivations in load order.
func (s *DerivationSet) All() []*Derivation {
	return slices.Clone(s.derivations)
}

// Add appends d to the set without deduplication; call Dedup afterward if
// needed.
func (s *DerivationSet) Add(d *Derivation) {
	s.derivations = append(s.derivations, d)
}

// Len reports the number of derivations currently held, duplicates
// included.
func (s *DerivationSet) Len() int {
	return len(s.derivations)
}

// Dedup collapses structurally equal duplicates (per Derivation.Equal),
// keeping exactly one representative per equivalence class. Which backing
// file wins is documented as deterministic: derivations are sorted by
// BackingFile path before collapsing, so the lexicographically smallest
// path's derivation survives (P7: dedup(xs++xs) == dedup(xs) as sets).
func (s *DerivationSet) Dedup() {
	sorted := slices.Clone(s.derivations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].BackingFile < sorted[j].BackingFile
	})

	var kept []*Derivation
	for _, d := range sorted {
		dup := false
		for _, k := range kept {
			if d.Equal(k) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, d)
		}
	}
	s.derivations = kept
}

// GetByFuzzyName returns the first derivation (in set order) whose
// normalized name contains the normalized query q. It returns a NotFound
// error if none match.
func (s *DerivationSet) GetByFuzzyName(q string) (*Derivation, error) {
	nq := jadehash.Normalize(q)
	for _, d := range s.derivations {
		if strings.Contains(jadehash.Normalize(d.Name), nq) {
			return d, nil
		}
	}
	return nil, jadeerr.New(jadeerr.NotFound, "no derivation matching %q", q)
}

// FindUnmanagedMatches looks for an existing derivation that corresponds
// to candidate, either by driver-issued package id (when both candidate
// and the existing record carry one) or by normalized name.
// alreadyInstalled is true when the existing record already carries full
// driver metadata (a non-empty Hash, meaning it was previously realized
// and pinned), meaning candidate need not be re-derived.
func (s *DerivationSet) FindUnmanagedMatches(candidate *Derivation) (existing *Derivation, alreadyInstalled bool) {
	name := jadehash.Normalize(candidate.Name)
	for _, d := range s.derivations {
		if candidate.DriverPkgID != "" && d.DriverPkgID == candidate.DriverPkgID {
			return d, d.Hash != ""
		}
		if jadehash.Normalize(d.Name) == name {
			return d, d.Hash != ""
		}
	}
	return nil, false
}

// APIPkgIDList returns the (driver-package-id, driver-version-id) pairs
// currently tracked, in deterministic sorted-by-package-id order, handed
// to a registry driver as its already_seen dedup set so that install
// doesn't re-derive packages already present in the set. Derivations with
// no driver-issued package id (never resolved through a driver) are
// excluded: a driver's dedup namespace has nothing to compare them
// against.
func (s *DerivationSet) APIPkgIDList() []DriverRef {
	versionByID := make(map[string]string)
	ids := sortedset.New[string]()
	ids.Grow(len(s.derivations))
	for _, d := range s.derivations {
		if d.DriverPkgID == "" {
			continue
		}
		ids.Add(d.DriverPkgID)
		versionByID[d.DriverPkgID] = d.DriverVersionID
	}
	refs := make([]DriverRef, 0, ids.Len())
	for _, id := range ids.Slice() {
		refs = append(refs, DriverRef{PkgID: id, VersionID: versionByID[id]})
	}
	return refs
}

// FilterByTags implements the tag-based selection supplemental to the
// core spec, grounded in the original implementation's
// filter_derivations_by_tags: for each derivation, walk enabledTags in
// order; the first enabled tag the derivation carries decides its fate —
// if the derivation also carries any disabled tag it is dropped,
// otherwise it is kept. If no enabled tag matches at all, the derivation
// is kept only when exclusive is false (disabledTags are not consulted
// in that fallback branch — matching the original's control flow
// exactly, quirks included).
func (s *DerivationSet) FilterByTags(enabledTags, disabledTags []string, exclusive bool) *DerivationSet {
	out := NewDerivationSet()
root:
	for _, d := range s.derivations {
		for _, enabled := range enabledTags {
			if containsTag(d.Tags, enabled) {
				if anyTagMatches(d.Tags, disabledTags) {
					continue root
				}
				out.Add(d)
				continue root
			}
		}
		if !exclusive {
			out.Add(d)
		}
	}
	return out
}

func containsTag(tags []string, tag string) bool {
	nt := jadehash.Normalize(tag)
	for _, t := range tags {
		if jadehash.Normalize(t) == nt {
			return true
		}
	}
	return false
}

func anyTagMatches(tags, candidates []string) bool {
	for _, c := range candidates {
		if containsTag(tags, c) {
			return true
		}
	}
	return false
}
