// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package jade

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeDerivationFile(t *testing.T, dir, relPath, body string) {
	t.Helper()
	path := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFromDirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	writeDerivationFile(t, dir, "sodium.toml", `
url = "https://host/sodium.jar"
name = "sodium"
file_name = "sodium.jar"
`)
	writeDerivationFile(t, dir, "perf/lithium.toml", `
url = "https://host/lithium.jar"
name = "lithium"
file_name = "lithium.jar"
`)

	set, err := LoadFromDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", set.Len())
	}
}

func TestLoadFromDirectoryBadRecord(t *testing.T) {
	dir := t.TempDir()
	writeDerivationFile(t, dir, "broken.toml", `name = "missing url"`)

	if _, err := LoadFromDirectory(dir); err == nil {
		t.Error("LoadFromDirectory with a missing url field returned nil error")
	}
}

func TestDerivationSetDedup(t *testing.T) {
	a := &Derivation{URL: "https://h/x.jar", Name: "x", FileName: "x.jar", BackingFile: "/b/x.toml"}
	b := &Derivation{URL: "https://h/x.jar", Name: "x", FileName: "x.jar", BackingFile: "/a/x.toml"}
	set := NewDerivationSet()
	set.Add(a)
	set.Add(b)
	set.Dedup()

	if set.Len() != 1 {
		t.Fatalf("after Dedup, Len() = %d; want 1", set.Len())
	}
	if got := set.All()[0].BackingFile; got != "/a/x.toml" {
		t.Errorf("surviving BackingFile = %q; want the lexicographically smallest, /a/x.toml", got)
	}
}

// TestDerivationSetDedupIdempotent exercises P7: dedup(xs++xs) == dedup(xs).
func TestDerivationSetDedupIdempotent(t *testing.T) {
	d := &Derivation{URL: "https://h/x.jar", Name: "x", FileName: "x.jar", BackingFile: "/x.toml"}
	once := NewDerivationSet()
	once.Add(d)
	once.Dedup()

	twice := NewDerivationSet()
	twice.Add(d)
	twice.Add(d)
	twice.Dedup()

	if diff := cmp.Diff(once.All(), twice.All()); diff != "" {
		t.Errorf("dedup(xs) != dedup(xs++xs) (-once +twice):\n%s", diff)
	}
}

func TestGetByFuzzyName(t *testing.T) {
	set := NewDerivationSet()
	set.Add(&Derivation{Name: "sodium", FileName: "sodium.jar"})
	set.Add(&Derivation{Name: "lithium", FileName: "lithium.jar"})

	d, err := set.GetByFuzzyName("odi")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "sodium" {
		t.Errorf("GetByFuzzyName(%q).Name = %q; want sodium", "odi", d.Name)
	}

	if _, err := set.GetByFuzzyName("nonexistent"); err == nil {
		t.Error("GetByFuzzyName on a non-matching query returned nil error")
	}
}

func TestFindUnmanagedMatches(t *testing.T) {
	set := NewDerivationSet()
	set.Add(&Derivation{Name: "sodium", FileName: "sodium.jar", Hash: "deadbeef"})

	existing, installed := set.FindUnmanagedMatches(&Derivation{Name: "sodium"})
	if existing == nil || !installed {
		t.Errorf("FindUnmanagedMatches(sodium) = (%v, %v); want (non-nil, true)", existing, installed)
	}

	existing, installed = set.FindUnmanagedMatches(&Derivation{Name: "lithium"})
	if existing != nil || installed {
		t.Errorf("FindUnmanagedMatches(lithium) = (%v, %v); want (nil, false)", existing, installed)
	}
}

func TestFilterByTagsInclusive(t *testing.T) {
	set := NewDerivationSet()
	perf := &Derivation{Name: "sodium", Tags: []string{"performance"}}
	vanilla := &Derivation{Name: "vanilla-tweaks"}
	broken := &Derivation{Name: "fancy", Tags: []string{"performance", "experimental"}}
	set.Add(perf)
	set.Add(vanilla)
	set.Add(broken)

	got := set.FilterByTags([]string{"performance"}, []string{"experimental"}, false)
	names := make([]string, 0)
	for _, d := range got.All() {
		names = append(names, d.Name)
	}
	if diff := cmp.Diff([]string{"sodium", "vanilla-tweaks"}, names); diff != "" {
		t.Errorf("FilterByTags inclusive mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIPkgIDListSorted(t *testing.T) {
	set := NewDerivationSet()
	set.Add(&Derivation{Name: "zeta", DriverPkgID: "PKG-ZETA", DriverVersionID: "v2"})
	set.Add(&Derivation{Name: "alpha", DriverPkgID: "PKG-ALPHA"})
	set.Add(&Derivation{Name: "mu", DriverPkgID: "PKG-MU", DriverVersionID: "v1"})
	// A derivation never resolved through a driver has nothing to compare
	// against a driver's own id namespace, and must be excluded.
	set.Add(&Derivation{Name: "unmanaged"})

	got := set.APIPkgIDList()
	want := []DriverRef{
		{PkgID: "PKG-ALPHA"},
		{PkgID: "PKG-MU", VersionID: "v1"},
		{PkgID: "PKG-ZETA", VersionID: "v2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("APIPkgIDList mismatch (-want +got):\n%s", diff)
	}
}

// TestFindUnmanagedMatchesByDriverPkgID exercises the driver-id match path:
// a candidate with a different normalized name than the existing record
// still matches when both carry the same DriverPkgID.
func TestFindUnmanagedMatchesByDriverPkgID(t *testing.T) {
	set := NewDerivationSet()
	set.Add(&Derivation{Name: "sodium", DriverPkgID: "AANobbMI", Hash: "deadbeef"})

	existing, installed := set.FindUnmanagedMatches(&Derivation{Name: "Sodium Extra", DriverPkgID: "AANobbMI"})
	if existing == nil || !installed {
		t.Errorf("FindUnmanagedMatches by DriverPkgID = (%v, %v); want (non-nil, true)", existing, installed)
	}
}

func TestFilterByTagsExclusive(t *testing.T) {
	set := NewDerivationSet()
	perf := &Derivation{Name: "sodium", Tags: []string{"performance"}}
	vanilla := &Derivation{Name: "vanilla-tweaks"}
	set.Add(perf)
	set.Add(vanilla)

	got := set.FilterByTags([]string{"performance"}, nil, true)
	if got.Len() != 1 || got.All()[0].Name != "sodium" {
		t.Errorf("FilterByTags exclusive = %v; want only sodium", got.All())
	}
}
