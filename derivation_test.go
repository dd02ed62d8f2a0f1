// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package jade

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Nimrodium/jade/internal/jadeerr"
	"github.com/Nimrodium/jade/internal/jadehash"
)

func TestParseDerivationMinimal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sodium.toml")
	body := `url = "https://host/Sodium.jar"`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := ParseDerivation(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "sodiumjar" {
		t.Errorf("Name (fallen back to file-from-url, normalized) = %q; want %q", d.Name, "sodiumjar")
	}
	if d.FileName != d.Name {
		t.Errorf("FileName = %q; want it to default to Name %q", d.FileName, d.Name)
	}
	if d.BackingFile != path {
		t.Errorf("BackingFile = %q; want %q", d.BackingFile, path)
	}
}

func TestParseDerivationMissingURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte(`name = "x"`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ParseDerivation(path); !jadeerr.Is(err, jadeerr.ParseFailure) {
		t.Fatalf("ParseDerivation with no url returned %v; want ParseFailure", err)
	}
}

// TestParseDerivationNameNormalized exercises I5: names are normalized to
// lowercase ASCII alphanumerics on load.
func TestParseDerivationNameNormalized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.toml")
	body := `
url = "https://host/x.jar"
name = "Fancy Mod-2"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := ParseDerivation(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "fancymod2" {
		t.Errorf("Name = %q; want %q", d.Name, "fancymod2")
	}
}

// TestMarshalRoundTrip exercises P3: parse(marshal(d)) reproduces d modulo
// default-elision.
func TestMarshalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.toml")
	d := &Derivation{
		URL:      "https://host/x.jar",
		Name:     "x",
		FileName: "x.jar",
		Extract:  true,
		Hash:     "abc123",
		Depends:  []string{"y", "z"},
		Tags:     []string{"performance"},
	}
	data, err := d.MarshalTOML()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ParseDerivation(path)
	if err != nil {
		t.Fatal(err)
	}
	got.BackingFile = ""
	d.BackingFile = ""
	if !got.Equal(d) {
		t.Errorf("round-tripped derivation = %+v; want %+v", got, d)
	}
}

func TestWriteBackRequiresBackingFile(t *testing.T) {
	d := &Derivation{URL: "https://host/x.jar", Name: "x", FileName: "x.jar"}
	if err := d.WriteBack(); !jadeerr.Is(err, jadeerr.IOFailure) {
		t.Fatalf("WriteBack with no BackingFile returned %v; want IOFailure", err)
	}
}

func TestWriteBackPersistsHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.toml")
	if err := os.WriteFile(path, []byte(`url = "https://host/x.jar"
name = "x"
file_name = "x.jar"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := ParseDerivation(path)
	if err != nil {
		t.Fatal(err)
	}
	d.Hash = "deadbeef"
	if err := d.WriteBack(); err != nil {
		t.Fatal(err)
	}

	reread, err := ParseDerivation(path)
	if err != nil {
		t.Fatal(err)
	}
	if reread.Hash != "deadbeef" {
		t.Errorf("reread.Hash = %q; want %q", reread.Hash, "deadbeef")
	}
}

func TestSignaturePanicsWhenUnhashed(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Signature on an unhashed derivation did not panic")
		}
	}()
	(&Derivation{Name: "x"}).Signature()
}

func TestSignatureFormat(t *testing.T) {
	d := &Derivation{Name: "x", Hash: "abc123"}
	if got, want := d.Signature(), "abc123-x"; got != want {
		t.Errorf("Signature() = %q; want %q", got, want)
	}
}

// TestDownloadFillsHash exercises Download's unhashed-in, hashed-out path.
func TestDownloadFillsHash(t *testing.T) {
	body := []byte("hello world")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	d := &Derivation{URL: srv.URL + "/x.jar", Name: "x", FileName: "x.jar"}
	path, err := d.Download(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("downloaded content = %q; want %q", got, body)
	}
	want, err := jadehash.SHA256Base32(bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if d.Hash != want {
		t.Errorf("d.Hash = %q; want %q", d.Hash, want)
	}
}

// TestDownloadHashMismatch exercises P5: a preset wrong hash fails without
// committing the download result anywhere persistent.
func TestDownloadHashMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	d := &Derivation{URL: srv.URL + "/x.jar", Name: "x", FileName: "x.jar", Hash: "not-the-real-hash"}
	if _, err := d.Download(context.Background(), dir); !jadeerr.Is(err, jadeerr.HashMismatch) {
		t.Fatalf("Download with wrong preset hash returned %v; want HashMismatch", err)
	}
}

func TestDownloadNetworkFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	d := &Derivation{URL: srv.URL + "/missing.jar", Name: "x", FileName: "x.jar"}
	if _, err := d.Download(context.Background(), dir); !jadeerr.Is(err, jadeerr.NetworkFailure) {
		t.Fatalf("Download against a 404 returned %v; want NetworkFailure", err)
	}
}
