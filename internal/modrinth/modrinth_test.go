// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package modrinth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	jade "github.com/Nimrodium/jade"
)

func newTestDriver(t *testing.T, srv *httptest.Server) *Driver {
	t.Helper()
	d := New(Config{Loader: "fabric", Versions: []string{"1.20.1"}, Limit: 10})
	d.client = srv.Client()
	return d
}

// newFakeServer lets tests point the driver's fixed apiBase at an
// httptest server by wrapping the transport and rewriting scheme+host.
func newFakeServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, func(*Driver)) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, func(d *Driver) {
		base, _ := url.Parse(srv.URL + "/")
		d.client = &http.Client{Transport: rewriteTransport{base: base, rt: http.DefaultTransport}}
	}
}

type rewriteTransport struct {
	base *url.URL
	rt   http.RoundTripper
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.base.Scheme
	req.URL.Host = t.base.Host
	return t.rt.RoundTrip(req)
}

func TestSearch(t *testing.T) {
	srv, configure := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "v2/search") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hits": []map[string]any{
				{
					"project_id":  "AANobbMI",
					"slug":        "sodium",
					"description": "A performance mod",
					"author":      "jellysquid3",
					"categories":  []string{"performance"},
					"downloads":   12345,
				},
			},
		})
	})
	d := newTestDriver(t, srv)
	configure(d)

	hits, err := d.Search(context.Background(), "sodium")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("Search returned %d hits; want 1", len(hits))
	}
	want := jade.SearchHit{ID: "AANobbMI", Slug: "sodium", Description: "A performance mod", Author: "jellysquid3", Downloads: 12345, Tags: []string{"performance"}}
	if !reflect.DeepEqual(hits[0], want) {
		t.Errorf("Search hit = %+v; want %+v", hits[0], want)
	}
}

func TestGetDerivationsForNoDeps(t *testing.T) {
	srv, configure := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/version/"):
			t.Errorf("unexpected specific-version request: %s", r.URL.Path)
		case strings.HasSuffix(r.URL.Path, "/version"):
			json.NewEncoder(w).Encode([]map[string]any{
				{
					"id": "ver1",
					"files": []map[string]any{
						{"url": "https://cdn/sodium.jar", "filename": "sodium.jar", "hashes": map[string]string{"sha512": "abc123"}},
					},
					"dependencies": []any{},
				},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"slug":       "sodium",
				"categories": []string{"performance"},
			})
		}
	})
	d := newTestDriver(t, srv)
	configure(d)

	seen := jade.NewSeenSet(nil)
	derivations, err := d.GetDerivationsFor(context.Background(), "AANobbMI", seen, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(derivations) != 1 {
		t.Fatalf("GetDerivationsFor returned %d derivations; want 1", len(derivations))
	}
	got := derivations[0]
	if got.Name != "sodium" || got.FileName != "sodium.jar" || got.URL != "https://cdn/sodium.jar" {
		t.Errorf("derivation = %+v; want name=sodium file_name=sodium.jar url=https://cdn/sodium.jar", got)
	}
	if got.SourceSHA512 != "abc123" {
		t.Errorf("SourceSHA512 = %q; want abc123", got.SourceSHA512)
	}
	// DriverPkgID/DriverVersionID are what api_pkg_id_list() round-trips
	// through a SeenSet on the next install run; they must be the raw
	// Modrinth ids, not jade's own normalized name.
	if got.DriverPkgID != "AANobbMI" || got.DriverVersionID != "ver1" {
		t.Errorf("DriverPkgID/DriverVersionID = %q/%q; want AANobbMI/ver1", got.DriverPkgID, got.DriverVersionID)
	}
}

// TestGetDerivationsForAlreadySeen uses the driver's own (unnormalized)
// project-id casing, the same namespace buildDerivationFor recurses on,
// so this exercises the real already_seen dedup path rather than a
// normalized-name lookalike.
func TestGetDerivationsForAlreadySeen(t *testing.T) {
	srv, configure := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for an already-seen package, got %s", r.URL.Path)
	})
	d := newTestDriver(t, srv)
	configure(d)

	seen := jade.NewSeenSet([]jade.DriverRef{{PkgID: "AANobbMI", VersionID: "ver1"}})
	derivations, err := d.GetDerivationsFor(context.Background(), "AANobbMI", seen, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(derivations) != 0 {
		t.Errorf("GetDerivationsFor on an already-seen id returned %d derivations; want 0", len(derivations))
	}
}

// TestGetDerivationsForSeenFromAPIPkgIDList exercises the full
// cross-module path: a DerivationSet loaded from disk feeds
// APIPkgIDList() straight into NewSeenSet, and that alone must be enough
// to short-circuit re-resolution of a package already realized in a
// previous run.
func TestGetDerivationsForSeenFromAPIPkgIDList(t *testing.T) {
	srv, configure := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for a package already in the derivation set, got %s", r.URL.Path)
	})
	d := newTestDriver(t, srv)
	configure(d)

	set := jade.NewDerivationSet()
	set.Add(&jade.Derivation{Name: "sodium", FileName: "sodium.jar", Hash: "deadbeef", DriverPkgID: "AANobbMI", DriverVersionID: "ver1"})

	seen := jade.NewSeenSet(set.APIPkgIDList())
	derivations, err := d.GetDerivationsFor(context.Background(), "AANobbMI", seen, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(derivations) != 0 {
		t.Errorf("GetDerivationsFor for a package already tracked via APIPkgIDList returned %d derivations; want 0", len(derivations))
	}
}
