// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

// Package modrinth implements jade's reference registry driver (C8),
// querying the Modrinth API (api.modrinth.com) to resolve a project slug
// or id into a derivation graph.
package modrinth

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"zombiezen.com/go/log"

	jade "github.com/Nimrodium/jade"
	"github.com/Nimrodium/jade/internal/jadeerr"
	"github.com/Nimrodium/jade/internal/jadehash"
	"github.com/Nimrodium/jade/internal/jadeutil"
	"github.com/Nimrodium/jade/internal/useragent"
)

const apiBase = "https://api.modrinth.com/"

// Config is the [modrinth] sub-table of a manifest file.
type Config struct {
	Loader   string
	Versions []string
	Limit    int
}

// ConfigFromMap decodes a driver sub-table (as returned by
// Manifest.DriverConfig) into a Config, per §4.5's DriverConfig error
// kind for missing or mistyped keys.
func ConfigFromMap(m map[string]any) (Config, error) {
	var cfg Config
	loader, ok := m["loader"].(string)
	if !ok {
		return cfg, jadeerr.New(jadeerr.DriverConfig, "modrinth: missing or non-string config parameter `loader`")
	}
	cfg.Loader = loader

	rawVersions, ok := m["versions"].([]any)
	if !ok {
		return cfg, jadeerr.New(jadeerr.DriverConfig, "modrinth: missing or non-array config parameter `versions`")
	}
	for _, v := range rawVersions {
		s, ok := v.(string)
		if !ok {
			return cfg, jadeerr.New(jadeerr.DriverConfig, "modrinth: `versions` contained a non-string element")
		}
		cfg.Versions = append(cfg.Versions, s)
	}

	switch limit := m["limit"].(type) {
	case int64:
		cfg.Limit = int(limit)
	case int:
		cfg.Limit = limit
	case float64:
		cfg.Limit = int(limit)
	default:
		return cfg, jadeerr.New(jadeerr.DriverConfig, "modrinth: missing or non-integer config parameter `limit`")
	}
	return cfg, nil
}

// Driver implements jade.Driver against the Modrinth API.
type Driver struct {
	cfg    Config
	client *http.Client
}

// New constructs a Modrinth driver from cfg.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, client: http.DefaultClient}
}

func (d *Driver) facets() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[[\"categories:%s\"", d.cfg.Loader)
	for _, v := range d.cfg.Versions {
		fmt.Fprintf(&b, ",\"versions:%s\"", v)
	}
	b.WriteString("]]")
	return b.String()
}

func (d *Driver) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, jadeerr.Wrapf(jadeerr.NetworkFailure, err, "modrinth: build request for %s", path)
	}
	req.Header.Set("User-Agent", useragent.String)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, jadeerr.Wrapf(jadeerr.NetworkFailure, err, "modrinth: request %s", path)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, jadeerr.Wrapf(jadeerr.NetworkFailure, err, "modrinth: read response for %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, jadeerr.New(jadeerr.NetworkFailure, "modrinth: %s returned status %s", path, resp.Status)
	}
	return body, nil
}

// Search implements jade.Driver.
func (d *Driver) Search(ctx context.Context, query string) ([]jade.SearchHit, error) {
	log.Debugf(ctx, "modrinth: searching %q", query)
	body, err := d.get(ctx, "v2/search", url.Values{
		"query":  {query},
		"facets": {d.facets()},
		"limit":  {strconv.Itoa(d.cfg.Limit)},
	})
	if err != nil {
		return nil, err
	}

	var response struct {
		Hits []struct {
			ProjectID   string   `json:"project_id"`
			Slug        string   `json:"slug"`
			Description string   `json:"description"`
			Author      string   `json:"author"`
			Categories  []string `json:"categories"`
			Downloads   int64    `json:"downloads"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, jadeerr.Wrapf(jadeerr.ParseFailure, err, "modrinth: parse search response")
	}

	hits := make([]jade.SearchHit, 0, len(response.Hits))
	for _, h := range response.Hits {
		hits = append(hits, jade.SearchHit{
			ID:          h.ProjectID,
			Slug:        h.Slug,
			Description: h.Description,
			Author:      h.Author,
			Downloads:   h.Downloads,
			Tags:        h.Categories,
		})
	}
	return hits, nil
}

type projectResponse struct {
	Slug       string   `json:"slug"`
	Categories []string `json:"categories"`
}

type versionResponse struct {
	ID           string            `json:"id"`
	Files        []fileResponse    `json:"files"`
	Dependencies []dependencyEntry `json:"dependencies"`
}

type fileResponse struct {
	URL      string            `json:"url"`
	Filename string            `json:"filename"`
	Hashes   map[string]string `json:"hashes"`
}

type dependencyEntry struct {
	ProjectID      string `json:"project_id"`
	VersionID      string `json:"version_id"`
	DependencyType string `json:"dependency_type"`
}

// GetDerivationsFor implements jade.Driver. It resolves pkgID into the
// root derivation preceded by its required-dependency closure, per §4.5's
// resolution policy: only "required" dependencies are followed; version
// selection uses an explicit version id when known, otherwise the first
// result (files[0]/versions[0], the documented "first-wins" policy);
// hashes arrive as server-provided sha512 and are converted to the
// store's canonical sha256-nix-base32 identifier only after the core has
// re-verified the downloaded bytes.
func (d *Driver) GetDerivationsFor(ctx context.Context, pkgID string, seen *jade.SeenSet, doRealize bool, store *jade.Store) ([]*jade.Derivation, error) {
	derivations, err := d.buildDerivationFor(ctx, pkgID, "", seen)
	if err != nil {
		return nil, err
	}
	if !doRealize {
		return derivations, nil
	}
	for _, der := range derivations {
		if err := d.realizeWithSHA512(ctx, der, store); err != nil {
			return nil, err
		}
	}
	return derivations, nil
}

func (d *Driver) buildDerivationFor(ctx context.Context, pkgID, verID string, seen *jade.SeenSet) ([]*jade.Derivation, error) {
	var formulated []*jade.Derivation
	if seen.Contains(pkgID) {
		if seen.VersionDrift(pkgID, verID) {
			log.Warnf(ctx, "modrinth: %s already tracked at a different version than requested (%s)", pkgID, verID)
		} else {
			log.Debugf(ctx, "modrinth: %s already tracked", pkgID)
		}
		return formulated, nil
	}
	seen.Mark(pkgID, verID)

	projectBody, err := d.get(ctx, "v2/project/"+pkgID, nil)
	if err != nil {
		return nil, err
	}
	var project projectResponse
	if err := json.Unmarshal(projectBody, &project); err != nil {
		return nil, jadeerr.Wrapf(jadeerr.ParseFailure, err, "modrinth: parse project %s", pkgID)
	}

	versionsStr := make([]string, len(d.cfg.Versions))
	for i, v := range d.cfg.Versions {
		versionsStr[i] = `"` + v + `"`
	}
	gameVersionsParam := "[" + strings.Join(versionsStr, ",") + "]"

	var version versionResponse
	if verID != "" {
		body, err := d.get(ctx, fmt.Sprintf("v2/project/%s/version/%s", pkgID, verID), url.Values{
			"loaders":       {fmt.Sprintf("[%q]", d.cfg.Loader)},
			"game_versions": {gameVersionsParam},
		})
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &version); err != nil {
			return nil, jadeerr.Wrapf(jadeerr.ParseFailure, err, "modrinth: parse version %s/%s", pkgID, verID)
		}
	} else {
		body, err := d.get(ctx, fmt.Sprintf("v2/project/%s/version", pkgID), url.Values{
			"loaders":       {fmt.Sprintf("[%q]", d.cfg.Loader)},
			"game_versions": {gameVersionsParam},
		})
		if err != nil {
			return nil, err
		}
		var versions []versionResponse
		if err := json.Unmarshal(body, &versions); err != nil {
			return nil, jadeerr.Wrapf(jadeerr.ParseFailure, err, "modrinth: parse versions for %s", pkgID)
		}
		if len(versions) == 0 {
			return nil, jadeerr.New(jadeerr.ResolutionEmpty, "modrinth: no versions for %s with loader %s and versions %v", pkgID, d.cfg.Loader, d.cfg.Versions)
		}
		version = versions[0] // first-wins, per §9's documented open question
	}

	if len(version.Files) == 0 {
		return nil, jadeerr.New(jadeerr.ResolutionEmpty, "modrinth: version %s has no files", version.ID)
	}
	file := version.Files[0] // first-wins, same policy

	sha512Hex := file.Hashes["sha512"]
	if sha512Hex == "" {
		return nil, jadeerr.New(jadeerr.ParseFailure, "modrinth: file %s has no sha512 hash", file.Filename)
	}

	var depends []string
	for _, dep := range version.Dependencies {
		if dep.DependencyType != "required" {
			continue
		}
		derived, err := d.buildDerivationFor(ctx, dep.ProjectID, dep.VersionID, seen)
		if err != nil {
			return nil, err
		}
		for _, der := range derived {
			depends = append(depends, der.Name)
		}
		formulated = append(formulated, derived...)
	}

	master := &jade.Derivation{
		URL:             file.URL,
		Name:            jadehash.Normalize(project.Slug),
		FileName:        file.Filename,
		Depends:         depends,
		Tags:            project.Categories,
		DriverPkgID:     pkgID,
		DriverVersionID: version.ID,
	}
	master.SourceSHA512 = sha512Hex
	formulated = append(formulated, master)
	return formulated, nil
}

// realizeWithSHA512 downloads der's artifact, verifies it against the
// sha512 the driver recorded, and replaces der.Hash with the store's
// canonical sha256-nix-base32 identifier before installing — the
// driver/store hash-boundary conversion called out in §9.
func (d *Driver) realizeWithSHA512(ctx context.Context, der *jade.Derivation, store *jade.Store) error {
	if err := jadeutil.MkdirAllPerm(store.StagingRoot, 0o755); err != nil {
		return jadeerr.Wrapf(jadeerr.IOFailure, err, "modrinth: stage %s", der.Name)
	}
	stagingDir, err := os.MkdirTemp(store.StagingRoot, "modrinth-")
	if err != nil {
		return jadeerr.Wrapf(jadeerr.IOFailure, err, "modrinth: stage %s", der.Name)
	}
	defer os.RemoveAll(stagingDir)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, der.URL, nil)
	if err != nil {
		return jadeerr.Wrapf(jadeerr.NetworkFailure, err, "modrinth: download %s", der.Name)
	}
	req.Header.Set("User-Agent", useragent.String)
	resp, err := d.client.Do(req)
	if err != nil {
		return jadeerr.Wrapf(jadeerr.NetworkFailure, err, "modrinth: download %s", der.Name)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return jadeerr.New(jadeerr.NetworkFailure, "modrinth: download %s: status %s", der.Name, resp.Status)
	}

	path := filepath.Join(stagingDir, der.FileName)
	f, err := os.Create(path)
	if err != nil {
		return jadeerr.Wrapf(jadeerr.IOFailure, err, "modrinth: stage %s", der.Name)
	}
	sha512Hasher := sha512.New()
	sha256Hasher := jadehash.NewHasher()
	_, copyErr := io.Copy(io.MultiWriter(f, sha512Hasher, sha256Hasher), resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return jadeerr.Wrapf(jadeerr.NetworkFailure, copyErr, "modrinth: download %s", der.Name)
	}
	if closeErr != nil {
		return jadeerr.Wrapf(jadeerr.IOFailure, closeErr, "modrinth: download %s", der.Name)
	}

	gotSHA512 := hex.EncodeToString(sha512Hasher.Sum(nil))
	if gotSHA512 != der.SourceSHA512 {
		return jadeerr.New(jadeerr.HashMismatch, "modrinth: %s: expected sha512 %s, got %s", der.Name, der.SourceSHA512, gotSHA512)
	}
	der.Hash = sha256Hasher.SumBase32()

	if jadeutil.Exists(filepath.Join(store.Root, der.Signature(), "artifact")) {
		return nil
	}
	_, err = der.InstallToStore(store.Root, path)
	return err
}
