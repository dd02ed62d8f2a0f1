// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package jade

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/Nimrodium/jade/internal/jadeerr"
)

// Manifest is the external-interface view of a loaded manifest.jade.toml,
// per C6. APIConfig is free-form per driver: each driver interprets its
// own sub-table (e.g. "modrinth") however it needs.
type Manifest struct {
	Name         string
	PackVersion  string
	DerivesDir   string
	RegistryName string
	EnableAll    bool
	Target       string
	// EnabledTags/DisabledTags drive DerivationSet.FilterByTags at compose
	// time; ExclusiveTags mirrors the original preprocessor's "exclusive"
	// flag.
	EnabledTags   []string
	DisabledTags  []string
	ExclusiveTags bool

	// APIConfig holds the raw decoded driver sub-tables (e.g. "modrinth"),
	// keyed by driver name, for a driver factory to re-decode as needed.
	APIConfig map[string]map[string]any
}

// manifestRecord is the on-disk TOML shape. The [main] table holds the
// fields every manifest shares; any other top-level table is a
// driver-specific sub-table collected into APIConfig.
type manifestRecord struct {
	Main struct {
		Name          string   `toml:"name"`
		PackVersion   string   `toml:"pack_version"`
		Derives       string   `toml:"derives,omitempty"`
		API           string   `toml:"api,omitempty"`
		Target        string   `toml:"target,omitempty"`
		EnableAll     bool     `toml:"enable_all,omitempty"`
		EnabledTags   []string `toml:"enabled_tags,omitempty"`
		DisabledTags  []string `toml:"disabled_tags,omitempty"`
		ExclusiveTags bool     `toml:"exclusive_tags,omitempty"`
	} `toml:"main"`
}

// LoadManifest reads and parses a manifest file from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, jadeerr.Wrapf(jadeerr.IOFailure, err, "load manifest %s", path)
	}
	return parseManifest(path, data)
}

func parseManifest(path string, data []byte) (*Manifest, error) {
	var rec manifestRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, jadeerr.Wrapf(jadeerr.ParseFailure, err, "parse manifest %s", path)
	}
	if rec.Main.Name == "" {
		return nil, jadeerr.New(jadeerr.ParseFailure, "parse manifest %s: missing required field `main.name`", path)
	}
	if rec.Main.PackVersion == "" {
		return nil, jadeerr.New(jadeerr.ParseFailure, "parse manifest %s: missing required field `main.pack_version`", path)
	}

	// The sub-tables (anything besides [main]) are driver configuration,
	// decoded generically so new drivers need no change here.
	var raw map[string]map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, jadeerr.Wrapf(jadeerr.ParseFailure, err, "parse manifest %s", path)
	}
	delete(raw, "main")

	return &Manifest{
		Name:          rec.Main.Name,
		PackVersion:   rec.Main.PackVersion,
		DerivesDir:    rec.Main.Derives,
		RegistryName:  rec.Main.API,
		EnableAll:     rec.Main.EnableAll,
		Target:        rec.Main.Target,
		EnabledTags:   rec.Main.EnabledTags,
		DisabledTags:  rec.Main.DisabledTags,
		ExclusiveTags: rec.Main.ExclusiveTags,
		APIConfig:     raw,
	}, nil
}

// DriverConfig returns the free-form sub-table for the given driver name,
// or nil if the manifest carries none. Drivers decode this further via
// their own config struct (see internal/modrinth.Config).
func (m *Manifest) DriverConfig(name string) map[string]any {
	return m.APIConfig[name]
}
