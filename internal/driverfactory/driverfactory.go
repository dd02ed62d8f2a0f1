// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

// Package driverfactory implements the tagged-variant dispatch over the
// closed set of registered registry drivers described in §9
// ("Dynamic registry selection"): add a driver by extending the switch
// in GetAPIDriver, not by dynamic plugin loading. It lives outside the
// root jade package because a driver implementation (internal/modrinth)
// necessarily imports jade's domain types, and jade must not import its
// own drivers back.
package driverfactory

import (
	jade "github.com/Nimrodium/jade"
	"github.com/Nimrodium/jade/internal/jadeerr"
	"github.com/Nimrodium/jade/internal/modrinth"
)

// GetAPIDriver constructs the named driver, decoding its sub-table out of
// manifest. name is matched against the closed set of implemented
// drivers; an unrecognized name is UnknownDriver.
func GetAPIDriver(name string, manifest *jade.Manifest) (jade.Driver, error) {
	switch name {
	case "modrinth":
		cfg, err := modrinth.ConfigFromMap(manifest.DriverConfig("modrinth"))
		if err != nil {
			return nil, err
		}
		return modrinth.New(cfg), nil
	default:
		return nil, jadeerr.New(jadeerr.UnknownDriver, "unknown registry driver %q", name)
	}
}
