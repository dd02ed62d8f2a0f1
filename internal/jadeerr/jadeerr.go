// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

// Package jadeerr defines the error kinds used across jade's core, in the
// style of the teacher's internal/jsonrpc package: a closed set of Kind
// values, a wrapping constructor, and a lookup function that walks the
// Unwrap chain with errors.As so callers (including the top-level CLI
// handler) can branch on what went wrong without string-matching.
package jadeerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of failure a jade operation can report, per
// the error handling design's list of conditions.
type Kind int

const (
	// ParseFailure indicates malformed TOML or a missing required field.
	ParseFailure Kind = iota + 1
	// IOFailure indicates an unrecoverable filesystem error.
	IOFailure
	// NetworkFailure indicates a transport error or non-2xx response.
	NetworkFailure
	// HashMismatch indicates an expected vs. actual digest disagreement.
	HashMismatch
	// UnknownDriver indicates a registry name with no registered driver.
	UnknownDriver
	// DriverConfig indicates a required driver sub-table key is missing or
	// of the wrong type.
	DriverConfig
	// ResolutionEmpty indicates a driver found no version for a
	// loader/game-version filter.
	ResolutionEmpty
	// DependencyMissing indicates a depends name unresolved in a
	// DerivationSet: a warning at compose time, fatal at install time.
	DependencyMissing
	// DeployLink indicates a symlink failed, typically because of missing
	// privileges on Windows.
	DeployLink
	// NotFound indicates a fuzzy name lookup matched nothing.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case ParseFailure:
		return "parse failure"
	case IOFailure:
		return "I/O failure"
	case NetworkFailure:
		return "network failure"
	case HashMismatch:
		return "hash mismatch"
	case UnknownDriver:
		return "unknown driver"
	case DriverConfig:
		return "driver config error"
	case ResolutionEmpty:
		return "resolution empty"
	case DependencyMissing:
		return "dependency missing"
	case DeployLink:
		return "deploy link failed"
	case NotFound:
		return "not found"
	default:
		return "unknown error"
	}
}

// kindError is the concrete error type returned by [New] and [Wrap].
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New returns a new error of the given kind with the given message.
func New(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Wrap returns a new error of the given kind that wraps err. Wrap panics
// if err is nil, mirroring the teacher's jsonrpc.Error.
func Wrap(kind Kind, err error) error {
	if err == nil {
		panic("jadeerr.Wrap called with nil error")
	}
	return &kindError{kind: kind, err: err}
}

// Wrapf is Wrap with a format string prepended to err's message.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		panic("jadeerr.Wrapf called with nil error")
	}
	return &kindError{kind: kind, err: fmt.Errorf(format+": %w", append(args, err)...)}
}

// KindOf returns the Kind attached to err by New, Wrap, or Wrapf, walking
// err's Unwrap chain. ok is false if no jade error kind is present.
func KindOf(err error) (kind Kind, ok bool) {
	if err == nil {
		return 0, false
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind, true
	}
	return 0, false
}

// Is reports whether err's Kind, per KindOf, equals kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
