// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

// Package jadehash computes and formats the content hashes jade uses to
// address store entries, and normalizes derivation names into the
// canonical identifier form the rest of the package uses everywhere
// outside of display.
//
// Store signatures are "{hash}-{name}" where hash is a SHA-256 digest
// rendered in Nix-compatible base32, grounded on the teacher's own
// zbstore/ca.go and internal/storepath packages, which lean on
// zombiezen.com/go/nix/nixbase32 for the same encoding.
package jadehash

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"strings"

	"zombiezen.com/go/nix/nixbase32"
)

// Hasher accumulates bytes and reports their SHA-256 digest
// in Nix-base32 form. The zero value is ready to use.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a ready-to-use Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Write implements io.Writer.
func (hr *Hasher) Write(p []byte) (int, error) {
	if hr.h == nil {
		hr.h = sha256.New()
	}
	return hr.h.Write(p)
}

// SumBase32 returns the accumulated digest encoded in Nix-base32.
func (hr *Hasher) SumBase32() string {
	if hr.h == nil {
		hr.h = sha256.New()
	}
	return nixbase32.EncodeToString(hr.h.Sum(nil))
}

// SHA256Base32 copies r into a SHA-256 digest and returns the digest
// encoded in Nix-base32 form.
func SHA256Base32(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash stream: %w", err)
	}
	return nixbase32.EncodeToString(h.Sum(nil)), nil
}

// Signature implements I2: "{hash}-{name}", the store directory basename
// for a realized derivation.
func Signature(hash, name string) string {
	return hash + "-" + name
}

// Normalize reduces s to its canonical derivation-name form: lowercase
// ASCII alphanumerics only, per I5. Normalize is idempotent
// (Normalize(Normalize(s)) == Normalize(s)) and is the only function
// that should be used to compare or index derivation names outside of
// display.
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(r - 'A' + 'a')
		}
	}
	return sb.String()
}

// NameFromURL derives a fallback name from the last path segment of a URL,
// used when a derivation record omits both name and file_name.
func NameFromURL(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}
