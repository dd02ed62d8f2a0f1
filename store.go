// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

package jade

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/log"
	"zombiezen.com/go/xcontext"

	"github.com/Nimrodium/jade/internal/jadeerr"
	"github.com/Nimrodium/jade/internal/jadeutil"
)

// defaultMaxParallelRealize bounds the worker fan-out in RealizeAll. §5
// leaves the cap to the implementer; 8 matches the source's own example
// figure.
const defaultMaxParallelRealize = 8

// Store is the content-addressed root described in the data model: an
// immutable-after-construction handle to a store directory and a staging
// directory, freely shared across goroutines (§5, "Shared state").
type Store struct {
	Root        string
	StagingRoot string
	// MaxParallel bounds concurrent realize workers in RealizeAll. Zero
	// means defaultMaxParallelRealize.
	MaxParallel int
}

// NewStore constructs a Store rooted at root, with staging at stagingRoot.
// Neither directory needs to exist yet; realize creates them lazily.
func NewStore(root, stagingRoot string) *Store {
	return &Store{Root: root, StagingRoot: stagingRoot}
}

func (s *Store) maxParallel() int {
	if s.MaxParallel > 0 {
		return s.MaxParallel
	}
	return defaultMaxParallelRealize
}

// sigPath returns {store}/{sig} for an already-hashed derivation.
func (s *Store) sigPath(d *Derivation) string {
	return filepath.Join(s.Root, d.Signature())
}

// has reports whether d (already hashed) has a committed store entry.
func (s *Store) has(d *Derivation) bool {
	return jadeutil.Exists(filepath.Join(s.sigPath(d), "artifact"))
}

// Realize implements C4's realize(derivation): cache hit on a verified,
// already-hashed derivation; otherwise download, verify/fill hash,
// optionally extract, and commit. It mutates d.Hash in place when the
// derivation arrives unhashed (the caller is expected to WriteBack
// afterward if persistence is desired).
func (s *Store) Realize(ctx context.Context, d *Derivation) (*StorePath, error) {
	// Tie-break per §4.3: hash-missing wins over already-in-store, since an
	// unhashed derivation has never been verified against store contents.
	if d.Hash != "" && s.has(d) {
		log.Debugf(ctx, "realize %s: cache hit", d.Name)
		return &StorePath{Path: s.sigPath(d), Name: d.FileName, Hash: d.Hash}, nil
	}
	return s.realize(ctx, d)
}

func (s *Store) realize(ctx context.Context, d *Derivation) (sp *StorePath, err error) {
	stagingDir := filepath.Join(s.StagingRoot, uuid.NewString())
	if err := jadeutil.MkdirAllPerm(stagingDir, 0o755); err != nil {
		return nil, jadeerr.Wrapf(jadeerr.IOFailure, err, "realize %s", d.Name)
	}
	defer func() {
		// Best-effort cleanup runs even when a sibling worker's failure has
		// cancelled the group context (§5, resource scoping): os.RemoveAll
		// does not observe ctx, and the detached context only carries the
		// debug log of a failed removal.
		cleanupCtx := xcontext.Detach(ctx)
		if err := os.RemoveAll(stagingDir); err != nil {
			log.Debugf(cleanupCtx, "realize %s: cleanup staging dir: %v", d.Name, err)
		}
	}()

	path, err := d.download(ctx, stagingDir, defaultHTTPClient)
	if err != nil {
		return nil, err
	}

	if d.Extract {
		extractedDir, err := d.ExtractPackage(ctx, path)
		if err != nil {
			return nil, err
		}
		os.Remove(path)
		path = extractedDir
	}

	return d.InstallToStore(s.Root, path)
}

// realizeResult carries one worker's outcome (the derivation and its
// StorePath) back to the collector. Results carry no input index: output
// order is unspecified per §4.3, so callers needing stable output sort by
// name afterward.
type realizeResult struct {
	derivation *Derivation
	storePath  *StorePath
}

// RealizeAll implements the bounded parallel worker fan-out described in
// §4.3/§5: already-present derivations short-circuit on the caller
// goroutine in a pre-scan pass; the rest are dispatched to a bounded
// errgroup. The first worker error is returned; others are best-effort
// drained (errgroup cancels their context but does not force a return).
func (s *Store) RealizeAll(ctx context.Context, derivations []*Derivation) ([]*StorePath, error) {
	results := make([]realizeResult, 0, len(derivations))
	var toRealize []*Derivation

	for _, d := range derivations {
		if d.Hash != "" && s.has(d) {
			results = append(results, realizeResult{d, &StorePath{Path: s.sigPath(d), Name: d.FileName, Hash: d.Hash}})
			continue
		}
		toRealize = append(toRealize, d)
	}

	if len(toRealize) == 0 {
		return collectStorePaths(results), nil
	}

	resultCh := make(chan realizeResult, len(toRealize))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel())

	for _, d := range toRealize {
		d := d
		g.Go(func() error {
			sp, err := s.realize(gctx, d)
			if err != nil {
				return err
			}
			resultCh <- realizeResult{d, sp}
			return nil
		})
	}

	err := g.Wait()
	close(resultCh)
	for r := range resultCh {
		results = append(results, r)
	}
	if err != nil {
		return collectStorePaths(results), err
	}
	return collectStorePaths(results), nil
}

// RealizeAllSequential provides the same contract as RealizeAll without
// concurrency, useful for debugging races or deterministic test traces
// per §4.3's explicit serial-fallback requirement.
func (s *Store) RealizeAllSequential(ctx context.Context, derivations []*Derivation) ([]*StorePath, error) {
	var paths []*StorePath
	for _, d := range derivations {
		sp, err := s.Realize(ctx, d)
		if err != nil {
			return paths, err
		}
		paths = append(paths, sp)
	}
	return paths, nil
}

func collectStorePaths(results []realizeResult) []*StorePath {
	paths := make([]*StorePath, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.storePath)
	}
	return paths
}
