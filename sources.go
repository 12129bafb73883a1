package symdex

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	symrt "github.com/jward/symdex/internal/runtime"
	"github.com/jward/symdex/internal/store"
)

// skipDirs are build and tooling directories never walked for sources.
var skipDirs = map[string]bool{
	"build":        true,
	"out":          true,
	"node_modules": true,
}

// SourceStats reports what one IndexSources call did.
type SourceStats struct {
	Files       int      `json:"files"`
	Parsed      int      `json:"parsed"`
	Cached      int      `json:"cached"`
	Unchanged   int      `json:"unchanged"`
	Removed     int      `json:"removed"`
	Invalidated []string `json:"invalidated,omitempty"`
}

// parsed holds one file's phase B result.
type parsed struct {
	path      string
	hash      string
	table     SymbolTable
	cached    bool
	unchanged bool
	err       error
}

// IndexSources walks roots for .kt, .kts and .java files and publishes
// them in three phases:
//
//	Phase A (serial):   Discover files.
//	Phase B (parallel): Read, hash and parse, reusing cached tables for
//	                    unchanged content.
//	Phase C (serial):   Publish to the index, update the cache, collect
//	                    files to invalidate.
//
// Indexed files under roots that no longer exist are removed. Per-file
// errors are collected and do not stop the other files.
func (s *Session) IndexSources(ctx context.Context, roots []string) (SourceStats, error) {
	start := time.Now()

	// ---- Phase A ----
	var paths []string
	for _, root := range roots {
		found, err := s.listSources(root)
		if err != nil {
			return SourceStats{}, fmt.Errorf("symdex: %w", err)
		}
		paths = append(paths, found...)
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)

	// ---- Phase B ----
	known := s.contentHashes()
	results := make([]parsed, len(paths))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, p := range paths {
		g.Go(func() error {
			results[i] = s.parseSource(ctx, p, known[p])
			return nil
		})
	}
	_ = g.Wait()

	// ---- Phase C ----
	stats := SourceStats{Files: len(paths)}
	invalid := make(map[string]bool)
	var errs []error
	for _, res := range results {
		if err := s.publish(res, &stats, invalid); err != nil {
			errs = append(errs, err)
		}
	}

	// Files that disappeared from under the roots.
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}
	for _, p := range s.project.Files() {
		if seen[p] || !underAny(p, roots) {
			continue
		}
		for _, f := range s.RemoveFile(p) {
			invalid[f] = true
		}
		stats.Removed++
	}

	for f := range invalid {
		if s.project.File(f) != nil {
			stats.Invalidated = append(stats.Invalidated, f)
		}
	}
	slices.Sort(stats.Invalidated)

	s.logger.Info("sources indexed",
		"files", stats.Files, "parsed", stats.Parsed, "cached", stats.Cached,
		"removed", stats.Removed, "elapsed", time.Since(start))

	if len(errs) > 0 {
		return stats, fmt.Errorf("symdex: indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, ctx.Err()
}

// UpdateFiles re-indexes changed files and drops removed ones, as reported
// by a file watcher. Paths are made absolute to match IndexSources. Changed
// files with an unchanged content hash are skipped.
func (s *Session) UpdateFiles(ctx context.Context, changed, removed []string) (SourceStats, error) {
	var stats SourceStats
	invalid := make(map[string]bool)
	known := s.contentHashes()
	var errs []error
	for _, p := range changed {
		if !s.IsSource(p) {
			continue
		}
		p = absPath(p)
		stats.Files++
		if err := s.publish(s.parseSource(ctx, p, known[p]), &stats, invalid); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range removed {
		p = absPath(p)
		if s.project.File(p) == nil {
			continue
		}
		for _, f := range s.RemoveFile(p) {
			invalid[f] = true
		}
		stats.Removed++
	}
	for f := range invalid {
		if s.project.File(f) != nil {
			stats.Invalidated = append(stats.Invalidated, f)
		}
	}
	slices.Sort(stats.Invalidated)
	if len(errs) > 0 {
		return stats, fmt.Errorf("symdex: update had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

// publish is the phase C work for one file.
func (s *Session) publish(res parsed, stats *SourceStats, invalid map[string]bool) error {
	if res.err != nil {
		return fmt.Errorf("index %s: %w", res.path, res.err)
	}
	if res.unchanged {
		stats.Unchanged++
		return nil
	}
	for _, f := range s.AnalyzeFile(res.path, res.table, importDependencies(res.table)) {
		invalid[f] = true
	}
	s.setContentHash(res.path, res.hash)
	if res.cached {
		stats.Cached++
		return nil
	}
	stats.Parsed++
	if s.store == nil {
		return nil
	}
	if err := s.store.UpsertFile(res.hash, res.table); err != nil {
		return fmt.Errorf("cache %s: %w", res.path, err)
	}
	return nil
}

// parseSource is the phase B work for one file. knownHash is the content
// hash the file was last published with, if any.
func (s *Session) parseSource(ctx context.Context, path, knownHash string) parsed {
	if err := ctx.Err(); err != nil {
		return parsed{path: path, err: err}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return parsed{path: path, err: fmt.Errorf("read file: %w", err)}
	}
	res := parsed{path: path, hash: store.HashBytes(content)}
	if res.hash == knownHash {
		res.unchanged = true
		return res
	}

	if s.store != nil {
		cached, err := s.store.FileByPath(path)
		if err != nil {
			s.logger.Debug("ignoring unreadable cache entry", "path", path, "err", err)
		} else if cached != nil && cached.Hash == res.hash {
			res.table = cached.Table
			res.cached = true
			return res
		}
	}

	res.table, res.err = s.extract(ctx, path, content)
	return res
}

// listSources walks root and returns absolute paths of source files. A
// root that is itself a source file is returned as is.
func (s *Session) listSources(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	var paths []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != abs && s.SkipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if symrt.IsSourceFile(path) && !s.exclude(name) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

// SkipDir reports whether IndexSources would skip a directory named name.
func (s *Session) SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name] || s.exclude(name)
}

// IsSource reports whether IndexSources would pick up path.
func (s *Session) IsSource(path string) bool {
	return symrt.IsSourceFile(path) && !s.exclude(filepath.Base(path))
}

// contentHashes copies the content hash of every file IndexSources
// published.
func (s *Session) contentHashes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.sourceHashes)
}

func (s *Session) setContentHash(path, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceHashes[path] = hash
}

func underAny(path string, roots []string) bool {
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		if path == abs || strings.HasPrefix(path, abs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
