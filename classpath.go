package symdex

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/symdex/internal/store"
)

// ClasspathStats reports what one LoadClasspath call did.
type ClasspathStats struct {
	Archives int `json:"archives"` // inputs not seen before this call
	Cached   int `json:"cached"`   // loaded from the cache without parsing
	Scanned  int `json:"scanned"`
	Failed   int `json:"failed"`
	Symbols  int `json:"symbols"` // symbols added to the classpath index
	Pruned   int `json:"pruned"`  // cache entries dropped
}

// LoadClasspath adds the jar, aar and class-directory inputs in paths to
// the classpath index. Inputs already seen are skipped. With a cache,
// inputs whose content hash matches the cached one are loaded without
// parsing, fresh scans are committed in one transaction, and cache entries
// for inputs no longer on the classpath are pruned.
//
// A corrupt or missing input is logged and skipped; it never fails the
// call. The only errors are cache failures and ctx cancellation.
func (s *Session) LoadClasspath(ctx context.Context, paths []string) (ClasspathStats, error) {
	start := time.Now()
	cp := s.project.Classpath()
	if s.store == nil {
		before := cp.Size()
		s.indexer.IndexIncremental(ctx, paths, cp)
		return ClasspathStats{Symbols: cp.Size() - before}, ctx.Err()
	}

	var (
		stats   ClasspathStats
		pending []string
		hashes  = make(map[string]string)
	)
	for _, p := range paths {
		abs := absPath(p)
		if cp.HasSeen(abs) || hashes[abs] != "" {
			continue
		}
		stats.Archives++
		hash, err := store.HashFile(abs)
		if err != nil {
			s.logger.Warn("skipping classpath input", "archive", abs, "err", err)
			stats.Failed++
			continue
		}
		hashes[abs] = hash

		cached, err := s.store.ArchiveByPath(abs)
		if err != nil {
			return stats, fmt.Errorf("symdex: classpath cache: %w", err)
		}
		if cached == nil || cached.Hash != hash {
			pending = append(pending, abs)
			continue
		}
		syms, err := s.store.SymbolsForArchive(abs)
		if err != nil {
			return stats, fmt.Errorf("symdex: classpath cache: %w", err)
		}
		stats.Symbols += cp.AddAll(syms)
		cp.MarkSeen(abs)
		stats.Cached++
	}

	var records []store.ArchiveRecord
	for _, res := range s.indexer.Scan(ctx, pending) {
		if res.Err != nil {
			s.logger.Warn("skipping classpath input", "archive", res.Path, "err", res.Err)
			stats.Failed++
			continue
		}
		stats.Symbols += cp.AddAll(res.Symbols)
		cp.MarkSeen(res.Path)
		stats.Scanned++
		records = append(records, store.ArchiveRecord{Path: res.Path, Hash: hashes[res.Path], Symbols: res.Symbols})
	}
	if len(records) > 0 {
		if err := s.store.CommitArchives(records); err != nil {
			return stats, fmt.Errorf("symdex: classpath cache: %w", err)
		}
	}

	pruned, err := s.store.PruneArchives(cp.SeenSources())
	if err != nil {
		return stats, fmt.Errorf("symdex: classpath cache: %w", err)
	}
	stats.Pruned = pruned

	s.logger.Info("classpath loaded",
		"archives", stats.Archives, "cached", stats.Cached, "scanned", stats.Scanned,
		"failed", stats.Failed, "symbols", stats.Symbols, "elapsed", time.Since(start))
	return stats, ctx.Err()
}
