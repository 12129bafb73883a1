package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/symdex"
	"github.com/jward/symdex/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index, then keep the index current as files change",
	Long:  "Indexes the project, then watches the source roots and re-indexes changed files after a debounce. Stops on interrupt.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputError("watch", err)
	}
	roots := cfg.SourcePaths()
	if len(args) > 0 {
		roots = args
	}

	s, err := openSession(cfg)
	if err != nil {
		return outputError("watch", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if _, _, err := loadProject(ctx, s, cfg, roots); err != nil {
		return outputError("watch", err)
	}
	fmt.Fprintf(os.Stderr, "Indexed %d files in %s\n", s.Stats().Files, time.Since(start).Round(time.Millisecond))

	w, err := watch.New(
		watch.WithDebounce(cfg.Watch.Debounce),
		watch.WithLogger(logger),
		watch.WithMatch(s.IsSource),
		watch.WithSkipDir(s.SkipDir),
	)
	if err != nil {
		return outputError("watch", err)
	}
	defer w.Close()
	for _, r := range roots {
		if err := w.Add(absPath(r)); err != nil {
			return outputError("watch", err)
		}
	}
	fmt.Fprintf(os.Stderr, "Watching %d directories\n", len(w.WatchList()))

	err = w.Run(ctx, applyBatch(s))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyBatch returns the watch handler that feeds batches to the Session
// and reports each update on stderr.
func applyBatch(s *symdex.Session) watch.Handler {
	return func(ctx context.Context, b watch.Batch) error {
		start := time.Now()
		stats, err := s.UpdateFiles(ctx, b.Changed, b.Removed)
		fmt.Fprintf(os.Stderr, "Updated %d, removed %d, invalidated %d in %s\n",
			stats.Parsed+stats.Cached, stats.Removed, len(stats.Invalidated),
			time.Since(start).Round(time.Millisecond))
		for _, f := range stats.Invalidated {
			logger.Debug("invalidated", "path", f)
		}
		return err
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
