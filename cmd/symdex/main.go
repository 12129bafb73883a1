package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/symdex"
	"github.com/jward/symdex/internal/config"
	"github.com/jward/symdex/scripts"
)

var (
	flagConfig  string
	flagDB      string
	flagFormat  string
	flagVerbose bool

	flagClasspath      []string
	flagBundledScripts bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// logger is built in PersistentPreRunE from --verbose.
var logger = slog.New(slog.DiscardHandler)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "symdex",
	Short:         "Symbol index for Kotlin and Java projects",
	Long:          "Symdex indexes Kotlin and Java sources, dependency jars and a stdlib snapshot, and answers symbol lookups over them.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(flagVerbose)
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: nearest .symdex.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", `cache database path, "-" disables the cache (default: .symdex.db next to the config)`)
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")
	rootCmd.PersistentFlags().StringSliceVar(&flagClasspath, "classpath", nil, "extra jar, aar or class-directory inputs")
	rootCmd.PersistentFlags().BoolVar(&flagBundledScripts, "bundled-scripts", false, "extract sources with the bundled Risor scripts")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(watchCmd)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index sources and the classpath",
	Long:  "Walks the source roots (or path) for .kt, .kts and .java files, indexes the configured classpath and reports what changed since the cached run.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

// IndexReport is the result of the index command.
type IndexReport struct {
	Classpath symdex.ClasspathStats `json:"classpath"`
	Sources   symdex.SourceStats    `json:"sources"`
	Totals    symdex.Stats          `json:"totals"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	cfg, err := loadConfig()
	if err != nil {
		return outputError("index", err)
	}
	roots := cfg.SourcePaths()
	if len(args) > 0 {
		roots = args
	}

	s, err := openSession(cfg)
	if err != nil {
		return outputError("index", err)
	}
	defer s.Close()

	ctx := context.Background()
	report, timings, err := loadProject(ctx, s, cfg, roots)
	if err != nil {
		return outputError("index", err)
	}
	report.Totals = s.Stats()

	fmt.Fprintf(os.Stderr, "Indexed %d files in %s (classpath: %s, sources: %s)\n",
		report.Totals.Files,
		time.Since(start).Round(time.Millisecond),
		timings.classpath.Round(time.Millisecond),
		timings.sources.Round(time.Millisecond),
	)
	if db := cfg.DBPath(); db != "" {
		fmt.Fprintf(os.Stderr, "Database: %s\n", db)
	}
	return outputResult(CLIResult{Command: "index", Results: report})
}

// =============================================================================
// Project setup shared by every command
// =============================================================================

// loadConfig reads --config, or the nearest .symdex.yaml, or the defaults
// rooted at the working directory. --db overrides the file.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	return resolveConfig(cwd, flagConfig, flagDB)
}

func resolveConfig(cwd, configPath, dbOverride string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case configPath != "":
		cfg, err = config.Load(configPath)
	default:
		var found string
		found, err = config.Find(cwd)
		if err != nil {
			return nil, err
		}
		if found != "" {
			cfg, err = config.Load(found)
		} else {
			cfg = config.Default()
			cfg.Dir = cwd
		}
	}
	if err != nil {
		return nil, err
	}
	switch {
	case dbOverride == "-":
		cfg.DB = "-"
	case dbOverride != "":
		abs, err := filepath.Abs(dbOverride)
		if err != nil {
			return nil, fmt.Errorf("resolving --db %q: %w", dbOverride, err)
		}
		cfg.DB = abs
	}
	return cfg, nil
}

// openSession creates a Session configured from cfg.
func openSession(cfg *config.Config) (*symdex.Session, error) {
	opts := []symdex.Option{
		symdex.WithLogger(logger),
		symdex.WithWorkers(cfg.Workers),
		symdex.WithExclude(cfg.Excluded),
	}
	if db := cfg.DBPath(); db != "" {
		if err := os.MkdirAll(filepath.Dir(db), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(db), err)
		}
		opts = append(opts, symdex.WithStore(db))
	}
	if cfg.Script != "" {
		opts = append(opts, symdex.WithScript(cfg.Resolve(cfg.Script)))
	}
	if flagBundledScripts {
		opts = append(opts, symdex.WithScriptsFS(scripts.FS))
	}
	return symdex.New(opts...)
}

type loadTimings struct {
	classpath time.Duration
	sources   time.Duration
}

// loadProject attaches the stdlib and classpath from cfg and indexes the
// source roots. With no roots only the dependencies are loaded.
func loadProject(ctx context.Context, s *symdex.Session, cfg *config.Config, roots []string) (IndexReport, loadTimings, error) {
	var (
		report  IndexReport
		timings loadTimings
	)
	if cfg.Stdlib != "" {
		if err := s.LoadStdlib(cfg.Resolve(cfg.Stdlib)); err != nil {
			return report, timings, err
		}
	} else {
		s.UseMinimalStdlib()
	}

	start := time.Now()
	archives, snapshots := splitClasspath(append(cfg.ClasspathPaths(), flagClasspath...))
	for _, p := range snapshots {
		if err := loadClasspathSnapshot(s, p); err != nil {
			return report, timings, err
		}
	}
	stats, err := s.LoadClasspath(ctx, archives)
	if err != nil {
		return report, timings, err
	}
	report.Classpath = stats
	timings.classpath = time.Since(start)

	if len(roots) == 0 {
		return report, timings, nil
	}
	start = time.Now()
	sources, err := s.IndexSources(ctx, roots)
	report.Sources = sources
	timings.sources = time.Since(start)
	if err != nil {
		// Per-file failures leave the rest of the index usable.
		logger.Warn("source indexing incomplete", "err", err)
	}
	return report, timings, ctx.Err()
}

// splitClasspath separates JSON classpath snapshots from archive inputs.
func splitClasspath(paths []string) (archives, snapshots []string) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".json") {
			snapshots = append(snapshots, p)
			continue
		}
		archives = append(archives, p)
	}
	return archives, snapshots
}

func loadClasspathSnapshot(s *symdex.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening classpath snapshot: %w", err)
	}
	defer f.Close()
	return s.LoadClasspathSnapshot(f)
}
