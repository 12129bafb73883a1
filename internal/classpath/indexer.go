// Package classpath indexes compiled dependencies (jar, aar and class
// directories) into an index.ClasspathIndex.
package classpath

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/symdex/internal/index"
)

// ErrUnsupportedInput is returned for paths that are neither a .jar, an
// .aar nor a directory.
var ErrUnsupportedInput = errors.New("classpath: unsupported input")

// excludedPrefixes are JDK namespaces never indexed.
var excludedPrefixes = []string{"java.", "javax.", "sun.", "com.sun."}

// Indexer scans dependency archives. It holds no mutable state, so one
// Indexer can serve concurrent scans.
type Indexer struct {
	logger  *slog.Logger
	workers int
	tempDir string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger used for skipped entries and archives.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithWorkers bounds the number of archives scanned at once.
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithTempDir sets where an aar's classes.jar is extracted.
func WithTempDir(dir string) Option {
	return func(ix *Indexer) { ix.tempDir = dir }
}

// New returns an Indexer.
func New(opts ...Option) *Indexer {
	ix := &Indexer{
		logger:  slog.New(slog.DiscardHandler),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// ArchiveResult is the outcome of scanning one input.
type ArchiveResult struct {
	Path    string // absolute; the seen-source key
	Symbols []*index.Symbol
	Err     error
}

// Index scans paths into a fresh ClasspathIndex.
func (ix *Indexer) Index(ctx context.Context, paths []string) *index.ClasspathIndex {
	return ix.IndexIncremental(ctx, paths, index.NewClasspathIndex())
}

// IndexIncremental scans the inputs existing has not seen yet and adds
// their symbols to it. Failed inputs are logged and left unseen so a later
// call retries them. It returns existing.
func (ix *Indexer) IndexIncremental(ctx context.Context, paths []string, existing *index.ClasspathIndex) *index.ClasspathIndex {
	start := time.Now()
	var pending []string
	queued := make(map[string]bool)
	for _, p := range paths {
		abs := absPath(p)
		if existing.HasSeen(abs) || queued[abs] {
			continue
		}
		queued[abs] = true
		pending = append(pending, abs)
	}
	if len(pending) == 0 {
		return existing
	}

	added := 0
	for _, res := range ix.Scan(ctx, pending) {
		if res.Err != nil {
			ix.logger.Warn("skipping classpath input", "archive", res.Path, "err", res.Err)
			continue
		}
		added += existing.AddAll(res.Symbols)
		existing.MarkSeen(res.Path)
	}
	ix.logger.Info("classpath indexed",
		"archives", len(pending), "symbols", added, "elapsed", time.Since(start))
	return existing
}

// Scan indexes each path in parallel and returns one result per path in
// input order. Workers only build local symbol slices; merging is left to
// the caller. Once ctx is done, inputs not yet started report ctx.Err().
func (ix *Indexer) Scan(ctx context.Context, paths []string) []ArchiveResult {
	results := make([]ArchiveResult, len(paths))
	var g errgroup.Group
	g.SetLimit(ix.workers)
	for i, p := range paths {
		results[i].Path = absPath(p)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Symbols, results[i].Err = ix.IndexArchive(results[i].Path)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// IndexArchive indexes a single jar, aar or class directory. Symbols carry
// path as their FilePath.
func (ix *Indexer) IndexArchive(path string) ([]*index.Symbol, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: stat %s: %w", path, err)
	}
	switch {
	case fi.IsDir():
		return ix.indexDirectory(path)
	case strings.HasSuffix(path, ".jar"):
		return ix.indexJar(path, path)
	case strings.HasSuffix(path, ".aar"):
		return ix.indexAar(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, path)
}

func (ix *Indexer) indexJar(jarPath, source string) ([]*index.Symbol, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, fmt.Errorf("classpath: open jar %s: %w", source, err)
	}
	defer r.Close()

	var syms []*index.Symbol
	for _, f := range r.File {
		className, ok := classNameForEntry(f.Name)
		if !ok || !ShouldIndex(className) {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			ix.logger.Debug("skipping jar entry", "archive", source, "entry", f.Name, "err", err)
			continue
		}
		syms = append(syms, SymbolsForClass(className, source, data)...)
	}
	return syms, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// indexAar extracts classes.jar to a temporary file, indexes it and always
// removes the file. An aar without classes.jar has no symbols.
func (ix *Indexer) indexAar(aarPath string) ([]*index.Symbol, error) {
	r, err := zip.OpenReader(aarPath)
	if err != nil {
		return nil, fmt.Errorf("classpath: open aar %s: %w", aarPath, err)
	}
	defer r.Close()

	var classesJar *zip.File
	for _, f := range r.File {
		if f.Name == "classes.jar" {
			classesJar = f
			break
		}
	}
	if classesJar == nil {
		return nil, nil
	}

	tmp, err := os.CreateTemp(ix.tempDir, "symdex-classes-*.jar")
	if err != nil {
		return nil, fmt.Errorf("classpath: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := copyEntry(tmp, classesJar); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("classpath: extract classes.jar from %s: %w", aarPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("classpath: extract classes.jar from %s: %w", aarPath, err)
	}
	return ix.indexJar(tmp.Name(), aarPath)
}

func copyEntry(w io.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

func (ix *Indexer) indexDirectory(root string) ([]*index.Symbol, error) {
	var syms []*index.Symbol
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			ix.logger.Debug("skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		className, ok := classNameForEntry(filepath.ToSlash(rel))
		if !ok || !ShouldIndex(className) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			ix.logger.Debug("skipping class file", "path", path, "err", err)
			return nil
		}
		syms = append(syms, SymbolsForClass(className, root, data)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("classpath: walk %s: %w", root, err)
	}
	return syms, nil
}

// classNameForEntry maps "kotlin/collections/List.class" to
// "kotlin.collections.List". Nested and synthetic classes (a "$" in the
// name), metadata entries and non-class files are rejected.
func classNameForEntry(name string) (string, bool) {
	if !strings.HasSuffix(name, ".class") || strings.Contains(name, "$") {
		return "", false
	}
	if strings.HasPrefix(name, "META-INF/") {
		return "", false
	}
	base := strings.TrimSuffix(name, ".class")
	if strings.HasSuffix(base, "module-info") || strings.HasSuffix(base, "package-info") {
		return "", false
	}
	return strings.ReplaceAll(base, "/", "."), true
}

// ShouldIndex reports whether className is outside the JDK namespaces and
// not in an internal or impl package.
func ShouldIndex(className string) bool {
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(className, p) {
			return false
		}
	}
	return !strings.Contains(className, ".internal.") && !strings.Contains(className, ".impl.")
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
