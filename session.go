package symdex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/jward/symdex/internal/classpath"
	"github.com/jward/symdex/internal/index"
	symrt "github.com/jward/symdex/internal/runtime"
	"github.com/jward/symdex/internal/store"
)

// builtinExtractor identifies cached symbol tables produced by the
// built-in extractors. Bump it when their output changes.
const builtinExtractor = "builtin-1"

// Session owns one project's index: the ProjectIndex, its dependency
// tracker, the classpath indexer, the source runtime and the optional
// SQLite cache. Reads go straight to Index(); writes go through the
// Session so dependency edges stay in step with the published files.
type Session struct {
	logger  *slog.Logger
	dbPath  string
	workers int
	script  string
	scripts fs.FS
	exclude func(name string) bool

	project *index.ProjectIndex
	deps    *index.DependencyTracker
	indexer *classpath.Indexer
	runtime *symrt.Runtime
	store   *store.Store

	// mu serializes writers. apiHashes holds the API hash of every
	// published file; sourceHashes the content hash of files IndexSources
	// published from disk.
	mu           sync.Mutex
	apiHashes    map[string]string
	sourceHashes map[string]string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger used by the Session and the
// components it creates.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithStore enables the SQLite cache at dbPath.
func WithStore(dbPath string) Option {
	return func(s *Session) { s.dbPath = dbPath }
}

// WithWorkers bounds classpath and source parallelism. n <= 0 means
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Session) { s.workers = n }
}

// WithScript replaces the built-in extractors with a Risor extraction
// script. Imports inside the script resolve against its directory.
func WithScript(path string) Option {
	return func(s *Session) { s.script = path }
}

// WithScriptsFS extracts each file with the Risor script extract/<lang>.risor
// from fsys, where lang is kotlin or java.
func WithScriptsFS(fsys fs.FS) Option {
	return func(s *Session) { s.scripts = fsys }
}

// WithExclude skips source files and directories whose base name fn
// accepts during IndexSources.
func WithExclude(fn func(name string) bool) Option {
	return func(s *Session) { s.exclude = fn }
}

// New creates a Session. The classpath starts empty and no stdlib is
// attached until one of the Load methods runs.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		logger:       slog.New(slog.DiscardHandler),
		exclude:      func(string) bool { return false },
		project:      index.NewProjectIndex(),
		deps:         index.NewDependencyTracker(),
		apiHashes:    make(map[string]string),
		sourceHashes: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers <= 0 {
		s.workers = runtime.NumCPU()
	}

	s.project.SetClasspath(index.NewClasspathIndex())
	s.indexer = classpath.New(classpath.WithLogger(s.logger), classpath.WithWorkers(s.workers))

	rtOpts := []symrt.RuntimeOption{symrt.WithRuntimeLogger(s.logger)}
	if s.script != "" && s.scripts != nil {
		return nil, fmt.Errorf("symdex: WithScript and WithScriptsFS cannot be combined")
	}
	if s.scripts != nil {
		rtOpts = append(rtOpts, symrt.WithRuntimeFS(s.scripts))
	}
	if s.script != "" {
		abs, err := filepath.Abs(s.script)
		if err != nil {
			return nil, fmt.Errorf("symdex: script path: %w", err)
		}
		s.script = abs
		rtOpts = append(rtOpts, symrt.WithScriptsDir(filepath.Dir(abs)))
	}
	s.runtime = symrt.NewRuntime(rtOpts...)

	if s.dbPath != "" {
		st, err := store.Open(s.dbPath)
		if err != nil {
			return nil, fmt.Errorf("symdex: open store: %w", err)
		}
		s.store = st
		if err := s.checkExtractor(); err != nil {
			st.Close()
			return nil, err
		}
	}
	return s, nil
}

// checkExtractor drops cached source tables produced by a different
// extractor than the one this Session runs.
func (s *Session) checkExtractor() error {
	current := builtinExtractor
	switch {
	case s.script != "":
		h, err := store.HashFile(s.script)
		if err != nil {
			return fmt.Errorf("symdex: hash script: %w", err)
		}
		current = "script-" + h
	case s.scripts != nil:
		h, err := hashFS(s.scripts)
		if err != nil {
			return fmt.Errorf("symdex: hash scripts: %w", err)
		}
		current = "scripts-" + h
	}
	stored, ok, err := s.store.GetMetadata("extractor")
	if err != nil {
		return fmt.Errorf("symdex: read metadata: %w", err)
	}
	if ok && stored == current {
		return nil
	}
	paths, err := s.store.FilePaths()
	if err != nil {
		return fmt.Errorf("symdex: list cached files: %w", err)
	}
	for _, p := range paths {
		if err := s.store.DeleteFile(p); err != nil {
			return fmt.Errorf("symdex: clear cached files: %w", err)
		}
	}
	if len(paths) > 0 {
		s.logger.Info("extractor changed, dropped cached sources", "files", len(paths))
	}
	if err := s.store.SetMetadata("extractor", current); err != nil {
		return fmt.Errorf("symdex: write metadata: %w", err)
	}
	return nil
}

// Close releases the cache.
func (s *Session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Index returns the project index, the query surface for callers.
func (s *Session) Index() *ProjectIndex { return s.project }

// Dependencies returns the file to symbol dependency tracker.
func (s *Session) Dependencies() *DependencyTracker { return s.deps }

// Store returns the cache, or nil when the Session runs without one.
func (s *Session) Store() *store.Store { return s.store }

// =============================================================================
// Standard library
// =============================================================================

// LoadStdlib reads a stdlib snapshot from path and attaches it.
func (s *Session) LoadStdlib(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("symdex: open stdlib: %w", err)
	}
	defer f.Close()
	return s.LoadStdlibSnapshot(f)
}

// LoadStdlibSnapshot reads a stdlib snapshot in either JSON shape and
// attaches it, replacing any previous stdlib.
func (s *Session) LoadStdlibSnapshot(r io.Reader) error {
	idx, err := index.LoadStdlib(r)
	if err != nil {
		return fmt.Errorf("symdex: load stdlib: %w", err)
	}
	s.project.SetStdlib(idx)
	s.logger.Info("stdlib loaded", "symbols", idx.Size())
	return nil
}

// UseMinimalStdlib attaches the built-in minimal stdlib.
func (s *Session) UseMinimalStdlib() {
	s.project.SetStdlib(index.MinimalStdlib())
}

// =============================================================================
// Project files
// =============================================================================

// AnalyzeFile publishes the symbol table of path and records that the file
// depends on deps (symbol fqNames). It returns the other files that must
// be re-analyzed: dependents of any symbol the file defined before or
// defines now. When the file's API hash is unchanged nothing is returned.
func (s *Session) AnalyzeFile(path string, table SymbolTable, deps []string) []string {
	table.FilePath = path
	fi := index.FromSymbolTable(table)
	apiHash := store.APIHash(fi.All())

	s.mu.Lock()
	defer s.mu.Unlock()

	oldDefined := s.project.DefinedSymbols(path)
	oldHash, existed := s.apiHashes[path]

	s.deps.ClearDependencies(path)
	s.project.UpdateFile(fi)
	s.deps.AddDependencies(path, deps)
	s.apiHashes[path] = apiHash
	delete(s.sourceHashes, path)

	if existed && oldHash == apiHash {
		return nil
	}
	defined := append(oldDefined, s.project.DefinedSymbols(path)...)
	return s.deps.FilesToInvalidate(path, defined)
}

// AnalyzeSource extracts src and publishes it like AnalyzeFile. A nil deps
// records the file's single-type imports as its dependencies.
func (s *Session) AnalyzeSource(ctx context.Context, path string, src []byte, deps []string) ([]string, error) {
	table, err := s.extract(ctx, path, src)
	if err != nil {
		return nil, err
	}
	if deps == nil {
		deps = importDependencies(table)
	}
	return s.AnalyzeFile(path, table, deps), nil
}

// RemoveFile drops path from the index and the cache and returns the files
// that depended on its symbols.
func (s *Session) RemoveFile(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(path)
}

func (s *Session) removeLocked(path string) []string {
	defined := s.project.DefinedSymbols(path)
	if s.project.RemoveFile(path) == nil {
		return nil
	}
	s.deps.ClearDependencies(path)
	delete(s.apiHashes, path)
	delete(s.sourceHashes, path)
	if s.store != nil {
		if err := s.store.DeleteFile(path); err != nil {
			s.logger.Warn("cannot drop cached file", "path", path, "err", err)
		}
	}
	return s.deps.FilesToInvalidate(path, defined)
}

func (s *Session) extract(ctx context.Context, path string, src []byte) (SymbolTable, error) {
	var (
		table SymbolTable
		err   error
	)
	switch {
	case s.script != "":
		table, err = s.runtime.ExtractScript(ctx, s.script, path, src)
	case s.scripts != nil:
		lang, ok := symrt.LanguageForFile(path)
		if !ok {
			err = fmt.Errorf("%w: %s", symrt.ErrUnsupportedLanguage, path)
			break
		}
		table, err = s.runtime.ExtractScript(ctx, symrt.ExtractionScriptPath(lang), path, src)
	default:
		table, err = symrt.Extract(ctx, path, src)
	}
	if err != nil {
		return SymbolTable{}, fmt.Errorf("symdex: extract %s: %w", path, err)
	}
	return table, nil
}

// hashFS hashes the names and contents of every file in fsys.
func hashFS(fsys fs.FS) (string, error) {
	var buf bytes.Buffer
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(&buf, "%s\n%d\n", p, len(data))
		buf.Write(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return store.HashBytes(buf.Bytes()), nil
}

// importDependencies returns the explicit imports of table. Wildcard
// imports name packages, not symbols, and are left out.
func importDependencies(table SymbolTable) []string {
	var out []string
	for _, imp := range table.Imports {
		if strings.HasSuffix(imp, ".*") {
			continue
		}
		out = append(out, imp)
	}
	return out
}

// =============================================================================
// Queries
// =============================================================================

// Filter keeps the symbols for which the Risor expression expr is true.
func (s *Session) Filter(ctx context.Context, expr string, syms []*Symbol) ([]*Symbol, error) {
	f, err := s.runtime.NewFilter(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("symdex: filter: %w", err)
	}
	out, err := f.Apply(ctx, syms)
	if err != nil {
		return nil, fmt.Errorf("symdex: filter: %w", err)
	}
	return out, nil
}

// LoadClasspathSnapshot merges a classpath snapshot, as written by
// ExportClasspath, into the classpath index.
func (s *Session) LoadClasspathSnapshot(r io.Reader) error {
	idx, err := index.LoadClasspath(r)
	if err != nil {
		return fmt.Errorf("symdex: load classpath snapshot: %w", err)
	}
	s.project.Classpath().Merge(idx)
	s.logger.Info("classpath snapshot loaded", "symbols", idx.Size())
	return nil
}

// ExportClasspath writes the classpath index as an IndexData snapshot.
func (s *Session) ExportClasspath(w io.Writer) error {
	return index.WriteSnapshot(w, s.project.Classpath().ToIndexData())
}

// Stats summarizes the index.
type Stats struct {
	Files        int `json:"files"`
	FileSymbols  int `json:"file_symbols"`
	Classpath    int `json:"classpath_symbols"`
	Archives     int `json:"archives"`
	Stdlib       int `json:"stdlib_symbols"`
	Dependencies int `json:"dependencies"`
}

// Stats counts what the Session currently holds.
func (s *Session) Stats() Stats {
	st := Stats{Dependencies: s.deps.Size()}
	for _, p := range s.project.Files() {
		if fi := s.project.File(p); fi != nil {
			st.Files++
			st.FileSymbols += fi.Size()
		}
	}
	if cp := s.project.Classpath(); cp != nil {
		st.Classpath = cp.Size()
		st.Archives = len(cp.SeenSources())
	}
	if std := s.project.Stdlib(); std != nil {
		st.Stdlib = std.Size()
	}
	return st
}
