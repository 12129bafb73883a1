// Package runtime turns Kotlin and Java sources into index.SymbolTable
// values. Built-in extractors walk tree-sitter syntax trees directly;
// user scripts written in Risor can replace them per project and can also
// filter symbols with boolean expressions.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
)

// scriptExt is the extension of extraction scripts and their imports.
const scriptExt = ".risor"

// Runtime evaluates Risor extraction scripts and filter expressions with the
// tree-sitter host functions installed as globals.
type Runtime struct {
	logger     *slog.Logger
	scriptsDir string
	fsys       fs.FS
	sources    *sourceStore
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS reads scripts and their imports from fsys. It takes
// precedence over WithScriptsDir.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) { r.fsys = fsys }
}

// WithScriptsDir sets the directory relative script paths and imports
// resolve against.
func WithScriptsDir(dir string) RuntimeOption {
	return func(r *Runtime) { r.scriptsDir = dir }
}

// WithRuntimeLogger sets the logger behind the scripts' log global.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) { r.logger = l }
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		logger:  slog.New(slog.DiscardHandler),
		sources: newSourceStore(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExtractionScriptPath returns where a language's extraction script lives
// inside a scripts directory or FS, e.g. extract/kotlin.risor.
func ExtractionScriptPath(language string) string {
	return path.Join("extract", language+scriptExt)
}

// RunScript evaluates the script at scriptPath. extra globals are added to,
// and may shadow, the host functions.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extra map[string]any) error {
	code, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	_, err = r.eval(ctx, code, scriptPath, r.hostGlobals(r.sources, extra))
	return err
}

// RunSource evaluates Risor code given inline.
func (r *Runtime) RunSource(ctx context.Context, code string, extra map[string]any) error {
	_, err := r.eval(ctx, code, "<inline>", r.hostGlobals(r.sources, extra))
	return err
}

// LoadScript returns the text of a script. With an FS, p is taken relative
// to its root; otherwise a relative p is joined to the scripts directory.
func (r *Runtime) LoadScript(p string) (string, error) {
	if r.fsys != nil {
		name := strings.TrimPrefix(filepath.ToSlash(p), "/")
		data, err := fs.ReadFile(r.fsys, name)
		if err != nil {
			return "", fmt.Errorf("runtime: load script %s from fs: %w", name, err)
		}
		return string(data), nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.scriptsDir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("runtime: load script %s: %w", p, err)
	}
	return string(data), nil
}

func (r *Runtime) eval(ctx context.Context, code, label string, globals map[string]any) (object.Object, error) {
	names := slices.Sorted(maps.Keys(globals))
	opts := make([]risor.Option, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, risor.WithGlobal(name, globals[name]))
	}
	if imp := r.importer(names); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}
	result, err := risor.Eval(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// importer resolves import statements against the script FS or directory.
// Imported modules see the same global names as the importing script.
func (r *Runtime) importer(globalNames []string) importer.Importer {
	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{scriptExt},
		})
	case r.scriptsDir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{scriptExt},
		})
	default:
		return nil
	}
}

// hostGlobals is the tree-sitter API every script sees, plus extra. Trees
// parsed by the script are registered in ss.
func (r *Runtime) hostGlobals(ss *sourceStore, extra map[string]any) map[string]any {
	logProxy, err := object.NewProxy(&logObject{logger: r.logger})
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy log: %v", err))
	}
	globals := map[string]any{
		"parse_src":  makeParseSrcFn(ss),
		"node_text":  makeNodeTextFn(ss),
		"node_child": makeNodeChildFn(),
		"node_span":  makeNodeSpanFn(),
		"query":      makeQueryFn(ss),
		"log":        logProxy,
	}
	maps.Copy(globals, extra)
	return globals
}
