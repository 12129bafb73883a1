package symdex

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Helpers
// =============================================================================

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeSource(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// emptyClass assembles a public classfile for name (internal form) with no
// members.
func emptyClass(name string) []byte {
	var pool [][]byte
	class := func(s string) uint16 {
		e := binary.BigEndian.AppendUint16([]byte{1}, uint16(len(s)))
		pool = append(pool, append(e, s...))
		pool = append(pool, binary.BigEndian.AppendUint16([]byte{7}, uint16(len(pool))))
		return uint16(len(pool))
	}
	this := class(name)
	super := class("java/lang/Object")

	out := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0, 0, 52}
	out = binary.BigEndian.AppendUint16(out, uint16(len(pool)+1))
	for _, e := range pool {
		out = append(out, e...)
	}
	out = binary.BigEndian.AppendUint16(out, 0x0001)
	out = binary.BigEndian.AppendUint16(out, this)
	out = binary.BigEndian.AppendUint16(out, super)
	// interfaces, fields, methods, attributes
	return append(out, 0, 0, 0, 0, 0, 0, 0, 0)
}

func writeJar(t *testing.T, path string, classes ...string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, c := range classes {
		w, err := zw.Create(c + ".class")
		require.NoError(t, err)
		_, err = w.Write(emptyClass(c))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func helperTable(returnType string) SymbolTable {
	return SymbolTable{
		PackageName: "demo",
		Declarations: []Declaration{
			{Name: "helper", Kind: KindFunction, ReturnType: returnType},
		},
	}
}

const (
	utilSource = "package demo\n\nfun helper(): Int = 1\n"
	mainSource = "package app\n\nimport demo.helper\nimport demo.extra.*\n\nfun main() { helper() }\n"
)

// projectTree writes a small Kotlin project and returns its source root.
func projectTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "src")
	writeSource(t, filepath.Join(root, "demo", "Util.kt"), utilSource)
	writeSource(t, filepath.Join(root, "app", "Main.kt"), mainSource)
	writeSource(t, filepath.Join(root, "build", "Gen.kt"), "package gen\n\nclass Gen\n")
	writeSource(t, filepath.Join(root, ".cache", "Hidden.kt"), "package hidden\n\nclass Hidden\n")
	writeSource(t, filepath.Join(root, "README.md"), "# not a source\n")
	return root
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_WithoutStore(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	assert.Nil(t, s.Store())
	assert.Equal(t, Stats{}, s.Stats())
	assert.NotNil(t, s.Index().Classpath())
	assert.Nil(t, s.Index().Stdlib())
	require.NoError(t, s.Close())
}

func TestNew_WithStore(t *testing.T) {
	t.Parallel()
	s := newTestSession(t, WithStore(filepath.Join(t.TempDir(), "idx.db")))
	require.NotNil(t, s.Store())

	v, ok, err := s.Store().GetMetadata("extractor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, builtinExtractor, v)
}

func TestNew_MissingScript(t *testing.T) {
	t.Parallel()
	_, err := New(
		WithStore(filepath.Join(t.TempDir(), "idx.db")),
		WithScript(filepath.Join(t.TempDir(), "missing.risor")),
	)
	require.Error(t, err)
}

// =============================================================================
// Publishing and invalidation
// =============================================================================

func TestAnalyzeFile_Invalidation(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	assert.Empty(t, s.AnalyzeFile("Util.kt", helperTable("Int"), nil))
	assert.Empty(t, s.AnalyzeFile("Main.kt", SymbolTable{PackageName: "app"}, []string{"demo.helper"}))
	assert.Equal(t, []string{"Main.kt"}, s.Dependencies().DependentsOf("demo.helper"))

	// Same public shape: nothing to re-analyze.
	assert.Empty(t, s.AnalyzeFile("Util.kt", helperTable("Int"), nil))

	assert.Equal(t, []string{"Main.kt"}, s.AnalyzeFile("Util.kt", helperTable("Long"), nil))
	sym := s.Index().FindByFqName("demo.helper")
	require.NotNil(t, sym)
	assert.Equal(t, "Long", sym.ReturnType)
	assert.Equal(t, "Util.kt", sym.FilePath)
}

func TestAnalyzeFile_RenamedSymbolInvalidatesOldDependents(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	s.AnalyzeFile("Util.kt", helperTable("Int"), nil)
	s.AnalyzeFile("Main.kt", SymbolTable{PackageName: "app"}, []string{"demo.helper"})

	renamed := SymbolTable{PackageName: "demo", Declarations: []Declaration{{Name: "assist", Kind: KindFunction}}}
	assert.Equal(t, []string{"Main.kt"}, s.AnalyzeFile("Util.kt", renamed, nil))
	assert.Nil(t, s.Index().FindByFqName("demo.helper"))
	assert.NotNil(t, s.Index().FindByFqName("demo.assist"))
}

func TestAnalyzeFile_ReplacesDependencies(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	s.AnalyzeFile("Main.kt", SymbolTable{}, []string{"a.A", "b.B"})
	s.AnalyzeFile("Main.kt", SymbolTable{}, []string{"b.B"})

	assert.Equal(t, []string{"b.B"}, s.Dependencies().DependenciesOf("Main.kt"))
	assert.Empty(t, s.Dependencies().DependentsOf("a.A"))
	require.NoError(t, s.Dependencies().CheckInvariant())
}

func TestRemoveFile(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	s.AnalyzeFile("Util.kt", helperTable("Int"), nil)
	s.AnalyzeFile("Main.kt", SymbolTable{PackageName: "app"}, []string{"demo.helper"})

	assert.Equal(t, []string{"Main.kt"}, s.RemoveFile("Util.kt"))
	assert.Nil(t, s.Index().FindByFqName("demo.helper"))
	assert.Nil(t, s.Index().File("Util.kt"))
	assert.Nil(t, s.RemoveFile("Util.kt"))

	assert.Empty(t, s.RemoveFile("Main.kt"))
	assert.Zero(t, s.Dependencies().Size())
}

func TestAnalyzeSource_ImportsBecomeDependencies(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()

	_, err := s.AnalyzeSource(ctx, "Main.kt", []byte(mainSource), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo.helper"}, s.Dependencies().DependenciesOf("Main.kt"))
	assert.NotNil(t, s.Index().FindByFqName("app.main"))

	_, err = s.AnalyzeSource(ctx, "Main.kt", []byte(mainSource), []string{"x.Y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.Y"}, s.Dependencies().DependenciesOf("Main.kt"))

	_, err = s.AnalyzeSource(ctx, "notes.txt", []byte("hello"), nil)
	require.Error(t, err)
}

func TestAnalyzeSource_Script(t *testing.T) {
	t.Parallel()
	script := writeSource(t, filepath.Join(t.TempDir(), "extract.risor"), `
set_package("scripted")
declare({"name": "Only", "kind": "OBJECT"})
`)
	s := newTestSession(t, WithScript(script))

	_, err := s.AnalyzeSource(context.Background(), "Any.kt", []byte("class Ignored"), nil)
	require.NoError(t, err)
	assert.NotNil(t, s.Index().FindByFqName("scripted.Only"))
	assert.Nil(t, s.Index().FindByFqName("Ignored"))
}

func TestImportDependencies(t *testing.T) {
	t.Parallel()
	table := SymbolTable{Imports: []string{"a.B", "c.*", "d.e.F"}}
	assert.Equal(t, []string{"a.B", "d.e.F"}, importDependencies(table))
	assert.Nil(t, importDependencies(SymbolTable{}))
}

// =============================================================================
// Source trees
// =============================================================================

func TestIndexSources(t *testing.T) {
	t.Parallel()
	root := projectTree(t)
	util := filepath.Join(root, "demo", "Util.kt")
	main := filepath.Join(root, "app", "Main.kt")
	s := newTestSession(t)
	ctx := context.Background()

	stats, err := s.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Parsed)
	assert.Equal(t, []string{main, util}, s.Index().Files())
	assert.NotNil(t, s.Index().FindByFqName("demo.helper"))
	assert.Nil(t, s.Index().FindByFqName("gen.Gen"))
	assert.Nil(t, s.Index().FindByFqName("hidden.Hidden"))

	// Nothing changed on disk.
	stats, err = s.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Unchanged)
	assert.Zero(t, stats.Parsed)
	assert.Empty(t, stats.Invalidated)

	// Body-only edit keeps the API hash.
	writeSource(t, util, "package demo\n\nfun helper(): Int = 2\n")
	stats, err = s.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Parsed)
	assert.Empty(t, stats.Invalidated)

	writeSource(t, util, "package demo\n\nfun helper(): Long = 2L\n")
	stats, err = s.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Parsed)
	assert.Equal(t, []string{main}, stats.Invalidated)

	require.NoError(t, os.Remove(util))
	stats, err = s.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, []string{main}, stats.Invalidated)
	assert.Nil(t, s.Index().FindByFqName("demo.helper"))
}

func TestIndexSources_Exclude(t *testing.T) {
	t.Parallel()
	root := projectTree(t)
	s := newTestSession(t, WithExclude(func(name string) bool { return name == "app" }))

	stats, err := s.IndexSources(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Nil(t, s.Index().FindByFqName("app.main"))
	assert.True(t, s.SkipDir("app"))
	assert.True(t, s.SkipDir(".gradle"))
	assert.True(t, s.SkipDir("build"))
	assert.False(t, s.SkipDir("demo"))
}

func TestIndexSources_MissingRoot(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	_, err := s.IndexSources(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
}

func TestIndexSources_CanceledContext(t *testing.T) {
	t.Parallel()
	root := projectTree(t)
	s := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.IndexSources(ctx, []string{root})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Index().Files())
}

func TestIndexSources_CacheAcrossSessions(t *testing.T) {
	t.Parallel()
	root := projectTree(t)
	db := filepath.Join(t.TempDir(), "idx.db")
	ctx := context.Background()

	first, err := New(WithStore(db))
	require.NoError(t, err)
	stats, err := first.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Parsed)
	require.NoError(t, first.Close())

	second := newTestSession(t, WithStore(db))
	stats, err = second.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Cached)
	assert.Zero(t, stats.Parsed)
	assert.NotNil(t, second.Index().FindByFqName("demo.helper"))
	assert.Equal(t, []string{"demo.helper"}, second.Dependencies().DependenciesOf(filepath.Join(root, "app", "Main.kt")))
}

func TestIndexSources_ScriptChangeDropsCache(t *testing.T) {
	t.Parallel()
	root := projectTree(t)
	db := filepath.Join(t.TempDir(), "idx.db")
	ctx := context.Background()

	first, err := New(WithStore(db))
	require.NoError(t, err)
	_, err = first.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	script := writeSource(t, filepath.Join(t.TempDir(), "extract.risor"), `declare({"name": "Scripted", "kind": "CLASS"})`)
	second := newTestSession(t, WithStore(db), WithScript(script))
	paths, err := second.Store().FilePaths()
	require.NoError(t, err)
	assert.Empty(t, paths)

	stats, err := second.IndexSources(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Parsed)
	assert.NotNil(t, second.Index().FindByFqName("Scripted"))
}

func TestUpdateFiles(t *testing.T) {
	t.Parallel()
	root := projectTree(t)
	util := filepath.Join(root, "demo", "Util.kt")
	main := filepath.Join(root, "app", "Main.kt")
	s := newTestSession(t)
	ctx := context.Background()
	_, err := s.IndexSources(ctx, []string{root})
	require.NoError(t, err)

	stats, err := s.UpdateFiles(ctx, []string{util, filepath.Join(root, "README.md")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unchanged)

	writeSource(t, util, "package demo\n\nfun helper(x: Int): Int = x\n")
	stats, err = s.UpdateFiles(ctx, []string{util}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Parsed)
	assert.Equal(t, []string{main}, stats.Invalidated)

	require.NoError(t, os.Remove(util))
	stats, err = s.UpdateFiles(ctx, nil, []string{util, filepath.Join(root, "Unknown.kt")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, []string{main}, stats.Invalidated)
}

func TestUpdateFiles_ReadError(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	_, err := s.UpdateFiles(context.Background(), []string{filepath.Join(t.TempDir(), "Gone.kt")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")
}

// =============================================================================
// Classpath
// =============================================================================

func TestLoadClasspath_NoStore(t *testing.T) {
	t.Parallel()
	jar := writeJar(t, filepath.Join(t.TempDir(), "lib.jar"), "lib/Thing", "lib/util/Tool")
	s := newTestSession(t)
	ctx := context.Background()

	stats, err := s.LoadClasspath(ctx, []string{jar})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Symbols)
	assert.NotNil(t, s.Index().FindByFqName("lib.Thing"))
	assert.True(t, s.Index().HasPackage("lib.util"))

	stats, err = s.LoadClasspath(ctx, []string{jar})
	require.NoError(t, err)
	assert.Zero(t, stats.Symbols)
}

func TestLoadClasspath_CacheAndPrune(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	jarA := writeJar(t, filepath.Join(dir, "a.jar"), "lib/Thing")
	jarB := writeJar(t, filepath.Join(dir, "b.jar"), "other/Widget")
	db := filepath.Join(dir, "idx.db")
	ctx := context.Background()

	first, err := New(WithStore(db))
	require.NoError(t, err)
	stats, err := first.LoadClasspath(ctx, []string{jarA, jarB, filepath.Join(dir, "missing.jar")})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Archives)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 1, stats.Failed)
	require.NoError(t, first.Close())

	second, err := New(WithStore(db))
	require.NoError(t, err)
	stats, err = second.LoadClasspath(ctx, []string{jarA, jarB})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Cached)
	assert.Zero(t, stats.Scanned)
	assert.NotNil(t, second.Index().FindByFqName("other.Widget"))
	require.NoError(t, second.Close())

	third := newTestSession(t, WithStore(db))
	stats, err = third.LoadClasspath(ctx, []string{jarA})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Cached)
	assert.Equal(t, 1, stats.Pruned)
	archives, err := third.Store().Archives()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, jarA, archives[0].Path)
}

func TestLoadClasspath_RebuiltJarIsRescanned(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	jar := writeJar(t, filepath.Join(dir, "a.jar"), "lib/Thing")
	db := filepath.Join(dir, "idx.db")
	ctx := context.Background()

	first, err := New(WithStore(db))
	require.NoError(t, err)
	_, err = first.LoadClasspath(ctx, []string{jar})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	writeJar(t, jar, "lib/Thing", "lib/Other")
	second := newTestSession(t, WithStore(db))
	stats, err := second.LoadClasspath(ctx, []string{jar})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scanned)
	assert.NotNil(t, second.Index().FindByFqName("lib.Other"))
}

// =============================================================================
// Stdlib, queries and snapshots
// =============================================================================

func TestStdlib(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	s.UseMinimalStdlib()
	require.NotNil(t, s.Index().Stdlib())
	assert.Positive(t, s.Stats().Stdlib)
	assert.NotNil(t, s.Index().FindByFqName("kotlin.String"))

	require.Error(t, s.LoadStdlibSnapshot(strings.NewReader("not json")))
	require.Error(t, s.LoadStdlib(filepath.Join(t.TempDir(), "missing.json")))
}

func TestExportClasspath_LoadsAsStdlib(t *testing.T) {
	t.Parallel()
	jar := writeJar(t, filepath.Join(t.TempDir(), "lib.jar"), "lib/Thing", "lib/Other")
	s := newTestSession(t)
	_, err := s.LoadClasspath(context.Background(), []string{jar})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.ExportClasspath(&buf))

	other := newTestSession(t)
	require.NoError(t, other.LoadStdlibSnapshot(&buf))
	assert.Equal(t, 2, other.Stats().Stdlib)
	assert.NotNil(t, other.Index().FindByFqName("lib.Other"))
}

func TestLoadClasspathSnapshot(t *testing.T) {
	t.Parallel()
	jar := writeJar(t, filepath.Join(t.TempDir(), "lib.jar"), "lib/Thing")
	s := newTestSession(t)
	ctx := context.Background()
	_, err := s.LoadClasspath(ctx, []string{jar})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, s.ExportClasspath(&buf))

	other := newTestSession(t)
	require.NoError(t, other.LoadClasspathSnapshot(&buf))
	assert.NotNil(t, other.Index().FindByFqName("lib.Thing"))
	assert.Equal(t, 1, other.Stats().Archives)

	// The archive is already covered by the snapshot.
	stats, err := other.LoadClasspath(ctx, []string{jar})
	require.NoError(t, err)
	assert.Zero(t, stats.Symbols)

	require.Error(t, other.LoadClasspathSnapshot(strings.NewReader("{")))
}

func TestFilter(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()
	_, err := s.AnalyzeSource(ctx, "Util.kt", []byte("package demo\n\nclass Box\n\nfun helper(): Int = 1\n"), nil)
	require.NoError(t, err)

	all := s.Index().FindByPackage("demo")
	require.Len(t, all, 2)
	out, err := s.Filter(ctx, `kind == "FUNCTION"`, all)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "demo.helper", out[0].FqName)

	_, err = s.Filter(ctx, "", all)
	require.Error(t, err)
}

func TestStats(t *testing.T) {
	t.Parallel()
	jar := writeJar(t, filepath.Join(t.TempDir(), "lib.jar"), "lib/Thing")
	s := newTestSession(t)
	_, err := s.LoadClasspath(context.Background(), []string{jar})
	require.NoError(t, err)
	s.AnalyzeFile("Util.kt", helperTable("Int"), []string{"lib.Thing"})

	st := s.Stats()
	assert.Equal(t, 1, st.Files)
	assert.Equal(t, 1, st.FileSymbols)
	assert.Equal(t, 1, st.Classpath)
	assert.Equal(t, 1, st.Archives)
	assert.Zero(t, st.Stdlib)
	assert.Equal(t, 1, st.Dependencies)
}
