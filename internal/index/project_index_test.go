package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileOf(path, pkg string, decls ...Declaration) *FileIndex {
	return FromSymbolTable(SymbolTable{FilePath: path, PackageName: pkg, Declarations: decls})
}

func fn(name string, mods ...string) Declaration {
	return Declaration{Name: name, Kind: KindFunction, Modifiers: mods, ReturnType: "Unit"}
}

// =============================================================================
// UpdateFile / RemoveFile
// =============================================================================

func TestProjectIndex_UpdateFileReplacesContributions(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()

	p.UpdateFile(fileOf("src/a.kt", "app",
		Declaration{Name: "Foo", Kind: KindClass},
		Declaration{Name: "shout", Kind: KindFunction, ReceiverType: "String"},
	))
	require.NotNil(t, p.FindByFqName("app.Foo"))
	require.Equal(t, 1, p.Extensions().Size())

	p.UpdateFile(fileOf("src/a.kt", "app", Declaration{Name: "Bar", Kind: KindClass}))

	assert.Nil(t, p.FindByFqName("app.Foo"))
	assert.Nil(t, p.Packages().FindByFqName("app.Foo"))
	assert.NotNil(t, p.Packages().FindByFqName("app.Bar"))
	assert.Zero(t, p.Extensions().Size())
	assert.Equal(t, []string{"src/a.kt"}, p.Files())
}

func TestProjectIndex_UpdateFileNeverHidesContributions(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	version := func(i int) *FileIndex {
		return fileOf("/a.kt", "a",
			Declaration{Name: fmt.Sprintf("C%d", i), Kind: KindClass},
			Declaration{Name: "shout", Kind: KindFunction, ReceiverType: "String"},
		)
	}
	p.UpdateFile(version(0))

	var (
		wg   sync.WaitGroup
		done = make(chan struct{})
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 1; i <= 5000; i++ {
			p.UpdateFile(version(i))
		}
	}()

	var packageMisses, extensionMisses, packageGone int
	for {
		select {
		case <-done:
			wg.Wait()
			assert.Zero(t, packageMisses, "package bucket seen empty")
			assert.Zero(t, extensionMisses, "extension bucket seen empty")
			assert.Zero(t, packageGone, "package seen missing")
			assert.Len(t, p.Packages().FindByPackage("a"), 2)
			return
		default:
		}
		if len(p.Packages().FindByPackage("a")) != 2 {
			packageMisses++
		}
		if len(p.FindExtensions("String", nil, false)) != 1 {
			extensionMisses++
		}
		if !p.HasPackage("a") {
			packageGone++
		}
	}
}

func TestProjectIndex_RemoveFile(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	p.UpdateFile(fileOf("src/a.kt", "app", fn("run")))

	old := p.RemoveFile("src/a.kt")
	require.NotNil(t, old)
	assert.Equal(t, "src/a.kt", old.Path())
	assert.Nil(t, p.FindByFqName("app.run"))
	assert.False(t, p.HasPackage("app"))

	assert.Nil(t, p.RemoveFile("src/a.kt"))
}

func TestProjectIndex_UpdateFileNilPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewProjectIndex().UpdateFile(nil) })
}

// =============================================================================
// Search order
// =============================================================================

func TestProjectIndex_ProjectShadowsDependencies(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	p.SetStdlib(MinimalStdlib())

	cp := NewClasspathIndex()
	shadowed := sym("kotlin.Pair", KindClass)
	shadowed.FilePath = "/deps/fake.jar"
	cp.Add(shadowed)
	p.SetClasspath(cp)

	assert.Equal(t, "/deps/fake.jar", p.FindByFqName("kotlin.Pair").FilePath, "classpath before stdlib")

	p.UpdateFile(fileOf("src/String.kt", "kotlin", Declaration{Name: "String", Kind: KindClass}))
	assert.Equal(t, "src/String.kt", p.FindByFqName("kotlin.String").FilePath)

	byName := p.FindBySimpleName("String")
	require.Len(t, byName, 1, "duplicates by fqName collapse")
	assert.Equal(t, "src/String.kt", byName[0].FilePath)
}

func TestProjectIndex_FindByPrefixLimitIgnoresShadowed(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	cp := NewClasspathIndex()
	cp.AddAll([]*Symbol{sym("app.mapA", KindFunction), sym("lib.mapB", KindFunction)})
	p.SetClasspath(cp)
	p.UpdateFile(fileOf("src/a.kt", "app", fn("mapA")))

	got := p.FindByPrefix("map", 2)
	assert.Equal(t, []string{"app.mapA", "lib.mapB"}, fqNames(got))
	assert.Equal(t, "src/a.kt", got[0].FilePath)
}

func TestProjectIndex_FindVisibleFrom(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	p.UpdateFile(fileOf("src/a.kt", "app",
		Declaration{Name: "Alpha", Kind: KindClass},
		fn("alphaHelper", "private"),
	))
	p.UpdateFile(fileOf("src/b.kt", "app",
		fn("alphaShared"),
		fn("alphaHidden", "private"),
	))
	p.UpdateFile(fileOf("src/c.kt", "other",
		fn("alphaRemote"),
		fn("alphaInternal", "internal"),
	))
	cp := NewClasspathIndex()
	hiddenLib := sym("lib.alphaSecret", KindFunction)
	hiddenLib.Visibility = Private
	cp.AddAll([]*Symbol{sym("lib.alphaLib", KindFunction), hiddenLib})
	p.SetClasspath(cp)

	got := p.FindVisibleFrom("src/a.kt", "alpha", 0)
	assert.Equal(t, []string{
		"app.Alpha",
		"app.alphaHelper",
		"app.alphaShared",
		"other.alphaRemote",
		"lib.alphaLib",
	}, fqNames(got))

	limited := p.FindVisibleFrom("src/a.kt", "alpha", 3)
	assert.Equal(t, []string{"app.Alpha", "app.alphaHelper", "app.alphaShared"}, fqNames(limited))
}

func TestProjectIndex_FindVisibleFromUnknownFile(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	p.UpdateFile(fileOf("src/b.kt", "app", fn("beta"), fn("betaHidden", "private")))

	got := p.FindVisibleFrom("src/new.kt", "beta", 0)
	assert.Equal(t, []string{"app.beta"}, fqNames(got))
}

func TestProjectIndex_FindExtensionsMergesSources(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	p.SetStdlib(MinimalStdlib())
	cp := NewClasspathIndex()
	cp.Add(ext("lib.words", "String"))
	p.SetClasspath(cp)
	p.UpdateFile(fileOf("src/a.kt", "app",
		Declaration{Name: "shout", Kind: KindFunction, ReceiverType: "String", ReturnType: "String"},
	))

	exact := p.FindExtensions("String", nil, false)
	assert.Equal(t, []string{"app.shout", "lib.words"}, fqNames(exact))

	withAny := fqNames(p.FindExtensions("String", nil, true))
	assert.Contains(t, withAny, "app.shout")
	assert.Contains(t, withAny, "lib.words")
}

func TestProjectIndex_MembersAndPackages(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	p.SetStdlib(MinimalStdlib())
	p.UpdateFile(FromSymbolTable(sampleTable("src/User.kt")))
	p.UpdateFile(fileOf("src/util.kt", "com.example.util", fn("helper")))

	members := p.FindMembers("com.example.User")
	assert.Equal(t, []string{"com.example.User.name", "com.example.User.secret"}, fqNames(members))

	assert.True(t, p.HasPackage("com.example"))
	assert.True(t, p.HasPackage("kotlin.collections"))
	assert.Equal(t, []string{"com.example.util"}, p.Subpackages("com.example"))
	assert.Contains(t, p.Subpackages("kotlin"), "kotlin.collections")

	defined := p.DefinedSymbols("src/util.kt")
	assert.Equal(t, []string{"com.example.util.helper"}, defined)
	assert.Nil(t, p.DefinedSymbols("src/missing.kt"))
}

// =============================================================================
// Query
// =============================================================================

func TestProjectIndex_Query(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	old := Declaration{Name: "oldApi", Kind: KindFunction, Deprecated: true}
	p.UpdateFile(fileOf("src/a.kt", "app",
		Declaration{Name: "Widget", Kind: KindClass},
		fn("widgetize"),
		fn("widgetSecret", "internal"),
		old,
		Declaration{Name: "widgetCount", Kind: KindProperty, ReturnType: "Int"},
	))

	tests := []struct {
		name string
		q    IndexQuery
		want []string
	}{
		{"fq", IndexQuery{FqName: "app.Widget"}, []string{"app.Widget"}},
		{"prefix", IndexQuery{Prefix: "widget"}, []string{"app.Widget", "app.widgetize", "app.widgetCount"}},
		{"prefix functions", IndexQuery{Prefix: "widget", Kinds: []SymbolKind{KindFunction}}, []string{"app.widgetize"}},
		{"include internal", IndexQuery{Prefix: "widgetS", IncludeInternal: true}, []string{"app.widgetSecret"}},
		{"deprecated hidden", IndexQuery{Name: "oldApi"}, nil},
		{"deprecated shown", IndexQuery{Name: "oldApi", IncludeDeprecated: true}, []string{"app.oldApi"}},
		{"package limit", IndexQuery{Package: "app", Limit: 2}, []string{"app.Widget", "app.widgetize"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := fqNames(p.Query(tt.q))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectIndex_QueryReceiver(t *testing.T) {
	t.Parallel()
	p := NewProjectIndex()
	p.SetStdlib(MinimalStdlib())

	got := fqNames(p.Query(IndexQuery{Receiver: "String", IncludeAny: true, Name: "ignored"}))
	assert.Contains(t, got, "kotlin.let")
	assert.Contains(t, got, "kotlin.apply")
}
