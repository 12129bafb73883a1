package runtime

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/symdex/internal/index"
)

func mapFSWith(path, data string) fstest.MapFS {
	return fstest.MapFS{path: &fstest.MapFile{Data: []byte(data)}}
}

func filterFixture() []*index.Symbol {
	return []*index.Symbol{
		{Name: "shout", FqName: "demo.shout", Kind: index.KindFunction, PackageName: "demo",
			Visibility: index.Public, ReceiverType: "String", ReturnType: "String"},
		{Name: "whisper", FqName: "demo.whisper", Kind: index.KindFunction, PackageName: "demo",
			Visibility: index.Public, ReceiverType: "String", ReturnType: "String", Deprecated: true},
		{Name: "User", FqName: "demo.User", Kind: index.KindDataClass, PackageName: "demo",
			Visibility: index.Public, SuperTypes: []string{"Entity"}},
		{Name: "add", FqName: "demo.math.add", Kind: index.KindFunction, PackageName: "demo.math",
			Visibility: index.Internal, ReturnType: "Int",
			Parameters: []index.Parameter{{Name: "a", Type: "Int"}, {Name: "b", Type: "Int"}}},
	}
}

func names(syms []*index.Symbol) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Name
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()

	tests := []struct {
		expr string
		want []string
	}{
		{`kind == "FUNCTION" && !deprecated`, []string{"shout", "add"}},
		{`receiver == "String"`, []string{"shout", "whisper"}},
		{`arity == 2`, []string{"add"}},
		{`visibility != "PUBLIC"`, []string{"add"}},
		{`len(supers) == 1`, []string{"User"}},
		{`pkg == "demo.math" || name == "User"`, []string{"User", "add"}},
		{`false`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()
			f, err := rt.NewFilter(context.Background(), tt.expr)
			require.NoError(t, err)
			got, err := f.Apply(context.Background(), filterFixture())
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestFilter_Match(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()
	f, err := rt.NewFilter(context.Background(), `fq_name == "demo.User"`)
	require.NoError(t, err)

	syms := filterFixture()
	ok, err := f.Match(context.Background(), syms[2])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Match(context.Background(), syms[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewFilter_Invalid(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()

	_, err := rt.NewFilter(context.Background(), "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty filter")

	_, err = rt.NewFilter(context.Background(), `kind ==`)
	require.Error(t, err)

	_, err = rt.NewFilter(context.Background(), `no_such_global == 1`)
	require.Error(t, err)
}
