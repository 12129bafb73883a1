package index

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullSymbol() *Symbol {
	return &Symbol{
		Name:            "joinTo",
		FqName:          "kotlin.collections.joinTo",
		Kind:            KindFunction,
		PackageName:     "kotlin.collections",
		ContainingClass: "kotlin.collections.CollectionsKt",
		Visibility:      Protected,
		Signature:       "(Ljava/lang/Appendable;)V",
		TypeParameters:  []string{"T", "A"},
		Parameters: []Parameter{
			{Name: "buffer", Type: "A"},
			{Name: "separator", Type: "CharSequence", HasDefault: true},
			{Name: "rest", Type: "Any", IsVararg: true},
		},
		ReturnType:         "A",
		ReceiverType:       "Iterable<T>",
		SuperTypes:         []string{"Base"},
		FilePath:           "/deps/stdlib.jar",
		Span:               &Span{StartLine: 3, StartColumn: 4, EndLine: 9, EndColumn: 1},
		Deprecated:         true,
		DeprecationMessage: "use joinToString",
	}
}

// =============================================================================
// IndexEntry round trip
// =============================================================================

func TestIndexEntry_RoundTrip(t *testing.T) {
	t.Parallel()
	s := fullSymbol()
	assert.Equal(t, s, EntryFromSymbol(s).ToSymbol())
}

func TestIndexEntry_RoundTripThroughJSON(t *testing.T) {
	t.Parallel()
	s := fullSymbol()
	b, err := json.Marshal(EntryFromSymbol(s))
	require.NoError(t, err)

	var e IndexEntry
	require.NoError(t, json.Unmarshal(b, &e))
	assert.Equal(t, s, e.ToSymbol())
}

func TestIndexEntry_Defaults(t *testing.T) {
	t.Parallel()
	var e IndexEntry
	require.NoError(t, json.Unmarshal([]byte(`{"fqName":"a.b.C","kind":"WIDGET","pkg":"a.b","extra":1}`), &e))

	assert.Equal(t, "C", e.Name)
	assert.Equal(t, "PUBLIC", e.Vis)
	s := e.ToSymbol()
	assert.Equal(t, KindClass, s.Kind)
	assert.Equal(t, Public, s.Visibility)
	assert.Nil(t, s.Span)
}

// =============================================================================
// Snapshot shapes
// =============================================================================

const indexDataJSON = `{
  "version": "2.1",
  "kotlinVersion": "1.9.0",
  "generatedAt": 1700000000000,
  "unknownTopLevel": {"x": 1},
  "classes": [
    {"name": "Foo", "fqName": "lib.Foo", "kind": "CLASS", "pkg": "lib"},
    {"name": 42}
  ],
  "functions": [
    {"name": "make", "fqName": "lib.make", "kind": "FUNCTION", "pkg": "lib", "ret": "Foo"}
  ],
  "extensions": [
    {"name": "shout", "fqName": "lib.shout", "kind": "FUNCTION", "pkg": "lib", "recv": "String"}
  ]
}`

const stdlibDataJSON = `{
  "version": "1.0",
  "kotlinVersion": "2.0.0",
  "classes": {
    "kotlin.collections.List": {
      "fqName": "kotlin.collections.List",
      "kind": "INTERFACE",
      "typeParams": ["E"],
      "members": [
        {"name": "size", "kind": "PROPERTY", "ret": "Int"},
        {"name": "get", "kind": "FUNCTION", "params": [{"name": "index", "type": "Int"}], "ret": "E", "vis": "PUBLIC"}
      ]
    },
    "kotlin.Any": {"kind": "CLASS", "members": []}
  },
  "topLevelFunctions": [
    {"name": "listOf", "fqName": "kotlin.collections.listOf", "kind": "FUNCTION", "pkg": "kotlin.collections"}
  ],
  "extensions": {
    "String": [
      {"name": "trim", "fqName": "kotlin.text.trim", "kind": "FUNCTION", "pkg": "kotlin.text"}
    ]
  }
}`

func TestDetectShape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
		want Shape
	}{
		{"flat", indexDataJSON, ShapeIndexData},
		{"class centric", stdlibDataJSON, ShapeStdlibData},
		{"classes object without members", `{"classes": {}}`, ShapeStdlibData},
		{"no classes", `{"version": "1"}`, ShapeEmpty},
		{"functions only", `{"functions": []}`, ShapeIndexData},
		{"symbol named members", `{"classes": [], "functions": [{"name": "members", "fqName": "a.members"}]}`, ShapeIndexData},
		{"members key only", `{"extra": {"members": []}}`, ShapeStdlibData},
		{"top level functions", `{"topLevelFunctions": []}`, ShapeStdlibData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DetectShape([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectShape_Errors(t *testing.T) {
	t.Parallel()
	_, err := DetectShape([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrUnknownSnapshotShape)

	_, err = DetectShape([]byte(`{not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownSnapshotShape)
}

func TestLoadStdlib_IndexDataShape(t *testing.T) {
	t.Parallel()
	idx, err := LoadStdlib(strings.NewReader(indexDataJSON))
	require.NoError(t, err)

	assert.Equal(t, "2.1", idx.Version())
	assert.Equal(t, "1.9.0", idx.KotlinVersion())
	assert.Equal(t, 3, idx.Size(), "malformed entry is dropped")
	assert.NotNil(t, idx.FindByFqName("lib.make"))
	assert.Len(t, idx.FindExtensions("String", nil, false), 1)
}

func TestLoadStdlib_StdlibDataShape(t *testing.T) {
	t.Parallel()
	idx, err := LoadStdlib(strings.NewReader(stdlibDataJSON))
	require.NoError(t, err)

	list := idx.FindByFqName("kotlin.collections.List")
	require.NotNil(t, list)
	assert.Equal(t, KindInterface, list.Kind)
	assert.Equal(t, []string{"E"}, list.TypeParameters)

	members := idx.FindMembers("kotlin.collections.List")
	require.Len(t, members, 2)
	assert.Equal(t, "kotlin.collections.List.get", members[1].FqName)
	assert.Equal(t, "Int", members[1].Parameters[0].Type)

	anyClass := idx.FindByFqName("kotlin.Any")
	require.NotNil(t, anyClass, "fqName defaults to the map key")
	assert.Equal(t, "Any", anyClass.Name)

	trims := idx.FindExtensions("String", nil, false)
	require.Len(t, trims, 1)
	assert.Equal(t, "String", trims[0].ReceiverType, "receiver defaults to the bucket key")
}

func TestLoadStdlib_EmptyDocument(t *testing.T) {
	t.Parallel()
	idx, err := LoadStdlib(strings.NewReader(`{"version": "9"}`))
	require.NoError(t, err)
	assert.Zero(t, idx.Size())
}

func TestStdlibIndexData_ToIndexData(t *testing.T) {
	t.Parallel()
	var d StdlibIndexData
	require.NoError(t, json.Unmarshal([]byte(stdlibDataJSON), &d))

	flat := d.ToIndexData()
	assert.Equal(t, "2.0.0", flat.KotlinVersion)
	assert.Len(t, flat.Classes, 2)
	assert.Len(t, flat.Functions, 2)
	assert.Len(t, flat.Properties, 1)
	assert.Len(t, flat.Extensions, 1)
	assert.Equal(t, 6, flat.TotalCount())
}

func TestClasspathSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()
	c := NewClasspathIndex()
	foo := sym("lib.Foo", KindClass)
	foo.FilePath = "/deps/lib.jar"
	shout := ext("lib.shout", "String")
	shout.FilePath = "/deps/lib.jar"
	c.AddAll([]*Symbol{foo, shout})

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, c.ToIndexData()))

	loaded, err := LoadClasspath(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Size())
	assert.True(t, loaded.HasSeen("/deps/lib.jar"))
	assert.Len(t, loaded.FindExtensions("String", nil, false), 1)
}

func TestClasspathSnapshot_SymbolNamedMembers(t *testing.T) {
	t.Parallel()
	c := NewClasspathIndex()
	foo := sym("a.Foo", KindClass)
	members := sym("a.members", KindFunction)
	c.AddAll([]*Symbol{foo, members})

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, c.ToIndexData()))
	data := buf.Bytes()

	shape, err := DetectShape(data)
	require.NoError(t, err)
	assert.Equal(t, ShapeIndexData, shape)

	std, err := LoadStdlibBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 2, std.Size())

	loaded, err := LoadClasspath(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Size())
	assert.NotNil(t, loaded.FindByFqName("a.members"))
}

func TestIndexEntry_ZeroSpanMeansNoSpan(t *testing.T) {
	t.Parallel()
	s := sym("a.Foo", KindClass)
	s.Span = &Span{}
	assert.Nil(t, EntryFromSymbol(s).ToSymbol().Span)

	s.Span = &Span{StartLine: 1}
	got := EntryFromSymbol(s).ToSymbol()
	require.NotNil(t, got.Span)
	assert.Equal(t, Span{StartLine: 1}, *got.Span)
}
