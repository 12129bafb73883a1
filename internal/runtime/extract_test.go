package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/symdex/internal/index"
)

func findDecl(decls []index.Declaration, name string) *index.Declaration {
	for i := range decls {
		if decls[i].Name == name {
			return &decls[i]
		}
	}
	return nil
}

func requireDecl(t *testing.T, decls []index.Declaration, name string) *index.Declaration {
	t.Helper()
	d := findDecl(decls, name)
	require.NotNil(t, d, "declaration %q not found", name)
	return d
}

// =============================================================================
// Kotlin
// =============================================================================

const kotlinSample = `package demo.app

import kotlin.collections.List
import demo.util.*

data class User(val name: String, val age: Int = 0) {
    fun greet(other: User): String {
        return "hi " + other.name
    }

    private fun secret() {}

    companion object {
        fun create(name: String): User = User(name)
    }
}

interface Greeter {
    fun hello()
}

object Registry : Greeter {
    override fun hello() {}
}

enum class Color { RED, GREEN }

fun String.shout(): String = this.uppercase()

fun <T> identity(value: T): T = value

@Deprecated("use newLimit")
val limit: Int = 10

typealias Names = List<String>
`

func extractKotlin(t *testing.T) index.SymbolTable {
	t.Helper()
	table, err := Extract(context.Background(), "src/demo/App.kt", []byte(kotlinSample))
	require.NoError(t, err)
	return table
}

func TestExtract_KotlinHeader(t *testing.T) {
	t.Parallel()
	table := extractKotlin(t)

	assert.Equal(t, "src/demo/App.kt", table.FilePath)
	assert.Equal(t, "demo.app", table.PackageName)
	assert.Equal(t, []string{"kotlin.collections.List", "demo.util.*"}, table.Imports)
}

func TestExtract_KotlinDataClass(t *testing.T) {
	t.Parallel()
	table := extractKotlin(t)

	user := requireDecl(t, table.Declarations, "User")
	assert.Equal(t, index.KindClass, user.Kind)
	assert.Contains(t, user.Modifiers, "data")
	require.NotNil(t, user.Span)
	assert.Equal(t, 6, user.Span.StartLine)

	ctor := requireDecl(t, user.Members, "<init>")
	assert.Equal(t, index.KindConstructor, ctor.Kind)
	require.Len(t, ctor.Parameters, 2)
	assert.Equal(t, index.Parameter{Name: "name", Type: "String"}, ctor.Parameters[0])
	assert.Equal(t, index.Parameter{Name: "age", Type: "Int", HasDefault: true}, ctor.Parameters[1])

	name := requireDecl(t, user.Members, "name")
	assert.Equal(t, index.KindProperty, name.Kind)
	assert.Equal(t, "String", name.ReturnType)

	greet := requireDecl(t, user.Members, "greet")
	assert.Equal(t, index.KindFunction, greet.Kind)
	assert.Equal(t, "String", greet.ReturnType)
	require.Len(t, greet.Parameters, 1)
	assert.Equal(t, "User", greet.Parameters[0].Type)

	secret := requireDecl(t, user.Members, "secret")
	assert.Contains(t, secret.Modifiers, "private")
	assert.Equal(t, "Unit", secret.ReturnType)

	companion := requireDecl(t, user.Members, "Companion")
	assert.Equal(t, index.KindObject, companion.Kind)
	assert.Contains(t, companion.Modifiers, "companion")
	create := requireDecl(t, companion.Members, "create")
	assert.Equal(t, "User", create.ReturnType)
}

func TestExtract_KotlinInterfaceAndObject(t *testing.T) {
	t.Parallel()
	table := extractKotlin(t)

	greeter := requireDecl(t, table.Declarations, "Greeter")
	assert.Equal(t, index.KindInterface, greeter.Kind)
	hello := requireDecl(t, greeter.Members, "hello")
	assert.Equal(t, "Unit", hello.ReturnType)

	registry := requireDecl(t, table.Declarations, "Registry")
	assert.Equal(t, index.KindObject, registry.Kind)
	assert.Equal(t, []string{"Greeter"}, registry.SuperTypes)
	assert.Contains(t, requireDecl(t, registry.Members, "hello").Modifiers, "override")
}

func TestExtract_KotlinEnum(t *testing.T) {
	t.Parallel()
	table := extractKotlin(t)

	color := requireDecl(t, table.Declarations, "Color")
	assert.Contains(t, color.Modifiers, "enum")
	red := requireDecl(t, color.Members, "RED")
	assert.Equal(t, index.KindProperty, red.Kind)
	assert.Equal(t, "Color", red.ReturnType)
	assert.NotNil(t, findDecl(color.Members, "GREEN"))
}

func TestExtract_KotlinTopLevel(t *testing.T) {
	t.Parallel()
	table := extractKotlin(t)

	shout := requireDecl(t, table.Declarations, "shout")
	assert.Equal(t, "String", shout.ReceiverType)
	assert.Equal(t, "String", shout.ReturnType)

	identity := requireDecl(t, table.Declarations, "identity")
	assert.Equal(t, []string{"T"}, identity.TypeParameters)
	assert.Equal(t, "T", identity.ReturnType)

	limit := requireDecl(t, table.Declarations, "limit")
	assert.Equal(t, index.KindProperty, limit.Kind)
	assert.Equal(t, "Int", limit.ReturnType)
	assert.True(t, limit.Deprecated)
	assert.Equal(t, "use newLimit", limit.DeprecationMessage)

	names := requireDecl(t, table.Declarations, "Names")
	assert.Equal(t, index.KindTypeAlias, names.Kind)
	assert.Equal(t, "List<String>", names.ReturnType)
}

func TestExtract_KotlinSymbols(t *testing.T) {
	t.Parallel()
	syms := index.FromSymbolTable(extractKotlin(t))

	byFq := map[string]*index.Symbol{}
	for _, s := range syms {
		byFq[s.FqName] = s
	}
	require.Contains(t, byFq, "demo.app.User")
	assert.Equal(t, index.KindDataClass, byFq["demo.app.User"].Kind)
	require.Contains(t, byFq, "demo.app.User.greet")
	assert.Equal(t, "User", byFq["demo.app.User.greet"].ContainingClass)
	require.Contains(t, byFq, "demo.app.User.secret")
	assert.Equal(t, index.Private, byFq["demo.app.User.secret"].Visibility)
	require.Contains(t, byFq, "demo.app.Color")
	assert.Equal(t, index.KindEnumClass, byFq["demo.app.Color"].Kind)
}

func TestExtract_KotlinSyntaxErrorKeepsRecoveredDeclarations(t *testing.T) {
	t.Parallel()
	src := "package p\n\nfun ok(): Int = 1\n\nclass Broken {\n"
	table, err := Extract(context.Background(), "Broken.kt", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "p", table.PackageName)
	assert.NotNil(t, findDecl(table.Declarations, "ok"))
}

func TestExtract_UnsupportedFile(t *testing.T) {
	t.Parallel()
	_, err := Extract(context.Background(), "README.md", []byte("# hi"))
	require.ErrorIs(t, err, ErrUnsupportedLanguage)
}

// =============================================================================
// Java
// =============================================================================

const javaSample = `package demo.widgets;

import java.util.List;
import java.util.concurrent.*;

public class Widget<T> extends Base implements Runnable, Comparable<Widget<T>> {
    public static final int MAX = 10;
    private String secret;
    int packageLocal;

    public Widget(String name) {}

    public String describe(String... parts) { return ""; }

    @Deprecated
    public void old() {}

    public static class Inner {}

    @Override
    public void run() {}
}

interface Shape {
    double area();
}

enum Mode { ON, OFF }
`

func extractJava(t *testing.T) index.SymbolTable {
	t.Helper()
	table, err := Extract(context.Background(), "src/demo/Widget.java", []byte(javaSample))
	require.NoError(t, err)
	return table
}

func TestExtract_JavaHeader(t *testing.T) {
	t.Parallel()
	table := extractJava(t)

	assert.Equal(t, "demo.widgets", table.PackageName)
	assert.Equal(t, []string{"java.util.List", "java.util.concurrent.*"}, table.Imports)
}

func TestExtract_JavaClass(t *testing.T) {
	t.Parallel()
	table := extractJava(t)

	widget := requireDecl(t, table.Declarations, "Widget")
	assert.Equal(t, index.KindClass, widget.Kind)
	assert.Equal(t, []string{"T"}, widget.TypeParameters)
	assert.Equal(t, []string{"Base", "Runnable", "Comparable<Widget<T>>"}, widget.SuperTypes)
	assert.Contains(t, widget.Modifiers, "public")

	maxField := requireDecl(t, widget.Members, "MAX")
	assert.Equal(t, index.KindProperty, maxField.Kind)
	assert.Equal(t, "Int", maxField.ReturnType)
	assert.Contains(t, maxField.Modifiers, "static")

	assert.Contains(t, requireDecl(t, widget.Members, "secret").Modifiers, "private")
	assert.Contains(t, requireDecl(t, widget.Members, "packageLocal").Modifiers, "internal")

	ctor := requireDecl(t, widget.Members, "<init>")
	assert.Equal(t, index.KindConstructor, ctor.Kind)
	assert.Equal(t, "Widget", ctor.ReturnType)
	require.Len(t, ctor.Parameters, 1)
	assert.Equal(t, "String", ctor.Parameters[0].Type)

	describe := requireDecl(t, widget.Members, "describe")
	assert.Equal(t, "String", describe.ReturnType)
	require.Len(t, describe.Parameters, 1)
	assert.True(t, describe.Parameters[0].IsVararg)
	assert.Equal(t, "parts", describe.Parameters[0].Name)

	old := requireDecl(t, widget.Members, "old")
	assert.True(t, old.Deprecated)
	assert.Equal(t, "Unit", old.ReturnType)

	inner := requireDecl(t, widget.Members, "Inner")
	assert.Equal(t, index.KindClass, inner.Kind)

	assert.NotNil(t, findDecl(widget.Members, "run"))
}

func TestExtract_JavaInterfaceAndEnum(t *testing.T) {
	t.Parallel()
	table := extractJava(t)

	shape := requireDecl(t, table.Declarations, "Shape")
	assert.Equal(t, index.KindInterface, shape.Kind)
	area := requireDecl(t, shape.Members, "area")
	assert.Equal(t, "Double", area.ReturnType)
	assert.Contains(t, area.Modifiers, "public")

	mode := requireDecl(t, table.Declarations, "Mode")
	assert.Contains(t, mode.Modifiers, "enum")
	on := requireDecl(t, mode.Members, "ON")
	assert.Equal(t, "Mode", on.ReturnType)
	assert.NotNil(t, findDecl(mode.Members, "OFF"))
}

func TestJavaType(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"int":          "Int",
		"Integer":      "Int",
		"void":         "Unit",
		"Object":       "Any",
		"byte[]":       "Array<Byte>",
		"String[][]":   "Array<Array<String>>",
		"List<String>": "List<String>",
	}
	for in, want := range tests {
		assert.Equal(t, want, javaType(in), in)
	}
}

// =============================================================================
// Script extraction
// =============================================================================

func TestExtractSource_Declare(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()
	script := `
set_package("demo")
add_import("kotlin.io.println")
cls := declare({"name": "Box", "kind": "CLASS", "modifiers": ["data"], "start_line": 3, "end_line": 5})
params := [{"name": "force", "type": "Boolean", "has_default": true}]
declare({"name": "open", "kind": "FUNCTION", "parent": cls, "return_type": "Boolean", "parameters": params})
declare({"name": "helper", "kind": "FUNCTION", "receiver_type": "String", "deprecated": true})
assert(language == "kotlin", 'language was {language}')
`
	table, err := rt.ExtractSource(context.Background(), script, "Box.kt", []byte("class Box"))
	require.NoError(t, err)

	assert.Equal(t, "Box.kt", table.FilePath)
	assert.Equal(t, "demo", table.PackageName)
	assert.Equal(t, []string{"kotlin.io.println"}, table.Imports)
	require.Len(t, table.Declarations, 2)

	box := table.Declarations[0]
	assert.Equal(t, "Box", box.Name)
	assert.Equal(t, []string{"data"}, box.Modifiers)
	require.NotNil(t, box.Span)
	assert.Equal(t, 3, box.Span.StartLine)
	require.Len(t, box.Members, 1)
	open := box.Members[0]
	assert.Equal(t, "open", open.Name)
	assert.Equal(t, "Boolean", open.ReturnType)
	assert.Equal(t, []index.Parameter{{Name: "force", Type: "Boolean", HasDefault: true}}, open.Parameters)

	helper := table.Declarations[1]
	assert.Equal(t, "String", helper.ReceiverType)
	assert.True(t, helper.Deprecated)
}

func TestExtractSource_UsesSourceGlobal(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()
	script := `
tree := parse_src(source, language)
root := tree.RootNode()
for _, m := range query("(function_declaration (simple_identifier) @name)", root) {
    declare({"name": node_text(m["name"]), "kind": "FUNCTION"})
}
`
	table, err := rt.ExtractSource(context.Background(), script, "f.kt", []byte("fun a() {}\nfun b() {}\n"))
	require.NoError(t, err)
	require.Len(t, table.Declarations, 2)
	assert.Equal(t, "a", table.Declarations[0].Name)
	assert.Equal(t, "b", table.Declarations[1].Name)
}

func TestExtractSource_Errors(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"missing name", `declare({"kind": "CLASS"})`, "name is required"},
		{"unknown parent", `declare({"name": "x", "parent": 42})`, "parent"},
		{"not a map", `declare("x")`, "declare"},
		{"compile error", `declare(`, "runtime: script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := rt.ExtractSource(context.Background(), tt.script, "x.kt", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExtractScript_LoadsFromScriptsDir(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(WithRuntimeFS(mapFSWith("extract/kotlin.risor", `declare({"name": file_path, "kind": "OBJECT"})`)))

	table, err := rt.ExtractScript(context.Background(), ExtractionScriptPath("kotlin"), "Main.kt", nil)
	require.NoError(t, err)
	require.Len(t, table.Declarations, 1)
	assert.Equal(t, "Main.kt", table.Declarations[0].Name)
	assert.Equal(t, index.KindObject, table.Declarations[0].Kind)
}
