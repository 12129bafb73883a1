package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/risor-io/risor/object"

	"github.com/jward/symdex/internal/index"
)

// tableBuilder collects what an extraction script declares. Declarations
// are kept flat with parent links and nested into a SymbolTable at the end.
// Risor cannot construct Go structs, so the host functions accept Risor
// maps with primitive values and build Declarations on the Go side.
type tableBuilder struct {
	mu      sync.Mutex
	pkg     string
	imports []string
	decls   []index.Declaration
	parents []int // -1 for top level
	err     error
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{}
}

func (b *tableBuilder) fail(err error) object.Object {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
	return object.Errorf("%s", err.Error())
}

// table assembles the collected declarations into a SymbolTable for path.
func (b *tableBuilder) table(path string) index.SymbolTable {
	b.mu.Lock()
	defer b.mu.Unlock()

	children := make([][]int, len(b.decls))
	var roots []int
	for i, p := range b.parents {
		if p < 0 {
			roots = append(roots, i)
			continue
		}
		children[p] = append(children[p], i)
	}
	var build func(i int) index.Declaration
	build = func(i int) index.Declaration {
		d := b.decls[i]
		for _, c := range children[i] {
			d.Members = append(d.Members, build(c))
		}
		return d
	}

	t := index.SymbolTable{
		FilePath:    path,
		PackageName: b.pkg,
		Imports:     append([]string(nil), b.imports...),
	}
	for _, r := range roots {
		t.Declarations = append(t.Declarations, build(r))
	}
	return t
}

// set_package(name)
func makeSetPackageFn(b *tableBuilder) *object.Builtin {
	return object.NewBuiltin("set_package", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("set_package", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return b.fail(fmt.Errorf("set_package: %w", err))
		}
		b.mu.Lock()
		b.pkg = name
		b.mu.Unlock()
		return object.Nil
	})
}

// add_import(fq_name)
func makeAddImportFn(b *tableBuilder) *object.Builtin {
	return object.NewBuiltin("add_import", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("add_import", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return b.fail(fmt.Errorf("add_import: %w", err))
		}
		b.mu.Lock()
		b.imports = append(b.imports, name)
		b.mu.Unlock()
		return object.Nil
	})
}

// declare(map) → int
//
// Keys: name, kind, modifiers, type_parameters, parameters (list of maps
// with name, type, has_default, vararg), return_type, receiver_type,
// super_types, start_line, start_col, end_line, end_col, deprecated,
// deprecation_message and parent (the id returned by an earlier declare).
func makeDeclareFn(b *tableBuilder) *object.Builtin {
	return object.NewBuiltin("declare", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("declare", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return b.fail(fmt.Errorf("declare: %w", err))
		}
		name := getString(m, "name")
		if name == "" {
			return b.fail(fmt.Errorf("declare: name is required"))
		}

		d := index.Declaration{
			Name:               name,
			Kind:               index.ParseSymbolKind(getStringDefault(m, "kind", string(index.KindClass))),
			Modifiers:          getStringList(m, "modifiers"),
			TypeParameters:     getStringList(m, "type_parameters"),
			Parameters:         getParameters(m, "parameters"),
			ReturnType:         getString(m, "return_type"),
			ReceiverType:       getString(m, "receiver_type"),
			SuperTypes:         getStringList(m, "super_types"),
			Deprecated:         getBool(m, "deprecated"),
			DeprecationMessage: getString(m, "deprecation_message"),
		}
		if line := getInt(m, "start_line"); line > 0 {
			d.Span = &index.Span{
				StartLine:   line,
				StartColumn: getInt(m, "start_col"),
				EndLine:     getInt(m, "end_line"),
				EndColumn:   getInt(m, "end_col"),
			}
		}

		b.mu.Lock()
		parent := -1
		if p, ok := getOptionalInt64(m, "parent"); ok {
			if p < 0 || int(p) >= len(b.decls) {
				b.mu.Unlock()
				return b.fail(fmt.Errorf("declare: %s: unknown parent %d", name, p))
			}
			parent = int(p)
		}
		b.decls = append(b.decls, d)
		b.parents = append(b.parents, parent)
		id := len(b.decls) - 1
		b.mu.Unlock()
		return object.NewInt(int64(id))
	})
}

// --- Map extraction helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func getOptionalInt64(m map[string]object.Object, key string) (int64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	if i, ok := v.(*object.Int); ok {
		return i.Value(), true
	}
	if f, ok := v.(*object.Float); ok {
		return int64(f.Value()), true
	}
	return 0, false
}

func getBool(m map[string]object.Object, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	if b, ok := v.(*object.Bool); ok {
		return b.Value()
	}
	return false
}

func getStringList(m map[string]object.Object, key string) []string {
	l, ok := m[key].(*object.List)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range l.Value() {
		if s, ok := item.(*object.String); ok {
			out = append(out, s.Value())
		}
	}
	return out
}

func getParameters(m map[string]object.Object, key string) []index.Parameter {
	l, ok := m[key].(*object.List)
	if !ok {
		return nil
	}
	var out []index.Parameter
	for _, item := range l.Value() {
		pm, err := extractMap(item)
		if err != nil {
			continue
		}
		out = append(out, index.Parameter{
			Name:       getString(pm, "name"),
			Type:       getString(pm, "type"),
			HasDefault: getBool(pm, "has_default"),
			IsVararg:   getBool(pm, "vararg"),
		})
	}
	return out
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
