package index

import (
	"sync"
)

// StdlibIndex holds the standard library symbols loaded from a snapshot.
// Overloads are kept; FindByFqName returns the first one loaded.
type StdlibIndex struct {
	version       string
	kotlinVersion string

	mu         sync.RWMutex
	syms       *symbolSet
	extensions *ExtensionIndex
}

var _ SymbolIndex = (*StdlibIndex)(nil)

// NewStdlibIndex returns an empty StdlibIndex.
func NewStdlibIndex(version, kotlinVersion string) *StdlibIndex {
	return &StdlibIndex{
		version:       version,
		kotlinVersion: kotlinVersion,
		syms:          newSymbolSet(),
		extensions:    NewExtensionIndex(),
	}
}

// EmptyStdlib returns a StdlibIndex with no symbols.
func EmptyStdlib() *StdlibIndex {
	return NewStdlibIndex("0.0", "unknown")
}

func (x *StdlibIndex) Version() string       { return x.version }
func (x *StdlibIndex) KotlinVersion() string { return x.kotlinVersion }

// AddAll loads syms. Used while building an index from a snapshot.
func (x *StdlibIndex) AddAll(syms []*Symbol) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, s := range syms {
		if _, ok := x.syms.add(s, false); ok {
			x.extensions.Add(s)
		}
	}
}

func (x *StdlibIndex) FindByFqName(fqName string) *Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.findByFq(fqName)
}

func (x *StdlibIndex) FindBySimpleName(name string) []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.findByName(name)
}

func (x *StdlibIndex) FindByPackage(pkg string) []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.findByPackage(pkg)
}

func (x *StdlibIndex) FindByPrefix(prefix string, limit int) []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.findByPrefix(prefix, limit)
}

func (x *StdlibIndex) AllClasses() []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.filter(isClassSymbol)
}

func (x *StdlibIndex) AllFunctions() []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.filter(isFunctionSymbol)
}

func (x *StdlibIndex) AllProperties() []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.filter(isPropertySymbol)
}

// All returns every symbol in load order.
func (x *StdlibIndex) All() []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.all()
}

func (x *StdlibIndex) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.size()
}

// FindExtensions returns stdlib extensions applicable to receiverType.
func (x *StdlibIndex) FindExtensions(receiverType string, supertypes []string, includeAny bool) []*Symbol {
	return x.extensions.FindFor(receiverType, supertypes, includeAny)
}

// FindExtensionsByName returns extensions with the given simple name.
func (x *StdlibIndex) FindExtensionsByName(name string) []*Symbol {
	return x.extensions.FindByName(name)
}

// ExtensionReceiverTypes returns the normalized receiver keys.
func (x *StdlibIndex) ExtensionReceiverTypes() []string {
	return x.extensions.ReceiverTypes()
}

// FindMembers returns members declared in classFq.
func (x *StdlibIndex) FindMembers(classFq string) []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.members(classFq)
}

// Packages returns every package holding top-level symbols.
func (x *StdlibIndex) Packages() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.syms.packages()
}

// HasPackage reports whether pkg holds any top-level symbol.
func (x *StdlibIndex) HasPackage(pkg string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.syms.byPackage[pkg]
	return ok
}

// Subpackages returns the direct children of parent.
func (x *StdlibIndex) Subpackages(parent string) []string {
	return subpackagesOf(x.Packages(), parent)
}

var (
	commonClassNames = []string{
		"kotlin.String", "kotlin.Int", "kotlin.Boolean", "kotlin.Long",
		"kotlin.Double", "kotlin.Float", "kotlin.Any", "kotlin.Unit",
		"kotlin.collections.List", "kotlin.collections.Map", "kotlin.collections.Set",
		"kotlin.collections.MutableList", "kotlin.collections.MutableMap",
		"kotlin.Pair", "kotlin.Triple",
	}
	commonFunctionNames = []string{
		"println", "print", "listOf", "mapOf", "setOf",
		"mutableListOf", "mutableMapOf", "mutableSetOf",
		"arrayOf", "emptyList", "emptyMap", "emptySet",
		"to", "let", "run", "with", "apply", "also",
		"takeIf", "takeUnless", "repeat", "require", "check",
	}
)

// CommonSymbols returns frequently completed classes and functions, in a
// fixed order. Names missing from the index are skipped.
func (x *StdlibIndex) CommonSymbols() []*Symbol {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []*Symbol
	for _, fq := range commonClassNames {
		if s := x.syms.findByFq(fq); s != nil {
			out = append(out, s)
		}
	}
	for _, name := range commonFunctionNames {
		if list := x.syms.byName[name]; len(list) > 0 {
			out = append(out, list[0])
		}
	}
	return out
}

// MinimalStdlib returns a small built-in index with the core Kotlin types,
// collections and scope functions. It is used when no snapshot is
// configured.
func MinimalStdlib() *StdlibIndex {
	idx := NewStdlibIndex("minimal", "2.0")
	var syms []*Symbol

	for _, name := range []string{"Int", "Long", "Short", "Byte", "Float", "Double", "Boolean", "Char"} {
		syms = append(syms, stdClass(name, "kotlin", KindClass, nil,
			"kotlin.Number", "kotlin.Comparable<kotlin."+name+">"))
	}
	syms = append(syms,
		stdClass("Any", "kotlin", KindClass, nil),
		stdClass("Nothing", "kotlin", KindClass, nil),
		stdClass("Unit", "kotlin", KindObject, nil),
		stdClass("String", "kotlin", KindClass, nil, "kotlin.Comparable<kotlin.String>", "kotlin.CharSequence"),
		stdClass("CharSequence", "kotlin", KindInterface, nil),
		stdClass("Comparable", "kotlin", KindInterface, []string{"T"}),
		stdClass("Number", "kotlin", KindClass, nil),
		stdClass("Throwable", "kotlin", KindClass, nil),
		stdClass("Exception", "kotlin", KindClass, nil, "kotlin.Throwable"),
	)
	collections := []struct {
		name string
		tps  []string
	}{
		{"Iterable", []string{"T"}},
		{"Collection", []string{"E"}},
		{"List", []string{"E"}},
		{"Set", []string{"E"}},
		{"Map", []string{"K", "V"}},
		{"MutableIterable", []string{"T"}},
		{"MutableCollection", []string{"E"}},
		{"MutableList", []string{"E"}},
		{"MutableSet", []string{"E"}},
		{"MutableMap", []string{"K", "V"}},
		{"Sequence", []string{"T"}},
	}
	for _, c := range collections {
		syms = append(syms, stdClass(c.name, "kotlin.collections", KindInterface, c.tps))
	}
	syms = append(syms,
		stdClass("Pair", "kotlin", KindDataClass, []string{"A", "B"}),
		stdClass("Triple", "kotlin", KindDataClass, []string{"A", "B", "C"}),
	)

	syms = append(syms,
		stdFunc("println", "kotlin.io", nil, "", "Unit", Parameter{Name: "message", Type: "Any?", HasDefault: true}),
		stdFunc("print", "kotlin.io", nil, "", "Unit", Parameter{Name: "message", Type: "Any?"}),
	)
	creators := []struct{ name, ret string }{
		{"listOf", "List<T>"},
		{"mutableListOf", "MutableList<T>"},
		{"setOf", "Set<T>"},
		{"mutableSetOf", "MutableSet<T>"},
		{"arrayOf", "Array<T>"},
		{"emptyList", "List<T>"},
		{"emptySet", "Set<T>"},
		{"emptyMap", "Map<K, V>"},
	}
	for _, c := range creators {
		tps := []string{"T"}
		if c.name == "emptyMap" {
			tps = []string{"K", "V"}
		}
		syms = append(syms, stdFunc(c.name, "kotlin.collections", tps, "", c.ret,
			Parameter{Name: "elements", Type: "T", IsVararg: true}))
	}
	syms = append(syms,
		stdFunc("mapOf", "kotlin.collections", []string{"K", "V"}, "", "Map<K, V>",
			Parameter{Name: "pairs", Type: "Pair<K, V>", IsVararg: true}),
		stdFunc("mutableMapOf", "kotlin.collections", []string{"K", "V"}, "", "MutableMap<K, V>",
			Parameter{Name: "pairs", Type: "Pair<K, V>", IsVararg: true}),

		stdFunc("let", "kotlin", []string{"T", "R"}, "T", "R", Parameter{Name: "block", Type: "(T) -> R"}),
		stdFunc("run", "kotlin", []string{"T", "R"}, "T", "R", Parameter{Name: "block", Type: "T.() -> R"}),
		stdFunc("with", "kotlin", []string{"T", "R"}, "", "R",
			Parameter{Name: "receiver", Type: "T"}, Parameter{Name: "block", Type: "T.() -> R"}),
		stdFunc("apply", "kotlin", []string{"T"}, "T", "T", Parameter{Name: "block", Type: "T.() -> Unit"}),
		stdFunc("also", "kotlin", []string{"T"}, "T", "T", Parameter{Name: "block", Type: "(T) -> Unit"}),
		stdFunc("takeIf", "kotlin", []string{"T"}, "T", "T?", Parameter{Name: "predicate", Type: "(T) -> Boolean"}),
		stdFunc("takeUnless", "kotlin", []string{"T"}, "T", "T?", Parameter{Name: "predicate", Type: "(T) -> Boolean"}),
		stdFunc("to", "kotlin", []string{"A", "B"}, "A", "Pair<A, B>", Parameter{Name: "that", Type: "B"}),
	)

	idx.AddAll(syms)
	return idx
}

func stdClass(name, pkg string, kind SymbolKind, tps []string, supers ...string) *Symbol {
	return &Symbol{
		Name:           name,
		FqName:         pkg + "." + name,
		Kind:           kind,
		PackageName:    pkg,
		Visibility:     Public,
		TypeParameters: tps,
		SuperTypes:     supers,
	}
}

func stdFunc(name, pkg string, tps []string, receiver, ret string, params ...Parameter) *Symbol {
	return &Symbol{
		Name:           name,
		FqName:         pkg + "." + name,
		Kind:           KindFunction,
		PackageName:    pkg,
		Visibility:     Public,
		TypeParameters: tps,
		Parameters:     params,
		ReturnType:     ret,
		ReceiverType:   receiver,
	}
}
