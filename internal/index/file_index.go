package index

import (
	"slices"
	"strings"
	"sync"
)

// SymbolTable is the per-file input produced by a source parser. It is the
// only way project code enters the index.
type SymbolTable struct {
	FilePath     string
	PackageName  string
	Imports      []string
	Declarations []Declaration
}

// Declaration is one declaration in a SymbolTable. Members holds
// declarations nested in a class body.
type Declaration struct {
	Name           string
	Kind           SymbolKind
	Modifiers      []string
	TypeParameters []string
	Parameters     []Parameter
	ReturnType     string
	ReceiverType   string
	SuperTypes     []string
	Span           *Span

	Deprecated         bool
	DeprecationMessage string

	Members []Declaration
}

// FileIndex holds the symbols declared in one source file.
type FileIndex struct {
	path    string
	pkg     string
	imports []string

	mu   sync.RWMutex
	syms *symbolSet
}

var _ MutableSymbolIndex = (*FileIndex)(nil)

// NewFileIndex returns an empty FileIndex for path.
func NewFileIndex(path, pkg string) *FileIndex {
	return &FileIndex{path: path, pkg: pkg, syms: newSymbolSet()}
}

// FromSymbolTable builds a FileIndex from a parsed symbol table.
func FromSymbolTable(table SymbolTable) *FileIndex {
	fi := NewFileIndex(table.FilePath, table.PackageName)
	fi.imports = slices.Clone(table.Imports)
	for _, d := range table.Declarations {
		fi.addDeclaration(d, "")
	}
	return fi
}

func (fi *FileIndex) addDeclaration(d Declaration, container string) {
	fq := qualify(fi.pkg, d.Name)
	if container != "" {
		fq = container + "." + d.Name
	}
	kind := refineKind(d.Kind, d.Modifiers)
	sym := &Symbol{
		Name:               d.Name,
		FqName:             fq,
		Kind:               kind,
		PackageName:        fi.pkg,
		ContainingClass:    container,
		Visibility:         visibilityFromModifiers(d.Modifiers),
		Signature:          sourceSignature(d),
		TypeParameters:     slices.Clone(d.TypeParameters),
		Parameters:         slices.Clone(d.Parameters),
		ReturnType:         d.ReturnType,
		ReceiverType:       d.ReceiverType,
		SuperTypes:         slices.Clone(d.SuperTypes),
		FilePath:           fi.path,
		Span:               d.Span,
		Deprecated:         d.Deprecated,
		DeprecationMessage: d.DeprecationMessage,
	}
	fi.syms.add(sym, true)
	for _, m := range d.Members {
		fi.addDeclaration(m, fq)
	}
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func refineKind(kind SymbolKind, mods []string) SymbolKind {
	if kind != KindClass {
		return kind
	}
	for _, m := range mods {
		switch m {
		case "data":
			return KindDataClass
		case "value", "inline":
			return KindValueClass
		case "enum":
			return KindEnumClass
		case "annotation":
			return KindAnnotationClass
		}
	}
	return kind
}

func visibilityFromModifiers(mods []string) Visibility {
	for _, m := range mods {
		switch m {
		case "private":
			return Private
		case "protected":
			return Protected
		case "internal":
			return Internal
		case "public":
			return Public
		}
	}
	return Public
}

// sourceSignature renders a callable as "(T1,T2)R" so overloads get
// distinct keys. Non-callables have an empty signature.
func sourceSignature(d Declaration) string {
	if !d.Kind.IsCallable() {
		return ""
	}
	types := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		types[i] = p.Type
	}
	sig := "(" + strings.Join(types, ",") + ")" + d.ReturnType
	if d.ReceiverType != "" {
		sig = d.ReceiverType + "." + sig
	}
	return sig
}

// Path returns the file path this index describes.
func (fi *FileIndex) Path() string { return fi.path }

// PackageName returns the file's package.
func (fi *FileIndex) PackageName() string { return fi.pkg }

// Imports returns the file's import directives.
func (fi *FileIndex) Imports() []string { return slices.Clone(fi.imports) }

func (fi *FileIndex) Add(sym *Symbol) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.syms.add(sym, true)
}

func (fi *FileIndex) Remove(fqName string) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.syms.removeFq(fqName)
}

func (fi *FileIndex) Clear() {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.syms = newSymbolSet()
}

func (fi *FileIndex) FindByFqName(fqName string) *Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.findByFq(fqName)
}

func (fi *FileIndex) FindBySimpleName(name string) []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.findByName(name)
}

func (fi *FileIndex) FindByPackage(pkg string) []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.findByPackage(pkg)
}

func (fi *FileIndex) FindByPrefix(prefix string, limit int) []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.findByPrefix(prefix, limit)
}

func (fi *FileIndex) AllClasses() []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.filter(isClassSymbol)
}

func (fi *FileIndex) AllFunctions() []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.filter(isFunctionSymbol)
}

func (fi *FileIndex) AllProperties() []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.filter(isPropertySymbol)
}

func (fi *FileIndex) Size() int {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.size()
}

// All returns every symbol in declaration order.
func (fi *FileIndex) All() []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.all()
}

// TopLevelSymbols returns symbols not nested in a class.
func (fi *FileIndex) TopLevelSymbols() []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.filter((*Symbol).IsTopLevel)
}

// Extensions returns symbols that declare a receiver type.
func (fi *FileIndex) Extensions() []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.filter((*Symbol).IsExtension)
}

// FindMembers returns the members declared directly in classFq.
func (fi *FileIndex) FindMembers(classFq string) []*Symbol {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.syms.members(classFq)
}
