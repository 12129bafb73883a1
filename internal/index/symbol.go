package index

import (
	"strings"
)

// SymbolKind is the closed set of declaration kinds the index understands.
type SymbolKind string

const (
	KindClass           SymbolKind = "CLASS"
	KindInterface       SymbolKind = "INTERFACE"
	KindObject          SymbolKind = "OBJECT"
	KindEnumClass       SymbolKind = "ENUM_CLASS"
	KindAnnotationClass SymbolKind = "ANNOTATION_CLASS"
	KindDataClass       SymbolKind = "DATA_CLASS"
	KindValueClass      SymbolKind = "VALUE_CLASS"
	KindFunction        SymbolKind = "FUNCTION"
	KindProperty        SymbolKind = "PROPERTY"
	KindTypeAlias       SymbolKind = "TYPE_ALIAS"
	KindConstructor     SymbolKind = "CONSTRUCTOR"
)

// AllKinds lists every SymbolKind in declaration order.
var AllKinds = []SymbolKind{
	KindClass, KindInterface, KindObject, KindEnumClass, KindAnnotationClass,
	KindDataClass, KindValueClass, KindFunction, KindProperty, KindTypeAlias,
	KindConstructor,
}

// IsClass reports whether the kind declares a classifier.
func (k SymbolKind) IsClass() bool {
	switch k {
	case KindClass, KindInterface, KindObject, KindEnumClass,
		KindAnnotationClass, KindDataClass, KindValueClass:
		return true
	}
	return false
}

// IsCallable reports whether the kind can be invoked.
func (k SymbolKind) IsCallable() bool {
	return k == KindFunction || k == KindConstructor
}

// ParseSymbolKind parses a kind name. Unknown names fall back to CLASS so
// that snapshots written by newer tools still load.
func ParseSymbolKind(s string) SymbolKind {
	k := SymbolKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllKinds {
		if k == known {
			return k
		}
	}
	return KindClass
}

// Visibility of a declaration.
type Visibility string

const (
	Public    Visibility = "PUBLIC"
	Protected Visibility = "PROTECTED"
	Internal  Visibility = "INTERNAL"
	Private   Visibility = "PRIVATE"
)

// ParseVisibility parses a visibility name, defaulting to PUBLIC.
func ParseVisibility(s string) Visibility {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case Public, Protected, Internal, Private:
		return v
	}
	return Public
}

// Parameter is one value parameter of a callable.
type Parameter struct {
	Name       string
	Type       string
	HasDefault bool
	IsVararg   bool
}

// Span is a source range, 1-based lines and 0-based columns. Lines start
// at 1, so the all-zero Span is not a real range: snapshots and the cache
// store it as "no span" and it decodes back to a nil *Span.
type Span struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Symbol is one indexed declaration. Symbols are immutable once built: the
// owning index and every secondary index share the same pointer, and an
// update replaces the pointer instead of editing fields.
type Symbol struct {
	Name            string
	FqName          string
	Kind            SymbolKind
	PackageName     string
	ContainingClass string // empty for top-level declarations
	Visibility      Visibility
	Signature       string
	TypeParameters  []string
	Parameters      []Parameter
	ReturnType      string
	ReceiverType    string // non-empty only for extensions
	SuperTypes      []string
	FilePath        string
	Span            *Span

	Deprecated         bool
	DeprecationMessage string
}

// IsTopLevel reports whether the symbol is declared outside any class.
func (s *Symbol) IsTopLevel() bool { return s.ContainingClass == "" }

// IsExtension reports whether the symbol has a receiver type.
func (s *Symbol) IsExtension() bool { return s.ReceiverType != "" }

// IsPublicAPI reports whether the symbol is visible outside its module.
func (s *Symbol) IsPublicAPI() bool {
	return s.Visibility == Public || s.Visibility == Protected
}

// DisplayString renders the symbol roughly as it would be declared.
func (s *Symbol) DisplayString() string {
	var b strings.Builder
	switch s.Kind {
	case KindFunction:
		b.WriteString("fun ")
		if len(s.TypeParameters) > 0 {
			writeTypeParams(&b, s.TypeParameters)
			b.WriteByte(' ')
		}
		if s.ReceiverType != "" {
			b.WriteString(s.ReceiverType)
			b.WriteByte('.')
		}
		b.WriteString(s.Name)
		writeParams(&b, s.Parameters)
		if s.ReturnType != "" {
			b.WriteString(": ")
			b.WriteString(s.ReturnType)
		}
	case KindConstructor:
		b.WriteString("constructor")
		writeParams(&b, s.Parameters)
	case KindProperty:
		b.WriteString("val ")
		if s.ReceiverType != "" {
			b.WriteString(s.ReceiverType)
			b.WriteByte('.')
		}
		b.WriteString(s.Name)
		if s.ReturnType != "" {
			b.WriteString(": ")
			b.WriteString(s.ReturnType)
		}
	case KindTypeAlias:
		b.WriteString("typealias ")
		b.WriteString(s.Name)
		writeTypeParams(&b, s.TypeParameters)
		if s.ReturnType != "" {
			b.WriteString(" = ")
			b.WriteString(s.ReturnType)
		}
	default:
		b.WriteString(kindKeyword(s.Kind))
		b.WriteByte(' ')
		b.WriteString(s.Name)
		writeTypeParams(&b, s.TypeParameters)
		if len(s.SuperTypes) > 0 {
			b.WriteString(" : ")
			b.WriteString(strings.Join(s.SuperTypes, ", "))
		}
	}
	return b.String()
}

func kindKeyword(k SymbolKind) string {
	switch k {
	case KindInterface:
		return "interface"
	case KindObject:
		return "object"
	case KindEnumClass:
		return "enum class"
	case KindAnnotationClass:
		return "annotation class"
	case KindDataClass:
		return "data class"
	case KindValueClass:
		return "value class"
	}
	return "class"
}

func writeTypeParams(b *strings.Builder, tps []string) {
	if len(tps) == 0 {
		return
	}
	b.WriteByte('<')
	b.WriteString(strings.Join(tps, ", "))
	b.WriteByte('>')
}

func writeParams(b *strings.Builder, params []Parameter) {
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.IsVararg {
			b.WriteString("vararg ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Type)
		if p.HasDefault {
			b.WriteString(" = ...")
		}
	}
	b.WriteByte(')')
}

// simpleNameFromFq returns the segment after the last dot.
func simpleNameFromFq(fq string) string {
	if i := strings.LastIndexByte(fq, '.'); i >= 0 {
		return fq[i+1:]
	}
	return fq
}

// packageFromFq returns everything before the last dot.
func packageFromFq(fq string) string {
	if i := strings.LastIndexByte(fq, '.'); i >= 0 {
		return fq[:i]
	}
	return ""
}
