package symdex

import "github.com/jward/symdex/internal/index"

// Public type aliases for the index types used in the Session API. These
// are Go type aliases (=), identical to the internal types at compile time.

type Symbol = index.Symbol
type SymbolKind = index.SymbolKind
type Visibility = index.Visibility
type Parameter = index.Parameter
type Span = index.Span
type SymbolTable = index.SymbolTable
type Declaration = index.Declaration
type IndexQuery = index.IndexQuery
type ProjectIndex = index.ProjectIndex
type DependencyTracker = index.DependencyTracker
type IndexData = index.IndexData
type StdlibIndexData = index.StdlibIndexData

const (
	KindClass           = index.KindClass
	KindInterface       = index.KindInterface
	KindObject          = index.KindObject
	KindEnumClass       = index.KindEnumClass
	KindAnnotationClass = index.KindAnnotationClass
	KindDataClass       = index.KindDataClass
	KindValueClass      = index.KindValueClass
	KindFunction        = index.KindFunction
	KindProperty        = index.KindProperty
	KindTypeAlias       = index.KindTypeAlias
	KindConstructor     = index.KindConstructor
)
