package index

import "slices"

// IndexQuery describes a lookup plus a post-filter. Exactly one of the
// lookup fields is normally set; they are consulted in the order FqName,
// Receiver, Name, Package, Prefix. With none set, every class, function and
// property is a candidate.
type IndexQuery struct {
	FqName   string
	Receiver string
	// Supertypes and IncludeAny refine Receiver lookups.
	Supertypes []string
	IncludeAny bool
	Name       string
	Package    string
	Prefix     string

	Kinds             []SymbolKind // empty means any kind
	IncludeDeprecated bool
	IncludeInternal   bool
	Limit             int // 0 means unlimited
}

// Matches reports whether sym passes the query's filters.
func (q IndexQuery) Matches(sym *Symbol) bool {
	if len(q.Kinds) > 0 && !slices.Contains(q.Kinds, sym.Kind) {
		return false
	}
	if sym.Deprecated && !q.IncludeDeprecated {
		return false
	}
	if !q.IncludeInternal && !sym.IsPublicAPI() {
		return false
	}
	return true
}

// Query runs q against the project index.
func (p *ProjectIndex) Query(q IndexQuery) []*Symbol {
	checkLimit(q.Limit)

	var candidates []*Symbol
	switch {
	case q.FqName != "":
		if s := p.FindByFqName(q.FqName); s != nil {
			candidates = []*Symbol{s}
		}
	case q.Receiver != "":
		candidates = p.FindExtensions(q.Receiver, q.Supertypes, q.IncludeAny)
	case q.Name != "":
		candidates = p.FindBySimpleName(q.Name)
	case q.Package != "":
		candidates = p.FindByPackage(q.Package)
	case q.Prefix != "":
		candidates = p.FindByPrefix(q.Prefix, 0)
	default:
		d := newDedupe()
		d.add(p.AllClasses()...)
		d.add(p.AllFunctions()...)
		d.add(p.AllProperties()...)
		candidates = d.out
	}

	var out []*Symbol
	for _, s := range candidates {
		if !q.Matches(s) {
			continue
		}
		out = append(out, s)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}
