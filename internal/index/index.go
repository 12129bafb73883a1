package index

import (
	"fmt"
	"slices"
	"strings"
)

// SymbolIndex is the read side shared by every symbol container.
type SymbolIndex interface {
	FindByFqName(fqName string) *Symbol
	FindBySimpleName(name string) []*Symbol
	FindByPackage(pkg string) []*Symbol
	// FindByPrefix matches simple names case-insensitively. A limit of 0
	// means unlimited; a negative limit panics.
	FindByPrefix(prefix string, limit int) []*Symbol
	AllClasses() []*Symbol
	AllFunctions() []*Symbol
	AllProperties() []*Symbol
	Size() int
}

// MutableSymbolIndex adds write operations.
type MutableSymbolIndex interface {
	SymbolIndex
	Add(sym *Symbol)
	Remove(fqName string)
	Clear()
}

// checkLimit panics on a negative limit. Limits come from code, not from
// untrusted input, so a negative one is a caller bug.
func checkLimit(limit int) {
	if limit < 0 {
		panic(fmt.Sprintf("index: negative limit %d", limit))
	}
}

// symbolKey identifies one entry: overloads share an fqName but differ in
// signature.
func symbolKey(s *Symbol) string {
	return s.FqName + "\x00" + s.Signature
}

// symbolSet is the primary storage used by the file, classpath and stdlib
// containers. It is not safe for concurrent use; owners guard it.
type symbolSet struct {
	order       []*Symbol
	byKey       map[string]*Symbol
	byFq        map[string]*Symbol // first symbol inserted for an fqName
	byName      map[string][]*Symbol
	byPackage   map[string][]*Symbol // top-level symbols only
	byContainer map[string][]*Symbol
}

func newSymbolSet() *symbolSet {
	return &symbolSet{
		byKey:       make(map[string]*Symbol),
		byFq:        make(map[string]*Symbol),
		byName:      make(map[string][]*Symbol),
		byPackage:   make(map[string][]*Symbol),
		byContainer: make(map[string][]*Symbol),
	}
}

// add inserts sym. When an entry with the same key exists, replace decides
// between overwriting it and keeping the first. Returns the displaced
// symbol, if any, and whether sym was stored.
func (ss *symbolSet) add(sym *Symbol, replace bool) (*Symbol, bool) {
	k := symbolKey(sym)
	if old, ok := ss.byKey[k]; ok {
		if !replace {
			return nil, false
		}
		ss.removeSymbol(old)
		ss.insert(k, sym)
		return old, true
	}
	ss.insert(k, sym)
	return nil, true
}

func (ss *symbolSet) insert(k string, sym *Symbol) {
	ss.order = append(ss.order, sym)
	ss.byKey[k] = sym
	if _, ok := ss.byFq[sym.FqName]; !ok {
		ss.byFq[sym.FqName] = sym
	}
	ss.byName[sym.Name] = append(ss.byName[sym.Name], sym)
	if sym.IsTopLevel() {
		ss.byPackage[sym.PackageName] = append(ss.byPackage[sym.PackageName], sym)
	} else {
		ss.byContainer[sym.ContainingClass] = append(ss.byContainer[sym.ContainingClass], sym)
	}
}

// removeFq drops every entry with the given fqName and returns them.
func (ss *symbolSet) removeFq(fqName string) []*Symbol {
	var removed []*Symbol
	for _, s := range ss.order {
		if s.FqName == fqName {
			removed = append(removed, s)
		}
	}
	for _, s := range removed {
		ss.removeSymbol(s)
	}
	return removed
}

func (ss *symbolSet) removeSymbol(sym *Symbol) {
	ss.order = deletePtr(ss.order, sym)
	delete(ss.byKey, symbolKey(sym))
	ss.byName[sym.Name] = deletePtr(ss.byName[sym.Name], sym)
	if len(ss.byName[sym.Name]) == 0 {
		delete(ss.byName, sym.Name)
	}
	if sym.IsTopLevel() {
		ss.byPackage[sym.PackageName] = deletePtr(ss.byPackage[sym.PackageName], sym)
		if len(ss.byPackage[sym.PackageName]) == 0 {
			delete(ss.byPackage, sym.PackageName)
		}
	} else {
		ss.byContainer[sym.ContainingClass] = deletePtr(ss.byContainer[sym.ContainingClass], sym)
		if len(ss.byContainer[sym.ContainingClass]) == 0 {
			delete(ss.byContainer, sym.ContainingClass)
		}
	}
	if ss.byFq[sym.FqName] == sym {
		delete(ss.byFq, sym.FqName)
		for _, s := range ss.order {
			if s.FqName == sym.FqName {
				ss.byFq[sym.FqName] = s
				break
			}
		}
	}
}

func (ss *symbolSet) findByFq(fqName string) *Symbol {
	return ss.byFq[fqName]
}

func (ss *symbolSet) findByName(name string) []*Symbol {
	return slices.Clone(ss.byName[name])
}

func (ss *symbolSet) findByPackage(pkg string) []*Symbol {
	return slices.Clone(ss.byPackage[pkg])
}

func (ss *symbolSet) members(classFq string) []*Symbol {
	return slices.Clone(ss.byContainer[classFq])
}

func (ss *symbolSet) findByPrefix(prefix string, limit int) []*Symbol {
	checkLimit(limit)
	return matchPrefix(ss.order, prefix, limit)
}

func (ss *symbolSet) filter(keep func(*Symbol) bool) []*Symbol {
	var out []*Symbol
	for _, s := range ss.order {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (ss *symbolSet) all() []*Symbol {
	return slices.Clone(ss.order)
}

func (ss *symbolSet) size() int {
	return len(ss.order)
}

func (ss *symbolSet) packages() []string {
	out := make([]string, 0, len(ss.byPackage))
	for pkg := range ss.byPackage {
		out = append(out, pkg)
	}
	slices.Sort(out)
	return out
}

// matchPrefix returns symbols whose simple name starts with prefix, ignoring
// case, stopping at limit when limit > 0.
func matchPrefix(syms []*Symbol, prefix string, limit int) []*Symbol {
	lower := strings.ToLower(prefix)
	var out []*Symbol
	for _, s := range syms {
		if strings.HasPrefix(strings.ToLower(s.Name), lower) {
			out = append(out, s)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

func isClassSymbol(s *Symbol) bool    { return s.Kind.IsClass() }
func isFunctionSymbol(s *Symbol) bool { return s.Kind == KindFunction }
func isPropertySymbol(s *Symbol) bool { return s.Kind == KindProperty }

func deletePtr(list []*Symbol, sym *Symbol) []*Symbol {
	return slices.DeleteFunc(list, func(s *Symbol) bool { return s == sym })
}

// dedupe keeps the first symbol per fqName across several result lists.
type dedupe struct {
	seen map[string]bool
	out  []*Symbol
}

func newDedupe() *dedupe {
	return &dedupe{seen: make(map[string]bool)}
}

func (d *dedupe) add(syms ...*Symbol) {
	for _, s := range syms {
		if s == nil || d.seen[s.FqName] {
			continue
		}
		d.seen[s.FqName] = true
		d.out = append(d.out, s)
	}
}

// full reports whether limit results have been collected.
func (d *dedupe) full(limit int) bool {
	return limit > 0 && len(d.out) >= limit
}

func (d *dedupe) result(limit int) []*Symbol {
	if limit > 0 && len(d.out) > limit {
		return d.out[:limit]
	}
	return d.out
}
