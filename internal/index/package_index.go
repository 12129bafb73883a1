package index

import (
	"slices"
	"strings"
	"sync"
)

// PackageIndex groups top-level symbols by package. It holds the same
// pointers as the owning FileIndex, so removal is by identity.
type PackageIndex struct {
	mu        sync.RWMutex
	order     []*Symbol
	byFq      map[string][]*Symbol
	byPackage map[string][]*Symbol
}

var _ MutableSymbolIndex = (*PackageIndex)(nil)

// NewPackageIndex returns an empty PackageIndex.
func NewPackageIndex() *PackageIndex {
	return &PackageIndex{
		byFq:      make(map[string][]*Symbol),
		byPackage: make(map[string][]*Symbol),
	}
}

func (p *PackageIndex) Add(sym *Symbol) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(sym)
}

func (p *PackageIndex) addLocked(sym *Symbol) {
	p.order = append(p.order, sym)
	p.byFq[sym.FqName] = append(p.byFq[sym.FqName], sym)
	p.byPackage[sym.PackageName] = append(p.byPackage[sym.PackageName], sym)
}

// Remove drops every symbol with fqName.
func (p *PackageIndex) Remove(fqName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range slices.Clone(p.byFq[fqName]) {
		p.removeLocked(s)
	}
}

// RemoveSymbols drops exactly the given pointers.
func (p *PackageIndex) RemoveSymbols(syms []*Symbol) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range syms {
		p.removeLocked(s)
	}
}

// Replace drops the old pointers and adds the new symbols under one lock,
// so readers see either the old set or the new one.
func (p *PackageIndex) Replace(old, next []*Symbol) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range old {
		p.removeLocked(s)
	}
	for _, s := range next {
		p.addLocked(s)
	}
}

func (p *PackageIndex) removeLocked(sym *Symbol) {
	if !slices.Contains(p.byFq[sym.FqName], sym) {
		return
	}
	p.order = deletePtr(p.order, sym)
	p.byFq[sym.FqName] = deletePtr(p.byFq[sym.FqName], sym)
	if len(p.byFq[sym.FqName]) == 0 {
		delete(p.byFq, sym.FqName)
	}
	p.byPackage[sym.PackageName] = deletePtr(p.byPackage[sym.PackageName], sym)
	if len(p.byPackage[sym.PackageName]) == 0 {
		delete(p.byPackage, sym.PackageName)
	}
}

func (p *PackageIndex) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = nil
	p.byFq = make(map[string][]*Symbol)
	p.byPackage = make(map[string][]*Symbol)
}

func (p *PackageIndex) FindByFqName(fqName string) *Symbol {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if list := p.byFq[fqName]; len(list) > 0 {
		return list[0]
	}
	return nil
}

func (p *PackageIndex) FindBySimpleName(name string) []*Symbol {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Symbol
	for _, s := range p.order {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func (p *PackageIndex) FindByPackage(pkg string) []*Symbol {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.byPackage[pkg])
}

func (p *PackageIndex) FindByPrefix(prefix string, limit int) []*Symbol {
	checkLimit(limit)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return matchPrefix(p.order, prefix, limit)
}

func (p *PackageIndex) AllClasses() []*Symbol    { return p.filter(isClassSymbol) }
func (p *PackageIndex) AllFunctions() []*Symbol  { return p.filter(isFunctionSymbol) }
func (p *PackageIndex) AllProperties() []*Symbol { return p.filter(isPropertySymbol) }

func (p *PackageIndex) filter(keep func(*Symbol) bool) []*Symbol {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Symbol
	for _, s := range p.order {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (p *PackageIndex) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// Packages returns every package name, sorted.
func (p *PackageIndex) Packages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.byPackage))
	for pkg := range p.byPackage {
		out = append(out, pkg)
	}
	slices.Sort(out)
	return out
}

// HasPackage reports whether any symbol lives in pkg.
func (p *PackageIndex) HasPackage(pkg string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byPackage[pkg]
	return ok
}

// Subpackages returns the direct children of parent, fully qualified.
// An empty parent yields the root packages.
func (p *PackageIndex) Subpackages(parent string) []string {
	return subpackagesOf(p.Packages(), parent)
}

// RootPackages returns the first segment of every package.
func (p *PackageIndex) RootPackages() []string {
	return subpackagesOf(p.Packages(), "")
}

// PackagesWithPrefix returns all symbols whose package starts with prefix.
func (p *PackageIndex) PackagesWithPrefix(prefix string) []*Symbol {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Symbol
	for _, s := range p.order {
		if strings.HasPrefix(s.PackageName, prefix) {
			out = append(out, s)
		}
	}
	return out
}

func subpackagesOf(packages []string, parent string) []string {
	prefix := ""
	if parent != "" {
		prefix = parent + "."
	}
	seen := make(map[string]bool)
	var out []string
	for _, pkg := range packages {
		if pkg == parent || pkg == "" || !strings.HasPrefix(pkg, prefix) {
			continue
		}
		rest := strings.TrimPrefix(pkg, prefix)
		if i := strings.IndexByte(rest, '.'); i >= 0 {
			rest = rest[:i]
		}
		child := rest
		if parent != "" {
			child = parent + "." + rest
		}
		if !seen[child] {
			seen[child] = true
			out = append(out, child)
		}
	}
	return out
}
