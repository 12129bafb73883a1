package index

import (
	"slices"
	"sync"
)

// ClasspathIndex holds symbols read from compiled dependencies. Entries are
// keyed by fqName plus signature and the first one added wins, so
// re-adding an archive never overwrites symbols from an earlier one.
type ClasspathIndex struct {
	mu         sync.RWMutex
	syms       *symbolSet
	extensions *ExtensionIndex
	seen       map[string]bool
}

var _ MutableSymbolIndex = (*ClasspathIndex)(nil)

// NewClasspathIndex returns an empty ClasspathIndex.
func NewClasspathIndex() *ClasspathIndex {
	return &ClasspathIndex{
		syms:       newSymbolSet(),
		extensions: NewExtensionIndex(),
		seen:       make(map[string]bool),
	}
}

func (c *ClasspathIndex) Add(sym *Symbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(sym)
}

// AddAll adds syms under a single lock acquisition.
func (c *ClasspathIndex) AddAll(syms []*Symbol) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, s := range syms {
		if c.addLocked(s) {
			added++
		}
	}
	return added
}

func (c *ClasspathIndex) addLocked(sym *Symbol) bool {
	if _, ok := c.syms.add(sym, false); !ok {
		return false
	}
	c.extensions.Add(sym)
	return true
}

func (c *ClasspathIndex) Remove(fqName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.syms.removeFq(fqName) {
		c.extensions.Remove(s)
	}
}

func (c *ClasspathIndex) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syms = newSymbolSet()
	c.extensions.Clear()
	c.seen = make(map[string]bool)
}

// MarkSeen records source as indexed.
func (c *ClasspathIndex) MarkSeen(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[source] = true
}

// HasSeen reports whether source was already indexed.
func (c *ClasspathIndex) HasSeen(source string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seen[source]
}

// SeenSources returns the indexed archive and directory paths, sorted.
func (c *ClasspathIndex) SeenSources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.seen))
	for s := range c.seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Merge copies other's symbols and seen sources into c.
func (c *ClasspathIndex) Merge(other *ClasspathIndex) {
	syms := other.All()
	sources := other.SeenSources()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range syms {
		c.addLocked(s)
	}
	for _, src := range sources {
		c.seen[src] = true
	}
}

func (c *ClasspathIndex) FindByFqName(fqName string) *Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.findByFq(fqName)
}

func (c *ClasspathIndex) FindBySimpleName(name string) []*Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.findByName(name)
}

func (c *ClasspathIndex) FindByPackage(pkg string) []*Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.findByPackage(pkg)
}

func (c *ClasspathIndex) FindByPrefix(prefix string, limit int) []*Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.findByPrefix(prefix, limit)
}

func (c *ClasspathIndex) AllClasses() []*Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.filter(isClassSymbol)
}

func (c *ClasspathIndex) AllFunctions() []*Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.filter(isFunctionSymbol)
}

func (c *ClasspathIndex) AllProperties() []*Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.filter(isPropertySymbol)
}

// All returns every symbol in insertion order.
func (c *ClasspathIndex) All() []*Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.all()
}

func (c *ClasspathIndex) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.size()
}

// FindMembers returns members declared in classFq.
func (c *ClasspathIndex) FindMembers(classFq string) []*Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.members(classFq)
}

// FindExtensions returns classpath extensions applicable to receiverType.
func (c *ClasspathIndex) FindExtensions(receiverType string, supertypes []string, includeAny bool) []*Symbol {
	return c.extensions.FindFor(receiverType, supertypes, includeAny)
}

// Packages returns every package holding top-level symbols.
func (c *ClasspathIndex) Packages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syms.packages()
}

// HasPackage reports whether pkg holds any top-level symbol.
func (c *ClasspathIndex) HasPackage(pkg string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.syms.byPackage[pkg]
	return ok
}

// Subpackages returns the direct children of parent.
func (c *ClasspathIndex) Subpackages(parent string) []string {
	return subpackagesOf(c.Packages(), parent)
}
