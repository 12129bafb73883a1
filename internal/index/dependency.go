package index

import (
	"fmt"
	"slices"
	"sync"
)

// DependencyTracker records which files use which symbols, in both
// directions. One mutex guards both maps, so every edge is visible on both
// sides or on neither.
type DependencyTracker struct {
	mu         sync.RWMutex
	dependsOn  map[string]map[string]bool // file -> symbol fqNames
	dependedBy map[string]map[string]bool // symbol fqName -> files
}

// NewDependencyTracker returns an empty tracker.
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		dependsOn:  make(map[string]map[string]bool),
		dependedBy: make(map[string]map[string]bool),
	}
}

// AddDependency records that file uses symbol.
func (d *DependencyTracker) AddDependency(file, symbol string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	addEdge(d.dependsOn, file, symbol)
	addEdge(d.dependedBy, symbol, file)
}

// AddDependencies records several symbols for one file.
func (d *DependencyTracker) AddDependencies(file string, symbols []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range symbols {
		addEdge(d.dependsOn, file, s)
		addEdge(d.dependedBy, s, file)
	}
}

// ClearDependencies removes every edge starting at file. Call it before
// recording the edges of a re-analysis.
func (d *DependencyTracker) ClearDependencies(file string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked(file)
}

func (d *DependencyTracker) clearLocked(file string) {
	for sym := range d.dependsOn[file] {
		removeEdge(d.dependedBy, sym, file)
	}
	delete(d.dependsOn, file)
}

// ReplaceDependencies swaps file's edges for symbols in one critical
// section.
func (d *DependencyTracker) ReplaceDependencies(file string, symbols []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked(file)
	for _, s := range symbols {
		addEdge(d.dependsOn, file, s)
		addEdge(d.dependedBy, s, file)
	}
}

// DependenciesOf returns the symbols file uses, sorted.
func (d *DependencyTracker) DependenciesOf(file string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedSet(d.dependsOn[file])
}

// DependentsOf returns the files using symbol, sorted.
func (d *DependencyTracker) DependentsOf(symbol string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedSet(d.dependedBy[symbol])
}

// FilesToInvalidate returns every file depending on a symbol defined in
// changedFile, excluding changedFile itself. definedSymbols should cover
// both the old and the new definitions.
func (d *DependencyTracker) FilesToInvalidate(changedFile string, definedSymbols []string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	files := make(map[string]bool)
	for _, sym := range definedSymbols {
		for f := range d.dependedBy[sym] {
			if f != changedFile {
				files[f] = true
			}
		}
	}
	return sortedSet(files)
}

// Size returns the number of (file, symbol) edges.
func (d *DependencyTracker) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, syms := range d.dependsOn {
		n += len(syms)
	}
	return n
}

// CheckInvariant verifies that both maps describe the same edge set.
func (d *DependencyTracker) CheckInvariant() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for file, syms := range d.dependsOn {
		for sym := range syms {
			if !d.dependedBy[sym][file] {
				return fmt.Errorf("%w: %s -> %s missing reverse", ErrAsymmetricDependency, file, sym)
			}
		}
	}
	for sym, files := range d.dependedBy {
		for file := range files {
			if !d.dependsOn[file][sym] {
				return fmt.Errorf("%w: %s <- %s missing forward", ErrAsymmetricDependency, sym, file)
			}
		}
	}
	return nil
}

func addEdge(m map[string]map[string]bool, from, to string) {
	set, ok := m[from]
	if !ok {
		set = make(map[string]bool)
		m[from] = set
	}
	set[to] = true
}

func removeEdge(m map[string]map[string]bool, from, to string) {
	set, ok := m[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(m, from)
	}
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
