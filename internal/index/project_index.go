package index

import (
	"slices"
	"sync"
)

// ProjectIndex aggregates per-file indices with the shared package and
// extension indices and the optional classpath and stdlib indices. It is
// the query surface for callers.
//
// Reads search project files (ordered by path), then the classpath, then
// the stdlib, keeping the first symbol seen for each fqName, so project
// declarations shadow dependency declarations.
type ProjectIndex struct {
	mu         sync.RWMutex
	files      map[string]*FileIndex
	packages   *PackageIndex
	extensions *ExtensionIndex
	classpath  *ClasspathIndex
	stdlib     *StdlibIndex
}

// NewProjectIndex returns an empty ProjectIndex.
func NewProjectIndex() *ProjectIndex {
	return &ProjectIndex{
		files:      make(map[string]*FileIndex),
		packages:   NewPackageIndex(),
		extensions: NewExtensionIndex(),
	}
}

// UpdateFile publishes fi, replacing any index held for the same path. The
// package and extension indices swap the old file's contributions for the
// new ones in one step each, so concurrent readers never see them missing.
func (p *ProjectIndex) UpdateFile(fi *FileIndex) {
	if fi == nil {
		panic("index: UpdateFile called with nil FileIndex")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var oldTop, oldExts []*Symbol
	if old, ok := p.files[fi.Path()]; ok {
		oldTop, oldExts = old.TopLevelSymbols(), old.Extensions()
	}
	p.packages.Replace(oldTop, fi.TopLevelSymbols())
	p.extensions.Replace(oldExts, fi.Extensions())
	p.files[fi.Path()] = fi
}

// RemoveFile drops the index for path and returns it, or nil when the path
// was not indexed.
func (p *ProjectIndex) RemoveFile(path string) *FileIndex {
	p.mu.Lock()
	defer p.mu.Unlock()
	old, ok := p.files[path]
	if !ok {
		return nil
	}
	p.packages.Replace(old.TopLevelSymbols(), nil)
	p.extensions.Replace(old.Extensions(), nil)
	delete(p.files, path)
	return old
}

// File returns the index for path, or nil.
func (p *ProjectIndex) File(path string) *FileIndex {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.files[path]
}

// Files returns the indexed paths, sorted.
func (p *ProjectIndex) Files() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedKeys(p.files)
}

// SetClasspath attaches the dependency index. nil detaches it.
func (p *ProjectIndex) SetClasspath(c *ClasspathIndex) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.classpath = c
}

// SetStdlib attaches the standard library index. nil detaches it.
func (p *ProjectIndex) SetStdlib(s *StdlibIndex) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stdlib = s
}

func (p *ProjectIndex) Classpath() *ClasspathIndex {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.classpath
}

func (p *ProjectIndex) Stdlib() *StdlibIndex {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stdlib
}

// Packages exposes the project-wide package index.
func (p *ProjectIndex) Packages() *PackageIndex { return p.packages }

// Extensions exposes the project-wide extension index.
func (p *ProjectIndex) Extensions() *ExtensionIndex { return p.extensions }

// sources returns the file indices in path order followed by the classpath
// and stdlib indices that are attached.
func (p *ProjectIndex) sources() []SymbolIndex {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]SymbolIndex, 0, len(p.files)+2)
	for _, path := range sortedKeys(p.files) {
		out = append(out, p.files[path])
	}
	if p.classpath != nil {
		out = append(out, p.classpath)
	}
	if p.stdlib != nil {
		out = append(out, p.stdlib)
	}
	return out
}

func (p *ProjectIndex) FindByFqName(fqName string) *Symbol {
	for _, src := range p.sources() {
		if s := src.FindByFqName(fqName); s != nil {
			return s
		}
	}
	return nil
}

func (p *ProjectIndex) FindBySimpleName(name string) []*Symbol {
	d := newDedupe()
	for _, src := range p.sources() {
		d.add(src.FindBySimpleName(name)...)
	}
	return d.out
}

func (p *ProjectIndex) FindByPackage(pkg string) []*Symbol {
	d := newDedupe()
	for _, src := range p.sources() {
		d.add(src.FindByPackage(pkg)...)
	}
	return d.out
}

func (p *ProjectIndex) FindByPrefix(prefix string, limit int) []*Symbol {
	checkLimit(limit)
	d := newDedupe()
	for _, src := range p.sources() {
		// Shadowed duplicates must not count toward limit, so each source
		// returns all of its matches.
		d.add(src.FindByPrefix(prefix, 0)...)
		if d.full(limit) {
			break
		}
	}
	return d.result(limit)
}

func (p *ProjectIndex) AllClasses() []*Symbol {
	return p.collect(SymbolIndex.AllClasses)
}

func (p *ProjectIndex) AllFunctions() []*Symbol {
	return p.collect(SymbolIndex.AllFunctions)
}

func (p *ProjectIndex) AllProperties() []*Symbol {
	return p.collect(SymbolIndex.AllProperties)
}

func (p *ProjectIndex) collect(get func(SymbolIndex) []*Symbol) []*Symbol {
	d := newDedupe()
	for _, src := range p.sources() {
		d.add(get(src)...)
	}
	return d.out
}

// Size sums the sizes of every source without de-duplication.
func (p *ProjectIndex) Size() int {
	n := 0
	for _, src := range p.sources() {
		n += src.Size()
	}
	return n
}

// FindVisibleFrom returns completion candidates for a position in
// filePath, ranked: symbols of the same file (any visibility), then the
// same package in other files, then public top-level symbols of other
// packages, then public classpath and stdlib symbols.
func (p *ProjectIndex) FindVisibleFrom(filePath, prefix string, limit int) []*Symbol {
	checkLimit(limit)

	p.mu.RLock()
	self := p.files[filePath]
	others := make([]*FileIndex, 0, len(p.files))
	for _, path := range sortedKeys(p.files) {
		if path != filePath {
			others = append(others, p.files[path])
		}
	}
	classpath, stdlib := p.classpath, p.stdlib
	p.mu.RUnlock()

	pkg := ""
	d := newDedupe()
	if self != nil {
		pkg = self.PackageName()
		d.add(self.FindByPrefix(prefix, 0)...)
	}
	if d.full(limit) {
		return d.result(limit)
	}

	for _, fi := range others {
		if fi.PackageName() != pkg {
			continue
		}
		for _, s := range fi.FindByPrefix(prefix, 0) {
			if s.Visibility != Private {
				d.add(s)
			}
		}
	}
	if d.full(limit) {
		return d.result(limit)
	}

	for _, fi := range others {
		if fi.PackageName() == pkg {
			continue
		}
		for _, s := range fi.FindByPrefix(prefix, 0) {
			if s.IsTopLevel() && s.Visibility == Public {
				d.add(s)
			}
		}
	}
	if d.full(limit) {
		return d.result(limit)
	}

	for _, src := range []SymbolIndex{classpath, stdlib} {
		if src == nil || isNilIndex(src) {
			continue
		}
		for _, s := range src.FindByPrefix(prefix, 0) {
			if s.Visibility == Public {
				d.add(s)
			}
		}
		if d.full(limit) {
			break
		}
	}
	return d.result(limit)
}

// isNilIndex catches typed nil pointers stored in a SymbolIndex.
func isNilIndex(src SymbolIndex) bool {
	switch v := src.(type) {
	case *ClasspathIndex:
		return v == nil
	case *StdlibIndex:
		return v == nil
	}
	return false
}

// FindExtensions merges project, stdlib and classpath extensions for a
// receiver type, unique by fqName.
func (p *ProjectIndex) FindExtensions(receiverType string, supertypes []string, includeAny bool) []*Symbol {
	classpath, stdlib := p.Classpath(), p.Stdlib()
	d := newDedupe()
	d.add(p.extensions.FindFor(receiverType, supertypes, includeAny)...)
	if stdlib != nil {
		d.add(stdlib.FindExtensions(receiverType, supertypes, includeAny)...)
	}
	if classpath != nil {
		d.add(classpath.FindExtensions(receiverType, supertypes, includeAny)...)
	}
	return d.out
}

// FindMembers returns the members of classFq from whichever source
// declares them first.
func (p *ProjectIndex) FindMembers(classFq string) []*Symbol {
	p.mu.RLock()
	files := make([]*FileIndex, 0, len(p.files))
	for _, path := range sortedKeys(p.files) {
		files = append(files, p.files[path])
	}
	classpath, stdlib := p.classpath, p.stdlib
	p.mu.RUnlock()

	d := newDedupe()
	for _, fi := range files {
		d.add(fi.FindMembers(classFq)...)
	}
	if classpath != nil {
		d.add(classpath.FindMembers(classFq)...)
	}
	if stdlib != nil {
		d.add(stdlib.FindMembers(classFq)...)
	}
	return d.out
}

// HasPackage reports whether pkg exists in any source.
func (p *ProjectIndex) HasPackage(pkg string) bool {
	if p.packages.HasPackage(pkg) {
		return true
	}
	if c := p.Classpath(); c != nil && c.HasPackage(pkg) {
		return true
	}
	if s := p.Stdlib(); s != nil && s.HasPackage(pkg) {
		return true
	}
	return false
}

// Subpackages returns the direct child packages of parent across sources.
func (p *ProjectIndex) Subpackages(parent string) []string {
	all := p.packages.Packages()
	if c := p.Classpath(); c != nil {
		all = append(all, c.Packages()...)
	}
	if s := p.Stdlib(); s != nil {
		all = append(all, s.Packages()...)
	}
	slices.Sort(all)
	return subpackagesOf(slices.Compact(all), parent)
}

// DefinedSymbols returns the fqNames declared in path, or nil.
func (p *ProjectIndex) DefinedSymbols(path string) []string {
	fi := p.File(path)
	if fi == nil {
		return nil
	}
	syms := fi.All()
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		out = append(out, s.FqName)
	}
	return out
}
