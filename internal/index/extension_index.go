package index

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

// ExtensionIndex groups extension symbols by normalized receiver type.
type ExtensionIndex struct {
	mu         sync.RWMutex
	all        []*Symbol
	byReceiver map[string][]*Symbol
}

// NewExtensionIndex returns an empty ExtensionIndex.
func NewExtensionIndex() *ExtensionIndex {
	return &ExtensionIndex{byReceiver: make(map[string][]*Symbol)}
}

var genericArgs = regexp.MustCompile(`<.*>`)

// NormalizeReceiver strips generic arguments and surrounding whitespace, so
// "List<String>?" becomes "List?".
func NormalizeReceiver(t string) string {
	return strings.TrimSpace(genericArgs.ReplaceAllString(t, ""))
}

// Add indexes sym under its receiver. Symbols without a receiver are ignored.
func (e *ExtensionIndex) Add(sym *Symbol) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addLocked(sym)
}

// Remove drops sym by identity and reports whether it was present.
func (e *ExtensionIndex) Remove(sym *Symbol) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(sym)
}

// Replace drops the old pointers and adds the new symbols under one lock,
// so readers see either the old set or the new one.
func (e *ExtensionIndex) Replace(old, next []*Symbol) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range old {
		e.removeLocked(s)
	}
	for _, s := range next {
		e.addLocked(s)
	}
}

func (e *ExtensionIndex) addLocked(sym *Symbol) {
	if !sym.IsExtension() {
		return
	}
	key := NormalizeReceiver(sym.ReceiverType)
	e.all = append(e.all, sym)
	e.byReceiver[key] = append(e.byReceiver[key], sym)
}

func (e *ExtensionIndex) removeLocked(sym *Symbol) bool {
	if !sym.IsExtension() {
		return false
	}
	key := NormalizeReceiver(sym.ReceiverType)
	if !slices.Contains(e.byReceiver[key], sym) {
		return false
	}
	e.all = deletePtr(e.all, sym)
	e.byReceiver[key] = deletePtr(e.byReceiver[key], sym)
	if len(e.byReceiver[key]) == 0 {
		delete(e.byReceiver, key)
	}
	return true
}

// Clear drops every extension.
func (e *ExtensionIndex) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = nil
	e.byReceiver = make(map[string][]*Symbol)
}

// FindExact returns extensions declared on exactly receiverType.
func (e *ExtensionIndex) FindExact(receiverType string) []*Symbol {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.byReceiver[NormalizeReceiver(receiverType)])
}

// FindFor returns extensions applicable to receiverType: those on the type
// itself, on its nullable or non-null counterpart, on each supertype, and on
// Any/Any? when includeAny is set. includeAny also admits extensions whose
// receiver is one of their own type parameters, like `fun <T> T.let`.
// Results are unique by fqName.
func (e *ExtensionIndex) FindFor(receiverType string, supertypes []string, includeAny bool) []*Symbol {
	e.mu.RLock()
	defer e.mu.RUnlock()

	d := newDedupe()
	for _, key := range receiverKeys(receiverType, supertypes, includeAny) {
		d.add(e.byReceiver[key]...)
	}
	if includeAny {
		for _, s := range e.all {
			if hasGenericReceiver(s) {
				d.add(s)
			}
		}
	}
	return d.out
}

func hasGenericReceiver(s *Symbol) bool {
	recv := strings.TrimSuffix(NormalizeReceiver(s.ReceiverType), "?")
	return slices.Contains(s.TypeParameters, recv)
}

// receiverKeys lists the buckets FindFor consults, in order.
func receiverKeys(receiverType string, supertypes []string, includeAny bool) []string {
	normalized := NormalizeReceiver(receiverType)
	dual := normalized + "?"
	if strings.HasSuffix(normalized, "?") {
		dual = strings.TrimSuffix(normalized, "?")
	}
	keys := []string{normalized, dual}
	for _, st := range supertypes {
		keys = append(keys, NormalizeReceiver(st))
	}
	if includeAny {
		keys = append(keys, "Any", "Any?")
	}
	return keys
}

// FindByName returns extensions with the given simple name.
func (e *ExtensionIndex) FindByName(name string) []*Symbol {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Symbol
	for _, s := range e.all {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// FindByPrefix matches extension names case-insensitively.
func (e *ExtensionIndex) FindByPrefix(prefix string, limit int) []*Symbol {
	checkLimit(limit)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return matchPrefix(e.all, prefix, limit)
}

// All returns every extension in insertion order.
func (e *ExtensionIndex) All() []*Symbol {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.all)
}

// GroupedByReceiver returns a copy of the receiver buckets.
func (e *ExtensionIndex) GroupedByReceiver() map[string][]*Symbol {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string][]*Symbol, len(e.byReceiver))
	for k, v := range e.byReceiver {
		out[k] = slices.Clone(v)
	}
	return out
}

// ReceiverTypes returns the normalized receiver keys, sorted.
func (e *ExtensionIndex) ReceiverTypes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.byReceiver))
	for k := range e.byReceiver {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (e *ExtensionIndex) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.all)
}
