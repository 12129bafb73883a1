package index

import (
	"encoding/json"
	"slices"
	"time"
)

// ParamEntry is the serialized form of a Parameter.
type ParamEntry struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Def    bool   `json:"def,omitempty"`
	Vararg bool   `json:"vararg,omitempty"`
}

// IndexEntry is the flat serialized form of a Symbol.
type IndexEntry struct {
	Name       string       `json:"name"`
	FqName     string       `json:"fqName"`
	Kind       string       `json:"kind"`
	Pkg        string       `json:"pkg"`
	Container  string       `json:"container,omitempty"`
	Sig        string       `json:"sig,omitempty"`
	Vis        string       `json:"vis"`
	TypeParams []string     `json:"typeParams,omitempty"`
	Params     []ParamEntry `json:"params,omitempty"`
	Ret        string       `json:"ret,omitempty"`
	Recv       string       `json:"recv,omitempty"`
	Supers     []string     `json:"supers,omitempty"`
	File       string       `json:"file,omitempty"`
	StartLine  int          `json:"startLine,omitempty"`
	StartCol   int          `json:"startCol,omitempty"`
	EndLine    int          `json:"endLine,omitempty"`
	EndCol     int          `json:"endCol,omitempty"`
	Dep        bool         `json:"dep,omitempty"`
	DepMsg     string       `json:"depMsg,omitempty"`
}

// UnmarshalJSON applies defaults for missing fields.
func (e *IndexEntry) UnmarshalJSON(b []byte) error {
	type plain IndexEntry
	p := plain{Vis: string(Public)}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = IndexEntry(p)
	if e.Name == "" {
		e.Name = simpleNameFromFq(e.FqName)
	}
	if e.FqName == "" && e.Name != "" {
		e.FqName = qualify(e.Pkg, e.Name)
	}
	return nil
}

// EntryFromSymbol converts a Symbol to its serialized form.
func EntryFromSymbol(s *Symbol) IndexEntry {
	e := IndexEntry{
		Name:       s.Name,
		FqName:     s.FqName,
		Kind:       string(s.Kind),
		Pkg:        s.PackageName,
		Container:  s.ContainingClass,
		Sig:        s.Signature,
		Vis:        string(s.Visibility),
		TypeParams: slices.Clone(s.TypeParameters),
		Params:     paramEntries(s.Parameters),
		Ret:        s.ReturnType,
		Recv:       s.ReceiverType,
		Supers:     slices.Clone(s.SuperTypes),
		File:       s.FilePath,
		Dep:        s.Deprecated,
		DepMsg:     s.DeprecationMessage,
	}
	if s.Span != nil {
		e.StartLine = s.Span.StartLine
		e.StartCol = s.Span.StartColumn
		e.EndLine = s.Span.EndLine
		e.EndCol = s.Span.EndColumn
	}
	return e
}

// ToSymbol converts the entry back into a Symbol. Unknown kinds become
// CLASS and unknown visibilities PUBLIC.
func (e IndexEntry) ToSymbol() *Symbol {
	s := &Symbol{
		Name:               e.Name,
		FqName:             e.FqName,
		Kind:               ParseSymbolKind(e.Kind),
		PackageName:        e.Pkg,
		ContainingClass:    e.Container,
		Visibility:         ParseVisibility(e.Vis),
		Signature:          e.Sig,
		TypeParameters:     slices.Clone(e.TypeParams),
		Parameters:         parameters(e.Params),
		ReturnType:         e.Ret,
		ReceiverType:       e.Recv,
		SuperTypes:         slices.Clone(e.Supers),
		FilePath:           e.File,
		Deprecated:         e.Dep,
		DeprecationMessage: e.DepMsg,
	}
	if e.StartLine != 0 || e.StartCol != 0 || e.EndLine != 0 || e.EndCol != 0 {
		s.Span = &Span{
			StartLine:   e.StartLine,
			StartColumn: e.StartCol,
			EndLine:     e.EndLine,
			EndColumn:   e.EndCol,
		}
	}
	return s
}

func paramEntries(params []Parameter) []ParamEntry {
	if params == nil {
		return nil
	}
	out := make([]ParamEntry, len(params))
	for i, p := range params {
		out[i] = ParamEntry{Name: p.Name, Type: p.Type, Def: p.HasDefault, Vararg: p.IsVararg}
	}
	return out
}

func parameters(entries []ParamEntry) []Parameter {
	if entries == nil {
		return nil
	}
	out := make([]Parameter, len(entries))
	for i, p := range entries {
		out[i] = Parameter{Name: p.Name, Type: p.Type, HasDefault: p.Def, IsVararg: p.Vararg}
	}
	return out
}

// IndexData is the flat snapshot shape: symbols grouped by category.
type IndexData struct {
	Version       string       `json:"version"`
	KotlinVersion string       `json:"kotlinVersion"`
	GeneratedAt   int64        `json:"generatedAt"`
	Classes       []IndexEntry `json:"classes"`
	Functions     []IndexEntry `json:"functions"`
	Properties    []IndexEntry `json:"properties"`
	TypeAliases   []IndexEntry `json:"typeAliases"`
	Extensions    []IndexEntry `json:"extensions"`
}

// UnmarshalJSON decodes leniently: unknown fields are ignored, malformed
// entries are dropped and missing fields take their defaults.
func (d *IndexData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = IndexData{Version: "1.0"}
	decodeInto(raw["version"], &d.Version)
	decodeInto(raw["kotlinVersion"], &d.KotlinVersion)
	d.GeneratedAt = decodeMillis(raw["generatedAt"])
	d.Classes = decodeEntries(raw["classes"])
	d.Functions = decodeEntries(raw["functions"])
	d.Properties = decodeEntries(raw["properties"])
	d.TypeAliases = decodeEntries(raw["typeAliases"])
	d.Extensions = decodeEntries(raw["extensions"])
	return nil
}

// TotalCount returns the number of entries across all categories.
func (d IndexData) TotalCount() int {
	return len(d.Classes) + len(d.Functions) + len(d.Properties) +
		len(d.TypeAliases) + len(d.Extensions)
}

// ToSymbols converts every entry, in category order.
func (d IndexData) ToSymbols() []*Symbol {
	out := make([]*Symbol, 0, d.TotalCount())
	for _, list := range [][]IndexEntry{d.Classes, d.Functions, d.Properties, d.TypeAliases, d.Extensions} {
		for _, e := range list {
			out = append(out, e.ToSymbol())
		}
	}
	return out
}

// IndexDataFromSymbols groups syms into an IndexData snapshot.
func IndexDataFromSymbols(syms []*Symbol, version, kotlinVersion string) IndexData {
	d := IndexData{
		Version:       version,
		KotlinVersion: kotlinVersion,
		GeneratedAt:   time.Now().UnixMilli(),
	}
	for _, s := range syms {
		e := EntryFromSymbol(s)
		switch {
		case s.IsExtension():
			d.Extensions = append(d.Extensions, e)
		case s.Kind == KindTypeAlias:
			d.TypeAliases = append(d.TypeAliases, e)
		case s.Kind.IsCallable():
			d.Functions = append(d.Functions, e)
		case s.Kind == KindProperty:
			d.Properties = append(d.Properties, e)
		default:
			d.Classes = append(d.Classes, e)
		}
	}
	return d
}

// MemberEntry is a class member in the class-centric snapshot shape.
type MemberEntry struct {
	Name   string       `json:"name"`
	Kind   string       `json:"kind"`
	Sig    string       `json:"sig,omitempty"`
	Params []ParamEntry `json:"params,omitempty"`
	Ret    string       `json:"ret,omitempty"`
	Vis    string       `json:"vis"`
	Dep    bool         `json:"dep,omitempty"`
}

// UnmarshalJSON applies defaults for missing fields.
func (m *MemberEntry) UnmarshalJSON(b []byte) error {
	type plain MemberEntry
	p := plain{Vis: string(Public)}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = MemberEntry(p)
	return nil
}

// ClassEntry is one class with its members nested.
type ClassEntry struct {
	FqName     string        `json:"fqName"`
	Kind       string        `json:"kind"`
	TypeParams []string      `json:"typeParams,omitempty"`
	Supers     []string      `json:"supers,omitempty"`
	Members    []MemberEntry `json:"members"`
	Companions []MemberEntry `json:"companions,omitempty"`
	Nested     []string      `json:"nested,omitempty"`
	Dep        bool          `json:"dep,omitempty"`
	DepMsg     string        `json:"depMsg,omitempty"`
}

// UnmarshalJSON drops malformed members instead of failing the class.
func (c *ClassEntry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = ClassEntry{}
	decodeInto(raw["fqName"], &c.FqName)
	decodeInto(raw["kind"], &c.Kind)
	decodeInto(raw["typeParams"], &c.TypeParams)
	decodeInto(raw["supers"], &c.Supers)
	decodeInto(raw["nested"], &c.Nested)
	decodeInto(raw["dep"], &c.Dep)
	decodeInto(raw["depMsg"], &c.DepMsg)
	c.Members = decodeList[MemberEntry](raw["members"])
	c.Companions = decodeList[MemberEntry](raw["companions"])
	return nil
}

// ToSymbols returns the class symbol followed by its members. Companion
// members are attached to the class itself.
func (c ClassEntry) ToSymbols() []*Symbol {
	pkg := packageFromFq(c.FqName)
	out := []*Symbol{{
		Name:               simpleNameFromFq(c.FqName),
		FqName:             c.FqName,
		Kind:               ParseSymbolKind(c.Kind),
		PackageName:        pkg,
		Visibility:         Public,
		TypeParameters:     slices.Clone(c.TypeParams),
		SuperTypes:         slices.Clone(c.Supers),
		Deprecated:         c.Dep,
		DeprecationMessage: c.DepMsg,
	}}
	for _, list := range [][]MemberEntry{c.Members, c.Companions} {
		for _, m := range list {
			if m.Name == "" {
				continue
			}
			out = append(out, &Symbol{
				Name:            m.Name,
				FqName:          c.FqName + "." + m.Name,
				Kind:            ParseSymbolKind(m.Kind),
				PackageName:     pkg,
				ContainingClass: c.FqName,
				Visibility:      ParseVisibility(m.Vis),
				Signature:       m.Sig,
				Parameters:      parameters(m.Params),
				ReturnType:      m.Ret,
				Deprecated:      m.Dep,
			})
		}
	}
	return out
}

// StdlibIndexData is the class-centric snapshot shape.
type StdlibIndexData struct {
	Version            string                  `json:"version"`
	KotlinVersion      string                  `json:"kotlinVersion"`
	GeneratedAt        int64                   `json:"generatedAt"`
	Classes            map[string]ClassEntry   `json:"classes"`
	TopLevelFunctions  []IndexEntry            `json:"topLevelFunctions"`
	TopLevelProperties []IndexEntry            `json:"topLevelProperties"`
	Extensions         map[string][]IndexEntry `json:"extensions"`
	TypeAliases        []IndexEntry            `json:"typeAliases"`
}

// UnmarshalJSON decodes leniently, like IndexData.
func (d *StdlibIndexData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = StdlibIndexData{Version: "1.0"}
	decodeInto(raw["version"], &d.Version)
	decodeInto(raw["kotlinVersion"], &d.KotlinVersion)
	d.GeneratedAt = decodeMillis(raw["generatedAt"])
	d.TopLevelFunctions = decodeEntries(raw["topLevelFunctions"])
	d.TopLevelProperties = decodeEntries(raw["topLevelProperties"])
	d.TypeAliases = decodeEntries(raw["typeAliases"])

	var classes map[string]json.RawMessage
	if decodeInto(raw["classes"], &classes) {
		d.Classes = make(map[string]ClassEntry, len(classes))
		for fq, rc := range classes {
			var c ClassEntry
			if json.Unmarshal(rc, &c) != nil {
				continue
			}
			if c.FqName == "" {
				c.FqName = fq
			}
			d.Classes[fq] = c
		}
	}
	var exts map[string]json.RawMessage
	if decodeInto(raw["extensions"], &exts) {
		d.Extensions = make(map[string][]IndexEntry, len(exts))
		for recv, re := range exts {
			d.Extensions[recv] = decodeEntries(re)
		}
	}
	return nil
}

// ToSymbols converts the snapshot. Classes are emitted in fqName order so
// loading is deterministic, followed by top-level functions, properties,
// type aliases and extensions.
func (d StdlibIndexData) ToSymbols() []*Symbol {
	var out []*Symbol
	for _, fq := range sortedKeys(d.Classes) {
		out = append(out, d.Classes[fq].ToSymbols()...)
	}
	for _, list := range [][]IndexEntry{d.TopLevelFunctions, d.TopLevelProperties, d.TypeAliases} {
		for _, e := range list {
			out = append(out, e.ToSymbol())
		}
	}
	for _, recv := range sortedKeys(d.Extensions) {
		for _, e := range d.Extensions[recv] {
			s := e.ToSymbol()
			if s.ReceiverType == "" {
				s.ReceiverType = recv
			}
			out = append(out, s)
		}
	}
	return out
}

// ToIndexData flattens the snapshot into the IndexData shape.
func (d StdlibIndexData) ToIndexData() IndexData {
	out := IndexDataFromSymbols(d.ToSymbols(), d.Version, d.KotlinVersion)
	out.GeneratedAt = d.GeneratedAt
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// decodeInto unmarshals raw into dst, leaving dst untouched on failure.
func decodeInto[T any](raw json.RawMessage, dst *T) bool {
	if len(raw) == 0 {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

// decodeList decodes a JSON array element by element, skipping elements
// that do not decode.
func decodeList[T any](raw json.RawMessage) []T {
	var items []json.RawMessage
	if !decodeInto(raw, &items) {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if json.Unmarshal(item, &v) == nil {
			out = append(out, v)
		}
	}
	return out
}

// decodeEntries decodes a list of IndexEntry, dropping entries with no
// identity.
func decodeEntries(raw json.RawMessage) []IndexEntry {
	entries := decodeList[IndexEntry](raw)
	return slices.DeleteFunc(entries, func(e IndexEntry) bool { return e.FqName == "" })
}

func decodeMillis(raw json.RawMessage) int64 {
	var n int64
	if decodeInto(raw, &n) {
		return n
	}
	var f float64
	if decodeInto(raw, &f) {
		return int64(f)
	}
	return 0
}
