package runtime

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/symdex/internal/index"
)

var kotlinTypeNodes = map[string]bool{
	"user_type":          true,
	"nullable_type":      true,
	"function_type":      true,
	"parenthesized_type": true,
	"non_nullable_type":  true,
}

func (x *extractor) kotlinFile(root *sitter.Node) {
	for _, c := range namedChildren(root) {
		switch c.Type() {
		case "package_header":
			if id := firstChildOfType(c, "identifier"); id != nil {
				x.table.PackageName = x.typeText(id)
			}
		case "import_list":
			for _, h := range namedChildren(c) {
				if h.Type() == "import_header" {
					x.kotlinImport(h)
				}
			}
		case "import_header":
			x.kotlinImport(c)
		default:
			x.table.Declarations = append(x.table.Declarations, x.kotlinDeclarations(c, "")...)
		}
	}
}

func (x *extractor) kotlinImport(h *sitter.Node) {
	id := firstChildOfType(h, "identifier")
	if id == nil {
		return
	}
	name := x.typeText(id)
	if strings.HasSuffix(strings.TrimSuffix(strings.TrimSpace(x.text(h)), ";"), "*") {
		name += ".*"
	}
	x.table.Imports = append(x.table.Imports, name)
}

// kotlinDeclarations maps one syntax node to zero or more declarations.
// container is the simple name of the enclosing class, if any.
func (x *extractor) kotlinDeclarations(n *sitter.Node, container string) []index.Declaration {
	switch n.Type() {
	case "class_declaration":
		return []index.Declaration{x.kotlinClass(n)}
	case "object_declaration":
		d := x.kotlinHeader(n, index.KindObject)
		d.SuperTypes = x.kotlinSupertypes(n)
		if body := firstChildOfType(n, "class_body"); body != nil {
			d.Members = x.kotlinBody(body, d.Name)
		}
		return []index.Declaration{d}
	case "companion_object":
		d := x.kotlinHeader(n, index.KindObject)
		if d.Name == "" {
			d.Name = "Companion"
		}
		d.Modifiers = appendMissing(d.Modifiers, "companion")
		d.SuperTypes = x.kotlinSupertypes(n)
		if body := firstChildOfType(n, "class_body"); body != nil {
			d.Members = x.kotlinBody(body, d.Name)
		}
		return []index.Declaration{d}
	case "function_declaration":
		return []index.Declaration{x.kotlinFunction(n)}
	case "property_declaration":
		if d, ok := x.kotlinProperty(n); ok {
			return []index.Declaration{d}
		}
	case "type_alias":
		d := x.kotlinHeader(n, index.KindTypeAlias)
		for _, c := range namedChildren(n) {
			if kotlinTypeNodes[c.Type()] {
				d.ReturnType = x.typeText(c)
			}
		}
		return []index.Declaration{d}
	case "secondary_constructor":
		mods, dep, msg := x.kotlinModifiers(n)
		d := index.Declaration{
			Name:               "<init>",
			Kind:               index.KindConstructor,
			Modifiers:          mods,
			ReturnType:         container,
			Span:               span(n),
			Deprecated:         dep,
			DeprecationMessage: msg,
		}
		if params := firstChildOfType(n, "function_value_parameters"); params != nil {
			d.Parameters = x.kotlinParams(params)
		}
		return []index.Declaration{d}
	}
	return nil
}

// kotlinHeader fills the parts every named declaration shares.
func (x *extractor) kotlinHeader(n *sitter.Node, kind index.SymbolKind) index.Declaration {
	mods, dep, msg := x.kotlinModifiers(n)
	return index.Declaration{
		Name:               x.text(firstChildOfType(n, "type_identifier", "simple_identifier")),
		Kind:               kind,
		Modifiers:          mods,
		TypeParameters:     x.kotlinTypeParams(n),
		Span:               span(n),
		Deprecated:         dep,
		DeprecationMessage: msg,
	}
}

func (x *extractor) kotlinModifiers(n *sitter.Node) (mods []string, deprecated bool, msg string) {
	m := firstChildOfType(n, "modifiers")
	if m == nil {
		return nil, false, ""
	}
	for _, c := range namedChildren(m) {
		text := x.text(c)
		if c.Type() == "annotation" {
			if isDeprecatedAnnotation(text) {
				deprecated = true
				msg = deprecationMessage(text)
			}
			continue
		}
		mods = append(mods, strings.Fields(text)...)
	}
	return mods, deprecated, msg
}

func (x *extractor) kotlinTypeParams(n *sitter.Node) []string {
	tps := firstChildOfType(n, "type_parameters")
	if tps == nil {
		return nil
	}
	var out []string
	for _, tp := range namedChildren(tps) {
		if tp.Type() != "type_parameter" {
			continue
		}
		if id := firstChildOfType(tp, "type_identifier", "simple_identifier"); id != nil {
			out = append(out, x.text(id))
		}
	}
	return out
}

func (x *extractor) kotlinClass(n *sitter.Node) index.Declaration {
	d := x.kotlinHeader(n, index.KindClass)
	if hasToken(n, "interface") {
		d.Kind = index.KindInterface
	}
	body := firstChildOfType(n, "class_body", "enum_class_body")
	if hasToken(n, "enum") || (body != nil && body.Type() == "enum_class_body") {
		d.Modifiers = appendMissing(d.Modifiers, "enum")
	}
	d.SuperTypes = x.kotlinSupertypes(n)

	if pc := firstChildOfType(n, "primary_constructor"); pc != nil {
		params, props := x.kotlinClassParameters(pc)
		ctorMods, _, _ := x.kotlinModifiers(pc)
		d.Members = append(d.Members, index.Declaration{
			Name:       "<init>",
			Kind:       index.KindConstructor,
			Modifiers:  ctorMods,
			Parameters: params,
			ReturnType: d.Name,
			Span:       span(pc),
		})
		d.Members = append(d.Members, props...)
	}
	if body != nil {
		d.Members = append(d.Members, x.kotlinBody(body, d.Name)...)
	}
	return d
}

// kotlinClassParameters returns the primary constructor's parameters and
// the properties its val/var parameters declare.
func (x *extractor) kotlinClassParameters(pc *sitter.Node) ([]index.Parameter, []index.Declaration) {
	var nodes []*sitter.Node
	for _, c := range namedChildren(pc) {
		switch c.Type() {
		case "class_parameter":
			nodes = append(nodes, c)
		case "class_parameters":
			for _, cp := range namedChildren(c) {
				if cp.Type() == "class_parameter" {
					nodes = append(nodes, cp)
				}
			}
		}
	}

	var params []index.Parameter
	var props []index.Declaration
	for _, cp := range nodes {
		p := index.Parameter{
			Name:       x.text(firstChildOfType(cp, "simple_identifier")),
			HasDefault: hasToken(cp, "="),
		}
		for _, c := range namedChildren(cp) {
			if kotlinTypeNodes[c.Type()] {
				p.Type = x.typeText(c)
				break
			}
		}
		params = append(params, p)

		binding := firstChildOfType(cp, "binding_pattern_kind")
		if binding == nil && !hasToken(cp, "val") && !hasToken(cp, "var") {
			continue
		}
		mods, dep, msg := x.kotlinModifiers(cp)
		props = append(props, index.Declaration{
			Name:               p.Name,
			Kind:               index.KindProperty,
			Modifiers:          mods,
			ReturnType:         p.Type,
			Span:               span(cp),
			Deprecated:         dep,
			DeprecationMessage: msg,
		})
	}
	return params, props
}

func (x *extractor) kotlinSupertypes(n *sitter.Node) []string {
	var specs []*sitter.Node
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "delegation_specifier":
			specs = append(specs, c)
		case "delegation_specifiers":
			specs = append(specs, namedChildren(c)...)
		}
	}
	var out []string
	for _, ds := range specs {
		t := firstChildOfType(ds, "user_type")
		if t == nil {
			if inner := firstChildOfType(ds, "constructor_invocation", "explicit_delegation"); inner != nil {
				t = firstChildOfType(inner, "user_type")
			}
		}
		if t == nil {
			t = ds
		}
		out = append(out, x.typeText(t))
	}
	return out
}

func (x *extractor) kotlinBody(body *sitter.Node, container string) []index.Declaration {
	var out []index.Declaration
	for _, c := range namedChildren(body) {
		if c.Type() == "enum_entry" {
			out = append(out, index.Declaration{
				Name:       x.text(firstChildOfType(c, "simple_identifier")),
				Kind:       index.KindProperty,
				ReturnType: container,
				Span:       span(c),
			})
			continue
		}
		out = append(out, x.kotlinDeclarations(c, container)...)
	}
	return out
}

func (x *extractor) kotlinFunction(n *sitter.Node) index.Declaration {
	d := x.kotlinHeader(n, index.KindFunction)
	d.Name = ""
	var body *sitter.Node
	seenParams := false
	for _, c := range namedChildren(n) {
		switch {
		case c.Type() == "simple_identifier" && d.Name == "":
			d.Name = x.text(c)
		case kotlinTypeNodes[c.Type()]:
			if d.Name == "" {
				d.ReceiverType = x.typeText(c)
			} else if seenParams && d.ReturnType == "" {
				d.ReturnType = x.typeText(c)
			}
		case c.Type() == "function_value_parameters":
			d.Parameters = x.kotlinParams(c)
			seenParams = true
		case c.Type() == "function_body":
			body = c
		}
	}
	// A block body or no body means Unit; an expression body is inferred.
	if d.ReturnType == "" && (body == nil || strings.HasPrefix(strings.TrimSpace(x.text(body)), "{")) {
		d.ReturnType = "Unit"
	}
	return d
}

func (x *extractor) kotlinParams(fvp *sitter.Node) []index.Parameter {
	var params []index.Parameter
	vararg := false
	for _, c := range children(fvp) {
		switch c.Type() {
		case "parameter_modifiers":
			vararg = strings.Contains(x.text(c), "vararg")
		case "parameter":
			p := index.Parameter{
				Name:     x.text(firstChildOfType(c, "simple_identifier")),
				IsVararg: vararg,
			}
			if mods := firstChildOfType(c, "parameter_modifiers"); mods != nil && strings.Contains(x.text(mods), "vararg") {
				p.IsVararg = true
			}
			for _, t := range namedChildren(c) {
				if kotlinTypeNodes[t.Type()] {
					p.Type = x.typeText(t)
					break
				}
			}
			params = append(params, p)
			vararg = false
		case "=":
			if len(params) > 0 {
				params[len(params)-1].HasDefault = true
			}
		}
	}
	return params
}

func (x *extractor) kotlinProperty(n *sitter.Node) (index.Declaration, bool) {
	d := x.kotlinHeader(n, index.KindProperty)
	d.Name = ""
	for _, c := range namedChildren(n) {
		switch {
		case kotlinTypeNodes[c.Type()] && d.Name == "":
			d.ReceiverType = x.typeText(c)
		case c.Type() == "variable_declaration":
			d.Name = x.text(firstChildOfType(c, "simple_identifier"))
			for _, t := range namedChildren(c) {
				if kotlinTypeNodes[t.Type()] {
					d.ReturnType = x.typeText(t)
					break
				}
			}
		}
	}
	return d, d.Name != ""
}

func appendMissing(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
