package runtime

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/symdex/internal/index"
)

// javaPrimitives maps Java primitive and boxed names to Kotlin's.
var javaPrimitives = map[string]string{
	"int": "Int", "Integer": "Int",
	"long": "Long", "Long": "Long",
	"short": "Short", "Short": "Short",
	"byte": "Byte", "Byte": "Byte",
	"char": "Char", "Character": "Char",
	"float": "Float", "Float": "Float",
	"double": "Double", "Double": "Double",
	"boolean": "Boolean", "Boolean": "Boolean",
	"void":   "Unit",
	"Object": "Any",
	"String": "String",
}

// javaType maps a Java type as written to the name Kotlin code sees.
// Arrays become Array<T>; generic arguments are kept verbatim.
func javaType(t string) string {
	dims := 0
	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSuffix(t, "[]")
		dims++
	}
	if k, ok := javaPrimitives[t]; ok {
		t = k
	}
	for range dims {
		t = "Array<" + t + ">"
	}
	return t
}

var javaTypeDecls = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

func (x *extractor) javaFile(root *sitter.Node) {
	for _, c := range namedChildren(root) {
		switch {
		case c.Type() == "package_declaration":
			if id := firstChildOfType(c, "scoped_identifier", "identifier"); id != nil {
				x.table.PackageName = x.typeText(id)
			}
		case c.Type() == "import_declaration":
			id := firstChildOfType(c, "scoped_identifier", "identifier")
			if id == nil {
				continue
			}
			name := x.typeText(id)
			if firstChildOfType(c, "asterisk") != nil || strings.Contains(x.text(c), "*") {
				name += ".*"
			}
			x.table.Imports = append(x.table.Imports, name)
		case javaTypeDecls[c.Type()]:
			x.table.Declarations = append(x.table.Declarations, x.javaTypeDecl(c, false))
		}
	}
}

// javaModifiers returns the modifier keywords of n. Declarations without
// an access keyword are package-private, recorded as "internal", except
// inside interfaces where members are implicitly public.
func (x *extractor) javaModifiers(n *sitter.Node, inInterface bool) (mods []string, deprecated bool, msg string) {
	if m := firstChildOfType(n, "modifiers"); m != nil {
		for _, c := range children(m) {
			if c.IsNamed() {
				text := x.text(c)
				if isDeprecatedAnnotation(text) {
					deprecated = true
					msg = deprecationMessage(text)
				}
				continue
			}
			mods = append(mods, c.Type())
		}
	}
	for _, m := range mods {
		if m == "public" || m == "protected" || m == "private" {
			return mods, deprecated, msg
		}
	}
	if inInterface {
		return append(mods, "public"), deprecated, msg
	}
	return append(mods, "internal"), deprecated, msg
}

func (x *extractor) javaTypeParams(n *sitter.Node) []string {
	tps := firstChildOfType(n, "type_parameters")
	if tps == nil {
		return nil
	}
	var out []string
	for _, tp := range namedChildren(tps) {
		if tp.Type() != "type_parameter" {
			continue
		}
		if id := firstChildOfType(tp, "type_identifier", "identifier"); id != nil {
			out = append(out, x.text(id))
		}
	}
	return out
}

// javaSupertypes collects extends and implements clauses in source order.
func (x *extractor) javaSupertypes(n *sitter.Node) []string {
	var out []string
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "superclass", "super_interfaces", "extends_interfaces":
			for _, t := range namedChildren(c) {
				if t.Type() == "type_list" {
					for _, lt := range namedChildren(t) {
						out = append(out, x.typeText(lt))
					}
					continue
				}
				out = append(out, x.typeText(t))
			}
		}
	}
	return out
}

func (x *extractor) javaTypeDecl(n *sitter.Node, inInterface bool) index.Declaration {
	mods, dep, msg := x.javaModifiers(n, inInterface)
	d := index.Declaration{
		Name:               x.text(n.ChildByFieldName("name")),
		Kind:               index.KindClass,
		Modifiers:          mods,
		TypeParameters:     x.javaTypeParams(n),
		SuperTypes:         x.javaSupertypes(n),
		Span:               span(n),
		Deprecated:         dep,
		DeprecationMessage: msg,
	}
	body := n.ChildByFieldName("body")
	memberOfInterface := false
	switch n.Type() {
	case "interface_declaration":
		d.Kind = index.KindInterface
		memberOfInterface = true
	case "annotation_type_declaration":
		d.Modifiers = appendMissing(d.Modifiers, "annotation")
		memberOfInterface = true
	case "enum_declaration":
		d.Modifiers = appendMissing(d.Modifiers, "enum")
	case "record_declaration":
		d.Modifiers = appendMissing(d.Modifiers, "data")
		if params := n.ChildByFieldName("parameters"); params != nil {
			for _, p := range x.javaParams(params) {
				d.Members = append(d.Members, index.Declaration{
					Name:       p.Name,
					Kind:       index.KindProperty,
					Modifiers:  []string{"public"},
					ReturnType: p.Type,
				})
			}
		}
	}
	if body != nil {
		d.Members = append(d.Members, x.javaBody(body, d.Name, memberOfInterface)...)
	}
	return d
}

func (x *extractor) javaBody(body *sitter.Node, container string, inInterface bool) []index.Declaration {
	var out []index.Declaration
	for _, c := range namedChildren(body) {
		switch {
		case javaTypeDecls[c.Type()]:
			out = append(out, x.javaTypeDecl(c, inInterface))
		case c.Type() == "enum_constant":
			out = append(out, index.Declaration{
				Name:       x.text(c.ChildByFieldName("name")),
				Kind:       index.KindProperty,
				Modifiers:  []string{"public", "static", "final"},
				ReturnType: container,
				Span:       span(c),
			})
		case c.Type() == "enum_body_declarations":
			out = append(out, x.javaBody(c, container, inInterface)...)
		case c.Type() == "field_declaration" || c.Type() == "constant_declaration":
			out = append(out, x.javaFields(c, inInterface)...)
		case c.Type() == "method_declaration" || c.Type() == "annotation_type_element_declaration":
			mods, dep, msg := x.javaModifiers(c, inInterface)
			d := index.Declaration{
				Name:               x.text(c.ChildByFieldName("name")),
				Kind:               index.KindFunction,
				Modifiers:          mods,
				TypeParameters:     x.javaTypeParams(c),
				ReturnType:         javaType(x.typeText(c.ChildByFieldName("type"))),
				Span:               span(c),
				Deprecated:         dep,
				DeprecationMessage: msg,
			}
			if params := c.ChildByFieldName("parameters"); params != nil {
				d.Parameters = x.javaParams(params)
			}
			out = append(out, d)
		case c.Type() == "constructor_declaration":
			mods, dep, msg := x.javaModifiers(c, inInterface)
			d := index.Declaration{
				Name:               "<init>",
				Kind:               index.KindConstructor,
				Modifiers:          mods,
				TypeParameters:     x.javaTypeParams(c),
				ReturnType:         container,
				Span:               span(c),
				Deprecated:         dep,
				DeprecationMessage: msg,
			}
			if params := c.ChildByFieldName("parameters"); params != nil {
				d.Parameters = x.javaParams(params)
			}
			out = append(out, d)
		}
	}
	return out
}

// javaFields returns one PROPERTY per declarator: "int a, b;" declares two.
func (x *extractor) javaFields(n *sitter.Node, inInterface bool) []index.Declaration {
	mods, dep, msg := x.javaModifiers(n, inInterface)
	typ := javaType(x.typeText(n.ChildByFieldName("type")))
	var out []index.Declaration
	for _, c := range namedChildren(n) {
		if c.Type() != "variable_declarator" {
			continue
		}
		out = append(out, index.Declaration{
			Name:               x.text(c.ChildByFieldName("name")),
			Kind:               index.KindProperty,
			Modifiers:          mods,
			ReturnType:         typ,
			Span:               span(c),
			Deprecated:         dep,
			DeprecationMessage: msg,
		})
	}
	return out
}

func (x *extractor) javaParams(params *sitter.Node) []index.Parameter {
	var out []index.Parameter
	for _, p := range namedChildren(params) {
		switch p.Type() {
		case "formal_parameter":
			out = append(out, index.Parameter{
				Name: x.text(p.ChildByFieldName("name")),
				Type: javaType(x.typeText(p.ChildByFieldName("type"))),
			})
		case "spread_parameter":
			param := index.Parameter{IsVararg: true}
			for _, c := range namedChildren(p) {
				switch {
				case c.Type() == "modifiers":
				case c.Type() == "variable_declarator":
					param.Name = x.text(c.ChildByFieldName("name"))
				case c.Type() == "identifier" && param.Type != "":
					param.Name = x.text(c)
				case param.Type == "":
					param.Type = javaType(x.typeText(c))
				}
			}
			out = append(out, param)
		}
	}
	return out
}
