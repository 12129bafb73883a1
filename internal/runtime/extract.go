package runtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/symdex/internal/index"
)

// ErrUnsupportedLanguage is returned for files that are neither Kotlin nor
// Java.
var ErrUnsupportedLanguage = errors.New("runtime: unsupported language")

// Extract parses src with the grammar implied by path and returns the
// file's symbol table. Syntax errors do not fail extraction: whatever
// declarations tree-sitter recovered are returned.
func Extract(ctx context.Context, path string, src []byte) (index.SymbolTable, error) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return index.SymbolTable{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	grammar, _ := ParserForLanguage(lang)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return index.SymbolTable{}, fmt.Errorf("runtime: parse %s: %w", path, err)
	}
	defer tree.Close()

	x := &extractor{src: src, table: index.SymbolTable{FilePath: path}}
	switch lang {
	case "kotlin":
		x.kotlinFile(tree.RootNode())
	case "java":
		x.javaFile(tree.RootNode())
	}
	return x.table, nil
}

type extractor struct {
	src   []byte
	table index.SymbolTable
}

func (x *extractor) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(x.src)
}

var spaceRun = regexp.MustCompile(`\s+`)

// typeText returns the source text of a type node with whitespace removed
// so "Map<String, Int>" and "Map<String,Int>" compare equal.
func (x *extractor) typeText(n *sitter.Node) string {
	return spaceRun.ReplaceAllString(x.text(n), "")
}

func span(n *sitter.Node) *index.Span {
	start, end := n.StartPoint(), n.EndPoint()
	return &index.Span{
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column),
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column),
	}
}

// children returns every child of n, named or not.
func children(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, int(n.ChildCount()))
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, n.Child(i))
	}
	return out
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, int(n.NamedChildCount()))
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func firstChildOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range namedChildren(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

func hasToken(n *sitter.Node, token string) bool {
	for _, c := range children(n) {
		if !c.IsNamed() && c.Type() == token {
			return true
		}
	}
	return false
}

var stringLiteral = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// deprecationMessage pulls the first string literal out of an annotation.
func deprecationMessage(annotation string) string {
	m := stringLiteral.FindStringSubmatch(annotation)
	if m == nil {
		return ""
	}
	return m[1]
}

func isDeprecatedAnnotation(text string) bool {
	name := strings.TrimPrefix(strings.TrimSpace(text), "@")
	if i := strings.IndexAny(name, "( \t\n"); i >= 0 {
		name = name[:i]
	}
	return name == "Deprecated" || name == "kotlin.Deprecated" || name == "java.lang.Deprecated"
}
