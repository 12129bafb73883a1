package runtime

import (
	"context"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// parsedSource is what a script-parsed tree needs to answer node_text and
// query: the bytes it was parsed from and its grammar.
type parsedSource struct {
	src  []byte
	lang *sitter.Language
}

// sourceStore maps the root node of every tree parsed by parse_src to its
// source. go-tree-sitter has no Node.Tree(), so lookups walk Parent() up to
// the root and key on its pointer.
type sourceStore struct {
	mu    sync.RWMutex
	trees map[uintptr]parsedSource
}

func newSourceStore() *sourceStore {
	return &sourceStore{trees: make(map[uintptr]parsedSource)}
}

func (s *sourceStore) store(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	s.mu.Lock()
	s.trees[key] = parsedSource{src: src, lang: lang}
	s.mu.Unlock()
}

func (s *sourceStore) lookup(node *sitter.Node) (parsedSource, bool) {
	for node.Parent() != nil {
		node = node.Parent()
	}
	s.mu.RLock()
	ps, ok := s.trees[uintptr(unsafe.Pointer(node))]
	s.mu.RUnlock()
	return ps, ok
}

// nodeArg unwraps a proxied *sitter.Node. On failure the second result is
// the Risor error to return.
func nodeArg(fn string, obj object.Object) (*sitter.Node, object.Object) {
	proxy, ok := obj.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", fn, obj.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok || node == nil {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

func stringArg(fn, what string, obj object.Object) (string, object.Object) {
	s, ok := obj.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, obj.Type())
	}
	return s.Value(), nil
}

func proxyNode(fn string, node *sitter.Node) object.Object {
	if node == nil {
		return object.Nil
	}
	p, err := object.NewProxy(node)
	if err != nil {
		return object.Errorf("%s: proxy error: %v", fn, err)
	}
	return p
}

// parse_src(source, language) → Tree
//
// Extraction scripts get the file contents as the source global, so parsing
// never touches the disk.
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, errObj := stringArg("parse_src", "source", args[0])
		if errObj != nil {
			return errObj
		}
		langName, errObj := stringArg("parse_src", "language", args[1])
		if errObj != nil {
			return errObj
		}
		lang, found := ParserForLanguage(langName)
		if !found {
			return object.Errorf("parse_src: unsupported language %q", langName)
		}

		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(lang)
		data := []byte(src)
		tree, err := parser.ParseCtx(ctx, nil, data)
		if err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		ss.store(tree, data, lang)

		p, err := object.NewProxy(tree)
		if err != nil {
			return object.Errorf("parse_src: proxy error: %v", err)
		}
		return p
	})
}

// node_text(node) → string
//
// Risor proxies cannot pass a string where Node.Content wants []byte.
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		ps, found := ss.lookup(node)
		if !found {
			return object.Errorf("node_text: node does not belong to a tree from parse_src")
		}
		return object.NewString(node.Content(ps.src))
	})
}

// node_span(node) → {start_line, start_col, end_line, end_col}
//
// Lines are 1-based and columns 0-based, the layout declare expects.
func makeNodeSpanFn() *object.Builtin {
	return object.NewBuiltin("node_span", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_span", 1, len(args))
		}
		node, errObj := nodeArg("node_span", args[0])
		if errObj != nil {
			return errObj
		}
		sp := span(node)
		return object.NewMap(map[string]object.Object{
			"start_line": object.NewInt(int64(sp.StartLine)),
			"start_col":  object.NewInt(int64(sp.StartColumn)),
			"end_line":   object.NewInt(int64(sp.EndLine)),
			"end_col":    object.NewInt(int64(sp.EndColumn)),
		})
	})
}

// query(pattern, node) → list of maps from capture name to Node
//
// Predicates such as #eq? are applied against the node's source.
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, errObj := stringArg("query", "pattern", args[0])
		if errObj != nil {
			return errObj
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		ps, found := ss.lookup(node)
		if !found {
			return object.Errorf("query: node does not belong to a tree from parse_src")
		}

		q, err := sitter.NewQuery([]byte(pattern), ps.lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()
		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, ps.src)
			if len(match.Captures) == 0 {
				continue
			}
			captures := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				name := q.CaptureNameForId(c.Index)
				p := proxyNode("query", c.Node)
				if e, isErr := p.(*object.Error); isErr {
					return e
				}
				captures[name] = p
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// node_child(node, field) → Node or nil
//
// ChildByFieldName returns a Go nil pointer for missing fields, which a
// proxy would hide from Risor's nil checks.
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", "field", args[1])
		if errObj != nil {
			return errObj
		}
		return proxyNode("node_child", node.ChildByFieldName(field))
	})
}

// logObject is the log global: log.Debug/Info/Warn/Error(msg).
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Debug(msg string) { l.logger.Debug(msg, "source", "script") }
func (l *logObject) Info(msg string)  { l.logger.Info(msg, "source", "script") }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg, "source", "script") }
func (l *logObject) Error(msg string) { l.logger.Error(msg, "source", "script") }
