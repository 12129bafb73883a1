package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/symdex/internal/index"
)

// Filter is a Risor boolean expression evaluated once per symbol, e.g.
//
//	kind == "FUNCTION" && receiver == "String" && !deprecated
//
// Each evaluation sees name, fq_name, kind, pkg, visibility, deprecated,
// receiver, return_type, container, signature, file, arity, type_params
// and supers.
type Filter struct {
	rt   *Runtime
	expr string
}

// NewFilter checks expr against an empty symbol and returns a Filter.
func (r *Runtime) NewFilter(ctx context.Context, expr string) (*Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("runtime: empty filter expression")
	}
	f := &Filter{rt: r, expr: expr}
	if _, err := f.Match(ctx, &index.Symbol{}); err != nil {
		return nil, err
	}
	return f, nil
}

// Match reports whether sym satisfies the expression.
func (f *Filter) Match(ctx context.Context, sym *index.Symbol) (bool, error) {
	result, err := f.rt.eval(ctx, f.expr, "<filter>", f.rt.hostGlobals(f.rt.sources, symbolGlobals(sym)))
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}
	if e, ok := result.(*object.Error); ok {
		return false, fmt.Errorf("runtime: filter: %s", e.Inspect())
	}
	return result.IsTruthy(), nil
}

// Apply returns the symbols of syms that match, in order. It stops at the
// first evaluation error.
func (f *Filter) Apply(ctx context.Context, syms []*index.Symbol) ([]*index.Symbol, error) {
	var out []*index.Symbol
	for _, s := range syms {
		ok, err := f.Match(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("runtime: filter %s: %w", s.FqName, err)
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func symbolGlobals(s *index.Symbol) map[string]any {
	return map[string]any{
		"name":        object.NewString(s.Name),
		"fq_name":     object.NewString(s.FqName),
		"kind":        object.NewString(string(s.Kind)),
		"pkg":         object.NewString(s.PackageName),
		"visibility":  object.NewString(string(s.Visibility)),
		"deprecated":  object.NewBool(s.Deprecated),
		"receiver":    object.NewString(s.ReceiverType),
		"return_type": object.NewString(s.ReturnType),
		"container":   object.NewString(s.ContainingClass),
		"signature":   object.NewString(s.Signature),
		"file":        object.NewString(s.FilePath),
		"arity":       object.NewInt(int64(len(s.Parameters))),
		"type_params": stringList(s.TypeParameters),
		"supers":      stringList(s.SuperTypes),
	}
}

func stringList(vals []string) *object.List {
	items := make([]object.Object, len(vals))
	for i, v := range vals {
		items[i] = object.NewString(v)
	}
	return object.NewList(items)
}
