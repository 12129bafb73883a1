package classpath

import (
	"strings"

	"github.com/jward/symdex/internal/classfile"
	"github.com/jward/symdex/internal/index"
)

// SymbolsForClass turns one classfile into a class symbol followed by its
// public and protected members. A classfile that does not parse still
// yields a bare CLASS symbol for className.
func SymbolsForClass(className, source string, data []byte) []*index.Symbol {
	pkg, simple := splitClassName(className)
	info := classfile.Read(data)
	if !info.Valid {
		return []*index.Symbol{{
			Name:        simple,
			FqName:      className,
			Kind:        index.KindClass,
			PackageName: pkg,
			Visibility:  index.Public,
			FilePath:    source,
		}}
	}

	syms := []*index.Symbol{{
		Name:               simple,
		FqName:             className,
		Kind:               info.Kind,
		PackageName:        pkg,
		Visibility:         info.Visibility,
		TypeParameters:     info.TypeParameters,
		SuperTypes:         info.SuperTypes,
		FilePath:           source,
		Deprecated:         info.Deprecated,
		DeprecationMessage: info.DeprecationMessage,
	}}

	for _, m := range info.Methods {
		if !indexable(m) || m.Name == "<clinit>" {
			continue
		}
		sym := &index.Symbol{
			Name:            m.Name,
			FqName:          className + "." + m.Name,
			Kind:            index.KindFunction,
			PackageName:     pkg,
			ContainingClass: className,
			Visibility:      m.Visibility,
			Signature:       m.Descriptor,
			TypeParameters:  m.TypeParameters,
			Parameters:      m.Parameters,
			ReturnType:      m.ReturnType,
			FilePath:        source,
			Deprecated:      m.Deprecated,
		}
		switch {
		case m.Name == "<init>":
			sym.Kind = index.KindConstructor
		case m.IsExtension:
			sym.FqName = qualify(pkg, m.Name)
			sym.ContainingClass = ""
			sym.ReceiverType = m.ReceiverType
			sym.Parameters = m.Parameters[1:]
		}
		syms = append(syms, sym)
	}

	for _, f := range info.Fields {
		if !indexable(f) {
			continue
		}
		syms = append(syms, &index.Symbol{
			Name:            f.Name,
			FqName:          className + "." + f.Name,
			Kind:            index.KindProperty,
			PackageName:     pkg,
			ContainingClass: className,
			Visibility:      f.Visibility,
			Signature:       f.Descriptor,
			ReturnType:      f.ReturnType,
			FilePath:        source,
			Deprecated:      f.Deprecated,
		})
	}
	return syms
}

// indexable drops non-API members: anything not public or protected,
// synthetic or bridge members, and compiler-generated "$" names.
func indexable(m classfile.Member) bool {
	if m.Visibility != index.Public && m.Visibility != index.Protected {
		return false
	}
	if m.IsSynthetic || strings.HasPrefix(m.Name, "access$") || strings.Contains(m.Name, "$") {
		return false
	}
	return true
}

func splitClassName(className string) (pkg, simple string) {
	i := strings.LastIndexByte(className, '.')
	if i < 0 {
		return "", className
	}
	return className[:i], className[i+1:]
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}
