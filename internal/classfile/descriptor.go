package classfile

import (
	"strconv"
	"strings"

	"github.com/jward/symdex/internal/index"
)

// kotlinNames maps java.lang types that Kotlin exposes under its own names.
var kotlinNames = map[string]string{
	"java.lang.String":       "String",
	"java.lang.Object":       "Any",
	"java.lang.CharSequence": "CharSequence",
	"java.lang.Number":       "Number",
	"java.lang.Throwable":    "Throwable",
	"java.lang.Comparable":   "Comparable",
}

// KotlinType maps a dotted JVM class name to the name Kotlin code uses.
func KotlinType(className string) string {
	if k, ok := kotlinNames[className]; ok {
		return k
	}
	return className
}

// internalToDotted converts "java/util/Map$Entry" to "java.util.Map.Entry".
func internalToDotted(name string) string {
	return strings.NewReplacer("/", ".", "$", ".").Replace(name)
}

// ParseFieldDescriptor decodes a single field type descriptor such as "I",
// "Ljava/lang/String;" or "[[J". Malformed descriptors decode to "Any".
func ParseFieldDescriptor(desc string) string {
	t, _ := parseType(desc, 0)
	return t
}

// ParseMethodDescriptor decodes "(params)ret" into parameters named p0, p1,
// ... and a return type. A descriptor without ")" has no parameters and
// returns Unit.
func ParseMethodDescriptor(desc string) ([]index.Parameter, string) {
	end := strings.IndexByte(desc, ')')
	if end < 0 || !strings.HasPrefix(desc, "(") {
		return nil, "Unit"
	}
	var params []index.Parameter
	for i := 1; i < end; {
		t, next := parseType(desc[:end], i)
		params = append(params, index.Parameter{Name: "p" + strconv.Itoa(len(params)), Type: t})
		i = next
	}
	return params, ParseFieldDescriptor(desc[end+1:])
}

// parseType decodes the type starting at desc[i] and returns it with the
// index just past it. The returned index always advances.
func parseType(desc string, i int) (string, int) {
	if i >= len(desc) {
		return "Any", len(desc) + 1
	}
	switch desc[i] {
	case 'B':
		return "Byte", i + 1
	case 'C':
		return "Char", i + 1
	case 'D':
		return "Double", i + 1
	case 'F':
		return "Float", i + 1
	case 'I':
		return "Int", i + 1
	case 'J':
		return "Long", i + 1
	case 'S':
		return "Short", i + 1
	case 'Z':
		return "Boolean", i + 1
	case 'V':
		return "Unit", i + 1
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end <= 1 {
			return "Any", len(desc)
		}
		return KotlinType(internalToDotted(desc[i+1 : i+end])), i + end + 1
	case '[':
		elem, next := parseType(desc, i+1)
		return "Array<" + elem + ">", next
	}
	return "Any", i + 1
}

// TypeParameters extracts the formal type parameter names from a generic
// Signature attribute, e.g. "<K:Ljava/lang/Object;V:Ljava/lang/Object;>..."
// yields [K V]. Anything unparseable yields nil.
func TypeParameters(sig string) []string {
	if !strings.HasPrefix(sig, "<") {
		return nil
	}
	var names []string
	i := 1
	for i < len(sig) && sig[i] != '>' {
		colon := strings.IndexByte(sig[i:], ':')
		if colon <= 0 {
			return nil
		}
		names = append(names, sig[i:i+colon])
		i += colon
		// Class bound, then any number of interface bounds.
		for i < len(sig) && sig[i] == ':' {
			i++
			if i < len(sig) && sig[i] != ':' && sig[i] != '>' {
				next, ok := skipReferenceSignature(sig, i)
				if !ok {
					return nil
				}
				i = next
			}
		}
	}
	if i >= len(sig) {
		return nil
	}
	return names
}

// skipReferenceSignature returns the index after the reference type
// signature at sig[i].
func skipReferenceSignature(sig string, i int) (int, bool) {
	switch sig[i] {
	case 'T':
		end := strings.IndexByte(sig[i:], ';')
		if end < 0 {
			return 0, false
		}
		return i + end + 1, true
	case '[':
		if i+1 >= len(sig) {
			return 0, false
		}
		if strings.IndexByte("BCDFIJSZ", sig[i+1]) >= 0 {
			return i + 2, true
		}
		return skipReferenceSignature(sig, i+1)
	case 'L':
		depth := 0
		for j := i + 1; j < len(sig); j++ {
			switch sig[j] {
			case '<':
				depth++
			case '>':
				depth--
			case ';':
				if depth == 0 {
					return j + 1, true
				}
			}
		}
	}
	return 0, false
}
