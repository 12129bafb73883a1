// Package classfile reads the declarations out of compiled JVM classfiles:
// class kind and visibility, supertypes, methods and fields with decoded
// descriptors, and the extension functions recorded in Kotlin metadata.
// Bytecode bodies are never interpreted.
package classfile

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/jward/symdex/internal/index"
)

const magic = 0xCAFEBABE

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// Access flags.
const (
	accPublic     = 0x0001
	accPrivate    = 0x0002
	accProtected  = 0x0004
	accStatic     = 0x0008
	accBridge     = 0x0040
	accInterface  = 0x0200
	accSynthetic  = 0x1000
	accAnnotation = 0x2000
	accEnum       = 0x4000
)

// ClassInfo is the declaration-level content of one classfile.
type ClassInfo struct {
	Name           string // dotted, e.g. "kotlin.collections.CollectionsKt"
	Kind           index.SymbolKind
	Visibility     index.Visibility
	TypeParameters []string
	SuperTypes     []string
	Methods        []Member
	Fields         []Member

	Deprecated         bool
	DeprecationMessage string

	// Valid is false for the Empty result.
	Valid bool
}

// Empty is returned for anything that is not a well-formed classfile.
var Empty = ClassInfo{}

// Member is a method or field.
type Member struct {
	Name           string
	Descriptor     string
	Visibility     index.Visibility
	TypeParameters []string
	Parameters     []index.Parameter // nil for fields
	ReturnType     string            // the field type for fields
	IsStatic       bool
	IsSynthetic    bool
	Deprecated     bool

	// IsExtension is set when Kotlin metadata declares the method as an
	// extension; ReceiverType is then the first parameter's type.
	IsExtension  bool
	ReceiverType string
}

// cursor is a bounds-checked big-endian reader. A read past the end sets
// bad and yields zero values; callers check bad at convenient points.
type cursor struct {
	b   []byte
	pos int
	bad bool
}

func (c *cursor) need(n int) bool {
	if c.bad || n < 0 || c.pos+n > len(c.b) || c.pos+n < c.pos {
		c.bad = true
		return false
	}
	return true
}

func (c *cursor) u1() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.b[c.pos]
	c.pos++
	return v
}

func (c *cursor) u2() uint16 {
	if !c.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(c.b[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) u4() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(c.b[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) bytes(n int) []byte {
	if !c.need(n) {
		return nil
	}
	v := c.b[c.pos : c.pos+n]
	c.pos += n
	return v
}

func (c *cursor) skip(n int) {
	if c.need(n) {
		c.pos += n
	}
}

// poolEntry keeps the constant pool data used after the scan.
type poolEntry struct {
	tag  uint8
	str  string // Utf8
	ref  uint16 // Class name index
	ival int32  // Integer
}

type constantPool []poolEntry

func (p constantPool) utf8(i uint16) (string, bool) {
	if int(i) >= len(p) || p[i].tag != tagUtf8 {
		return "", false
	}
	return p[i].str, true
}

func (p constantPool) className(i uint16) (string, bool) {
	if int(i) >= len(p) || p[i].tag != tagClass {
		return "", false
	}
	name, ok := p.utf8(p[i].ref)
	if !ok {
		return "", false
	}
	return internalToDotted(name), true
}

func (p constantPool) integer(i uint16) (int32, bool) {
	if int(i) >= len(p) || p[i].tag != tagInteger {
		return 0, false
	}
	return p[i].ival, true
}

// Read parses one classfile. It never panics: any malformed or truncated
// input returns Empty.
func Read(data []byte) (info ClassInfo) {
	defer func() {
		if r := recover(); r != nil {
			info = Empty
		}
	}()

	c := &cursor{b: data}
	if c.u4() != magic {
		return Empty
	}
	c.skip(4) // minor, major version

	pool, ok := readConstantPool(c)
	if !ok {
		return Empty
	}

	flags := c.u2()
	thisName, ok := pool.className(c.u2())
	if !ok {
		return Empty
	}
	superIdx := c.u2()

	info = ClassInfo{
		Name:       thisName,
		Kind:       classKind(flags),
		Visibility: visibility(flags),
		Valid:      true,
	}
	if superIdx != 0 {
		super, ok := pool.className(superIdx)
		if !ok {
			return Empty
		}
		if super != "java.lang.Object" {
			info.SuperTypes = append(info.SuperTypes, KotlinType(super))
		}
	}
	for range int(c.u2()) {
		iface, ok := pool.className(c.u2())
		if !ok {
			return Empty
		}
		info.SuperTypes = append(info.SuperTypes, KotlinType(iface))
	}
	if c.bad {
		return Empty
	}

	if info.Fields, ok = readMembers(c, pool, false); !ok {
		return Empty
	}
	if info.Methods, ok = readMembers(c, pool, true); !ok {
		return Empty
	}

	attrs, ok := readAttributes(c, pool)
	if !ok {
		return Empty
	}
	var meta *kotlinMetadata
	for _, a := range attrs {
		switch a.name {
		case "Signature":
			info.TypeParameters = signatureTypeParameters(a.body, pool)
		case "Deprecated":
			info.Deprecated = true
		case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
			ann := readAnnotations(a.body, pool)
			if ann.deprecated {
				info.Deprecated = true
				if info.DeprecationMessage == "" {
					info.DeprecationMessage = ann.deprecationMessage
				}
			}
			if ann.metadata != nil {
				meta = ann.metadata
			}
		}
	}

	if meta != nil {
		names := meta.extensionFunctions()
		for i := range info.Methods {
			m := &info.Methods[i]
			if names[m.Name] && len(m.Parameters) > 0 {
				m.IsExtension = true
				m.ReceiverType = m.Parameters[0].Type
			}
		}
	}
	return info
}

func readConstantPool(c *cursor) (constantPool, bool) {
	count := int(c.u2())
	if c.bad || count == 0 {
		return nil, false
	}
	pool := make(constantPool, count)
	for i := 1; i < count; i++ {
		tag := c.u1()
		pool[i].tag = tag
		switch tag {
		case tagUtf8:
			n := int(c.u2())
			pool[i].str = decodeModifiedUTF8(c.bytes(n))
		case tagInteger:
			pool[i].ival = int32(c.u4())
		case tagFloat:
			c.skip(4)
		case tagLong, tagDouble:
			c.skip(8)
			i++ // occupies two slots
		case tagClass:
			pool[i].ref = c.u2()
		case tagString, tagMethodType, tagModule, tagPackage:
			c.skip(2)
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType,
			tagDynamic, tagInvokeDynamic:
			c.skip(4)
		case tagMethodHandle:
			c.skip(3)
		default:
			return nil, false
		}
		if c.bad {
			return nil, false
		}
	}
	return pool, true
}

type attribute struct {
	name string
	body []byte
}

func readAttributes(c *cursor, pool constantPool) ([]attribute, bool) {
	n := int(c.u2())
	attrs := make([]attribute, 0, n)
	for range n {
		nameIdx := c.u2()
		length := c.u4()
		if uint64(length) > uint64(len(c.b)) {
			return nil, false
		}
		body := c.bytes(int(length))
		if c.bad {
			return nil, false
		}
		name, _ := pool.utf8(nameIdx)
		attrs = append(attrs, attribute{name: name, body: body})
	}
	return attrs, !c.bad
}

func readMembers(c *cursor, pool constantPool, methods bool) ([]Member, bool) {
	n := int(c.u2())
	if c.bad {
		return nil, false
	}
	out := make([]Member, 0, n)
	for range n {
		flags := c.u2()
		name, ok := pool.utf8(c.u2())
		if !ok {
			return nil, false
		}
		desc, ok := pool.utf8(c.u2())
		if !ok {
			return nil, false
		}
		attrs, ok := readAttributes(c, pool)
		if !ok {
			return nil, false
		}

		m := Member{
			Name:        name,
			Descriptor:  desc,
			Visibility:  visibility(flags),
			IsStatic:    flags&accStatic != 0,
			IsSynthetic: flags&(accSynthetic|accBridge) != 0,
		}
		if methods {
			m.Parameters, m.ReturnType = ParseMethodDescriptor(desc)
		} else {
			m.ReturnType = ParseFieldDescriptor(desc)
		}
		for _, a := range attrs {
			switch a.name {
			case "Signature":
				m.TypeParameters = signatureTypeParameters(a.body, pool)
			case "Deprecated":
				m.Deprecated = true
			case "RuntimeVisibleAnnotations":
				if readAnnotations(a.body, pool).deprecated {
					m.Deprecated = true
				}
			}
		}
		out = append(out, m)
	}
	return out, true
}

func signatureTypeParameters(body []byte, pool constantPool) []string {
	c := &cursor{b: body}
	sig, ok := pool.utf8(c.u2())
	if !ok || c.bad {
		return nil
	}
	return TypeParameters(sig)
}

func classKind(flags uint16) index.SymbolKind {
	switch {
	case flags&accAnnotation != 0:
		return index.KindAnnotationClass
	case flags&accEnum != 0:
		return index.KindEnumClass
	case flags&accInterface != 0:
		return index.KindInterface
	}
	return index.KindClass
}

func visibility(flags uint16) index.Visibility {
	switch {
	case flags&accPublic != 0:
		return index.Public
	case flags&accProtected != 0:
		return index.Protected
	case flags&accPrivate != 0:
		return index.Private
	}
	return index.Internal
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8, where NUL is two
// bytes and supplementary characters are surrogate pairs. Invalid
// sequences decode to U+FFFD.
func decodeModifiedUTF8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		x := b[i]
		switch {
		case x < 0x80:
			units = append(units, uint16(x))
			i++
		case x&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(x&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case x&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(x&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}
	return string(utf16.Decode(units))
}
