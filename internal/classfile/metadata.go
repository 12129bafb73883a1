package classfile

// Kotlin metadata kinds (the "k" element of @kotlin.Metadata).
const (
	metaClass          = 1
	metaFileFacade     = 2
	metaMultiFilePart  = 5
	functionFieldClass = 9
	functionFieldPkg   = 3
)

// kotlinMetadata holds the raw @kotlin.Metadata elements.
type kotlinMetadata struct {
	kind int
	d1   []string
	d2   []string
}

type annotations struct {
	deprecated         bool
	deprecationMessage string
	metadata           *kotlinMetadata
}

// readAnnotations scans a Runtime{Visible,Invisible}Annotations attribute
// body. Parsing stops quietly at the first malformed element; whatever was
// gathered before it is kept.
func readAnnotations(body []byte, pool constantPool) annotations {
	var out annotations
	c := &cursor{b: body}
	n := int(c.u2())
	for i := 0; i < n && !c.bad; i++ {
		typ, _ := pool.utf8(c.u2())
		pairs := int(c.u2())
		switch typ {
		case "Lkotlin/Metadata;":
			meta := &kotlinMetadata{}
			for j := 0; j < pairs && !c.bad; j++ {
				name, _ := pool.utf8(c.u2())
				switch name {
				case "k":
					if v, ok := readIntElement(c, pool); ok {
						meta.kind = int(v)
					}
				case "d1":
					meta.d1 = readStringArray(c, pool)
				case "d2":
					meta.d2 = readStringArray(c, pool)
				default:
					skipElement(c)
				}
			}
			if !c.bad {
				out.metadata = meta
			}
		case "Ljava/lang/Deprecated;", "Lkotlin/Deprecated;":
			out.deprecated = true
			for j := 0; j < pairs && !c.bad; j++ {
				name, _ := pool.utf8(c.u2())
				if name == "message" && c.need(1) && c.b[c.pos] == 's' {
					c.u1()
					out.deprecationMessage, _ = pool.utf8(c.u2())
					continue
				}
				skipElement(c)
			}
		default:
			for j := 0; j < pairs && !c.bad; j++ {
				c.skip(2)
				skipElement(c)
			}
		}
	}
	return out
}

func readIntElement(c *cursor, pool constantPool) (int32, bool) {
	if c.u1() != 'I' {
		c.bad = true
		return 0, false
	}
	return pool.integer(c.u2())
}

func readStringArray(c *cursor, pool constantPool) []string {
	if c.u1() != '[' {
		c.bad = true
		return nil
	}
	n := int(c.u2())
	var out []string
	for i := 0; i < n && !c.bad; i++ {
		tag := c.u1()
		if tag != 's' {
			skipElementBody(c, tag)
			continue
		}
		if s, ok := pool.utf8(c.u2()); ok {
			out = append(out, s)
		}
	}
	return out
}

func skipElement(c *cursor) {
	skipElementBody(c, c.u1())
}

func skipElementBody(c *cursor, tag byte) {
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		c.skip(2)
	case 'e':
		c.skip(4)
	case '@':
		c.skip(2)
		pairs := int(c.u2())
		for i := 0; i < pairs && !c.bad; i++ {
			c.skip(2)
			skipElement(c)
		}
	case '[':
		n := int(c.u2())
		for i := 0; i < n && !c.bad; i++ {
			skipElement(c)
		}
	default:
		c.bad = true
	}
}

// extensionFunctions decodes d1 and returns the names of functions that
// declare a receiver type. Only class, file facade and multi-file part
// metadata carry functions; other kinds yield an empty set.
func (m *kotlinMetadata) extensionFunctions() map[string]bool {
	out := make(map[string]bool)
	var field uint64
	switch m.kind {
	case metaClass:
		field = functionFieldClass
	case metaFileFacade, metaMultiFilePart:
		field = functionFieldPkg
	default:
		return out
	}

	p := &protoReader{b: decodeBitEncoding(m.d1)}
	// d1 starts with the length-delimited string table.
	p.skip(int(p.varint()))
	for !p.bad && p.pos < len(p.b) {
		num, wire := p.tag()
		if wire == 2 && num == field {
			msg := p.bytes(int(p.varint()))
			if name, ok := extensionName(msg, m.d2); ok {
				out[name] = true
			}
			continue
		}
		p.skipValue(wire)
	}
	return out
}

// extensionName reads a Function message: name is field 2, receiver_type
// field 5 and receiver_type_id field 8.
func extensionName(msg []byte, strs []string) (string, bool) {
	p := &protoReader{b: msg}
	name := -1
	receiver := false
	for !p.bad && p.pos < len(p.b) {
		num, wire := p.tag()
		switch {
		case num == 2 && wire == 0:
			name = int(p.varint())
		case num == 5 && wire == 2:
			receiver = true
			p.skipValue(wire)
		case num == 8 && wire == 0:
			receiver = true
			p.varint()
		default:
			p.skipValue(wire)
		}
	}
	if p.bad || !receiver || name < 0 || name >= len(strs) {
		return "", false
	}
	return strs[name], true
}

type protoReader struct {
	b   []byte
	pos int
	bad bool
}

func (p *protoReader) varint() uint64 {
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		if p.pos >= len(p.b) {
			p.bad = true
			return 0
		}
		x := p.b[p.pos]
		p.pos++
		v |= uint64(x&0x7F) << shift
		if x&0x80 == 0 {
			return v
		}
	}
	p.bad = true
	return 0
}

func (p *protoReader) tag() (uint64, uint64) {
	t := p.varint()
	return t >> 3, t & 7
}

func (p *protoReader) skip(n int) {
	if n < 0 || p.pos+n > len(p.b) {
		p.bad = true
		return
	}
	p.pos += n
}

func (p *protoReader) bytes(n int) []byte {
	start := p.pos
	p.skip(n)
	if p.bad {
		return nil
	}
	return p.b[start:p.pos]
}

func (p *protoReader) skipValue(wire uint64) {
	switch wire {
	case 0:
		p.varint()
	case 1:
		p.skip(8)
	case 2:
		p.skip(int(p.varint()))
	case 5:
		p.skip(4)
	default:
		p.bad = true
	}
}

// decodeBitEncoding reverses the string packing Kotlin uses for d1. A
// leading NUL marks the 8-bit mode where each char is one byte; otherwise
// the strings hold 7-bit groups shifted by one, optionally behind a U+FFFF
// marker.
func decodeBitEncoding(parts []string) []byte {
	var chars []rune
	for _, s := range parts {
		chars = append(chars, []rune(s)...)
	}
	if len(chars) == 0 {
		return nil
	}
	if chars[0] == 0 {
		out := make([]byte, len(chars)-1)
		for i, r := range chars[1:] {
			out[i] = byte(r)
		}
		return out
	}
	if chars[0] == 0xFFFF {
		chars = chars[1:]
	}
	raw := make([]byte, len(chars))
	for i, r := range chars {
		raw[i] = (byte(r) + 0x7F) & 0x7F
	}
	return decode7to8(raw)
}

func decode7to8(data []byte) []byte {
	n := 7 * len(data) / 8
	out := make([]byte, n)
	idx, bit := 0, uint(0)
	for i := range n {
		first := int(data[idx]) >> bit
		idx++
		second := (int(data[idx]) & (1<<(bit+1) - 1)) << (7 - bit)
		out[i] = byte(first + second)
		if bit == 6 {
			idx++
			bit = 0
		} else {
			bit++
		}
	}
	return out
}
