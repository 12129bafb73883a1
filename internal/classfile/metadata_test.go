package classfile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packageProto is d1 for a file facade declaring `fun String.shout()` and
// `fun plain()`: an empty string table followed by two Function messages in
// field 3.
var packageProto = []byte{
	0x00,
	0x1A, 0x06, 0x10, 0x00, 0x2A, 0x02, 0x30, 0x01,
	0x1A, 0x02, 0x10, 0x01,
}

func utf8Mode(b []byte) string {
	runes := []rune{0}
	for _, x := range b {
		runes = append(runes, rune(x))
	}
	return string(runes)
}

// encode8to7 packs b into 7-bit groups, least significant bit first, each
// shifted up by one.
func encode8to7(b []byte) string {
	bits := len(b) * 8
	groups := (bits + 6) / 7
	runes := make([]rune, groups)
	for g := range groups {
		v := 0
		for k := range 7 {
			bit := g*7 + k
			if bit < bits && b[bit/8]&(1<<(bit%8)) != 0 {
				v |= 1 << k
			}
		}
		runes[g] = rune(v + 1)
	}
	return string(runes)
}

func (b *classBuilder) metadataAnnotation(kind int32, d1 []string, d2 []string) []byte {
	body := binary.BigEndian.AppendUint16(nil, 1)
	body = binary.BigEndian.AppendUint16(body, b.utf8("Lkotlin/Metadata;"))
	body = binary.BigEndian.AppendUint16(body, 4)

	body = binary.BigEndian.AppendUint16(body, b.utf8("mv"))
	body = append(body, '[')
	body = binary.BigEndian.AppendUint16(body, 1)
	body = append(body, 'I')
	body = binary.BigEndian.AppendUint16(body, b.integer(1))

	body = binary.BigEndian.AppendUint16(body, b.utf8("k"))
	body = append(body, 'I')
	body = binary.BigEndian.AppendUint16(body, b.integer(kind))

	for _, arr := range []struct {
		name string
		vals []string
	}{{"d1", d1}, {"d2", d2}} {
		body = binary.BigEndian.AppendUint16(body, b.utf8(arr.name))
		body = append(body, '[')
		body = binary.BigEndian.AppendUint16(body, uint16(len(arr.vals)))
		for _, v := range arr.vals {
			body = append(body, 's')
			body = binary.BigEndian.AppendUint16(body, b.utf8(v))
		}
	}
	return b.attr("RuntimeVisibleAnnotations", body)
}

func TestRead_KotlinExtensionFunctions(t *testing.T) {
	t.Parallel()
	b := newClassBuilder("demo/StringsKt")
	b.method(accPublic|accStatic, "shout", "(Ljava/lang/String;)Ljava/lang/String;")
	b.method(accPublic|accStatic, "plain", "()V")
	b.classAttr = append(b.classAttr,
		b.metadataAnnotation(metaFileFacade, []string{utf8Mode(packageProto)}, []string{"shout", "plain"}))

	info := Read(b.bytes())
	require.True(t, info.Valid)
	require.Len(t, info.Methods, 2)
	assert.True(t, info.Methods[0].IsExtension)
	assert.Equal(t, "String", info.Methods[0].ReceiverType)
	assert.False(t, info.Methods[1].IsExtension)
}

func TestRead_MetadataKindWithoutFunctions(t *testing.T) {
	t.Parallel()
	b := newClassBuilder("demo/Synthetic")
	b.method(accPublic|accStatic, "shout", "(Ljava/lang/String;)V")
	b.classAttr = append(b.classAttr,
		b.metadataAnnotation(3, []string{utf8Mode(packageProto)}, []string{"shout"}))

	info := Read(b.bytes())
	require.True(t, info.Valid)
	assert.False(t, info.Methods[0].IsExtension)
}

func TestRead_CorruptMetadataKeepsClass(t *testing.T) {
	t.Parallel()
	b := newClassBuilder("demo/Broken")
	b.method(accPublic, "run", "()V")
	b.classAttr = append(b.classAttr,
		b.metadataAnnotation(metaClass, []string{utf8Mode([]byte{0x7F, 0xFF, 0xFF})}, nil))

	info := Read(b.bytes())
	require.True(t, info.Valid)
	assert.False(t, info.Methods[0].IsExtension)
}

func TestRead_DeprecatedAnnotationMessage(t *testing.T) {
	t.Parallel()
	b := newClassBuilder("demo/Old")
	body := binary.BigEndian.AppendUint16(nil, 2)
	// An unrelated annotation with a nested annotation value comes first.
	body = binary.BigEndian.AppendUint16(body, b.utf8("Ldemo/Marker;"))
	body = binary.BigEndian.AppendUint16(body, 1)
	body = binary.BigEndian.AppendUint16(body, b.utf8("value"))
	body = append(body, '@')
	body = binary.BigEndian.AppendUint16(body, b.utf8("Ldemo/Inner;"))
	body = binary.BigEndian.AppendUint16(body, 0)

	body = binary.BigEndian.AppendUint16(body, b.utf8("Lkotlin/Deprecated;"))
	body = binary.BigEndian.AppendUint16(body, 1)
	body = binary.BigEndian.AppendUint16(body, b.utf8("message"))
	body = append(body, 's')
	body = binary.BigEndian.AppendUint16(body, b.utf8("use New"))
	b.classAttr = append(b.classAttr, b.attr("RuntimeVisibleAnnotations", body))

	info := Read(b.bytes())
	require.True(t, info.Valid)
	assert.True(t, info.Deprecated)
	assert.Equal(t, "use New", info.DeprecationMessage)
}

func TestDecodeBitEncoding(t *testing.T) {
	t.Parallel()
	assert.Equal(t, packageProto, decodeBitEncoding([]string{utf8Mode(packageProto)}))

	split := utf8Mode(packageProto)
	assert.Equal(t, packageProto, decodeBitEncoding([]string{split[:4], split[4:]}))

	assert.Equal(t, packageProto, decodeBitEncoding([]string{encode8to7(packageProto)}))
	assert.Equal(t, packageProto, decodeBitEncoding([]string{"\uffff" + encode8to7(packageProto)}))

	assert.Nil(t, decodeBitEncoding(nil))
}

func TestExtensionFunctions_ReceiverTypeID(t *testing.T) {
	t.Parallel()
	// Class message, function field 9, receiver given as receiver_type_id.
	d1 := []byte{0x00, 0x4A, 0x04, 0x10, 0x00, 0x40, 0x03}
	meta := &kotlinMetadata{kind: metaClass, d1: []string{utf8Mode(d1)}, d2: []string{"twice"}}
	assert.Equal(t, map[string]bool{"twice": true}, meta.extensionFunctions())
}
