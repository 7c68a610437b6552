package writer

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jed1boy/anyfile/filters"
	"github.com/jed1boy/anyfile/object"
	"github.com/jed1boy/anyfile/security"
)

// serializeBody writes one indirect object's body, applying stream
// compression and encryption as configured. handler is nil for objects
// that must stay in the clear.
func (w *Writer) serializeBody(buf *bytes.Buffer, ref object.Ref, body object.Object, handler *security.Handler) error {
	if stream, ok := body.(*object.Stream); ok {
		return w.serializeStream(buf, ref, stream, handler)
	}
	if handler != nil {
		var err error
		body, err = encryptStrings(handler, ref, body)
		if err != nil {
			return err
		}
	}
	serializePrimitive(buf, body)
	return nil
}

func (w *Writer) serializeStream(buf *bytes.Buffer, ref object.Ref, stream *object.Stream, handler *security.Handler) error {
	dict := cloneDict(stream.Dict)
	data := stream.Data

	if w.cfg.CompressStreams && !dict.Has("Filter") {
		if typ, _ := object.AsName(dict.Get("Type")); typ != "XRef" && typ != "Metadata" {
			encoded, err := filters.FlateEncode(data)
			if err != nil {
				return err
			}
			if len(encoded) < len(data) {
				data = encoded
				dict.Set("Filter", object.Name("FlateDecode"))
			}
		}
	}

	if handler != nil {
		class := security.ClassStream
		if typ, _ := object.AsName(dict.Get("Type")); typ == "Metadata" {
			class = security.ClassMetadata
		}
		var err error
		data, err = handler.Encrypt(ref, data, class)
		if err != nil {
			return err
		}
		encDict, err := encryptStrings(handler, ref, dict)
		if err != nil {
			return err
		}
		dict = encDict.(*object.Dict)
	}
	dict.Set("Length", object.Integer(len(data)))

	serializePrimitive(buf, dict)
	buf.WriteString("\nstream\n")
	buf.Write(data)
	buf.WriteString("\nendstream")
	return nil
}

// encryptStrings returns a copy of o with every string encrypted for
// ref. Containers are copied; the input is never modified.
func encryptStrings(h *security.Handler, ref object.Ref, o object.Object) (object.Object, error) {
	switch v := o.(type) {
	case object.String:
		ct, err := h.Encrypt(ref, v.Bytes, security.ClassString)
		if err != nil {
			return nil, err
		}
		return object.String{Bytes: ct, Hex: true}, nil
	case *object.Array:
		out := &object.Array{Items: make([]object.Object, len(v.Items))}
		for i, item := range v.Items {
			e, err := encryptStrings(h, ref, item)
			if err != nil {
				return nil, err
			}
			out.Items[i] = e
		}
		return out, nil
	case *object.Dict:
		out := object.NewDict()
		for _, key := range v.Keys() {
			e, err := encryptStrings(h, ref, v.Get(key))
			if err != nil {
				return nil, err
			}
			out.Set(key, e)
		}
		return out, nil
	default:
		return o, nil
	}
}

func cloneDict(d *object.Dict) *object.Dict {
	out := object.NewDict()
	for _, key := range d.Keys() {
		out.Set(key, d.Get(key))
	}
	return out
}

func serializePrimitive(buf *bytes.Buffer, o object.Object) {
	switch v := o.(type) {
	case nil:
		buf.WriteString("null")
	case object.Null:
		buf.WriteString("null")
	case object.Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case object.Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case object.Real:
		// exponent notation is not valid in this grammar
		buf.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))
	case object.Name:
		writeName(buf, v)
	case object.String:
		writeString(buf, v)
	case object.Reference:
		fmt.Fprintf(buf, "%d %d R", v.R.Num, v.R.Gen)
	case *object.Array:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			serializePrimitive(buf, item)
		}
		buf.WriteByte(']')
	case *object.Dict:
		buf.WriteString("<<")
		for i, key := range v.Keys() {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeName(buf, key)
			buf.WriteByte(' ')
			serializePrimitive(buf, v.Get(key))
		}
		buf.WriteString(">>")
	case *object.Stream:
		serializePrimitive(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString("null")
	}
}

func writeName(buf *bytes.Buffer, n object.Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		b := n[i]
		if b <= ' ' || b > '~' || b == '#' || isNameDelimiter(b) {
			fmt.Fprintf(buf, "#%02X", b)
		} else {
			buf.WriteByte(b)
		}
	}
}

func isNameDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func writeString(buf *bytes.Buffer, s object.String) {
	if s.Hex || mostlyBinary(s.Bytes) {
		buf.WriteByte('<')
		for _, b := range s.Bytes {
			fmt.Fprintf(buf, "%02X", b)
		}
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, b := range s.Bytes {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
}

func mostlyBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	binary := 0
	for _, b := range data {
		if b < ' ' && b != '\n' && b != '\r' && b != '\t' {
			binary++
		}
	}
	return binary*4 > len(data)
}
