// Package object defines the primitive PDF object types and the
// indirect-object graph that every other package operates on.
package object

import (
	"fmt"
	"sort"
)

// Ref identifies an indirect object by number and generation.
type Ref struct {
	Num int
	Gen int
}

func (r Ref) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// IsZero reports whether r is the zero reference, which never names a
// real object.
func (r Ref) IsZero() bool { return r.Num == 0 && r.Gen == 0 }

// Object is implemented by every PDF value.
type Object interface {
	Kind() string
}

// Name is a PDF name without the leading slash.
type Name string

func (Name) Kind() string { return "name" }

// Integer is a PDF integer.
type Integer int64

func (Integer) Kind() string { return "integer" }

// Real is a PDF real number.
type Real float64

func (Real) Kind() string { return "real" }

// Bool is a PDF boolean.
type Bool bool

func (Bool) Kind() string { return "boolean" }

// Null is the PDF null object.
type Null struct{}

func (Null) Kind() string { return "null" }

// String is a PDF string. Hex records which written form it came from;
// the writer may pick either form regardless.
type String struct {
	Bytes []byte
	Hex   bool
}

func (String) Kind() string { return "string" }

// Array is a PDF array.
type Array struct {
	Items []Object
}

func (*Array) Kind() string { return "array" }

func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Items)
}

func (a *Array) Get(i int) Object {
	if a == nil || i < 0 || i >= len(a.Items) {
		return nil
	}
	return a.Items[i]
}

func (a *Array) Append(items ...Object) { a.Items = append(a.Items, items...) }

// Dict is a PDF dictionary keyed by name.
type Dict struct {
	KV map[Name]Object
}

func (*Dict) Kind() string { return "dict" }

func NewDict() *Dict { return &Dict{KV: make(map[Name]Object)} }

func (d *Dict) Get(key Name) Object {
	if d == nil {
		return nil
	}
	return d.KV[key]
}

func (d *Dict) Set(key Name, value Object) {
	if d.KV == nil {
		d.KV = make(map[Name]Object)
	}
	d.KV[key] = value
}

func (d *Dict) Delete(key Name) {
	if d != nil {
		delete(d.KV, key)
	}
}

func (d *Dict) Has(key Name) bool {
	if d == nil {
		return false
	}
	_, ok := d.KV[key]
	return ok
}

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.KV)
}

// Keys returns the dictionary keys in sorted order so that callers
// iterating a dictionary produce stable output.
func (d *Dict) Keys() []Name {
	if d == nil {
		return nil
	}
	keys := make([]Name, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Stream is a PDF stream: a dictionary plus raw (possibly encoded) data.
type Stream struct {
	Dict *Dict
	Data []byte
}

func (*Stream) Kind() string { return "stream" }

func NewStream(dict *Dict, data []byte) *Stream {
	if dict == nil {
		dict = NewDict()
	}
	dict.Set("Length", Integer(len(data)))
	return &Stream{Dict: dict, Data: data}
}

// Reference is an indirect reference appearing as a value.
type Reference struct {
	R Ref
}

func (Reference) Kind() string { return "ref" }

func MakeRef(num, gen int) Reference { return Reference{R: Ref{Num: num, Gen: gen}} }

// Name accessor helpers. Each returns the zero value when the object is
// absent or of a different kind; callers that need to distinguish use
// the ok form.

func AsName(o Object) (Name, bool) {
	n, ok := o.(Name)
	return n, ok
}

func AsInt(o Object) (int64, bool) {
	switch v := o.(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

func AsFloat(o Object) (float64, bool) {
	switch v := o.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

func AsString(o Object) ([]byte, bool) {
	s, ok := o.(String)
	if !ok {
		return nil, false
	}
	return s.Bytes, true
}

func AsArray(o Object) (*Array, bool) {
	a, ok := o.(*Array)
	return a, ok
}

func AsDict(o Object) (*Dict, bool) {
	switch v := o.(type) {
	case *Dict:
		return v, true
	case *Stream:
		return v.Dict, true
	}
	return nil, false
}

func AsStream(o Object) (*Stream, bool) {
	s, ok := o.(*Stream)
	return s, ok
}
