package parser

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jed1boy/anyfile/object"
	"github.com/jed1boy/anyfile/security"
	"github.com/jed1boy/anyfile/writer"
)

func parseOne(t *testing.T, src string) object.Object {
	t.Helper()
	o, err := newTokenReader([]byte(src)).parseObject()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return o
}

func TestParseScalars(t *testing.T) {
	tests := []struct {
		src  string
		want object.Object
	}{
		{"42", object.Integer(42)},
		{"-17", object.Integer(-17)},
		{"3.14", object.Real(3.14)},
		{"-.5", object.Real(-0.5)},
		{"true", object.Bool(true)},
		{"false", object.Bool(false)},
		{"null", object.Null{}},
		{"/Name", object.Name("Name")},
		{"/A#20B", object.Name("A B")},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := parseOne(t, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStrings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []byte
	}{
		{"plain", "(hello)", []byte("hello")},
		{"nested parens", "(a (b) c)", []byte("a (b) c")},
		{"escapes", `(a\(b\)\\c)`, []byte(`a(b)\c`)},
		{"octal", `(\101\102)`, []byte("AB")},
		{"line continuation", "(a\\\nb)", []byte("ab")},
		{"hex", "<48 65 6C>", []byte("Hel")},
		{"hex odd pad", "<486>", []byte("H`")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseOne(t, tt.src).(object.String)
			if !ok {
				t.Fatalf("not a string")
			}
			if !bytes.Equal(got.Bytes, tt.want) {
				t.Errorf("bytes = %q, want %q", got.Bytes, tt.want)
			}
		})
	}
}

func TestParseCompound(t *testing.T) {
	arr, ok := parseOne(t, "[1 /Two (three) [4]]").(*object.Array)
	if !ok {
		t.Fatal("not an array")
	}
	if arr.Len() != 4 {
		t.Fatalf("array length = %d, want 4", arr.Len())
	}

	d, ok := parseOne(t, "<< /Type /Page /MediaBox [0 0 612 792] /Parent 3 0 R >>").(*object.Dict)
	if !ok {
		t.Fatal("not a dict")
	}
	if typ, _ := object.AsName(d.Get("Type")); typ != "Page" {
		t.Errorf("Type = %q, want Page", typ)
	}
	ref, ok := d.Get("Parent").(object.Reference)
	if !ok || ref.R.Num != 3 {
		t.Errorf("Parent = %v, want 3 0 R", d.Get("Parent"))
	}
}

// buildFile serializes a minimal two-object document through the
// writer, giving load tests real input.
func buildFile(t *testing.T, cfg writer.Config) []byte {
	t.Helper()
	g := object.NewGraph()

	page := object.NewDict()
	page.Set("Type", object.Name("Page"))
	page.Set("MediaBox", &object.Array{Items: []object.Object{
		object.Integer(0), object.Integer(0), object.Integer(612), object.Integer(792),
	}})
	pageRef := g.Add(page)

	pages := object.NewDict()
	pages.Set("Type", object.Name("Pages"))
	pages.Set("Kids", &object.Array{Items: []object.Object{object.MakeRef(pageRef.Num, pageRef.Gen)}})
	pages.Set("Count", object.Integer(1))
	pagesRef := g.Add(pages)
	page.Set("Parent", object.MakeRef(pagesRef.Num, pagesRef.Gen))

	catalog := object.NewDict()
	catalog.Set("Type", object.Name("Catalog"))
	catalog.Set("Pages", object.MakeRef(pagesRef.Num, pagesRef.Gen))
	catalogRef := g.Add(catalog)
	g.Trailer.Set("Root", object.MakeRef(catalogRef.Num, catalogRef.Gen))

	data, err := writer.New(cfg).Write(g)
	if err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return data
}

func TestLoadRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name string
		cfg  writer.Config
	}{
		{"classic xref", writer.Config{}},
		{"xref stream", writer.Config{XRefStreams: true}},
		{"object streams", writer.Config{ObjectStreams: true}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewLoaderBuilder().Build().Load(buildFile(t, tt.cfg))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if res.Encrypted {
				t.Error("plain file reported as encrypted")
			}
			root, ok := res.Graph.Root()
			if !ok {
				t.Fatal("no catalog after load")
			}
			pages, ok := res.Graph.ResolveDict(root.Get("Pages"))
			if !ok {
				t.Fatal("no page tree after load")
			}
			if count, _ := res.Graph.ResolveInt(pages.Get("Count")); count != 1 {
				t.Errorf("page count = %d, want 1", count)
			}
		})
	}
}

func TestLoadRecoversFromBrokenStartXref(t *testing.T) {
	data := buildFile(t, writer.Config{})
	// point startxref into the middle of nowhere
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		t.Fatal("no startxref in fixture")
	}
	broken := append([]byte(nil), data[:idx]...)
	broken = append(broken, []byte("startxref\n999999999\n%%EOF\n")...)

	res, err := NewLoaderBuilder().Build().Load(broken)
	if err != nil {
		t.Fatalf("load after corruption: %v", err)
	}
	if _, ok := res.Graph.Root(); !ok {
		t.Error("recovery scan did not find the catalog")
	}
}

func TestLoadMalformed(t *testing.T) {
	for _, tt := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"no header", []byte("hello world")},
		{"header only", []byte("%PDF-1.7\n")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoaderBuilder().Build().Load(tt.data)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestLoadEncryptedNeedsPassword(t *testing.T) {
	g := object.NewGraph()
	page := object.NewDict()
	page.Set("Type", object.Name("Page"))
	pageRef := g.Add(page)
	pages := object.NewDict()
	pages.Set("Type", object.Name("Pages"))
	pages.Set("Kids", &object.Array{Items: []object.Object{object.MakeRef(pageRef.Num, pageRef.Gen)}})
	pages.Set("Count", object.Integer(1))
	pagesRef := g.Add(pages)
	catalog := object.NewDict()
	catalog.Set("Type", object.Name("Catalog"))
	catalog.Set("Pages", object.MakeRef(pagesRef.Num, pagesRef.Gen))
	catalogRef := g.Add(catalog)
	g.Trailer.Set("Root", object.MakeRef(catalogRef.Num, catalogRef.Gen))

	data, err := writer.New(writer.Config{
		Encryption: &security.Options{UserPassword: "pw"},
	}).Write(g)
	if err != nil {
		t.Fatalf("write encrypted: %v", err)
	}

	if _, err := NewLoaderBuilder().Build().Load(data); !errors.Is(err, security.ErrIncorrectPassword) {
		t.Fatalf("no-password load err = %v, want ErrIncorrectPassword", err)
	}

	res, err := NewLoaderBuilder().WithPassword("pw").Build().Load(data)
	if err != nil {
		t.Fatalf("load with password: %v", err)
	}
	if !res.Encrypted {
		t.Error("encrypted file not reported as encrypted")
	}
}
