package document

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jed1boy/anyfile/object"
)

func saveLoad(t *testing.T, d *Document, opts SaveOptions) *Document {
	t.Helper()
	data, err := d.Save(opts)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := Load(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return out
}

func TestNewDocumentRoundTrip(t *testing.T) {
	d := New()
	d.AddPage(612, 792)
	d.AddPage(300, 400)

	for _, tt := range []struct {
		name string
		opts SaveOptions
	}{
		{"classic xref", SaveOptions{}},
		{"xref stream", SaveOptions{XRefStreams: true}},
		{"object streams", SaveOptions{ObjectStreams: true}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out := saveLoad(t, d, tt.opts)
			if out.PageCount() != 2 {
				t.Fatalf("page count = %d, want 2", out.PageCount())
			}
			if w, h := out.Pages()[1].Size(); w != 300 || h != 400 {
				t.Errorf("page 1 size = %vx%v, want 300x400", w, h)
			}
		})
	}
}

func TestPageIndexError(t *testing.T) {
	d := New()
	d.AddPage(100, 100)
	if _, err := d.Page(1); !errors.Is(err, ErrPageIndex) {
		t.Fatalf("err = %v, want ErrPageIndex", err)
	}
	if _, err := d.Page(-1); !errors.Is(err, ErrPageIndex) {
		t.Fatalf("err = %v, want ErrPageIndex", err)
	}
}

func TestRotationAccumulates(t *testing.T) {
	d := New()
	page := d.AddPage(100, 100)

	steps := []struct {
		delta int
		want  int
	}{
		{90, 90},
		{90, 180},
		{180, 0},
		{270, 270},
		{-90, 180},
	}
	for _, s := range steps {
		page.Rotate(s.delta)
		if got := page.Rotation(); got != s.want {
			t.Fatalf("after +%d: rotation = %d, want %d", s.delta, got, s.want)
		}
	}
}

func TestRotationSurvivesRoundTrip(t *testing.T) {
	d := New()
	d.AddPage(100, 100).Rotate(270)
	out := saveLoad(t, d, SaveOptions{})
	if got := out.Pages()[0].Rotation(); got != 270 {
		t.Errorf("rotation = %d, want 270", got)
	}
}

func TestMetadataSetAndClear(t *testing.T) {
	d := New()
	d.AddPage(100, 100)
	want := Metadata{
		Title: "T", Author: "A", Subject: "S",
		Keywords: "K", Producer: "P", Creator: "C",
	}
	d.SetMetadata(want)

	out := saveLoad(t, d, SaveOptions{})
	if diff := cmp.Diff(want, out.Metadata()); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}

	out.ClearMetadata()
	cleared := saveLoad(t, out, SaveOptions{})
	if diff := cmp.Diff(Metadata{}, cleared.Metadata()); diff != "" {
		t.Errorf("metadata not cleared (-want +got):\n%s", diff)
	}
}

func TestClearMetadataDropsXMPStream(t *testing.T) {
	d := New()
	d.AddPage(100, 100)

	meta := object.NewDict()
	meta.Set("Type", object.Name("Metadata"))
	meta.Set("Subtype", object.Name("XML"))
	ref := d.Graph().Add(object.NewStream(meta, []byte("<x:xmpmeta/>")))
	root, _ := d.Graph().Root()
	root.Set("Metadata", object.MakeRef(ref.Num, ref.Gen))

	d.ClearMetadata()
	if root.Has("Metadata") {
		t.Error("catalog still references the XMP metadata stream")
	}
}

func TestAppendContentGrowsArray(t *testing.T) {
	d := New()
	page := d.AddPage(100, 100)

	page.AppendContent([]byte("q Q"))
	if _, ok := page.Dict().Get("Contents").(object.Reference); !ok {
		t.Fatalf("single content should be a direct reference, got %T", page.Dict().Get("Contents"))
	}

	page.AppendContent([]byte("q 1 0 0 1 0 0 cm Q"))
	arr, ok := d.Graph().ResolveArray(page.Dict().Get("Contents"))
	if !ok {
		t.Fatalf("two contents should form an array, got %T", page.Dict().Get("Contents"))
	}
	if arr.Len() != 2 {
		t.Errorf("content array length = %d, want 2", arr.Len())
	}
}

func TestAddResourceGeneratesUniqueNames(t *testing.T) {
	d := New()
	page := d.AddPage(100, 100)

	a := page.AddResource("XObject", "Im", object.NewStream(object.NewDict(), nil))
	b := page.AddResource("XObject", "Im", object.NewStream(object.NewDict(), nil))
	if a == b {
		t.Fatalf("resource names collide: %s", a)
	}
	xobjs, ok := d.Graph().ResolveDict(page.Resources().Get("XObject"))
	if !ok {
		t.Fatal("no XObject category")
	}
	if !xobjs.Has(a) || !xobjs.Has(b) {
		t.Error("registered names missing from the category dict")
	}
}

func TestInheritedAttributesMaterialize(t *testing.T) {
	// build a tree where MediaBox and Rotate live on the root node
	g := object.NewGraph()

	page := object.NewDict()
	page.Set("Type", object.Name("Page"))
	pageRef := g.Add(page)

	pages := object.NewDict()
	pages.Set("Type", object.Name("Pages"))
	pages.Set("MediaBox", &object.Array{Items: []object.Object{
		object.Integer(0), object.Integer(0), object.Integer(200), object.Integer(100),
	}})
	pages.Set("Rotate", object.Integer(90))
	pages.Set("Kids", &object.Array{Items: []object.Object{object.MakeRef(pageRef.Num, pageRef.Gen)}})
	pages.Set("Count", object.Integer(1))
	pagesRef := g.Add(pages)
	page.Set("Parent", object.MakeRef(pagesRef.Num, pagesRef.Gen))

	catalog := object.NewDict()
	catalog.Set("Type", object.Name("Catalog"))
	catalog.Set("Pages", object.MakeRef(pagesRef.Num, pagesRef.Gen))
	catalogRef := g.Add(catalog)
	g.Trailer.Set("Root", object.MakeRef(catalogRef.Num, catalogRef.Gen))

	d := &Document{graph: g}
	if err := d.collectPages(); err != nil {
		t.Fatalf("collect pages: %v", err)
	}
	p := d.Pages()[0]
	if w, h := p.Size(); w != 200 || h != 100 {
		t.Errorf("inherited size = %vx%v, want 200x100", w, h)
	}
	if got := p.Rotation(); got != 90 {
		t.Errorf("inherited rotation = %d, want 90", got)
	}
}
