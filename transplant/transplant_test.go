package transplant

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jed1boy/anyfile/document"
)

// sourceDoc builds a document with n pages of distinct widths so tests
// can identify pages after copying.
func sourceDoc(t *testing.T, n int) *document.Document {
	t.Helper()
	doc := document.New()
	for i := 0; i < n; i++ {
		page := doc.AddPage(float64(100+i), 200)
		page.SetContent([]byte(fmt.Sprintf("%% page %d", i)))
	}
	return doc
}

func widthOf(t *testing.T, p *document.Page) int {
	t.Helper()
	w, _ := p.Size()
	return int(w)
}

func TestPagesPreservesOrder(t *testing.T) {
	src := sourceDoc(t, 3)
	dst := document.New()

	pages, err := Pages(dst, src, []int{2, 0, 1}, nil)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 3 || dst.PageCount() != 3 {
		t.Fatalf("copied %d pages, destination has %d", len(pages), dst.PageCount())
	}
	want := []int{102, 100, 101}
	for i, p := range dst.Pages() {
		if got := widthOf(t, p); got != want[i] {
			t.Errorf("page %d width = %d, want %d", i, got, want[i])
		}
	}
}

func TestOriginUntouched(t *testing.T) {
	src := sourceDoc(t, 2)
	objectsBefore := src.Graph().Len()
	dst := document.New()

	if _, err := Pages(dst, src, []int{0, 1}, map[int]int{0: 90}); err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if src.Graph().Len() != objectsBefore {
		t.Fatalf("origin graph grew from %d to %d objects", objectsBefore, src.Graph().Len())
	}
	p, _ := src.Page(0)
	if p.Rotation() != 0 {
		t.Fatalf("origin page rotation changed to %d", p.Rotation())
	}
}

func TestDuplicatesAreIndependent(t *testing.T) {
	src := sourceDoc(t, 1)
	dst := document.New()

	pages, err := Pages(dst, src, []int{0, 0}, nil)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	pages[0].Rotate(90)
	if pages[1].Rotation() != 0 {
		t.Fatalf("rotating one duplicate affected the other: %d", pages[1].Rotation())
	}
}

func TestRotationDeltaComposes(t *testing.T) {
	src := sourceDoc(t, 1)
	p, _ := src.Page(0)
	p.Rotate(90)

	dst := document.New()
	pages, err := Pages(dst, src, []int{0}, map[int]int{0: 90})
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if got := pages[0].Rotation(); got != 180 {
		t.Fatalf("rotation = %d, want 180 (90 existing + 90 delta)", got)
	}
}

func TestRotationWrapsAround(t *testing.T) {
	src := sourceDoc(t, 1)
	p, _ := src.Page(0)
	p.Rotate(270)

	dst := document.New()
	pages, err := Pages(dst, src, []int{0}, map[int]int{0: 180})
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if got := pages[0].Rotation(); got != 90 {
		t.Fatalf("rotation = %d, want 90 ((270+180) mod 360)", got)
	}
}

func TestIndexOutOfRange(t *testing.T) {
	src := sourceDoc(t, 2)
	dst := document.New()

	_, err := Pages(dst, src, []int{0, 5}, nil)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("got %v, want ErrIndexOutOfRange", err)
	}
	if dst.PageCount() != 0 && dst.PageCount() != 1 {
		t.Fatalf("unexpected destination page count %d", dst.PageCount())
	}
}

func TestMergeAcrossOrigins(t *testing.T) {
	a := sourceDoc(t, 2)
	b := sourceDoc(t, 3)
	dst := document.New()

	if _, err := All(dst, a); err != nil {
		t.Fatalf("All(a): %v", err)
	}
	if _, err := All(dst, b); err != nil {
		t.Fatalf("All(b): %v", err)
	}
	if dst.PageCount() != 5 {
		t.Fatalf("merged page count = %d, want 5", dst.PageCount())
	}
	// the merged output must serialize and reload cleanly
	data, err := dst.Save(document.SaveOptions{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := document.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.PageCount() != 5 {
		t.Fatalf("reloaded page count = %d, want 5", reloaded.PageCount())
	}
}
