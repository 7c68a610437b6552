package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/object"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func opaquePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return encodePNG(t, img)
}

func alphaPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: uint8(x * 255 / w)})
		}
	}
	return encodePNG(t, img)
}

func TestAddImagePage(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 8, 6))

	tests := []struct {
		name      string
		data      func(t *testing.T) []byte
		width     int
		height    int
		filter    object.Name
		wantSMask bool
	}{
		{
			name:   "opaque png",
			data:   func(t *testing.T) []byte { return opaquePNG(t, 10, 4) },
			width:  10,
			height: 4,
			filter: "FlateDecode",
		},
		{
			name:      "png with alpha",
			data:      func(t *testing.T) []byte { return alphaPNG(t, 5, 5) },
			width:     5,
			height:    5,
			filter:    "FlateDecode",
			wantSMask: true,
		},
		{
			name:   "jpeg passthrough",
			data:   func(t *testing.T) []byte { return encodeJPEG(t, gray) },
			width:  8,
			height: 6,
			filter: "DCTDecode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document.New()
			if err := AddImagePage(doc, tt.data(t)); err != nil {
				t.Fatalf("AddImagePage: %v", err)
			}
			if got := doc.PageCount(); got != 1 {
				t.Fatalf("page count = %d, want 1", got)
			}
			page, err := doc.Page(0)
			if err != nil {
				t.Fatalf("page: %v", err)
			}
			w, h := page.Size()
			if int(w) != tt.width || int(h) != tt.height {
				t.Errorf("page size = %vx%v, want %dx%d", w, h, tt.width, tt.height)
			}

			img := findImage(t, doc, page)
			if f, _ := doc.Graph().ResolveName(img.Dict.Get("Filter")); f != tt.filter {
				t.Errorf("filter = %q, want %q", f, tt.filter)
			}
			_, hasMask := img.Dict.Get("SMask").(object.Reference)
			if hasMask != tt.wantSMask {
				t.Errorf("smask present = %v, want %v", hasMask, tt.wantSMask)
			}
		})
	}
}

func TestAddImagePageUnsupported(t *testing.T) {
	doc := document.New()
	err := AddImagePage(doc, []byte("GIF89a not a pdf image"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("err = %v, want ErrUnsupportedImage", err)
	}
	if doc.PageCount() != 0 {
		t.Errorf("page count = %d after failure, want 0", doc.PageCount())
	}
}

// findImage locates the single image XObject registered on page.
func findImage(t *testing.T, doc *document.Document, page *document.Page) *object.Stream {
	t.Helper()
	xobjs, ok := doc.Graph().ResolveDict(page.Resources().Get("XObject"))
	if !ok {
		t.Fatal("page has no XObject resources")
	}
	for _, key := range xobjs.Keys() {
		if s, ok := doc.Graph().ResolveStream(xobjs.Get(key)); ok {
			return s
		}
	}
	t.Fatal("no image stream found")
	return nil
}

func TestWatermark(t *testing.T) {
	doc := document.New()
	doc.AddPage(612, 792)
	doc.AddPage(612, 792)

	if err := Watermark(doc, WatermarkOptions{Text: "DRAFT (v1)"}); err != nil {
		t.Fatalf("Watermark: %v", err)
	}

	for i, page := range doc.Pages() {
		content := pageContent(t, doc, page)
		for _, want := range []string{"gs", "BT", "Tf", "Tm", `(DRAFT \(v1\)) Tj`, "ET"} {
			if !strings.Contains(content, want) {
				t.Errorf("page %d content missing %q", i, want)
			}
		}
		res := page.Resources()
		if _, ok := doc.Graph().ResolveDict(res.Get("ExtGState")); !ok {
			t.Errorf("page %d has no ExtGState resources", i)
		}
		if _, ok := doc.Graph().ResolveDict(res.Get("Font")); !ok {
			t.Errorf("page %d has no Font resources", i)
		}
	}
}

func TestWatermarkBlankText(t *testing.T) {
	doc := document.New()
	doc.AddPage(612, 792)
	if err := Watermark(doc, WatermarkOptions{Text: "   "}); err == nil {
		t.Fatal("want error for blank watermark text")
	}
}

func TestWatermarkDefaults(t *testing.T) {
	doc := document.New()
	doc.AddPage(200, 200)
	if err := Watermark(doc, WatermarkOptions{Text: "X"}); err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	page, _ := doc.Page(0)
	content := pageContent(t, doc, page)
	if !strings.Contains(content, "48 Tf") {
		t.Errorf("content missing default font size, got %q", content)
	}
	gs, ok := doc.Graph().ResolveDict(page.Resources().Get("ExtGState"))
	if !ok {
		t.Fatal("no ExtGState resources")
	}
	for _, key := range gs.Keys() {
		state, ok := doc.Graph().ResolveDict(gs.Get(key))
		if !ok {
			t.Fatalf("gstate %s did not resolve", key)
		}
		if ca, _ := object.AsFloat(state.Get("ca")); ca != 0.3 {
			t.Errorf("ca = %v, want 0.3", ca)
		}
	}
}

func pageContent(t *testing.T, doc *document.Document, page *document.Page) string {
	t.Helper()
	var out strings.Builder
	collect := func(o object.Object) {
		if s, ok := doc.Graph().ResolveStream(o); ok {
			out.Write(s.Data)
			out.WriteByte('\n')
		}
	}
	switch v := doc.Graph().Resolve(page.Dict().Get("Contents")).(type) {
	case *object.Array:
		for i := 0; i < v.Len(); i++ {
			collect(v.Get(i))
		}
	default:
		collect(v)
	}
	return out.String()
}
