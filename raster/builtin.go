package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sort"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/filters"
	"github.com/jed1boy/anyfile/object"
	"golang.org/x/image/draw"
)

// BuiltinEngine is a best-effort pure Go renderer. It does not
// interpret content streams; it paints the page white and then draws
// each image XObject on the page full bleed, which reproduces pages
// built from single full-page images faithfully and degrades to a
// blank page elsewhere. Install a real engine via SetDefaultEngine for
// full-fidelity output.
type BuiltinEngine struct {
	// Interpolator resamples images onto the canvas. Defaults to
	// draw.ApproxBiLinear.
	Interpolator draw.Interpolator
}

func (e *BuiltinEngine) Name() string { return "builtin" }

func (e *BuiltinEngine) RenderPage(ctx context.Context, doc *document.Document, pageIndex int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := doc.Page(pageIndex)
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1.0
	}
	w, h := page.Size()
	pxW, pxH := int(w*scale+0.5), int(h*scale+0.5)
	if pxW < 1 {
		pxW = 1
	}
	if pxH < 1 {
		pxH = 1
	}

	canvas := image.NewRGBA(image.Rect(0, 0, pxW, pxH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	interp := e.Interpolator
	if interp == nil {
		interp = draw.ApproxBiLinear
	}
	graph := doc.Graph()
	pipeline := filters.NewPipeline(filters.Limits{})
	for _, img := range pageImages(graph, page) {
		decoded, err := decodeImageXObject(graph, pipeline, img)
		if err != nil {
			// best effort; skip images in formats the engine
			// cannot decode
			continue
		}
		interp.Scale(canvas, canvas.Bounds(), decoded, decoded.Bounds(), draw.Over, nil)
	}

	switch page.Rotation() {
	case 90:
		return rotateQuarter(canvas, 1), nil
	case 180:
		return rotateQuarter(canvas, 2), nil
	case 270:
		return rotateQuarter(canvas, 3), nil
	}
	return canvas, nil
}

// pageImages collects the image XObject streams referenced by the
// page's resources in name order.
func pageImages(graph *object.Graph, page *document.Page) []*object.Stream {
	xobjs, ok := graph.ResolveDict(page.Resources().Get("XObject"))
	if !ok {
		return nil
	}
	keys := xobjs.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var out []*object.Stream
	for _, key := range keys {
		s, ok := graph.ResolveStream(xobjs.Get(key))
		if !ok {
			continue
		}
		if sub, _ := graph.ResolveName(s.Dict.Get("Subtype")); sub == "Image" {
			out = append(out, s)
		}
	}
	return out
}

func decodeImageXObject(graph *object.Graph, pipeline *filters.Pipeline, s *object.Stream) (image.Image, error) {
	if name, _ := graph.ResolveName(s.Dict.Get("Filter")); name == "DCTDecode" {
		return jpeg.Decode(bytes.NewReader(s.Data))
	}

	data, err := pipeline.DecodeStream(graph, s)
	if err != nil {
		return nil, err
	}
	w, _ := graph.ResolveInt(s.Dict.Get("Width"))
	h, _ := graph.ResolveInt(s.Dict.Get("Height"))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image has no dimensions")
	}
	bpc, _ := graph.ResolveInt(s.Dict.Get("BitsPerComponent"))
	if bpc != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", bpc)
	}
	cs, _ := graph.ResolveName(s.Dict.Get("ColorSpace"))

	width, height := int(w), int(h)
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	switch cs {
	case "DeviceRGB":
		if len(data) < width*height*3 {
			return nil, fmt.Errorf("short rgb sample data")
		}
		for i := 0; i < width*height; i++ {
			img.Pix[i*4] = data[i*3]
			img.Pix[i*4+1] = data[i*3+1]
			img.Pix[i*4+2] = data[i*3+2]
			img.Pix[i*4+3] = 0xFF
		}
	case "DeviceGray":
		if len(data) < width*height {
			return nil, fmt.Errorf("short gray sample data")
		}
		for i := 0; i < width*height; i++ {
			img.Pix[i*4] = data[i]
			img.Pix[i*4+1] = data[i]
			img.Pix[i*4+2] = data[i]
			img.Pix[i*4+3] = 0xFF
		}
	default:
		return nil, fmt.Errorf("unsupported color space %q", cs)
	}

	if mask, ok := graph.ResolveStream(s.Dict.Get("SMask")); ok {
		alpha, err := pipeline.DecodeStream(graph, mask)
		if err == nil && len(alpha) >= width*height {
			for i := 0; i < width*height; i++ {
				img.Pix[i*4+3] = alpha[i]
			}
		}
	}
	return img, nil
}

// rotateQuarter rotates src by turns*90 degrees clockwise.
func rotateQuarter(src *image.RGBA, turns int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	if turns%2 == 1 {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
			switch turns % 4 {
			case 1:
				dst.SetRGBA(h-1-y, x, c)
			case 2:
				dst.SetRGBA(w-1-x, h-1-y, c)
			case 3:
				dst.SetRGBA(y, w-1-x, c)
			default:
				dst.SetRGBA(x, y, c)
			}
		}
	}
	return dst
}
