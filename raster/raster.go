// Package raster defines the page rasterization boundary. Rendering a
// page to pixels is pluggable; callers either pass an Engine explicitly
// or rely on the process-wide default, which is fixed after first use.
package raster

import (
	"context"
	"image"

	"github.com/jed1boy/anyfile/document"
	"golang.org/x/image/draw"
)

// Engine renders one page of a document into a bitmap. scale multiplies
// the page's point dimensions; 1.0 renders at 72 DPI.
type Engine interface {
	Name() string
	RenderPage(ctx context.Context, doc *document.Document, pageIndex int, scale float64) (image.Image, error)
}

type renderConfig struct {
	engine Engine
	scale  float64
}

// Option adjusts a single Render call.
type Option func(*renderConfig)

// WithEngine renders with engine instead of the process default.
func WithEngine(engine Engine) Option {
	return func(c *renderConfig) { c.engine = engine }
}

// WithScale sets the render scale factor.
func WithScale(scale float64) Option {
	return func(c *renderConfig) {
		if scale > 0 {
			c.scale = scale
		}
	}
}

// Render rasterizes page pageIndex of doc.
func Render(ctx context.Context, doc *document.Document, pageIndex int, opts ...Option) (image.Image, error) {
	cfg := renderConfig{scale: 1.0}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.engine == nil {
		cfg.engine = DefaultEngine()
	}
	return cfg.engine.RenderPage(ctx, doc, pageIndex, cfg.scale)
}

// Scale resamples src to width x height pixels.
func Scale(src image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return src
	}
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
