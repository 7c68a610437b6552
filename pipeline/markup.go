package pipeline

import (
	"context"
	"path"
	"strings"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/layout"
)

// PageFormat selects the paper size for markup rendering.
type PageFormat string

const (
	FormatA4     PageFormat = "a4"
	FormatLetter PageFormat = "letter"
)

// MarkupParams configures markup rendering.
type MarkupParams struct {
	Format    PageFormat // default a4
	Landscape bool
	// MaxHeightPerPage caps content height per page in points; zero
	// means the full page is used.
	MaxHeightPerPage float64
	// Markdown forces Markdown parsing. When false the source is
	// parsed as Markdown only if the input name ends in .md or
	// .markdown; everything else renders as HTML.
	Markdown bool
}

// MarkupToPDF renders HTML or Markdown text into a paginated document.
func (p *Pipeline) MarkupToPDF(ctx context.Context, in Input, params MarkupParams) (*Result, error) {
	return p.run(ctx, "markup-to-pdf", func(ctx context.Context) (*Result, error) {
		opts := []layout.Option{layout.WithPaperSize(paperSize(params.Format))}
		if params.Landscape {
			opts = append(opts, layout.WithLandscape())
		}
		if params.MaxHeightPerPage > 0 {
			opts = append(opts, layout.WithMaxHeightPerPage(params.MaxHeightPerPage))
		}

		doc := document.New()
		engine := layout.NewEngine(doc, opts...)

		var err error
		if params.Markdown || isMarkdownName(in.Name) {
			err = engine.RenderMarkdown(string(in.Data))
		} else {
			err = engine.RenderHTML(string(in.Data))
		}
		if err != nil {
			return nil, opError("markup-to-pdf", KindMalformedSource, err)
		}
		return p.finish(ctx, "markup-to-pdf", doc,
			outputName("", in.Name, "document.pdf"),
			document.SaveOptions{CompressStreams: true})
	})
}

func paperSize(f PageFormat) layout.PaperSize {
	if f == FormatLetter {
		return layout.Letter
	}
	return layout.A4
}

func isMarkdownName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
