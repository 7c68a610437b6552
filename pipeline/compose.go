package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/jed1boy/anyfile/compose"
	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/observability"
)

// Compress clears the six information dictionary fields (title,
// author, subject, keywords, producer, creator) and re-serializes with
// object-stream compaction. No image re-encoding happens; the result
// may be larger than the input, in which case Reduction is negative.
func (p *Pipeline) Compress(ctx context.Context, in Input) (*Result, error) {
	return p.run(ctx, "compress", func(ctx context.Context) (*Result, error) {
		doc, perr := p.load(ctx, "compress", in)
		if perr != nil {
			return nil, perr
		}
		doc.ClearMetadata()
		res, err := p.finish(ctx, "compress", doc,
			outputName("compressed-", in.Name, "compressed.pdf"),
			document.SaveOptions{ObjectStreams: true, CompressStreams: true})
		if err != nil {
			return nil, err
		}
		res.Reduction = 1 - float64(len(res.Data))/float64(len(in.Data))
		p.log.Debug("compression ratio",
			observability.Float("reduction", res.Reduction))
		return res, nil
	})
}

// WatermarkParams configures the watermark stamp.
type WatermarkParams struct {
	Text     string
	FontSize float64 // default 48
	Opacity  float64 // default 0.3
	Rotation float64 // degrees, default -45
}

// Watermark stamps the text diagonally across every page. The text
// must not be blank; this is rejected before any engine runs.
func (p *Pipeline) Watermark(ctx context.Context, in Input, params WatermarkParams) (*Result, error) {
	return p.run(ctx, "watermark", func(ctx context.Context) (*Result, error) {
		if strings.TrimSpace(params.Text) == "" {
			return nil, precondition("watermark", ErrEmptyWatermarkText)
		}
		doc, perr := p.load(ctx, "watermark", in)
		if perr != nil {
			return nil, perr
		}
		err := compose.Watermark(doc, compose.WatermarkOptions{
			Text:     params.Text,
			FontSize: params.FontSize,
			Opacity:  params.Opacity,
			Rotation: params.Rotation,
		})
		if err != nil {
			return nil, opError("watermark", KindUnknown, err)
		}
		return p.finish(ctx, "watermark", doc, outputName("watermarked-", in.Name, "watermarked.pdf"), document.SaveOptions{})
	})
}

// ImagesToPDF builds one page per valid PNG or JPEG input, sized
// exactly to the image. Inputs in other formats are skipped, not
// fatal; their names accumulate in Result.Skipped. When no input is
// valid the operation fails with ErrNoValidImages.
func (p *Pipeline) ImagesToPDF(ctx context.Context, images []Input) (*Result, error) {
	return p.run(ctx, "images-to-pdf", func(ctx context.Context) (*Result, error) {
		if len(images) == 0 {
			return nil, precondition("images-to-pdf", ErrNoValidImages)
		}
		doc := document.New()
		var skipped []string
		for _, img := range images {
			if err := compose.AddImagePage(doc, img.Data); err != nil {
				skipped = append(skipped, img.Name)
				p.log.Warn("image skipped",
					observability.String("name", img.Name),
					observability.Error("error", classifyImage(err)))
			}
		}
		if doc.PageCount() == 0 {
			return nil, opError("images-to-pdf", KindPrecondition, ErrNoValidImages)
		}
		res, err := p.finish(ctx, "images-to-pdf", doc, "compiled-images.pdf", document.SaveOptions{})
		if err != nil {
			return nil, err
		}
		res.Skipped = skipped
		return res, nil
	})
}

// classifyImage wraps a per-image failure so skip logs carry the error
// kind; format rejections and decode failures stay distinguishable.
func classifyImage(err error) *Error {
	if errors.Is(err, compose.ErrUnsupportedImage) {
		return opError("images-to-pdf", KindUnsupportedImage, err)
	}
	return opError("images-to-pdf", KindMalformedSource, err)
}
