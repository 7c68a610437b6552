package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/jed1boy/anyfile/raster"
)

// PageImage is one rasterized page of a PagesToImages run.
type PageImage struct {
	Name string
	Data []byte
}

// ImageEncoding selects the output format of PagesToImages.
type ImageEncoding string

const (
	EncodePNG  ImageEncoding = "png"
	EncodeJPEG ImageEncoding = "jpeg"
)

// pagesToImagesScale renders at double resolution for crisp output.
const pagesToImagesScale = 2.0

// PagesToImages rasterizes every page of the input document and
// encodes one image per page, named page-1.png onward.
func (p *Pipeline) PagesToImages(ctx context.Context, in Input, encoding ImageEncoding) ([]PageImage, error) {
	var out []PageImage
	_, err := p.run(ctx, "pages-to-images", func(ctx context.Context) (*Result, error) {
		doc, perr := p.load(ctx, "pages-to-images", in)
		if perr != nil {
			return nil, perr
		}
		ext := "png"
		if encoding == EncodeJPEG {
			ext = "jpg"
		}
		rerr := p.rasterPhase(ctx, func(ctx context.Context) error {
			for i := 0; i < doc.PageCount(); i++ {
				bitmap, err := raster.Render(ctx, doc, i, raster.WithScale(pagesToImagesScale))
				if err != nil {
					return opError("pages-to-images", KindUnknown,
						fmt.Errorf("rasterize page %d: %w", i, err))
				}
				var buf bytes.Buffer
				if encoding == EncodeJPEG {
					err = jpeg.Encode(&buf, bitmap, nil)
				} else {
					err = png.Encode(&buf, bitmap)
				}
				if err != nil {
					return opError("pages-to-images", KindUnknown, err)
				}
				out = append(out, PageImage{
					Name: fmt.Sprintf("page-%d.%s", i+1, ext),
					Data: buf.Bytes(),
				})
			}
			return nil
		})
		if rerr != nil {
			return nil, rerr
		}
		return &Result{Pages: doc.PageCount()}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
