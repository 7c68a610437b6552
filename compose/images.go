// Package compose synthesizes page content: full-bleed image pages and
// watermark stamps drawn over existing pages.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/filters"
	"github.com/jed1boy/anyfile/object"
)

// ErrUnsupportedImage marks input that is neither PNG nor JPEG.
var ErrUnsupportedImage = errors.New("unsupported image format")

// AddImagePage decodes data, creates a page sized exactly to the image
// and draws it at the origin filling the whole page.
func AddImagePage(doc *document.Document, data []byte) error {
	stream, smask, width, height, err := imageXObject(data)
	if err != nil {
		return err
	}
	if smask != nil {
		ref := doc.Graph().Add(smask)
		stream.Dict.Set("SMask", object.MakeRef(ref.Num, ref.Gen))
	}
	page := doc.AddPage(float64(width), float64(height))
	name := page.AddResource("XObject", "Im", stream)

	var content bytes.Buffer
	content.WriteString("q\n")
	fmt.Fprintf(&content, "%d 0 0 %d 0 0 cm\n", width, height)
	fmt.Fprintf(&content, "/%s Do\n", name)
	content.WriteString("Q")
	page.SetContent(content.Bytes())
	return nil
}

// imageXObject builds the image XObject stream for data, plus a soft
// mask stream when the image carries alpha. JPEG bytes pass through
// under DCTDecode; PNG pixels are re-encoded losslessly.
func imageXObject(data []byte) (img, smask *object.Stream, w, h int, err error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return pngXObject(data)
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		img, w, h, err = jpegXObject(data)
		return img, nil, w, h, err
	default:
		return nil, nil, 0, 0, ErrUnsupportedImage
	}
}

func jpegXObject(data []byte) (*object.Stream, int, int, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	colorSpace := object.Name("DeviceRGB")
	switch cfg.ColorModel {
	case color.GrayModel:
		colorSpace = "DeviceGray"
	case color.CMYKModel:
		colorSpace = "DeviceCMYK"
	}

	dict := object.NewDict()
	dict.Set("Type", object.Name("XObject"))
	dict.Set("Subtype", object.Name("Image"))
	dict.Set("Width", object.Integer(cfg.Width))
	dict.Set("Height", object.Integer(cfg.Height))
	dict.Set("ColorSpace", colorSpace)
	dict.Set("BitsPerComponent", object.Integer(8))
	dict.Set("Filter", object.Name("DCTDecode"))
	return object.NewStream(dict, data), cfg.Width, cfg.Height, nil
}

func pngXObject(data []byte) (*object.Stream, *object.Stream, int, int, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			a8 := byte(a >> 8)
			if a8 != 255 {
				hasAlpha = true
			}
			if a > 0 {
				// undo premultiplication
				rgb = append(rgb, byte(r*0xFFFF/a>>8), byte(g*0xFFFF/a>>8), byte(b*0xFFFF/a>>8))
			} else {
				rgb = append(rgb, 0, 0, 0)
			}
			alpha = append(alpha, a8)
		}
	}

	encoded, err := filters.FlateEncode(rgb)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	dict := object.NewDict()
	dict.Set("Type", object.Name("XObject"))
	dict.Set("Subtype", object.Name("Image"))
	dict.Set("Width", object.Integer(w))
	dict.Set("Height", object.Integer(h))
	dict.Set("ColorSpace", object.Name("DeviceRGB"))
	dict.Set("BitsPerComponent", object.Integer(8))
	dict.Set("Filter", object.Name("FlateDecode"))
	stream := object.NewStream(dict, encoded)

	var mask *object.Stream
	if hasAlpha {
		maskData, err := filters.FlateEncode(alpha)
		if err != nil {
			return nil, nil, 0, 0, err
		}
		maskDict := object.NewDict()
		maskDict.Set("Type", object.Name("XObject"))
		maskDict.Set("Subtype", object.Name("Image"))
		maskDict.Set("Width", object.Integer(w))
		maskDict.Set("Height", object.Integer(h))
		maskDict.Set("ColorSpace", object.Name("DeviceGray"))
		maskDict.Set("BitsPerComponent", object.Integer(8))
		maskDict.Set("Filter", object.Name("FlateDecode"))
		mask = object.NewStream(maskDict, maskData)
	}
	return stream, mask, w, h, nil
}
