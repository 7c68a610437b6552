package compose

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/fonts"
	"github.com/jed1boy/anyfile/object"
)

// WatermarkOptions controls the diagonal text stamp. Zero values fall
// back to the defaults below via Watermark.
type WatermarkOptions struct {
	Text     string
	FontSize float64 // points, default 48
	Opacity  float64 // fill alpha 0..1, default 0.3
	Rotation float64 // degrees counter-clockwise, default -45
}

const (
	defaultWatermarkSize    = 48.0
	defaultWatermarkOpacity = 0.3
	defaultWatermarkAngle   = -45.0
)

// Watermark stamps opts.Text across every page of doc. The stamp is
// drawn as a separate content stream appended after the existing page
// content so it always renders on top.
func Watermark(doc *document.Document, opts WatermarkOptions) error {
	if strings.TrimSpace(opts.Text) == "" {
		return fmt.Errorf("watermark text must not be blank")
	}
	if opts.FontSize == 0 {
		opts.FontSize = defaultWatermarkSize
	}
	if opts.Opacity == 0 {
		opts.Opacity = defaultWatermarkOpacity
	}
	if opts.Rotation == 0 {
		opts.Rotation = defaultWatermarkAngle
	}
	for _, page := range doc.Pages() {
		stampPage(page, opts)
	}
	return nil
}

func stampPage(page *document.Page, opts WatermarkOptions) {
	gsDict := object.NewDict()
	gsDict.Set("Type", object.Name("ExtGState"))
	gsDict.Set("ca", object.Real(opts.Opacity))
	gsDict.Set("CA", object.Real(opts.Opacity))
	gsName := page.AddResource("ExtGState", "GS", gsDict)
	fontName := page.AddResource("Font", "F", fonts.StandardFontDict(fonts.HelveticaBold))

	width, height := page.Size()
	textWidth := fonts.MeasureHelveticaBold(opts.Text, opts.FontSize)
	x := width/2 - textWidth/2
	y := height / 2

	rad := opts.Rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	var buf bytes.Buffer
	buf.WriteString("q\n")
	fmt.Fprintf(&buf, "/%s gs\n", gsName)
	buf.WriteString("BT\n")
	fmt.Fprintf(&buf, "/%s %s Tf\n", fontName, num(opts.FontSize))
	buf.WriteString("0.5 g\n")
	fmt.Fprintf(&buf, "%s %s %s %s %s %s Tm\n",
		num(cos), num(sin), num(-sin), num(cos), num(x), num(y))
	fmt.Fprintf(&buf, "(%s) Tj\n", escapeText(opts.Text))
	buf.WriteString("ET\nQ")
	page.AppendContent(buf.Bytes())
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeText protects the literal-string delimiters in content text.
func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
