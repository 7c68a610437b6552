// Package layout renders structured markup (HTML, Markdown) into
// document pages: a cursor-based engine with word wrapping, heading
// scaling and automatic page breaks.
package layout

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/fonts"
	"github.com/jed1boy/anyfile/object"
)

// PaperSize is a page format in points.
type PaperSize struct {
	Width  float64
	Height float64
}

var (
	A4     = PaperSize{Width: 595.28, Height: 841.89}
	Letter = PaperSize{Width: 612, Height: 792}
)

// Margins defines page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

// Engine lays structured content out onto pages of a document.
type Engine struct {
	doc *document.Document

	DefaultFontSize float64
	LineHeight      float64 // multiplier, e.g. 1.2
	Margins         Margins

	pageWidth  float64
	pageHeight float64
	maxHeight  float64 // content height cap per page, 0 means full page

	page      *document.Page
	content   *bytes.Buffer
	fontNames map[string]object.Name
	cursorY   float64
}

// Option configures the engine.
type Option func(*Engine)

// WithPaperSize sets the page dimensions from a standard format.
func WithPaperSize(size PaperSize) Option {
	return func(e *Engine) {
		e.pageWidth = size.Width
		e.pageHeight = size.Height
	}
}

// WithLandscape swaps the page dimensions.
func WithLandscape() Option {
	return func(e *Engine) {
		e.pageWidth, e.pageHeight = e.pageHeight, e.pageWidth
	}
}

// WithMargins sets the page margins.
func WithMargins(m Margins) Option {
	return func(e *Engine) { e.Margins = m }
}

// WithDefaultFontSize sets the body font size.
func WithDefaultFontSize(size float64) Option {
	return func(e *Engine) { e.DefaultFontSize = size }
}

// WithLineHeight sets the line height multiplier.
func WithLineHeight(height float64) Option {
	return func(e *Engine) { e.LineHeight = height }
}

// WithMaxHeightPerPage caps the content height used on each page; the
// engine breaks to a new page once the cap is reached.
func WithMaxHeightPerPage(height float64) Option {
	return func(e *Engine) {
		if height > 0 {
			e.maxHeight = height
		}
	}
}

// NewEngine creates a layout engine writing pages into doc.
func NewEngine(doc *document.Document, opts ...Option) *Engine {
	e := &Engine{
		doc:             doc,
		DefaultFontSize: 12,
		LineHeight:      1.2,
		Margins:         Margins{Top: 50, Bottom: 50, Left: 50, Right: 50},
		pageWidth:       A4.Width,
		pageHeight:      A4.Height,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ensurePage() {
	if e.page == nil {
		e.newPage()
	}
}

func (e *Engine) newPage() {
	e.page = e.doc.AddPage(e.pageWidth, e.pageHeight)
	e.content = &bytes.Buffer{}
	e.fontNames = make(map[string]object.Name)
	e.cursorY = e.pageHeight - e.Margins.Top
}

// Finish flushes any pending page content. It must be called after the
// last Render call.
func (e *Engine) Finish() {
	if e.page == nil {
		return
	}
	e.page.SetContent(e.content.Bytes())
	e.page = nil
	e.content = nil
}

// bottomLimit is the lowest cursor position content may reach on the
// current page.
func (e *Engine) bottomLimit() float64 {
	limit := e.Margins.Bottom
	if e.maxHeight > 0 {
		if capped := e.pageHeight - e.Margins.Top - e.maxHeight; capped > limit {
			limit = capped
		}
	}
	return limit
}

func (e *Engine) checkPageBreak(height float64) {
	if e.page == nil {
		e.newPage()
		return
	}
	if e.cursorY-height < e.bottomLimit() {
		e.Finish()
		e.newPage()
	}
}

// fontName registers baseFont on the current page once and returns its
// resource name.
func (e *Engine) fontName(baseFont string) object.Name {
	if name, ok := e.fontNames[baseFont]; ok {
		return name
	}
	name := e.page.AddResource("Font", "F", fonts.StandardFontDict(baseFont))
	e.fontNames[baseFont] = name
	return name
}

// drawText emits one positioned text run into the current page content.
func (e *Engine) drawText(text, baseFont string, size, x, y float64) {
	name := e.fontName(baseFont)
	fmt.Fprintf(e.content, "BT /%s %s Tf %s %s Td (%s) Tj ET\n",
		name, fnum(size), fnum(x), fnum(y), escapeText(text))
}

// writeLines word-wraps text at x and advances the cursor line by line.
func (e *Engine) writeLines(text, baseFont string, size, x float64) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}
	maxWidth := e.pageWidth - e.Margins.Right - x
	lineHeight := size * e.LineHeight

	line := words[0]
	flush := func() {
		e.checkPageBreak(lineHeight)
		e.drawText(line, baseFont, size, x, e.cursorY-size)
		e.cursorY -= lineHeight
	}
	for _, word := range words[1:] {
		if fonts.Measure(baseFont, line+" "+word, size) <= maxWidth {
			line += " " + word
			continue
		}
		flush()
		line = word
	}
	flush()
}

func (e *Engine) paragraphSpacing() {
	if e.page != nil {
		e.cursorY -= e.DefaultFontSize * e.LineHeight / 2
	}
}

// headingSize maps a heading level to its font size.
func (e *Engine) headingSize(level int) float64 {
	switch {
	case level <= 1:
		return e.DefaultFontSize * 2.0
	case level == 2:
		return e.DefaultFontSize * 1.5
	default:
		return e.DefaultFontSize * 1.25
	}
}

func (e *Engine) renderHeading(text string, level int) {
	size := e.headingSize(level)
	e.ensurePage()
	e.checkPageBreak(size * e.LineHeight)
	e.writeLines(text, fonts.HelveticaBold, size, e.Margins.Left)
	e.paragraphSpacing()
}

func (e *Engine) renderParagraph(text string) {
	e.ensurePage()
	e.writeLines(text, fonts.Helvetica, e.DefaultFontSize, e.Margins.Left)
	e.paragraphSpacing()
}

const listIndent = 15.0

func (e *Engine) renderListItem(text string) {
	e.ensurePage()
	size := e.DefaultFontSize
	e.checkPageBreak(size * e.LineHeight)
	e.drawText("-", fonts.Helvetica, size, e.Margins.Left, e.cursorY-size)
	e.writeLines(text, fonts.Helvetica, size, e.Margins.Left+listIndent)
}

func (e *Engine) renderCodeBlock(text string) {
	e.ensurePage()
	size := e.DefaultFontSize
	lineHeight := size * e.LineHeight
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		e.checkPageBreak(lineHeight)
		e.drawText(line, fonts.Courier, size, e.Margins.Left+listIndent, e.cursorY-size)
		e.cursorY -= lineHeight
	}
	e.paragraphSpacing()
}

func fnum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
