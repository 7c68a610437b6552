// Package fonts provides the built-in (standard 14) font support the
// compositor and layout engine draw with. These fonts need no
// embedding; viewers supply the glyphs, so only width metrics live
// here.
package fonts

import "github.com/jed1boy/anyfile/object"

// Base font names of the supported built-in fonts.
const (
	Helvetica     = "Helvetica"
	HelveticaBold = "Helvetica-Bold"
	Courier       = "Courier"
)

// Width tables cover characters 32..126 in thousandths of the font
// size, from the Adobe font metrics.

var helveticaWidths = [95]int{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, // space .. )
	389, 584, 278, 333, 278, 278, 556, 556, 556, 556, // * .. 3
	556, 556, 556, 556, 556, 556, 278, 278, 584, 584, // 4 .. =
	584, 556, 1015, 667, 667, 722, 722, 667, 611, 778, // > .. G
	722, 278, 500, 667, 556, 833, 722, 778, 667, 778, // H .. Q
	722, 667, 611, 722, 667, 944, 667, 667, 611, 278, // R .. [
	278, 278, 469, 556, 333, 556, 556, 500, 556, 556, // \ .. e
	278, 556, 556, 222, 222, 500, 222, 833, 556, 556, // f .. o
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, // p .. y
	500, 334, 260, 334, 584, // z .. ~
}

var helveticaBoldWidths = [95]int{
	278, 333, 474, 556, 556, 889, 722, 238, 333, 333, // space .. )
	389, 584, 278, 333, 278, 278, 556, 556, 556, 556, // * .. 3
	556, 556, 556, 556, 556, 556, 333, 333, 584, 584, // 4 .. =
	584, 611, 975, 722, 722, 722, 722, 667, 611, 778, // > .. G
	722, 278, 556, 722, 611, 833, 722, 778, 667, 778, // H .. Q
	722, 667, 611, 722, 667, 944, 667, 667, 611, 333, // R .. [
	278, 333, 584, 556, 333, 556, 611, 556, 611, 556, // \ .. e
	333, 611, 611, 278, 278, 556, 278, 889, 611, 611, // f .. o
	611, 611, 389, 556, 333, 611, 556, 778, 556, 556, // p .. y
	500, 389, 280, 389, 584, // z .. ~
}

// courierWidth is the fixed advance of every Courier glyph.
const courierWidth = 600

// defaultGlyphWidth is used for characters outside the tables.
const defaultGlyphWidth = 556

func widthTable(baseFont string) *[95]int {
	switch baseFont {
	case HelveticaBold:
		return &helveticaBoldWidths
	default:
		return &helveticaWidths
	}
}

// Measure returns the rendered width of text in baseFont at size
// points. Unknown fonts measure as Helvetica.
func Measure(baseFont, text string, size float64) float64 {
	if baseFont == Courier {
		n := 0
		for range text {
			n++
		}
		return float64(n*courierWidth) / 1000 * size
	}
	table := widthTable(baseFont)
	total := 0
	for _, r := range text {
		if r >= 32 && r <= 126 {
			total += table[r-32]
		} else {
			total += defaultGlyphWidth
		}
	}
	return float64(total) / 1000 * size
}

// MeasureHelveticaBold returns the rendered width of text at size
// points.
func MeasureHelveticaBold(text string, size float64) float64 {
	return Measure(HelveticaBold, text, size)
}

// StandardFontDict builds the font dictionary for a built-in font.
func StandardFontDict(baseFont string) *object.Dict {
	d := object.NewDict()
	d.Set("Type", object.Name("Font"))
	d.Set("Subtype", object.Name("Type1"))
	d.Set("BaseFont", object.Name(baseFont))
	d.Set("Encoding", object.Name("WinAnsiEncoding"))
	return d
}
