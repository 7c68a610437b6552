package layout

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RenderHTML lays an HTML document out onto pages. Headings,
// paragraphs, list items and preformatted blocks are honored; other
// markup contributes its text content.
func (e *Engine) RenderHTML(source string) error {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return err
	}
	e.walkHTML(root)
	e.Finish()
	return nil
}

func (e *Engine) walkHTML(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			e.renderHeading(nodeText(n), htmlHeadingLevel(n.DataAtom))
			return
		case atom.P:
			e.renderParagraph(nodeText(n))
			return
		case atom.Li:
			e.renderListItem(nodeText(n))
			return
		case atom.Pre:
			e.renderCodeBlock(rawNodeText(n))
			return
		case atom.Br:
			e.ensurePage()
			e.cursorY -= e.DefaultFontSize * e.LineHeight
			return
		case atom.Script, atom.Style, atom.Head:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walkHTML(c)
	}
}

func htmlHeadingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	default:
		return 4
	}
}

// nodeText collapses the text content below n to single-spaced words.
func nodeText(n *html.Node) string {
	return strings.Join(strings.Fields(rawNodeText(n)), " ")
}

func rawNodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
