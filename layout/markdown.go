package layout

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// RenderMarkdown lays a Markdown document out onto pages using the
// goldmark parser.
func (e *Engine) RenderMarkdown(source string) error {
	md := goldmark.New()
	src := []byte(source)
	root := md.Parser().Parse(text.NewReader(src))
	e.walkMarkdown(root, src)
	e.Finish()
	return nil
}

func (e *Engine) walkMarkdown(node ast.Node, source []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Heading:
			e.renderHeading(inlineText(n, source), n.Level)
		case *ast.Paragraph:
			e.renderParagraph(inlineText(n, source))
		case *ast.List:
			e.walkMarkdown(n, source)
		case *ast.ListItem:
			e.renderListItem(listItemText(n, source))
		case *ast.FencedCodeBlock:
			e.renderCodeBlock(codeBlockText(n, source))
		case *ast.CodeBlock:
			e.renderCodeBlock(codeBlockText(n, source))
		case *ast.ThematicBreak:
			e.paragraphSpacing()
		case *ast.Blockquote:
			e.walkMarkdown(n, source)
		}
	}
}

// inlineText flattens the inline children of a block node, joining
// soft line breaks with spaces.
func inlineText(node ast.Node, source []byte) string {
	var sb strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		default:
			sb.WriteString(inlineText(child, source))
		}
	}
	return sb.String()
}

func listItemText(n *ast.ListItem, source []byte) string {
	var parts []string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		parts = append(parts, inlineText(child, source))
	}
	return strings.Join(parts, " ")
}

func codeBlockText(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}
