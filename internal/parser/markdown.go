package parser

import (
	"bytes"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/finextract/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark with GFM tables.
// The whole file is treated as a single page.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(src))

	doc := &doctree.Document{Title: titleFromFilename(filename)}
	var elements []doctree.PageElement
	collectMarkdown(root, src, &elements)

	doc.Pages = []doctree.Page{{Number: 1, Elements: elements}}
	return doc, nil
}

// collectMarkdown walks block nodes in document order.
func collectMarkdown(n ast.Node, src []byte, out *[]doctree.PageElement) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *east.Table:
			*out = append(*out, doctree.PageElement{
				Page:    1,
				Kind:    doctree.KindTable,
				Content: renderTable(markdownTableRows(node, src)),
			})
		default:
			if hasBlockChildren(c) {
				collectMarkdown(c, src, out)
				continue
			}
			*out = append(*out, lineElements(1, nodeText(c, src))...)
		}
	}
}

func markdownTableRows(table *east.Table, src []byte) [][]string {
	var rows [][]string
	for r := table.FirstChild(); r != nil; r = r.NextSibling() {
		// TableHeader and TableRow both hold TableCell children.
		var cells []string
		for cell := r.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, nodeText(cell, src))
		}
		rows = append(rows, trimCells(cells))
	}
	return rows
}

func hasBlockChildren(n ast.Node) bool {
	c := n.FirstChild()
	return c != nil && c.Type() == ast.TypeBlock
}

// nodeText gets the text content of a goldmark node. Leaf blocks without
// inline children (code blocks) use their raw lines.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return buf.String()
	}
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
