package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/finextract/internal/doctree"
)

// DOCXParser handles .docx files. Word documents carry no fixed pagination,
// so explicit page breaks are not tracked and everything lands on page 1.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	parsed, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var elements []doctree.PageElement
	for _, item := range parsed.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			elements = append(elements, lineElements(1, docxParagraphText(it))...)
		case *docx.Table:
			if rows := docxTableRows(it); len(rows) > 0 {
				elements = append(elements, doctree.PageElement{
					Page:    1,
					Kind:    doctree.KindTable,
					Content: renderTable(rows),
				})
			}
		}
	}

	return &doctree.Document{
		Title: titleFromFilename(filename),
		Pages: []doctree.Page{{Number: 1, Elements: elements}},
	}, nil
}

func docxTableRows(t *docx.Table) [][]string {
	var rows [][]string
	for _, tr := range t.TableRows {
		var cells []string
		for _, tc := range tr.TableCells {
			parts := make([]string, 0, len(tc.Paragraphs))
			for _, para := range tc.Paragraphs {
				if s := docxParagraphText(para); s != "" {
					parts = append(parts, s)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if cells = trimCells(cells); len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
