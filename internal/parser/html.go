package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dgallion1/finextract/internal/doctree"
)

// HTMLParser handles HTML files. The whole file is treated as one page.
type HTMLParser struct{}

const htmlBlocks = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, table"

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	gq := goquery.NewDocumentFromNode(root)

	doc := &doctree.Document{Title: titleFromFilename(filename)}
	if title := strings.TrimSpace(gq.Find("title").First().Text()); title != "" {
		doc.Title = title
	}

	gq.Find("script, style, noscript, nav, footer").Remove()

	var elements []doctree.PageElement
	gq.Find("body").Find(htmlBlocks).Each(func(_ int, s *goquery.Selection) {
		// Content nested in another captured block is emitted by its parent.
		if s.ParentsFiltered("table, p, li, pre, blockquote").Length() > 0 {
			return
		}
		if goquery.NodeName(s) == "table" {
			if rows := htmlTableRows(s); len(rows) > 0 {
				elements = append(elements, doctree.PageElement{
					Page:    1,
					Kind:    doctree.KindTable,
					Content: renderTable(rows),
				})
			}
			return
		}
		elements = append(elements, lineElements(1, s.Text())...)
	})

	doc.Pages = []doctree.Page{{Number: 1, Elements: elements}}
	return doc, nil
}

func htmlTableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cell.Text())
		})
		if cells = trimCells(cells); len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows
}
