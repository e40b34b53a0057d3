package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/finextract/internal/doctree"
)

// CSVParser handles CSV files. The whole file becomes one TABLE element on
// a single page.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	page := doctree.Page{Number: 1}
	var rows [][]string
	for _, rec := range records {
		if row := trimCells(rec); countFilled(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) > 0 {
		page.Elements = []doctree.PageElement{{
			Page:    1,
			Kind:    doctree.KindTable,
			Content: renderTable(rows),
		}}
	}

	return &doctree.Document{
		Title: titleFromFilename(filename),
		Pages: []doctree.Page{page},
	}, nil
}
