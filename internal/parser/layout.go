package parser

import (
	"strings"

	"github.com/dgallion1/finextract/internal/doctree"
)

// groupRows turns a page's rows of cells into elements in reading order.
// Runs of two or more consecutive multi-cell rows form one TABLE element;
// every other non-blank row becomes a TEXT element. A nil or blank row ends
// the current table run.
func groupRows(page int, rows [][]string) []doctree.PageElement {
	var out []doctree.PageElement
	var table [][]string

	flush := func() {
		switch {
		case len(table) >= 2:
			out = append(out, doctree.PageElement{
				Page:    page,
				Kind:    doctree.KindTable,
				Content: renderTable(table),
			})
		case len(table) == 1:
			out = append(out, textElement(page, table[0]))
		}
		table = nil
	}

	for _, row := range rows {
		row = trimCells(row)
		switch filled := countFilled(row); {
		case filled == 0:
			flush()
		case filled >= 2:
			table = append(table, row)
		default:
			flush()
			out = append(out, textElement(page, row))
		}
	}
	flush()
	return out
}

// renderTable is a row-major, tab-separated rendering with rows padded to a
// common width. Missing cells render as empty strings.
func renderTable(rows [][]string) string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		cells := make([]string, width)
		copy(cells, r)
		lines[i] = strings.Join(cells, "\t")
	}
	return strings.Join(lines, "\n")
}

func textElement(page int, row []string) doctree.PageElement {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return doctree.PageElement{
		Page:    page,
		Kind:    doctree.KindText,
		Content: strings.Join(parts, " "),
	}
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.Join(strings.Fields(c), " ")
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func countFilled(row []string) int {
	n := 0
	for _, c := range row {
		if c != "" {
			n++
		}
	}
	return n
}

// lineElements splits free text into TEXT elements, dropping blank lines.
func lineElements(page int, text string) []doctree.PageElement {
	var out []doctree.PageElement
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, doctree.PageElement{Page: page, Kind: doctree.KindText, Content: line})
	}
	return out
}
