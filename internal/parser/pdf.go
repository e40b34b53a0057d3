package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/finextract/internal/doctree"
)

// PDFParser handles PDF files. Page count comes from pdfcpu; row-ordered
// text comes from ledongthuc/pdf, with pdftotext as an optional fallback.
type PDFParser struct {
	FallbackPdftotext bool
}

// Horizontal gaps, as multiples of the font size, that separate words and
// table cells within a row.
const (
	wordGapFactor = 0.2
	cellGapFactor = 1.5
)

var cellGapRe = regexp.MustCompile(`\s{3,}`)

// glyph is a positioned text run on a row.
type glyph struct {
	X, W     float64
	FontSize float64
	S        string
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	count, countErr := pdfPageCount(data)

	pageRows, err := readPDFRows(data)
	if err != nil && p.FallbackPdftotext {
		pageRows, err = pdftotextRows(data)
	}
	if err != nil {
		if countErr != nil {
			return nil, fmt.Errorf("extract pdf text: %w (validate: %v)", err, countErr)
		}
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	if len(pageRows) > count {
		count = len(pageRows)
	}

	doc := &doctree.Document{Title: titleFromFilename(filename)}
	for i := range count {
		page := doctree.Page{Number: i + 1}
		if i < len(pageRows) {
			page.Elements = groupRows(i+1, pageRows[i])
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// pdfPageCount validates the file structure and returns its page count.
func pdfPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

// readPDFRows returns, per page, the rows of cells in reading order.
func readPDFRows(data []byte) (pages [][][]string, err error) {
	// The reader panics on some malformed object streams.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("pdf reader: %v", rec)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages = make([][][]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages[i-1] = layoutRows(rows)
	}
	return pages, nil
}

// layoutRows orders rows top to bottom and splits each into cells.
func layoutRows(rows pdflib.Rows) [][]string {
	sorted := make([]*pdflib.Row, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	// PDF y grows upward, so higher positions come first.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position > sorted[j].Position
	})

	out := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		glyphs := make([]glyph, 0, len(r.Content))
		for _, t := range r.Content {
			glyphs = append(glyphs, glyph{X: t.X, W: t.W, FontSize: t.FontSize, S: t.S})
		}
		out = append(out, rowCells(glyphs))
	}
	return out
}

// rowCells joins glyphs into words and words into cells by horizontal gap.
func rowCells(glyphs []glyph) []string {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var cells []string
	var cur strings.Builder
	lastEnd := 0.0
	for i, g := range glyphs {
		size := g.FontSize
		if size <= 0 {
			size = 10
		}
		if i > 0 {
			gap := g.X - lastEnd
			switch {
			case gap > size*cellGapFactor:
				cells = append(cells, cur.String())
				cur.Reset()
			case gap > size*wordGapFactor:
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(g.S)
		if end := g.X + g.W; end > lastEnd || i == 0 {
			lastEnd = end
		}
	}
	if cur.Len() > 0 {
		cells = append(cells, cur.String())
	}
	return cells
}

// pdftotextRows runs pdftotext in layout mode and treats runs of three or
// more spaces as cell boundaries.
func pdftotextRows(data []byte) ([][][]string, error) {
	tmp, err := os.CreateTemp("", "finextract-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmpPath, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	segments := strings.Split(string(out), "\f")
	if n := len(segments); n > 1 && strings.TrimSpace(segments[n-1]) == "" {
		segments = segments[:n-1]
	}
	pages := make([][][]string, len(segments))
	for i, seg := range segments {
		for _, line := range strings.Split(seg, "\n") {
			pages[i] = append(pages[i], cellGapRe.Split(strings.TrimSpace(line), -1))
		}
	}
	return pages, nil
}
