package parser

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/finextract/internal/doctree"
)

// buildPDF assembles an uncompressed PDF with one page per content stream,
// all sharing a Helvetica font. Offsets in the xref table are computed.
func buildPDF(contents []string) []byte {
	n := len(contents)
	// 1 catalog, 2 pages, 3 font, then a page and its content per page.
	objects := make([]string, 3+2*n)
	kids := make([]string, n)
	for i := range n {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>", strings.Join(kids, " "), n)
	objects[2] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"
	for i, c := range contents {
		page, content := 4+2*i, 5+2*i
		objects[page-1] = fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", content)
		objects[content-1] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(c), c)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func showText(x, y int, s string) string {
	return fmt.Sprintf("BT /F1 12 Tf %d %d Td (%s) Tj ET", x, y, s)
}

func TestPDFParser_PagesAndTables(t *testing.T) {
	data := buildPDF([]string{
		showText(72, 700, "Annual Report 2023"),
		"",
		strings.Join([]string{
			showText(72, 700, "Net Profit"), showText(300, 700, "1,000,000"),
			showText(72, 680, "Cost of Sales"), showText(300, 680, "400,000"),
		}, "\n"),
	})

	count, err := pdfPageCount(data)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 pages from pdfcpu, got %d", count)
	}

	doc, err := Parse(bytes.NewReader(data), "report.pdf")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(doc.Pages))
	}
	for i, p := range doc.Pages {
		if p.Number != i+1 {
			t.Errorf("page %d numbered %d", i, p.Number)
		}
	}

	first := doc.Pages[0].Elements
	if len(first) != 1 || first[0].Kind != doctree.KindText || !strings.Contains(first[0].Content, "Annual Report") {
		t.Errorf("unexpected first page elements %+v", first)
	}
	if n := len(doc.Pages[1].Elements); n != 0 {
		t.Errorf("expected blank second page, got %d elements", n)
	}

	third := doc.Pages[2].Elements
	if len(third) != 1 || third[0].Kind != doctree.KindTable {
		t.Fatalf("expected one table on the third page, got %+v", third)
	}
	lines := strings.Split(third[0].Content, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 table rows, got %q", third[0].Content)
	}
	if cells := strings.Split(lines[0], "\t"); len(cells) != 2 || cells[0] != "Net Profit" || cells[1] != "1,000,000" {
		t.Errorf("unexpected first row %q", lines[0])
	}
	if third[0].Page != 3 {
		t.Errorf("expected table on page 3, got %d", third[0].Page)
	}
}
