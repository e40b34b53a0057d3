package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/finextract/internal/doctree"
)

func TestMarkdownParser_HeadingsAndParagraphs(t *testing.T) {
	input := `# Annual Report

Group revenue grew strongly.
Margins held.

## Outlook

- Expand retail
- Grow leisure
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "report.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "report" {
		t.Errorf("expected title %q, got %q", "report", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}

	want := []string{
		"Annual Report",
		"Group revenue grew strongly.",
		"Margins held.",
		"Outlook",
		"Expand retail",
		"Grow leisure",
	}
	els := doc.Pages[0].Elements
	if len(els) != len(want) {
		t.Fatalf("expected %d elements, got %d: %+v", len(want), len(els), els)
	}
	for i, w := range want {
		if els[i].Content != w {
			t.Errorf("element[%d]: expected %q, got %q", i, w, els[i].Content)
		}
	}
}

func TestMarkdownParser_TableBecomesTableElement(t *testing.T) {
	input := `Summary

| Item | 2023 |
|------|------|
| Net Profit | 1,000,000 |
| EPS | |
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "fin.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	els := doc.Pages[0].Elements
	if len(els) != 2 {
		t.Fatalf("expected 2 elements, got %d: %+v", len(els), els)
	}
	if els[1].Kind != doctree.KindTable {
		t.Fatalf("expected TABLE element, got %s", els[1].Kind)
	}
	want := "Item\t2023\nNet Profit\t1,000,000\nEPS\t"
	if els[1].Content != want {
		t.Errorf("expected table %q, got %q", want, els[1].Content)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Elements) != 0 {
		t.Errorf("expected one empty page, got %+v", doc.Pages)
	}
}
