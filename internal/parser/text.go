package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/finextract/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages and
// tab-separated lines are treated as table cells.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	pages, err := textPages(string(data))
	if err != nil {
		return nil, err
	}
	return &doctree.Document{
		Title: titleFromFilename(filename),
		Pages: pages,
	}, nil
}

// textPages splits form-feed separated text into pages. A trailing form feed
// does not start an extra page.
func textPages(text string) ([]doctree.Page, error) {
	segments := strings.Split(text, "\f")
	if n := len(segments); n > 1 && strings.TrimSpace(segments[n-1]) == "" {
		segments = segments[:n-1]
	}

	pages := make([]doctree.Page, 0, len(segments))
	for i, seg := range segments {
		scanner := bufio.NewScanner(strings.NewReader(seg))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var rows [][]string
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			if strings.TrimSpace(line) == "" {
				rows = append(rows, nil)
				continue
			}
			rows = append(rows, strings.Split(line, "\t"))
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}

		pages = append(pages, doctree.Page{
			Number:   i + 1,
			Elements: groupRows(i+1, rows),
		})
	}
	return pages, nil
}
