package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/finextract/internal/doctree"
)

// Parser converts raw document bytes into a paginated Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// ErrUnsupported is returned for file extensions no parser handles.
var ErrUnsupported = errors.New("unsupported file extension")

// DocumentReadError reports an unreadable or corrupt source document.
// It is fatal to a run and never retried.
type DocumentReadError struct {
	Path string
	Err  error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("read document %s: %v", e.Path, e.Err)
}

func (e *DocumentReadError) Unwrap() error { return e.Err }

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Parse selects a parser for filename and runs it. Every failure is
// reported as a *DocumentReadError.
func Parse(r io.Reader, filename string) (*doctree.Document, error) {
	p, err := ForFile(filename)
	if err != nil {
		return nil, &DocumentReadError{Path: filename, Err: err}
	}
	doc, err := p.Parse(r, filename)
	if err != nil {
		var readErr *DocumentReadError
		if errors.As(err, &readErr) {
			return nil, err
		}
		return nil, &DocumentReadError{Path: filename, Err: err}
	}
	doc.Source = filepath.Base(filename)
	if len(doc.Pages) == 0 {
		doc.Pages = []doctree.Page{{Number: 1}}
	}
	return doc, nil
}

// ParseFile opens a local document and parses it.
func ParseFile(path string) (*doctree.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DocumentReadError{Path: path, Err: err}
	}
	defer f.Close()
	return Parse(f, path)
}

// titleFromFilename strips any directory and extension.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
