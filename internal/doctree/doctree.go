package doctree

import "fmt"

// Kind classifies a page element.
type Kind string

const (
	KindText  Kind = "TEXT"
	KindTable Kind = "TABLE"
)

// Document is the root of a parsed, paginated document.
type Document struct {
	Title  string // Document title (from metadata or filename)
	Source string // Filename or path the document was read from
	Pages  []Page // One entry per page, contiguous and 1-based
}

// Page holds the elements of a single page in reading order.
type Page struct {
	Number   int
	Elements []PageElement
}

// PageElement is one detected line or table on a page.
type PageElement struct {
	Page    int
	Kind    Kind
	Content string
}

// TextBlock is a PageElement rendered with its page/kind prefix.
type TextBlock struct {
	SourcePage int
	Kind       Kind
	Text       string
}

// Render formats an element as a TextBlock.
func (e PageElement) Render() TextBlock {
	return TextBlock{
		SourcePage: e.Page,
		Kind:       e.Kind,
		Text:       fmt.Sprintf("Page %d [%s]: %s", e.Page, e.Kind, e.Content),
	}
}

// ElementCount returns the total number of elements across all pages.
func (d *Document) ElementCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Elements)
	}
	return n
}

// Chunk is a bounded window of the flattened document text.
type Chunk struct {
	ID       string
	Index    int    // Sequence number within document
	Text     string // Chunk text content
	Start    int    // Byte offset of Text within the flattened document
	End      int
	Metadata ChunkMetadata
}

// ChunkMetadata carries provenance for a chunk.
type ChunkMetadata struct {
	Source      string `json:"source"`
	ApproxPages []int  `json:"approx_pages"`
}
