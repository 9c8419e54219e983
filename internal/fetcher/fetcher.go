// Package fetcher downloads company websites and reads spreadsheet imports.
package fetcher

import (
	"context"
)

// Fetcher retrieves a web page and reduces it to readable text.
type Fetcher interface {
	// FetchPage downloads url, decodes its charset and extracts the title
	// and paragraph text.
	FetchPage(ctx context.Context, url string) (*Page, error)
}

// Page is the readable content of a fetched HTML document.
type Page struct {
	URL        string
	StatusCode int
	Title      string
	Paragraphs []string
}

// FirstParagraph returns the first paragraph longer than minLen characters,
// or "".
func (p *Page) FirstParagraph(minLen int) string {
	if p == nil {
		return ""
	}
	for _, para := range p.Paragraphs {
		if len([]rune(para)) > minLen {
			return para
		}
	}
	return ""
}
