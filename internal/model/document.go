package model

import "strings"

// Page is the text of one document page as produced by OCR.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document is read-only OCR output handed to the engine.
type Document struct {
	ID    string `json:"id"`
	Pages []Page `json:"pages"`
}

// NewDocument builds a document from per-page text, numbering pages from 1.
func NewDocument(id string, pages []string) Document {
	d := Document{ID: id, Pages: make([]Page, 0, len(pages))}
	for i, p := range pages {
		d.Pages = append(d.Pages, Page{Number: i + 1, Text: p})
	}
	return d
}

// Text joins page text top-to-bottom, separated by blank lines.
func (d Document) Text() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Sample returns at most n characters of the document text, with an
// ellipsis when truncated.
func Sample(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
