package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is the read-only view of a parsed page the extractors need.
type Document interface {
	// Text returns the trimmed, concatenated text of every match.
	Text(selector string) string
	// FirstText returns the trimmed text of the first match.
	FirstText(selector string) string
	// Attr returns an attribute of the first match, or "" when absent.
	Attr(selector, name string) string
	// Content returns the trimmed text of the document root itself.
	Content() string
	// Each calls fn with a document scoped to every match, in document order.
	Each(selector string, fn func(Document))
}

type selectionDocument struct {
	sel *goquery.Selection
}

// NewDocument wraps a goquery selection, such as colly's HTMLElement.DOM.
func NewDocument(sel *goquery.Selection) Document {
	return selectionDocument{sel: sel}
}

// ParseHTML parses r into a Document.
func ParseHTML(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewDocument(doc.Selection), nil
}

func (d selectionDocument) Text(selector string) string {
	return strings.TrimSpace(d.sel.Find(selector).Text())
}

func (d selectionDocument) FirstText(selector string) string {
	return strings.TrimSpace(d.sel.Find(selector).First().Text())
}

func (d selectionDocument) Attr(selector, name string) string {
	value, _ := d.sel.Find(selector).First().Attr(name)
	return value
}

func (d selectionDocument) Content() string {
	return strings.TrimSpace(d.sel.Text())
}

func (d selectionDocument) Each(selector string, fn func(Document)) {
	d.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		fn(selectionDocument{sel: s})
	})
}
