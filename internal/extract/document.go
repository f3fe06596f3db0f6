// Package extract turns fetched catalog HTML into search hits and quote pages.
// Extraction is written against the small Document/Element capability set so
// any DOM-like implementation can back it; ParseHTML provides one built on
// goquery.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a queryable parsed page.
type Document interface {
	FindAll(selector string) []Element
}

// Element is one node matched by a selector.
type Element interface {
	// Text returns the combined text of the element and its descendants.
	Text() string
	// OwnText returns only the element's direct text-node children.
	OwnText() string
	// Attr returns the named attribute and whether it was present.
	Attr(name string) (string, bool)
	// HasClass reports whether the element carries the class.
	HasClass(name string) bool
	// FindAll matches selector against the element's descendants.
	FindAll(selector string) []Element
}

// ParseHTML parses body into a goquery-backed Document.
func ParseHTML(body []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return gqDocument{doc: doc}, nil
}

type gqDocument struct {
	doc *goquery.Document
}

func (d gqDocument) FindAll(selector string) []Element {
	return wrap(d.doc.Find(selector))
}

type gqElement struct {
	sel *goquery.Selection
}

func (e gqElement) Text() string {
	return e.sel.Text()
}

func (e gqElement) OwnText() string {
	var b strings.Builder
	e.sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if node := s.Get(0); node != nil && node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
	})
	return b.String()
}

func (e gqElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e gqElement) HasClass(name string) bool {
	return e.sel.HasClass(name)
}

func (e gqElement) FindAll(selector string) []Element {
	return wrap(e.sel.Find(selector))
}

func wrap(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, gqElement{sel: s})
	})
	return out
}
