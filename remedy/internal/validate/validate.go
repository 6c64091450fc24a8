// CLAUDE:SUMMARY Two-stage acceptance checks for generated markup: fence stripping, structural parse, then fragment or document well-formedness predicates.
// Package validate decides whether a provider response may replace part or
// all of the working document. A response is first reduced to its markup
// (StripFences), then parsed; parse failure or a failed predicate rejects it.
package validate

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/a11yfix/dom"
)

var (
	ErrEmpty          = errors.New("validate: empty response")
	ErrDocumentMarker = errors.New("validate: fragment contains document root markers")
	ErrNotSingle      = errors.New("validate: fragment must have exactly one top-level element")
	ErrUnchanged      = errors.New("validate: response identical to the original")
	ErrNotDocument    = errors.New("validate: response is not a complete document")
	ErrTooShort       = errors.New("validate: response much shorter than the current document")
	ErrRootMismatch   = errors.New("validate: response does not carry the target root element")
)

// DefaultMinLengthRatio is the smallest accepted length of a rewritten
// document relative to the current one.
const DefaultMinLengthRatio = 0.5

const fence = "```"

// StripFences extracts the markup from a response that wraps it in a
// Markdown code block, with or without a language tag. A response that
// already starts with markup is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, fence)
	if start < 0 || (start > 0 && strings.HasPrefix(s, "<")) {
		return s
	}
	body := s[start+len(fence):]
	// Drop the language tag line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "<") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// Fragment validates a corrected fragment meant to replace original, an
// element whose parent is parent. The response must parse in the parent's
// context into exactly one top-level element (comments and whitespace
// aside), must not carry html/head/body tags, and must differ from original.
func Fragment(resp string, original, parent *html.Node) (*html.Node, error) {
	s := StripFences(resp)
	if s == "" {
		return nil, ErrEmpty
	}
	if hasRootMarkers(s) {
		return nil, ErrDocumentMarker
	}

	nodes, err := dom.ParseFragment(s, parent)
	if err != nil {
		return nil, fmt.Errorf("validate: parse fragment: %w", err)
	}
	var el *html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.CommentNode:
			continue
		case html.TextNode:
			if strings.TrimSpace(n.Data) == "" {
				continue
			}
			return nil, ErrNotSingle
		case html.ElementNode:
			if el != nil {
				return nil, ErrNotSingle
			}
			el = n
		default:
			return nil, ErrNotSingle
		}
	}
	if el == nil {
		return nil, ErrNotSingle
	}

	if original != nil {
		before, err1 := dom.Outer(original)
		after, err2 := dom.Outer(el)
		if err1 == nil && err2 == nil && before == after {
			return nil, ErrUnchanged
		}
	}
	return el, nil
}

// Root validates a corrected html, head or body element. The response is
// parsed as a document and must contain exactly one start tag named like
// original; that element is returned, detached from the parsed tree, for the
// caller to adopt onto original. Parsing as a document means a bare
// <head> or <body> response gets the implied wrappers and nothing more.
func Root(resp string, original *html.Node) (*html.Node, error) {
	if !dom.IsRoot(original) {
		return nil, fmt.Errorf("%w: target <%s> is not a root element", ErrRootMismatch, original.Data)
	}
	s := StripFences(resp)
	if s == "" {
		return nil, ErrEmpty
	}
	if n, err := countTag(s, original.DataAtom); err != nil {
		return nil, fmt.Errorf("validate: tokenize: %w", err)
	} else if n != 1 {
		return nil, fmt.Errorf("%w: %d <%s> start tags", ErrRootMismatch, n, original.Data)
	}

	doc, err := dom.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	el := dom.FindFirst(doc.Root(), func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == original.DataAtom
	})
	if el == nil {
		return nil, ErrRootMismatch
	}
	before, err1 := dom.Outer(original)
	after, err2 := dom.Outer(el)
	if err1 == nil && err2 == nil && before == after {
		return nil, ErrUnchanged
	}
	if el.Parent != nil {
		el.Parent.RemoveChild(el)
	}
	return el, nil
}

func countTag(s string, tag atom.Atom) (int, error) {
	n := 0
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return n, nil
			}
			return n, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == tag {
				n++
			}
		}
	}
}

func hasRootMarkers(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.DoctypeToken:
			return true
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Html, atom.Head, atom.Body:
				return true
			}
		}
	}
}

// Document validates a rewritten whole document against current, the
// serialised working document it is meant to replace. The response must
// contain exactly one <html> start tag and a closing </html>, must parse, and
// must be at least minRatio times as long as current (DefaultMinLengthRatio
// when minRatio <= 0).
func Document(resp, current string, minRatio float64) (*dom.Document, error) {
	s := StripFences(resp)
	if s == "" {
		return nil, ErrEmpty
	}
	if minRatio <= 0 {
		minRatio = DefaultMinLengthRatio
	}

	starts, ends, err := countRootTags(s)
	if err != nil {
		return nil, fmt.Errorf("validate: tokenize: %w", err)
	}
	if starts != 1 || ends < 1 {
		return nil, fmt.Errorf("%w: %d <html> start tags, %d </html> end tags", ErrNotDocument, starts, ends)
	}
	if len(current) > 0 {
		if ratio := float64(len(s)) / float64(len(current)); ratio < minRatio {
			return nil, fmt.Errorf("%w: %.0f%% of %d bytes", ErrTooShort, ratio*100, len(current))
		}
	}

	doc, err := dom.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if doc.Body() == nil {
		return nil, fmt.Errorf("%w: no body", ErrNotDocument)
	}
	if current != "" && s == strings.TrimSpace(current) {
		return nil, ErrUnchanged
	}
	return doc, nil
}

func countRootTags(s string) (starts, ends int, err error) {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return starts, ends, nil
			}
			return starts, ends, z.Err()
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != atom.Html {
				continue
			}
			if tt == html.StartTagToken {
				starts++
			} else {
				ends++
			}
		}
	}
}
