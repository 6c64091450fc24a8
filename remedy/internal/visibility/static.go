package visibility

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/a11yfix/dom"
)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)font-size\s*:\s*0(?:[^.1-9]|$)`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(?:[^.1-9]|$)`),
	regexp.MustCompile(`(?i)position\s*:\s*absolute[^;]*-\d{4,}`),
}

// StaticRenderer answers visibility from the markup alone: the hidden
// attribute, hidden inputs, non-rendered containers and inline styles on the
// element or any ancestor. It cannot see stylesheet rules.
type StaticRenderer struct {
	doc *dom.Document
}

// NewStatic returns a renderer over doc. Queries see the current tree.
func NewStatic(doc *dom.Document) *StaticRenderer {
	return &StaticRenderer{doc: doc}
}

// FindBySelector resolves selector in the document; the element is an *html.Node.
func (s *StaticRenderer) FindBySelector(_ context.Context, selector string) (Element, error) {
	n, err := s.doc.Resolve(selector)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// IsVisible walks n and its ancestors looking for anything that hides it.
func (s *StaticRenderer) IsVisible(_ context.Context, el Element) (bool, error) {
	n, ok := el.(*html.Node)
	if !ok || n == nil {
		return false, fmt.Errorf("visibility: foreign element %T", el)
	}
	for c := n; c != nil; c = c.Parent {
		if hidden(c) {
			return false, nil
		}
	}
	return true, nil
}

func hidden(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Template, atom.Script, atom.Style, atom.Noscript:
		return true
	case atom.Input:
		if strings.EqualFold(dom.Attr(n, "type"), "hidden") {
			return true
		}
	}
	if dom.HasAttr(n, "hidden") {
		return true
	}
	style := dom.Attr(n, "style")
	if style == "" {
		return false
	}
	for _, pat := range hiddenStylePatterns {
		if pat.MatchString(style) {
			return true
		}
	}
	return false
}
