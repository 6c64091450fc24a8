package heuristic

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/violation"
)

// Kind tags a heuristic pattern.
type Kind string

const (
	KindCarouselPrev Kind = "carouselPrev"
	KindCarouselNext Kind = "carouselNext"
	KindCarouselDots Kind = "carouselDots"
	KindIconButton   Kind = "iconButton"
	KindLinkName     Kind = "linkName"
	KindImageAlt     Kind = "imageAlt"
)

// Pattern is one deterministic fix. The set is closed: each variant
// recognises its elements and knows how to label them.
type Pattern interface {
	Kind() Kind
	// apply fixes t.el when it matches and returns the nodes it modified.
	// ok is false when t.el is not an instance of the pattern.
	apply(ctx context.Context, f *Fixer, t target) (touched []*html.Node, ok bool, err error)
}

// target is the element under repair and the report entry that named it.
type target struct {
	doc       *dom.Document
	el        *html.Node
	node      violation.Node
	cacheOnly bool
}

type (
	carouselPrev struct{}
	carouselNext struct{}
	carouselDots struct{}
	iconButton   struct{}
	linkName     struct{}
	imageAlt     struct{}
)

func (carouselPrev) Kind() Kind { return KindCarouselPrev }
func (carouselNext) Kind() Kind { return KindCarouselNext }
func (carouselDots) Kind() Kind { return KindCarouselDots }
func (iconButton) Kind() Kind   { return KindIconButton }
func (linkName) Kind() Kind     { return KindLinkName }
func (imageAlt) Kind() Kind     { return KindImageAlt }

var (
	prevClasses = []string{"owl-prev", "slick-prev", "carousel-control-prev", "swiper-button-prev"}
	nextClasses = []string{"owl-next", "slick-next", "carousel-control-next", "swiper-button-next"}
)

// dotContainers maps a pager container class to the class its dots carry.
// An empty dot class means every button in the container.
var dotContainers = []struct{ container, dot string }{
	{"owl-dots", "owl-dot"},
	{"slick-dots", ""},
}

func isButton(n *html.Node) bool {
	return dom.IsElement(n, atom.Button) || dom.Attr(n, "role") == "button"
}

func hasAnyClass(n *html.Node, classes []string) bool {
	for _, c := range classes {
		if dom.HasClass(n, c) {
			return true
		}
	}
	return false
}

func (carouselPrev) apply(_ context.Context, f *Fixer, t target) ([]*html.Node, bool, error) {
	n := t.el
	if !hasAnyClass(n, prevClasses) && !(isButton(n) && dom.HasClass(n, "prev")) {
		return nil, false, nil
	}
	dom.SetAttr(n, "aria-label", f.labels.PreviousSlide)
	return []*html.Node{n}, true, nil
}

func (carouselNext) apply(_ context.Context, f *Fixer, t target) ([]*html.Node, bool, error) {
	n := t.el
	if !hasAnyClass(n, nextClasses) && !(isButton(n) && dom.HasClass(n, "next")) {
		return nil, false, nil
	}
	dom.SetAttr(n, "aria-label", f.labels.NextSlide)
	return []*html.Node{n}, true, nil
}

// apply labels every dot of the container holding n, once per container.
// A dot whose container was already processed is reported handled without
// touching any label.
func (carouselDots) apply(_ context.Context, f *Fixer, t target) ([]*html.Node, bool, error) {
	n := t.el
	for _, dc := range dotContainers {
		if dc.dot != "" && !dom.HasClass(n, dc.dot) {
			continue
		}
		container := dom.Closest(n, func(p *html.Node) bool { return dom.HasClass(p, dc.container) })
		if container == nil {
			continue
		}
		id := t.doc.ID(container)
		if f.processedContainers[id] {
			return []*html.Node{container}, true, nil
		}

		sel := "button"
		if dc.dot != "" {
			sel += "." + dc.dot
		}
		dots, err := dom.QueryWithin(container, sel)
		if err != nil {
			return nil, false, err
		}
		if len(dots) == 0 {
			continue
		}
		for i, d := range dots {
			dom.SetAttr(d, "aria-label", fmt.Sprintf(f.labels.GoToSlide, i+1))
		}
		f.processedContainers[id] = true
		return append([]*html.Node{container}, dots...), true, nil
	}
	return nil, false, nil
}

func (iconButton) apply(_ context.Context, f *Fixer, t target) ([]*html.Node, bool, error) {
	n := t.el
	if !isButton(n) || strings.TrimSpace(dom.Attr(n, "aria-label")) != "" {
		return nil, false, nil
	}
	label := strings.TrimSpace(dom.Attr(n, "title"))
	if label == "" {
		label = dom.Text(n)
	}
	if label == "" {
		label, _ = match(f.labels.ButtonClasses, descendantClasses(n))
	}
	if label == "" {
		label = f.labels.Button
	}
	dom.SetAttr(n, "aria-label", label)
	return []*html.Node{n}, true, nil
}

// descendantClasses returns the classes of n followed by those of its
// descendant elements, in document order.
func descendantClasses(n *html.Node) []string {
	var out []string
	for _, c := range dom.FindAll(n, func(c *html.Node) bool { return c.Type == html.ElementNode }) {
		out = append(out, dom.Classes(c)...)
	}
	return out
}

func (linkName) apply(_ context.Context, f *Fixer, t target) ([]*html.Node, bool, error) {
	n := t.el
	if !dom.IsElement(n, atom.A) {
		return nil, false, nil
	}
	if dom.Text(n) != "" || strings.TrimSpace(dom.Attr(n, "aria-label")) != "" {
		return nil, false, nil
	}
	label := f.linkLabel(n)
	dom.SetAttr(n, "aria-label", label)
	return []*html.Node{n}, true, nil
}

func (f *Fixer) linkLabel(n *html.Node) string {
	if t := strings.TrimSpace(dom.Attr(n, "title")); t != "" {
		return t
	}
	if l := f.hrefLabel(strings.TrimSpace(dom.Attr(n, "href"))); l != "" {
		return l
	}
	if l, ok := match(f.labels.LinkClasses, dom.Classes(n)); ok {
		return l
	}
	icon := dom.FindFirst(n, func(c *html.Node) bool {
		return c != n && (dom.IsElement(c, atom.I) || dom.IsElement(c, atom.Svg) || dom.IsElement(c, atom.Img))
	})
	if icon != nil {
		if l, ok := match(f.labels.IconClasses, dom.Classes(icon)); ok {
			return l
		}
	}
	if n.Parent != nil {
		links := dom.FindAll(n.Parent, func(c *html.Node) bool { return dom.IsElement(c, atom.A) })
		if len(links) > 1 {
			idx := 0
			for i, a := range links {
				if a == n {
					idx = i
					break
				}
			}
			return fmt.Sprintf(f.labels.NumberedLink, idx+1)
		}
	}
	return f.labels.Link
}

func (f *Fixer) hrefLabel(href string) string {
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "#"):
		return f.labels.InternalLink
	case strings.HasPrefix(href, "mailto:"):
		return fmt.Sprintf(f.labels.MailTo, strings.TrimPrefix(href, "mailto:"))
	case strings.HasPrefix(href, "tel:"):
		return fmt.Sprintf(f.labels.Call, strings.TrimPrefix(href, "tel:"))
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		u, err := url.Parse(href)
		if err != nil || u.Host == "" {
			return ""
		}
		return fmt.Sprintf(f.labels.LinkTo, strings.TrimPrefix(u.Hostname(), "www."))
	}
	p := href
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	last := path.Base("/" + p)
	if last == "/" || last == "." {
		return ""
	}
	last = strings.TrimSuffix(strings.TrimSuffix(last, ".html"), ".htm")
	last = strings.NewReplacer("-", " ", "_", " ").Replace(last)
	if strings.TrimSpace(last) == "" {
		return ""
	}
	return fmt.Sprintf(f.labels.LinkTo, titleCase(last))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// apply sets the alternative text of an image from the description
// resolver. Without a description the node is left for a generative pass.
// A cacheOnly target never triggers generation.
func (imageAlt) apply(ctx context.Context, f *Fixer, t target) ([]*html.Node, bool, error) {
	n := t.el
	if f.resolver == nil {
		return nil, false, nil
	}
	ref := strings.TrimSpace(t.node.Target)
	if ref == "" {
		ref = imageRef(n)
	}
	if ref == "" {
		return nil, false, nil
	}
	resolve := f.resolver.Resolve
	if t.cacheOnly {
		resolve = f.resolver.Lookup
	}
	desc, ok, err := resolve(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if !ok || desc == "" {
		return nil, false, nil
	}
	if dom.IsElement(n, atom.Img) || dom.IsElement(n, atom.Input) || dom.IsElement(n, atom.Area) {
		dom.SetAttr(n, "alt", desc)
	} else {
		dom.SetAttr(n, "aria-label", desc)
	}
	return []*html.Node{n}, true, nil
}

// imageRef returns the image source of n, looking inside n when it is a
// wrapper such as <picture> or a role="img" container.
func imageRef(n *html.Node) string {
	if src := strings.TrimSpace(dom.Attr(n, "src")); src != "" {
		return src
	}
	img := dom.FindFirst(n, func(c *html.Node) bool { return dom.IsElement(c, atom.Img) && dom.Attr(c, "src") != "" })
	if img == nil {
		return ""
	}
	return strings.TrimSpace(dom.Attr(img, "src"))
}
