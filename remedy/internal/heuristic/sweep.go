package heuristic

import (
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/violation"
)

// Rule ids of the fixes Sweep records. Elements fixed under them were not
// named by the report.
const (
	SweepButtonName = "sweep-button-name"
	SweepLinkName   = "sweep-link-name"
	SweepImageAlt   = "sweep-image-alt"
)

type sweepRule struct {
	id       string
	match    func(*html.Node) bool
	patterns []Pattern
}

var sweepRules = []sweepRule{
	{
		id:       SweepButtonName,
		match:    func(n *html.Node) bool { return n.Type == html.ElementNode && isButton(n) && !named(n) },
		patterns: bindings["button-name"],
	},
	{
		id:       SweepLinkName,
		match:    func(n *html.Node) bool { return dom.IsElement(n, atom.A) && dom.HasAttr(n, "href") && !named(n) },
		patterns: bindings["link-name"],
	},
	{
		id:       SweepImageAlt,
		match:    func(n *html.Node) bool { return dom.IsElement(n, atom.Img) && !dom.HasAttr(n, "alt") && !labelled(n) },
		patterns: []Pattern{imageAlt{}},
	},
}

func labelled(n *html.Node) bool {
	return strings.TrimSpace(dom.Attr(n, "aria-label")) != "" ||
		strings.TrimSpace(dom.Attr(n, "aria-labelledby")) != ""
}

// named reports whether a button or link already has an accessible name:
// text, an ARIA label or an image with alternative text inside.
func named(n *html.Node) bool {
	if labelled(n) || dom.Text(n) != "" {
		return true
	}
	return dom.FindFirst(n, func(c *html.Node) bool {
		return c != n && dom.IsElement(c, atom.Img) && strings.TrimSpace(dom.Attr(c, "alt")) != ""
	}) != nil
}

// Sweep labels the buttons, links and images of doc that still have no
// accessible name once the reported violations are processed. Buttons and
// links go through the button-name and link-name patterns. Images only take
// a description already in the cache. Elements for which skip returns true
// are left alone.
//
// Each fix is recorded under its sweep rule id with a selector built from
// the element's position. Claimed holds the modified nodes.
func (f *Fixer) Sweep(ctx context.Context, doc *dom.Document, skip func(*html.Node) bool) Outcome {
	// NodeIDs of a tree replaced by a rewrite may come back on new nodes.
	f.processedContainers = make(map[dom.NodeID]bool)

	var out Outcome
	for _, rule := range sweepRules {
		for _, el := range dom.FindAll(doc.Root(), rule.match) {
			if ctx.Err() != nil {
				return out
			}
			// An earlier fix (a whole dot pager) may have named it already.
			if !rule.match(el) || (skip != nil && skip(el)) {
				continue
			}
			sel := doc.Selector(el)
			t := target{doc: doc, el: el, node: violation.Node{Selector: sel}, cacheOnly: true}
			kind, touched, ok := f.fixNode(ctx, t, rule.patterns)
			if !ok || rule.match(el) {
				continue
			}
			for _, n := range touched {
				out.Claimed = append(out.Claimed, doc.ID(n))
			}
			out.Records = append(out.Records, violation.FixRecord{
				ViolationID: rule.id,
				Selector:    sel,
				Strategy:    violation.StrategyHeuristic,
				Accepted:    true,
				Reason:      string(kind),
			})
		}
	}
	out.Handled = true
	f.logger.Debug("heuristic: sweep done", "fixed", len(out.Records))
	return out
}
