// CLAUDE:SUMMARY Queries every reported selector against a renderer and removes the subtrees that are hidden or cannot be found.
package visibility

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/violation"
)

// Element is an opaque handle produced by a Renderer.
type Element = any

// Renderer answers selector and visibility queries against a rendered page.
type Renderer interface {
	FindBySelector(ctx context.Context, selector string) (Element, error)
	IsVisible(ctx context.Context, el Element) (bool, error)
}

// Filter removes invisible nodes before any fix is attempted.
type Filter struct {
	Renderer Renderer
	// Timeout bounds each selector query. Default: 5s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Apply queries each distinct selector in items, in order. A selector that
// cannot be located or is not visible is queued; once every query is done
// the queued subtrees are removed from doc. A queued selector that no longer
// matches at removal time (an ancestor went first) is ignored.
//
// Root elements and head content are never queued: they are not rendered,
// yet removing them would break the document.
//
// It returns the items whose selector survived and one StrategyRemoved
// record per dropped item, so two violations on one hidden node yield two
// records. If ctx is cancelled during the query phase no node is removed and
// items is returned unchanged along with ctx.Err().
func (f *Filter) Apply(ctx context.Context, doc *dom.Document, items []violation.Item) ([]violation.Item, []violation.FixRecord, error) {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	reasons := make(map[string]string)
	var order []string
	checked := make(map[string]bool)

	for _, it := range items {
		sel := it.Node.Selector
		if checked[sel] {
			continue
		}
		checked[sel] = true
		if err := ctx.Err(); err != nil {
			return items, nil, err
		}
		if n, err := doc.Resolve(sel); err == nil && metadata(n) {
			continue
		}

		visible, err := f.query(ctx, sel, timeout)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return items, nil, ctx.Err()
			}
			log.Debug("visibility: lookup failed", "selector", sel, "error", err)
			reasons[sel] = violation.ReasonLookupFailed
			order = append(order, sel)
		case !visible:
			reasons[sel] = violation.ReasonNotVisible
			order = append(order, sel)
		}
	}

	removed := make(map[string]bool, len(order))
	for _, sel := range order {
		ok, err := doc.Remove(sel)
		if err != nil {
			log.Debug("visibility: remove skipped", "selector", sel, "error", err)
		}
		removed[sel] = ok
	}
	if len(order) > 0 {
		log.Info("visibility: removed hidden nodes", "queued", len(order))
	}

	eligible := make([]violation.Item, 0, len(items))
	var records []violation.FixRecord
	for _, it := range items {
		reason, ok := reasons[it.Node.Selector]
		if !ok {
			eligible = append(eligible, it)
			continue
		}
		records = append(records, violation.FixRecord{
			ViolationID: it.ViolationID,
			Selector:    it.Node.Selector,
			Strategy:    violation.StrategyRemoved,
			Accepted:    removed[it.Node.Selector],
			Reason:      reason,
		})
	}
	return eligible, records, nil
}

// metadata reports whether n is html, head or body, or lives in head.
func metadata(n *html.Node) bool {
	if dom.IsRoot(n) {
		return true
	}
	return dom.Closest(n, func(c *html.Node) bool { return dom.IsElement(c, atom.Head) }) != nil
}

func (f *Filter) query(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	el, err := f.Renderer.FindBySelector(qctx, selector)
	if err != nil {
		return false, err
	}
	return f.Renderer.IsVisible(qctx, el)
}
