// CLAUDE:SUMMARY Per-node generative correction: serialise the element, request a corrected fragment, validate it and splice it back in place.
package fragment

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/provider"
	"github.com/hazyhaar/a11yfix/remedy/internal/claims"
	"github.com/hazyhaar/a11yfix/remedy/internal/prompt"
	"github.com/hazyhaar/a11yfix/remedy/internal/validate"
	"github.com/hazyhaar/a11yfix/violation"
)

// Kind tags provider calls made by the corrector.
const Kind = "fragment"

// Describer returns cached descriptions for image references.
type Describer interface {
	Descriptions(ctx context.Context, refs []string) map[string]string
}

// Corrector rewrites one element at a time.
type Corrector struct {
	Provider provider.Provider
	Claims   *claims.Set
	// Describer may be nil; fragments then carry no image descriptions.
	Describer Describer
	Logger    *slog.Logger
}

// Fix processes items in order against doc. Every item yields exactly one
// FixRecord. Provider and validation failures reject the item and leave its
// node untouched; only cancellation of ctx stops the loop, returning the
// records so far with ctx.Err().
func (c *Corrector) Fix(ctx context.Context, doc *dom.Document, items []violation.Item) ([]violation.FixRecord, error) {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	records := make([]violation.FixRecord, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec := c.fixOne(ctx, doc, it, log)
		records = append(records, rec)
		if rec.Reason == violation.ReasonCancelled {
			return records, ctx.Err()
		}
	}
	return records, nil
}

func (c *Corrector) fixOne(ctx context.Context, doc *dom.Document, it violation.Item, log *slog.Logger) violation.FixRecord {
	rec := violation.FixRecord{
		ViolationID: it.ViolationID,
		Selector:    it.Node.Selector,
		Strategy:    violation.StrategyAIFragment,
	}
	reject := func(reason string, attrs ...any) violation.FixRecord {
		rec.Reason = reason
		log.Info("fragment: rejected", append([]any{
			"violation_id", it.ViolationID, "selector", it.Node.Selector, "reason", reason,
		}, attrs...)...)
		return rec
	}

	el, err := doc.Resolve(it.Node.Selector)
	if err != nil {
		return reject(violation.ReasonNotFound)
	}
	if c.claimed(el) {
		return reject(violation.ReasonClaimed)
	}
	original, err := dom.Outer(el)
	if err != nil {
		return reject(violation.ReasonInvalid, "error", err)
	}

	req := prompt.FragmentRequest{
		ViolationID:    it.ViolationID,
		Description:    it.Description,
		HelpURL:        it.HelpURL,
		FailureSummary: it.Node.FailureSummary,
		Fragment:       original,
		Images:         c.images(ctx, el),
	}
	if violation.IsContrastRule(it.ViolationID) {
		if cv, ok := it.Node.ContrastView(); ok {
			req.Contrast = &cv
			req.ApplyToChildren = isContainer(el) || hasTextChildren(el)
		}
	}
	instruction, payload := prompt.Fragment(req)

	resp, err := c.Provider.Correct(provider.WithKind(ctx, Kind), instruction, payload)
	if err != nil {
		if ctx.Err() != nil {
			return reject(violation.ReasonCancelled)
		}
		return reject(violation.ReasonProviderError, "error", err)
	}

	if dom.IsRoot(el) {
		// html, head and body cannot be spliced; their content is taken over.
		repl, err := validate.Root(resp, el)
		if errors.Is(err, validate.ErrUnchanged) {
			return reject(violation.ReasonUnchanged)
		}
		if err != nil {
			return reject(violation.ReasonInvalid, "error", err)
		}
		// Not claimed: a claim on the root would block every later node.
		c.adoptRoot(doc, el, repl)
		rec.Accepted = true
		log.Debug("fragment: applied to root element", "violation_id", it.ViolationID, "tag", el.Data)
		return rec
	}

	repl, err := validate.Fragment(resp, el, el.Parent)
	if errors.Is(err, validate.ErrUnchanged) {
		return reject(violation.ReasonUnchanged)
	}
	if err != nil {
		return reject(violation.ReasonInvalid, "error", err)
	}
	if err := doc.Replace(el, repl); err != nil {
		return reject(violation.ReasonInvalid, "error", err)
	}
	if c.Claims != nil {
		c.Claims.Claim(repl, violation.StrategyAIFragment)
	}
	rec.Accepted = true
	log.Debug("fragment: applied", "violation_id", it.ViolationID, "selector", it.Node.Selector)
	return rec
}

// claimed reports whether another strategy holds el. A root element only
// counts its own claim: a labelled button must not keep <html lang> unfixed.
func (c *Corrector) claimed(el *html.Node) bool {
	if c.Claims == nil {
		return false
	}
	if dom.IsRoot(el) {
		st, ok := c.Claims.Owner(el)
		return ok && st != violation.StrategyAIFragment
	}
	return c.Claims.Blocked(el, violation.StrategyAIFragment)
}

// adoptRoot moves repl onto el. The html element always takes the new
// attributes and recurses into head and body; head or body takes the new
// children only when nothing inside it is claimed by another strategy.
func (c *Corrector) adoptRoot(doc *dom.Document, el, repl *html.Node) {
	if el.DataAtom == atom.Html {
		doc.AdoptAttrs(el, repl)
		for _, tag := range []atom.Atom{atom.Head, atom.Body} {
			dst, src := childElement(el, tag), childElement(repl, tag)
			if dst != nil && src != nil {
				c.adoptRoot(doc, dst, src)
			}
		}
		return
	}
	if c.Claims != nil && c.Claims.Blocked(el, violation.StrategyAIFragment) {
		doc.AdoptAttrs(el, repl)
		return
	}
	doc.Adopt(el, repl)
}

func childElement(n *html.Node, tag atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == tag {
			return c
		}
	}
	return nil
}

func (c *Corrector) images(ctx context.Context, el *html.Node) map[string]string {
	if c.Describer == nil {
		return nil
	}
	refs := ImageRefs(el)
	if len(refs) == 0 {
		return nil
	}
	return c.Describer.Descriptions(ctx, refs)
}

// ImageRefs returns the src of every image under root, root included.
func ImageRefs(root *html.Node) []string {
	var refs []string
	for _, img := range dom.FindAll(root, func(n *html.Node) bool { return dom.IsElement(n, atom.Img) }) {
		if src := strings.TrimSpace(dom.Attr(img, "src")); src != "" {
			refs = append(refs, src)
		}
	}
	return refs
}

func isContainer(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer,
		atom.Nav, atom.Main, atom.Ul, atom.Ol:
		return true
	}
	return false
}

var textTags = map[atom.Atom]bool{
	atom.P: true, atom.Span: true, atom.A: true, atom.Li: true, atom.Td: true, atom.Th: true,
	atom.Label: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true,
	atom.H6: true, atom.Strong: true, atom.Em: true, atom.B: true, atom.I: true,
}

func hasTextChildren(n *html.Node) bool {
	return dom.FindFirst(n, func(c *html.Node) bool {
		return c != n && c.Type == html.ElementNode && textTags[c.DataAtom] && dom.Text(c) != ""
	}) != nil
}
