// CLAUDE:SUMMARY Deterministic accessible-name fixes for known patterns (carousel controls, icon buttons, empty links, image alt) applied per violation group, plus a sweep over unreported elements.
// Package heuristic applies rule-based fixes that need no generative model.
//
// Each violation id binds to an ordered list of patterns. For every node of
// a group the first pattern that recognises the element fixes it; nodes no
// pattern recognises are handed back for generative processing.
package heuristic

import (
	"context"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/violation"
)

// Describer resolves image references to descriptions. Lookup reads the
// cache only; Resolve may also generate. *describe.Resolver satisfies it.
type Describer interface {
	Lookup(ctx context.Context, ref string) (string, bool, error)
	Resolve(ctx context.Context, ref string) (string, bool, error)
}

// bindings lists the patterns tried for each rule id, in order.
var bindings = map[string][]Pattern{
	"button-name":     {carouselPrev{}, carouselNext{}, carouselDots{}, iconButton{}},
	"link-name":       {linkName{}},
	"image-alt":       {imageAlt{}},
	"role-img-alt":    {imageAlt{}},
	"input-image-alt": {imageAlt{}},
}

// Patterns returns the patterns bound to a rule id.
func Patterns(violationID string) []Pattern {
	return bindings[violationID]
}

// Config configures a Fixer.
type Config struct {
	// Locale selects the label table. Default: DefaultLocale.
	Locale string
	// Resolver supplies image descriptions. Nil disables the imageAlt pattern.
	Resolver Describer
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fixer applies heuristics over one run. processedContainers remembers the
// dot containers already labelled so a container is labelled once even when
// several of its dots are reported.
type Fixer struct {
	labels              *Labels
	resolver            Describer
	logger              *slog.Logger
	processedContainers map[dom.NodeID]bool
}

// New returns a Fixer for one run.
func New(cfg Config) (*Fixer, error) {
	cfg.defaults()
	labels, err := LoadLabels(cfg.Locale)
	if err != nil {
		return nil, err
	}
	return &Fixer{
		labels:              labels,
		resolver:            cfg.Resolver,
		logger:              cfg.Logger,
		processedContainers: make(map[dom.NodeID]bool),
	}, nil
}

// Outcome is the result of FixGroup. Handled is true when every node of the
// group was fixed. Claimed holds every node a pattern modified, including
// containers. Remaining are the nodes left for generative strategies.
type Outcome struct {
	Handled   bool
	Claimed   []dom.NodeID
	Records   []violation.FixRecord
	Remaining []violation.Node
}

// FixGroup applies the patterns bound to g's rule to each of its nodes.
// Selectors are resolved against the current tree just before each fix.
// A cancelled ctx stops the loop; unvisited nodes go to Remaining.
func (f *Fixer) FixGroup(ctx context.Context, doc *dom.Document, g *violation.Group) Outcome {
	patterns := bindings[g.ViolationID]
	if len(patterns) == 0 {
		return Outcome{Remaining: g.Nodes}
	}

	var out Outcome
	for i, vn := range g.Nodes {
		if ctx.Err() != nil {
			out.Remaining = append(out.Remaining, g.Nodes[i:]...)
			break
		}
		el, err := doc.Resolve(vn.Selector)
		if err != nil {
			out.Remaining = append(out.Remaining, vn)
			continue
		}

		kind, touched, ok := f.fixNode(ctx, target{doc: doc, el: el, node: vn}, patterns)
		if !ok {
			out.Remaining = append(out.Remaining, vn)
			continue
		}
		for _, n := range touched {
			out.Claimed = append(out.Claimed, doc.ID(n))
		}
		out.Records = append(out.Records, violation.FixRecord{
			ViolationID: g.ViolationID,
			Selector:    vn.Selector,
			Strategy:    violation.StrategyHeuristic,
			Accepted:    true,
			Reason:      string(kind),
		})
	}
	out.Handled = len(out.Remaining) == 0
	f.logger.Debug("heuristic: group processed",
		"violation_id", g.ViolationID,
		"fixed", len(out.Records),
		"remaining", len(out.Remaining))
	return out
}

func (f *Fixer) fixNode(ctx context.Context, t target, patterns []Pattern) (Kind, []*html.Node, bool) {
	for _, p := range patterns {
		touched, ok, err := p.apply(ctx, f, t)
		if err != nil {
			f.logger.Warn("heuristic: pattern failed",
				"pattern", p.Kind(), "selector", t.node.Selector, "error", err)
			continue
		}
		if ok {
			return p.Kind(), touched, true
		}
	}
	return "", nil, false
}
