// CLAUDE:SUMMARY Groups violations by rule id, dedups nodes by selector and derives the priority-ordered work list.
package violation

import (
	"cmp"
	"slices"
)

// Aggregation is the normalised view of a report.
type Aggregation struct {
	Groups map[string]*Group `json:"groups"`
	Order  []string          `json:"order"`
	Items  []Item            `json:"items"`
}

// Aggregate merges violations sharing an id into one Group. Nodes are
// deduplicated by selector within a group, first occurrence wins, and a
// group keeps the most severe impact seen for its id.
//
// Order lists group ids by impact rank then id. Items follows the same keys
// with node insertion order as the final tie-breaker, so the same input
// always yields the same sequence.
func Aggregate(vs []Violation) *Aggregation {
	a := &Aggregation{Groups: make(map[string]*Group)}
	seen := make(map[string]map[string]bool)

	for _, v := range vs {
		g, ok := a.Groups[v.ID]
		if !ok {
			g = &Group{
				ViolationID: v.ID,
				Description: v.Description,
				HelpURL:     v.HelpURL,
				Impact:      v.Impact,
			}
			if g.Impact == "" {
				g.Impact = ImpactModerate
			}
			a.Groups[v.ID] = g
			a.Order = append(a.Order, v.ID)
			seen[v.ID] = make(map[string]bool)
		}
		if v.Impact != "" && v.Impact.Rank() < g.Impact.Rank() {
			g.Impact = v.Impact
		}
		if g.Description == "" {
			g.Description = v.Description
		}
		if g.HelpURL == "" {
			g.HelpURL = v.HelpURL
		}
		for _, n := range v.Nodes {
			if n.Selector == "" || seen[v.ID][n.Selector] {
				continue
			}
			seen[v.ID][n.Selector] = true
			g.Nodes = append(g.Nodes, n)
		}
	}

	slices.SortStableFunc(a.Order, func(x, y string) int {
		gx, gy := a.Groups[x], a.Groups[y]
		if c := cmp.Compare(gx.Impact.Rank(), gy.Impact.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})

	for _, id := range a.Order {
		g := a.Groups[id]
		for _, n := range g.Nodes {
			a.Items = append(a.Items, Item{
				ViolationID: id,
				Description: g.Description,
				HelpURL:     g.HelpURL,
				Impact:      g.Impact,
				Node:        n,
			})
		}
	}
	return a
}

// Group returns the group for id, or nil.
func (a *Aggregation) Group(id string) *Group {
	return a.Groups[id]
}

// Contrast returns the colour view of every node of violationID that carries
// contrast metadata.
func (a *Aggregation) Contrast(violationID string) []ContrastView {
	g := a.Groups[violationID]
	if g == nil {
		return nil
	}
	return ContrastViews(g.Nodes)
}

// ContrastViews returns the colour views of the nodes that carry contrast
// metadata, in order.
func ContrastViews(nodes []Node) []ContrastView {
	var out []ContrastView
	for _, n := range nodes {
		if v, ok := n.ContrastView(); ok {
			out = append(out, v)
		}
	}
	return out
}

// ContrastView derives the colour view of n. ok is false without metadata.
func (n Node) ContrastView() (ContrastView, bool) {
	if n.Contrast == nil {
		return ContrastView{}, false
	}
	return ContrastView{
		Node:            n,
		ForegroundColor: n.Contrast.ForegroundColor,
		BackgroundColor: n.Contrast.BackgroundColor,
		ContrastRatio:   n.Contrast.ContrastRatio,
		ExpectedRatio:   n.Contrast.ExpectedRatio,
		FontSize:        n.Contrast.FontSize,
		FontWeight:      n.Contrast.FontWeight,
	}, true
}

// Count returns the number of distinct nodes across all groups.
func (a *Aggregation) Count() int { return len(a.Items) }
