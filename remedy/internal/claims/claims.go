// Package claims tracks which strategy owns which node of the working
// document so that no node is handled twice by different strategies.
package claims

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/violation"
)

// Set is the claims table of one run. Not safe for concurrent use.
type Set struct {
	doc    *dom.Document
	owners map[dom.NodeID]violation.Strategy
	order  []dom.NodeID
}

// New returns an empty Set bound to doc.
func New(doc *dom.Document) *Set {
	return &Set{doc: doc, owners: make(map[dom.NodeID]violation.Strategy)}
}

// Claim records n as handled by strategy. The first claim on a node wins.
func (s *Set) Claim(n *html.Node, strategy violation.Strategy) dom.NodeID {
	id := s.doc.ID(n)
	s.ClaimID(id, strategy)
	return id
}

// ClaimID claims a node by identity.
func (s *Set) ClaimID(id dom.NodeID, strategy violation.Strategy) {
	if _, ok := s.owners[id]; ok {
		return
	}
	s.owners[id] = strategy
	s.order = append(s.order, id)
}

// Owner returns the strategy holding n itself.
func (s *Set) Owner(n *html.Node) (violation.Strategy, bool) {
	st, ok := s.owners[s.doc.ID(n)]
	return st, ok
}

// Blocked reports whether strategy may not touch n: n, one of its ancestors
// or one of its descendants is claimed by a different strategy.
func (s *Set) Blocked(n *html.Node, strategy violation.Strategy) bool {
	for _, id := range s.order {
		if s.owners[id] == strategy {
			continue
		}
		c := s.doc.Node(id)
		if c == nil {
			continue
		}
		if dom.Contains(c, n) || dom.Contains(n, c) {
			return true
		}
	}
	return false
}

// ErrFixLost is returned by Verify when a rewrite undoes a claimed fix.
var ErrFixLost = errors.New("claims: rewrite dropped a claimed fix")

// nameAttrs are the attributes that carry an accessible name.
var nameAttrs = []string{"aria-label", "aria-labelledby", "alt", "title"}

// Verify checks next, a candidate replacement of the bound document, before
// Rebind. Every claimed element that carries an accessible-name attribute
// must still exist at the same element path with the same tag and the same
// value for each of those attributes.
func (s *Set) Verify(next *dom.Document) error {
	for _, id := range s.order {
		old := s.doc.Node(id)
		if old == nil || old.Type != html.ElementNode {
			continue
		}
		p := s.doc.Path(old)
		if p == nil {
			continue
		}
		n := next.AtPath(p)
		for _, key := range nameAttrs {
			if !dom.HasAttr(old, key) {
				continue
			}
			if n == nil || n.Data != old.Data {
				return fmt.Errorf("%w: <%s> at %v is gone", ErrFixLost, old.Data, p)
			}
			if want := dom.Attr(old, key); !dom.HasAttr(n, key) || dom.Attr(n, key) != want {
				return fmt.Errorf("%w: <%s> %s=%q became %q", ErrFixLost, old.Data, key, want, dom.Attr(n, key))
			}
		}
	}
	return nil
}

// Rebind moves the claims onto next, a reparsed replacement of the bound
// document. Each claimed node is located by its element path; a claim whose
// path no longer reaches an element with the same tag is dropped. It
// returns the number of dropped claims.
func (s *Set) Rebind(next *dom.Document) int {
	owners := make(map[dom.NodeID]violation.Strategy, len(s.owners))
	var order []dom.NodeID
	dropped := 0
	for _, id := range s.order {
		old := s.doc.Node(id)
		var n *html.Node
		if old != nil {
			if p := s.doc.Path(old); p != nil {
				n = next.AtPath(p)
			}
		}
		if n == nil || n.Type != html.ElementNode || n.Data != old.Data {
			dropped++
			continue
		}
		nid := next.ID(n)
		if _, ok := owners[nid]; ok {
			continue
		}
		owners[nid] = s.owners[id]
		order = append(order, nid)
	}
	s.doc, s.owners, s.order = next, owners, order
	return dropped
}

// Len returns the number of claimed nodes.
func (s *Set) Len() int { return len(s.owners) }
