// CLAUDE:SUMMARY Owned HTML document tree with stable node identity, rendering and in-place mutation helpers.
// Package dom wraps a parsed golang.org/x/net/html tree as the single working
// document of a remediation run.
//
// Nodes carry a NodeID that is independent of CSS selector addressing: an ID
// is assigned the first time a node is observed and never changes, so a
// component can remember "this container" even after sibling removals shift
// every :nth-child selector around it. Selector resolution (see Query) is a
// pure function over the current tree and must be re-run before each mutation.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrNotFound is returned when a selector matches nothing.
	ErrNotFound = errors.New("dom: no element matches selector")
	// ErrDetached is returned when mutating a node that has no parent.
	ErrDetached = errors.New("dom: node is not attached to the tree")
)

// NodeID identifies a node for the lifetime of a Document.
type NodeID uint64

// Document is the mutable working tree.
type Document struct {
	root  *html.Node
	ids   map[*html.Node]NodeID
	nodes map[NodeID]*html.Node
	next  NodeID
}

// Parse reads a complete HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return FromNode(root), nil
}

// ParseString parses a complete HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// FromNode adopts an already parsed document node.
func FromNode(root *html.Node) *Document {
	return &Document{
		root:  root,
		ids:   make(map[*html.Node]NodeID),
		nodes: make(map[NodeID]*html.Node),
	}
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// ID returns the stable identity of n, assigning one on first sight.
func (d *Document) ID(n *html.Node) NodeID {
	if id, ok := d.ids[n]; ok {
		return id
	}
	d.next++
	d.ids[n] = d.next
	d.nodes[d.next] = n
	return d.next
}

// Node returns the node carrying id, attached or not, or nil if the id was
// never assigned by this document.
func (d *Document) Node(id NodeID) *html.Node {
	return d.nodes[id]
}

// Render serialises the whole document.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("dom: render: %w", err)
	}
	return buf.String(), nil
}

// String renders the document, returning "" if rendering fails.
func (d *Document) String() string {
	s, _ := d.Render()
	return s
}

// Outer serialises n and its subtree.
func Outer(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("dom: render node: %w", err)
	}
	return buf.String(), nil
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	return FindFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
}

// ParseFragment parses s as children of context. A nil context parses the
// fragment as if it were the content of <body>.
func ParseFragment(s string, context *html.Node) ([]*html.Node, error) {
	if context == nil || context.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	return nodes, nil
}

// Replace swaps old for repl in place. repl must be detached.
func (d *Document) Replace(old, repl *html.Node) error {
	parent := old.Parent
	if parent == nil {
		return ErrDetached
	}
	if repl.Parent != nil || repl.PrevSibling != nil || repl.NextSibling != nil {
		return fmt.Errorf("dom: replacement node is already attached")
	}
	parent.InsertBefore(repl, old)
	parent.RemoveChild(old)
	return nil
}

// Adopt gives dst the attributes and children of src, leaving dst in place
// so its NodeID and position survive. src ends up empty.
func (d *Document) Adopt(dst, src *html.Node) {
	d.AdoptAttrs(dst, src)
	for c := dst.FirstChild; c != nil; c = dst.FirstChild {
		dst.RemoveChild(c)
	}
	for c := src.FirstChild; c != nil; c = src.FirstChild {
		src.RemoveChild(c)
		dst.AppendChild(c)
	}
}

// AdoptAttrs replaces the attributes of dst with a copy of those of src.
func (d *Document) AdoptAttrs(dst, src *html.Node) {
	dst.Attr = append([]html.Attribute(nil), src.Attr...)
}

// IsRoot reports whether n is an html, head or body element.
func IsRoot(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Html, atom.Head, atom.Body:
		return true
	}
	return false
}

// Detach removes n and its subtree from the tree.
func (d *Document) Detach(n *html.Node) error {
	if n.Parent == nil {
		return ErrDetached
	}
	n.Parent.RemoveChild(n)
	return nil
}

// Remove deletes the subtree rooted at the first match of selector.
// It reports false, without error, when nothing matches.
func (d *Document) Remove(selector string) (bool, error) {
	n, err := d.QueryOne(selector)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := d.Detach(n); err != nil {
		return false, nil
	}
	return true, nil
}

// Contains reports whether n is ancestor or n itself.
func Contains(ancestor, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == ancestor {
			return true
		}
	}
	return false
}

// Attached reports whether n is still reachable from the document root.
func (d *Document) Attached(n *html.Node) bool {
	return Contains(d.root, n)
}

// Path returns the element-index path from the document root to n, counting
// only element siblings. It returns nil for a detached node.
func (d *Document) Path(n *html.Node) []int {
	var rev []int
	c := n
	for ; c != nil && c != d.root; c = c.Parent {
		if c.Type != html.ElementNode || c.Parent == nil {
			return nil
		}
		idx := 0
		for s := c.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				idx++
			}
		}
		rev = append(rev, idx)
	}
	if c == nil {
		return nil
	}
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// AtPath follows an element-index path from the root, or returns nil when
// the path leaves the tree.
func (d *Document) AtPath(path []int) *html.Node {
	n := d.root
	for _, idx := range path {
		var next *html.Node
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if i == idx {
				next = c
				break
			}
			i++
		}
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}
