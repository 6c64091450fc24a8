// CLAUDE:SUMMARY CSS selector resolution and attribute/text helpers over the working document.
package dom

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Query returns every element matching selector, in document order.
// Selectors come from an external detector, so they are compiled on each
// call rather than cached: the tree may have changed since the last lookup.
func (d *Document) Query(selector string) ([]*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	return sel.MatchAll(d.root), nil
}

// QueryOne returns the first element matching selector or ErrNotFound.
func (d *Document) QueryOne(selector string) (*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	n := sel.MatchFirst(d.root)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return n, nil
}

// QueryWithin returns every element under root (root included) matching selector.
func QueryWithin(root *html.Node, selector string) ([]*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	return sel.MatchAll(root), nil
}

func compile(selector string) (cascadia.Selector, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("dom: empty selector")
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("dom: invalid selector %q: %w", selector, err)
	}
	return sel, nil
}

// Attr returns the value of an attribute on a node.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr checks if a node has a specific attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets key=val, replacing an existing value in place so attribute
// order is preserved.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	for _, cl := range Classes(n) {
		if cl == c {
			return true
		}
	}
	return false
}

// IsElement reports whether n is an element with the given tag.
func IsElement(n *html.Node, tag atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == tag
}

// Closest returns the nearest ancestor of n (n excluded) satisfying pred.
func Closest(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if pred(p) {
			return p
		}
	}
	return nil
}

// FindFirst returns the first node under root (root included) satisfying pred.
func FindFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := FindFirst(c, pred); n != nil {
			return n
		}
	}
	return nil
}

// FindAll returns every node under root (root included) satisfying pred.
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// Text extracts the visible text of a subtree, whitespace-collapsed.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

var runtimeAttrRe = regexp.MustCompile(`\[(?:attr=")?_ng(?:content|host)-[^\]]*\]`)

// Resolve locates the element a detector selector points at. Selectors that
// carry framework runtime attributes (_ngcontent-*, _nghost-*) are retried
// with those attributes stripped, since the served markup may not have them.
func (d *Document) Resolve(selector string) (*html.Node, error) {
	n, err := d.QueryOne(selector)
	if err == nil {
		return n, nil
	}
	stripped := strings.Join(strings.Fields(runtimeAttrRe.ReplaceAllString(selector, "")), " ")
	if stripped == "" || stripped == strings.TrimSpace(selector) {
		return nil, err
	}
	if m, err2 := d.QueryOne(stripped); err2 == nil {
		return m, nil
	}
	return nil, err
}

// Selector returns a selector matching n alone in the current tree: "#id"
// when n carries a plain id no other element shares, otherwise a child
// chain of :nth-child steps from the top element. It returns "" when n is
// not an attached element.
func (d *Document) Selector(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode || !d.Attached(n) {
		return ""
	}
	if id := Attr(n, "id"); plainIdent(id) {
		if m, err := d.Query("#" + id); err == nil && len(m) == 1 {
			return "#" + id
		}
	}
	var steps []string
	for c := n; c != nil && c.Type == html.ElementNode; c = c.Parent {
		if c.Parent == nil || c.Parent.Type != html.ElementNode {
			steps = append(steps, c.Data)
			break
		}
		idx := 1
		for s := c.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				idx++
			}
		}
		steps = append(steps, fmt.Sprintf("%s:nth-child(%d)", c.Data, idx))
	}
	slices.Reverse(steps)
	return strings.Join(steps, " > ")
}

// plainIdent reports whether id can follow '#' in a selector unescaped.
func plainIdent(id string) bool {
	if id == "" || !unicode.IsLetter(rune(id[0])) {
		return false
	}
	for _, r := range id {
		if !(r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_')) {
			return false
		}
	}
	return true
}
