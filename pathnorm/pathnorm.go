// CLAUDE:SUMMARY Rewrites relative resource references (href/src/action) to absolute URLs against a base; idempotent.
// CLAUDE:EXPORTS Normalize, Absolute, ErrInvalidBase
package pathnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/a11yfix/dom"
)

// ErrInvalidBase is returned when the base is not an absolute http(s) URL.
var ErrInvalidBase = errors.New("pathnorm: base must be an absolute http(s) URL")

// pathAttrs maps each element carrying a resource reference to its attribute.
var pathAttrs = map[atom.Atom]string{
	atom.A:      "href",
	atom.Link:   "href",
	atom.Script: "src",
	atom.Img:    "src",
	atom.Source: "src",
	atom.Iframe: "src",
	atom.Form:   "action",
}

// Normalize rewrites every relative reference in doc to an absolute URL
// resolved against base and returns how many attributes changed.
// Values that already carry a scheme (http:, data:, mailto:, tel:, ...),
// fragment-only values and empty values are left as they are, so a second
// call with the same base changes nothing.
func Normalize(doc *dom.Document, base string) (int, error) {
	b, err := parseBase(base)
	if err != nil {
		return 0, err
	}
	changed := 0
	nodes := dom.FindAll(doc.Root(), func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		_, ok := pathAttrs[n.DataAtom]
		return ok
	})
	for _, n := range nodes {
		key := pathAttrs[n.DataAtom]
		for i := range n.Attr {
			if n.Attr[i].Key != key || n.Attr[i].Namespace != "" {
				continue
			}
			abs, ok := resolve(b, n.Attr[i].Val)
			if ok && abs != n.Attr[i].Val {
				n.Attr[i].Val = abs
				changed++
			}
		}
	}
	return changed, nil
}

// Absolute resolves ref against base with the same rules as Normalize.
// It returns ref unchanged when it is already absolute or not a path.
func Absolute(base, ref string) (string, error) {
	b, err := parseBase(base)
	if err != nil {
		return ref, err
	}
	if abs, ok := resolve(b, ref); ok {
		return abs, nil
	}
	return ref, nil
}

func parseBase(base string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBase, base)
	}
	return u, nil
}

func resolve(base *url.URL, raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.HasPrefix(v, "#") {
		return "", false
	}
	ref, err := url.Parse(v)
	if err != nil {
		return "", false
	}
	if ref.Scheme != "" {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
