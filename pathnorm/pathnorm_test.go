package pathnorm

import (
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/a11yfix/dom"
)

const page = `<html><head>
<link rel="stylesheet" href="css/site.css">
<script src="/js/app.js"></script>
</head><body>
<a href="about.html">About</a>
<a href="#top">Top</a>
<a href="mailto:me@example.com">Mail</a>
<a href="tel:+3412345">Call</a>
<a href="https://other.example/x">Other</a>
<a href="//cdn.example/lib.js">CDN</a>
<a href="">Empty</a>
<img src="../img/logo.png">
<img src="data:image/png;base64,AAAA">
<iframe src="embed?id=3"></iframe>
<form action="search"><input name="q"></form>
<video><source src="media/clip.mp4"></video>
<div src="ignored.png"></div>
</body></html>`

func TestNormalize(t *testing.T) {
	d, err := dom.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	n, err := Normalize(d, "https://example.com/site/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("changed: got %d, want 8", n)
	}

	out := d.String()
	for _, want := range []string{
		`href="https://example.com/site/css/site.css"`,
		`src="https://example.com/js/app.js"`,
		`href="https://example.com/site/about.html"`,
		`href="#top"`,
		`href="mailto:me@example.com"`,
		`href="tel:+3412345"`,
		`href="https://other.example/x"`,
		`href="https://cdn.example/lib.js"`,
		`href=""`,
		`src="https://example.com/img/logo.png"`,
		`src="data:image/png;base64,AAAA"`,
		`src="https://example.com/site/embed?id=3"`,
		`action="https://example.com/site/search"`,
		`src="https://example.com/site/media/clip.mp4"`,
		`<div src="ignored.png">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	base := "https://example.com/site/"
	d, _ := dom.ParseString(page)
	if _, err := Normalize(d, base); err != nil {
		t.Fatal(err)
	}
	once := d.String()

	n, err := Normalize(d, base)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second pass changed %d attributes", n)
	}
	if d.String() != once {
		t.Error("second pass altered the document")
	}
}

func TestNormalize_InvalidBase(t *testing.T) {
	d, _ := dom.ParseString(page)
	before := d.String()
	for _, base := range []string{"", "/relative", "ftp://example.com", "https://"} {
		if _, err := Normalize(d, base); !errors.Is(err, ErrInvalidBase) {
			t.Errorf("Normalize(%q): expected ErrInvalidBase, got %v", base, err)
		}
	}
	if d.String() != before {
		t.Error("invalid base must not mutate the document")
	}
}

func TestAbsolute(t *testing.T) {
	got, err := Absolute("https://example.com/a/b.html", "c.png?x=1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/a/c.png?x=1" {
		t.Errorf("got %q", got)
	}
	if got, _ := Absolute("https://example.com/", "data:image/gif;base64,R0"); got != "data:image/gif;base64,R0" {
		t.Errorf("data URI rewritten: %q", got)
	}
}
