package dom

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const page = `<!DOCTYPE html>
<html><head><title>T</title></head>
<body>
<div id="main">
  <button class="owl-prev"></button>
  <div class="owl-dots"><button class="owl-dot"></button><button class="owl-dot"></button></div>
  <img id="logo" src="/img/logo.png">
</div>
<p class="note">Hello <span>world</span></p>
</body></html>`

func testDoc(t *testing.T) *Document {
	t.Helper()
	d, err := ParseString(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestQuery(t *testing.T) {
	d := testDoc(t)

	tests := []struct {
		sel  string
		want int
	}{
		{"img#logo", 1},
		{".owl-dots > .owl-dot", 2},
		{"#main button", 3},
		{".owl-dot:nth-child(2)", 1},
		{"p.note span", 1},
		{"video", 0},
	}
	for _, tt := range tests {
		got, err := d.Query(tt.sel)
		if err != nil {
			t.Fatalf("Query(%q): %v", tt.sel, err)
		}
		if len(got) != tt.want {
			t.Errorf("Query(%q): got %d matches, want %d", tt.sel, len(got), tt.want)
		}
	}
}

func TestQueryOne_NotFound(t *testing.T) {
	d := testDoc(t)
	_, err := d.QueryOne("#missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuery_InvalidSelector(t *testing.T) {
	d := testDoc(t)
	if _, err := d.Query("div[["); err == nil {
		t.Fatal("expected error for invalid selector")
	}
	if _, err := d.Query("   "); err == nil {
		t.Fatal("expected error for empty selector")
	}
}

func TestIDStable(t *testing.T) {
	d := testDoc(t)
	dots, _ := d.QueryOne(".owl-dots")
	id := d.ID(dots)

	// Removing a sibling changes nth-child addressing but not identity.
	if ok, err := d.Remove(".owl-prev"); err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	again, _ := d.QueryOne(".owl-dots")
	if d.ID(again) != id {
		t.Errorf("ID changed after sibling removal: %d != %d", d.ID(again), id)
	}

	img, _ := d.QueryOne("img")
	if d.ID(img) == id {
		t.Error("distinct nodes share an ID")
	}
	if d.Node(id) != dots {
		t.Error("Node does not map the id back")
	}
	if d.Node(9999) != nil {
		t.Error("unassigned id should map to nil")
	}
}

func TestRemove_Missing(t *testing.T) {
	d := testDoc(t)
	ok, err := d.Remove(".nope")
	if err != nil || ok {
		t.Fatalf("expected silent no-op, got ok=%v err=%v", ok, err)
	}
}

func TestReplace(t *testing.T) {
	d := testDoc(t)
	img, _ := d.QueryOne("img#logo")
	nodes, err := ParseFragment(`<img id="logo" src="/img/logo.png" alt="Logo">`, img.Parent)
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("fragment nodes: got %d", len(nodes))
	}
	if err := d.Replace(img, nodes[0]); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := d.QueryOne("img#logo")
	if Attr(got, "alt") != "Logo" {
		t.Errorf("alt: got %q", Attr(got, "alt"))
	}
	if d.Attached(img) {
		t.Error("old node still attached")
	}
}

func TestReplace_Detached(t *testing.T) {
	d := testDoc(t)
	orphan := &html.Node{Type: html.ElementNode, Data: "span"}
	if err := d.Replace(orphan, &html.Node{Type: html.ElementNode, Data: "b"}); !errors.Is(err, ErrDetached) {
		t.Fatalf("expected ErrDetached, got %v", err)
	}
}

func TestSetAttr_PreservesOrder(t *testing.T) {
	d := testDoc(t)
	img, _ := d.QueryOne("img")
	SetAttr(img, "id", "brand")
	SetAttr(img, "alt", "x")
	if img.Attr[0].Key != "id" || img.Attr[0].Val != "brand" {
		t.Errorf("first attr: %+v", img.Attr[0])
	}
	if img.Attr[len(img.Attr)-1].Key != "alt" {
		t.Errorf("alt not appended: %+v", img.Attr)
	}
}

func TestText(t *testing.T) {
	d := testDoc(t)
	p, _ := d.QueryOne("p.note")
	if got := Text(p); got != "Hello world" {
		t.Errorf("Text: got %q", got)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	d := testDoc(t)
	first, err := d.Render()
	if err != nil {
		t.Fatal(err)
	}
	d2, err := ParseString(first)
	if err != nil {
		t.Fatal(err)
	}
	if d2.String() != first {
		t.Error("render is not stable across a parse round-trip")
	}
	if !strings.Contains(first, `<img id="logo" src="/img/logo.png"/>`) {
		t.Errorf("unexpected render: %s", first)
	}
}

func TestResolve_RuntimeAttributes(t *testing.T) {
	d := testDoc(t)
	n, err := d.Resolve(`p.note[_ngcontent-abc-c12]`)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !HasClass(n, "note") {
		t.Errorf("resolved wrong element: %s", n.Data)
	}
	if _, err := d.Resolve("#absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPath_RoundTrip(t *testing.T) {
	d := testDoc(t)
	dots, _ := d.QueryOne(".owl-dots")
	p := d.Path(dots)
	if len(p) == 0 {
		t.Fatal("empty path for attached node")
	}

	// The same markup parsed again yields the same path to the same element.
	other, err := ParseString(d.String())
	if err != nil {
		t.Fatal(err)
	}
	n := other.AtPath(p)
	if n == nil || !HasClass(n, "owl-dots") {
		t.Fatalf("AtPath(%v) = %v", p, n)
	}

	if err := d.Detach(dots); err != nil {
		t.Fatal(err)
	}
	if d.Path(dots) != nil {
		t.Error("detached node should have no path")
	}
	if d.AtPath([]int{0, 9, 9}) != nil {
		t.Error("path outside the tree should yield nil")
	}
}

func TestSelector(t *testing.T) {
	d := testDoc(t)
	dots, err := d.Query(".owl-dot")
	if err != nil {
		t.Fatal(err)
	}
	logo, _ := d.QueryOne("img")
	span, _ := d.QueryOne("span")

	tests := []struct {
		name string
		n    *html.Node
		want string
	}{
		{"unique id", logo, "#logo"},
		{"second dot", dots[1], "html > body:nth-child(2) > div:nth-child(1) > div:nth-child(2) > button:nth-child(2)"},
		{"inline child", span, "html > body:nth-child(2) > p:nth-child(2) > span:nth-child(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Selector(tt.n)
			if got != tt.want {
				t.Fatalf("Selector = %q, want %q", got, tt.want)
			}
			if m, err := d.QueryOne(got); err != nil || m != tt.n {
				t.Errorf("selector %q resolves elsewhere (%v)", got, err)
			}
		})
	}
}

func TestSelector_SharedIDAndDetached(t *testing.T) {
	d, err := ParseString(`<html><body><i id="x"></i><b id="x"></b><u id="2a"></u></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := d.QueryOne("b")
	if got := d.Selector(b); got != "html > body:nth-child(2) > b:nth-child(2)" {
		t.Errorf("shared id: %q", got)
	}
	u, _ := d.QueryOne("u")
	if got := d.Selector(u); got != "html > body:nth-child(2) > u:nth-child(3)" {
		t.Errorf("id starting with a digit: %q", got)
	}
	if err := d.Detach(b); err != nil {
		t.Fatal(err)
	}
	if got := d.Selector(b); got != "" {
		t.Errorf("detached: %q", got)
	}
}
