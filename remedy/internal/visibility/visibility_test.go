package visibility

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/violation"
)

const page = `<html><head><title>t</title><meta name="viewport" content="width=device-width"></head><body>
<div id="menu" style="display: none"><a class="m" href="/x"></a></div>
<p class="note">visible</p>
<p class="ghost" hidden>gone</p>
<span class="tiny" style="font-size:0">x</span>
<span class="faded" style="opacity: 0.5">x</span>
<input type="hidden" name="csrf">
<script>var x = 1;</script>
<div style="position:absolute; left:-9999px"><img class="off" src="/a.png"></div>
</body></html>`

func testDoc(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestStaticRenderer(t *testing.T) {
	doc := testDoc(t)
	r := NewStatic(doc)
	ctx := context.Background()

	tests := map[string]bool{
		"p.note":              true,
		"span.faded":          true,
		"#menu a.m":           false,
		"p.ghost":             false,
		"span.tiny":           false,
		`input[name="csrf"]`:  false,
		"img.off":             false,
		"title":               true,
		`meta[name=viewport]`: true,
		"script":              false,
	}
	for sel, want := range tests {
		el, err := r.FindBySelector(ctx, sel)
		if err != nil {
			t.Fatalf("find %s: %v", sel, err)
		}
		got, err := r.IsVisible(ctx, el)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("IsVisible(%s) = %v, want %v", sel, got, want)
		}
	}

	if _, err := r.FindBySelector(ctx, "#absent"); !errors.Is(err, dom.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func item(id, sel string) violation.Item {
	return violation.Item{ViolationID: id, Node: violation.Node{Selector: sel}}
}

func TestFilter_Apply(t *testing.T) {
	doc := testDoc(t)
	f := &Filter{Renderer: NewStatic(doc)}

	items := []violation.Item{
		item("link-name", "#menu a.m"),
		item("color-contrast", "p.note"),
		item("region", "#menu"),
		item("color-contrast", "p.note"),
		item("image-alt", "img.missing"),
	}
	eligible, records, err := f.Apply(context.Background(), doc, items)
	if err != nil {
		t.Fatal(err)
	}

	if len(eligible) != 2 || eligible[0].Node.Selector != "p.note" {
		t.Fatalf("eligible: %+v", eligible)
	}
	if len(records) != 3 {
		t.Fatalf("records: got %d, want 3: %+v", len(records), records)
	}
	for _, r := range records {
		if r.Strategy != violation.StrategyRemoved {
			t.Errorf("strategy: %s", r.Strategy)
		}
	}

	// The link went first; its container removal still succeeds, the
	// missing image is ignored.
	if !records[0].Accepted || records[0].Reason != violation.ReasonNotVisible {
		t.Errorf("link record: %+v", records[0])
	}
	if !records[1].Accepted {
		t.Errorf("menu record: %+v", records[1])
	}
	if records[2].Accepted || records[2].Reason != violation.ReasonLookupFailed {
		t.Errorf("missing record: %+v", records[2])
	}

	out := doc.String()
	if strings.Contains(out, `id="menu"`) {
		t.Error("hidden menu still rendered")
	}
	if !strings.Contains(out, "visible") {
		t.Error("visible paragraph removed")
	}
}

type countingRenderer struct {
	calls map[string]int
	Renderer
}

func (c *countingRenderer) FindBySelector(ctx context.Context, sel string) (Element, error) {
	c.calls[sel]++
	return c.Renderer.FindBySelector(ctx, sel)
}

func TestFilter_QueriesEachSelectorOnce(t *testing.T) {
	doc := testDoc(t)
	r := &countingRenderer{calls: map[string]int{}, Renderer: NewStatic(doc)}
	f := &Filter{Renderer: r}

	items := []violation.Item{item("a", "p.note"), item("b", "p.note"), item("c", "p.note")}
	if _, _, err := f.Apply(context.Background(), doc, items); err != nil {
		t.Fatal(err)
	}
	if r.calls["p.note"] != 1 {
		t.Errorf("queried %d times", r.calls["p.note"])
	}
}

func TestFilter_CancelledRemovesNothing(t *testing.T) {
	doc := testDoc(t)
	before := doc.String()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &Filter{Renderer: NewStatic(doc)}
	items := []violation.Item{item("x", "#menu")}
	got, records, err := f.Apply(ctx, doc, items)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(got) != 1 || records != nil {
		t.Errorf("partial result: %v %v", got, records)
	}
	if doc.String() != before {
		t.Error("document changed after cancellation")
	}
}

func TestFilter_OneRecordPerViolation(t *testing.T) {
	doc := testDoc(t)
	f := &Filter{Renderer: NewStatic(doc)}

	items := []violation.Item{
		item("color-contrast", "#menu a.m"),
		item("link-name", "#menu a.m"),
		item("html-has-lang", "html"),
		item("meta-viewport", `meta[name="viewport"]`),
	}
	eligible, records, err := f.Apply(context.Background(), doc, items)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records: %+v", records)
	}
	for i, id := range []string{"color-contrast", "link-name"} {
		r := records[i]
		if r.ViolationID != id || r.Selector != "#menu a.m" || !r.Accepted || r.Reason != violation.ReasonNotVisible {
			t.Errorf("record %d: %+v", i, r)
		}
	}
	if len(eligible) != 2 || eligible[0].ViolationID != "html-has-lang" || eligible[1].ViolationID != "meta-viewport" {
		t.Errorf("eligible: %+v", eligible)
	}
	if !strings.Contains(doc.String(), `name="viewport"`) {
		t.Error("viewport meta removed")
	}
}
