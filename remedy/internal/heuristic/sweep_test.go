package heuristic

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/a11yfix/describe"
	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/violation"
)

func TestSweep_UnreportedElements(t *testing.T) {
	cache := describe.NewMap(map[string]string{"/img/logo.png": "Company logo"})
	var generated int
	r := describe.NewResolver(cache, describe.WithGenerator(describe.GeneratorFunc(
		func(context.Context, string, string) (string, error) {
			generated++
			return "Generated", nil
		})))
	f, doc := testFixer(t, Config{Resolver: r})

	skip := func(n *html.Node) bool { return dom.HasClass(n, "flex-box") }
	out := f.Sweep(context.Background(), doc, skip)

	byRule := make(map[string]int)
	for _, rec := range out.Records {
		if !rec.Accepted || rec.Strategy != violation.StrategyHeuristic {
			t.Errorf("record: %+v", rec)
		}
		if m, err := doc.QueryOne(rec.Selector); err != nil || m == nil {
			t.Errorf("record selector %q does not resolve: %v", rec.Selector, err)
		}
		byRule[rec.ViolationID]++
	}
	// One record for the whole dot pager, then the plus and titled buttons.
	if byRule[SweepButtonName] != 3 || byRule[SweepLinkName] != 6 || byRule[SweepImageAlt] != 1 {
		t.Errorf("records per rule: %v", byRule)
	}

	for sel, want := range map[string]string{
		`button[title="Open cart"]`: "Open cart",
		".owl-dot:nth-child(3)":     "Go to slide 3",
		"a.x2":                      "Internal link",
	} {
		if got := label(t, doc, sel, "aria-label"); got != want {
			t.Errorf("%s: %q, want %q", sel, got, want)
		}
	}
	if got := label(t, doc, "img#logo", "alt"); got != "Company logo" {
		t.Errorf("logo alt: %q", got)
	}
	if n, _ := doc.QueryOne("img#hero"); dom.HasAttr(n, "alt") {
		t.Error("hero has no cached description and should stay untouched")
	}
	if generated != 0 {
		t.Errorf("generator called %d times", generated)
	}
	if n, _ := doc.QueryOne(".flex-box"); dom.HasAttr(n, "aria-label") {
		t.Error("skipped button was labelled")
	}
	if n, _ := doc.QueryOne(".owl-prev"); dom.HasAttr(n, "aria-label") {
		t.Error("a button with text was labelled")
	}
	if len(out.Claimed) < len(out.Records) {
		t.Errorf("claimed %d nodes for %d records", len(out.Claimed), len(out.Records))
	}

	again := f.Sweep(context.Background(), doc, skip)
	if len(again.Records) != 0 {
		t.Errorf("second sweep: %+v", again.Records)
	}
}

func TestSweep_NamedElementsUntouched(t *testing.T) {
	f, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	page := `<html><body>
<button aria-labelledby="l1"></button>
<div role="button">Open</div>
<a href="/home"><img src="/h.png" alt="Home"></a>
<a name="anchor"></a>
<img src="/deco.png" alt="">
<img src="/x.png" aria-label="Chart">
</body></html>`
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	before := doc.String()
	out := f.Sweep(context.Background(), doc, nil)
	if len(out.Records) != 0 || doc.String() != before {
		t.Errorf("named elements changed: %+v\n%s", out.Records, doc.String())
	}
}

func TestSweep_Cancelled(t *testing.T) {
	f, doc := testFixer(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := doc.String()
	out := f.Sweep(ctx, doc, nil)
	if len(out.Records) != 0 || doc.String() != before {
		t.Errorf("cancelled sweep touched the document: %+v", out)
	}
}

func TestSweep_LookupError(t *testing.T) {
	f, doc := testFixer(t, Config{Resolver: failingDescriber{}})
	out := f.Sweep(context.Background(), doc, nil)
	for _, rec := range out.Records {
		if rec.ViolationID == SweepImageAlt {
			t.Errorf("image fixed despite lookup error: %+v", rec)
		}
	}
	if n, _ := doc.QueryOne("img#logo"); dom.HasAttr(n, "alt") {
		t.Error("logo got an alt")
	}
}

type failingDescriber struct{}

func (failingDescriber) Lookup(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache offline")
}

func (failingDescriber) Resolve(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache offline")
}
