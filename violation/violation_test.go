package violation

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const sampleReport = `{
  "url": "https://example.com/",
  "violations": [
    {
      "id": "link-name",
      "impact": "serious",
      "help": "Links must have discernible text",
      "description": "Ensures links have discernible text",
      "nodes": [
        {"target": ["a.social"], "html": "<a class=\"social\" href=\"https://twitter.com/x\"></a>"},
        {"target": "a.more", "html": "<a class=\"more\" href=\"/more\"></a>"}
      ]
    },
    {
      "id": "image-alt",
      "impact": "critical",
      "help": "Images must have alternate text",
      "nodes": [
        {"target": ["img#logo"], "html": "<img id=\"logo\" src=\"/img/logo.png\">"}
      ]
    },
    {
      "id": "button-name",
      "impact": "critical",
      "help": "Buttons must have discernible text",
      "nodes": [{"target": [".owl-prev"], "html": "<button class=\"owl-prev\"></button>"}]
    },
    {
      "id": "color-contrast",
      "help": "Elements must meet minimum color contrast ratio thresholds",
      "unknownField": {"x": 1},
      "nodes": [
        {
          "target": ["p.note"],
          "html": "<p class=\"note\">Hi</p>",
          "any": [{"data": {"fgColor": "#777777", "bgColor": "#ffffff", "contrastRatio": 4.47, "expectedContrastRatio": "4.5:1", "fontSize": "12.0pt (16px)", "fontWeight": "normal"}}]
        }
      ]
    },
    {"impact": "minor", "nodes": [{"target": ["x"]}]},
    {"id": "region", "impact": "loud", "nodes": [{"target": ["div.r"]}]},
    {"id": "empty", "nodes": [{"target": []}]},
    "not an object"
  ]
}`

func TestParseReport(t *testing.T) {
	rep, warns, err := ParseReport([]byte(sampleReport))
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if rep.URL != "https://example.com/" {
		t.Errorf("url: got %q", rep.URL)
	}
	if len(rep.Violations) != 5 {
		t.Fatalf("violations: got %d, want 5", len(rep.Violations))
	}

	// missing id, unknown impact, no usable node, non-object entry, plus the empty target node.
	if len(warns) != 5 {
		for _, w := range warns {
			t.Log(w.String())
		}
		t.Fatalf("warnings: got %d, want 5", len(warns))
	}

	link := rep.Violations[0]
	if link.Description != "Links must have discernible text" {
		t.Errorf("description should come from help: %q", link.Description)
	}
	if link.Nodes[0].Selector != "a.social" || link.Nodes[1].Selector != "a.more" {
		t.Errorf("selectors: %+v", link.Nodes)
	}
	if link.Nodes[1].Target != "/more" {
		t.Errorf("link target: got %q", link.Nodes[1].Target)
	}

	img := rep.Violations[1]
	if img.Nodes[0].Target != "/img/logo.png" {
		t.Errorf("image target: got %q", img.Nodes[0].Target)
	}

	cc := rep.Violations[3]
	if cc.Impact != ImpactModerate {
		t.Errorf("missing impact should default to moderate, got %s", cc.Impact)
	}
	if cc.Nodes[0].Contrast == nil || cc.Nodes[0].Contrast.ForegroundColor != "#777777" {
		t.Errorf("contrast data: %+v", cc.Nodes[0].Contrast)
	}

	region := rep.Violations[4]
	if region.Impact != ImpactModerate {
		t.Errorf("unknown impact should default to moderate, got %s", region.Impact)
	}
}

func TestParseReport_BareArray(t *testing.T) {
	rep, warns, err := ParseReport([]byte(`[{"id":"image-alt","nodes":[{"target":"img"}]}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(warns) != 0 || len(rep.Violations) != 1 {
		t.Fatalf("got %d violations, %d warnings", len(rep.Violations), len(warns))
	}
}

func TestParseReport_Malformed(t *testing.T) {
	for _, in := range []string{"", "not json", `{"violations": 3}`} {
		if _, _, err := ParseReport([]byte(in)); !errors.Is(err, ErrMalformedReport) {
			t.Errorf("ParseReport(%q): expected ErrMalformedReport, got %v", in, err)
		}
	}
}

func TestAggregate_Order(t *testing.T) {
	vs := []Violation{
		{ID: "region", Impact: ImpactMinor, Nodes: []Node{{Selector: "div.r"}}},
		{ID: "link-name", Impact: ImpactSerious, Nodes: []Node{{Selector: "a.b"}, {Selector: "a.a"}}},
		{ID: "color-contrast", Impact: ImpactSerious, Nodes: []Node{{Selector: "p"}}},
		{ID: "image-alt", Impact: ImpactCritical, Nodes: []Node{{Selector: "img"}}},
		{ID: "list", Impact: ImpactModerate, Nodes: []Node{{Selector: "ul"}}},
	}
	a := Aggregate(vs)

	wantOrder := []string{"image-alt", "color-contrast", "link-name", "list", "region"}
	if strings.Join(a.Order, ",") != strings.Join(wantOrder, ",") {
		t.Fatalf("order: got %v, want %v", a.Order, wantOrder)
	}

	var got []string
	for _, it := range a.Items {
		got = append(got, it.ViolationID+"|"+it.Node.Selector)
	}
	want := []string{
		"image-alt|img",
		"color-contrast|p",
		"link-name|a.b", // insertion order, not selector order
		"link-name|a.a",
		"list|ul",
		"region|div.r",
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("items:\n got %v\nwant %v", got, want)
	}

	// Same input, same output.
	for range 5 {
		again := Aggregate(vs)
		for i := range again.Items {
			if again.Items[i].Node.Selector != a.Items[i].Node.Selector {
				t.Fatal("aggregation is not deterministic")
			}
		}
	}
}

func TestAggregate_MergeAndDedup(t *testing.T) {
	vs := []Violation{
		{ID: "color-contrast", Impact: ImpactModerate, Description: "first", Nodes: []Node{{Selector: "p.a", HTML: "one"}, {Selector: "p.b"}}},
		{ID: "color-contrast", Impact: ImpactSerious, Description: "second", Nodes: []Node{{Selector: "p.a", HTML: "two"}, {Selector: "p.c"}}},
	}
	a := Aggregate(vs)
	if len(a.Groups) != 1 {
		t.Fatalf("groups: got %d", len(a.Groups))
	}
	g := a.Group("color-contrast")
	if len(g.Nodes) != 3 {
		t.Fatalf("nodes: got %d, want 3", len(g.Nodes))
	}
	if g.Nodes[0].HTML != "one" {
		t.Error("first occurrence should win")
	}
	if g.Impact != ImpactSerious {
		t.Errorf("group impact: got %s, want serious", g.Impact)
	}
	if g.Description != "first" {
		t.Errorf("description: got %q", g.Description)
	}
}

func TestAggregate_Contrast(t *testing.T) {
	a := Aggregate([]Violation{{
		ID: "color-contrast",
		Nodes: []Node{
			{Selector: "p", Contrast: &ContrastData{ForegroundColor: "#777", BackgroundColor: "#fff", ExpectedRatio: "4.5:1"}},
			{Selector: "span"},
		},
	}})
	views := a.Contrast("color-contrast")
	if len(views) != 1 {
		t.Fatalf("views: got %d", len(views))
	}
	if views[0].ForegroundColor != "#777" || views[0].BackgroundColor != "#fff" {
		t.Errorf("view: %+v", views[0])
	}
	if a.Contrast("missing") != nil {
		t.Error("unknown id should yield nil")
	}
}

func TestContrastRatio(t *testing.T) {
	black, _ := ParseHex("#000")
	white, _ := ParseHex("ffffff")
	if r := ContrastRatio(black, white); math.Abs(r-21) > 0.01 {
		t.Errorf("black/white: got %.2f", r)
	}
	if r := ContrastRatio(white, white); r != 1 {
		t.Errorf("white/white: got %.2f", r)
	}
	if _, err := ParseHex("#12"); err == nil {
		t.Error("expected error for short hex")
	}
}

func TestRecommendForeground(t *testing.T) {
	tests := []struct {
		bg, ratio, want string
	}{
		{"#ffffff", "4.5:1", "#000000"},
		{"#000000", "4.5:1", "#FFFFFF"},
		{"not-a-colour", "4.5:1", "#000000"},
	}
	for _, tt := range tests {
		if got := RecommendForeground(tt.bg, tt.ratio); got != tt.want {
			t.Errorf("RecommendForeground(%s): got %s, want %s", tt.bg, got, tt.want)
		}
	}

	view := ContrastView{BackgroundColor: "#336699", ExpectedRatio: "4.5:1"}
	fg, ratio := view.Recommended()
	if ratio < 4.5 && fg != "#000000" && fg != "#FFFFFF" {
		t.Errorf("recommendation %s only reaches %.2f", fg, ratio)
	}
}

func TestIsLargeText(t *testing.T) {
	tests := []struct {
		size, weight string
		want         bool
	}{
		{"24px", "normal", true},
		{"14pt", "bold", true},
		{"14pt", "normal", false},
		{"12.0pt (16px)", "400", false},
		{"", "bold", false},
	}
	for _, tt := range tests {
		if got := IsLargeText(tt.size, tt.weight); got != tt.want {
			t.Errorf("IsLargeText(%q, %q) = %v", tt.size, tt.weight, got)
		}
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		`<img src="/a.png" alt="">`:         "/a.png",
		`<a href="/x">y</a>`:                "/x",
		`<button>ok</button>`:               "",
		`   `:                               "",
		`<input type="image" src="go.gif">`: "go.gif",
	}
	for in, want := range tests {
		if got := ResourceOf(in); got != want {
			t.Errorf("ResourceOf(%q) = %q, want %q", in, got, want)
		}
	}
}
