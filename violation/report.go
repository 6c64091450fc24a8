package violation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMalformedReport is returned when the report is not JSON at all.
var ErrMalformedReport = errors.New("violation: malformed report")

// Report is a decoded violation report.
type Report struct {
	URL        string      `json:"url,omitempty"`
	Violations []Violation `json:"violations"`
}

// Warning describes an entry or node that was dropped or defaulted while
// decoding. Index is the position of the entry in the raw list.
type Warning struct {
	Index       int    `json:"index"`
	ViolationID string `json:"violation_id,omitempty"`
	Message     string `json:"message"`
}

func (w Warning) String() string {
	if w.ViolationID != "" {
		return fmt.Sprintf("entry %d (%s): %s", w.Index, w.ViolationID, w.Message)
	}
	return fmt.Sprintf("entry %d: %s", w.Index, w.Message)
}

type rawReport struct {
	URL        string            `json:"url"`
	Violations []json.RawMessage `json:"violations"`
}

type rawViolation struct {
	ID          string    `json:"id"`
	Impact      *string   `json:"impact"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	HelpURL     string    `json:"helpUrl"`
	Nodes       []rawNode `json:"nodes"`
}

type rawNode struct {
	Target         json.RawMessage `json:"target"`
	Selector       string          `json:"selector"`
	HTML           string          `json:"html"`
	Resource       string          `json:"resource"`
	FailureSummary string          `json:"failureSummary"`
	Any            []rawCheck      `json:"any"`
}

type rawCheck struct {
	Data json.RawMessage `json:"data"`
}

type rawContrast struct {
	FgColor               string  `json:"fgColor"`
	BgColor               string  `json:"bgColor"`
	ContrastRatio         float64 `json:"contrastRatio"`
	ExpectedContrastRatio string  `json:"expectedContrastRatio"`
	FontSize              string  `json:"fontSize"`
	FontWeight            string  `json:"fontWeight"`
}

// ParseReport decodes an axe-style report. The top level may be an object
// with a "violations" array or a bare array of violations. Each entry is
// decoded on its own: a broken entry is dropped with a Warning and the rest
// of the report is kept.
func ParseReport(data []byte) (*Report, []Warning, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrMalformedReport)
	}

	var raw rawReport
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw.Violations); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	rep := &Report{URL: raw.URL}
	var warns []Warning
	for i, entry := range raw.Violations {
		v, ws, ok := decodeViolation(i, entry)
		warns = append(warns, ws...)
		if ok {
			rep.Violations = append(rep.Violations, v)
		}
	}
	return rep, warns, nil
}

func decodeViolation(idx int, entry json.RawMessage) (Violation, []Warning, bool) {
	var rv rawViolation
	if err := json.Unmarshal(entry, &rv); err != nil {
		return Violation{}, []Warning{{Index: idx, Message: "decode: " + err.Error()}}, false
	}
	id := strings.TrimSpace(rv.ID)
	if id == "" {
		return Violation{}, []Warning{{Index: idx, Message: "missing id"}}, false
	}

	var warns []Warning
	warn := func(format string, args ...any) {
		warns = append(warns, Warning{Index: idx, ViolationID: id, Message: fmt.Sprintf(format, args...)})
	}

	impact := ImpactModerate
	if rv.Impact != nil && *rv.Impact != "" {
		var ok bool
		if impact, ok = ParseImpact(*rv.Impact); !ok {
			warn("unknown impact %q, using %s", *rv.Impact, ImpactModerate)
		}
	}

	desc := rv.Help
	if desc == "" {
		desc = rv.Description
	}

	v := Violation{ID: id, Description: desc, HelpURL: rv.HelpURL, Impact: impact}
	for j, rn := range rv.Nodes {
		sel, err := selectorOf(rn)
		if err != nil {
			warn("node %d: %v", j, err)
			continue
		}
		n := Node{
			Selector:       sel,
			HTML:           rn.HTML,
			Target:         rn.Resource,
			FailureSummary: rn.FailureSummary,
		}
		if n.Target == "" {
			n.Target = ResourceOf(rn.HTML)
		}
		if len(rn.Any) > 0 && len(rn.Any[0].Data) > 0 {
			var c rawContrast
			// Non-contrast checks carry other shapes of data; ignore them.
			if json.Unmarshal(rn.Any[0].Data, &c) == nil && (c.FgColor != "" || c.BgColor != "") {
				n.Contrast = &ContrastData{
					ForegroundColor: c.FgColor,
					BackgroundColor: c.BgColor,
					ContrastRatio:   c.ContrastRatio,
					ExpectedRatio:   c.ExpectedContrastRatio,
					FontSize:        c.FontSize,
					FontWeight:      c.FontWeight,
				}
			}
		}
		v.Nodes = append(v.Nodes, n)
	}
	if len(v.Nodes) == 0 {
		warn("no usable nodes, entry dropped")
		return Violation{}, warns, false
	}
	return v, warns, true
}

// selectorOf returns the node selector: "target" as a string or the first
// element of a string array, falling back to an explicit "selector" field.
func selectorOf(rn rawNode) (string, error) {
	if len(rn.Target) > 0 && string(rn.Target) != "null" {
		var s string
		if err := json.Unmarshal(rn.Target, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s, nil
			}
		} else {
			var arr []json.RawMessage
			if err := json.Unmarshal(rn.Target, &arr); err != nil {
				return "", fmt.Errorf("target is neither string nor array")
			}
			// Shadow DOM targets are nested arrays; only plain strings address the light DOM.
			if len(arr) > 0 && json.Unmarshal(arr[0], &s) == nil {
				if s = strings.TrimSpace(s); s != "" {
					return s, nil
				}
			}
		}
	}
	if s := strings.TrimSpace(rn.Selector); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("missing selector")
}

// ResourceOf returns the resource path referenced by the first element of an
// HTML snapshot: src for media and scripts, href for links and anchors.
func ResourceOf(snippet string) string {
	if strings.TrimSpace(snippet) == "" {
		return ""
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(snippet), ctx)
	if err != nil {
		return ""
	}
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		key := "src"
		switch n.DataAtom {
		case atom.A, atom.Link, atom.Area:
			key = "href"
		case atom.Object:
			key = "data"
		}
		for _, a := range n.Attr {
			if a.Key == key {
				return strings.TrimSpace(a.Val)
			}
		}
		return ""
	}
	return ""
}
