// CLAUDE:SUMMARY Domain types for accessibility violations, offending nodes, groups, work items and fix records.
// Package violation normalises an externally produced accessibility report
// into grouped, deduplicated and deterministically prioritised work.
package violation

import "strings"

// Impact is the severity reported for a violation.
type Impact string

const (
	ImpactCritical Impact = "critical"
	ImpactSerious  Impact = "serious"
	ImpactModerate Impact = "moderate"
	ImpactMinor    Impact = "minor"
)

// ParseImpact maps a raw impact string to an Impact. ok is false for
// unknown values, in which case ImpactModerate is returned.
func ParseImpact(s string) (Impact, bool) {
	switch Impact(strings.ToLower(strings.TrimSpace(s))) {
	case ImpactCritical:
		return ImpactCritical, true
	case ImpactSerious:
		return ImpactSerious, true
	case ImpactModerate:
		return ImpactModerate, true
	case ImpactMinor:
		return ImpactMinor, true
	}
	return ImpactModerate, false
}

// Rank orders impacts: 1 is processed first.
func (i Impact) Rank() int {
	switch i {
	case ImpactCritical:
		return 1
	case ImpactSerious:
		return 2
	case ImpactModerate:
		return 3
	case ImpactMinor:
		return 4
	}
	return 3
}

// Violation is one accessibility rule failure. Immutable once ingested.
type Violation struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	HelpURL     string `json:"help_url,omitempty"`
	Impact      Impact `json:"impact"`
	Nodes       []Node `json:"nodes"`
}

// Node is a single offending element.
type Node struct {
	Selector       string        `json:"selector"`
	HTML           string        `json:"html,omitempty"`
	Target         string        `json:"target,omitempty"` // resource path referenced by the element
	FailureSummary string        `json:"failure_summary,omitempty"`
	Contrast       *ContrastData `json:"contrast,omitempty"`
}

// ContrastData is the colour metadata attached to color-contrast nodes.
type ContrastData struct {
	ForegroundColor string  `json:"fg_color"`
	BackgroundColor string  `json:"bg_color"`
	ContrastRatio   float64 `json:"contrast_ratio,omitempty"`
	ExpectedRatio   string  `json:"expected_ratio,omitempty"`
	FontSize        string  `json:"font_size,omitempty"`
	FontWeight      string  `json:"font_weight,omitempty"`
}

// Group collects every node reported for one violation id.
type Group struct {
	ViolationID string `json:"violation_id"`
	Description string `json:"description"`
	HelpURL     string `json:"help_url,omitempty"`
	Impact      Impact `json:"impact"`
	Nodes       []Node `json:"nodes"`
}

// Item is a single (violation, node) unit of work.
type Item struct {
	ViolationID string `json:"violation_id"`
	Description string `json:"description"`
	HelpURL     string `json:"help_url,omitempty"`
	Impact      Impact `json:"impact"`
	Node        Node   `json:"node"`
}

// ContrastView is the derived colour view of a contrast violation node.
type ContrastView struct {
	Node            Node    `json:"node"`
	ForegroundColor string  `json:"foreground_color"`
	BackgroundColor string  `json:"background_color"`
	ContrastRatio   float64 `json:"contrast_ratio,omitempty"`
	ExpectedRatio   string  `json:"expected_ratio,omitempty"`
	FontSize        string  `json:"font_size,omitempty"`
	FontWeight      string  `json:"font_weight,omitempty"`
}

// IsContrastRule reports whether id names a colour-contrast rule.
func IsContrastRule(id string) bool {
	id = strings.ToLower(id)
	return strings.Contains(id, "color-contrast") ||
		(strings.Contains(id, "color") && strings.Contains(id, "contrast"))
}
