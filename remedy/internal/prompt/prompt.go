// CLAUDE:SUMMARY Builds system instructions and user payloads for fragment, contrast and whole-document correction requests.
package prompt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hazyhaar/a11yfix/violation"
)

// System instructions. The payload carries everything specific to the request.
const (
	InstructionFragment = "You are a web accessibility expert. Fix ALL the accessibility errors " +
		"described while keeping the layout and responsive design unchanged. Fixes should be " +
		"visually invisible (aria-label, roles, alt text). Do not add HTML comments or attributes " +
		"that reveal a fix was made."

	InstructionContrast = "You are an accessibility expert. Fix the colour contrast by setting the " +
		"text colour with a style attribute (color: %s). If child elements contain text, apply " +
		"the colour to them too. Do not change backgrounds, sizes or positions and do not add " +
		"other attributes."

	InstructionBatch = "You are a web accessibility expert. You receive a complete HTML document " +
		"and a list of elements that fail one accessibility rule. Fix every listed element in " +
		"place and leave everything else byte for byte as it is. Return the COMPLETE document " +
		"from <!DOCTYPE> or <html> to </html>, without explanations."
)

// FragmentRequest describes one element to correct in isolation.
type FragmentRequest struct {
	ViolationID    string
	Description    string
	HelpURL        string
	FailureSummary string
	Fragment       string
	// Images maps image references found in the fragment to their cached
	// descriptions.
	Images map[string]string
	// Contrast is set for colour-contrast rules.
	Contrast *violation.ContrastView
	// ApplyToChildren asks for the recommended colour on descendant text too.
	ApplyToChildren bool
}

// Fragment returns the instruction and payload of a fragment request.
func Fragment(r FragmentRequest) (instruction, payload string) {
	if r.Contrast != nil {
		return contrast(r)
	}

	var b strings.Builder
	b.WriteString("Fix THIS accessibility error in the following HTML fragment.\n\n")
	fmt.Fprintf(&b, "VIOLATION: %s (%s)\n", r.Description, r.ViolationID)
	if r.FailureSummary != "" {
		fmt.Fprintf(&b, "DETAIL: %s\n", r.FailureSummary)
	}
	if r.HelpURL != "" {
		fmt.Fprintf(&b, "More info: %s\n", r.HelpURL)
	}
	writeImages(&b, r.Images)

	b.WriteString("\nQUICK RULES (by error type):\n")
	b.WriteString("- button-name / link-name: add visible text or aria-label=\"...\".\n")
	b.WriteString("- image-alt / role-img-alt: add alt=\"...\" or aria-label=\"...\".\n")
	b.WriteString("- aria-*: add or fix aria attributes (aria-label, aria-labelledby, role).\n")
	b.WriteString("- focus / keyboard: make the element focusable and keyboard operable.\n")

	writeFragment(&b, r.Fragment)
	b.WriteString("\nReturn ONLY the corrected HTML fragment, with no comments or explanations.\n")
	return InstructionFragment, b.String()
}

func contrast(r FragmentRequest) (string, string) {
	c := r.Contrast
	fg, achieved := c.Recommended()
	expected := c.ExpectedRatio
	if expected == "" {
		expected = fmt.Sprintf("%.1f:1", violation.ParseRatio(""))
	}

	var b strings.Builder
	b.WriteString("Fix THIS colour contrast error in the following HTML fragment.\n\n")
	fmt.Fprintf(&b, "VIOLATION: %s (%s)\n", r.Description, r.ViolationID)
	if r.FailureSummary != "" {
		fmt.Fprintf(&b, "DETAIL: %s\n", r.FailureSummary)
	}
	b.WriteString("\nCONTRAST DATA:\n")
	fmt.Fprintf(&b, "- Background colour: %s\n", c.BackgroundColor)
	fmt.Fprintf(&b, "- Current text colour: %s\n", c.ForegroundColor)
	if c.ContrastRatio > 0 {
		fmt.Fprintf(&b, "- Current contrast ratio: %.2f:1\n", c.ContrastRatio)
	}
	fmt.Fprintf(&b, "- Required contrast ratio: %s\n", expected)
	if c.FontSize != "" {
		fmt.Fprintf(&b, "- Font: %s, weight %s\n", c.FontSize, c.FontWeight)
	}
	fmt.Fprintf(&b, "\nRECOMMENDED COLOUR: %s", fg)
	if achieved > 0 {
		fmt.Fprintf(&b, " (%.2f:1 against %s)", achieved, c.BackgroundColor)
	}
	fmt.Fprintf(&b, "\nUse EXACTLY %s so the required ratio is met.\n", fg)

	if r.ApplyToChildren {
		b.WriteString("\nCHILD ELEMENTS:\n")
		fmt.Fprintf(&b, "- Apply color: %s to the main element AND to every child element containing visible text.\n", fg)
		fmt.Fprintf(&b, "- Example: <div><p>Text</p></div> becomes <div style=\"color: %[1]s\"><p style=\"color: %[1]s\">Text</p></div>\n", fg)
	}

	b.WriteString("\nQUICK RULES:\n")
	fmt.Fprintf(&b, "- Change ONLY the text colour: style=\"color: %s\".\n", fg)
	b.WriteString("- Keep backgrounds and layout as they are.\n")

	writeFragment(&b, r.Fragment)
	b.WriteString("\nReturn ONLY the corrected HTML fragment, without explanations.\n")
	return fmt.Sprintf(InstructionContrast, fg), b.String()
}

// BatchRequest describes one chunk of nodes of a single rule.
type BatchRequest struct {
	ViolationID string
	Description string
	HelpURL     string
	Nodes       []violation.Node
	Document    string
	Images      map[string]string
	// Contrast holds the colour view of the chunk's nodes, when available.
	Contrast []violation.ContrastView
}

// Batch returns the instruction and payload of a whole-document request.
func Batch(r BatchRequest) (instruction, payload string) {
	var b strings.Builder
	fmt.Fprintf(&b, "RULE: %s\n", r.ViolationID)
	fmt.Fprintf(&b, "DESCRIPTION: %s\n", r.Description)
	if r.HelpURL != "" {
		fmt.Fprintf(&b, "More info: %s\n", r.HelpURL)
	}

	recommended := make(map[string]string, len(r.Contrast))
	for _, cv := range r.Contrast {
		fg, _ := cv.Recommended()
		recommended[cv.Node.Selector] = fg
	}

	fmt.Fprintf(&b, "\nELEMENTS TO FIX (%d):\n", len(r.Nodes))
	for i, n := range r.Nodes {
		fmt.Fprintf(&b, "%d. selector: %s\n", i+1, n.Selector)
		if n.HTML != "" {
			fmt.Fprintf(&b, "   html: %s\n", oneLine(n.HTML))
		}
		if n.FailureSummary != "" {
			fmt.Fprintf(&b, "   detail: %s\n", oneLine(n.FailureSummary))
		}
		if fg, ok := recommended[n.Selector]; ok {
			fmt.Fprintf(&b, "   use text colour: %s\n", fg)
		}
	}
	writeImages(&b, r.Images)

	b.WriteString("\nCURRENT DOCUMENT:\n```html\n")
	b.WriteString(r.Document)
	b.WriteString("\n```\n")
	b.WriteString("\nReturn the COMPLETE corrected document. Do not truncate it.\n")
	return InstructionBatch, b.String()
}

func writeImages(b *strings.Builder, images map[string]string) {
	if len(images) == 0 {
		return
	}
	refs := make([]string, 0, len(images))
	for ref := range images {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	b.WriteString("\nAvailable image descriptions:\n")
	for _, ref := range refs {
		fmt.Fprintf(b, "  - %s: %s\n", ref, images[ref])
	}
	b.WriteString("Use these descriptions for alt and title attributes. KEEP these descriptions exact.\n")
}

func writeFragment(b *strings.Builder, fragment string) {
	b.WriteString("\nFRAGMENT TO FIX:\n```html\n")
	b.WriteString(fragment)
	b.WriteString("\n```\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
