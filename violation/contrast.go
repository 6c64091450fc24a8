package violation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// WCAG 2.1 relative luminance and contrast constants.
const (
	maxContrastRatio = 21.0
	contrastOffset   = 0.05
	lightBgThreshold = 0.5
	defaultExpected  = 4.5
	largeTextPx      = 18.0
	largeBoldTextPx  = 14.0
	linearThreshold  = 0.03928
	linearDivisor    = 12.92
	gammaExponent    = 2.4
	redCoefficient   = 0.2126
	greenCoefficient = 0.7152
	blueCoefficient  = 0.0722
)

// Candidates tried in order when recommending a foreground colour.
var (
	darkCandidates  = []string{"#000000", "#212121", "#424242", "#000080", "#006400", "#8B0000", "#4A4A4A", "#2C2C2C"}
	lightCandidates = []string{"#FFFFFF", "#F5F5F5", "#E0E0E0", "#FFD700", "#00FFFF", "#FFFF00", "#D3D3D3", "#C0C0C0"}
)

// RGB is an 8-bit colour.
type RGB struct{ R, G, B uint8 }

// ParseHex parses "#rgb" or "#rrggbb" (leading # optional).
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("violation: invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("violation: invalid hex colour %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Hex formats c as "#RRGGBB".
func (c RGB) Hex() string { return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B) }

// Luminance returns the WCAG relative luminance of c in [0, 1].
func (c RGB) Luminance() float64 {
	lin := func(v uint8) float64 {
		f := float64(v) / 255
		if f <= linearThreshold {
			return f / linearDivisor
		}
		return math.Pow((f+0.055)/1.055, gammaExponent)
	}
	return redCoefficient*lin(c.R) + greenCoefficient*lin(c.G) + blueCoefficient*lin(c.B)
}

// ContrastRatio returns the WCAG contrast ratio between a and b, in [1, 21].
func ContrastRatio(a, b RGB) float64 {
	la, lb := a.Luminance(), b.Luminance()
	hi, lo := max(la, lb), min(la, lb)
	if lo == 0 && hi == 0 {
		return 1
	}
	if lo == 0 {
		return maxContrastRatio
	}
	return (hi + contrastOffset) / (lo + contrastOffset)
}

// ParseRatio parses "4.5:1" or "4.5". Empty or invalid input yields 4.5.
func ParseRatio(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), ":1")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return defaultExpected
	}
	return f
}

// RecommendForeground picks a text colour reaching the expected ratio against
// the background bg. It falls back to black or white when no candidate
// qualifies, and to black when bg cannot be parsed.
func RecommendForeground(bg, expected string) string {
	bgc, err := ParseHex(bg)
	if err != nil {
		return "#000000"
	}
	want := ParseRatio(expected)
	light := bgc.Luminance() > lightBgThreshold
	candidates := lightCandidates
	if light {
		candidates = darkCandidates
	}
	for _, c := range candidates {
		fg, _ := ParseHex(c)
		if ContrastRatio(fg, bgc) >= want {
			return c
		}
	}
	if light {
		return "#000000"
	}
	return "#FFFFFF"
}

var fontSizeRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:pt|px)`)

// IsLargeText reports whether the font qualifies for the relaxed 3:1 ratio.
func IsLargeText(fontSize, fontWeight string) bool {
	m := fontSizeRe.FindStringSubmatch(fontSize)
	if m == nil {
		return false
	}
	size, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return false
	}
	if size >= largeTextPx {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(fontWeight)) {
	case "bold", "bolder", "700", "800", "900":
		return size >= largeBoldTextPx
	}
	return false
}

// Recommended returns the suggested foreground colour for this view and the
// ratio it achieves against the background.
func (v ContrastView) Recommended() (string, float64) {
	fg := RecommendForeground(v.BackgroundColor, v.ExpectedRatio)
	a, errA := ParseHex(fg)
	b, errB := ParseHex(v.BackgroundColor)
	if errA != nil || errB != nil {
		return fg, 0
	}
	return fg, ContrastRatio(a, b)
}
