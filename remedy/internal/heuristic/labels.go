package heuristic

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var labelsYAML []byte

// ErrUnknownLocale is returned for a locale missing from the label table.
var ErrUnknownLocale = errors.New("heuristic: unknown locale")

// DefaultLocale is used when none is configured.
const DefaultLocale = "en"

// Labels is the label set of one locale.
type Labels struct {
	PreviousSlide string       `yaml:"previous_slide"`
	NextSlide     string       `yaml:"next_slide"`
	GoToSlide     string       `yaml:"go_to_slide"`
	Button        string       `yaml:"button"`
	Link          string       `yaml:"link"`
	NumberedLink  string       `yaml:"numbered_link"`
	LinkTo        string       `yaml:"link_to"`
	InternalLink  string       `yaml:"internal_link"`
	MailTo        string       `yaml:"mail_to"`
	Call          string       `yaml:"call"`
	ButtonClasses []ClassLabel `yaml:"button_classes"`
	LinkClasses   []ClassLabel `yaml:"link_classes"`
	IconClasses   []ClassLabel `yaml:"icon_classes"`
}

// ClassLabel maps class keywords to a label.
type ClassLabel struct {
	Keys  []string `yaml:"keys"`
	Label string   `yaml:"label"`
}

var loadTable = sync.OnceValues(func() (map[string]*Labels, error) {
	var table map[string]*Labels
	if err := yaml.Unmarshal(labelsYAML, &table); err != nil {
		return nil, fmt.Errorf("heuristic: labels: %w", err)
	}
	return table, nil
})

// LoadLabels returns the labels for locale ("" means DefaultLocale).
func LoadLabels(locale string) (*Labels, error) {
	table, err := loadTable()
	if err != nil {
		return nil, err
	}
	if locale == "" {
		locale = DefaultLocale
	}
	l, ok := table[strings.ToLower(locale)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocale, locale)
	}
	return l, nil
}

// Locales lists the available locales, sorted.
func Locales() []string {
	table, err := loadTable()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// match returns the label of the first entry with a key matching one of
// classes.
func match(table []ClassLabel, classes []string) (string, bool) {
	for _, e := range table {
		for _, k := range e.Keys {
			for _, c := range classes {
				if classMatches(strings.ToLower(c), k) {
					return e.Label, true
				}
			}
		}
	}
	return "", false
}

// classMatches reports whether key is the whole token or a dash-delimited
// run of segments inside it.
func classMatches(token, key string) bool {
	if token == key {
		return true
	}
	return strings.HasPrefix(token, key+"-") ||
		strings.HasSuffix(token, "-"+key) ||
		strings.Contains(token, "-"+key+"-")
}
