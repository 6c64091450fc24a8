package describe

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/a11yfix/dom"
)

// DefaultContextRunes bounds the page summary handed to a generator.
const DefaultContextRunes = 2000

// PageContext renders the body of doc as Markdown, truncated to maxRunes
// (DefaultContextRunes when maxRunes <= 0). Links are made absolute against
// pageURL when it is set.
func PageContext(doc *dom.Document, pageURL string, maxRunes int) (string, error) {
	if maxRunes <= 0 {
		maxRunes = DefaultContextRunes
	}
	body := doc.Body()
	if body == nil {
		return "", nil
	}
	markup, err := dom.Outer(body)
	if err != nil {
		return "", err
	}
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	var opts []converter.ConvertOptionFunc
	if pageURL != "" {
		opts = append(opts, converter.WithDomain(pageURL))
	}
	md, err := conv.ConvertString(markup, opts...)
	if err != nil {
		return "", fmt.Errorf("describe: page context: %w", err)
	}
	md = strings.TrimSpace(md)
	if utf8.RuneCountInString(md) > maxRunes {
		md = string([]rune(md)[:maxRunes])
	}
	return md, nil
}
