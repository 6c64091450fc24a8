package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// ErrNoSource is returned by Open when neither a URL nor markup is given.
var ErrNoSource = errors.New("render: nothing to load")

// ErrNotFound is returned by FindBySelector when nothing matches.
var ErrNotFound = errors.New("render: no element matches selector")

// Source says what a Page should display. With only URL the page is
// navigated there. With only HTML the markup is loaded into a blank page.
// With both, the page navigates to URL first so relative stylesheets and
// scripts in HTML resolve against it, then the document is replaced.
type Source struct {
	URL  string
	HTML string
}

// Page is one loaded tab answering selector and visibility queries.
type Page struct {
	page   *rod.Page
	router *rod.HijackRouter
}

// Open creates a stealth tab on the manager's browser and loads src.
func (m *Manager) Open(ctx context.Context, src Source) (*Page, error) {
	if src.URL == "" && src.HTML == "" {
		return nil, ErrNoSource
	}
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("render: browser not started")
	}

	filter, err := newResourceFilter(m.cfg.BlockResources)
	if err != nil {
		return nil, err
	}
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("render: create page: %w", err)
	}
	p := &Page{page: page}
	if len(filter) > 0 {
		p.router = filter.install(page)
	}

	loadCtx, cancel := context.WithTimeout(ctx, m.cfg.LoadTimeout)
	defer cancel()
	if err := p.load(loadCtx, src); err != nil {
		p.Close()
		return nil, err
	}
	m.cfg.Logger.Debug("render: page loaded", "url", src.URL, "markup_bytes", len(src.HTML))
	return p, nil
}

func (p *Page) load(ctx context.Context, src Source) error {
	pg := p.page.Context(ctx)
	target := src.URL
	if target == "" {
		target = "about:blank"
	}
	if err := pg.Navigate(target); err != nil {
		return fmt.Errorf("render: navigate %s: %w", target, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("render: wait load: %w", err)
	}
	if src.HTML == "" {
		return nil
	}
	if err := pg.SetDocumentContent(src.HTML); err != nil {
		return fmt.Errorf("render: set content: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("render: wait load: %w", err)
	}
	return nil
}

// FindBySelector returns the first element matching selector without
// waiting for it to appear. The result is a *rod.Element.
func (p *Page) FindBySelector(ctx context.Context, selector string) (any, error) {
	ok, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("render: query %q: %w", selector, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return el, nil
}

// IsVisible reports whether el, as returned by FindBySelector, is rendered
// with a non-empty box and not hidden by computed style.
func (p *Page) IsVisible(ctx context.Context, el any) (bool, error) {
	e, ok := el.(*rod.Element)
	if !ok || e == nil {
		return false, fmt.Errorf("render: foreign element %T", el)
	}
	v, err := e.Context(ctx).Visible()
	if err != nil {
		return false, fmt.Errorf("render: visible: %w", err)
	}
	return v, nil
}

// Close stops interception and closes the tab.
func (p *Page) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}
