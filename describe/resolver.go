// CLAUDE:SUMMARY Resolves image descriptions: cache lookup over candidate keys, single generation per miss, sanitize, store before use.
package describe

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/a11yfix/pathnorm"
)

// ErrSkipped is returned by Resolve for references on a skipped domain.
var ErrSkipped = errors.New("describe: reference on a skipped domain")

// Generator produces a description for an image. pageContext is a short
// Markdown rendering of the surrounding page, possibly empty.
type Generator interface {
	Describe(ctx context.Context, imageURL, pageContext string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, imageURL, pageContext string) (string, error)

func (f GeneratorFunc) Describe(ctx context.Context, imageURL, pageContext string) (string, error) {
	return f(ctx, imageURL, pageContext)
}

// Outcome labels reported to an observer.
const (
	OutcomeHit       = "hit"
	OutcomeMiss      = "miss"
	OutcomeGenerated = "generated"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// Resolver looks descriptions up in a Cache and, on a miss, generates one.
type Resolver struct {
	cache       Cache
	gen         Generator
	base        string
	skip        []string
	pageContext string
	observe     func(outcome string)
	logger      *slog.Logger
	policy      *bluemonday.Policy
	flight      singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGenerator enables generation on cache misses.
func WithGenerator(g Generator) Option { return func(r *Resolver) { r.gen = g } }

// WithBaseURL sets the page URL relative references are resolved against.
func WithBaseURL(base string) Option { return func(r *Resolver) { r.base = base } }

// WithSkipDomains disables generation for images hosted on these domains.
func WithSkipDomains(domains ...string) Option {
	return func(r *Resolver) { r.skip = append(r.skip, domains...) }
}

// WithPageContext sets the page summary passed to the generator.
func WithPageContext(md string) Option { return func(r *Resolver) { r.pageContext = md } }

// WithObserver registers a callback invoked with an Outcome label.
func WithObserver(fn func(outcome string)) Option { return func(r *Resolver) { r.observe = fn } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Resolver) { r.logger = l } }

// NewResolver creates a Resolver over cache.
func NewResolver(cache Cache, opts ...Option) *Resolver {
	r := &Resolver{
		cache:  cache,
		logger: slog.Default(),
		policy: bluemonday.StrictPolicy(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Keys returns the cache keys tried for ref, canonical key first: the
// absolute form (when a base URL is set), the raw reference, and both
// without query string and fragment.
func (r *Resolver) Keys(ref string) []string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	var keys []string
	add := func(k string) {
		if k == "" {
			return
		}
		for _, e := range keys {
			if e == k {
				return
			}
		}
		keys = append(keys, k)
	}
	if r.base != "" {
		if abs, err := pathnorm.Absolute(r.base, ref); err == nil {
			add(abs)
		}
	}
	add(ref)
	for _, k := range append([]string(nil), keys...) {
		add(stripQuery(k))
	}
	return keys
}

func stripQuery(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Lookup returns a cached description for ref without generating.
func (r *Resolver) Lookup(ctx context.Context, ref string) (string, bool, error) {
	for _, k := range r.Keys(ref) {
		d, ok, err := r.cache.Lookup(ctx, k)
		if err != nil {
			return "", false, err
		}
		if ok {
			return d, true, nil
		}
	}
	return "", false, nil
}

// Resolve returns the description for ref. Every candidate key is looked up
// first; on a miss with a generator configured, exactly one generation runs
// per canonical key (concurrent callers share it) and the result is stored
// before it is returned. ok is false on a miss without a generator.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, bool, error) {
	d, ok, err := r.Lookup(ctx, ref)
	if err != nil {
		r.note(OutcomeError)
		return "", false, fmt.Errorf("describe: lookup %s: %w", ref, err)
	}
	if ok {
		r.note(OutcomeHit)
		return d, true, nil
	}
	r.note(OutcomeMiss)
	if r.gen == nil {
		return "", false, nil
	}

	keys := r.Keys(ref)
	if len(keys) == 0 {
		return "", false, nil
	}
	canonical := keys[0]
	if r.skipped(canonical) {
		r.note(OutcomeSkipped)
		return "", false, ErrSkipped
	}

	v, err, _ := r.flight.Do(canonical, func() (any, error) {
		// A concurrent flight may have stored it already.
		if d, ok, err := r.cache.Lookup(ctx, canonical); err == nil && ok {
			return d, nil
		}
		raw, err := r.gen.Describe(ctx, canonical, r.pageContext)
		if err != nil {
			return "", err
		}
		d := r.sanitize(raw)
		if d == "" {
			return "", fmt.Errorf("describe: empty description for %s", canonical)
		}
		if err := r.cache.Store(ctx, canonical, d); err != nil {
			return "", fmt.Errorf("describe: store %s: %w", canonical, err)
		}
		// First write wins: return what the cache holds.
		if stored, ok, err := r.cache.Lookup(ctx, canonical); err == nil && ok {
			d = stored
		}
		r.note(OutcomeGenerated)
		r.logger.Debug("describe: generated", "ref", canonical)
		return d, nil
	})
	if err != nil {
		r.note(OutcomeError)
		return "", false, err
	}
	return v.(string), true, nil
}

// Descriptions returns the cached descriptions of refs, keyed by the
// reference as given. Nothing is generated.
func (r *Resolver) Descriptions(ctx context.Context, refs []string) map[string]string {
	out := make(map[string]string)
	for _, ref := range refs {
		if _, done := out[ref]; done || ref == "" {
			continue
		}
		if d, ok, err := r.Lookup(ctx, ref); err == nil && ok {
			out[ref] = d
		}
	}
	return out
}

func (r *Resolver) skipped(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range r.skip {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return true
		}
	}
	return false
}

// sanitize reduces generated text to a single line of plain text.
func (r *Resolver) sanitize(s string) string {
	s = html.UnescapeString(r.policy.Sanitize(s))
	s = strings.Trim(strings.Join(strings.Fields(s), " "), "\"'`")
	return strings.TrimSpace(s)
}

func (r *Resolver) note(outcome string) {
	if r.observe != nil {
		r.observe(outcome)
	}
}
