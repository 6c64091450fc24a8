// CLAUDE:SUMMARY Orchestrates one remediation run: aggregate, visibility removal, heuristics, fragment and batch rewrites, path normalization, audit.
// Package remedy turns an accessibility violation report and the page it
// was taken from into corrected markup.
//
// A run is strictly sequential over one working document:
//
//	report -> aggregate -> remove invisible nodes -> heuristics
//	       -> per-fragment rewrites -> chunked whole-document rewrites
//	       -> sweep of unreported unnamed elements -> absolute paths -> render
//
// Every attempt yields a FixRecord, accepted or rejected. Only an input
// document that cannot be parsed, or a final tree that cannot be rendered,
// fails a run.
package remedy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/a11yfix/audit"
	"github.com/hazyhaar/a11yfix/describe"
	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/idgen"
	"github.com/hazyhaar/a11yfix/pathnorm"
	"github.com/hazyhaar/a11yfix/provider"
	"github.com/hazyhaar/a11yfix/remedy/internal/batch"
	"github.com/hazyhaar/a11yfix/remedy/internal/claims"
	"github.com/hazyhaar/a11yfix/remedy/internal/fragment"
	"github.com/hazyhaar/a11yfix/remedy/internal/heuristic"
	"github.com/hazyhaar/a11yfix/remedy/internal/visibility"
	"github.com/hazyhaar/a11yfix/render"
	"github.com/hazyhaar/a11yfix/violation"
)

// ErrInvalidDocument is returned by Run when the input markup cannot be parsed.
var ErrInvalidDocument = errors.New("remedy: invalid document")

// Options carries the collaborators of an Engine. Every field is optional.
type Options struct {
	// Provider proposes corrected markup. Without it nodes left by the
	// heuristics are recorded as rejected.
	Provider provider.Provider
	// Cache holds image descriptions. Default: an in-memory map.
	Cache describe.Cache
	// Generator describes images missing from Cache.
	Generator describe.Generator
	// Renderer answers visibility queries. When nil, Browser is tried,
	// then the static renderer over the parsed document.
	Renderer visibility.Renderer
	Browser  *render.Manager
	// Store records runs, fix records and provider calls.
	Store   *audit.Store
	Metrics *Metrics
	Logger  *slog.Logger
	// NewRunID defaults to idgen.RunID.
	NewRunID idgen.Generator
}

// Engine runs remediations. It is safe for concurrent use; each Run owns
// its working document.
type Engine struct {
	cfg  Config
	opts Options
	log  *slog.Logger
}

// New validates cfg and returns an Engine.
func New(cfg Config, opts Options) (*Engine, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := heuristic.LoadLabels(cfg.Locale); err != nil {
		return nil, fmt.Errorf("remedy: %w", err)
	}
	if opts.Cache == nil {
		opts.Cache = describe.NewMap(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewRunID == nil {
		opts.NewRunID = idgen.RunID
	}
	return &Engine{cfg: cfg, opts: opts, log: opts.Logger}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Cache returns the description cache.
func (e *Engine) Cache() describe.Cache { return e.opts.Cache }

// Store returns the audit store, or nil.
func (e *Engine) Store() *audit.Store { return e.opts.Store }

// Request is one remediation input.
type Request struct {
	// Report is the violation report (axe JSON).
	Report []byte
	// HTML is the page markup the report was taken from.
	HTML string
	// BaseURL overrides the report URL and the configured base.
	BaseURL string
}

// Result is the outcome of a run. On cancellation Run returns the partial
// result together with the context error.
type Result struct {
	RunID    string                `json:"run_id"`
	HTML     string                `json:"html"`
	Document *dom.Document         `json:"-"`
	Records  []violation.FixRecord `json:"records"`
	Warnings []violation.Warning   `json:"warnings,omitempty"`
	Summary  Summary               `json:"summary"`
}

// Tally counts the records of one strategy.
type Tally struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Summary aggregates the records of a run.
type Summary struct {
	Violations int                          `json:"violations"`
	Nodes      int                          `json:"nodes"`
	Accepted   int                          `json:"accepted"`
	Rejected   int                          `json:"rejected"`
	ByStrategy map[violation.Strategy]Tally `json:"by_strategy"`
}

func summarize(agg *violation.Aggregation, recs []violation.FixRecord) Summary {
	s := Summary{
		Violations: len(agg.Order),
		Nodes:      agg.Count(),
		ByStrategy: make(map[violation.Strategy]Tally),
	}
	for _, r := range recs {
		t := s.ByStrategy[r.Strategy]
		if r.Accepted {
			s.Accepted++
			t.Accepted++
		} else {
			s.Rejected++
			t.Rejected++
		}
		s.ByStrategy[r.Strategy] = t
	}
	return s
}

// Run remediates req.HTML against req.Report.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	rep, warnings, err := violation.ParseReport(req.Report)
	if err != nil {
		return nil, fmt.Errorf("remedy: %w", err)
	}
	doc, err := dom.ParseString(req.HTML)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	base := req.BaseURL
	if base == "" {
		base = rep.URL
	}
	if base == "" {
		base = e.cfg.BaseURL
	}

	runID := e.opts.NewRunID()
	r := &run{
		e:      e,
		id:     runID,
		base:   base,
		markup: req.HTML,
		doc:    doc,
		claims: claims.New(doc),
		agg:    violation.Aggregate(rep.Violations),
		log:    e.log.With("run_id", runID),
	}
	for _, w := range warnings {
		r.log.Warn("remedy: report entry dropped", "warning", w.String())
	}
	r.begin(ctx)

	runErr := r.execute(ctx)

	out, err := r.doc.Render()
	if err != nil {
		r.finish(ctx, audit.StatusFailed, err)
		return nil, fmt.Errorf("remedy: render: %w", err)
	}

	status := audit.StatusDone
	if runErr != nil {
		status = audit.StatusCancelled
	}
	r.finish(ctx, status, runErr)

	res := &Result{
		RunID:    runID,
		HTML:     out,
		Document: r.doc,
		Records:  r.records,
		Warnings: warnings,
		Summary:  summarize(r.agg, r.records),
	}
	r.log.Info("remedy: run finished",
		"status", status,
		"violations", res.Summary.Violations,
		"accepted", res.Summary.Accepted,
		"rejected", res.Summary.Rejected)
	return res, runErr
}

// run is the state of one Run.
type run struct {
	e      *Engine
	id     string
	base   string
	markup string

	doc      *dom.Document
	claims   *claims.Set
	agg      *violation.Aggregation
	resolver *describe.Resolver
	provider provider.Provider
	fixer    *heuristic.Fixer
	records  []violation.FixRecord
	log      *slog.Logger
}

// execute runs the stages in order. It only fails on cancellation.
func (r *run) execute(ctx context.Context) error {
	r.resolver = r.newResolver()
	r.provider = r.newProvider()

	eligible, err := r.filter(ctx)
	if err != nil {
		return err
	}
	fragItems, batchNodes, err := r.heuristics(ctx, eligible)
	if err != nil {
		return err
	}
	if err := r.fragments(ctx, fragItems); err != nil {
		return err
	}
	if err := r.batches(ctx, batchNodes); err != nil {
		return err
	}
	if err := r.sweep(ctx); err != nil {
		return err
	}
	r.normalize()
	return nil
}

func (r *run) add(recs []violation.FixRecord) {
	r.records = append(r.records, recs...)
	r.e.opts.Metrics.records(recs)
}

func (r *run) newResolver() *describe.Resolver {
	opts := []describe.Option{
		describe.WithBaseURL(r.base),
		describe.WithSkipDomains(r.e.cfg.SkipDomains...),
		describe.WithObserver(r.e.opts.Metrics.description),
		describe.WithLogger(r.log),
	}
	if gen := r.e.opts.Generator; gen != nil {
		opts = append(opts, describe.WithGenerator(gen))
		md, err := describe.PageContext(r.doc, r.base, 0)
		if err != nil {
			r.log.Debug("remedy: page context unavailable", "error", err)
		} else {
			opts = append(opts, describe.WithPageContext(md))
		}
	}
	return describe.NewResolver(r.e.opts.Cache, opts...)
}

func (r *run) newProvider() provider.Provider {
	p := r.e.opts.Provider
	if p == nil {
		return nil
	}
	return provider.Chain(p,
		provider.WithObserver(r.observeCall),
		provider.WithTimeout(r.e.cfg.ProviderTimeout),
	)
}

func (r *run) observeCall(ctx context.Context, c provider.Call) {
	kind := provider.Kind(ctx)
	r.e.opts.Metrics.providerCall(kind, c.Duration, c.Err)
	st := r.e.opts.Store
	if st == nil {
		return
	}
	call := &audit.Call{
		RunID:       r.id,
		Kind:        kind,
		Instruction: c.Instruction,
		Payload:     c.Payload,
		Response:    c.Response,
		Duration:    c.Duration,
	}
	if c.Err != nil {
		call.Error = c.Err.Error()
	}
	if err := st.InsertCall(context.WithoutCancel(ctx), call); err != nil {
		r.log.Warn("remedy: audit call", "error", err)
	}
}

// filter removes invisible nodes and returns the items left to fix.
func (r *run) filter(ctx context.Context) ([]violation.Item, error) {
	renderer, release := r.renderer(ctx)
	defer release()

	f := &visibility.Filter{
		Renderer: renderer,
		Timeout:  r.e.cfg.VisibilityTimeout,
		Logger:   r.log,
	}
	eligible, recs, err := f.Apply(ctx, r.doc, r.agg.Items)
	r.add(recs)
	return eligible, err
}

func (r *run) renderer(ctx context.Context) (visibility.Renderer, func()) {
	if r.e.opts.Renderer != nil {
		return r.e.opts.Renderer, func() {}
	}
	if m := r.e.opts.Browser; m != nil {
		page, err := r.openPage(ctx, m)
		if err == nil {
			return page, func() { page.Close() }
		}
		r.log.Warn("remedy: browser unavailable, using static visibility", "error", err)
	}
	return visibility.NewStatic(r.doc), func() {}
}

func (r *run) openPage(ctx context.Context, m *render.Manager) (*render.Page, error) {
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	return m.Open(ctx, render.Source{URL: r.base, HTML: r.markup})
}

// heuristics applies the deterministic patterns per group in priority order
// and splits what is left between the fragment and batch passes.
func (r *run) heuristics(ctx context.Context, eligible []violation.Item) ([]violation.Item, map[string][]violation.Node, error) {
	survivors := make(map[string][]violation.Node)
	for _, it := range eligible {
		survivors[it.ViolationID] = append(survivors[it.ViolationID], it.Node)
	}

	fixer, err := heuristic.New(heuristic.Config{
		Locale:   r.e.cfg.Locale,
		Resolver: r.resolver,
		Logger:   r.log,
	})
	if err != nil {
		return nil, nil, err
	}
	r.fixer = fixer

	var fragItems []violation.Item
	batchNodes := make(map[string][]violation.Node)
	for _, id := range r.agg.Order {
		nodes := survivors[id]
		if len(nodes) == 0 {
			continue
		}
		g := *r.agg.Groups[id]
		g.Nodes = nodes

		out := fixer.FixGroup(ctx, r.doc, &g)
		for _, nid := range out.Claimed {
			r.claims.ClaimID(nid, violation.StrategyHeuristic)
		}
		r.add(out.Records)
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if r.e.cfg.IsBatchRule(id) {
			batchNodes[id] = out.Remaining
			continue
		}
		for _, n := range out.Remaining {
			fragItems = append(fragItems, violation.Item{
				ViolationID: id,
				Description: g.Description,
				HelpURL:     g.HelpURL,
				Impact:      g.Impact,
				Node:        n,
			})
		}
	}
	return fragItems, batchNodes, nil
}

func (r *run) fragments(ctx context.Context, items []violation.Item) error {
	if len(items) == 0 {
		return nil
	}
	if r.provider == nil {
		for _, it := range items {
			r.add([]violation.FixRecord{noProvider(it.ViolationID, it.Node, violation.StrategyAIFragment)})
		}
		return nil
	}
	c := &fragment.Corrector{
		Provider:  r.provider,
		Claims:    r.claims,
		Describer: r.resolver,
		Logger:    r.log,
	}
	recs, err := c.Fix(ctx, r.doc, items)
	r.add(recs)
	return err
}

func (r *run) batches(ctx context.Context, pending map[string][]violation.Node) error {
	rw := &batch.Rewriter{
		Provider:       r.provider,
		Claims:         r.claims,
		Describer:      r.resolver,
		ChunkSize:      r.e.cfg.ChunkSize,
		MinLengthRatio: r.e.cfg.MinLengthRatio,
		Logger:         r.log,
	}
	for _, id := range r.agg.Order {
		nodes := pending[id]
		if len(nodes) == 0 {
			continue
		}
		if r.provider == nil {
			for _, n := range nodes {
				r.add([]violation.FixRecord{noProvider(id, n, violation.StrategyAIBatch)})
			}
			continue
		}
		next, recs, err := rw.Rewrite(ctx, r.doc, r.agg.Groups[id], nodes)
		r.doc = next
		r.add(recs)
		if err != nil {
			return err
		}
	}
	return nil
}

// sweep labels the buttons, links and images the report missed. Nodes
// owned by a generative strategy are left as that strategy wrote them.
func (r *run) sweep(ctx context.Context) error {
	if r.e.cfg.DisableSweep || r.fixer == nil {
		return nil
	}
	out := r.fixer.Sweep(ctx, r.doc, func(n *html.Node) bool {
		return r.claims.Blocked(n, violation.StrategyHeuristic)
	})
	for _, nid := range out.Claimed {
		r.claims.ClaimID(nid, violation.StrategyHeuristic)
	}
	r.add(out.Records)
	return ctx.Err()
}

func (r *run) normalize() {
	if r.base == "" {
		return
	}
	n, err := pathnorm.Normalize(r.doc, r.base)
	if err != nil {
		if !errors.Is(err, pathnorm.ErrInvalidBase) {
			r.log.Warn("remedy: path normalization", "error", err)
		} else {
			r.log.Debug("remedy: base is not absolute, paths kept", "base", r.base)
		}
		return
	}
	r.log.Debug("remedy: paths normalized", "rewritten", n)
}

func noProvider(id string, n violation.Node, s violation.Strategy) violation.FixRecord {
	return violation.FixRecord{
		ViolationID: id,
		Selector:    n.Selector,
		Strategy:    s,
		Reason:      violation.ReasonNoProvider,
	}
}

func (r *run) begin(ctx context.Context) {
	if st := r.e.opts.Store; st != nil {
		if err := st.BeginRun(context.WithoutCancel(ctx), r.id, r.base, len(r.agg.Order)); err != nil {
			r.log.Warn("remedy: audit begin", "error", err)
		}
	}
}

func (r *run) finish(ctx context.Context, status string, runErr error) {
	r.e.opts.Metrics.run(status)
	if st := r.e.opts.Store; st != nil {
		if err := st.FinishRun(context.WithoutCancel(ctx), r.id, status, r.records, runErr); err != nil {
			r.log.Warn("remedy: audit finish", "error", err)
		}
	}
}
