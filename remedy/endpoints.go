package remedy

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hazyhaar/a11yfix/audit"
	"github.com/hazyhaar/a11yfix/describe"
	"github.com/hazyhaar/a11yfix/kit"
	"github.com/hazyhaar/a11yfix/violation"
)

// Endpoint errors mapped to client errors by the transports.
var (
	ErrEmptyInput  = errors.New("remedy: html and report are required")
	ErrNoAuditLog  = errors.New("remedy: audit log disabled")
	ErrRunNotFound = errors.New("remedy: run not found")
)

// RemediateRequest is the body of the remediate endpoint.
type RemediateRequest struct {
	HTML    string          `json:"html"`
	Report  json.RawMessage `json:"report"`
	BaseURL string          `json:"base_url,omitempty"`
}

// AggregateRequest is the body of the aggregate endpoint.
type AggregateRequest struct {
	Report json.RawMessage `json:"report"`
}

// AggregateResponse is the normalised report.
type AggregateResponse struct {
	*violation.Aggregation
	Warnings []violation.Warning `json:"warnings,omitempty"`
}

// DescribeRequest asks for a cached description.
type DescribeRequest struct {
	Ref string `json:"ref"`
}

// DescribeResponse carries a cached description, if any.
type DescribeResponse struct {
	Ref         string `json:"ref"`
	Description string `json:"description,omitempty"`
	Found       bool   `json:"found"`
}

// RunRequest asks for the audit trail of a run.
type RunRequest struct {
	ID string `json:"id"`
}

// RunResponse is the audit trail of a run.
type RunResponse struct {
	Run     *audit.Run            `json:"run"`
	Records []violation.FixRecord `json:"records"`
	Calls   []audit.Call          `json:"calls,omitempty"`
}

func (e *Engine) remediateEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r := req.(*RemediateRequest)
		if r.HTML == "" || len(r.Report) == 0 {
			return nil, ErrEmptyInput
		}
		return e.Run(ctx, Request{Report: r.Report, HTML: r.HTML, BaseURL: r.BaseURL})
	}
}

func (e *Engine) aggregateEndpoint() kit.Endpoint {
	return func(_ context.Context, req any) (any, error) {
		r := req.(*AggregateRequest)
		rep, warnings, err := violation.ParseReport(r.Report)
		if err != nil {
			return nil, err
		}
		return &AggregateResponse{
			Aggregation: violation.Aggregate(rep.Violations),
			Warnings:    warnings,
		}, nil
	}
}

// describeEndpoint only reads the cache: it never generates.
func (e *Engine) describeEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r := req.(*DescribeRequest)
		if r.Ref == "" {
			return nil, describe.ErrEmpty
		}
		res := describe.NewResolver(e.opts.Cache, describe.WithBaseURL(e.cfg.BaseURL))
		d, ok, err := res.Lookup(ctx, r.Ref)
		if err != nil {
			return nil, err
		}
		return &DescribeResponse{Ref: r.Ref, Description: d, Found: ok}, nil
	}
}

func (e *Engine) runEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r := req.(*RunRequest)
		st := e.opts.Store
		if st == nil {
			return nil, ErrNoAuditLog
		}
		run, err := st.GetRun(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, ErrRunNotFound
		}
		recs, err := st.ListRecords(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		calls, err := st.ListCalls(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		return &RunResponse{Run: run, Records: recs, Calls: calls}, nil
	}
}

// endpoint wraps ep with the shared logging middleware.
func (e *Engine) endpoint(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Logging(e.log, name)(ep)
}
