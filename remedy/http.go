package remedy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/a11yfix/describe"
	"github.com/hazyhaar/a11yfix/idgen"
	"github.com/hazyhaar/a11yfix/kit"
	"github.com/hazyhaar/a11yfix/violation"
)

// MaxBodyBytes bounds request bodies of the HTTP API.
const MaxBodyBytes = 32 << 20

// Handler returns the HTTP API. gatherer backs /metrics and may be nil.
//
//	POST /v1/remediate        RemediateRequest  -> Result
//	POST /v1/aggregate        AggregateRequest  -> AggregateResponse
//	GET  /v1/descriptions?ref=                  -> DescribeResponse
//	GET  /v1/runs/{id}                          -> RunResponse
//	GET  /health
//	GET  /metrics
func (e *Engine) Handler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(apiHeaders)
	r.Use(requestContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	remediate := e.endpoint("remediate", e.remediateEndpoint())
	aggregate := e.endpoint("aggregate", e.aggregateEndpoint())
	lookup := e.endpoint("describe_lookup", e.describeEndpoint())
	runs := e.endpoint("run_get", e.runEndpoint())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/remediate", func(w http.ResponseWriter, r *http.Request) {
			var req RemediateRequest
			if !decodeBody(w, r, &req) {
				return
			}
			serve(w, r, remediate, &req)
		})
		r.Post("/aggregate", func(w http.ResponseWriter, r *http.Request) {
			var req AggregateRequest
			if !decodeBody(w, r, &req) {
				return
			}
			serve(w, r, aggregate, &req)
		})
		r.Get("/descriptions", func(w http.ResponseWriter, r *http.Request) {
			serve(w, r, lookup, &DescribeRequest{Ref: r.URL.Query().Get("ref")})
		})
		r.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
			serve(w, r, runs, &RunRequest{ID: chi.URLParam(r, "id")})
		})
	})
	return r
}

// apiHeaders sets the response headers of a JSON-only API.
func apiHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		// A client id is echoed only when it is a well-formed UUID.
		id, err := idgen.Parse(r.Header.Get("X-Request-ID"))
		if err != nil {
			id = idgen.New()
		}
		ctx = kit.WithRequestID(ctx, id)
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return false
	}
	return true
}

func serve(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, req any) {
	resp, err := ep(r.Context(), req)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrEmptyInput),
		errors.Is(err, ErrInvalidDocument),
		errors.Is(err, violation.ErrMalformedReport),
		errors.Is(err, describe.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunNotFound), errors.Is(err, ErrNoAuditLog):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
