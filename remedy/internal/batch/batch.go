// CLAUDE:SUMMARY Whole-document generative rewrite per rule, with the offending nodes split into fixed-size chunks and each response validated before it replaces the document.
package batch

import (
	"context"
	"log/slog"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/a11yfix/dom"
	"github.com/hazyhaar/a11yfix/provider"
	"github.com/hazyhaar/a11yfix/remedy/internal/claims"
	"github.com/hazyhaar/a11yfix/remedy/internal/prompt"
	"github.com/hazyhaar/a11yfix/remedy/internal/validate"
	"github.com/hazyhaar/a11yfix/violation"
)

// Kind tags provider calls made by the rewriter.
const Kind = "batch"

// DefaultChunkSize is the number of nodes sent per request.
const DefaultChunkSize = 5

// Chunk splits nodes into consecutive slices of at most size nodes.
// A size below 1 is treated as DefaultChunkSize.
func Chunk(nodes []violation.Node, size int) [][]violation.Node {
	if size < 1 {
		size = DefaultChunkSize
	}
	var out [][]violation.Node
	for start := 0; start < len(nodes); start += size {
		end := min(start+size, len(nodes))
		out = append(out, nodes[start:end])
	}
	return out
}

// Describer returns cached descriptions for image references.
type Describer interface {
	Descriptions(ctx context.Context, refs []string) map[string]string
}

// Rewriter sends the whole document with one chunk of nodes at a time.
type Rewriter struct {
	Provider  provider.Provider
	Claims    *claims.Set
	Describer Describer
	ChunkSize int
	// MinLengthRatio bounds how much shorter an accepted document may be.
	MinLengthRatio float64
	Logger         *slog.Logger
}

// Rewrite processes the nodes of g chunk by chunk. Each accepted response
// becomes the working document for the next chunk; a rejected one leaves it
// unchanged. It returns the final document (doc itself when nothing was
// accepted) and one FixRecord per node. Only cancellation returns an error.
func (r *Rewriter) Rewrite(ctx context.Context, doc *dom.Document, g *violation.Group, nodes []violation.Node) (*dom.Document, []violation.FixRecord, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	var records []violation.FixRecord
	record := func(n violation.Node, accepted bool, reason string) {
		records = append(records, violation.FixRecord{
			ViolationID: g.ViolationID,
			Selector:    n.Selector,
			Strategy:    violation.StrategyAIBatch,
			Accepted:    accepted,
			Reason:      reason,
		})
	}

	accepted := 0
	for i, chunk := range Chunk(nodes, r.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return doc, records, err
		}

		var targets []violation.Node
		for _, n := range chunk {
			el, err := doc.Resolve(n.Selector)
			switch {
			case err != nil:
				record(n, false, violation.ReasonNotFound)
			case r.Claims != nil && r.Claims.Blocked(el, violation.StrategyAIBatch):
				record(n, false, violation.ReasonClaimed)
			default:
				targets = append(targets, n)
			}
		}
		if len(targets) == 0 {
			continue
		}

		current, err := doc.Render()
		if err != nil {
			return doc, records, err
		}
		instruction, payload := prompt.Batch(prompt.BatchRequest{
			ViolationID: g.ViolationID,
			Description: g.Description,
			HelpURL:     g.HelpURL,
			Nodes:       targets,
			Document:    current,
			Images:      r.images(ctx, doc),
			Contrast:    violation.ContrastViews(targets),
		})

		resp, err := r.Provider.Correct(provider.WithKind(ctx, Kind), instruction, payload)
		if err != nil {
			reason := violation.ReasonProviderError
			if ctx.Err() != nil {
				reason = violation.ReasonCancelled
			}
			for _, n := range targets {
				record(n, false, reason)
			}
			log.Warn("batch: provider failed", "violation_id", g.ViolationID, "chunk", i, "error", err)
			if ctx.Err() != nil {
				return doc, records, ctx.Err()
			}
			continue
		}

		next, err := validate.Document(resp, current, r.MinLengthRatio)
		if err != nil {
			for _, n := range targets {
				record(n, false, violation.ReasonInvalid)
			}
			log.Warn("batch: response rejected", "violation_id", g.ViolationID, "chunk", i, "error", err)
			continue
		}

		if r.Claims != nil {
			if err := r.Claims.Verify(next); err != nil {
				for _, n := range targets {
					record(n, false, violation.ReasonLabelLost)
				}
				log.Warn("batch: response rejected", "violation_id", g.ViolationID, "chunk", i, "error", err)
				continue
			}
			if lost := r.Claims.Rebind(next); lost > 0 {
				log.Warn("batch: claims lost in rewrite", "violation_id", g.ViolationID, "lost", lost)
			}
		}
		doc = next
		for _, n := range targets {
			if el, err := doc.Resolve(n.Selector); err == nil && r.Claims != nil {
				r.Claims.Claim(el, violation.StrategyAIBatch)
			}
			record(n, true, "")
		}
		accepted++
		log.Debug("batch: chunk applied", "violation_id", g.ViolationID, "chunk", i, "nodes", len(targets))
	}

	if accepted == 0 && len(nodes) > 0 {
		log.Warn("batch: no chunk accepted", "violation_id", g.ViolationID, "nodes", len(nodes))
	}
	return doc, records, nil
}

func (r *Rewriter) images(ctx context.Context, doc *dom.Document) map[string]string {
	if r.Describer == nil {
		return nil
	}
	var refs []string
	for _, img := range dom.FindAll(doc.Root(), func(n *html.Node) bool { return dom.IsElement(n, atom.Img) }) {
		if src := dom.Attr(img, "src"); src != "" {
			refs = append(refs, src)
		}
	}
	if len(refs) == 0 {
		return nil
	}
	return r.Describer.Descriptions(ctx, refs)
}
