package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"

	"github.com/hazyhaar/a11yfix/remedy"
	"github.com/hazyhaar/a11yfix/violation"
)

var (
	acceptedColor = color.New(color.FgGreen, color.Bold)
	rejectedColor = color.New(color.FgRed)
	headerColor   = color.New(color.Bold)
	dimColor      = color.New(color.Faint)
)

var strategyOrder = []violation.Strategy{
	violation.StrategyRemoved,
	violation.StrategyHeuristic,
	violation.StrategyAIFragment,
	violation.StrategyAIBatch,
}

// printSummary writes a per-strategy tally and the rejected records.
func printSummary(w io.Writer, res *remedy.Result) {
	s := res.Summary
	headerColor.Fprintf(w, "run %s: %d violations, %d nodes\n", res.RunID, s.Violations, s.Nodes)
	for _, st := range strategyOrder {
		t, ok := s.ByStrategy[st]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-12s %s %s\n", st,
			acceptedColor.Sprintf("%3d fixed", t.Accepted),
			rejectedColor.Sprintf("%3d rejected", t.Rejected))
	}

	var rejected []violation.FixRecord
	for _, r := range res.Records {
		if !r.Accepted {
			rejected = append(rejected, r)
		}
	}
	slices.SortStableFunc(rejected, func(a, b violation.FixRecord) int {
		return cmp.Compare(a.ViolationID, b.ViolationID)
	})
	for _, r := range rejected {
		dimColor.Fprintf(w, "  - %s %s (%s): %s\n", r.ViolationID, r.Selector, r.Strategy, r.Reason)
	}
	for _, wn := range res.Warnings {
		dimColor.Fprintf(w, "  ! %s\n", wn)
	}
}
