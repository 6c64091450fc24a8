package violation

// Strategy names the component that handled a node.
type Strategy string

const (
	StrategyRemoved    Strategy = "removed"
	StrategyHeuristic  Strategy = "heuristic"
	StrategyAIFragment Strategy = "ai-fragment"
	StrategyAIBatch    Strategy = "ai-batch"
)

// FixRecord is the audit entry for one attempt on one node.
// Accepted is false for rejections and skips; Reason says which.
type FixRecord struct {
	ViolationID string   `json:"violation_id"`
	Selector    string   `json:"selector"`
	Strategy    Strategy `json:"strategy"`
	Accepted    bool     `json:"accepted"`
	Reason      string   `json:"reason,omitempty"`
}

// Common rejection reasons.
const (
	ReasonNotFound      = "selector not found"
	ReasonClaimed       = "claimed by another strategy"
	ReasonProviderError = "provider error"
	ReasonInvalid       = "invalid response"
	ReasonUnchanged     = "response unchanged"
	ReasonNotVisible    = "not visible"
	ReasonLookupFailed  = "visibility lookup failed"
	ReasonCancelled     = "cancelled"
	ReasonNoProvider    = "no correction provider"
	ReasonLabelLost     = "rewrite dropped an applied fix"
)
