package remedy

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/a11yfix/kit"
)

// RegisterMCP registers the a11yfix tools on srv.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	kit.RegisterTool[RemediateRequest](srv, &mcp.Tool{
		Name:        "a11yfix_remediate",
		Description: "Fix the accessibility violations of an axe report in an HTML page. Returns the corrected HTML and one record per attempted fix.",
		InputSchema: inputSchema(map[string]any{
			"html":     map[string]any{"type": "string", "description": "Full page markup"},
			"report":   map[string]any{"type": "object", "description": "axe-core report with a violations array"},
			"base_url": map[string]any{"type": "string", "description": "Page URL used to make relative paths absolute"},
		}, []string{"html", "report"}),
	}, e.endpoint("remediate", e.remediateEndpoint()))

	kit.RegisterTool[AggregateRequest](srv, &mcp.Tool{
		Name:        "a11yfix_aggregate",
		Description: "Group the violations of an axe report by rule and list the nodes to fix in priority order.",
		InputSchema: inputSchema(map[string]any{
			"report": map[string]any{"type": "object", "description": "axe-core report with a violations array"},
		}, []string{"report"}),
	}, e.endpoint("aggregate", e.aggregateEndpoint()))

	kit.RegisterTool[DescribeRequest](srv, &mcp.Tool{
		Name:        "a11yfix_describe_lookup",
		Description: "Look up the cached alternative text of an image reference. Never generates a new description.",
		InputSchema: inputSchema(map[string]any{
			"ref": map[string]any{"type": "string", "description": "Image src as it appears in the page, or its absolute URL"},
		}, []string{"ref"}),
	}, e.endpoint("describe_lookup", e.describeEndpoint()))

	if e.opts.Store != nil {
		kit.RegisterTool[RunRequest](srv, &mcp.Tool{
			Name:        "a11yfix_run_get",
			Description: "Return the audit trail of a remediation run: status, fix records and provider calls.",
			InputSchema: inputSchema(map[string]any{
				"id": map[string]any{"type": "string", "description": "Run id returned by a11yfix_remediate"},
			}, []string{"id"}),
		}, e.endpoint("run_get", e.runEndpoint()))
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
