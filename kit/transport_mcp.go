package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/a11yfix/idgen"
)

// RegisterTool exposes endpoint as the MCP tool described by tool. The call
// arguments are decoded into a fresh *T before the endpoint sees them; empty
// arguments decode to the zero T.
//
// Decode, endpoint and encoding failures all come back as tool results with
// IsError set so the client can read the message. Protocol errors are left to
// the SDK.
func RegisterTool[T any](srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := new(T)
		if args := req.Params.Arguments; len(args) > 0 {
			if err := json.Unmarshal(args, in); err != nil {
				return toolError(fmt.Errorf("%s: invalid arguments: %w", tool.Name, err)), nil
			}
		}

		ctx = WithRequestID(WithTransport(ctx, "mcp"), idgen.New())
		out, err := endpoint(ctx, in)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			return toolError(fmt.Errorf("%s: encode result: %w", tool.Name, err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	res := new(mcp.CallToolResult)
	res.SetError(err)
	return res
}
