package kit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoArgs struct {
	Text string `json:"text"`
}

func toolSession(t *testing.T, ep Endpoint) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.0.1"}
	srv := mcp.NewServer(impl, nil)
	RegisterTool[echoArgs](srv, &mcp.Tool{
		Name:        "echo",
		InputSchema: map[string]any{"type": "object"},
	}, ep)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callEcho(t *testing.T, s *mcp.ClientSession, args any) (string, bool) {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: "echo", Arguments: args})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	return res.Content[0].(*mcp.TextContent).Text, res.IsError
}

func TestRegisterTool_DecodesAndTagsContext(t *testing.T) {
	var transport, reqID string
	s := toolSession(t, func(ctx context.Context, req any) (any, error) {
		transport, reqID = GetTransport(ctx), GetRequestID(ctx)
		return map[string]string{"echo": req.(*echoArgs).Text}, nil
	})

	text, isErr := callEcho(t, s, map[string]any{"text": "hi"})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	if text != `{"echo":"hi"}` {
		t.Errorf("result: %s", text)
	}
	if transport != "mcp" {
		t.Errorf("transport: %q", transport)
	}
	if reqID == "" {
		t.Error("request id not set")
	}
}

func TestRegisterTool_Errors(t *testing.T) {
	s := toolSession(t, func(_ context.Context, req any) (any, error) {
		if req.(*echoArgs).Text == "" {
			return nil, errors.New("empty text")
		}
		return "ok", nil
	})

	text, isErr := callEcho(t, s, map[string]any{})
	if !isErr || !strings.Contains(text, "empty text") {
		t.Errorf("endpoint error: isErr=%v text=%q", isErr, text)
	}

	text, isErr = callEcho(t, s, map[string]any{"text": 42})
	if !isErr || !strings.Contains(text, "invalid arguments") {
		t.Errorf("decode error: isErr=%v text=%q", isErr, text)
	}
}
