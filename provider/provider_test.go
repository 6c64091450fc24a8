package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"
)

type recordingModel struct {
	reply string
	err   error
	got   [][]llms.MessageContent
	opts  llms.CallOptions
}

func (m *recordingModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.got = append(m.got, msgs)
	for _, o := range options {
		o(&m.opts)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Provider) Provider {
			return Func(func(ctx context.Context, i, p string) (string, error) {
				order = append(order, name)
				return next.Correct(ctx, i, p)
			})
		}
	}
	base := Func(func(_ context.Context, _, p string) (string, error) { return p, nil })
	p := Chain(base, tag("a"), tag("b"))
	if out, _ := p.Correct(context.Background(), "", "x"); out != "x" {
		t.Fatalf("out: %q", out)
	}
	if strings.Join(order, "") != "ab" {
		t.Fatalf("order: %v", order)
	}
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})
	p := Chain(slow, WithTimeout(10*time.Millisecond))
	_, err := p.Correct(context.Background(), "", "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWithObserver(t *testing.T) {
	var calls []Call
	p := Chain(Func(func(_ context.Context, _, _ string) (string, error) { return "ok", nil }),
		WithObserver(func(_ context.Context, c Call) { calls = append(calls, c) }))
	if _, err := p.Correct(context.Background(), "inst", "pay"); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].Instruction != "inst" || calls[0].Response != "ok" {
		t.Fatalf("calls: %+v", calls)
	}
}

func TestKind(t *testing.T) {
	ctx := WithKind(context.Background(), "batch")
	if Kind(ctx) != "batch" || Kind(context.Background()) != "" {
		t.Fatal("kind round trip failed")
	}
}

func TestLLM_Correct(t *testing.T) {
	m := &recordingModel{reply: "  <button aria-label=\"x\"></button>\n"}
	l := NewLLM(m, LLMConfig{Model: "test-model", Temperature: 0})
	out, err := l.Correct(context.Background(), "fix it", "<button></button>")
	if err != nil {
		t.Fatal(err)
	}
	if out != `<button aria-label="x"></button>` {
		t.Errorf("out: %q", out)
	}
	msgs := m.got[0]
	if len(msgs) != 2 || msgs[0].Role != llms.ChatMessageTypeSystem || msgs[1].Role != llms.ChatMessageTypeHuman {
		t.Fatalf("messages: %+v", msgs)
	}
	if m.opts.Model != "test-model" {
		t.Errorf("model option: %q", m.opts.Model)
	}
}

func TestLLM_EmptyAndError(t *testing.T) {
	l := NewLLM(&recordingModel{reply: "   "}, LLMConfig{})
	if _, err := l.Correct(context.Background(), "i", "p"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	boom := errors.New("quota")
	l = NewLLM(&recordingModel{err: boom}, LLMConfig{})
	if _, err := l.Correct(context.Background(), "i", "p"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestLLM_DescribeSendsImage(t *testing.T) {
	m := &recordingModel{reply: "A red kite"}
	l := NewLLM(m, LLMConfig{Model: "text", VisionModel: "vision"})
	if _, err := l.Describe(context.Background(), "https://example.com/kite.png", "# Kites"); err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, part := range m.got[0][1].Parts {
		if img, ok := part.(llms.ImageURLContent); ok && img.URL == "https://example.com/kite.png" {
			found = true
		}
	}
	if !found {
		t.Error("image URL part missing")
	}
	if m.opts.Model != "vision" {
		t.Errorf("vision model not used: %q", m.opts.Model)
	}
}

func TestLLM_RateLimitHonoursContext(t *testing.T) {
	l := NewLLM(&recordingModel{reply: "ok"}, LLMConfig{RequestsPerMinute: 1})
	if _, err := l.Correct(context.Background(), "i", "p"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Correct(ctx, "i", "p"); err == nil {
		t.Fatal("second call within the same minute should wait and fail on context")
	}
}
