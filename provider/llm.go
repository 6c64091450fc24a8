package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// LLMConfig configures an OpenAI-compatible chat model.
type LLMConfig struct {
	BaseURL           string  `koanf:"base_url" yaml:"base_url"`
	APIKey            string  `koanf:"api_key" yaml:"api_key"`
	Model             string  `koanf:"model" yaml:"model"`
	VisionModel       string  `koanf:"vision_model" yaml:"vision_model"`
	Temperature       float64 `koanf:"temperature" yaml:"temperature"`
	MaxTokens         int     `koanf:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int     `koanf:"requests_per_minute" yaml:"requests_per_minute"` // 0 disables limiting
}

func (c *LLMConfig) defaults() {
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.VisionModel == "" {
		c.VisionModel = c.Model
	}
}

const describeInstruction = "You write alternative text for images on web pages. " +
	"Answer with one concise sentence describing the image for a screen reader user. " +
	"Do not start with \"Image of\". Return only the description."

// LLM is a Provider (and image describer) backed by a langchaingo model.
type LLM struct {
	model   llms.Model
	cfg     LLMConfig
	limiter *rate.Limiter
}

// NewLLM wraps model. Calls are rate limited per cfg.RequestsPerMinute.
func NewLLM(model llms.Model, cfg LLMConfig) *LLM {
	cfg.defaults()
	l := &LLM{model: model, cfg: cfg}
	if cfg.RequestsPerMinute > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1)
	}
	return l
}

// NewOpenAI builds an LLM over an OpenAI-compatible endpoint.
func NewOpenAI(cfg LLMConfig) (*LLM, error) {
	cfg.defaults()
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("provider: openai: %w", err)
	}
	return NewLLM(m, cfg), nil
}

// Correct implements Provider.
func (l *LLM) Correct(ctx context.Context, instruction, payload string) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, instruction),
		llms.TextParts(llms.ChatMessageTypeHuman, payload),
	}
	return l.generate(ctx, msgs, l.cfg.Model)
}

// Describe implements describe.Generator using a vision-capable model.
func (l *LLM) Describe(ctx context.Context, imageURL, pageContext string) (string, error) {
	prompt := "Describe this image."
	if pageContext != "" {
		prompt += "\n\nPage context:\n" + pageContext
	}
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, describeInstruction),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
				llms.ImageURLPart(imageURL),
			},
		},
	}
	return l.generate(ctx, msgs, l.cfg.VisionModel)
}

func (l *LLM) generate(ctx context.Context, msgs []llms.MessageContent, model string) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("provider: rate limit: %w", err)
		}
	}
	opts := []llms.CallOption{
		llms.WithModel(model),
		llms.WithTemperature(l.cfg.Temperature),
	}
	if l.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.cfg.MaxTokens))
	}
	resp, err := l.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", fmt.Errorf("provider: generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
