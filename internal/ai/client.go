package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Usage reports the token consumption of one generation call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Request carries everything one generation call needs.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int32
}

// Client is the generation surface the chat and code-assistant
// services run against.
type Client interface {
	Generate(ctx context.Context, req Request) (string, *Usage, error)
	// Stream calls onDelta for every chunk as it arrives and returns
	// the assembled reply. The partial reply is returned even on error.
	Stream(ctx context.Context, req Request, onDelta func(chunk string) error) (string, *Usage, error)
}

type GeminiClient struct {
	client       *genai.Client
	apiKey       string
	defaultModel string
}

type GeminiClientOption = func(c *GeminiClient) error

func NewGeminiClient(ctx context.Context, opts ...GeminiClientOption) (*GeminiClient, error) {
	gc := &GeminiClient{
		defaultModel: "gemini-2.0-flash",
	}
	for _, opt := range opts {
		if err := opt(gc); err != nil {
			return nil, fmt.Errorf("failed to apply options: %w", err)
		}
	}

	var cc *genai.ClientConfig
	if gc.apiKey != "" {
		cc = &genai.ClientConfig{APIKey: gc.apiKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	gc.client = client
	return gc, nil
}

func WithAPIKey(key string) GeminiClientOption {
	return func(c *GeminiClient) error {
		c.apiKey = key
		return nil
	}
}

func WithDefaultModel(model string) GeminiClientOption {
	return func(c *GeminiClient) error {
		c.defaultModel = model
		return nil
	}
}

func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, *Usage, error) {
	model, contents, cfg := g.prepare(req)

	result, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return result.Text(), usageFrom(result.UsageMetadata), nil
}

func (g *GeminiClient) Stream(ctx context.Context, req Request, onDelta func(chunk string) error) (string, *Usage, error) {
	model, contents, cfg := g.prepare(req)

	var full string
	usage := &Usage{}
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return full, usage, fmt.Errorf("stream failed: %w", err)
		}
		if u := usageFrom(resp.UsageMetadata); u != nil {
			usage = u
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		full += chunk
		if err := onDelta(chunk); err != nil {
			return full, usage, err
		}
	}
	return full, usage, nil
}

func (g *GeminiClient) prepare(req Request) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	return model, contents, cfg
}

func usageFrom(um *genai.GenerateContentResponseUsageMetadata) *Usage {
	if um == nil {
		return nil
	}
	in := int(um.PromptTokenCount)
	out := int(um.TotalTokenCount) - in
	if out < 0 {
		out = 0
	}
	return &Usage{InputTokens: in, OutputTokens: out}
}
