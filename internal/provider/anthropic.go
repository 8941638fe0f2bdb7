package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicEndpoint  = "https://api.anthropic.com/v1"
	defaultAnthropicMaxTokens = 4000
	anthropicVersion          = "2023-06-01"
	// maxErrorBody caps how much of a failed response ends up in the error.
	maxErrorBody = 512
)

// AnthropicProvider talks to the Claude Messages API.
type AnthropicProvider struct {
	config ProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg ProviderConfig, logger *zap.Logger) *AnthropicProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultAnthropicEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &AnthropicProvider{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (p *AnthropicProvider) ID() string   { return p.config.ID }
func (p *AnthropicProvider) Name() string { return p.config.Name }

// HasCredential reports whether an API key is configured.
func (p *AnthropicProvider) HasCredential() bool {
	return strings.TrimSpace(p.config.APIKey) != ""
}

// Chat sends one non-streaming messages request.
func (p *AnthropicProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !p.HasCredential() {
		return nil, fmt.Errorf("%s: %w", p.config.ID, ErrNoCredential)
	}

	httpReq, err := p.newMessagesRequest(ctx, p.buildMessages(req))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", p.config.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%s: API error %d: %s", p.config.ID, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.config.ID, err)
	}
	out := mr.chatResponse()
	p.logger.Debug("anthropic chat",
		zap.String("model", out.Model),
		zap.Int("tokens", out.Usage.TotalTokens),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// newMessagesRequest wraps body in an authenticated POST to /messages.
func (p *AnthropicProvider) newMessagesRequest(ctx context.Context, body *messagesRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.Endpoint+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return httpReq, nil
}

type messagesRequest struct {
	Model       string        `json:"model"`
	Messages    []messageTurn `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

type messageTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// buildMessages lifts system messages into the top-level system prompt,
// joined in order, and keeps the remaining turns as they are.
func (p *AnthropicProvider) buildMessages(req *ChatRequest) *messagesRequest {
	mr := &messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if mr.Model == "" {
		mr.Model = p.config.DefaultModel(defaultAnthropicModel)
	}
	if mr.MaxTokens == 0 {
		mr.MaxTokens = defaultAnthropicMaxTokens
	}
	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		mr.Messages = append(mr.Messages, messageTurn{Role: m.Role, Content: m.Content})
	}
	mr.System = strings.Join(system, "\n\n")
	return mr
}

func (mr *messagesResponse) chatResponse() *ChatResponse {
	var content strings.Builder
	for _, c := range mr.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}
	in, out := mr.Usage.InputTokens, mr.Usage.OutputTokens
	return &ChatResponse{
		ID:           mr.ID,
		Model:        mr.Model,
		Content:      content.String(),
		FinishReason: mr.StopReason,
		Usage:        Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}
}
