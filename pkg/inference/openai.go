package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-temitour/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI is a Provider backed by any OpenAI-compatible chat API.
type OpenAI struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.New(cfg.Timeout)
	}
	oc.HTTPClient = hc

	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
		logger: cfg.Logger.With("component", "inference.openai"),
	}, nil
}

// Chat generates a chat completion, retrying rate limits and server errors.
func (o *OpenAI) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = o.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = o.config.Temperature
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	creq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: float32(temp),
	}

	var (
		resp openai.ChatCompletionResponse
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = o.client.CreateChatCompletion(ctx, creq)
		if err == nil {
			break
		}
		err = convertError(err)
		var se *StatusError
		if attempt >= o.config.MaxRetries || !errors.As(err, &se) || !se.Retryable() {
			return nil, err
		}
		o.logger.Warn("chat request failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.config.RetryDelay * time.Duration(attempt+1)):
		}
	}

	if len(resp.Choices) == 0 {
		return nil, wrap(providerOpenAI, ErrEmptyReply)
	}
	choice := resp.Choices[0]

	out := &ChatResponse{
		Message:      Message{Role: RoleAssistant, Content: choice.Message.Content},
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	o.logger.Debug("chat completed", "model", out.Model, "latency_ms", out.LatencyMs, "tokens", out.Usage.TotalTokens)
	return out, nil
}

// Health lists models to check the key and the connection.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return convertError(err)
	}
	return nil
}

// Close is a no-op; the HTTP client is shared.
func (o *OpenAI) Close() error {
	return nil
}

// convertError maps go-openai errors onto StatusError.
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &StatusError{
			Provider: providerOpenAI,
			Status:   apiErr.HTTPStatusCode,
			Code:     code,
			Message:  apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{
			Provider: providerOpenAI,
			Status:   reqErr.HTTPStatusCode,
			Message:  reqErr.Error(),
		}
	}
	return wrap(providerOpenAI, err)
}

var _ Provider = (*OpenAI)(nil)
