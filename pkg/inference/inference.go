// Package inference answers free-form visitor questions with a chat model.
//
// The tour only needs single-turn completions: a fixed system prompt and
// the visitor's confirmed utterance. Providers sit behind a small
// interface so tests and offline runs can swap in a Mock.
//
// Example usage:
//
//	p, _ := inference.NewOpenAI(
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    inference.WithModel("gpt-4o-mini"),
//	)
//	defer p.Close()
//
//	reply, _ := inference.Complete(ctx, p, systemPrompt, "what is a PLC?")
package inference

import (
	"context"
	"strings"
	"time"
)

// Role is the speaker of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat.
type Message struct {
	Role    Role
	Content string
}

// Provider is a chat-completion backend.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation history.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Complete sends one system prompt and one user message and returns the
// trimmed reply. An empty reply is an error.
func Complete(ctx context.Context, p Provider, system, user string) (string, error) {
	resp, err := p.Chat(ctx, &ChatRequest{Messages: prompt(system, user)})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// prompt builds the single-turn exchange the chat stage sends. The system
// turn is omitted when empty.
func prompt(system, user string) []Message {
	if system == "" {
		return []Message{{Role: RoleUser, Content: user}}
	}
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

// CheckHealth runs p.Health bounded by timeout. A nil provider is
// reported as ErrProviderUnavailable.
func CheckHealth(ctx context.Context, p Provider, timeout time.Duration) error {
	if p == nil {
		return ErrProviderUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Health(ctx)
}
