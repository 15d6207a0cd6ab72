package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotConfigured is returned when no completion provider has credentials.
var ErrNotConfigured = errors.New("chat service is not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float32
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type Response struct {
	Text     string
	Provider string
	Usage    Usage
}

// Client is a single fallible completion call.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Unconfigured is the Client used when no API key is set.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}
