package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.1-8b-instant"
)

var tracer = otel.Tracer("hospiico.internal.llm")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint;
// by default Groq.
type OpenAIClient struct {
	client chatClient
	model  string
	name   string
}

func NewGroqClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return newOpenAIClient(openai.NewClientWithConfig(cfg), model, "groq"), nil
}

func newOpenAIClient(client chatClient, model, name string) *OpenAIClient {
	if model == "" {
		model = DefaultGroqModel
	}
	return &OpenAIClient{client: client, model: model, name: name}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "llm.openai.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("hospiico.llm.provider", c.name),
		attribute.String("hospiico.llm.model", c.model),
		attribute.Bool("hospiico.llm.json", req.JSON),
	)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		span.RecordError(err)
		return Response{}, fmt.Errorf("llm: %s completion failed: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("llm: " + c.name + " returned no choices")
		span.RecordError(err)
		return Response{}, err
	}

	return Response{
		Text:     strings.TrimSpace(resp.Choices[0].Message.Content),
		Provider: c.name,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
