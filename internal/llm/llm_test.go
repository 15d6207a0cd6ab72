package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClient struct {
	resp  Response
	err   error
	calls int
	wait  time.Duration
}

func (s *stubClient) Complete(ctx context.Context, _ Request) (Response, error) {
	s.calls++
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return s.resp, s.err
}

func TestFallbackClient(t *testing.T) {
	t.Run("primary success", func(t *testing.T) {
		primary := &stubClient{resp: Response{Text: "primary"}}
		fallback := &stubClient{resp: Response{Text: "fallback"}}

		resp, err := NewFallbackClient(primary, fallback, zap.NewNop()).Complete(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "primary", resp.Text)
		assert.Equal(t, 0, fallback.calls)
	})

	t.Run("primary fails", func(t *testing.T) {
		primary := &stubClient{err: errors.New("rate limited")}
		fallback := &stubClient{resp: Response{Text: "fallback"}}

		resp, err := NewFallbackClient(primary, fallback, nil).Complete(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "fallback", resp.Text)
	})

	t.Run("both fail", func(t *testing.T) {
		boom := errors.New("down")
		primary := &stubClient{err: errors.New("rate limited")}
		fallback := &stubClient{err: boom}

		_, err := NewFallbackClient(primary, fallback, nil).Complete(context.Background(), Request{})
		require.ErrorIs(t, err, boom)
	})
}

func TestWithTimeout(t *testing.T) {
	slow := &stubClient{wait: time.Second}
	_, err := WithTimeout(slow, 10*time.Millisecond).Complete(context.Background(), Request{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChainGivesFallbackItsOwnDeadline(t *testing.T) {
	hanging := &stubClient{wait: time.Minute}
	fallback := &stubClient{wait: 20 * time.Millisecond, resp: Response{Text: "fallback", Provider: "gemini"}}

	resp, err := chain(hanging, fallback, 50*time.Millisecond, zap.NewNop()).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
	assert.Equal(t, 1, hanging.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestChainWithoutFallback(t *testing.T) {
	slow := &stubClient{wait: time.Second}
	_, err := chain(slow, nil, 10*time.Millisecond, nil).Complete(context.Background(), Request{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewWithoutKeys(t *testing.T) {
	client, closeFn, err := New(context.Background(), Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, closeFn())

	_, err = client.Complete(context.Background(), Request{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

type fakeChat struct {
	got  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestOpenAIClientBuildsRequest(t *testing.T) {
	fake := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "  {\"type\":\"x\"} "}}},
	}}
	client := newOpenAIClient(fake, "", "groq")

	resp, err := client.Complete(context.Background(), Request{
		System:      "be brief",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}},
		MaxTokens:   350,
		Temperature: 0.1,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"x"}`, resp.Text)
	assert.Equal(t, "groq", resp.Provider)

	assert.Equal(t, DefaultGroqModel, fake.got.Model)
	require.Len(t, fake.got.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, fake.got.Messages[2].Role)
	assert.Equal(t, 350, fake.got.MaxTokens)
	require.NotNil(t, fake.got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, fake.got.ResponseFormat.Type)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	client := newOpenAIClient(&fakeChat{}, "m", "groq")
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestNewGroqClientRequiresKey(t *testing.T) {
	_, err := NewGroqClient(" ", "", "")
	require.ErrorIs(t, err, ErrNotConfigured)
}
