package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel     = "gpt-3.5-turbo"
	DefaultMaxTokens = 500
)

// ErrEmptyResponse is returned when the service answers without usable text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Settings configures OpenAIClient.
type Settings struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAIClient implements Completer with the openai-go SDK. It never retries:
// a failed call is reported to the caller as is.
type OpenAIClient struct {
	client    openai.Client
	model     string
	maxTokens int
}

func NewOpenAIClient(s Settings) (*OpenAIClient, error) {
	if s.APIKey == "" {
		return nil, errors.New("llm: api key missing")
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(0),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	if s.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(s.Timeout))
	}

	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		model:     s.Model,
		maxTokens: s.MaxTokens,
	}, nil
}

func (o *OpenAIClient) Complete(ctx context.Context, prompt Prompt) (string, error) {
	model := prompt.Model
	if model == "" {
		model = o.model
	}
	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	for _, h := range prompt.History {
		switch h.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(h.Content))
		default:
			msgs = append(msgs, openai.UserMessage(h.Content))
		}
	}
	if prompt.User != "" {
		msgs = append(msgs, openai.UserMessage(prompt.User))
	}
	if len(msgs) == 0 {
		return "", errors.New("llm: prompt has no messages")
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(model),
		Messages:  msgs,
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
