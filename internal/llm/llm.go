// Package llm talks to an OpenAI-compatible chat completion service and
// turns its free-form replies into something callers can use.
package llm

import "context"

// Roles accepted in Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer sends one prompt and returns the raw text of the first choice.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// Prompt is the message set for one completion. Model and MaxTokens fall back
// to the client defaults when zero.
type Prompt struct {
	Model     string
	MaxTokens int
	System    string
	History   []Message
	User      string
}

type Message struct {
	Role    string
	Content string
}
