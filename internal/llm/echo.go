package llm

import (
	"context"
	"strings"
)

// Echo is an offline Completer that answers with the prompt's final user
// message. It backs the "echo" provider for local runs without an API key.
type Echo struct{}

func (Echo) Complete(_ context.Context, p Prompt) (string, error) {
	if text := strings.TrimSpace(p.User); text != "" {
		return text, nil
	}
	for i := len(p.History) - 1; i >= 0; i-- {
		if p.History[i].Role == RoleUser {
			return strings.TrimSpace(p.History[i].Content), nil
		}
	}
	return "", ErrEmptyResponse
}
