// Package revision asks the text generation service to fold a contribution
// into existing section text.
package revision

import (
	"context"
	"fmt"
	"strings"

	"collabwiki/internal/apperr"
	"collabwiki/internal/llm"
)

const (
	DefaultModel     = "gpt-4-turbo"
	DefaultMaxTokens = 500

	editorSystem     = "You are a skilled AI editor improving user-contributed content."
	summarizerSystem = "You are a careful AI editor maintaining a running summary of a collaborative article section."
)

// SummaryInput is what the summarizer sees: the running summary, every prior
// contribution in order, and the new one.
type SummaryInput struct {
	Summary      string
	History      []string
	Contribution string
}

// Client builds the editor prompts and calls the completer. It holds no
// state between calls.
type Client struct {
	llm       llm.Completer
	model     string
	maxTokens int
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func NewClient(completer llm.Completer, opts ...Option) *Client {
	c := &Client{llm: completer, model: DefaultModel, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Revise merges contribution into original and returns the revised text.
func (c *Client) Revise(ctx context.Context, original, contribution string) (string, error) {
	const op = "revision.Revise"
	if strings.TrimSpace(original) == "" || strings.TrimSpace(contribution) == "" {
		return "", apperr.InvalidRequest(op, "original and contribution text are required")
	}

	return c.complete(ctx, op, llm.Prompt{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    editorSystem,
		User:      mergePrompt(original, contribution),
	})
}

// Summarize returns the running summary expanded with in.Contribution.
func (c *Client) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	const op = "revision.Summarize"
	if strings.TrimSpace(in.Contribution) == "" {
		return "", apperr.InvalidRequest(op, "contribution text is required")
	}

	return c.complete(ctx, op, llm.Prompt{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    summarizerSystem,
		User:      summaryPrompt(in),
	})
}

func (c *Client) complete(ctx context.Context, op string, prompt llm.Prompt) (string, error) {
	raw, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		return "", apperr.Upstream(op, err)
	}
	text := llm.StripFences(raw)
	if text == "" {
		return "", apperr.Upstream(op, llm.ErrEmptyResponse)
	}
	return text, nil
}

func mergePrompt(original, contribution string) string {
	var sb strings.Builder
	sb.WriteString("You are an AI editor responsible for refining content in a collaborative article.\n")
	sb.WriteString("The following is an original section and a new user contribution. Your job is to:\n")
	sb.WriteString("- Verify the accuracy of the new contribution.\n")
	sb.WriteString("- Remove any redundant or repeated content.\n")
	sb.WriteString("- Integrate the new contribution into the original section naturally.\n")
	sb.WriteString("- Maintain a clear and engaging writing style.\n\n")
	fmt.Fprintf(&sb, "**Original Section:**\n%q\n\n", original)
	fmt.Fprintf(&sb, "**New Contribution:**\n%q\n\n", contribution)
	sb.WriteString("Provide the revised and merged final section as a single paragraph.")
	return sb.String()
}

func summaryPrompt(in SummaryInput) string {
	var sb strings.Builder
	sb.WriteString("You maintain a continuously expanding summary of a collaborative article section.\n")
	sb.WriteString("- Add the new contribution's points to the current summary.\n")
	sb.WriteString("- Do not repeat points the summary already covers.\n")
	sb.WriteString("- Keep earlier points unless the new contribution corrects them.\n")
	sb.WriteString("- Answer with the updated summary only.\n\n")

	sb.WriteString("**Contribution History:**\n")
	if len(in.History) == 0 {
		sb.WriteString("(none yet)\n")
	}
	for i, h := range in.History {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, h)
	}

	summary := in.Summary
	if strings.TrimSpace(summary) == "" {
		summary = "(empty)"
	}
	fmt.Fprintf(&sb, "\n**Current Summary:**\n%s\n\n", summary)
	fmt.Fprintf(&sb, "**New Contribution:**\n%s\n", in.Contribution)
	return sb.String()
}
