// Package improv runs the "Yes, and…" improvisation game. The game keeps no
// server-side session: callers pass the scenario index back on every turn.
package improv

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"collabwiki/internal/apperr"
	"collabwiki/internal/llm"
	"collabwiki/internal/logger"
)

const (
	DefaultModel     = "gpt-3.5-turbo"
	DefaultMaxTokens = 100

	requiredOpener = "Yes, and"
	hintReply      = "Yes, and… you suddenly realize your socks have superpowers!"
	nudgeReply     = "Oops! You need to start your response with 'Yes, and…' Try again!"
)

// Scenarios is the fixed, ordered scenario table. Indexes are part of the
// client contract.
var Scenarios = []string{
	"You're a detective solving a case with a talking cat as your partner.",
	"You're a pizza delivery guy from the future, but all pizzas are now in liquid form.",
	"You're an astronaut, but you just realized you're afraid of heights.",
	"You're a pirate who's afraid of water. What's your solution?",
	"You're a superhero, but your only power is the ability to speak fluent dolphin.",
}

type Turn struct {
	UserInput     string `json:"userInput"`
	ScenarioIndex *int   `json:"scenarioIndex,omitempty"`
	Hint          bool   `json:"hint,omitempty"`
}

type Reply struct {
	AIResponse    string `json:"aiResponse"`
	ScenarioIndex *int   `json:"scenarioIndex,omitempty"`
}

type Game struct {
	completer llm.Completer
	model     string
	log       *logger.Logger
	intn      func(n int) int
}

type Option func(*Game)

func WithModel(model string) Option {
	return func(g *Game) {
		if model != "" {
			g.model = model
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(g *Game) {
		if l != nil {
			g.log = l
		}
	}
}

// WithRand replaces the scenario picker; intn must return a value in [0,n).
func WithRand(intn func(n int) int) Option {
	return func(g *Game) {
		if intn != nil {
			g.intn = intn
		}
	}
}

func NewGame(completer llm.Completer, opts ...Option) *Game {
	g := &Game{
		completer: completer,
		model:     DefaultModel,
		log:       logger.Nop(),
		intn:      rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("component", "improv")
	return g
}

// Play advances the game by one turn.
func (g *Game) Play(ctx context.Context, t Turn) (*Reply, error) {
	const op = "improv.Play"

	if t.ScenarioIndex == nil {
		idx := g.intn(len(Scenarios))
		return &Reply{AIResponse: "Yes, and… " + Scenarios[idx], ScenarioIndex: &idx}, nil
	}
	idx := *t.ScenarioIndex
	if idx < 0 || idx >= len(Scenarios) {
		return nil, apperr.InvalidRequest(op, fmt.Sprintf("scenarioIndex must be between 0 and %d", len(Scenarios)-1))
	}
	if t.Hint {
		return &Reply{AIResponse: hintReply}, nil
	}

	input := strings.TrimSpace(t.UserInput)
	if !strings.HasPrefix(input, requiredOpener) {
		return &Reply{AIResponse: nudgeReply}, nil
	}

	text, err := g.completer.Complete(ctx, llm.Prompt{
		Model:     g.model,
		MaxTokens: DefaultMaxTokens,
		System:    instructions(Scenarios[idx], input),
		User:      input,
	})
	if err != nil {
		g.log.Error("completion failed", "op", op, "scenario", idx, "err", err)
		return nil, apperr.Upstream(op, err)
	}
	return &Reply{AIResponse: strings.TrimSpace(text)}, nil
}

func instructions(scenario, input string) string {
	var b strings.Builder
	b.WriteString("You are playing the 'Yes, And…' improv game with the user.\n")
	b.WriteString("Your responses should always build on what the user says in a humorous and creative way.\n\n")
	b.WriteString("Example:\n")
	b.WriteString("AI: \"You're a pirate who's afraid of water. What's your solution?\"\n")
	b.WriteString("User: \"Yes, and I've decided my ship will only sail on land now!\"\n")
	b.WriteString("AI: \"Yes, and your crew is questioning why they have to row on a desert.\"\n\n")
	b.WriteString("Never end the story; always keep it going with a new humorous twist.\n")
	b.WriteString("Keep responses short (1-2 sentences) and witty.\n\n")
	fmt.Fprintf(&b, "User's Input: %q\n", input)
	fmt.Fprintf(&b, "Scenario: %q\n", scenario)
	return b.String()
}
