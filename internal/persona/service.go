package persona

import (
	"context"
	"strings"

	"collabwiki/internal/apperr"
	"collabwiki/internal/llm"
	"collabwiki/internal/logger"
)

// ChatTurn is one message of a client-held conversation.
type ChatTurn struct {
	Text string `json:"text"`
	User bool   `json:"user"`
}

type AskRequest struct {
	Question     string     `json:"question"`
	Conversation []ChatTurn `json:"conversation,omitempty"`
	Assistant    string     `json:"assistant,omitempty"`
}

type AskResult struct {
	Persona    string         `json:"persona"`
	Structured bool           `json:"structured"`
	Answer     map[string]any `json:"answer"`
}

type Service struct {
	catalog   *Catalog
	completer llm.Completer
	log       *logger.Logger
}

func NewService(catalog *Catalog, completer llm.Completer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{catalog: catalog, completer: completer, log: log.With("component", "persona")}
}

func (s *Service) Personas() []string {
	return s.catalog.IDs()
}

// Ask relays req to the persona's model and decodes the reply. A reply that is
// not a JSON object comes back under the persona's fallback field with
// Structured=false.
func (s *Service) Ask(ctx context.Context, personaID string, req AskRequest) (*AskResult, error) {
	const op = "persona.Ask"
	log := s.log.With("op", op, "persona", personaID)

	p, ok := s.catalog.Get(personaID)
	if !ok {
		err := apperr.NotFound(op, "unknown persona")
		log.Warn("request rejected", "kind", apperr.KindOf(err).String())
		return nil, err
	}

	prompt, err := buildPrompt(p, req)
	if err != nil {
		log.Warn("request rejected", "kind", apperr.KindOf(err).String())
		return nil, err
	}

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		log.Error("completion failed", "err", err)
		return nil, apperr.Upstream(op, err)
	}

	ans := llm.ParseStructured(raw, p.FallbackField)
	if !ans.Structured {
		log.Debug("reply was not a JSON object, using fallback field", "field", p.FallbackField)
	}
	return &AskResult{Persona: p.ID, Structured: ans.Structured, Answer: ans.Fields}, nil
}

func buildPrompt(p Persona, req AskRequest) (llm.Prompt, error) {
	const op = "persona.Ask"
	prompt := llm.Prompt{Model: p.Model, MaxTokens: p.MaxTokens}
	question := strings.TrimSpace(req.Question)

	if !p.Conversation {
		if question == "" {
			return llm.Prompt{}, apperr.InvalidRequest(op, "question is required")
		}
		prompt.System = p.systemFor("")
		prompt.User = question
		if instr := strings.TrimSpace(p.Instructions); instr != "" {
			prompt.User = instr + "\n\nUser Input: " + question
		}
		return prompt, nil
	}

	assistant := strings.TrimSpace(req.Assistant)
	if assistant == "" {
		return llm.Prompt{}, apperr.InvalidRequest(op, "assistant is required")
	}
	if len(req.Conversation) == 0 && question == "" {
		return llm.Prompt{}, apperr.InvalidRequest(op, "conversation is required")
	}

	prompt.System = p.systemFor(assistant)
	for _, turn := range req.Conversation {
		role := llm.RoleAssistant
		if turn.User {
			role = llm.RoleUser
		}
		prompt.History = append(prompt.History, llm.Message{Role: role, Content: turn.Text})
	}
	prompt.User = question
	return prompt, nil
}
