// Package app wires configuration, storage and the LLM client into the
// services shared by the collabwiki binaries.
package app

import (
	"database/sql"
	"fmt"

	"collabwiki/internal/article"
	"collabwiki/internal/auth"
	"collabwiki/internal/improv"
	"collabwiki/internal/llm"
	"collabwiki/internal/logger"
	"collabwiki/internal/persona"
	"collabwiki/internal/revision"
	"collabwiki/pkg/database"
	"collabwiki/pkg/utils"
)

type Services struct {
	Articles  *article.Service
	Personas  *persona.Service
	Improv    *improv.Game
	Users     *auth.Repo
	Accounts  *auth.Accounts
	Tokens    auth.TokenService
	Completer llm.Completer
}

// DatabaseConfig resolves the SQLite location, preferring cfg.DBPath.
func DatabaseConfig(cfg utils.Config) database.Config {
	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	return dbCfg
}

// NewCompleter returns the completion client selected by cfg.LLM.Provider.
func NewCompleter(cfg utils.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case utils.ProviderEcho:
		return llm.Echo{}, nil
	case utils.ProviderOpenAI, "":
		c, err := llm.NewOpenAIClient(llm.Settings{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Build constructs every service. pub may be nil.
func Build(cfg utils.Config, db *sql.DB, pub article.Publisher, log *logger.Logger) (*Services, error) {
	completer, err := NewCompleter(cfg.LLM)
	if err != nil {
		return nil, err
	}

	reviser := revision.NewClient(completer,
		revision.WithModel(cfg.LLM.MergeModel),
		revision.WithMaxTokens(cfg.LLM.MaxTokens),
	)
	opts := []article.Option{
		article.WithLogger(log),
		article.WithMaxAttempts(cfg.MaxMergeAttempts),
	}
	if pub != nil {
		opts = append(opts, article.WithPublisher(pub))
	}

	catalog, err := persona.Builtin()
	if err != nil {
		return nil, err
	}

	users := auth.NewRepo(db)
	tokens := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration,
	}

	return &Services{
		Articles:  article.NewService(article.NewRepo(db), reviser, opts...),
		Personas:  persona.NewService(catalog, completer, log),
		Improv:    improv.NewGame(completer, improv.WithModel(cfg.LLM.Model), improv.WithLogger(log)),
		Users:     users,
		Accounts:  auth.NewAccounts(users, tokens, auth.WithAccountsLogger(log)),
		Tokens:    tokens,
		Completer: completer,
	}, nil
}
