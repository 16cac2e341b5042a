package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabwiki/internal/article"
	"collabwiki/internal/llm"
	"collabwiki/pkg/database"
	"collabwiki/pkg/utils"
)

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(utils.LLMConfig{Provider: utils.ProviderEcho})
	require.NoError(t, err)
	assert.IsType(t, llm.Echo{}, c)

	c, err = NewCompleter(utils.LLMConfig{Provider: utils.ProviderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIClient{}, c)

	_, err = NewCompleter(utils.LLMConfig{Provider: utils.ProviderOpenAI})
	assert.Error(t, err)

	_, err = NewCompleter(utils.LLMConfig{Provider: "other"})
	assert.Error(t, err)
}

func TestBuild_EchoProvider(t *testing.T) {
	cfg := utils.Defaults()
	cfg.LLM.Provider = utils.ProviderEcho
	cfg.DBPath = filepath.Join(t.TempDir(), "app.db")

	db, err := database.Open(DatabaseConfig(cfg))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(db))

	svc, err := Build(cfg, db, nil, nil)
	require.NoError(t, err)

	res, err := svc.Articles.Merge(context.Background(), article.MergeRequest{
		ArticleTitle: "Guide", SectionTitle: "Intro", OriginalContent: "Hello", NewContribution: "World",
	})
	require.NoError(t, err)
	assert.Contains(t, res.UpdatedSection, "World")
	assert.NotEmpty(t, svc.Personas.Personas())
}
