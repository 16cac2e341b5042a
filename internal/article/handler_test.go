package article

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabwiki/internal/apperr"
	"collabwiki/internal/auth"
	"collabwiki/pkg/models"
)

var testTokens = auth.TokenService{Secret: []byte("test-secret"), Issuer: "collabwiki", Duration: time.Hour}

func newTestHandler(t *testing.T, rev Reviser) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newTestService(t, newTestRepo(t), rev)
	r := gin.New()
	NewHandler(svc, testTokens, nil).RegisterRoutes(r.Group("/api"))
	return r
}

func call(t *testing.T, r http.Handler, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func TestHandler_MergeAndHistory(t *testing.T) {
	r := newTestHandler(t, &fakeReviser{})

	var merged MergeResult
	code := call(t, r, http.MethodPost, "/api/contributions", "", gin.H{
		"article_title":    "Guide",
		"section_title":    "Getting Started",
		"original_content": "Hello",
		"new_contribution": "**World**",
		"contributor":      "Alice",
	}, &merged)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Hello **World**", merged.UpdatedSection)

	var hist historyResponse
	path := "/api/articles/" + merged.ArticleID + "/sections/" + url.PathEscape("getting started") + "/history?render=html"
	code = call(t, r, http.MethodGet, path, "", nil, &hist)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Getting Started", hist.SectionTitle)
	require.Len(t, hist.Modifications, 1)
	assert.Equal(t, "Alice", hist.Modifications[0].Contributor)
	assert.Contains(t, hist.CurrentContentHTML, "<strong>World</strong>")
}

func TestHandler_TokenOverridesContributor(t *testing.T) {
	r := newTestHandler(t, &fakeReviser{})
	token, _, err := testTokens.Sign(&auth.Account{ID: "u1", Name: "carol"})
	require.NoError(t, err)

	var merged MergeResult
	code := call(t, r, http.MethodPost, "/api/contributions", token, gin.H{
		"article_title": "A", "section_title": "S", "original_content": "o", "new_contribution": "n", "contributor": "mallory",
	}, &merged)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "carol", merged.Contribution.Contributor)
}

func TestHandler_Summary(t *testing.T) {
	r := newTestHandler(t, &fakeReviser{})

	var res SummaryResult
	code := call(t, r, http.MethodPost, "/api/contributions/summary", "", gin.H{
		"article_title": "Notes", "section_title": "Day 1", "new_contribution": "We met.",
	}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Summary: We met.", res.UpdatedSummary)
	assert.Equal(t, models.AnonymousContributor, res.Contribution.Contributor)
}

func TestHandler_ErrorMapping(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		r := newTestHandler(t, &fakeReviser{})
		req := httptest.NewRequest(http.MethodPost, "/api/contributions", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		r := newTestHandler(t, &fakeReviser{})
		var body map[string]string
		code := call(t, r, http.MethodPost, "/api/contributions", "", gin.H{"article_title": "A"}, &body)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("upstream", func(t *testing.T) {
		r := newTestHandler(t, &fakeReviser{err: apperr.Upstream("revision.Revise", errors.New("api key sk-secret rejected"))})
		var body map[string]string
		code := call(t, r, http.MethodPost, "/api/contributions", "", gin.H{
			"article_title": "A", "section_title": "S", "original_content": "o", "new_contribution": "n",
		}, &body)
		assert.Equal(t, http.StatusBadGateway, code)
		assert.NotContains(t, body["error"], "sk-secret")
	})

	t.Run("history not found", func(t *testing.T) {
		r := newTestHandler(t, &fakeReviser{})
		code := call(t, r, http.MethodGet, "/api/articles/missing/sections/intro/history", "", nil, nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestHandler_CreateListAndGet(t *testing.T) {
	r := newTestHandler(t, &fakeReviser{})

	var created models.Article
	code := call(t, r, http.MethodPost, "/api/articles", "", gin.H{
		"title":    "Guide",
		"author":   gin.H{"name": "Bob"},
		"sections": []gin.H{{"title": "Intro", "content": "Hello"}},
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, int64(1), created.Version)

	code = call(t, r, http.MethodPost, "/api/articles", "", gin.H{"title": "guide"}, nil)
	assert.Equal(t, http.StatusConflict, code)

	var got models.Article
	code = call(t, r, http.MethodGet, "/api/articles?title=GUIDE", "", nil, &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "Hello", got.Sections[0].Content)

	code = call(t, r, http.MethodGet, "/api/articles?title=nothing", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	var list struct {
		Items []models.Article `json:"items"`
		Count int              `json:"count"`
	}
	code = call(t, r, http.MethodGet, "/api/articles", "", nil, &list)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, list.Count)
}
