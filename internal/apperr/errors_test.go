package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{InvalidRequest("op", "bad"), http.StatusBadRequest},
		{Unauthorized("op", "invalid credentials"), http.StatusUnauthorized},
		{NotFound("op", "missing"), http.StatusNotFound},
		{Conflict("op", "taken"), http.StatusConflict},
		{Upstream("op", errors.New("dial")), http.StatusBadGateway},
		{Persistence("op", errors.New("disk")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(fmt.Errorf("wrapped: %w", tc.err)), tc.err.Error())
	}
}

func TestMessageHidesCause(t *testing.T) {
	err := Persistence("article.Save", errors.New("sqlite: disk I/O error at /secret/path"))
	assert.Equal(t, "storage failure", Message(err))
	assert.Equal(t, "internal error", Message(errors.New("boom")))
	assert.True(t, errors.Is(Unauthorized("op", "x"), ErrUnauthorized))
	assert.False(t, errors.Is(Unauthorized("op", "x"), ErrNotFound))
}
