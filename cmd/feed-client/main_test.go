package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollow_FormatsAndFilters(t *testing.T) {
	in := strings.Join([]string{
		`{"type":"welcome","transport":"tcp","clients":2}`,
		`{"type":"section.merged","article_id":"a1","article_title":"Guide","section_title":"Intro","contributor":"Alice","version":3}`,
		`{"type":"article.created","article_id":"a2","article_title":"Other","version":1}`,
		`not json`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, follow(strings.NewReader(in), &out, false, "guide"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"connected via tcp (2 subscribers)",
		"section.merged Guide / Intro by Alice (v3)",
		"not json",
	}, lines)
}

func TestFollow_Raw(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, follow(strings.NewReader(`{"type":"x"}`), &out, true, ""))
	assert.Equal(t, "{\"type\":\"x\"}\n", out.String())
}
