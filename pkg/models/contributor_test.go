package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "getting started", Key("  Getting Started "))
	assert.Equal(t, Key("Alice"), Key("aLICE"))
}

func TestReservedContributor(t *testing.T) {
	for _, name := range []string{"Anonymous", "anonymous", " UNKNOWN "} {
		assert.True(t, ReservedContributor(name), name)
	}
	assert.False(t, ReservedContributor("Alice"))
}
