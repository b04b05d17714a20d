package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_RequiresMySQL(t *testing.T) {
	t.Setenv("AI_PROVIDER", "none")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("MYSQL_DSN", "")
	assert.Equal(t, 1, run())
}
