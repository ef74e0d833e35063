package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("editor@example.org"))
	assert.True(t, ValidateEmail("first.last+cms@sub.example.co"))
	assert.False(t, ValidateEmail("editor"))
	assert.False(t, ValidateEmail("editor@localhost"))
	assert.False(t, ValidateEmail(""))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "needs more detail", SanitizeInput("  needs more detail \n"))
	assert.Equal(t, "", SanitizeInput(" \t\x00 "))
	assert.Equal(t, "ab", SanitizeInput("a\x00b"))
}
