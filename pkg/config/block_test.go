package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlock(t *testing.T) {
	text := "# vantage agent settings\n" +
		"base-api-url = https://apis.example.com\n" +
		"\n" +
		"oidc-client-secret=abc=def\n" +
		"  oidc-domain =auth.example.com  \n"

	parsed, err := ParseBlock(text)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"base-api-url":       "https://apis.example.com",
		"oidc-client-secret": "abc=def",
		"oidc-domain":        "auth.example.com",
	}, parsed)
}

func TestParseBlockMalformedLine(t *testing.T) {
	parsed, err := ParseBlock("a=1\nnot a pair\nb=2")
	require.Error(t, err)
	assert.Nil(t, parsed)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 2, parseErr.Line)
	assert.Equal(t, "not a pair", parseErr.Text)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseBlockEmpty(t *testing.T) {
	parsed, err := ParseBlock("")
	require.NoError(t, err)
	assert.Empty(t, parsed)

	parsed, err = ParseBlock("# only a comment\n")
	require.NoError(t, err)
	assert.Empty(t, parsed)
}
