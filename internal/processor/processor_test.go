package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_ConvertHTMLToMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string // Expected substrings in output
	}{
		{
			name:     "converts headings",
			html:     `<html><body><h1>Title</h1><h2>Subtitle</h2></body></html>`,
			contains: []string{"# Title", "## Subtitle"},
		},
		{
			name:     "converts links",
			html:     `<html><body><p>Check <a href="https://example.com">this link</a>.</p></body></html>`,
			contains: []string{"[this link](https://example.com)"},
		},
		{
			name:     "converts inline code",
			html:     `<html><body><p>Use <code>go run</code> to execute.</p></body></html>`,
			contains: []string{"`go run`"},
		},
		{
			name:     "converts lists",
			html:     `<html><body><ul><li>Item 1</li><li>Item 2</li></ul></body></html>`,
			contains: []string{"Item 1", "Item 2"},
		},
	}

	p := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Convert(tt.html)
			require.NoError(t, err)

			for _, expected := range tt.contains {
				assert.Contains(t, result, expected)
			}
		})
	}
}

func TestProcessor_ExtractTitle(t *testing.T) {
	p := New()

	assert.Equal(t, "Page Title", p.ExtractTitle(`<html><head><title> Page Title </title></head><body><p>Content</p></body></html>`))
	assert.Empty(t, p.ExtractTitle(`<html><body><p>No title here</p></body></html>`))
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		content   string
		want      bool
	}{
		{"html media type", "text/html; charset=utf-8", "plain words", true},
		{"markdown media type", "text/markdown", "<p>looks like html</p>", false},
		{"plain media type", "text/plain", "<p>x</p>", false},
		{"doctype", "", "<!DOCTYPE html><html><body>x</body></html>", true},
		{"fragment", "", "Intro <p>React hooks explained</p>", true},
		{"markdown header", "", "# Hooks\n\nUse state.", false},
		{"markdown link", "", "See [docs](https://react.dev)", false},
		{"plain text", "", "just some words", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHTML(tt.mediaType, tt.content))
		})
	}
}

func TestIsMarkdownContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/markdown", true},
		{"text/x-markdown", true},
		{"text/markdown; charset=utf-8", true},
		{"text/html", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMarkdownContentType(tt.contentType))
		})
	}
}

func TestProcessor_Clean(t *testing.T) {
	p := New()

	md, title, err := p.Clean("", `<html><head><title>Hooks</title></head><body><h1>Intro</h1></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "Hooks", title)
	assert.Contains(t, md, "# Intro")

	md, title, err = p.Clean("text/plain", "  plain text  ")
	require.NoError(t, err)
	assert.Equal(t, "plain text", md)
	assert.Empty(t, title)
}
