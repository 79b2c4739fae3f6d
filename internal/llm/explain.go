package llm

import (
	"context"
	"fmt"
	"strings"
)

// ExplainRequest describes one recommended item and the user it is for.
type ExplainRequest struct {
	Title        string
	URL          string
	Summary      string
	Technologies []string
	UserRequest  string
	Goal         string
	Stage        string
}

// maxExplanationChars bounds what is shown to users.
const maxExplanationChars = 400

// Explain writes a one or two sentence explanation of why an item fits the
// user's request.
func (c *Client) Explain(ctx context.Context, req ExplainRequest) (string, error) {
	prompt := fmt.Sprintf(`You explain to a developer why a saved resource is useful for what they are working on.

DEVELOPER REQUEST: %s
GOAL: %s
EXPERIENCE: %s

RESOURCE:
Title: %s
URL: %s
Technologies: %s
Excerpt: %s

Write one or two short sentences addressed to the developer. No preamble, no lists, no quotes.`,
		truncate(req.UserRequest, 500), req.Goal, req.Stage,
		req.Title, req.URL, strings.Join(req.Technologies, ", "), truncate(req.Summary, 1000))

	resp, err := c.CompleteWithMaxTokens(ctx, prompt, 120)
	if err != nil {
		return "", fmt.Errorf("failed to explain recommendation: %w", err)
	}

	resp = strings.Trim(strings.TrimSpace(resp), `"`)
	if resp == "" {
		return "", fmt.Errorf("%w: empty explanation", ErrMalformedResponse)
	}
	return truncate(resp, maxExplanationChars), nil
}
