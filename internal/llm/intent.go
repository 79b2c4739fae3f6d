package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ProjectContext is optional project information added to a classification prompt.
type ProjectContext struct {
	Title        string
	Description  string
	Technologies []string
}

// Classification is the structured intent returned by the model.
type Classification struct {
	Goal                 string   `json:"goal"`
	LearningStage        string   `json:"learning_stage"`
	ProjectType          string   `json:"project_type"`
	Urgency              string   `json:"urgency"`
	SpecificTechnologies []string `json:"specific_technologies"`
	ComplexityPreference string   `json:"complexity_preference"`
	TimeConstraint       string   `json:"time_constraint"`
	FocusAreas           []string `json:"focus_areas"`
}

var validGoals = map[string]bool{"learn": true, "build": true, "optimize": true, "debug": true, "research": true}

// ClassifyIntent asks the model for a structured reading of a request.
// A nil project leaves the prompt without project context.
func (c *Client) ClassifyIntent(ctx context.Context, text string, project *ProjectContext) (*Classification, error) {
	prompt := buildIntentPrompt(truncate(text, MaxInputChars), project)

	slog.Debug("classifying intent", "text_len", len(text), "with_project", project != nil)
	resp, err := c.CompleteWithMaxTokens(ctx, prompt, 300)
	if err != nil {
		return nil, fmt.Errorf("failed to classify intent: %w", err)
	}
	return parseClassification(resp)
}

func buildIntentPrompt(text string, project *ProjectContext) string {
	var b strings.Builder
	b.WriteString(`You classify what a software developer is trying to achieve so saved learning content can be recommended.

REQUEST:
`)
	b.WriteString(text)
	b.WriteString("\n")

	if project != nil {
		fmt.Fprintf(&b, "\nPROJECT CONTEXT:\nTitle: %s\nDescription: %s\nTechnologies: %s\n",
			project.Title, truncate(project.Description, 1000), strings.Join(project.Technologies, ", "))
	}

	b.WriteString(`
Return ONLY a JSON object with these fields:
{
  "goal": "learn|build|optimize|debug|research",
  "learning_stage": "beginner|intermediate|advanced",
  "project_type": "web_app|api|mobile|data|cli|devops|general",
  "urgency": "low|medium|high",
  "specific_technologies": ["lower-case technology names"],
  "complexity_preference": "simple|moderate|complex",
  "time_constraint": "tight|moderate|flexible",
  "focus_areas": ["performance|security|testing|architecture|deployment|ui|database"]
}`)
	return b.String()
}

func parseClassification(resp string) (*Classification, error) {
	raw, ok := extractJSON(resp)
	if !ok {
		return nil, fmt.Errorf("%w: no json object", ErrMalformedResponse)
	}

	var cl Classification
	if err := json.Unmarshal([]byte(raw), &cl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	cl.Goal = strings.ToLower(strings.TrimSpace(cl.Goal))
	if !validGoals[cl.Goal] {
		return nil, fmt.Errorf("%w: unknown goal %q", ErrMalformedResponse, cl.Goal)
	}
	return &cl, nil
}
