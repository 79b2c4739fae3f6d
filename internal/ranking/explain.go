package ranking

import (
	"fmt"
	"strings"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// contentTypeBenefits describes what each content type offers.
var contentTypeBenefits = map[string]string{
	"tutorial":        "It walks through the topic step by step.",
	"guide":           "It is a practical guide you can follow.",
	"course":          "It offers structured learning material.",
	"documentation":   "It is an authoritative reference.",
	"reference":       "It is a handy reference.",
	"example":         "It has working code you can adapt.",
	"project":         "It shows a complete project you can build on.",
	"best_practice":   "It collects proven practices.",
	"troubleshooting": "It covers common problems and their fixes.",
	"comparison":      "It compares the options side by side.",
	"research":        "It goes deep into the subject.",
}

// RelevanceBand names a score range.
func RelevanceBand(score float64) string {
	switch {
	case score >= 80:
		return "Highly relevant"
	case score >= 60:
		return "Strong match"
	case score >= 40:
		return "Good match"
	default:
		return "Potentially useful"
	}
}

func fastReason(matched []string, semantic, quality float64) string {
	var clauses []string
	if len(matched) > 0 {
		clauses = append(clauses, "Matches your technologies: "+strings.Join(matched, ", ")+".")
	}
	if semantic >= 0.5 {
		clauses = append(clauses, "Closely related to your request.")
	} else if semantic >= 0.3 {
		clauses = append(clauses, "Related to your request.")
	}
	if quality >= 8 {
		clauses = append(clauses, fmt.Sprintf("High quality (%.0f/10).", quality))
	}
	if len(clauses) == 0 {
		return "From your saved content."
	}
	return strings.Join(clauses, " ")
}

type reasonInput struct {
	score      float64
	matched    []string
	comp       components
	intent     *models.Intent
	content    models.NormalizedContent
	projectHit bool
}

func contextReason(in reasonInput) string {
	clauses := []string{RelevanceBand(in.score) + "."}

	switch {
	case len(in.matched) > 0:
		clauses = append(clauses, "Covers "+joinAnd(in.matched)+".")
	case in.comp.Technology > 0:
		clauses = append(clauses, "Related to your technology stack.")
	}

	if in.intent != nil && in.comp.ContentType >= 0.8 {
		clauses = append(clauses, fmt.Sprintf("Suits your goal to %s.", in.intent.Goal))
	}

	if in.comp.ContentType >= 0.8 {
		if b, ok := contentTypeBenefits[in.content.ContentType]; ok {
			clauses = append(clauses, b)
		}
	}

	if in.intent != nil {
		switch {
		case in.comp.Difficulty >= 1:
			clauses = append(clauses, fmt.Sprintf("Pitched at your %s level.", in.intent.LearningStage))
		case in.comp.Difficulty <= 0.3:
			clauses = append(clauses, fmt.Sprintf("May be %s for your %s level.", difficultyWord(in.content.Difficulty), in.intent.LearningStage))
		}
	}

	if in.projectHit && in.intent != nil {
		clauses = append(clauses, fmt.Sprintf("Relevant to your %s project.", strings.ReplaceAll(in.intent.ProjectType, "_", " ")))
	}

	return strings.Join(clauses, " ")
}

func difficultyWord(difficulty string) string {
	if difficulty == "beginner" {
		return "too basic"
	}
	return "challenging"
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
