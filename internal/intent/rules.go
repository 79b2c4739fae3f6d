package intent

import (
	"context"
	"strings"
	"unicode"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// keywordSet maps a label to the words and phrases that vote for it.
// Order matters: earlier labels win ties.
type keywordSet []struct {
	label    string
	keywords []string
}

var goalKeywords = keywordSet{
	{models.GoalDebug, []string{"debug", "debugging", "fix", "fixing", "error", "errors", "bug", "bugs", "broken", "crash", "crashes", "troubleshoot", "failing", "not working"}},
	{models.GoalOptimize, []string{"optimize", "optimise", "optimizing", "optimization", "performance", "speed up", "faster", "improve", "scale", "scaling", "refactor", "best practices"}},
	{models.GoalBuild, []string{"build", "building", "create", "creating", "implement", "implementing", "develop", "make", "setup", "set up", "integrate", "add"}},
	{models.GoalResearch, []string{"research", "compare", "comparison", "evaluate", "explore", "investigate", "versus", "vs", "alternatives", "pros and cons", "which"}},
	{models.GoalLearn, []string{"learn", "learning", "understand", "tutorial", "introduction", "intro", "basics", "guide", "how to", "getting started", "explain", "course"}},
}

var stageKeywords = keywordSet{
	{models.StageBeginner, []string{"beginner", "beginners", "basics", "basic", "introduction", "intro", "getting started", "first", "new to", "fundamentals", "simple", "101"}},
	{models.StageAdvanced, []string{"advanced", "expert", "deep dive", "internals", "production", "at scale", "architecture", "complex", "in depth", "mastering"}},
}

var projectTypeKeywords = keywordSet{
	{"web_app", []string{"web", "website", "webapp", "frontend", "react", "vue", "angular", "nextjs", "next.js", "svelte", "html", "css", "spa"}},
	{"api", []string{"api", "apis", "rest", "graphql", "endpoint", "endpoints", "backend", "server", "grpc", "microservice", "microservices"}},
	{"mobile", []string{"mobile", "ios", "android", "flutter", "react native", "swiftui", "app store"}},
	{"data", []string{"data", "analytics", "machine learning", "ml", "pandas", "etl", "dataset", "notebook", "warehouse"}},
	{"cli", []string{"cli", "command line", "terminal", "shell", "script", "scripts"}},
	{"devops", []string{"devops", "docker", "kubernetes", "k8s", "ci", "cd", "terraform", "infrastructure", "helm", "ansible"}},
}

var urgencyKeywords = keywordSet{
	{models.UrgencyHigh, []string{"urgent", "urgently", "asap", "quickly", "quick", "deadline", "today", "tonight", "immediately", "hurry", "right now", "emergency"}},
	{models.UrgencyLow, []string{"eventually", "someday", "whenever", "no rush", "long term", "long-term", "curious", "leisure"}},
}

var focusKeywords = keywordSet{
	{"performance", []string{"performance", "optimize", "optimise", "speed", "latency", "fast", "faster", "cache", "caching", "memory"}},
	{"security", []string{"security", "secure", "auth", "authentication", "authorization", "oauth", "jwt", "vulnerability", "encryption"}},
	{"testing", []string{"test", "tests", "testing", "tdd", "unit test", "e2e", "coverage", "mock", "mocking"}},
	{"architecture", []string{"architecture", "design pattern", "design patterns", "patterns", "structure", "microservices", "clean code", "modular"}},
	{"deployment", []string{"deploy", "deploying", "deployment", "docker", "kubernetes", "hosting", "ci", "cd", "release"}},
	{"ui", []string{"ui", "ux", "css", "layout", "component", "components", "styling", "responsive", "design system"}},
	{"database", []string{"database", "databases", "sql", "postgres", "postgresql", "mysql", "mongodb", "redis", "schema", "query", "queries", "orm"}},
}

// techVocabulary maps recognized words to canonical technology names.
var techVocabulary = map[string]string{
	"javascript": "javascript", "js": "javascript",
	"typescript": "typescript", "ts": "typescript",
	"react": "react", "reactjs": "react",
	"vue": "vue", "vuejs": "vue",
	"angular": "angular", "svelte": "svelte",
	"nextjs": "nextjs", "next.js": "nextjs",
	"node": "node", "nodejs": "node", "node.js": "node",
	"express": "express", "deno": "deno",
	"python": "python", "django": "django", "flask": "flask", "fastapi": "fastapi",
	"pandas": "pandas", "numpy": "numpy", "pytorch": "pytorch", "tensorflow": "tensorflow",
	"go": "go", "golang": "go",
	"rust": "rust", "java": "java", "spring": "spring", "kotlin": "kotlin",
	"swift": "swift", "swiftui": "swift", "flutter": "flutter", "dart": "dart",
	"ruby": "ruby", "rails": "rails", "php": "php", "laravel": "laravel",
	"c#": "csharp", "csharp": "csharp", ".net": "dotnet", "dotnet": "dotnet",
	"c++": "cpp", "cpp": "cpp",
	"html": "html", "css": "css", "tailwind": "tailwind", "sass": "sass",
	"sql": "sql", "postgres": "postgresql", "postgresql": "postgresql", "mysql": "mysql",
	"sqlite": "sqlite", "mongodb": "mongodb", "mongo": "mongodb", "redis": "redis",
	"elasticsearch": "elasticsearch", "kafka": "kafka", "graphql": "graphql", "grpc": "grpc",
	"docker": "docker", "kubernetes": "kubernetes", "k8s": "kubernetes",
	"terraform": "terraform", "aws": "aws", "gcp": "gcp", "azure": "azure",
	"linux": "linux", "git": "git",
}

// RuleStrategy is the deterministic keyword classifier. It always resolves.
type RuleStrategy struct{}

// NewRuleStrategy creates the keyword layer.
func NewRuleStrategy() *RuleStrategy { return &RuleStrategy{} }

// Name implements Strategy.
func (s *RuleStrategy) Name() string { return models.IntentSourceRules }

// Resolve implements Strategy.
func (s *RuleStrategy) Resolve(_ context.Context, in Input) Result {
	return Resolved(s.Classify(in))
}

// Classify reads an intent from keywords in the input text.
func (s *RuleStrategy) Classify(in Input) models.Intent {
	t := newTokens(in.Text)

	i := models.Intent{
		Goal:          goalKeywords.best(t, models.GoalLearn),
		LearningStage: stageKeywords.best(t, models.StageIntermediate),
		ProjectType:   projectTypeKeywords.best(t, "general"),
		Urgency:       urgencyKeywords.best(t, models.UrgencyMedium),
		FocusAreas:    focusKeywords.all(t),
		ContentHash:   in.Hash(),
		Source:        models.IntentSourceRules,
	}

	switch i.LearningStage {
	case models.StageBeginner:
		i.ComplexityPreference = "simple"
	case models.StageAdvanced:
		i.ComplexityPreference = "complex"
	default:
		i.ComplexityPreference = "moderate"
	}

	switch i.Urgency {
	case models.UrgencyHigh:
		i.TimeConstraint = models.TimeTight
	case models.UrgencyLow:
		i.TimeConstraint = models.TimeFlexible
	default:
		i.TimeConstraint = models.TimeModerate
	}

	techs := append([]string{}, in.Technologies...)
	for _, w := range t.words {
		if canon, ok := techVocabulary[w]; ok {
			techs = append(techs, canon)
		}
	}
	i.SpecificTechnologies = models.NormalizeTechnologies(techs)

	return i.Normalize()
}

// best returns the label with the most keyword hits, or def when none hit.
func (ks keywordSet) best(t tokens, def string) string {
	bestLabel, bestCount := def, 0
	for _, e := range ks {
		if n := t.count(e.keywords); n > bestCount {
			bestLabel, bestCount = e.label, n
		}
	}
	return bestLabel
}

// all returns every label with at least one hit, in declaration order.
func (ks keywordSet) all(t tokens) []string {
	out := []string{}
	for _, e := range ks {
		if t.count(e.keywords) > 0 {
			out = append(out, e.label)
		}
	}
	return out
}

type tokens struct {
	words  []string
	set    map[string]bool
	padded string // " w1 w2 ... " for phrase lookups
}

// newTokens lower-cases and splits text into words. '.', '+' and '#' stay
// inside words so names like node.js, c++ and c# survive.
func newTokens(text string) tokens {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '+' && r != '#' && r != '-'
	})

	t := tokens{set: make(map[string]bool, len(fields))}
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if f == "" {
			continue
		}
		t.words = append(t.words, f)
		t.set[f] = true
	}
	t.padded = " " + strings.Join(t.words, " ") + " "
	return t
}

func (t tokens) count(keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(k, " ") {
			if strings.Contains(t.padded, " "+k+" ") {
				n++
			}
		} else if t.set[k] {
			n++
		}
	}
	return n
}
