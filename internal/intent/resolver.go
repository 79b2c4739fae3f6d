// Package intent turns free-text requests into a structured models.Intent.
//
// Resolution walks an ordered list of strategies and takes the first one that
// resolves. The usual chain is LLM classification, then a stored per-project
// analysis, then a keyword classifier that always answers.
package intent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// ErrUnavailable marks a strategy that could not answer for this input.
var ErrUnavailable = errors.New("intent strategy unavailable")

// Input is what the resolver classifies.
type Input struct {
	Text         string
	UserID       string
	ProjectID    string
	Technologies []string // declared by the caller, merged into the result
}

// Hash is the content hash of the input text.
func (in Input) Hash() string {
	return models.ContentHash(in.Text)
}

// Result is the outcome of a single strategy: either a resolved intent or
// the reason the strategy was unavailable.
type Result struct {
	Intent   models.Intent
	Resolved bool
	Err      error
}

// Resolved wraps a successful classification.
func Resolved(i models.Intent) Result {
	return Result{Intent: i, Resolved: true}
}

// Unavailable wraps a failure reason.
func Unavailable(err error) Result {
	if err == nil {
		err = ErrUnavailable
	}
	return Result{Err: err}
}

// Strategy is one layer of the fallback chain.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, in Input) Result
}

// Resolver tries strategies in order.
type Resolver struct {
	strategies []Strategy
	fallback   *RuleStrategy
	logger     *slog.Logger
	now        func() time.Time
}

// NewResolver creates a resolver over the given strategies. The keyword
// classifier answers when every strategy is unavailable.
func NewResolver(logger *slog.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		strategies: strategies,
		fallback:   NewRuleStrategy(),
		logger:     logger.With("component", "intent"),
		now:        time.Now,
	}
}

// Resolve returns the first resolved intent. Strategy failures are logged and
// never returned.
func (r *Resolver) Resolve(ctx context.Context, in Input) models.Intent {
	hash := in.Hash()

	for _, s := range r.strategies {
		res := r.try(ctx, s, in)
		if res.Resolved {
			return r.finish(res.Intent, hash, s.Name())
		}
		r.logger.Warn("intent strategy unavailable, trying next",
			"strategy", s.Name(),
			"project_id", in.ProjectID,
			"error", res.Err,
		)
	}

	return r.finish(r.fallback.Classify(in), hash, models.IntentSourceRules)
}

// try runs one strategy, turning a panic into an unavailable result.
func (r *Resolver) try(ctx context.Context, s Strategy, in Input) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("intent strategy panicked", "strategy", s.Name(), "panic", p)
			res = Unavailable(ErrUnavailable)
		}
	}()
	return s.Resolve(ctx, in)
}

func (r *Resolver) finish(i models.Intent, hash, source string) models.Intent {
	i = i.Normalize()
	if i.ContentHash == "" {
		i.ContentHash = hash
	}
	if i.Source == "" {
		i.Source = source
	}
	if i.AnalyzedAt.IsZero() {
		i.AnalyzedAt = r.now()
	}
	r.logger.Debug("intent resolved", "source", i.Source, "goal", i.Goal, "stage", i.LearningStage)
	return i
}
