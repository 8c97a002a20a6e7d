package compat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"example.com/fitsocial/internal/domain"
	"example.com/fitsocial/internal/observability"
)

// Matcher prefers the AI scorer and falls back to the heuristic whenever the AI
// is not configured, times out, fails or returns something unusable.
type Matcher struct {
	ai       Scorer
	fallback Heuristic
	timeout  time.Duration
	logger   *zap.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithAIScorer enables the AI collaborator.
func WithAIScorer(s Scorer) MatcherOption {
	return func(m *Matcher) { m.ai = s }
}

// WithTimeout bounds each AI call.
func WithTimeout(d time.Duration) MatcherOption {
	return func(m *Matcher) { m.timeout = d }
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(logger *zap.Logger) MatcherOption {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMatcher constructs a Matcher.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{timeout: 8 * time.Second, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns a recommendation and never fails.
func (m *Matcher) Match(ctx context.Context, viewer, candidate domain.UserProfile) domain.Recommendation {
	if m.ai != nil {
		callCtx := ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}

		rec, err := m.ai.Score(callCtx, viewer, candidate)
		if err == nil {
			rec.Source = domain.SourceAI
			rec.Score = clampScore(rec.Score)
			observability.RecordRecommendation(string(rec.Source))
			return rec
		}
		m.logger.Warn("ai compatibility unavailable, using heuristic",
			zap.String("viewer_id", viewer.ID),
			zap.String("candidate_id", candidate.ID),
			zap.Error(err))
	}

	rec := Evaluate(viewer, candidate)
	observability.RecordRecommendation(string(rec.Source))
	return rec
}
