// Package compat scores how well two athletes would train together, using an
// optional AI collaborator with a deterministic heuristic fallback.
package compat

import (
	"context"
	"fmt"
	"strings"

	"example.com/fitsocial/internal/domain"
)

// Scorer produces a compatibility recommendation for a viewer and a candidate.
type Scorer interface {
	Score(ctx context.Context, viewer, candidate domain.UserProfile) (domain.Recommendation, error)
}

const (
	baselineScore    = 50
	sharedSportBonus = 10
	maxSportBonus    = 30
	levelBonusStep   = 5
	maxLevelBonus    = 15
	locationBonus    = 5
)

// Heuristic is a pure scorer over sports, skill level and location.
type Heuristic struct{}

// Score implements Scorer. It never fails.
func (Heuristic) Score(_ context.Context, viewer, candidate domain.UserProfile) (domain.Recommendation, error) {
	return Evaluate(viewer, candidate), nil
}

// Evaluate computes the heuristic recommendation.
func Evaluate(viewer, candidate domain.UserProfile) domain.Recommendation {
	shared := SharedSports(viewer.Sports, candidate.Sports)

	score := baselineScore + min(len(shared)*sharedSportBonus, maxSportBonus)

	vr, vok := viewer.Level.Rank()
	cr, cok := candidate.Level.Rank()
	if vok && cok {
		gap := vr - cr
		if gap < 0 {
			gap = -gap
		}
		score += max(maxLevelBonus-gap*levelBonusStep, 0)
	}

	sameCity := viewer.Location != "" && strings.EqualFold(strings.TrimSpace(viewer.Location), strings.TrimSpace(candidate.Location))
	if sameCity {
		score += locationBonus
	}
	score = clampScore(score)

	reasoning := "No shared sports yet, a good chance to try something new."
	suggestion := "Get-to-know-you workout"
	if len(shared) > 0 {
		names := make([]string, 0, len(shared))
		for _, s := range shared {
			names = append(names, string(s))
		}
		reasoning = fmt.Sprintf("You share %d sport(s): %s.", len(shared), strings.Join(names, ", "))
		suggestion = fmt.Sprintf("Joint %s session", shared[0])
	}
	if sameCity {
		reasoning += " You train in the same city."
	}

	return domain.Recommendation{
		Score:             score,
		Reasoning:         reasoning,
		SuggestedActivity: suggestion,
		Source:            domain.SourceHeuristic,
	}
}

// SharedSports returns the sports in a that also appear in b, in a's order.
func SharedSports(a, b []domain.SportType) []domain.SportType {
	set := make(map[domain.SportType]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]domain.SportType, 0)
	seen := make(map[domain.SportType]struct{})
	for _, s := range a {
		if _, ok := set[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clampScore(score int) int {
	return min(max(score, 0), 100)
}
