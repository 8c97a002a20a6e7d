package social

import (
	"fmt"

	"example.com/fitsocial/internal/domain"
)

// Profile returns the registry profile with the engine owned social fields filled in.
func (e *Engine) Profile(id string) (domain.UserProfile, error) {
	profile, err := e.registry.Get(id)
	if err != nil {
		return domain.UserProfile{}, err
	}
	streak := e.Streak(id)
	profile.Streak = streak.Streak
	profile.LastWorkoutAt = streak.LastWorkoutAt
	profile.Following = e.graph.followingOf(id)
	profile.FollowerIDs = e.graph.followersOf(id)
	return profile, nil
}

// Stats aggregates the user's ledger totals and social counts.
func (e *Engine) Stats(id string) (domain.ProfileStats, error) {
	if _, err := e.registry.Get(id); err != nil {
		return domain.ProfileStats{}, err
	}

	stats := domain.ProfileStats{UserID: id}
	for _, en := range e.ledger.entriesOf(id) {
		stats.TotalWorkouts++
		stats.TotalMinutes += en.log.DurationMinutes
	}
	streak := e.Streak(id)
	stats.Streak = streak.Streak
	stats.LastWorkoutAt = streak.LastWorkoutAt
	stats.FollowingCount = len(e.graph.followingOf(id))
	stats.FollowerCount = len(e.graph.followersOf(id))
	return stats, nil
}

// FollowingProfiles resolves the users id follows. Ids that no longer resolve
// in the registry are skipped.
func (e *Engine) FollowingProfiles(id string) ([]domain.UserProfile, error) {
	if _, err := e.registry.Get(id); err != nil {
		return nil, err
	}

	following := make(map[string]struct{})
	for _, target := range e.graph.followingOf(id) {
		following[target] = struct{}{}
	}

	out := make([]domain.UserProfile, 0, len(following))
	for _, profile := range e.registry.List() {
		if _, ok := following[profile.ID]; ok {
			out = append(out, profile)
		}
	}
	return out, nil
}

// ResolveChatPartner checks that a chat target exists and is not the viewer.
func (e *Engine) ResolveChatPartner(viewerID, partnerID string) (domain.UserProfile, error) {
	if viewerID == partnerID {
		return domain.UserProfile{}, fmt.Errorf("%w: cannot start a chat with yourself", domain.ErrInvalidOperation)
	}
	if _, err := e.registry.Get(viewerID); err != nil {
		return domain.UserProfile{}, err
	}
	return e.registry.Get(partnerID)
}
