package social

import (
	"fmt"
	"slices"
	"sort"

	"example.com/fitsocial/internal/domain"
)

// Restore loads persisted state into an empty engine. Activities are indexed
// oldest first so insertion order matches creation order.
func (e *Engine) Restore(snapshot domain.Snapshot) error {
	for _, edge := range snapshot.Follows {
		if edge.FollowerID == edge.TargetID {
			return fmt.Errorf("%w: persisted self-follow for %s", domain.ErrInvalidOperation, edge.FollowerID)
		}
		e.graph.add(edge.FollowerID, edge.TargetID)
	}

	activities := make([]domain.ActivityLog, len(snapshot.Activities))
	copy(activities, snapshot.Activities)
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].OccurredAt.Before(activities[j].OccurredAt)
	})

	for _, activity := range activities {
		if _, exists := e.ledger.lookup(activity.ID); exists {
			return fmt.Errorf("%w: duplicate activity %s", domain.ErrInvalidOperation, activity.ID)
		}
		log := activity.Clone()
		if log.LikedByUserIDs == nil {
			log.LikedByUserIDs = []string{}
		}
		slices.Sort(log.LikedByUserIDs)
		log.LikedByUserIDs = slices.Compact(log.LikedByUserIDs)
		if log.Comments == nil {
			log.Comments = []domain.Comment{}
		}

		ul := e.ledger.owner(log.OwnerID, true)
		en := &entry{log: log}
		ul.mu.Lock()
		e.ledger.index(en)
		ul.entries = append(ul.entries, en)
		ul.mu.Unlock()
	}

	for userID, state := range snapshot.Streaks {
		ul := e.ledger.owner(userID, true)
		ul.mu.Lock()
		ul.streak = state
		if state.LastWorkoutAt != nil {
			ts := *state.LastWorkoutAt
			ul.streak.LastWorkoutAt = &ts
		}
		ul.mu.Unlock()
	}
	return nil
}
