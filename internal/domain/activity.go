package domain

import (
	"slices"
	"time"
)

// ActivityLog is one logged workout. OwnerID and OccurredAt never change after
// creation; only the engagement fields are mutated afterwards.
type ActivityLog struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	ActivityType    string    `json:"activity_type"`
	DurationMinutes int       `json:"duration_minutes"`
	OccurredAt      time.Time `json:"occurred_at"`
	DistanceKm      *float64  `json:"distance_km,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	TaggedUserIDs   []string  `json:"tagged_user_ids"`
	LikedByUserIDs  []string  `json:"liked_by_user_ids"`
	Comments        []Comment `json:"comments"`
}

// Clone returns a deep copy of the log.
func (a ActivityLog) Clone() ActivityLog {
	out := a
	out.TaggedUserIDs = slices.Clone(a.TaggedUserIDs)
	out.LikedByUserIDs = slices.Clone(a.LikedByUserIDs)
	out.Comments = slices.Clone(a.Comments)
	if a.DistanceKm != nil {
		d := *a.DistanceKm
		out.DistanceKm = &d
	}
	return out
}

// LikedBy reports whether userID liked the activity.
func (a ActivityLog) LikedBy(userID string) bool {
	return slices.Contains(a.LikedByUserIDs, userID)
}

// Comment is an append-only remark on an activity.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityDraft carries the user supplied part of a new workout.
type ActivityDraft struct {
	ActivityType    string
	DurationMinutes int
	DistanceKm      *float64
	Notes           string
	TaggedUserIDs   []string
}

// FeedCursor marks the last entry of a feed page.
type FeedCursor struct {
	OccurredAt time.Time
	ID         string
}
