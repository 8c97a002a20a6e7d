// Package events defines the payloads published for social engine mutations.
package events

import "time"

// Event types.
const (
	TypeUserFollowed      = "user.followed"
	TypeUserUnfollowed    = "user.unfollowed"
	TypeActivityLogged    = "activity.logged"
	TypeActivityLiked     = "activity.liked"
	TypeActivityUnliked   = "activity.unliked"
	TypeActivityCommented = "activity.commented"
)

// Topics.
const (
	TopicGraph      = "social_graph_events"
	TopicActivity   = "social_activity_events"
	TopicEngagement = "social_engagement_events"
)

// FollowChanged is emitted when a follow edge is created or removed.
type FollowChanged struct {
	FollowerID string    `json:"follower_id"`
	TargetID   string    `json:"target_id"`
	Following  bool      `json:"following"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityLogged is emitted when a workout is added to a ledger, together with
// the owner's resulting streak.
type ActivityLogged struct {
	ActivityID      string    `json:"activity_id"`
	OwnerID         string    `json:"owner_id"`
	ActivityType    string    `json:"activity_type"`
	DurationMinutes int       `json:"duration_minutes"`
	DistanceKm      *float64  `json:"distance_km,omitempty"`
	TaggedUserIDs   []string  `json:"tagged_user_ids"`
	OccurredAt      time.Time `json:"occurred_at"`
	Streak          int       `json:"streak"`
}

// LikeToggled is emitted for both like and unlike.
type LikeToggled struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Liked      bool      `json:"liked"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CommentAdded is emitted when a comment is appended to an activity.
type CommentAdded struct {
	ActivityID string    `json:"activity_id"`
	CommentID  string    `json:"comment_id"`
	AuthorID   string    `json:"author_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
