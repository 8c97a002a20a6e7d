package domain

// RecommendationSource records which scorer produced a recommendation.
type RecommendationSource string

const (
	SourceAI        RecommendationSource = "ai"
	SourceHeuristic RecommendationSource = "heuristic"
)

// Recommendation is the normalized compatibility result shared by the AI
// collaborator and the fallback heuristic.
type Recommendation struct {
	Score             int                  `json:"score"`
	Reasoning         string               `json:"reasoning"`
	SuggestedActivity string               `json:"suggested_activity"`
	Source            RecommendationSource `json:"source"`
}

// Snapshot is persisted engine state used to hydrate a fresh engine.
type Snapshot struct {
	Follows    []FollowEdge
	Activities []ActivityLog
	Streaks    map[string]StreakState
}

// FollowEdge is one directed follows relationship.
type FollowEdge struct {
	FollowerID string
	TargetID   string
}
