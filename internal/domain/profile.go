// Package domain defines the shared data model of the social activity engine.
package domain

import (
	"slices"
	"time"
)

// SportType tags the sports a user practises or an activity belongs to.
type SportType string

const (
	SportRunning  SportType = "running"
	SportHyrox    SportType = "hyrox"
	SportCrossfit SportType = "crossfit"
	SportGym      SportType = "gym"
	SportCycling  SportType = "cycling"
	SportYoga     SportType = "yoga"
	SportTennis   SportType = "tennis"
	SportOther    SportType = "other"
)

// SkillLevel is an ordered skill tier.
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "beginner"
	LevelIntermediate SkillLevel = "intermediate"
	LevelPro          SkillLevel = "pro"
	LevelCompetitive  SkillLevel = "competitive"
)

var levelRank = map[SkillLevel]int{
	LevelBeginner:     0,
	LevelIntermediate: 1,
	LevelPro:          2,
	LevelCompetitive:  3,
}

// Rank returns the ordinal of the level and false for unknown tiers.
func (l SkillLevel) Rank() (int, bool) {
	rank, ok := levelRank[l]
	return rank, ok
}

// UserProfile is identity plus preferences. Streak, LastWorkoutAt, Following and
// FollowerIDs are owned by the social engine and filled in when a profile is read
// through it.
type UserProfile struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	Age                   int         `json:"age"`
	Location              string      `json:"location"`
	Bio                   string      `json:"bio"`
	Sports                []SportType `json:"sports"`
	Level                 SkillLevel  `json:"level"`
	WeeklyFrequencyTarget int         `json:"weekly_frequency_target"`
	AvatarRef             string      `json:"avatar_ref"`

	Streak        int        `json:"streak"`
	LastWorkoutAt *time.Time `json:"last_workout_at,omitempty"`
	Following     []string   `json:"following"`
	FollowerIDs   []string   `json:"follower_ids"`
}

// Clone returns a deep copy so callers cannot alias internal slices.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.Sports = slices.Clone(p.Sports)
	out.Following = slices.Clone(p.Following)
	out.FollowerIDs = slices.Clone(p.FollowerIDs)
	if p.LastWorkoutAt != nil {
		ts := *p.LastWorkoutAt
		out.LastWorkoutAt = &ts
	}
	return out
}

// StreakState is the derived workout streak of a single user.
type StreakState struct {
	Streak        int        `json:"streak"`
	LastWorkoutAt *time.Time `json:"last_workout_at,omitempty"`
}

// ProfileStats summarises a user's ledger and social counts.
type ProfileStats struct {
	UserID         string     `json:"user_id"`
	TotalWorkouts  int        `json:"total_workouts"`
	TotalMinutes   int        `json:"total_minutes"`
	Streak         int        `json:"streak"`
	LastWorkoutAt  *time.Time `json:"last_workout_at,omitempty"`
	FollowingCount int        `json:"following_count"`
	FollowerCount  int        `json:"follower_count"`
}
