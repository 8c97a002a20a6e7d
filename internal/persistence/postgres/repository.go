// Package postgres persists social engine state and its outbox events in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitsocial/internal/domain"
	"example.com/fitsocial/pkg/platform/events"
)

// Repository provides Postgres-backed persistence for profiles, follows,
// activities, engagement and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) inTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpsertProfile inserts or updates the identity part of a profile. Social
// fields are left untouched on conflict.
func (r *Repository) UpsertProfile(ctx context.Context, p domain.UserProfile) error {
	const stmt = `INSERT INTO profiles (user_id, name, age, location, bio, sports, level, weekly_frequency_target, avatar_ref)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (user_id) DO UPDATE SET name=EXCLUDED.name, age=EXCLUDED.age, location=EXCLUDED.location,
            bio=EXCLUDED.bio, sports=EXCLUDED.sports, level=EXCLUDED.level,
            weekly_frequency_target=EXCLUDED.weekly_frequency_target, avatar_ref=EXCLUDED.avatar_ref, updated_at=NOW()`

	sports := make([]string, 0, len(p.Sports))
	for _, s := range p.Sports {
		sports = append(sports, string(s))
	}
	_, err := r.pool.Exec(ctx, stmt, p.ID, p.Name, p.Age, p.Location, p.Bio, sports, string(p.Level), p.WeeklyFrequencyTarget, p.AvatarRef)
	return err
}

// ListProfiles returns every stored profile ordered by id.
func (r *Repository) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	const query = `SELECT user_id, name, age, location, bio, sports, level, weekly_frequency_target, avatar_ref, streak, last_workout_at
        FROM profiles ORDER BY user_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserProfile, 0)
	for rows.Next() {
		var (
			p      domain.UserProfile
			sports []string
			level  string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Location, &p.Bio, &sports, &level, &p.WeeklyFrequencyTarget, &p.AvatarRef, &p.Streak, &p.LastWorkoutAt); err != nil {
			return nil, err
		}
		p.Level = domain.SkillLevel(level)
		for _, s := range sports {
			p.Sports = append(p.Sports, domain.SportType(s))
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadSnapshot reads follows, activities with their engagement and streaks in
// one read-only transaction.
func (r *Repository) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	snapshot := domain.Snapshot{Streaks: make(map[string]domain.StreakState)}

	err := r.inTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		edges, err := loadFollows(ctx, tx)
		if err != nil {
			return fmt.Errorf("load follows: %w", err)
		}
		snapshot.Follows = edges

		activities, err := loadActivities(ctx, tx)
		if err != nil {
			return fmt.Errorf("load activities: %w", err)
		}
		snapshot.Activities = activities

		rows, err := tx.Query(ctx, `SELECT user_id, streak, last_workout_at FROM profiles WHERE streak > 0 OR last_workout_at IS NOT NULL`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id    string
				state domain.StreakState
			)
			if err := rows.Scan(&id, &state.Streak, &state.LastWorkoutAt); err != nil {
				return err
			}
			snapshot.Streaks[id] = state
		}
		return rows.Err()
	})
	return snapshot, err
}

func loadFollows(ctx context.Context, tx pgx.Tx) ([]domain.FollowEdge, error) {
	rows, err := tx.Query(ctx, `SELECT follower_id, target_id FROM follows ORDER BY created_at, follower_id, target_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.FollowEdge, 0)
	for rows.Next() {
		var edge domain.FollowEdge
		if err := rows.Scan(&edge.FollowerID, &edge.TargetID); err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	return out, rows.Err()
}

func loadActivities(ctx context.Context, tx pgx.Tx) ([]domain.ActivityLog, error) {
	rows, err := tx.Query(ctx, `SELECT activity_id, owner_id, activity_type, duration_min, occurred_at, distance_km, notes, tagged_user_ids
        FROM activities ORDER BY seq`)
	if err != nil {
		return nil, err
	}

	activities := make([]domain.ActivityLog, 0)
	index := make(map[string]int)
	for rows.Next() {
		var a domain.ActivityLog
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.ActivityType, &a.DurationMinutes, &a.OccurredAt, &a.DistanceKm, &a.Notes, &a.TaggedUserIDs); err != nil {
			rows.Close()
			return nil, err
		}
		a.LikedByUserIDs = []string{}
		a.Comments = []domain.Comment{}
		index[a.ID] = len(activities)
		activities = append(activities, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	likeRows, err := tx.Query(ctx, `SELECT activity_id, user_id FROM activity_likes`)
	if err != nil {
		return nil, err
	}
	for likeRows.Next() {
		var activityID, userID string
		if err := likeRows.Scan(&activityID, &userID); err != nil {
			likeRows.Close()
			return nil, err
		}
		if i, ok := index[activityID]; ok {
			activities[i].LikedByUserIDs = append(activities[i].LikedByUserIDs, userID)
		}
	}
	likeRows.Close()
	if err := likeRows.Err(); err != nil {
		return nil, err
	}

	commentRows, err := tx.Query(ctx, `SELECT comment_id, activity_id, author_id, body, created_at FROM activity_comments ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var (
			c          domain.Comment
			activityID string
		)
		if err := commentRows.Scan(&c.ID, &activityID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[activityID]; ok {
			activities[i].Comments = append(activities[i].Comments, c)
		}
	}
	return activities, commentRows.Err()
}

// SaveFollow writes or deletes a follow edge and records the matching event.
func (r *Repository) SaveFollow(ctx context.Context, edge domain.FollowEdge, following bool, at time.Time) error {
	return r.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		eventType := events.TypeUserUnfollowed
		if following {
			eventType = events.TypeUserFollowed
			if _, err := tx.Exec(ctx, `INSERT INTO follows (follower_id, target_id, created_at) VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
				edge.FollowerID, edge.TargetID, at); err != nil {
				return err
			}
		} else if _, err := tx.Exec(ctx, `DELETE FROM follows WHERE follower_id=$1 AND target_id=$2`, edge.FollowerID, edge.TargetID); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, eventType, edge.FollowerID, fmt.Sprintf("%s:%s:%d", edge.FollowerID, edge.TargetID, at.UnixNano()), events.FollowChanged{
			FollowerID: edge.FollowerID,
			TargetID:   edge.TargetID,
			Following:  following,
			OccurredAt: at,
		})
	})
}

// SaveActivity inserts a new activity, stores the owner's streak and records
// the activity.logged event.
func (r *Repository) SaveActivity(ctx context.Context, a domain.ActivityLog, streak domain.StreakState) error {
	return r.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tagged := a.TaggedUserIDs
		if tagged == nil {
			tagged = []string{}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO activities (activity_id, owner_id, activity_type, duration_min, occurred_at, distance_km, notes, tagged_user_ids)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			a.ID, a.OwnerID, a.ActivityType, a.DurationMinutes, a.OccurredAt, a.DistanceKm, a.Notes, tagged); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE profiles SET streak=$2, last_workout_at=$3, updated_at=NOW() WHERE user_id=$1`,
			a.OwnerID, streak.Streak, streak.LastWorkoutAt); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, events.TypeActivityLogged, a.ID, a.ID, events.ActivityLogged{
			ActivityID:      a.ID,
			OwnerID:         a.OwnerID,
			ActivityType:    a.ActivityType,
			DurationMinutes: a.DurationMinutes,
			DistanceKm:      a.DistanceKm,
			TaggedUserIDs:   tagged,
			OccurredAt:      a.OccurredAt,
			Streak:          streak.Streak,
		})
	})
}

// SaveLike stores the result of a like toggle.
func (r *Repository) SaveLike(ctx context.Context, activityID, userID string, liked bool, at time.Time) error {
	return r.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		eventType := events.TypeActivityUnliked
		if liked {
			eventType = events.TypeActivityLiked
			if _, err := tx.Exec(ctx, `INSERT INTO activity_likes (activity_id, user_id, created_at) VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
				activityID, userID, at); err != nil {
				return err
			}
		} else if _, err := tx.Exec(ctx, `DELETE FROM activity_likes WHERE activity_id=$1 AND user_id=$2`, activityID, userID); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, eventType, activityID, fmt.Sprintf("%s:%s:%d", activityID, userID, at.UnixNano()), events.LikeToggled{
			ActivityID: activityID,
			UserID:     userID,
			Liked:      liked,
			OccurredAt: at,
		})
	})
}

// SaveComment appends a comment row.
func (r *Repository) SaveComment(ctx context.Context, activityID string, c domain.Comment) error {
	return r.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO activity_comments (comment_id, activity_id, author_id, body, created_at) VALUES ($1,$2,$3,$4,$5)`,
			c.ID, activityID, c.AuthorID, c.Text, c.CreatedAt); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events.TypeActivityCommented, activityID, c.ID, events.CommentAdded{
			ActivityID: activityID,
			CommentID:  c.ID,
			AuthorID:   c.AuthorID,
			Text:       c.Text,
			CreatedAt:  c.CreatedAt,
		})
	})
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, dedupeSuffix string, payload interface{}) error {
	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		aggregateID,
		body,
		fmt.Sprintf("%s:%s", eventType, dedupeSuffix),
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	AggregateType string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeUserFollowed:      {Topic: events.TopicGraph, AggregateType: "user"},
	events.TypeUserUnfollowed:    {Topic: events.TopicGraph, AggregateType: "user"},
	events.TypeActivityLogged:    {Topic: events.TopicActivity, AggregateType: "activity"},
	events.TypeActivityLiked:     {Topic: events.TopicEngagement, AggregateType: "activity"},
	events.TypeActivityUnliked:   {Topic: events.TopicEngagement, AggregateType: "activity"},
	events.TypeActivityCommented: {Topic: events.TopicEngagement, AggregateType: "activity"},
}
