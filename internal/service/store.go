package service

import (
	"context"
	"time"

	"example.com/fitsocial/internal/domain"
)

// Store persists engine state after each mutation and supplies the state used
// to hydrate a fresh engine.
type Store interface {
	ListProfiles(ctx context.Context) ([]domain.UserProfile, error)
	UpsertProfile(ctx context.Context, profile domain.UserProfile) error
	LoadSnapshot(ctx context.Context) (domain.Snapshot, error)
	SaveFollow(ctx context.Context, edge domain.FollowEdge, following bool, at time.Time) error
	SaveActivity(ctx context.Context, activity domain.ActivityLog, streak domain.StreakState) error
	SaveLike(ctx context.Context, activityID, userID string, liked bool, at time.Time) error
	SaveComment(ctx context.Context, activityID string, comment domain.Comment) error
}

// NoopStore keeps everything in memory only.
type NoopStore struct{}

func (NoopStore) ListProfiles(context.Context) ([]domain.UserProfile, error) { return nil, nil }

func (NoopStore) UpsertProfile(context.Context, domain.UserProfile) error { return nil }

func (NoopStore) LoadSnapshot(context.Context) (domain.Snapshot, error) {
	return domain.Snapshot{}, nil
}

func (NoopStore) SaveFollow(context.Context, domain.FollowEdge, bool, time.Time) error { return nil }

func (NoopStore) SaveActivity(context.Context, domain.ActivityLog, domain.StreakState) error {
	return nil
}

func (NoopStore) SaveLike(context.Context, string, string, bool, time.Time) error { return nil }

func (NoopStore) SaveComment(context.Context, string, domain.Comment) error { return nil }
