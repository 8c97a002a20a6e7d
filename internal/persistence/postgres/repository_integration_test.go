//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fitsocial/internal/domain"
	"example.com/fitsocial/internal/identity"
	"example.com/fitsocial/pkg/platform/events"
)

func TestRepositoryRoundTripsSnapshot(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	for _, p := range identity.DemoProfiles() {
		require.NoError(t, repo.UpsertProfile(ctx, p))
	}
	profiles, err := repo.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, len(identity.DemoProfiles()))
	require.Equal(t, "u1", profiles[0].ID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.SaveFollow(ctx, domain.FollowEdge{FollowerID: "u1", TargetID: "u2"}, true, now))

	distance := 5.2
	activity := domain.ActivityLog{
		ID:              "a1",
		OwnerID:         "u2",
		ActivityType:    "Morning run",
		DurationMinutes: 30,
		OccurredAt:      now,
		DistanceKm:      &distance,
	}
	require.NoError(t, repo.SaveActivity(ctx, activity, domain.StreakState{Streak: 1, LastWorkoutAt: &now}))
	require.NoError(t, repo.SaveLike(ctx, "a1", "u1", true, now))
	require.NoError(t, repo.SaveComment(ctx, "a1", domain.Comment{ID: "c1", AuthorID: "u1", Text: "Nice pace!", CreatedAt: now}))

	snapshot, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.FollowEdge{{FollowerID: "u1", TargetID: "u2"}}, snapshot.Follows)
	require.Len(t, snapshot.Activities, 1)
	stored := snapshot.Activities[0]
	require.Equal(t, []string{"u1"}, stored.LikedByUserIDs)
	require.Len(t, stored.Comments, 1)
	require.Equal(t, "Nice pace!", stored.Comments[0].Text)
	require.InDelta(t, 5.2, *stored.DistanceKm, 0.0001)
	require.Equal(t, 1, snapshot.Streaks["u2"].Streak)

	require.NoError(t, repo.SaveLike(ctx, "a1", "u1", false, now.Add(time.Second)))
	require.NoError(t, repo.SaveFollow(ctx, domain.FollowEdge{FollowerID: "u1", TargetID: "u2"}, false, now.Add(time.Second)))
	snapshot, err = repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, snapshot.Follows)
	require.Empty(t, snapshot.Activities[0].LikedByUserIDs)

	var topics []string
	rows, err := pool.Query(ctx, `SELECT topic FROM outbox ORDER BY event_id`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var topic string
		require.NoError(t, rows.Scan(&topic))
		topics = append(topics, topic)
	}
	require.Equal(t, []string{
		events.TopicGraph,
		events.TopicActivity,
		events.TopicEngagement,
		events.TopicEngagement,
		events.TopicEngagement,
		events.TopicGraph,
	}, topics)
}

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("fitsocial"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	contents, err := os.ReadFile(resolvePath(t, "../../../db/postgres/migrations/0001_init.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
	return pool
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
