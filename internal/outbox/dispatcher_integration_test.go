//go:build integration

package outbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	seedOutbox(t, ctx, pool, "u1", "user.followed", "social_graph_events")

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, nil, 10*time.Millisecond, 5, time.Minute)
	before := testutil.ToFloat64(deliveredCounter)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "social_graph_events", producer.writes[0].topic)
	require.InDelta(t, before+1, testutil.ToFloat64(deliveredCounter), 0.0001)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	// A second pass finds nothing left to claim.
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	seedOutbox(t, ctx, pool, "a1", "activity.liked", "social_engagement_events")

	dispatcher := NewDispatcher(pool, &stubProducer{err: errors.New("kafka write failed")}, nil, 10*time.Millisecond, 5, time.Minute)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("social_engagement_events"))

	require.NoError(t, dispatcher.processBatch(ctx))
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues("social_engagement_events")), 0.0001)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq`).Scan(&reason))
	require.Contains(t, reason, "kafka write failed")
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, aggregateID, eventType, topic string) {
	t.Helper()
	_, err := pool.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
         VALUES ('test', $1, $2, $3, $1, '{"ok":true}'::jsonb, $2 || ':' || $1)`,
		aggregateID, eventType, topic)
	require.NoError(t, err)
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("fitsocial"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	contents, err := os.ReadFile(filepath.Join(filepath.Dir(file), "../../db/postgres/migrations/0001_init.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
	return pool
}

func TestDLQManagerRequeuesAndQuarantines(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, aggregate_type, aggregate_id, partition_key, payload, reason, retry_count)
         VALUES (1, 'activity.logged', 'social_activity_events', 'activity', 'a1', 'a1', '{}'::jsonb, 'boom', 0),
                (2, 'activity.logged', 'social_activity_events', 'activity', 'a2', 'a2', '{}'::jsonb, 'boom', 5)`)
	require.NoError(t, err)

	manager := NewDLQManager(pool, nil, 5, time.Minute)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, processed)

	var attempts int
	require.NoError(t, pool.QueryRow(ctx, `SELECT attempts FROM outbox WHERE published_at IS NULL AND aggregate_id = 'a1'`).Scan(&attempts))
	require.Equal(t, 1, attempts)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

func TestDLQReplayBacksOffThenQuarantines(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	seedOutbox(t, ctx, pool, "a1", "activity.logged", "social_activity_events")

	dispatcher := NewDispatcher(pool, &stubProducer{err: errors.New("broker unavailable")}, nil, 10*time.Millisecond, 5, time.Minute)
	manager := NewDLQManager(pool, nil, 2, time.Minute)

	type dlqRow struct {
		retryCount  int
		nextRetryAt *time.Time
	}
	openEntry := func() dlqRow {
		t.Helper()
		var row dlqRow
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT retry_count, next_retry_at FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&row.retryCount, &row.nextRetryAt))
		return row
	}

	// First failure: a fresh entry, due immediately.
	require.NoError(t, dispatcher.processBatch(ctx))
	first := openEntry()
	require.Zero(t, first.retryCount)
	require.Nil(t, first.nextRetryAt)

	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	// The replay fails again and keeps its attempt count.
	require.NoError(t, dispatcher.processBatch(ctx))
	second := openEntry()
	require.Equal(t, 1, second.retryCount)
	require.NotNil(t, second.nextRetryAt)
	require.True(t, second.nextRetryAt.After(time.Now()))

	// Not due yet.
	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed)

	manager.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	require.NoError(t, dispatcher.processBatch(ctx))
	third := openEntry()
	require.Equal(t, 2, third.retryCount)
	require.True(t, third.nextRetryAt.Sub(*second.nextRetryAt) > time.Minute, "delay doubles per attempt")

	manager.now = func() time.Time { return time.Now().Add(4 * time.Hour) }
	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var quarantined, pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Equal(t, 1, quarantined)
	require.Zero(t, pending)
}
