package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter persists events that could not be published for investigation.
type DLQWriter struct {
	pool       *pgxpool.Pool
	retryDelay time.Duration
	now        func() time.Time
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
// retryDelay is the base of the backoff applied to replayed events that fail again.
func NewDLQWriter(pool *pgxpool.Pool, retryDelay time.Duration) *DLQWriter {
	if retryDelay <= 0 {
		retryDelay = time.Minute
	}
	return &DLQWriter{pool: pool, retryDelay: retryDelay, now: time.Now}
}

// Write records a failed outbox message alongside the supplied reason. A message
// that was already replayed keeps its attempt count and is not due again until
// its backoff elapses.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	var lastAttempt, nextRetry *time.Time
	if msg.Attempts > 0 {
		now := w.now().UTC()
		next := now.Add(backoffDelay(w.retryDelay, msg.Attempts))
		lastAttempt, nextRetry = &now, &next
	}
	_, err := w.pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, aggregate_type, aggregate_id, partition_key, payload, reason,
                                 retry_count, last_attempt_at, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		msg.EventID, msg.EventType, msg.Topic, msg.AggregateType, msg.AggregateID, msg.PartitionKey, msg.Payload, reason,
		msg.Attempts, lastAttempt, nextRetry,
	)
	return err
}
