// Package social implements the social activity engine: the follow graph, the
// per-user activity ledger with streak derivation, engagement on ledger entries
// and the merged feed. All operations are synchronous in-memory transitions;
// persisting their results is left to the caller.
package social

import (
	"time"

	"github.com/google/uuid"

	"example.com/fitsocial/internal/identity"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for OccurredAt and comment timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLocation sets the calendar used to decide whether two workouts fall on the same day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithIDGenerator overrides the id source for activities and comments.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// Engine wires the graph, ledger, engagement and feed components over one registry.
type Engine struct {
	registry identity.Registry
	clock    func() time.Time
	location *time.Location
	newID    func() string

	graph  *graph
	ledger *ledger
}

// NewEngine constructs an Engine resolving user ids through registry.
func NewEngine(registry identity.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		clock:    time.Now,
		location: time.Local,
		newID:    newTimeOrderedID,
		graph:    newGraph(),
		ledger:   newLedger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// timestamp reads the clock at the precision the store keeps, so restored
// entries compare equal to the ones cursors were issued for.
func (e *Engine) timestamp() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}

// Location returns the calendar location used for streaks.
func (e *Engine) Location() *time.Location {
	return e.location
}

func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
