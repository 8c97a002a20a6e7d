package social

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/fitsocial/internal/domain"
)

// entry owns one ActivityLog. mu guards the engagement fields; the remaining
// fields are immutable after insertion.
type entry struct {
	mu  sync.Mutex
	seq uint64
	log domain.ActivityLog
}

func (en *entry) snapshot() domain.ActivityLog {
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.log.Clone()
}

type userLedger struct {
	mu      sync.Mutex
	entries []*entry
	streak  domain.StreakState
}

type ledger struct {
	mu      sync.RWMutex
	owners  map[string]*userLedger
	byID    map[string]*entry
	nextSeq uint64
}

func newLedger() *ledger {
	return &ledger{
		owners: make(map[string]*userLedger),
		byID:   make(map[string]*entry),
	}
}

func (l *ledger) owner(id string, create bool) *userLedger {
	l.mu.RLock()
	ul := l.owners[id]
	l.mu.RUnlock()
	if ul != nil || !create {
		return ul
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if ul = l.owners[id]; ul == nil {
		ul = &userLedger{}
		l.owners[id] = ul
	}
	return ul
}

func (l *ledger) index(en *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextSeq++
	en.seq = l.nextSeq
	l.byID[en.log.ID] = en
}

func (l *ledger) lookup(activityID string) (*entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	en, ok := l.byID[activityID]
	return en, ok
}

// entriesOf returns the owner's entries in insertion order.
func (l *ledger) entriesOf(ownerID string) []*entry {
	ul := l.owner(ownerID, false)
	if ul == nil {
		return nil
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return append([]*entry(nil), ul.entries...)
}

// NextStreak applies the streak transition for a workout logged at now. Any
// change of calendar day in loc increments the streak, however many days were
// skipped; a second workout on the same day leaves it unchanged.
func NextStreak(prev domain.StreakState, now time.Time, loc *time.Location) domain.StreakState {
	if loc == nil {
		loc = time.Local
	}
	next := prev.Streak
	if prev.LastWorkoutAt == nil || !sameCalendarDay(*prev.LastWorkoutAt, now, loc) {
		next++
	}
	ts := now
	return domain.StreakState{Streak: next, LastWorkoutAt: &ts}
}

func sameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// LogActivity records a workout for ownerID, stamps it with the current time,
// advances the owner's streak and returns the created entry.
func (e *Engine) LogActivity(ownerID string, draft domain.ActivityDraft) (domain.ActivityLog, error) {
	if draft.DurationMinutes < 0 {
		return domain.ActivityLog{}, fmt.Errorf("%w: duration must be >= 0", domain.ErrInvalidOperation)
	}
	if draft.DistanceKm != nil && *draft.DistanceKm < 0 {
		return domain.ActivityLog{}, fmt.Errorf("%w: distance must be >= 0", domain.ErrInvalidOperation)
	}
	if _, err := e.registry.Get(ownerID); err != nil {
		return domain.ActivityLog{}, err
	}

	tagged := make([]string, 0, len(draft.TaggedUserIDs))
	for _, id := range draft.TaggedUserIDs {
		if slices.Contains(tagged, id) {
			continue
		}
		if !e.graph.has(ownerID, id) {
			return domain.ActivityLog{}, fmt.Errorf("%w: user %s is not followed by %s", domain.ErrInvalidOperation, id, ownerID)
		}
		tagged = append(tagged, id)
	}

	log := domain.ActivityLog{
		ID:              e.newID(),
		OwnerID:         ownerID,
		ActivityType:    strings.TrimSpace(draft.ActivityType),
		DurationMinutes: draft.DurationMinutes,
		Notes:           draft.Notes,
		TaggedUserIDs:   tagged,
		LikedByUserIDs:  []string{},
		Comments:        []domain.Comment{},
	}
	if draft.DistanceKm != nil {
		d := *draft.DistanceKm
		log.DistanceKm = &d
	}

	ul := e.ledger.owner(ownerID, true)
	ul.mu.Lock()
	defer ul.mu.Unlock()

	now := e.timestamp()
	log.OccurredAt = now
	ul.streak = NextStreak(ul.streak, now, e.location)

	en := &entry{log: log}
	e.ledger.index(en)
	ul.entries = append(ul.entries, en)

	return log.Clone(), nil
}

// History returns the owner's entries most recent first; entries sharing a
// timestamp keep their insertion order.
func (e *Engine) History(ownerID string) []domain.ActivityLog {
	entries := e.ledger.entriesOf(ownerID)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].log.OccurredAt.After(entries[j].log.OccurredAt)
	})
	out := make([]domain.ActivityLog, 0, len(entries))
	for _, en := range entries {
		out = append(out, en.snapshot())
	}
	return out
}

// Activity returns a copy of a single entry.
func (e *Engine) Activity(activityID string) (domain.ActivityLog, error) {
	en, ok := e.ledger.lookup(activityID)
	if !ok {
		return domain.ActivityLog{}, fmt.Errorf("%w: activity %s", domain.ErrNotFound, activityID)
	}
	return en.snapshot(), nil
}

// Streak returns the owner's current streak state.
func (e *Engine) Streak(ownerID string) domain.StreakState {
	ul := e.ledger.owner(ownerID, false)
	if ul == nil {
		return domain.StreakState{}
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	out := ul.streak
	if out.LastWorkoutAt != nil {
		ts := *out.LastWorkoutAt
		out.LastWorkoutAt = &ts
	}
	return out
}
