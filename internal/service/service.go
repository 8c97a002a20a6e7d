// Package service applies social operations to the engine and writes the
// resulting state through a Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/fitsocial/internal/compat"
	"example.com/fitsocial/internal/domain"
	"example.com/fitsocial/internal/identity"
	"example.com/fitsocial/internal/observability"
	"example.com/fitsocial/internal/social"
)

// Service orchestrates engine calls, persistence and compatibility scoring.
type Service struct {
	directory *identity.Directory
	engine    *social.Engine
	store     Store
	matcher   *compat.Matcher
	logger    *zap.Logger
	now       func() time.Time
	keys      *keyLocks
	seed      []domain.UserProfile
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMatcher overrides the compatibility matcher.
func WithMatcher(m *compat.Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSeedProfiles provisions profiles into the store during Hydrate when the
// store has none.
func WithSeedProfiles(profiles []domain.UserProfile) Option {
	return func(s *Service) {
		s.seed = profiles
	}
}

// New constructs a Service. A nil store keeps state in memory only.
func New(directory *identity.Directory, engine *social.Engine, store Store, opts ...Option) *Service {
	if store == nil {
		store = NoopStore{}
	}
	s := &Service{
		directory: directory,
		engine:    engine,
		store:     store,
		matcher:   compat.NewMatcher(),
		logger:    zap.NewNop(),
		now:       time.Now,
		keys:      newKeyLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate loads profiles into the directory and restores the engine from the
// store. It must run before the service takes traffic.
func (s *Service) Hydrate(ctx context.Context) error {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) == 0 && len(s.seed) > 0 {
		for _, p := range s.seed {
			if err := s.store.UpsertProfile(ctx, p); err != nil {
				return fmt.Errorf("seed profile %q: %w", p.ID, err)
			}
		}
		s.logger.Info("store has no profiles, seeded", zap.Int("profiles", len(s.seed)))
		profiles = s.seed
	}
	for _, p := range profiles {
		if err := s.directory.Put(p); err != nil {
			return fmt.Errorf("register profile %q: %w", p.ID, err)
		}
	}

	snapshot, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := s.engine.Restore(snapshot); err != nil {
		return fmt.Errorf("restore engine: %w", err)
	}

	s.logger.Info("engine hydrated",
		zap.Int("profiles", len(s.directory.List())),
		zap.Int("follows", len(snapshot.Follows)),
		zap.Int("activities", len(snapshot.Activities)))
	return nil
}

// Follow makes viewer follow target. Repeated follows are no-ops.
func (s *Service) Follow(ctx context.Context, viewerID, targetID string) (err error) {
	defer s.observe("follow", &err)

	unlock := s.keys.lock("follow:" + viewerID + ":" + targetID)
	defer unlock()

	changed, err := s.engine.Follow(viewerID, targetID)
	if err != nil || !changed {
		return err
	}
	return s.persist(ctx, "follow", s.store.SaveFollow(ctx, domain.FollowEdge{FollowerID: viewerID, TargetID: targetID}, true, s.now().UTC()))
}

// Unfollow removes the edge if present.
func (s *Service) Unfollow(ctx context.Context, viewerID, targetID string) (err error) {
	defer s.observe("unfollow", &err)

	unlock := s.keys.lock("follow:" + viewerID + ":" + targetID)
	defer unlock()

	if !s.engine.Unfollow(viewerID, targetID) {
		return nil
	}
	return s.persist(ctx, "unfollow", s.store.SaveFollow(ctx, domain.FollowEdge{FollowerID: viewerID, TargetID: targetID}, false, s.now().UTC()))
}

// IsFollowing reports whether viewer follows target.
func (s *Service) IsFollowing(viewerID, targetID string) bool {
	return s.engine.IsFollowing(viewerID, targetID)
}

// LogActivity records a workout for owner and persists it with the new streak.
func (s *Service) LogActivity(ctx context.Context, ownerID string, draft domain.ActivityDraft) (log domain.ActivityLog, err error) {
	defer s.observe("log_activity", &err)

	unlock := s.keys.lock("ledger:" + ownerID)
	defer unlock()

	log, err = s.engine.LogActivity(ownerID, draft)
	if err != nil {
		return domain.ActivityLog{}, err
	}
	observability.RecordActivityLogged(log.OccurredAt)

	if err := s.persist(ctx, "log_activity", s.store.SaveActivity(ctx, log, s.engine.Streak(ownerID))); err != nil {
		return log, err
	}
	return log, nil
}

// History returns owner's activities, most recent first.
func (s *Service) History(ownerID string) ([]domain.ActivityLog, error) {
	if _, err := s.directory.Get(ownerID); err != nil {
		return nil, err
	}
	return s.engine.History(ownerID), nil
}

// ToggleLike flips userID's like on the activity and returns the updated log.
func (s *Service) ToggleLike(ctx context.Context, activityID, userID string) (log domain.ActivityLog, err error) {
	defer s.observe("toggle_like", &err)

	unlock := s.keys.lock("like:" + activityID + ":" + userID)
	defer unlock()

	liked, log, err := s.engine.ToggleLike(activityID, userID)
	if err != nil {
		return domain.ActivityLog{}, err
	}
	if err := s.persist(ctx, "toggle_like", s.store.SaveLike(ctx, activityID, userID, liked, s.now().UTC())); err != nil {
		return log, err
	}
	return log, nil
}

// AddComment appends a comment to the activity.
func (s *Service) AddComment(ctx context.Context, activityID, authorID, text string) (c domain.Comment, err error) {
	defer s.observe("add_comment", &err)

	unlock := s.keys.lock("comments:" + activityID)
	defer unlock()

	c, err = s.engine.AddComment(activityID, authorID, text)
	if err != nil {
		return domain.Comment{}, err
	}
	if err := s.persist(ctx, "add_comment", s.store.SaveComment(ctx, activityID, c)); err != nil {
		return c, err
	}
	return c, nil
}

// FeedPage is one window of a viewer's feed.
type FeedPage struct {
	Items []domain.ActivityLog
	Next  *domain.FeedCursor
}

// Feed returns up to limit feed entries after cursor.
func (s *Service) Feed(viewerID string, cursor *domain.FeedCursor, limit int) (page FeedPage, err error) {
	defer s.observe("feed", &err)

	items, next, err := s.engine.BuildFeedPage(viewerID, cursor, limit)
	if err != nil {
		return FeedPage{}, err
	}
	observability.RecordFeedSize(len(items))
	return FeedPage{Items: items, Next: next}, nil
}

// Profile returns the merged identity and social profile.
func (s *Service) Profile(id string) (domain.UserProfile, error) {
	return s.engine.Profile(id)
}

// Stats returns workout totals and social counts.
func (s *Service) Stats(id string) (domain.ProfileStats, error) {
	return s.engine.Stats(id)
}

// FollowingProfiles resolves everyone id follows.
func (s *Service) FollowingProfiles(id string) ([]domain.UserProfile, error) {
	return s.engine.FollowingProfiles(id)
}

// Match scores how well candidate fits viewer as a training partner.
func (s *Service) Match(ctx context.Context, viewerID, candidateID string) (rec domain.Recommendation, err error) {
	defer s.observe("match", &err)

	if viewerID == candidateID {
		return domain.Recommendation{}, fmt.Errorf("%w: cannot match a user with themselves", domain.ErrInvalidOperation)
	}
	viewer, err := s.engine.Profile(viewerID)
	if err != nil {
		return domain.Recommendation{}, err
	}
	candidate, err := s.engine.Profile(candidateID)
	if err != nil {
		return domain.Recommendation{}, err
	}
	return s.matcher.Match(ctx, viewer, candidate), nil
}

// StartChat resolves the partner of a new conversation.
func (s *Service) StartChat(viewerID, partnerID string) (domain.UserProfile, error) {
	return s.engine.ResolveChatPartner(viewerID, partnerID)
}

func (s *Service) persist(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	observability.RecordPersistFailure(op)
	s.logger.Error("persist mutation", zap.String("operation", op), zap.Error(err))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("persist %s: %w", op, ctxErr)
	}
	return fmt.Errorf("persist %s: %w", op, err)
}

func (s *Service) observe(op string, errp *error) {
	observability.RecordOperation(op, Outcome(*errp))
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidOperation):
		return "invalid"
	default:
		return "error"
	}
}
