package social

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"example.com/fitsocial/internal/domain"
	"example.com/fitsocial/internal/identity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestEngine(t *testing.T, users ...string) (*Engine, *fakeClock) {
	t.Helper()
	dir := identity.NewDirectory()
	for _, id := range users {
		require.NoError(t, dir.Put(domain.UserProfile{ID: id, Name: "user " + id}))
	}
	clock := &fakeClock{now: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)}
	var seq int
	var mu sync.Mutex
	engine := NewEngine(dir,
		WithClock(clock.Now),
		WithLocation(time.UTC),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%04d", seq)
		}),
	)
	return engine, clock
}

func TestFollowUnfollowRoundTrip(t *testing.T) {
	engine, _ := newTestEngine(t, "a", "b")

	changed, err := engine.Follow("a", "b")
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, engine.IsFollowing("a", "b"))
	require.False(t, engine.IsFollowing("b", "a"))
	require.Equal(t, []string{"a"}, engine.Followers("b"))

	require.True(t, engine.Unfollow("a", "b"))
	require.False(t, engine.IsFollowing("a", "b"))
	require.Empty(t, engine.Followers("b"))
	require.False(t, engine.Unfollow("a", "b"))
}

func TestFollowSelfIsInvalid(t *testing.T) {
	engine, _ := newTestEngine(t, "a")

	_, err := engine.Follow("a", "a")
	require.ErrorIs(t, err, domain.ErrInvalidOperation)
	require.Empty(t, engine.Following("a"))
}

func TestFollowUnknownUser(t *testing.T) {
	engine, _ := newTestEngine(t, "a")

	_, err := engine.Follow("a", "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = engine.Follow("ghost", "a")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFollowIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, "a", "b")

	_, err := engine.Follow("a", "b")
	require.NoError(t, err)
	once := engine.Following("a")

	changed, err := engine.Follow("a", "b")
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, once, engine.Following("a"))
	require.Equal(t, []string{"a"}, engine.Followers("b"))
}

func TestStreakSameDayCountsOnce(t *testing.T) {
	engine, clock := newTestEngine(t, "a")

	_, err := engine.LogActivity("a", domain.ActivityDraft{ActivityType: "run", DurationMinutes: 20})
	require.NoError(t, err)
	clock.Set(clock.Now().Add(6 * time.Hour))
	_, err = engine.LogActivity("a", domain.ActivityDraft{ActivityType: "gym", DurationMinutes: 40})
	require.NoError(t, err)

	streak := engine.Streak("a")
	require.Equal(t, 1, streak.Streak)
	require.True(t, streak.LastWorkoutAt.Equal(clock.Now()))
}

func TestStreakDayBoundaryIncrements(t *testing.T) {
	engine, clock := newTestEngine(t, "a")

	clock.Set(time.Date(2025, time.March, 9, 23, 30, 0, 0, time.UTC))
	_, err := engine.LogActivity("a", domain.ActivityDraft{ActivityType: "run", DurationMinutes: 20})
	require.NoError(t, err)
	require.Equal(t, 1, engine.Streak("a").Streak)

	clock.Set(time.Date(2025, time.March, 10, 0, 15, 0, 0, time.UTC))
	_, err = engine.LogActivity("a", domain.ActivityDraft{ActivityType: "run", DurationMinutes: 20})
	require.NoError(t, err)
	require.Equal(t, 2, engine.Streak("a").Streak)
}

func TestStreakDoesNotResetAfterGap(t *testing.T) {
	last := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	next := NextStreak(domain.StreakState{Streak: 4, LastWorkoutAt: &last}, last.AddDate(0, 0, 5), time.UTC)
	require.Equal(t, 5, next.Streak)
}

func TestStreakUsesCalendarLocation(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	last := time.Date(2025, time.March, 9, 22, 30, 0, 0, time.UTC) // 23:30 local
	now := time.Date(2025, time.March, 9, 23, 30, 0, 0, time.UTC)  // 00:30 next day local

	require.Equal(t, 1, NextStreak(domain.StreakState{Streak: 1, LastWorkoutAt: &last}, now, time.UTC).Streak)
	require.Equal(t, 2, NextStreak(domain.StreakState{Streak: 1, LastWorkoutAt: &last}, now, berlin).Streak)
}

func TestLogActivityValidation(t *testing.T) {
	engine, _ := newTestEngine(t, "a", "b")

	_, err := engine.LogActivity("a", domain.ActivityDraft{DurationMinutes: -1})
	require.ErrorIs(t, err, domain.ErrInvalidOperation)

	negative := -2.5
	_, err = engine.LogActivity("a", domain.ActivityDraft{DistanceKm: &negative})
	require.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = engine.LogActivity("ghost", domain.ActivityDraft{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = engine.LogActivity("a", domain.ActivityDraft{TaggedUserIDs: []string{"b"}})
	require.ErrorIs(t, err, domain.ErrInvalidOperation)

	require.Empty(t, engine.History("a"))
	require.Zero(t, engine.Streak("a").Streak)
}

func TestLogActivityTagsFollowedUsers(t *testing.T) {
	engine, _ := newTestEngine(t, "a", "b")
	_, err := engine.Follow("a", "b")
	require.NoError(t, err)

	log, err := engine.LogActivity("a", domain.ActivityDraft{ActivityType: "run", TaggedUserIDs: []string{"b", "b"}})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, log.TaggedUserIDs)

	// Unfollowing later does not rewrite existing tags.
	engine.Unfollow("a", "b")
	stored, err := engine.Activity(log.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, stored.TaggedUserIDs)
}

func TestHistoryMostRecentFirstWithInsertionTies(t *testing.T) {
	engine, clock := newTestEngine(t, "a")
	base := clock.Now()

	first, _ := engine.LogActivity("a", domain.ActivityDraft{ActivityType: "first"})
	second, _ := engine.LogActivity("a", domain.ActivityDraft{ActivityType: "second"})
	clock.Set(base.Add(time.Hour))
	third, _ := engine.LogActivity("a", domain.ActivityDraft{ActivityType: "third"})

	history := engine.History("a")
	require.Len(t, history, 3)
	require.Equal(t, third.ID, history[0].ID)
	require.Equal(t, first.ID, history[1].ID)
	require.Equal(t, second.ID, history[2].ID)
}

func TestToggleLikeDoubleToggleRestoresState(t *testing.T) {
	engine, _ := newTestEngine(t, "a", "b", "c")
	log, err := engine.LogActivity("a", domain.ActivityDraft{ActivityType: "run"})
	require.NoError(t, err)

	_, _, err = engine.ToggleLike(log.ID, "c")
	require.NoError(t, err)
	before, _ := engine.Activity(log.ID)

	liked, after, err := engine.ToggleLike(log.ID, "b")
	require.NoError(t, err)
	require.True(t, liked)
	require.Equal(t, []string{"b", "c"}, after.LikedByUserIDs)

	liked, after, err = engine.ToggleLike(log.ID, "b")
	require.NoError(t, err)
	require.False(t, liked)
	require.Equal(t, before.LikedByUserIDs, after.LikedByUserIDs)
}

func TestToggleLikeUnknownActivity(t *testing.T) {
	engine, _ := newTestEngine(t, "a")
	_, _, err := engine.ToggleLike("missing", "a")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddCommentAppendsAndRejectsBlank(t *testing.T) {
	engine, clock := newTestEngine(t, "a", "b")
	log, err := engine.LogActivity("a", domain.ActivityDraft{ActivityType: "run"})
	require.NoError(t, err)

	first, err := engine.AddComment(log.ID, "b", "nice pace")
	require.NoError(t, err)
	clock.Set(clock.Now().Add(time.Minute))
	second, err := engine.AddComment(log.ID, "a", "thanks")
	require.NoError(t, err)

	stored, _ := engine.Activity(log.ID)
	require.Equal(t, []domain.Comment{first, second}, stored.Comments)

	_, err = engine.AddComment(log.ID, "b", "   \t")
	require.ErrorIs(t, err, domain.ErrInvalidOperation)
	unchanged, _ := engine.Activity(log.ID)
	require.Equal(t, stored.Comments, unchanged.Comments)

	_, err = engine.AddComment("missing", "b", "hello")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFeedOrderingAndStability(t *testing.T) {
	engine, clock := newTestEngine(t, "viewer", "friend")
	_, err := engine.Follow("viewer", "friend")
	require.NoError(t, err)

	base := clock.Now()
	t1, t2, t3 := base, base.Add(time.Hour), base.Add(2*time.Hour)

	clock.Set(t3)
	a3, _ := engine.LogActivity("friend", domain.ActivityDraft{ActivityType: "t3"})
	clock.Set(t1)
	a1, _ := engine.LogActivity("viewer", domain.ActivityDraft{ActivityType: "t1"})
	clock.Set(t2)
	a2, _ := engine.LogActivity("friend", domain.ActivityDraft{ActivityType: "t2"})

	feed, err := engine.BuildFeed("viewer")
	require.NoError(t, err)
	require.Equal(t, []string{a3.ID, a2.ID, a1.ID}, ids(feed))

	again, err := engine.BuildFeed("viewer")
	require.NoError(t, err)
	require.Equal(t, feed, again)
}

func TestFeedTiesBrokenByID(t *testing.T) {
	engine, _ := newTestEngine(t, "viewer", "friend")
	_, err := engine.Follow("viewer", "friend")
	require.NoError(t, err)

	x, _ := engine.LogActivity("friend", domain.ActivityDraft{})
	y, _ := engine.LogActivity("viewer", domain.ActivityDraft{})

	feed, err := engine.BuildFeed("viewer")
	require.NoError(t, err)
	require.Equal(t, []string{x.ID, y.ID}, ids(feed))
}

func TestFeedExcludesUnfollowedUsers(t *testing.T) {
	engine, clock := newTestEngine(t, "viewer", "stranger")
	clock.Set(clock.Now().Add(time.Hour))
	_, err := engine.LogActivity("stranger", domain.ActivityDraft{ActivityType: "run"})
	require.NoError(t, err)

	feed, err := engine.BuildFeed("viewer")
	require.NoError(t, err)
	require.NotNil(t, feed)
	require.Empty(t, feed)
}

func TestFeedReturnsCopies(t *testing.T) {
	engine, _ := newTestEngine(t, "viewer")
	log, _ := engine.LogActivity("viewer", domain.ActivityDraft{})

	feed, err := engine.BuildFeed("viewer")
	require.NoError(t, err)
	feed[0].LikedByUserIDs = append(feed[0].LikedByUserIDs, "intruder")
	feed[0].Comments = append(feed[0].Comments, domain.Comment{Text: "forged"})

	stored, _ := engine.Activity(log.ID)
	require.Empty(t, stored.LikedByUserIDs)
	require.Empty(t, stored.Comments)
}

func TestFeedPagination(t *testing.T) {
	engine, clock := newTestEngine(t, "viewer")
	base := clock.Now()
	for i := 0; i < 5; i++ {
		clock.Set(base.Add(time.Duration(i) * time.Minute))
		_, err := engine.LogActivity("viewer", domain.ActivityDraft{})
		require.NoError(t, err)
	}
	full, err := engine.BuildFeed("viewer")
	require.NoError(t, err)

	var collected []domain.ActivityLog
	var cursor *domain.FeedCursor
	for {
		page, next, err := engine.BuildFeedPage("viewer", cursor, 2)
		require.NoError(t, err)
		collected = append(collected, page...)
		if next == nil {
			break
		}
		cursor = next
	}
	require.Equal(t, ids(full), ids(collected))
}

func TestEndToEndScenario(t *testing.T) {
	engine, clock := newTestEngine(t, "A", "B", "C")
	day := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	_, err := engine.Follow("A", "B")
	require.NoError(t, err)

	clock.Set(day.Add(10 * time.Hour))
	run, err := engine.LogActivity("B", domain.ActivityDraft{ActivityType: "run", DurationMinutes: 30})
	require.NoError(t, err)
	clock.Set(day.Add(11 * time.Hour))
	gym, err := engine.LogActivity("A", domain.ActivityDraft{ActivityType: "gym", DurationMinutes: 45})
	require.NoError(t, err)

	feed, err := engine.BuildFeed("A")
	require.NoError(t, err)
	require.Equal(t, []string{gym.ID, run.ID}, ids(feed))

	clock.Set(day.Add(12 * time.Hour))
	_, err = engine.LogActivity("C", domain.ActivityDraft{ActivityType: "yoga", DurationMinutes: 60})
	require.NoError(t, err)

	feed, err = engine.BuildFeed("A")
	require.NoError(t, err)
	require.Equal(t, []string{gym.ID, run.ID}, ids(feed))
}

func TestConcurrentLikesAreAtomic(t *testing.T) {
	users := make([]string, 0, 51)
	users = append(users, "owner")
	for i := 0; i < 50; i++ {
		users = append(users, fmt.Sprintf("fan-%02d", i))
	}
	engine, _ := newTestEngine(t, users...)
	log, err := engine.LogActivity("owner", domain.ActivityDraft{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, u := range users[1:] {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, _, err := engine.ToggleLike(log.ID, user)
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	stored, _ := engine.Activity(log.ID)
	require.ElementsMatch(t, users[1:], stored.LikedByUserIDs)
}

func TestStatsAndProfile(t *testing.T) {
	engine, _ := newTestEngine(t, "a", "b")
	_, _ = engine.Follow("a", "b")
	_, _ = engine.Follow("b", "a")
	_, _ = engine.LogActivity("a", domain.ActivityDraft{DurationMinutes: 30})
	_, _ = engine.LogActivity("a", domain.ActivityDraft{DurationMinutes: 15})

	stats, err := engine.Stats("a")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalWorkouts)
	require.Equal(t, 45, stats.TotalMinutes)
	require.Equal(t, 1, stats.Streak)
	require.Equal(t, 1, stats.FollowingCount)
	require.Equal(t, 1, stats.FollowerCount)

	profile, err := engine.Profile("a")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, profile.Following)
	require.Equal(t, []string{"b"}, profile.FollowerIDs)
	require.NotNil(t, profile.LastWorkoutAt)

	friends, err := engine.FollowingProfiles("a")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	require.Equal(t, "b", friends[0].ID)
}

func TestResolveChatPartner(t *testing.T) {
	engine, _ := newTestEngine(t, "a", "b")

	partner, err := engine.ResolveChatPartner("a", "b")
	require.NoError(t, err)
	require.Equal(t, "b", partner.ID)

	_, err = engine.ResolveChatPartner("a", "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = engine.ResolveChatPartner("a", "a")
	require.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestRestoreHydratesState(t *testing.T) {
	engine, _ := newTestEngine(t, "a", "b")
	last := time.Date(2025, time.March, 9, 8, 0, 0, 0, time.UTC)

	err := engine.Restore(domain.Snapshot{
		Follows: []domain.FollowEdge{{FollowerID: "a", TargetID: "b"}},
		Activities: []domain.ActivityLog{
			{ID: "old", OwnerID: "b", OccurredAt: last.Add(-time.Hour), LikedByUserIDs: []string{"a", "a"}},
			{ID: "new", OwnerID: "b", OccurredAt: last},
		},
		Streaks: map[string]domain.StreakState{"b": {Streak: 7, LastWorkoutAt: &last}},
	})
	require.NoError(t, err)

	require.True(t, engine.IsFollowing("a", "b"))
	require.Equal(t, 7, engine.Streak("b").Streak)

	feed, err := engine.BuildFeed("a")
	require.NoError(t, err)
	require.Equal(t, []string{"new", "old"}, ids(feed))
	require.Equal(t, []string{"a"}, feed[1].LikedByUserIDs)

	_, err = engine.LogActivity("b", domain.ActivityDraft{})
	require.NoError(t, err)
	require.Equal(t, 8, engine.Streak("b").Streak)
}

func TestRestoreRejectsSelfFollow(t *testing.T) {
	engine, _ := newTestEngine(t, "a")
	err := engine.Restore(domain.Snapshot{Follows: []domain.FollowEdge{{FollowerID: "a", TargetID: "a"}}})
	require.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func ids(logs []domain.ActivityLog) []string {
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.ID)
	}
	return out
}

func TestTimestampsKeepStoragePrecision(t *testing.T) {
	engine, clock := newTestEngine(t, "viewer", "friend")
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	base := time.Date(2025, time.March, 10, 9, 0, 0, 123456789, berlin)

	clock.Set(base)
	older, err := engine.LogActivity("viewer", domain.ActivityDraft{})
	require.NoError(t, err)
	clock.Set(base.Add(time.Minute))
	newer, err := engine.LogActivity("viewer", domain.ActivityDraft{})
	require.NoError(t, err)
	comment, err := engine.AddComment(newer.ID, "friend", "nice")
	require.NoError(t, err)

	want := base.Add(time.Minute).UTC().Truncate(time.Microsecond)
	require.Equal(t, want, newer.OccurredAt)
	require.Equal(t, want, comment.CreatedAt)
	require.Equal(t, time.UTC, older.OccurredAt.Location())

	_, cursor, err := engine.BuildFeedPage("viewer", nil, 1)
	require.NoError(t, err)
	require.NotNil(t, cursor)

	// A restart reloads what the store kept; the cursor must still land between entries.
	stored := engine.History("viewer")
	for i := range stored {
		stored[i].OccurredAt = stored[i].OccurredAt.Round(0).Truncate(time.Microsecond)
	}
	restarted, _ := newTestEngine(t, "viewer", "friend")
	require.NoError(t, restarted.Restore(domain.Snapshot{Activities: stored}))
	page, _, err := restarted.BuildFeedPage("viewer", cursor, 10)
	require.NoError(t, err)
	require.Equal(t, []string{older.ID}, ids(page))
}
