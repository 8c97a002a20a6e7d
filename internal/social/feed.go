package social

import (
	"sort"

	"example.com/fitsocial/internal/domain"
)

// BuildFeed merges the viewer's own ledger with the ledgers of everyone the
// viewer follows. Entries are ordered by OccurredAt descending and then by id
// ascending, so unchanged data always yields the same sequence. The returned
// logs are copies; engagement changes go through ToggleLike and AddComment.
func (e *Engine) BuildFeed(viewerID string) ([]domain.ActivityLog, error) {
	if _, err := e.registry.Get(viewerID); err != nil {
		return nil, err
	}

	sources := append([]string{viewerID}, e.graph.followingOf(viewerID)...)
	feed := make([]domain.ActivityLog, 0)
	for _, id := range sources {
		for _, en := range e.ledger.entriesOf(id) {
			feed = append(feed, en.snapshot())
		}
	}

	sort.Slice(feed, func(i, j int) bool {
		return feedLess(feed[i], feed[j])
	})
	return feed, nil
}

// BuildFeedPage returns up to limit entries of BuildFeed positioned after cursor,
// plus the cursor of the following page when more entries remain.
func (e *Engine) BuildFeedPage(viewerID string, cursor *domain.FeedCursor, limit int) ([]domain.ActivityLog, *domain.FeedCursor, error) {
	feed, err := e.BuildFeed(viewerID)
	if err != nil {
		return nil, nil, err
	}

	start := 0
	if cursor != nil {
		start = sort.Search(len(feed), func(i int) bool {
			return afterCursor(feed[i], *cursor)
		})
	}
	feed = feed[start:]
	if limit <= 0 || limit >= len(feed) {
		return feed, nil, nil
	}

	page := feed[:limit]
	last := page[len(page)-1]
	return page, &domain.FeedCursor{OccurredAt: last.OccurredAt, ID: last.ID}, nil
}

func feedLess(a, b domain.ActivityLog) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.After(b.OccurredAt)
	}
	return a.ID < b.ID
}

// afterCursor reports whether log sorts strictly after the cursor position.
func afterCursor(log domain.ActivityLog, c domain.FeedCursor) bool {
	return feedLess(domain.ActivityLog{OccurredAt: c.OccurredAt, ID: c.ID}, log)
}
