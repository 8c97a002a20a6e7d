package social

import (
	"fmt"
	"slices"
	"strings"

	"example.com/fitsocial/internal/domain"
)

// ToggleLike adds userID to the activity's likes, or removes it when already
// present. Likes are kept sorted so two toggles restore the exact prior state.
func (e *Engine) ToggleLike(activityID, userID string) (bool, domain.ActivityLog, error) {
	en, ok := e.ledger.lookup(activityID)
	if !ok {
		return false, domain.ActivityLog{}, fmt.Errorf("%w: activity %s", domain.ErrNotFound, activityID)
	}
	if _, err := e.registry.Get(userID); err != nil {
		return false, domain.ActivityLog{}, err
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	likes := en.log.LikedByUserIDs
	pos, found := slices.BinarySearch(likes, userID)
	if found {
		en.log.LikedByUserIDs = slices.Delete(likes, pos, pos+1)
	} else {
		en.log.LikedByUserIDs = slices.Insert(likes, pos, userID)
	}
	return !found, en.log.Clone(), nil
}

// AddComment appends a comment to the activity. Blank text is rejected before
// anything is written.
func (e *Engine) AddComment(activityID, authorID, text string) (domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Comment{}, fmt.Errorf("%w: comment text is empty", domain.ErrInvalidOperation)
	}
	en, ok := e.ledger.lookup(activityID)
	if !ok {
		return domain.Comment{}, fmt.Errorf("%w: activity %s", domain.ErrNotFound, activityID)
	}
	if _, err := e.registry.Get(authorID); err != nil {
		return domain.Comment{}, err
	}

	comment := domain.Comment{
		ID:        e.newID(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: e.timestamp(),
	}

	en.mu.Lock()
	defer en.mu.Unlock()
	en.log.Comments = append(en.log.Comments, comment)
	return comment, nil
}
