// Package projector derives per-user chat summaries from durable state.
// Summaries are recomputed on every call and never cached, so there is
// no staleness to manage.
package projector

import (
	"fmt"
	"sort"

	"chatrelay/pkg/events"
	"chatrelay/pkg/models"
	"chatrelay/pkg/store"
)

// ForUser returns one summary per thread the user participates in,
// ordered by thread activity (most recent first). Threads without
// messages yield a null previous_message; a present previous_message
// always carries delivery_status and unread_count.
func ForUser(userID string) ([]models.ChatSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", events.ErrValidation)
	}
	threads, err := store.ThreadsForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list threads: %v", events.ErrPersistence, err)
	}
	out := make([]models.ChatSummary, 0, len(threads))
	for _, t := range threads {
		s, err := project(t, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedTS > out[j].UpdatedTS })
	return out, nil
}

func project(t models.Thread, userID string) (models.ChatSummary, error) {
	unread, err := store.CountUnread(t.ID, userID)
	if err != nil {
		return models.ChatSummary{}, fmt.Errorf("%w: count unread: %v", events.ErrPersistence, err)
	}
	s := models.ChatSummary{
		ChatID:      t.ID,
		ChatType:    t.Type,
		Counterpart: store.GetProfile(t.Counterpart(userID)),
		UnreadCount: unread,
		UpdatedTS:   t.UpdatedTS,
	}
	last, found, err := store.LatestMessage(t.ID)
	if err != nil {
		return models.ChatSummary{}, fmt.Errorf("%w: latest message: %v", events.ErrPersistence, err)
	}
	if found {
		s.PreviousMessage = models.NewPreview(last, unread)
	}
	return s, nil
}
