package service

import (
	"context"
	"fmt"

	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/internal/store"
)

// milestones unlock once the journal holds at least Count entries
var milestones = []struct {
	Count       int
	Achievement models.Achievement
}{
	{1, models.Achievement{Code: "first_entry", Title: "First entry", Description: "Wrote the first journal entry"}},
	{10, models.Achievement{Code: "ten_entries", Title: "Getting started", Description: "Wrote ten entries"}},
	{100, models.Achievement{Code: "hundred_entries", Title: "Dedicated", Description: "Wrote one hundred entries"}},
}

// AchievementHooks unlocks entry-count milestones as entries are created
type AchievementHooks struct {
	entries  *store.EntryStore
	trackers *store.TrackerStore
}

func NewAchievementHooks(entries *store.EntryStore, trackers *store.TrackerStore) *AchievementHooks {
	return &AchievementHooks{entries: entries, trackers: trackers}
}

func (h *AchievementHooks) EntryCreated(ctx context.Context, e models.Entry) error {
	count, err := h.entries.Count(ctx)
	if err != nil {
		return err
	}

	for _, m := range milestones {
		if count < m.Count {
			break
		}
		if _, err := h.trackers.UnlockAchievement(ctx, m.Achievement); err != nil {
			return fmt.Errorf("failed to unlock %s: %w", m.Achievement.Code, err)
		}
	}
	return nil
}

// EntryDeleted is a no-op; achievements are never revoked
func (h *AchievementHooks) EntryDeleted(ctx context.Context, id int64) error {
	return nil
}
