package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/secure-journal/internal/models"
	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

func TestMoodSeedDefaultsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	added, err := env.moods.SeedDefaults(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, added, "catalog was seeded by the test env")

	moods, err := env.moods.List(env.ctx)
	require.NoError(t, err)
	require.Len(t, moods, len(DefaultMoods))
	for i := 1; i < len(moods); i++ {
		assert.LessOrEqual(t, moods[i-1].Label, moods[i].Label, "ordered by label")
	}
}

func TestMoodUpsertValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.moods.Upsert(env.ctx, &models.Mood{Label: "  ", Level: models.MoodGood})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = env.moods.Upsert(env.ctx, &models.Mood{Label: "Giddy", Level: "ELATED"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = env.moods.Upsert(env.ctx, &models.Mood{ID: 999, Label: "Giddy", Level: models.MoodGood})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	id, err := env.moods.Upsert(env.ctx, &models.Mood{Label: "Giddy", Level: models.MoodExcellent, Emoji: "😆"})
	require.NoError(t, err)

	m, err := env.moods.Get(env.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Giddy", m.Label)
	assert.Equal(t, models.MoodExcellent, m.Level)
}

func TestMoodDeleteKeepsEntrySnapshot(t *testing.T) {
	env := newTestEnv(t)
	anxious := env.moodID(t, "Anxious")

	e := env.insert(t, models.Entry{Title: "exam", MoodID: anxious})

	require.NoError(t, env.moods.Delete(env.ctx, anxious))
	assert.ErrorIs(t, env.moods.Delete(env.ctx, anxious), apperrors.ErrNotFound)

	got, err := env.entries.GetByID(env.ctx, e.ID)
	require.NoError(t, err)
	assert.Zero(t, got.MoodID)
	assert.Equal(t, "Anxious", got.MoodLabel)
	assert.Equal(t, models.MoodPoor, got.MoodLevel)
}

func TestMoodObserve(t *testing.T) {
	env := newTestEnv(t)

	stream := env.moods.Observe(env.ctx)
	defer stream.Close()

	first := next(t, stream)
	require.NoError(t, first.Err)
	assert.Len(t, first.Value, len(DefaultMoods))

	_, err := env.moods.Upsert(env.ctx, &models.Mood{Label: "Bored", Level: models.MoodNeutral})
	require.NoError(t, err)

	second := next(t, stream)
	assert.Len(t, second.Value, len(DefaultMoods)+1)
}

func TestTagSeedAndUsageCounts(t *testing.T) {
	env := newTestEnv(t)

	added, err := env.tags.SeedDefaults(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultTags), added)

	added, err = env.tags.SeedDefaults(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, added)

	env.insert(t, models.Entry{Title: "a", MoodID: env.moodID(t, "Happy"), Tags: []string{"Work", "Reading", "Work"}})
	env.insert(t, models.Entry{Title: "b", MoodID: env.moodID(t, "Happy"), Tags: []string{"Work"}})

	tags, err := env.tags.List(env.ctx)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, tag := range tags {
		counts[tag.Label] = tag.UsageCount
	}
	assert.Equal(t, 2, counts["Work"])
	assert.Equal(t, 1, counts["Reading"], "unknown labels join the catalog")
	assert.Equal(t, 0, counts["Travel"])
	assert.Len(t, tags, len(DefaultTags)+1)
}

func TestTagUpsertDuplicateLabel(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tags.Upsert(env.ctx, &models.Tag{Label: "Books"})
	require.NoError(t, err)

	_, err = env.tags.Upsert(env.ctx, &models.Tag{Label: "Books"})
	assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)

	_, err = env.tags.Upsert(env.ctx, &models.Tag{Label: ""})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTagRenameAndDeleteRewriteEntries(t *testing.T) {
	env := newTestEnv(t)

	e := env.insert(t, models.Entry{Title: "a", MoodID: env.moodID(t, "Happy"), Tags: []string{"Job", "Family"}})

	var jobID int64
	tags, err := env.tags.List(env.ctx)
	require.NoError(t, err)
	for _, tag := range tags {
		if tag.Label == "Job" {
			jobID = tag.ID
		}
	}
	require.NotZero(t, jobID)

	_, err = env.tags.Upsert(env.ctx, &models.Tag{ID: jobID, Label: "Career"})
	require.NoError(t, err)

	got, err := env.entries.GetByID(env.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Career", "Family"}, got.Tags)

	found, err := env.entries.Query(env.ctx, models.Criteria{Tags: "Career"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, env.tags.Delete(env.ctx, jobID))
	assert.ErrorIs(t, env.tags.Delete(env.ctx, jobID), apperrors.ErrNotFound)

	got, err = env.entries.GetByID(env.ctx, e.ID)
	require.NoError(t, err, "deleting a tag never deletes entries")
	assert.Equal(t, []string{"Family"}, got.Tags)

	var links int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM entry_tags WHERE tag_id = ?`, jobID).Scan(&links))
	assert.Zero(t, links)
}

func TestReclaimOrphans(t *testing.T) {
	env := newTestEnv(t)

	orphan, err := env.media.Put(env.ctx, models.MediaPhoto, bytes.NewReader([]byte("unlinked")), false)
	require.NoError(t, err)
	kept, err := env.media.Put(env.ctx, models.MediaPhoto, bytes.NewReader([]byte("linked")), true)
	require.NoError(t, err)
	dropped, err := env.media.Put(env.ctx, models.MediaVideo, bytes.NewReader([]byte("dropped")), false)
	require.NoError(t, err)

	e := env.insert(t, models.Entry{
		Title:  "album",
		MoodID: env.moodID(t, "Happy"),
		Media:  []models.MediaAttachment{kept, dropped},
	})
	e.Media = []models.MediaAttachment{kept}
	require.NoError(t, env.entries.Update(env.ctx, &e))

	stray := filepath.Join(env.media.Dir(), "stray.bin")
	require.NoError(t, os.WriteFile(stray, []byte("left behind"), 0600))

	n, err := env.media.ReclaimOrphans(env.ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is old enough yet")

	env.clock.Advance(2 * time.Hour)
	n, err = env.media.ReclaimOrphans(env.ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, p := range []string{orphan.FilePath, dropped.FilePath, stray} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}

	content, err := env.media.Open(env.ctx, kept)
	require.NoError(t, err)
	assert.Equal(t, "linked", string(content))
}

func TestGoalProgress(t *testing.T) {
	env := newTestEnv(t)

	deadline := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	id, err := env.trackers.CreateGoal(env.ctx, &models.Goal{Title: "Write 3 entries", Target: 3, Deadline: &deadline})
	require.NoError(t, err)

	g, err := env.trackers.AddProgress(env.ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Progress)
	assert.False(t, g.Completed)

	g, err = env.trackers.AddProgress(env.ctx, id, 1)
	require.NoError(t, err)
	assert.True(t, g.Completed)
	assert.Equal(t, deadline, *g.Deadline)

	g, err = env.trackers.AddProgress(env.ctx, id, -10)
	require.NoError(t, err)
	assert.Zero(t, g.Progress)
	assert.False(t, g.Completed)

	_, err = env.trackers.AddProgress(env.ctx, 999, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, env.trackers.DeleteGoal(env.ctx, id))
	assert.ErrorIs(t, env.trackers.DeleteGoal(env.ctx, id), apperrors.ErrNotFound)
}

func TestHabitStreaks(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.trackers.CreateHabit(env.ctx, &models.Habit{Name: "Meditate"})
	require.NoError(t, err)

	day := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	steps := []struct {
		at      time.Time
		current int
		best    int
	}{
		{day, 1, 1},
		{day.Add(4 * time.Hour), 1, 1},
		{day.Add(24 * time.Hour), 2, 2},
		{day.Add(48 * time.Hour), 3, 3},
		{day.Add(5 * 24 * time.Hour), 1, 3},
	}
	for _, step := range steps {
		h, err := env.trackers.CompleteHabit(env.ctx, id, step.at)
		require.NoError(t, err)
		assert.Equal(t, step.current, h.CurrentStreak, step.at)
		assert.Equal(t, step.best, h.BestStreak, step.at)
	}

	_, err = env.trackers.CreateHabit(env.ctx, &models.Habit{Name: "Run", Frequency: "HOURLY"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestWeeklyHabitStreak(t *testing.T) {
	h := models.Habit{Frequency: models.HabitWeekly}

	monday := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	advanceStreak(&h, monday)
	advanceStreak(&h, monday.Add(6*24*time.Hour)) // sunday, same week
	assert.Equal(t, 1, h.CurrentStreak)

	advanceStreak(&h, monday.Add(7*24*time.Hour))
	assert.Equal(t, 2, h.CurrentStreak)

	advanceStreak(&h, monday.Add(21*24*time.Hour))
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 2, h.BestStreak)
}

func TestUnlockAchievementOnce(t *testing.T) {
	env := newTestEnv(t)

	a := models.Achievement{Code: "first_entry", Title: "First entry"}
	unlocked, err := env.trackers.UnlockAchievement(env.ctx, a)
	require.NoError(t, err)
	assert.True(t, unlocked)

	unlocked, err = env.trackers.UnlockAchievement(env.ctx, a)
	require.NoError(t, err)
	assert.False(t, unlocked)

	list, err := env.trackers.ListAchievements(env.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].UnlockedAt)
}
