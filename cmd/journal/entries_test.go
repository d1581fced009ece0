package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/secure-journal/internal/models"
)

func filterCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	addFilterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestCriteriaFromFlagsDefaults(t *testing.T) {
	c, err := criteriaFromFlags(filterCmd(t))
	require.NoError(t, err)

	assert.Empty(t, c.Text)
	assert.Nil(t, c.Start)
	assert.Nil(t, c.End)
	assert.Nil(t, c.HasMedia)
	assert.Nil(t, c.Pinned)
	assert.Nil(t, c.Favorite)
	assert.Empty(t, c.MoodLevels)
}

func TestCriteriaFromFlags(t *testing.T) {
	c, err := criteriaFromFlags(filterCmd(t,
		"--text", "beach",
		"--from", "2024-03-01",
		"--to", "2024-03-31",
		"--level", "good,excellent",
		"--has-media=false",
		"--pinned",
		"--limit", "10",
	))
	require.NoError(t, err)

	assert.Equal(t, "beach", c.Text)
	assert.Equal(t, 10, c.Limit)
	assert.Equal(t, []models.MoodLevel{models.MoodGood, models.MoodExcellent}, c.MoodLevels)

	require.NotNil(t, c.HasMedia)
	assert.False(t, *c.HasMedia)
	require.NotNil(t, c.Pinned)
	assert.True(t, *c.Pinned)
	assert.Nil(t, c.Favorite)

	require.NotNil(t, c.Start)
	require.NotNil(t, c.End)
	assert.True(t, c.Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)))
	assert.True(t, c.End.Equal(time.Date(2024, 3, 31, 23, 59, 59, int(999*time.Millisecond), time.Local)))
}

func TestCriteriaFromFlagsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad from", []string{"--from", "03/01/2024"}},
		{"bad to", []string{"--to", "tomorrow"}},
		{"unknown level", []string{"--level", "meh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := criteriaFromFlags(filterCmd(t, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestEntryFlags(t *testing.T) {
	e := models.Entry{
		IsPinned:    true,
		IsEncrypted: true,
		Media:       []models.MediaAttachment{{ID: "a"}, {ID: "b"}},
	}
	assert.Equal(t, "pinned,encrypted,2 media", entryFlags(e))
	assert.Empty(t, entryFlags(models.Entry{}))
}
