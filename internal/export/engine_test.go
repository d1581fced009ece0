package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/secure-journal/internal/models"
	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

type memoryMedia map[string][]byte

func (m memoryMedia) Open(ctx context.Context, att models.MediaAttachment) ([]byte, error) {
	data, ok := m[att.ID]
	if !ok {
		return nil, fmt.Errorf("%w: media %s", apperrors.ErrDecryptionFailed, att.ID)
	}
	return data, nil
}

var exportNow = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, media MediaSource) *Engine {
	t.Helper()
	e, err := NewEngine(t.TempDir(), Options{
		Media:  media,
		Logger: zerolog.Nop(),
		Clock:  func() time.Time { return exportNow },
	})
	require.NoError(t, err)
	return e
}

func firstEntry() models.Entry {
	created := exportNow.Add(-48 * time.Hour)
	return models.Entry{
		ID:        1,
		Title:     "First",
		Content:   "A calm start",
		CreatedAt: created,
		UpdatedAt: created,
		MoodID:    3,
		MoodLabel: "Calm",
		MoodLevel: models.MoodGood,
		Tags:      []string{"Work"},
		Media: []models.MediaAttachment{
			{ID: "m-1", Type: models.MediaPhoto, FilePath: "/vault/m-1"},
		},
	}
}

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestExportJSONScenario(t *testing.T) {
	e := newTestEngine(t, nil)

	art, err := e.Export(context.Background(), []models.Entry{firstEntry()}, Request{Format: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, 1, art.Entries)
	assert.Equal(t, ".json", filepath.Ext(art.Path))

	records := readRecords(t, art.Path)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "First", r["title"])
	assert.Equal(t, "Calm", r["mood"])
	assert.Equal(t, "GOOD", r["moodLevel"])
	assert.Contains(t, r["tags"], "Work")
	assert.NotEmpty(t, r["media"])

	for _, key := range recordKeys {
		assert.Contains(t, r, key, "key %s must never be omitted", key)
	}
	assert.Nil(t, r["prompt"])
	assert.Nil(t, r["location"])
	assert.Nil(t, r["decryptionError"])
	assert.Equal(t, []any{}, r["factors"])

	require.NoError(t, e.Verify(art.Path))
}

func TestExportIsIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	entries := []models.Entry{firstEntry(), {ID: 2, Title: "Second", CreatedAt: exportNow, UpdatedAt: exportNow}}

	for _, format := range []Format{FormatJSON, FormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			a, err := e.Export(context.Background(), entries, Request{Format: format})
			require.NoError(t, err)
			b, err := e.Export(context.Background(), entries, Request{Format: format})
			require.NoError(t, err)

			assert.NotEqual(t, a.Path, b.Path, "every export gets its own path")
			first, err := os.ReadFile(a.Path)
			require.NoError(t, err)
			second, err := os.ReadFile(b.Path)
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Equal(t, a.SHA256, b.SHA256)
		})
	}
}

func TestExportCSV(t *testing.T) {
	e := newTestEngine(t, nil)
	entry := firstEntry()
	entry.Tags = []string{"Work", "Family"}
	entry.Location = &models.Location{Latitude: 1.5, Longitude: 2.5, Name: "Office"}

	art, err := e.Export(context.Background(), []models.Entry{entry}, Request{Format: FormatCSV})
	require.NoError(t, err)

	f, err := os.Open(art.Path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, recordKeys, rows[0])

	row := map[string]string{}
	for i, key := range rows[0] {
		row[key] = rows[1][i]
	}
	assert.Equal(t, "First", row["title"])
	assert.Equal(t, "Work|Family", row["tags"])
	assert.Equal(t, "PHOTO:/vault/m-1", row["media"])
	assert.Equal(t, "Office (1.5,2.5)", row["location"])
	assert.Equal(t, "", row["decryptionError"])
}

func TestExportPlaceholderForUndecryptableEntry(t *testing.T) {
	e := newTestEngine(t, nil)
	broken := models.Entry{
		ID:         9,
		CreatedAt:  exportNow,
		MoodLabel:  "Sad",
		MoodLevel:  models.MoodPoor,
		DecryptErr: fmt.Errorf("entry 9: %w", apperrors.ErrDecryptionFailed),
	}

	art, err := e.Export(context.Background(), []models.Entry{firstEntry(), broken}, Request{Format: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, 2, art.Entries)

	records := readRecords(t, art.Path)
	require.Len(t, records, 2)
	assert.Equal(t, Placeholder, records[1]["title"])
	assert.Equal(t, Placeholder, records[1]["content"])
	assert.NotNil(t, records[1]["decryptionError"])
	assert.Equal(t, "Sad", records[1]["mood"])
	assert.Equal(t, "First", records[0]["title"])
}

func TestExportRangeSelection(t *testing.T) {
	e := newTestEngine(t, nil)
	entries := []models.Entry{
		{ID: 1, Title: "today", CreatedAt: exportNow},
		{ID: 2, Title: "last week", CreatedAt: exportNow.AddDate(0, 0, -5)},
		{ID: 3, Title: "last month", CreatedAt: exportNow.AddDate(0, 0, -20)},
		{ID: 4, Title: "last year", CreatedAt: exportNow.AddDate(-1, 0, 0)},
	}

	tests := []struct {
		name string
		req  Request
		want int
	}{
		{"all", Request{Preset: PresetAll}, 4},
		{"last 7 days", Request{Preset: PresetLast7Days}, 2},
		{"last 30 days", Request{Preset: PresetLast30Days}, 3},
		{"this year", Request{Preset: PresetThisYear}, 3},
		{"explicit inclusive bounds", Request{
			Start: timePtr(exportNow.AddDate(0, 0, -20)),
			End:   timePtr(exportNow.AddDate(0, 0, -5)),
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, err := e.Export(context.Background(), entries, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, art.Entries)
			assert.Len(t, readRecords(t, art.Path), tt.want)
		})
	}
}

func TestExportPDF(t *testing.T) {
	e := newTestEngine(t, nil)
	entries := []models.Entry{
		firstEntry(),
		{ID: 2, Title: "Café notes", Content: "Crème brûlée", CreatedAt: exportNow, MoodLabel: "Happy", MoodLevel: models.MoodGood},
	}

	art, err := e.Export(context.Background(), entries, Request{Format: FormatPDF})
	require.NoError(t, err)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestExportBundleIncludesDecryptedMedia(t *testing.T) {
	media := memoryMedia{"m-1": []byte("photo bytes")}
	e := newTestEngine(t, media)

	entry := firstEntry()
	entry.Media = append(entry.Media, models.MediaAttachment{ID: "m-gone", Type: models.MediaAudio})

	art, err := e.Export(context.Background(), []models.Entry{entry}, Request{Format: FormatJSON, IncludeMedia: true})
	require.NoError(t, err)
	assert.Equal(t, ".zip", filepath.Ext(art.Path))

	zr, err := zip.OpenReader(art.Path)
	require.NoError(t, err)
	defer zr.Close()

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = data
	}

	require.Contains(t, files, "journal.json")
	assert.Equal(t, []byte("photo bytes"), files["media/m-1"])
	assert.NotContains(t, files, "media/m-gone", "unreadable media is skipped, not fatal")

	var records []map[string]any
	require.NoError(t, json.Unmarshal(files["journal.json"], &records))
	media0 := records[0]["media"].([]any)[0].(map[string]any)
	assert.Equal(t, "media/m-1", media0["path"])
}

type cancelOnOpen struct {
	cancel context.CancelFunc
}

func (c cancelOnOpen) Open(ctx context.Context, att models.MediaAttachment) ([]byte, error) {
	c.cancel()
	return []byte("late"), nil
}

func TestExportCancelledLeavesNoFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newTestEngine(t, cancelOnOpen{cancel: cancel})

	_, err := e.Export(ctx, []models.Entry{firstEntry(), firstEntry()}, Request{Format: FormatCSV, IncludeMedia: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	leftovers, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExportIOFailure(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, os.RemoveAll(e.dir))
	require.NoError(t, os.WriteFile(e.dir, []byte("not a directory"), 0600))

	_, err := e.Export(context.Background(), []models.Entry{firstEntry()}, Request{Format: FormatJSON})
	assert.ErrorIs(t, err, apperrors.ErrExportIO)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Export(context.Background(), nil, Request{Format: "docx"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = ParseFormat("docx")
	assert.Error(t, err)
	p, err := ParsePreset("")
	require.NoError(t, err)
	assert.Equal(t, PresetAll, p)
}

func TestExportRejectsUnknownPreset(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Export(context.Background(), []models.Entry{firstEntry()}, Request{Format: FormatJSON, Preset: "last_week"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	leftovers, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	art, err := e.Export(context.Background(), []models.Entry{firstEntry()}, Request{Format: FormatJSON, Preset: " Last_7_Days "})
	require.NoError(t, err)
	assert.Equal(t, 1, art.Entries)
}

func TestExportWritesChecksumSidecar(t *testing.T) {
	e := newTestEngine(t, nil)
	art, err := e.Export(context.Background(), []models.Entry{firstEntry()}, Request{Format: FormatJSON})
	require.NoError(t, err)

	files, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	base := filepath.Base(art.Path)
	assert.ElementsMatch(t, []string{base, base + ".sha256"}, names, "no temp files remain")

	sidecar, err := os.ReadFile(art.Path + ".sha256")
	require.NoError(t, err)
	assert.Equal(t, art.SHA256, string(sidecar))

	info, err := os.Stat(art.Path + ".sha256")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.NoError(t, e.Verify(art.Path))
}

func TestVerifyDetectsTampering(t *testing.T) {
	e := newTestEngine(t, nil)
	art, err := e.Export(context.Background(), []models.Entry{firstEntry()}, Request{Format: FormatJSON})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(art.Path, []byte("[]"), 0600))
	assert.Error(t, e.Verify(art.Path))
}

func TestCleanOld(t *testing.T) {
	e := newTestEngine(t, nil)

	art, err := e.Export(context.Background(), []models.Entry{firstEntry()}, Request{Format: FormatJSON})
	require.NoError(t, err)

	unrelated := filepath.Join(e.dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0600))

	old := exportNow.AddDate(0, 0, -40)
	for _, p := range []string{art.Path, art.Path + ".sha256", unrelated} {
		require.NoError(t, os.Chtimes(p, old, old))
	}

	deleted, err := e.CleanOld(30)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
	_, err = os.Stat(art.Path)
	assert.True(t, os.IsNotExist(err))
}

func timePtr(t time.Time) *time.Time { return &t }
