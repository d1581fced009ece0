package export

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amirk1998/secure-journal/internal/models"
	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

const filePrefix = "journal-export-"

// MediaSource opens attachment content, decrypting it when sealed
type MediaSource interface {
	Open(ctx context.Context, att models.MediaAttachment) ([]byte, error)
}

type Options struct {
	Media  MediaSource
	Logger zerolog.Logger
	Clock  func() time.Time
}

// Artifact is a completed export on disk
type Artifact struct {
	Path    string
	Format  Format
	Bundled bool
	Entries int
	SHA256  string
}

type Engine struct {
	dir   string
	media MediaSource
	log   zerolog.Logger
	clock func() time.Time
}

// NewEngine creates an export engine writing into dir
func NewEngine(dir string, opts Options) (*Engine, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: failed to create export directory: %v", apperrors.ErrExportIO, err)
	}

	e := &Engine{dir: dir, media: opts.Media, log: opts.Logger, clock: opts.Clock}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e, nil
}

// Export writes the entries that fall in the requested range. It works on the
// list it is given and never re-reads the store. Either a complete file is
// returned or nothing is left on disk.
func (e *Engine) Export(ctx context.Context, entries []models.Entry, req Request) (*Artifact, error) {
	if req.Format == "" {
		req.Format = FormatJSON
	}
	encode, err := encoderFor(req.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if req.IncludeMedia && e.media == nil {
		return nil, fmt.Errorf("%w: media bundling is not configured", apperrors.ErrInvalidInput)
	}
	if req.Preset, err = ParsePreset(string(req.Preset)); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	start, end := req.bounds(e.clock())
	selected := make([]models.Entry, 0, len(entries))
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if !inRange(entry.CreatedAt, start, end) {
			continue
		}
		if entry.DecryptErr != nil {
			e.log.Warn().Int64("entry_id", entry.ID).Err(entry.DecryptErr).Msg("exporting placeholder for undecryptable entry")
		}
		selected = append(selected, entry)
		records = append(records, toRecord(entry, req.IncludeMedia))
	}

	ext := string(req.Format)
	if req.IncludeMedia {
		ext = "zip"
	}
	finalPath := filepath.Join(e.dir, filePrefix+uuid.NewString()+"."+ext)

	sum, err := e.writeAtomic(ctx, finalPath, func(w io.Writer) error {
		if !req.IncludeMedia {
			return encode(ctx, w, records)
		}
		return e.writeBundle(ctx, w, "journal."+string(req.Format), encode, records, selected)
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.writeAtomic(ctx, finalPath+".sha256", func(w io.Writer) error {
		_, err := io.WriteString(w, sum)
		return err
	}); err != nil {
		os.Remove(finalPath)
		return nil, fmt.Errorf("failed to write checksum: %w", err)
	}

	e.log.Info().
		Str("path", finalPath).
		Str("format", string(req.Format)).
		Bool("media", req.IncludeMedia).
		Int("entries", len(records)).
		Msg("export complete")

	return &Artifact{
		Path:    finalPath,
		Format:  req.Format,
		Bundled: req.IncludeMedia,
		Entries: len(records),
		SHA256:  sum,
	}, nil
}

// writeAtomic streams into a temp file next to path and renames it into place
// once complete. The temp file is removed on any failure or cancellation.
func (e *Engine) writeAtomic(ctx context.Context, path string, write func(io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(e.dir, ".export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create temp file: %v", apperrors.ErrExportIO, err)
	}

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	if err := write(io.MultiWriter(tmp, h)); err != nil {
		return "", exportError(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return "", exportError(ctx, err)
	}

	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("%w: failed to sync export: %v", apperrors.ErrExportIO, err)
	}
	if err := tmp.Chmod(0600); err != nil {
		return "", fmt.Errorf("%w: failed to set export permissions: %v", apperrors.ErrExportIO, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to close export: %v", apperrors.ErrExportIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: failed to finalize export: %v", apperrors.ErrExportIO, err)
	}

	committed = true
	return hexSum(h), nil
}

// writeBundle writes a zip holding the document and the decrypted media files
func (e *Engine) writeBundle(ctx context.Context, w io.Writer, docName string, encode encoder, records []Record, entries []models.Entry) error {
	zw := zip.NewWriter(w)

	doc, err := zw.Create(docName)
	if err != nil {
		return err
	}
	if err := encode(ctx, doc, records); err != nil {
		return err
	}

	for _, entry := range entries {
		for _, att := range entry.Media {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := e.media.Open(ctx, att)
			if err != nil {
				if errors.Is(err, apperrors.ErrKeyUnavailable) {
					return err
				}
				e.log.Warn().Int64("entry_id", entry.ID).Str("media_id", att.ID).Err(err).Msg("skipping unreadable media")
				continue
			}

			f, err := zw.Create("media/" + att.ID)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
				return err
			}
		}
	}

	return zw.Close()
}

// Verify checks an artifact against its checksum file
func (e *Engine) Verify(path string) error {
	stored, err := os.ReadFile(path + ".sha256")
	if err != nil {
		return fmt.Errorf("failed to read checksum file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}

	if hexSum(h) != strings.TrimSpace(string(stored)) {
		return fmt.Errorf("checksum mismatch: export file may be corrupted")
	}
	return nil
}

// CleanOld removes exports older than the retention window
func (e *Engine) CleanOld(retentionDays int) (int, error) {
	cutoff := e.clock().AddDate(0, 0, -retentionDays)

	dirEntries, err := os.ReadDir(e.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read export directory: %w", err)
	}

	deleted := 0
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasPrefix(de.Name(), filePrefix) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			p := filepath.Join(e.dir, de.Name())
			if err := os.Remove(p); err != nil {
				e.log.Warn().Err(err).Str("path", p).Msg("failed to delete old export")
				continue
			}
			deleted++
		}
	}

	if deleted > 0 {
		e.log.Info().Int("deleted", deleted).Int("retention_days", retentionDays).Msg("cleaned old exports")
	}
	return deleted, nil
}

func exportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("export cancelled: %w", ctxErr)
	}
	if errors.Is(err, apperrors.ErrKeyUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrExportIO, err)
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
