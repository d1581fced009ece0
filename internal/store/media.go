package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/amirk1998/secure-journal/internal/events"
	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/internal/security"
	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

const mediaColumns = `id, entry_id, type, file_path, encrypted, nonce, tag_location, created_at`

// MediaVault owns the files behind media attachments. Encrypted files hold
// ciphertext||tag; the nonce lives in the attachment row.
type MediaVault struct {
	b      *Backend
	cipher *security.Cipher
	dir    string
}

// NewMediaVault creates the vault, making its directory if needed
func NewMediaVault(b *Backend, cipher *security.Cipher, dir string) (*MediaVault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &MediaVault{b: b, cipher: cipher, dir: dir}, nil
}

func (v *MediaVault) Dir() string { return v.dir }

// Put stores the content of r as a new, unlinked attachment. It becomes
// owned by an entry once the entry lists it in Media.
func (v *MediaVault) Put(ctx context.Context, kind models.MediaType, r io.Reader, encrypt bool) (models.MediaAttachment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.MediaAttachment{}, fmt.Errorf("failed to read media: %w", err)
	}

	att := models.MediaAttachment{
		ID:        uuid.NewString(),
		Type:      kind,
		CreatedAt: v.b.now(),
	}
	att.FilePath = filepath.Join(v.dir, att.ID)

	if encrypt {
		if err := v.seal(ctx, &att, data); err != nil {
			return models.MediaAttachment{}, err
		}
	} else if err := writeFileAtomic(att.FilePath, data); err != nil {
		return models.MediaAttachment{}, err
	}

	err = v.b.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO media_attachments (id, entry_id, type, file_path, encrypted, nonce, tag_location, created_at)
			VALUES (?, NULL, ?, ?, ?, ?, ?, ?)
		`, att.ID, string(att.Type), att.FilePath, att.Encrypted, nullNonce(att.Nonce), nullString(att.TagLocation), toMillis(att.CreatedAt))
		return err
	}, events.TopicMedia)
	if err != nil {
		os.Remove(att.FilePath)
		return models.MediaAttachment{}, fmt.Errorf("failed to record media: %w", err)
	}

	return att, nil
}

// Open returns the plaintext content of an attachment
func (v *MediaVault) Open(ctx context.Context, att models.MediaAttachment) ([]byte, error) {
	data, err := os.ReadFile(att.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}
	if !att.Encrypted {
		return data, nil
	}

	if len(data) < security.TagSize {
		return nil, fmt.Errorf("%w: media %s truncated", apperrors.ErrDecryptionFailed, att.ID)
	}
	plaintext, err := v.cipher.Decrypt(ctx, security.Sealed{
		Nonce:      att.Nonce,
		Ciphertext: data[:len(data)-security.TagSize],
		Tag:        data[len(data)-security.TagSize:],
	})
	if err != nil {
		return nil, fmt.Errorf("%w: media %s: %w", apperrors.ErrDecryptionFailed, att.ID, err)
	}
	return plaintext, nil
}

// Get retrieves an attachment row by id
func (v *MediaVault) Get(ctx context.Context, id string) (models.MediaAttachment, error) {
	row := v.b.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media_attachments WHERE id = ?`, id)
	att, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return models.MediaAttachment{}, fmt.Errorf("media %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return models.MediaAttachment{}, fmt.Errorf("failed to get media: %w", err)
	}
	return att, nil
}

// sealedSuffix names the encrypted copy written while an attachment is
// being sealed; the row switches to it in the linking transaction
const sealedSuffix = ".sealed"

// pendingSeal is an encrypted copy of a plaintext attachment that no row
// points at yet
type pendingSeal struct {
	att     models.MediaAttachment
	oldPath string
}

// prepareSeals writes encrypted copies of the plaintext attachments in media.
// An attachment owned by an entry other than entryID is refused before any
// file is written. Rows are not touched; see applySeals.
func (v *MediaVault) prepareSeals(ctx context.Context, entryID int64, media []models.MediaAttachment) ([]pendingSeal, error) {
	var pending []pendingSeal
	fail := func(err error) ([]pendingSeal, error) {
		v.finishSeals(pending, false)
		return nil, err
	}

	for _, m := range media {
		att, err := v.Get(ctx, m.ID)
		if err != nil {
			return fail(err)
		}
		if att.EntryID != 0 && att.EntryID != entryID {
			return fail(fmt.Errorf("%w: media %s belongs to entry %d",
				apperrors.ErrConstraintViolation, att.ID, att.EntryID))
		}
	}

	seen := make(map[string]bool, len(media))
	for _, m := range media {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true

		att, err := v.Get(ctx, m.ID)
		if err != nil {
			return fail(err)
		}
		if att.Encrypted {
			continue
		}

		data, err := os.ReadFile(att.FilePath)
		if err != nil {
			return fail(fmt.Errorf("failed to read media file: %w", err))
		}
		oldPath := att.FilePath
		att.FilePath = filepath.Join(v.dir, att.ID+sealedSuffix)
		if err := v.seal(ctx, &att, data); err != nil {
			return fail(err)
		}
		pending = append(pending, pendingSeal{att: att, oldPath: oldPath})
	}
	return pending, nil
}

// applySeals points each row at its encrypted copy. A row that was sealed or
// claimed by another entry since prepareSeals is a constraint violation.
func applySeals(ctx context.Context, tx *sql.Tx, entryID int64, pending []pendingSeal) error {
	for _, p := range pending {
		result, err := tx.ExecContext(ctx, `
			UPDATE media_attachments SET encrypted = 1, nonce = ?, tag_location = ?, file_path = ?
			WHERE id = ? AND encrypted = 0 AND (entry_id IS NULL OR entry_id = ?)
		`, nullNonce(p.att.Nonce), nullString(p.att.TagLocation), p.att.FilePath, p.att.ID, entryID)
		if err != nil {
			return fmt.Errorf("failed to seal media: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: media %s changed while it was being sealed",
				apperrors.ErrConstraintViolation, p.att.ID)
		}
	}
	return nil
}

// finishSeals removes the plaintext files once the rows point at their
// encrypted copies, or the copies when the transaction did not commit
func (v *MediaVault) finishSeals(pending []pendingSeal, committed bool) {
	paths := make([]string, 0, len(pending))
	for _, p := range pending {
		if committed {
			paths = append(paths, p.oldPath)
		} else {
			paths = append(paths, p.att.FilePath)
		}
	}
	v.removeFiles(paths)
}

func (v *MediaVault) seal(ctx context.Context, att *models.MediaAttachment, data []byte) error {
	sealed, err := v.cipher.Encrypt(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to encrypt media: %w", err)
	}

	payload := make([]byte, 0, len(sealed.Ciphertext)+len(sealed.Tag))
	payload = append(payload, sealed.Ciphertext...)
	payload = append(payload, sealed.Tag...)
	if err := writeFileAtomic(att.FilePath, payload); err != nil {
		return err
	}

	att.Encrypted = true
	att.Nonce = sealed.Nonce
	att.TagLocation = models.TagLocationSuffix
	return nil
}

// ReclaimOrphans deletes attachments that no entry owns and files in the
// vault directory that no row references, once they are older than olderThan.
func (v *MediaVault) ReclaimOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := v.b.now().Add(-olderThan)

	var paths []string
	err := v.b.write(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT file_path FROM media_attachments WHERE entry_id IS NULL AND created_at < ?`, toMillis(cutoff))
		if err != nil {
			return err
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return err
			}
			paths = append(paths, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM media_attachments WHERE entry_id IS NULL AND created_at < ?`, toMillis(cutoff))
		return err
	}, events.TopicMedia)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim media: %w", err)
	}

	reclaimed := len(paths)
	v.removeFiles(paths)

	stray, err := v.strayFiles(ctx, cutoff)
	if err != nil {
		return reclaimed, err
	}
	v.removeFiles(stray)

	return reclaimed + len(stray), nil
}

// strayFiles lists files in the vault directory with no attachment row
func (v *MediaVault) strayFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	dirEntries, err := os.ReadDir(v.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list media directory: %w", err)
	}

	var stray []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(v.dir, de.Name())
		var exists int
		err = v.b.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM media_attachments WHERE file_path = ?`, path).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check media file: %w", err)
		}
		if exists == 0 {
			stray = append(stray, path)
		}
	}
	return stray, nil
}

func (v *MediaVault) removeFiles(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			v.b.log.Warn().Err(err).Str("path", p).Msg("failed to remove media file")
		}
	}
}

// loadMedia returns the attachments owned by an entry
func loadMedia(ctx context.Context, q queryer, entryID int64) ([]models.MediaAttachment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media_attachments WHERE entry_id = ? ORDER BY created_at, id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load media: %w", err)
	}
	defer rows.Close()

	media := []models.MediaAttachment{}
	for rows.Next() {
		att, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		media = append(media, att)
	}
	return media, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(s scanner) (models.MediaAttachment, error) {
	var (
		att       models.MediaAttachment
		entryID   sql.NullInt64
		kind      string
		nonce     sql.NullString
		tagLoc    sql.NullString
		createdAt int64
	)
	if err := s.Scan(&att.ID, &entryID, &kind, &att.FilePath, &att.Encrypted, &nonce, &tagLoc, &createdAt); err != nil {
		return att, err
	}

	att.EntryID = entryID.Int64
	att.Type = models.MediaType(kind)
	att.TagLocation = tagLoc.String
	att.CreatedAt = fromMillis(createdAt)
	if nonce.Valid {
		n, err := base64.StdEncoding.DecodeString(nonce.String)
		if err != nil {
			return att, fmt.Errorf("bad nonce on media %s: %w", att.ID, err)
		}
		att.Nonce = n
	}
	return att, nil
}

func nullNonce(n []byte) sql.NullString {
	if len(n) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: base64.StdEncoding.EncodeToString(n), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".media-*")
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write media file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close media file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set media permissions: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
