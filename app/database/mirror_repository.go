package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

var _ MirrorRepository = (*SQLiteMirrorRepository)(nil)

// SQLiteMirrorRepository handles ledger operations backed by sqlite
type SQLiteMirrorRepository struct {
	db *DB
}

func NewSQLiteMirrorRepository(db *DB) *SQLiteMirrorRepository {
	return &SQLiteMirrorRepository{db: db}
}

// Ledger returns the ledger scoped to job
func (r *SQLiteMirrorRepository) Ledger(job string) mirror.Ledger {
	return &sqliteLedger{db: r.db, job: job}
}

func (r *SQLiteMirrorRepository) GetMirroredCount(ctx context.Context, job string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mirrored_items WHERE job = ?`, job).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mirrored items: %w", err)
	}
	return count, nil
}

// GetRecentItems returns the most recently mirrored records, newest first
func (r *SQLiteMirrorRepository) GetRecentItems(ctx context.Context, job string, limit int) ([]mirror.LedgerRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_id, title, body, link_url, image_url, raw_url, permalink, flair,
			pinned, adult, poll, locked, video, is_gallery, mirrored_at
		FROM mirrored_items
		WHERE job = ?
		ORDER BY mirrored_at DESC, source_id
		LIMIT ?
	`, job, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mirrored items: %w", err)
	}
	defer rows.Close()

	var records []mirror.LedgerRecord
	for rows.Next() {
		var rec mirror.LedgerRecord
		var mirroredAt int64
		err := rows.Scan(&rec.SourceID, &rec.Title, &rec.Body, &rec.LinkURL, &rec.ImageURL, &rec.RawURL,
			&rec.Permalink, &rec.Flair, &rec.Pinned, &rec.Adult, &rec.Poll, &rec.Locked, &rec.Video,
			&rec.IsGallery, &mirroredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mirrored item: %w", err)
		}
		rec.MirroredAt = time.Unix(mirroredAt, 0).UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mirrored items: %w", err)
	}

	return records, nil
}

type sqliteLedger struct {
	db  *DB
	job string
}

func (l *sqliteLedger) Contains(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM mirrored_items WHERE job = ? AND source_id = ?)`,
		l.job, sourceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check mirrored item: %w", err)
	}
	return exists, nil
}

func (l *sqliteLedger) Insert(ctx context.Context, rec mirror.LedgerRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO mirrored_items (
			job, source_id, title, body, link_url, image_url, raw_url, permalink, flair,
			pinned, adult, poll, locked, video, is_gallery, mirrored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job, source_id) DO NOTHING
	`, l.job, rec.SourceID, rec.Title, rec.Body, rec.LinkURL, rec.ImageURL, rec.RawURL, rec.Permalink,
		rec.Flair, rec.Pinned, rec.Adult, rec.Poll, rec.Locked, rec.Video, rec.IsGallery,
		rec.MirroredAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert mirrored item: %w", err)
	}
	return nil
}
