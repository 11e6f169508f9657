package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kdimtricp/copyscan/internal/patterns"
)

// ReferenceRepository stores one session's reference videos in insertion
// order.
type ReferenceRepository struct {
	db        *DB
	sessionID string
}

func NewReferenceRepository(db *DB, sessionID string) *ReferenceRepository {
	return &ReferenceRepository{db: db, sessionID: sessionID}
}

func (r *ReferenceRepository) Insert(ctx context.Context, entry patterns.ReferenceEntry) error {
	keywords := entry.ExtractedKeywords
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT INTO reference_videos (id, session_id, filename, keywords, upload_date)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := r.db.conn.ExecContext(ctx, query,
		entry.ID,
		r.sessionID,
		entry.Filename,
		string(keywordsJSON),
		entry.UploadDate.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert reference video: %w", err)
	}
	return nil
}

func (r *ReferenceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx,
		"DELETE FROM reference_videos WHERE id = ? AND session_id = ?", id, r.sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete reference video: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete reference video: %w", err)
	}
	if n == 0 {
		return patterns.ErrReferenceNotFound
	}
	return nil
}

func (r *ReferenceRepository) List(ctx context.Context) ([]patterns.ReferenceEntry, error) {
	query := `
		SELECT id, filename, keywords, upload_date
		FROM reference_videos
		WHERE session_id = ?
		ORDER BY seq ASC`

	rows, err := r.db.conn.QueryContext(ctx, query, r.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference videos: %w", err)
	}
	defer rows.Close()

	entries := []patterns.ReferenceEntry{}
	for rows.Next() {
		var (
			entry    patterns.ReferenceEntry
			keywords string
		)
		if err := rows.Scan(&entry.ID, &entry.Filename, &keywords, &entry.UploadDate); err != nil {
			return nil, fmt.Errorf("failed to scan reference video: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &entry.ExtractedKeywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

func (r *ReferenceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reference_videos WHERE session_id = ?", r.sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reference videos: %w", err)
	}
	return count, nil
}

// Purge drops every reference of the session.
func (r *ReferenceRepository) Purge(ctx context.Context) error {
	if _, err := r.db.conn.ExecContext(ctx,
		"DELETE FROM reference_videos WHERE session_id = ?", r.sessionID); err != nil {
		return fmt.Errorf("failed to purge reference videos: %w", err)
	}
	return nil
}
