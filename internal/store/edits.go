package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Edit is a stored user correction, keyed by the song's identity key.
// Empty fields mean "no override for this field".
type Edit struct {
	Key       string
	Artist    string
	Track     string
	Album     string
	UpdatedAt time.Time
}

// SaveEdit inserts or replaces the edit for its identity key.
func (s *Store) SaveEdit(ctx context.Context, edit Edit) error {
	if edit.Key == "" {
		return errors.New("edit key must not be empty")
	}

	query := `
		INSERT INTO song_edits (key, artist, track, album, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			artist = excluded.artist,
			track = excluded.track,
			album = excluded.album,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		edit.Key,
		edit.Artist,
		edit.Track,
		edit.Album,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save edit: %w", err)
	}
	return nil
}

// GetEdit looks the edit up by identity key. The second return is false
// when no edit is stored for the key.
func (s *Store) GetEdit(ctx context.Context, key string) (Edit, bool, error) {
	query := `
		SELECT key, artist, track, album, updated_at
		FROM song_edits
		WHERE key = ?
	`

	var edit Edit
	var updatedUnix int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&edit.Key,
		&edit.Artist,
		&edit.Track,
		&edit.Album,
		&updatedUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Edit{}, false, nil
	}
	if err != nil {
		return Edit{}, false, fmt.Errorf("failed to get edit: %w", err)
	}

	edit.UpdatedAt = time.Unix(updatedUnix, 0)
	return edit, true, nil
}

// DeleteEdit removes the stored edit for the key. Deleting a key with no
// stored edit is not an error.
func (s *Store) DeleteEdit(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM song_edits WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete edit: %w", err)
	}
	return nil
}

// CountEdits returns the number of stored edits.
func (s *Store) CountEdits(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM song_edits").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count edits: %w", err)
	}
	return count, nil
}
