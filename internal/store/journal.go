package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// JournalEntry is one submitted scrobble as recorded locally. Providers
// lists the backends that accepted it.
type JournalEntry struct {
	ID          int64
	Artist      string
	Track       string
	Album       string
	Duration    time.Duration
	ScrobbledAt time.Time
	Providers   []string
}

// AddJournalEntry records a submitted scrobble.
func (s *Store) AddJournalEntry(ctx context.Context, entry JournalEntry) (int64, error) {
	query := `
		INSERT INTO journal (artist, track, album, duration, scrobbled_at, providers)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	scrobbledAt := entry.ScrobbledAt
	if scrobbledAt.IsZero() {
		scrobbledAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, query,
		entry.Artist,
		entry.Track,
		entry.Album,
		int64(entry.Duration.Seconds()),
		scrobbledAt.Unix(),
		strings.Join(entry.Providers, ","),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert journal entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	return id, nil
}

// RecentJournalEntries returns the newest entries, most recent first.
// limit <= 0 means no limit.
func (s *Store) RecentJournalEntries(ctx context.Context, limit int) ([]JournalEntry, error) {
	query := `
		SELECT id, artist, track, COALESCE(album, ''), duration, scrobbled_at, providers
		FROM journal
		ORDER BY scrobbled_at DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var durationSecs int64
		var scrobbledUnix int64
		var providers string

		err := rows.Scan(
			&e.ID,
			&e.Artist,
			&e.Track,
			&e.Album,
			&durationSecs,
			&scrobbledUnix,
			&providers,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}

		e.Duration = time.Duration(durationSecs) * time.Second
		e.ScrobbledAt = time.Unix(scrobbledUnix, 0)
		if providers != "" {
			e.Providers = strings.Split(providers, ",")
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}
	return entries, nil
}

// CountJournalEntries returns the total number of recorded scrobbles.
func (s *Store) CountJournalEntries(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM journal").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return count, nil
}

// PruneJournal removes entries older than maxAge and returns how many
// were deleted.
func (s *Store) PruneJournal(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := s.db.ExecContext(ctx, "DELETE FROM journal WHERE scrobbled_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
