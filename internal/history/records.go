package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecordAttempt registers a submission of url. It returns how many earlier
// attempts had failed when the URL's last recorded outcome was a failure, and
// zero otherwise. The row is reset to pending and bound to jobID.
func (s *Store) RecordAttempt(ctx context.Context, jobID, url, title string) (int, error) {
	ctx = ensureContext(ctx)
	url = strings.TrimSpace(url)
	if url == "" {
		return 0, errors.New("record attempt: url is required")
	}

	var previous int
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var (
			status   string
			attempts int
		)
		now := s.timestamp()
		err = tx.QueryRowContext(ctx, `SELECT status, attempts FROM downloads WHERE url = ?`, url).Scan(&status, &attempts)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			previous = 0
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO downloads (job_id, url, title, status, attempts, created_at, updated_at)
                 VALUES (?, ?, ?, ?, 1, ?, ?)`,
				nullableString(jobID), url, title, StatusPending, now, now,
			); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			previous = 0
			if Status(status) == StatusFailed {
				previous = attempts
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE downloads
                 SET job_id = ?, title = ?, status = ?, attempts = attempts + 1, updated_at = ?
                 WHERE url = ?`,
				nullableString(jobID), title, StatusPending, now, url,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return previous, nil
}

// MarkDownloading records that an execution for url started.
func (s *Store) MarkDownloading(ctx context.Context, url string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE downloads SET status = ?, updated_at = ? WHERE url = ?`,
		StatusDownloading, s.timestamp(), url,
	)
	if err != nil {
		return fmt.Errorf("mark downloading: %w", err)
	}
	return nil
}

// MarkCompleted records a finished download and clears the last error.
func (s *Store) MarkCompleted(ctx context.Context, url, outputPath string) error {
	now := s.timestamp()
	_, err := s.execWithRetry(ctx,
		`UPDATE downloads
         SET status = ?, output_path = ?, last_error = NULL, updated_at = ?, completed_at = ?
         WHERE url = ?`,
		StatusCompleted, nullableString(outputPath), now, now, url,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a failed or cancelled attempt.
func (s *Store) MarkFailed(ctx context.Context, url, message string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE downloads SET status = ?, last_error = ?, updated_at = ? WHERE url = ?`,
		StatusFailed, nullableString(message), s.timestamp(), url,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// MarkInterrupted fails every row still pending or downloading. It runs at
// startup, when no execution can be alive.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE downloads SET status = ?, last_error = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, InterruptedReason, s.timestamp(), StatusPending, StatusDownloading,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return res.RowsAffected()
}

// FindByURL returns the ledger row for url, or nil when there is none.
func (s *Store) FindByURL(ctx context.Context, url string) (*Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM downloads WHERE url = ?`, strings.TrimSpace(url))
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by url: %w", err)
	}
	return entry, nil
}

// Failed lists failed rows, most recently updated first.
func (s *Store) Failed(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `SELECT `+entryColumns+` FROM downloads WHERE status = ? ORDER BY updated_at DESC, id DESC`, StatusFailed)
}

// List returns up to limit rows, most recently updated first. A limit <= 0
// returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return s.query(ctx, `SELECT `+entryColumns+` FROM downloads ORDER BY updated_at DESC, id DESC`)
	}
	return s.query(ctx, `SELECT `+entryColumns+` FROM downloads ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate downloads: %w", err)
	}
	return entries, nil
}

// PruneCompleted deletes completed rows older than retentionDays. A
// non-positive retention keeps everything.
func (s *Store) PruneCompleted(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour).Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`DELETE FROM downloads WHERE status = ? AND COALESCE(completed_at, updated_at) < ?`,
		StatusCompleted, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune completed: %w", err)
	}
	return res.RowsAffected()
}

// RecordFile remembers where a finished file came from.
func (s *Store) RecordFile(ctx context.Context, filename, url, title string) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return errors.New("record file: filename is required")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO files (filename, url, title, recorded_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(filename) DO UPDATE SET url = excluded.url, title = excluded.title, recorded_at = excluded.recorded_at`,
		filename, url, title, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("record file: %w", err)
	}
	return nil
}

// LookupFile returns the source of filename, or nil when unknown.
func (s *Store) LookupFile(ctx context.Context, filename string) (*FileRecord, error) {
	ctx = ensureContext(ctx)
	var (
		record   FileRecord
		recorded string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT filename, url, title, recorded_at FROM files WHERE filename = ?`, strings.TrimSpace(filename),
	).Scan(&record.Filename, &record.URL, &record.Title, &recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup file: %w", err)
	}
	if ts, err := parseTimeString(recorded); err == nil {
		record.RecordedAt = ts
	}
	return &record, nil
}
