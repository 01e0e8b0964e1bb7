package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"emfpager/internal/schedule"
	"emfpager/pkg/logx"
)

//go:embed schema.sql
var schemaFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; this also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSchedule replaces the stored schedule in one transaction.
func (s *sqliteStore) SaveSchedule(ctx context.Context, events []schedule.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_events`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO schedule_events(pos, id, slug, start_at, end_at, venue, title, speaker, kind)
		 VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			i, ev.ID, ev.Slug, formatTime(ev.Start), formatTime(ev.End),
			ev.Venue, ev.Title, ev.Speaker, ev.Kind,
		); err != nil {
			return fmt.Errorf("insert event %d: %w", ev.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schedule_meta(k, v) VALUES('saved_at', ?)
		 ON CONFLICT(k) DO UPDATE SET v=excluded.v`,
		formatTime(time.Now().UTC()),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadSchedule(ctx context.Context) ([]schedule.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, start_at, end_at, venue, title, speaker, kind
		 FROM schedule_events ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Event
	for rows.Next() {
		var (
			ev         schedule.Event
			start, end string
		)
		if err := rows.Scan(&ev.ID, &ev.Slug, &start, &end, &ev.Venue, &ev.Title, &ev.Speaker, &ev.Kind); err != nil {
			return nil, err
		}
		if ev.Start, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("event %d start: %w", ev.ID, err)
		}
		if ev.End, err = parseTime(end); err != nil {
			return nil, fmt.Errorf("event %d end: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.log.Debug("schedule snapshot loaded", logx.Int("events", len(out)))
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
