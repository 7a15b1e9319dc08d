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

	"pulsebot/internal/activity"
	logx "pulsebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
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

func (s *sqliteStore) UpsertRule(ctx context.Context, r activity.Rule) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	now := time.Now().UTC()

	// Probe first so we can report created-vs-updated; the write itself is
	// still a single upsert, so the (subscriber, scope) invariant holds even
	// under concurrent writers.
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM rules WHERE subscriber_id = ? AND scope_key = ?`,
		r.Subscriber, r.Scope.Key(),
	).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	created := errors.Is(err, sql.ErrNoRows)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules(subscriber_id, scope_key, threshold, cooldown_seconds, lookback, min_participants, summary, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(subscriber_id, scope_key) DO UPDATE SET
		   threshold=excluded.threshold,
		   cooldown_seconds=excluded.cooldown_seconds,
		   lookback=excluded.lookback,
		   min_participants=excluded.min_participants,
		   summary=excluded.summary,
		   updated_at=excluded.updated_at`,
		r.Subscriber, r.Scope.Key(), r.Threshold, int64(r.Cooldown/time.Second),
		r.Lookback, r.MinParticipants, nullStr(string(r.Summary)),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *sqliteStore) DeleteRule(ctx context.Context, subscriber int64, scope activity.Scope) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rules WHERE subscriber_id = ? AND scope_key = ?`,
		subscriber, scope.Key(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) ListRulesFor(ctx context.Context, subscriber int64) ([]activity.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subscriber_id, scope_key, threshold, cooldown_seconds, lookback, min_participants, summary, created_at, updated_at
		 FROM rules WHERE subscriber_id = ? ORDER BY scope_key`,
		subscriber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []activity.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ListSubscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT subscriber_id FROM rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanRule(rows *sql.Rows) (activity.Rule, error) {
	var (
		r           activity.Rule
		scopeKey    string
		cooldownSec int64
		summary     sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := rows.Scan(&r.Subscriber, &scopeKey, &r.Threshold, &cooldownSec,
		&r.Lookback, &r.MinParticipants, &summary, &createdAt, &updatedAt); err != nil {
		return activity.Rule{}, err
	}

	scope, err := activity.ParseScopeKey(scopeKey)
	if err != nil {
		return activity.Rule{}, err
	}
	r.Scope = scope
	r.Cooldown = time.Duration(cooldownSec) * time.Second
	if summary.Valid {
		r.Summary = activity.SummaryMode(summary.String)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		r.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		r.UpdatedAt = t
	}
	return r, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
