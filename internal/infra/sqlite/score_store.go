// Package sqlite keeps quiz results in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"math-quiz-service/internal/domain"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ScoreStore implements app.ScoreStore on SQLite.
type ScoreStore struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*ScoreStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	store := &ScoreStore{db: db, clock: time.Now}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *ScoreStore) Close() error {
	return s.db.Close()
}

func (s *ScoreStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quiz_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			initials TEXT NOT NULL,
			email TEXT NOT NULL,
			score INTEGER NOT NULL,
			age_group TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_results_age_score ON quiz_results(age_group, score);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScoreStore) Insert(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	record.CreatedAt = s.clock().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_results (created_at, initials, email, score, age_group) VALUES (?, ?, ?, ?, ?)`,
		record.CreatedAt.Format(time.RFC3339Nano),
		record.Initials,
		record.Email,
		record.Score,
		string(record.AgeGroup),
	)
	if err != nil {
		return domain.ScoreRecord{}, storeError("insert quiz result", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.ScoreRecord{}, storeError("insert quiz result", err)
	}
	record.ID = id
	return record, nil
}

func (s *ScoreStore) TopByBracket(ctx context.Context, bracket domain.AgeBracket, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT initials, score, age_group FROM quiz_results WHERE age_group = ? ORDER BY score DESC, id ASC LIMIT ?`,
		string(bracket), limit,
	)
	if err != nil {
		return nil, storeError("query top scores", err)
	}
	return scanEntries(rows)
}

func (s *ScoreStore) ListByScore(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT initials, score, age_group FROM quiz_results ORDER BY score DESC, id ASC`,
	)
	if err != nil {
		return nil, storeError("query scores", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]domain.LeaderboardEntry, error) {
	defer rows.Close()
	entries := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var (
			e   domain.LeaderboardEntry
			age string
		)
		if err := rows.Scan(&e.Initials, &e.Score, &age); err != nil {
			return nil, storeError("scan score", err)
		}
		e.AgeBracket = domain.AgeBracket(age)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("read scores", err)
	}
	return entries, nil
}

// SQLite runs in process, so every failure except an expired or cancelled
// context is reported by the store itself.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, &domain.StoreError{Message: err.Error()})
}
