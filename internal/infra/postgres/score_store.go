package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"math-quiz-service/internal/domain"
)

// ScoreStore reads and writes quiz_results directly in Postgres.
type ScoreStore struct {
	pool *pgxpool.Pool
}

func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

func (s *ScoreStore) Insert(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quiz_results (initials, email, score, age_group) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		record.Initials, record.Email, record.Score, string(record.AgeGroup),
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("insert quiz result: %w", translate(err))
	}
	return record, nil
}

func (s *ScoreStore) TopByBracket(ctx context.Context, bracket domain.AgeBracket, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT initials, score, age_group FROM quiz_results WHERE age_group=$1 ORDER BY score DESC, id ASC LIMIT $2`,
		string(bracket), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top scores: %w", translate(err))
	}
	return scanEntries(rows)
}

func (s *ScoreStore) ListByScore(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT initials, score, age_group FROM quiz_results ORDER BY score DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", translate(err))
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]domain.LeaderboardEntry, error) {
	defer rows.Close()
	entries := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var (
			e   domain.LeaderboardEntry
			age string
		)
		if err := rows.Scan(&e.Initials, &e.Score, &age); err != nil {
			return nil, fmt.Errorf("scan score: %w", translate(err))
		}
		e.AgeBracket = domain.AgeBracket(age)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read scores: %w", translate(err))
	}
	return entries, nil
}

// translate turns server-reported errors into StoreErrors; connection
// failures pass through untouched.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &domain.StoreError{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
		}
	}
	return err
}
