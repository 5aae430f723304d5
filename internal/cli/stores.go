package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/config"
	"math-quiz-service/internal/infra/memory"
	"math-quiz-service/internal/infra/postgres"
	"math-quiz-service/internal/infra/postgrest"
	rediscache "math-quiz-service/internal/infra/redis"
	"math-quiz-service/internal/infra/sqlite"
)

const defaultSQLitePath = "data/scores.db"

// backend is the leaderboard wiring shared by the server and the terminal client.
type backend struct {
	board   *app.Leaderboard
	redis   *redis.Client
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}
	timeout := config.TTLDuration(cfg.Store.Timeout, app.DefaultStoreTimeout)

	store, err := openScoreStore(ctx, cfg, timeout, b)
	if err != nil {
		b.Close()
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		client := b.redis
		b.closers = append(b.closers, func() { _ = client.Close() })
	}

	cacheTTL := config.TTLDuration(cfg.Leaderboard.CacheTTL, 0)
	switch {
	case cacheTTL <= 0:
	case b.redis != nil:
		store = rediscache.NewLeaderboardCache(b.redis, store, cacheTTL)
	default:
		store = memory.NewLeaderboardCache(store, cacheTTL)
	}

	b.board = app.NewLeaderboard(store, timeout)
	return b, nil
}

func openScoreStore(ctx context.Context, cfg config.Config, timeout time.Duration, b *backend) (app.ScoreStore, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgREST:
		store, err := postgrest.NewScoreStore(cfg.Store.URL, cfg.Store.Key, &http.Client{Timeout: timeout})
		if err != nil {
			return nil, err
		}
		log.Printf("leaderboard: hosted data service at %s", cfg.Store.URL)
		return store, nil
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		log.Printf("leaderboard: postgres")
		return postgres.NewScoreStore(pool), nil
	case config.DriverSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			path = defaultSQLitePath
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		log.Printf("leaderboard: sqlite at %s", path)
		return store, nil
	case config.DriverMemory:
		log.Printf("leaderboard: in-memory, scores are lost on exit")
		return memory.NewScoreStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func quizOptions(cfg config.Config) app.QuizOptions {
	duration := config.TTLDuration(cfg.Quiz.Duration, app.DefaultDurationSeconds*time.Second)
	return app.QuizOptions{
		DurationSeconds: int(duration / time.Second),
		TickInterval:    config.TTLDuration(cfg.Quiz.Tick, time.Second),
	}
}
