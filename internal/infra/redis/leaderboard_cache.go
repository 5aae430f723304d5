package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/domain"
)

// LeaderboardCache caches ranked reads in Redis and falls back to the wrapped store on a miss.
// Per-bracket views live in one hash per bracket:
//
//	HSET leaderboard:{bracket} {limit} {json entries}
//	SET  leaderboard:all {json entries}
//
// An insert deletes its bracket hash and the hall-of-fame key.
type LeaderboardCache struct {
	client *redis.Client
	next   app.ScoreStore
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewLeaderboardCache(client *redis.Client, next app.ScoreStore, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		next:   next,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Insert(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	stored, err := c.next.Insert(ctx, record)
	if err != nil {
		return stored, err
	}
	if err := c.client.Del(ctx, bracketKey(record.AgeGroup), allKey).Err(); err != nil {
		log.Printf("leaderboard cache invalidate failed: %v", err)
	}
	return stored, nil
}

func (c *LeaderboardCache) TopByBracket(ctx context.Context, bracket domain.AgeBracket, limit int) ([]domain.LeaderboardEntry, error) {
	key := bracketKey(bracket)
	field := strconv.Itoa(limit)

	if raw, err := c.client.HGet(ctx, key, field).Result(); err == nil {
		if entries, ok := decodeEntries(raw); ok {
			return entries, nil
		}
	}

	result, err, _ := c.sf.Do(key+":"+field, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.HGet(ctx, key, field).Result(); err == nil {
			if entries, ok := decodeEntries(raw); ok {
				return entries, nil
			}
		}
		entries, err := c.next.TopByBracket(ctx, bracket, limit)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(entries); err == nil {
			pipe := c.client.Pipeline()
			pipe.HSet(ctx, key, field, data)
			if ttl := c.ttlWithJitter(); ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			_, _ = pipe.Exec(ctx)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

func (c *LeaderboardCache) ListByScore(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if raw, err := c.client.Get(ctx, allKey).Result(); err == nil {
		if entries, ok := decodeEntries(raw); ok {
			return entries, nil
		}
	}

	result, err, _ := c.sf.Do(allKey, func() (interface{}, error) {
		if raw, err := c.client.Get(ctx, allKey).Result(); err == nil {
			if entries, ok := decodeEntries(raw); ok {
				return entries, nil
			}
		}
		entries, err := c.next.ListByScore(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(entries); err == nil {
			_ = c.client.Set(ctx, allKey, data, c.ttlWithJitter()).Err()
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

const allKey = "leaderboard:all"

func bracketKey(bracket domain.AgeBracket) string {
	return "leaderboard:" + string(bracket)
}

func decodeEntries(raw string) ([]domain.LeaderboardEntry, bool) {
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, true
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
