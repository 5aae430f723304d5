package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/domain"
)

const allKey = "all"

// LeaderboardCache wraps an app.ScoreStore and caches ranked reads with a TTL.
// Inserts drop the cached views they affect.
type LeaderboardCache struct {
	next  app.ScoreStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[string]cachedEntries
}

type cachedEntries struct {
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
}

func NewLeaderboardCache(next app.ScoreStore, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		next:  next,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedEntries),
	}
}

func (c *LeaderboardCache) Insert(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	stored, err := c.next.Insert(ctx, record)
	if err != nil {
		return stored, err
	}
	prefix := string(record.AgeGroup) + ":"
	c.mu.Lock()
	delete(c.cache, allKey)
	for key := range c.cache {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.cache, key)
		}
	}
	c.mu.Unlock()
	return stored, nil
}

func (c *LeaderboardCache) TopByBracket(ctx context.Context, bracket domain.AgeBracket, limit int) ([]domain.LeaderboardEntry, error) {
	key := string(bracket) + ":" + strconv.Itoa(limit)
	return c.get(key, func() ([]domain.LeaderboardEntry, error) {
		return c.next.TopByBracket(ctx, bracket, limit)
	})
}

func (c *LeaderboardCache) ListByScore(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return c.get(allKey, func() ([]domain.LeaderboardEntry, error) {
		return c.next.ListByScore(ctx)
	})
}

func (c *LeaderboardCache) get(key string, load func() ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.lookup(key); ok {
		return entries, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another caller filled it.
		if entries, ok := c.lookup(key); ok {
			return entries, nil
		}
		entries, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[key] = cachedEntries{
			entries:   entries,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneEntries(result.([]domain.LeaderboardEntry)), nil
}

func (c *LeaderboardCache) lookup(key string) ([]domain.LeaderboardEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return cloneEntries(entry.entries), true
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneEntries(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, len(entries))
	copy(out, entries)
	return out
}
