package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"math-quiz-service/internal/domain"
)

// ScoreStore keeps quiz results in process memory. Useful for tests and demos.
type ScoreStore struct {
	clock func() time.Time

	mu      sync.RWMutex
	nextID  int64
	records []domain.ScoreRecord
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{clock: time.Now, nextID: 1}
}

func (s *ScoreStore) Insert(_ context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = s.nextID
	record.CreatedAt = s.clock()
	s.nextID++
	s.records = append(s.records, record)
	return record, nil
}

func (s *ScoreStore) TopByBracket(_ context.Context, bracket domain.AgeBracket, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.LeaderboardEntry, 0)
	for _, r := range s.records {
		if r.AgeGroup == bracket {
			entries = append(entries, r.Entry())
		}
	}
	sortByScore(entries)
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *ScoreStore) ListByScore(_ context.Context) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.records))
	for _, r := range s.records {
		entries = append(entries, r.Entry())
	}
	sortByScore(entries)
	return entries, nil
}

// Records returns a copy of everything stored, in insertion order.
func (s *ScoreStore) Records() []domain.ScoreRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScoreRecord, len(s.records))
	copy(out, s.records)
	return out
}

// sortByScore orders entries by score desc; records are appended in insertion
// order, so a stable sort keeps ties in that order.
func sortByScore(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}
