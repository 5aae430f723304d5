package memory

import (
	"context"
	"testing"

	"math-quiz-service/internal/domain"
)

func TestScoreStoreOrdersByScoreThenInsertion(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore()
	for _, r := range []domain.ScoreRecord{
		{Initials: "AAA", Score: 3, AgeGroup: domain.AgeBracket6to7},
		{Initials: "BBB", Score: 7, AgeGroup: domain.AgeBracket6to7},
		{Initials: "CCC", Score: 3, AgeGroup: domain.AgeBracket6to7},
		{Initials: "DDD", Score: 9, AgeGroup: domain.AgeBracketAdult},
	} {
		if _, err := store.Insert(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	top, err := store.TopByBracket(ctx, domain.AgeBracket6to7, 5)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []string{"BBB", "AAA", "CCC"}
	if len(top) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), top)
	}
	for i, initials := range want {
		if top[i].Initials != initials {
			t.Fatalf("position %d: expected %s, got %s", i, initials, top[i].Initials)
		}
	}

	all, _ := store.ListByScore(ctx)
	if len(all) != 4 || all[0].Initials != "DDD" {
		t.Fatalf("expected DDD first of 4, got %+v", all)
	}
}

func TestScoreStoreAssignsIDs(t *testing.T) {
	store := NewScoreStore()
	first, _ := store.Insert(context.Background(), domain.ScoreRecord{Initials: "AAA"})
	second, _ := store.Insert(context.Background(), domain.ScoreRecord{Initials: "BBB"})
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}
