package app

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"math-quiz-service/internal/domain"
)

// ScoreStore persists quiz results (hosted REST service, Postgres, SQLite, memory).
// Implementations report structured failures as *domain.StoreError; any other
// error is treated as a transport failure.
type ScoreStore interface {
	Insert(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error)
	// TopByBracket returns up to limit entries, score desc, ties in insertion order.
	TopByBracket(ctx context.Context, bracket domain.AgeBracket, limit int) ([]domain.LeaderboardEntry, error)
	// ListByScore returns every entry, score desc, ties in insertion order.
	ListByScore(ctx context.Context) ([]domain.LeaderboardEntry, error)
}

const (
	// DefaultStoreTimeout bounds each store call.
	DefaultStoreTimeout = 10 * time.Second
	// HallOfFameSize is how many entries each bracket shows in the hall of fame.
	HallOfFameSize = 3

	permissionDeniedCode   = "PGRST301"
	insufficientPrivileges = "42501"
)

const (
	msgInitials         = "Please enter exactly 3 letters for your initials."
	msgEmail            = "Please enter a valid email address."
	msgScore            = "Score cannot be negative."
	msgPermissionDenied = "Permission denied. Please try again or contact support."
	msgConnection       = "Connection error. Please check your internet connection and try again."
	msgUnknownDetail    = "Unknown error occurred"
)

var (
	initialsPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
)

// Leaderboard validates submissions and reads ranked scores from a ScoreStore.
type Leaderboard struct {
	store   ScoreStore
	timeout time.Duration
}

func NewLeaderboard(store ScoreStore, timeout time.Duration) *Leaderboard {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Leaderboard{store: store, timeout: timeout}
}

// Submit stores a score. Invalid input fails with ErrValidation before the store is touched.
func (l *Leaderboard) Submit(ctx context.Context, sub domain.Submission) (domain.ScoreRecord, error) {
	record, err := ValidateSubmission(sub)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	stored, err := l.store.Insert(ctx, record)
	if err != nil {
		return domain.ScoreRecord{}, classifyStoreError(err)
	}
	return stored, nil
}

// FetchTop returns the best limit entries of a bracket. An empty bracket yields an empty slice.
func (l *Leaderboard) FetchTop(ctx context.Context, bracket domain.AgeBracket, limit int) ([]domain.LeaderboardEntry, error) {
	bracket, err := domain.ParseAgeBracket(string(bracket))
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	entries, err := l.store.TopByBracket(ctx, bracket, limit)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, nil
}

// FetchAllTop3 reads every score once and keeps the top three of each bracket.
func (l *Leaderboard) FetchAllTop3(ctx context.Context) (domain.HallOfFame, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	all, err := l.store.ListByScore(ctx)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return GroupTop(all, HallOfFameSize), nil
}

// GroupTop splits score-ordered entries by bracket, keeping at most n per bracket.
// Every bracket is present in the result.
func GroupTop(entries []domain.LeaderboardEntry, n int) domain.HallOfFame {
	out := make(domain.HallOfFame, len(domain.AllAgeBrackets))
	for _, b := range domain.AllAgeBrackets {
		out[b] = []domain.LeaderboardEntry{}
	}
	for _, e := range entries {
		group, ok := out[e.AgeBracket]
		if !ok || len(group) >= n {
			continue
		}
		out[e.AgeBracket] = append(group, e)
	}
	return out
}

// Rank is the 1-based position a score would take among entries.
func Rank(entries []domain.LeaderboardEntry, score int) int {
	rank := 1
	for _, e := range entries {
		if e.Score > score {
			rank++
		}
	}
	return rank
}

// ValidateSubmission normalizes the form payload into a record ready to insert.
func ValidateSubmission(sub domain.Submission) (domain.ScoreRecord, error) {
	initials := sub.Initials
	if !initialsPattern.MatchString(initials) {
		return domain.ScoreRecord{}, domain.NewValidationError(msgInitials)
	}
	email := sub.Email
	if !emailPattern.MatchString(email) {
		return domain.ScoreRecord{}, domain.NewValidationError(msgEmail)
	}
	if sub.Score < 0 {
		return domain.ScoreRecord{}, domain.NewValidationError(msgScore)
	}
	bracket, err := domain.ParseAgeBracket(string(sub.AgeBracket))
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return domain.ScoreRecord{
		Initials: strings.ToUpper(initials),
		Email:    email,
		Score:    sub.Score,
		AgeGroup: bracket,
	}, nil
}

// classifyStoreError maps store failures onto the leaderboard error kinds.
func classifyStoreError(err error) error {
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		return &domain.GatewayError{Kind: domain.ErrConnection, Message: msgConnection, Err: err}
	}
	switch {
	case storeErr.Empty():
		return &domain.GatewayError{Kind: domain.ErrConnection, Message: msgConnection, Err: err}
	case storeErr.Code == permissionDeniedCode || storeErr.Code == insufficientPrivileges:
		return &domain.GatewayError{Kind: domain.ErrPermissionDenied, Message: msgPermissionDenied, Err: err}
	default:
		detail := storeErr.Message
		if detail == "" {
			detail = msgUnknownDetail
		}
		return &domain.GatewayError{Kind: domain.ErrUnknownStore, Message: "Database error: " + detail, Err: err}
	}
}
