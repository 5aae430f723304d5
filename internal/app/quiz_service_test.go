package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/domain"
	"math-quiz-service/internal/infra/memory"
)

func TestQuizFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	service, scores, _ := newTestService(3, 20*time.Millisecond)

	state := service.NewSession(ctx)
	if state.Phase != domain.PhaseSelectingAge || state.ID == "" {
		t.Fatalf("unexpected new session %+v", state)
	}
	updates, cancel, err := service.Subscribe(ctx, state.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	started, err := service.SelectAge(ctx, state.ID, domain.AgeBracket8to9)
	if err != nil {
		t.Fatalf("select age: %v", err)
	}
	result, err := service.SubmitAnswer(ctx, state.ID, started.Question.CorrectAnswer)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !result.Record.IsCorrect || result.Score != 1 {
		t.Fatalf("unexpected answer result %+v", result)
	}

	final := waitForPhase(t, updates, domain.PhaseComplete)
	if final.Score != 1 || final.TimeRemainingSeconds != 0 {
		t.Fatalf("unexpected final state %+v", final)
	}
	if _, err := service.SubmitAnswer(ctx, state.ID, 1); !errors.Is(err, domain.ErrSessionComplete) {
		t.Fatalf("expected late answer rejected, got %v", err)
	}

	record, err := service.SubmitScore(ctx, state.ID, "abc", "a@b.com")
	if err != nil {
		t.Fatalf("submit score: %v", err)
	}
	if record.Initials != "ABC" || record.Score != 1 || record.AgeGroup != domain.AgeBracket8to9 {
		t.Fatalf("unexpected record %+v", record)
	}
	if _, err := service.SubmitScore(ctx, state.ID, "abc", "a@b.com"); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected duplicate submission rejected, got %v", err)
	}
	if n := len(scores.Records()); n != 1 {
		t.Fatalf("expected exactly one stored record, got %d", n)
	}
}

func TestSubmitScoreBeforeCompletion(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(30, time.Hour)

	state := service.NewSession(ctx)
	if _, err := service.SubmitScore(ctx, state.ID, "abc", "a@b.com"); !errors.Is(err, domain.ErrSessionNotComplete) {
		t.Fatalf("expected not complete, got %v", err)
	}
	if _, err := service.SelectAge(ctx, state.ID, domain.AgeBracketAdult); err != nil {
		t.Fatalf("select age: %v", err)
	}
	if _, err := service.SubmitScore(ctx, state.ID, "abc", "a@b.com"); !errors.Is(err, domain.ErrSessionNotComplete) {
		t.Fatalf("expected not complete, got %v", err)
	}
	service.End(ctx, state.ID)
}

func TestSubmitScoreValidationKeepsSlotOpen(t *testing.T) {
	ctx := context.Background()
	service, scores, _ := newTestService(1, time.Millisecond)

	state := service.NewSession(ctx)
	updates, cancel, _ := service.Subscribe(ctx, state.ID)
	defer cancel()
	if _, err := service.SelectAge(ctx, state.ID, domain.AgeBracket4to5); err != nil {
		t.Fatalf("select age: %v", err)
	}
	waitForPhase(t, updates, domain.PhaseComplete)

	if _, err := service.SubmitScore(ctx, state.ID, "ab1", "a@b.com"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(scores.Records()) != 0 {
		t.Fatalf("validation failure must not reach the store")
	}
	if _, err := service.SubmitScore(ctx, state.ID, "abc", "a@b.com"); err != nil {
		t.Fatalf("expected corrected submission to succeed, got %v", err)
	}
}

func TestUnknownSessionAndEnd(t *testing.T) {
	ctx := context.Background()
	service, _, sessions := newTestService(30, time.Hour)

	if _, err := service.SubmitAnswer(ctx, "missing", 1); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
	if _, err := service.SelectAge(ctx, "missing", domain.AgeBracketAdult); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}

	state := service.NewSession(ctx)
	if sessions.Len() != 1 {
		t.Fatalf("expected session registered")
	}
	updates, _, _ := service.Subscribe(ctx, state.ID)
	service.End(ctx, state.ID)
	if _, err := service.State(ctx, state.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session dropped, got %v", err)
	}
	for range updates {
		// drain until End closes the channel
	}
}

func newTestService(duration int, tick time.Duration) (*app.QuizService, *memory.ScoreStore, *memory.SessionStore) {
	scores := memory.NewScoreStore()
	sessions := memory.NewSessionStore()
	board := app.NewLeaderboard(scores, time.Second)
	service := app.NewQuizService(sessions, board, app.NewGeneratorWithSeed(11), app.QuizOptions{
		DurationSeconds: duration,
		TickInterval:    tick,
	})
	return service, scores, sessions
}

func waitForPhase(t *testing.T, updates <-chan domain.SessionState, phase domain.Phase) domain.SessionState {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case state, ok := <-updates:
			if !ok {
				t.Fatalf("updates closed before phase %s", phase)
			}
			if state.Phase == phase {
				return state
			}
		case <-timeout:
			t.Fatalf("timed out waiting for phase %s", phase)
		}
	}
}

func TestCloseStopsRunningCountdowns(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(30, 10*time.Millisecond)

	state := service.NewSession(ctx)
	updates, cancel, err := service.Subscribe(ctx, state.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	if _, err := service.SelectAge(ctx, state.ID, domain.AgeBracket6to7); err != nil {
		t.Fatalf("select age: %v", err)
	}
	waitForTick(t, updates)

	service.Close()
	timeout := time.After(5 * time.Second)
	for open := true; open; {
		select {
		case _, open = <-updates:
		case <-timeout:
			t.Fatalf("subscription not released after Close")
		}
	}

	stopped, err := service.State(ctx, state.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	later, _ := service.State(ctx, state.ID)
	if later.TimeRemainingSeconds != stopped.TimeRemainingSeconds || later.Phase != domain.PhaseInProgress {
		t.Fatalf("expected countdown frozen at %d, got %+v", stopped.TimeRemainingSeconds, later)
	}
}

func waitForTick(t *testing.T, updates <-chan domain.SessionState) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case state := <-updates:
			if state.Phase == domain.PhaseInProgress && state.TimeRemainingSeconds < 30 {
				return
			}
		case <-timeout:
			t.Fatalf("countdown never ticked")
		}
	}
}
