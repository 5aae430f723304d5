package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"math-quiz-service/internal/domain"
)

func TestSessionStartsInAgeSelection(t *testing.T) {
	s := newTestSession()
	state := s.State()
	if state.Phase != domain.PhaseSelectingAge || state.TimeRemainingSeconds != 30 || state.Question != nil {
		t.Fatalf("unexpected initial state %+v", state)
	}
	if _, err := s.SubmitAnswer(1); !errors.Is(err, domain.ErrSessionNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
	if _, done := s.Tick(); done || s.State().TimeRemainingSeconds != 30 {
		t.Fatalf("tick before start must not count down")
	}
}

func TestSelectAgeValidatesAndStartsOnce(t *testing.T) {
	s := newTestSession()
	if _, err := s.SelectAge("10-11"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	state, err := s.SelectAge(domain.AgeBracket6to7)
	if err != nil {
		t.Fatalf("select age: %v", err)
	}
	if state.Phase != domain.PhaseInProgress || state.Question == nil || state.AgeBracket != domain.AgeBracket6to7 {
		t.Fatalf("unexpected state %+v", state)
	}
	if _, err := s.SelectAge(domain.AgeBracketAdult); !errors.Is(err, domain.ErrSessionStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
}

func TestSubmitAnswerAppendsRecordAndAdvances(t *testing.T) {
	s := newTestSession()
	state, _ := s.SelectAge(domain.AgeBracket8to9)

	for i := 0; i < 20; i++ {
		q := state.Question
		result, err := s.SubmitAnswer(q.CorrectAnswer)
		if err != nil {
			t.Fatalf("answer: %v", err)
		}
		if !result.Record.IsCorrect || result.Record.Prompt != q.Prompt || result.Score != i+1 {
			t.Fatalf("unexpected result %+v", result)
		}
		next := s.State()
		if len(next.AnswerLog) != i+1 || next.Question == nil {
			t.Fatalf("expected %d records and a new question, got %+v", i+1, next)
		}
		state = next
	}

	wrong := wrongChoice(state.Question)
	result, err := s.SubmitAnswer(wrong)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if result.Record.IsCorrect || result.Score != 20 || result.Record.ChosenValue != wrong {
		t.Fatalf("wrong answer must not score: %+v", result)
	}
	if got := len(s.State().AnswerLog); got != 21 {
		t.Fatalf("expected 21 records, got %d", got)
	}
}

func TestCountdownCompletesAndRejectsLateAnswers(t *testing.T) {
	s := newTestSession()
	completions := 0
	s.OnComplete(func(domain.SessionState) { completions++ })
	state, _ := s.SelectAge(domain.AgeBracket4to5)
	if _, err := s.SubmitAnswer(state.Question.CorrectAnswer); err != nil {
		t.Fatalf("answer: %v", err)
	}

	for i := 0; i < 29; i++ {
		if _, done := s.Tick(); done {
			t.Fatalf("completed early at tick %d", i+1)
		}
	}
	if s.State().TimeRemainingSeconds != 1 {
		t.Fatalf("expected 1 second left")
	}
	final, done := s.Tick()
	if !done || final.Phase != domain.PhaseComplete || final.TimeRemainingSeconds != 0 || final.Score != 1 {
		t.Fatalf("unexpected final state %+v", final)
	}

	if _, err := s.SubmitAnswer(1); !errors.Is(err, domain.ErrSessionComplete) {
		t.Fatalf("expected complete error, got %v", err)
	}
	if _, done := s.Tick(); done {
		t.Fatalf("completion must fire once")
	}
	after := s.State()
	if after.Score != 1 || len(after.AnswerLog) != 1 || after.Question != nil {
		t.Fatalf("state mutated after completion: %+v", after)
	}
	if completions != 1 {
		t.Fatalf("expected one completion, got %d", completions)
	}
}

func TestAnswersRacingFinalTickAreAllOrNothing(t *testing.T) {
	s := NewSessionWithClock("race", NewGeneratorWithSeed(3), 1, fixedClock)
	s.SelectAge(domain.AgeBracketAdult)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.SubmitAnswer(0); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	final, done := s.Tick()
	wg.Wait()

	if !done {
		t.Fatalf("expected single tick to complete a 1s session")
	}
	if len(final.AnswerLog) != len(s.State().AnswerLog) {
		t.Fatalf("answers were accepted after the final tick")
	}
	if accepted != len(final.AnswerLog) {
		t.Fatalf("accepted %d answers but final log has %d", accepted, len(final.AnswerLog))
	}
}

func TestSubscribeDeliversFinalSnapshot(t *testing.T) {
	s := NewSessionWithClock("sub", NewGeneratorWithSeed(9), 3, fixedClock)
	ch, cancel := s.Subscribe()
	defer cancel()

	<-ch // initial snapshot
	s.SelectAge(domain.AgeBracket6to7)
	for i := 0; i < 3; i++ {
		s.Tick()
	}

	var last domain.SessionState
	timeout := time.After(time.Second)
	for last.Phase != domain.PhaseComplete {
		select {
		case last = <-ch:
		case <-timeout:
			t.Fatalf("did not receive complete snapshot, last %+v", last)
		}
	}
}

func TestSubmissionSlot(t *testing.T) {
	s := NewSessionWithClock("slot", NewGeneratorWithSeed(1), 1, fixedClock)
	if _, err := s.claimSubmission(); !errors.Is(err, domain.ErrSessionNotComplete) {
		t.Fatalf("expected not complete, got %v", err)
	}
	s.SelectAge(domain.AgeBracket4to5)
	s.Tick()

	if _, err := s.claimSubmission(); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := s.claimSubmission(); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected pending claim to block, got %v", err)
	}
	s.finishSubmission(false)
	if _, err := s.claimSubmission(); err != nil {
		t.Fatalf("expected failed claim to reopen, got %v", err)
	}
	s.finishSubmission(true)
	if _, err := s.claimSubmission(); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected done claim to block, got %v", err)
	}
}

func TestSubscribeRacingCloseDoesNotPanic(t *testing.T) {
	for i := 0; i < 500; i++ {
		s := newTestSession()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancel := s.Subscribe()
			cancel()
		}()
		go func() {
			defer wg.Done()
			s.Close()
		}()
		wg.Wait()
	}
}

func newTestSession() *Session {
	return NewSessionWithClock("s-1", NewGeneratorWithSeed(1), DefaultDurationSeconds, fixedClock)
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
}

func wrongChoice(q *domain.Question) int {
	for _, c := range q.Choices {
		if c != q.CorrectAnswer {
			return c
		}
	}
	return q.CorrectAnswer + 1
}
