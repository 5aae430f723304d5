package app

import (
	"sync"
	"time"

	"math-quiz-service/internal/domain"
)

// DefaultDurationSeconds is the length of a quiz.
const DefaultDurationSeconds = 30

// Session is one player's quiz. Ticks and answers serialize on mu, so an answer
// either lands before the tick that reaches zero or is rejected.
type Session struct {
	id        string
	duration  int
	gen       *Generator
	now       func() time.Time
	createdAt time.Time

	mu          sync.RWMutex
	phase       domain.Phase
	bracket     domain.AgeBracket
	remaining   int
	score       int
	answers     []domain.AnswerRecord
	question    domain.Question
	completedAt time.Time
	submission  submissionState
	subscribers map[chan domain.SessionState]struct{}
	onComplete  func(domain.SessionState)
	stop        func()
}

type submissionState int

const (
	submissionOpen submissionState = iota
	submissionPending
	submissionDone
)

// NewSession creates a session waiting for an age bracket.
func NewSession(id string, gen *Generator, durationSeconds int) *Session {
	return NewSessionWithClock(id, gen, durationSeconds, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, gen *Generator, durationSeconds int, now func() time.Time) *Session {
	if durationSeconds <= 0 {
		durationSeconds = DefaultDurationSeconds
	}
	return &Session{
		id:          id,
		duration:    durationSeconds,
		gen:         gen,
		now:         now,
		createdAt:   now(),
		phase:       domain.PhaseSelectingAge,
		remaining:   durationSeconds,
		subscribers: make(map[chan domain.SessionState]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// OnComplete registers a hook that runs once when time runs out.
func (s *Session) OnComplete(fn func(domain.SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

// SelectAge starts the quiz for the bracket.
func (s *Session) SelectAge(bracket domain.AgeBracket) (domain.SessionState, error) {
	bracket, err := domain.ParseAgeBracket(string(bracket))
	if err != nil {
		return domain.SessionState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseSelectingAge {
		return s.snapshotLocked(), domain.ErrSessionStarted
	}
	s.bracket = bracket
	s.remaining = s.duration
	s.question = s.gen.Generate(bracket)
	s.phase = domain.PhaseInProgress
	return s.broadcastLocked(), nil
}

// SubmitAnswer scores value against the current question and moves on to the next one.
func (s *Session) SubmitAnswer(value int) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.PhaseSelectingAge:
		return domain.AnswerResult{}, domain.ErrSessionNotStarted
	case domain.PhaseComplete:
		return domain.AnswerResult{}, domain.ErrSessionComplete
	}

	record := domain.AnswerRecord{
		Prompt:       s.question.Prompt,
		ChosenValue:  value,
		CorrectValue: s.question.CorrectAnswer,
		IsCorrect:    value == s.question.CorrectAnswer,
	}
	s.answers = append(s.answers, record)
	if record.IsCorrect {
		s.score++
	}
	s.question = s.gen.Generate(s.bracket)
	s.broadcastLocked()

	return domain.AnswerResult{
		Record: record,
		Score:  s.score,
		Sound:  AnswerCue(record.IsCorrect),
	}, nil
}

// Tick advances the countdown by one second. It reports whether this tick
// completed the session.
func (s *Session) Tick() (domain.SessionState, bool) {
	s.mu.Lock()
	if s.phase != domain.PhaseInProgress {
		state := s.snapshotLocked()
		s.mu.Unlock()
		return state, false
	}
	s.remaining--
	if s.remaining > 0 {
		state := s.broadcastLocked()
		s.mu.Unlock()
		return state, false
	}

	s.remaining = 0
	s.phase = domain.PhaseComplete
	s.completedAt = s.now()
	state := s.broadcastLocked()
	hook := s.onComplete
	s.mu.Unlock()

	if hook != nil {
		hook(state)
	}
	return state, true
}

// State returns a snapshot of the session.
func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of snapshots, primed with the current one.
// The caller must invoke cancel to release it.
func (s *Session) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the countdown, if any, and releases all subscribers.
func (s *Session) Close() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *Session) setStop(stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = stop
}

// claimSubmission reserves the single leaderboard submission of a completed session.
func (s *Session) claimSubmission() (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseComplete {
		return domain.SessionState{}, domain.ErrSessionNotComplete
	}
	if s.submission != submissionOpen {
		return domain.SessionState{}, domain.ErrAlreadySubmitted
	}
	s.submission = submissionPending
	return s.snapshotLocked(), nil
}

// finishSubmission settles a claim: success locks the slot, failure reopens it.
func (s *Session) finishSubmission(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.submission = submissionDone
	} else {
		s.submission = submissionOpen
	}
}

func (s *Session) broadcastLocked() domain.SessionState {
	state := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// drop the stale snapshot so the newest one always gets through
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
	return state
}

func (s *Session) snapshotLocked() domain.SessionState {
	answers := make([]domain.AnswerRecord, len(s.answers))
	copy(answers, s.answers)

	state := domain.SessionState{
		ID:                   s.id,
		AgeBracket:           s.bracket,
		TimeRemainingSeconds: s.remaining,
		Score:                s.score,
		AnswerLog:            answers,
		Phase:                s.phase,
	}
	if s.phase == domain.PhaseInProgress {
		q := s.question
		q.Choices = append([]int(nil), s.question.Choices...)
		state.Question = &q
	}
	return state
}
