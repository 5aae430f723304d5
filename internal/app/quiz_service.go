package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"math-quiz-service/internal/domain"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// QuizOptions tunes session timing.
type QuizOptions struct {
	DurationSeconds int
	TickInterval    time.Duration
}

// QuizService contains the quiz use cases. Countdowns run under the service
// context; Close cancels it.
type QuizService struct {
	sessions SessionRepository
	board    *Leaderboard
	gen      *Generator
	opts     QuizOptions

	ctx    context.Context
	cancel context.CancelFunc
}

func NewQuizService(store SessionRepository, board *Leaderboard, gen *Generator, opts QuizOptions) *QuizService {
	if opts.DurationSeconds <= 0 {
		opts.DurationSeconds = DefaultDurationSeconds
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QuizService{sessions: store, board: board, gen: gen, opts: opts, ctx: ctx, cancel: cancel}
}

// Close stops every running countdown and releases their subscribers.
// Sessions stay readable, but no longer tick.
func (s *QuizService) Close() {
	s.cancel()
}

// Leaderboard exposes the gateway backing score submissions.
func (s *QuizService) Leaderboard() *Leaderboard {
	return s.board
}

// NewSession registers a session waiting for an age bracket.
func (s *QuizService) NewSession(_ context.Context) domain.SessionState {
	session := NewSession(uuid.NewString(), s.gen, s.opts.DurationSeconds)
	session.OnComplete(func(state domain.SessionState) {
		log.Printf("session %s complete: age=%s score=%d answers=%d", state.ID, state.AgeBracket, state.Score, len(state.AnswerLog))
	})
	s.sessions.Put(session)
	return session.State()
}

// SelectAge starts the quiz and its countdown.
func (s *QuizService) SelectAge(_ context.Context, sessionID string, bracket domain.AgeBracket) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	state, err := session.SelectAge(bracket)
	if err != nil {
		return state, err
	}

	ctx, cancel := context.WithCancel(s.ctx)
	session.setStop(cancel)
	go s.runCountdown(ctx, session)
	return state, nil
}

// SubmitAnswer records an answer for the session's current question.
func (s *QuizService) SubmitAnswer(_ context.Context, sessionID string, value int) (domain.AnswerResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	return session.SubmitAnswer(value)
}

// State returns a snapshot of the session.
func (s *QuizService) State(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return session.State(), nil
}

// Subscribe returns a channel that receives session snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionState, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// SubmitScore puts a completed session on the leaderboard. A session can be
// submitted successfully only once; a failed attempt may be repeated.
func (s *QuizService) SubmitScore(ctx context.Context, sessionID, initials, email string) (domain.ScoreRecord, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ScoreRecord{}, domain.ErrSessionNotFound
	}
	state := session.State()
	if state.Phase != domain.PhaseComplete {
		return domain.ScoreRecord{}, domain.ErrSessionNotComplete
	}
	sub := domain.Submission{
		Initials:   initials,
		Email:      email,
		Score:      state.Score,
		AgeBracket: state.AgeBracket,
	}
	if _, err := ValidateSubmission(sub); err != nil {
		return domain.ScoreRecord{}, err
	}

	if _, err := session.claimSubmission(); err != nil {
		return domain.ScoreRecord{}, err
	}
	record, err := s.board.Submit(ctx, sub)
	session.finishSubmission(err == nil)
	if err != nil {
		log.Printf("session %s: leaderboard submit failed: %v", sessionID, err)
		return domain.ScoreRecord{}, err
	}
	return record, nil
}

// End stops the session countdown and forgets the session.
func (s *QuizService) End(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
}

func (s *QuizService) runCountdown(ctx context.Context, session *Session) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.ctx.Err() != nil {
				session.Close()
			}
			return
		case <-ticker.C:
			if state, done := session.Tick(); done || state.Phase != domain.PhaseInProgress {
				return
			}
		}
	}
}
