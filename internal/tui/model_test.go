package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/domain"
	"math-quiz-service/internal/infra/memory"
)

func TestAgeSelectionStartsQuiz(t *testing.T) {
	m := newTestModel(t, 30, time.Hour)
	if !strings.Contains(m.View(), "How old are you?") {
		t.Fatalf("expected age prompt, got %s", m.View())
	}

	m.Update(key("down"))
	m.Update(key("down"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.state.Phase != domain.PhaseInProgress || m.state.AgeBracket != domain.AgeBracket8to9 {
		t.Fatalf("unexpected state %+v", m.state)
	}
	if !strings.Contains(m.View(), m.state.Question.Prompt) {
		t.Fatalf("expected question in view")
	}
}

func TestAnswerKeysRecordAnswers(t *testing.T) {
	m := newTestModel(t, 30, time.Hour)
	m.Update(key("1"))
	if m.state.AgeBracket != domain.AgeBracket4to5 {
		t.Fatalf("expected 4-5 bracket, got %s", m.state.AgeBracket)
	}

	for i := 0; i < 3; i++ {
		m.Update(key("2"))
	}
	if len(m.state.AnswerLog) != 3 || m.last == nil {
		t.Fatalf("expected three recorded answers, got %+v", m.state.AnswerLog)
	}
	correct := 0
	for _, rec := range m.state.AnswerLog {
		if rec.IsCorrect {
			correct++
		}
	}
	if m.state.Score != correct {
		t.Fatalf("score %d does not match %d correct answers", m.state.Score, correct)
	}
}

func TestSubmitFormAndHallOfFame(t *testing.T) {
	m := newTestModel(t, 1, 5*time.Millisecond)
	m.Update(key("4"))
	waitComplete(t, m)

	typeText(m, "ab")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(cmd())
	if !strings.Contains(m.errMsg, "exactly 3 letters") {
		t.Fatalf("expected initials error, got %q", m.errMsg)
	}

	typeText(m, "c")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeText(m, "ab@example.com")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd = m.Update(cmd())
	if m.screen != screenHallOfFame || m.record.Initials != "ABC" {
		t.Fatalf("expected hall of fame after submit, got screen %d record %+v", m.screen, m.record)
	}
	m.Update(cmd())
	if m.position != 1 || len(m.hall[domain.AgeBracketAdult]) != 1 {
		t.Fatalf("unexpected hall %+v position %d", m.hall, m.position)
	}
	if !strings.Contains(m.View(), "ABC") {
		t.Fatalf("expected initials in hall of fame view")
	}

	oldID := m.sessionID
	m.Update(key("r"))
	if m.sessionID == oldID || m.state.Phase != domain.PhaseSelectingAge {
		t.Fatalf("expected a fresh session, got %+v", m.state)
	}
}

func newTestModel(t *testing.T, duration int, tick time.Duration) *Model {
	t.Helper()
	board := app.NewLeaderboard(memory.NewScoreStore(), time.Second)
	service := app.NewQuizService(memory.NewSessionStore(), board, app.NewGeneratorWithSeed(5), app.QuizOptions{
		DurationSeconds: duration,
		TickInterval:    tick,
	})
	t.Cleanup(service.Close)
	m := NewModel(service)
	t.Cleanup(m.Close)
	return m
}

// waitComplete feeds session snapshots into the model until the quiz ends.
func waitComplete(t *testing.T, m *Model) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for m.state.Phase != domain.PhaseComplete {
		select {
		case state := <-m.updates:
			m.Update(stateMsg{state: state, ok: true})
		case <-timeout:
			t.Fatalf("quiz did not complete")
		}
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}
