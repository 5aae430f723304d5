// Package tui provides the Bubble Tea quiz client.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/domain"
)

type screen int

const (
	screenQuiz screen = iota
	screenHallOfFame
)

const (
	fieldInitials = iota
	fieldEmail
)

type stateMsg struct {
	state domain.SessionState
	ok    bool
}

type submittedMsg struct {
	record domain.ScoreRecord
	err    error
}

type hallMsg struct {
	hall domain.HallOfFame
	err  error
}

// Model implements the Bubble Tea quiz UI on top of a QuizService.
type Model struct {
	service *app.QuizService

	width  int
	height int

	screen    screen
	sessionID string
	state     domain.SessionState
	updates   <-chan domain.SessionState
	cancel    func()
	ageCursor int
	last      *domain.AnswerResult

	inputs     []textinput.Model
	focus      int
	submitting bool
	errMsg     string
	record     domain.ScoreRecord
	hall       domain.HallOfFame
	position   int
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)
)

// NewModel constructs a quiz model with a fresh session.
func NewModel(service *app.QuizService) *Model {
	m := &Model{service: service}
	m.inputs = []textinput.Model{
		newInput("Initials: ", "ABC", 3),
		newInput("Email:    ", "you@example.com", 0),
	}
	m.newSession()
	return m
}

func newInput(prompt, placeholder string, limit int) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.CharLimit = limit
	return input
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForState(m.updates)
}

// Close releases the current session.
func (m *Model) Close() {
	m.endSession()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case stateMsg:
		if !msg.ok {
			return m, nil
		}
		if msg.state.ID != m.sessionID {
			// leftover snapshot from a replaced session
			return m, nil
		}
		m.state = msg.state
		if m.state.Phase == domain.PhaseComplete {
			m.inputs[fieldInitials].Focus()
		}
		return m, waitForState(m.updates)
	case submittedMsg:
		m.submitting = false
		if msg.err != nil {
			m.errMsg = userMessage(msg.err)
			return m, nil
		}
		m.record = msg.record
		m.errMsg = ""
		m.screen = screenHallOfFame
		return m, m.fetchHall()
	case hallMsg:
		if msg.err != nil {
			m.errMsg = userMessage(msg.err)
			return m, nil
		}
		m.hall = msg.hall
		m.position = app.Rank(msg.hall[m.record.AgeGroup], m.record.Score)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenHallOfFame {
			return m.updateHallOfFame(msg)
		}
		switch m.state.Phase {
		case domain.PhaseSelectingAge:
			return m.updateSelectingAge(msg)
		case domain.PhaseInProgress:
			return m.updateInProgress(msg)
		case domain.PhaseComplete:
			return m.updateForm(msg)
		}
	}
	return m, nil
}

func (m *Model) updateSelectingAge(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.ageCursor > 0 {
			m.ageCursor--
		}
	case "down", "j":
		if m.ageCursor < len(domain.AllAgeBrackets)-1 {
			m.ageCursor++
		}
	case "1", "2", "3", "4":
		m.ageCursor = int(msg.String()[0] - '1')
		m.startQuiz()
	case "enter", " ":
		m.startQuiz()
	case "m":
		app.ToggleMute()
	}
	return m, nil
}

func (m *Model) startQuiz() {
	state, err := m.service.SelectAge(context.Background(), m.sessionID, domain.AllAgeBrackets[m.ageCursor])
	if err != nil {
		m.errMsg = userMessage(err)
		return
	}
	m.state = state
	m.errMsg = ""
}

func (m *Model) updateInProgress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "esc":
		return m, tea.Quit
	case "m":
		app.ToggleMute()
		return m, nil
	case "1", "2", "3", "4":
		q := m.state.Question
		idx := int(key[0] - '1')
		if q == nil || idx >= len(q.Choices) {
			return m, nil
		}
		result, err := m.service.SubmitAnswer(context.Background(), m.sessionID, q.Choices[idx])
		if err != nil {
			m.errMsg = userMessage(err)
			return m, nil
		}
		m.last = &result
		if state, err := m.service.State(context.Background(), m.sessionID); err == nil {
			m.state = state
		}
	}
	return m, nil
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.inputs[m.focus].Blur()
		m.focus = (m.focus + 1) % len(m.inputs)
		m.inputs[m.focus].Focus()
		return m, nil
	case tea.KeyEnter:
		if m.submitting {
			return m, nil
		}
		m.submitting = true
		return m, m.submit()
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) updateHallOfFame(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "r", "enter":
		m.endSession()
		m.newSession()
		return m, waitForState(m.updates)
	}
	return m, nil
}

func (m *Model) newSession() {
	ctx := context.Background()
	m.state = m.service.NewSession(ctx)
	m.sessionID = m.state.ID
	updates, cancel, err := m.service.Subscribe(ctx, m.sessionID)
	if err != nil {
		m.errMsg = userMessage(err)
		return
	}
	m.updates, m.cancel = updates, cancel
	m.screen = screenQuiz
	m.last = nil
	m.errMsg = ""
	m.hall = nil
	m.position = 0
	m.submitting = false
	m.focus = fieldInitials
	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
}

func (m *Model) endSession() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.service.End(context.Background(), m.sessionID)
}

func (m *Model) submit() tea.Cmd {
	service, id := m.service, m.sessionID
	initials, email := m.inputs[fieldInitials].Value(), m.inputs[fieldEmail].Value()
	return func() tea.Msg {
		record, err := service.SubmitScore(context.Background(), id, initials, email)
		return submittedMsg{record: record, err: err}
	}
}

func (m *Model) fetchHall() tea.Cmd {
	board := m.service.Leaderboard()
	return func() tea.Msg {
		hall, err := board.FetchAllTop3(context.Background())
		return hallMsg{hall: hall, err: err}
	}
}

func waitForState(updates <-chan domain.SessionState) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		state, ok := <-updates
		return stateMsg{state: state, ok: ok}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch {
	case m.screen == screenHallOfFame:
		body = m.renderHallOfFame()
	case m.state.Phase == domain.PhaseSelectingAge:
		body = m.renderAgeSelect()
	case m.state.Phase == domain.PhaseInProgress:
		body = m.renderQuestion()
	default:
		body = m.renderForm()
	}
	if m.errMsg != "" {
		body += "\n\n" + incorrectStyle.Render(m.errMsg)
	}
	content := boxStyle.Render(body) + "\n" + footerStyle.Render(m.renderFooter())
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderAgeSelect() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Multiplication Quiz"))
	b.WriteString("\n\nHow old are you?\n\n")
	for i, bracket := range domain.AllAgeBrackets {
		line := fmt.Sprintf("%d. %s", i+1, bracket.Label())
		if i == m.ageCursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(mutedTextStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderQuestion() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s   Score: %d   Time: %ds\n\n", titleStyle.Render(m.state.AgeBracket.Label()), m.state.Score, m.state.TimeRemainingSeconds)
	if q := m.state.Question; q != nil {
		b.WriteString(selectedStyle.Render(q.Prompt))
		b.WriteString("\n\n")
		for i, choice := range q.Choices {
			fmt.Fprintf(&b, "[%d] %d   ", i+1, choice)
		}
	}
	if m.last != nil {
		b.WriteString("\n\n")
		if m.last.Record.IsCorrect {
			b.WriteString(correctStyle.Render("Correct!"))
		} else {
			b.WriteString(incorrectStyle.Render(fmt.Sprintf("Oops! %s was %d", strings.TrimSuffix(m.last.Record.Prompt, " = ?"), m.last.Record.CorrectValue)))
		}
	}
	return b.String()
}

func (m *Model) renderForm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Time's up!"))
	fmt.Fprintf(&b, "\n\nYou scored %d out of %d.\n\n", m.state.Score, len(m.state.AnswerLog))
	for _, rec := range m.state.AnswerLog {
		mark := correctStyle.Render("✓")
		if !rec.IsCorrect {
			mark = incorrectStyle.Render("✗")
		}
		fmt.Fprintf(&b, "%s %s %d\n", mark, strings.TrimSuffix(rec.Prompt, "?"), rec.ChosenValue)
	}
	b.WriteString("\n")
	for _, input := range m.inputs {
		b.WriteString(input.View())
		b.WriteString("\n")
	}
	if m.submitting {
		b.WriteString(mutedTextStyle.Render("\nSubmitting..."))
	}
	return b.String()
}

func (m *Model) renderHallOfFame() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Hall of Fame"))
	fmt.Fprintf(&b, "\n\n%s scored %d", m.record.Initials, m.record.Score)
	if m.position > 0 {
		fmt.Fprintf(&b, ", position #%d in %s", m.position, m.record.AgeGroup.Label())
	}
	b.WriteString("\n")
	for _, bracket := range domain.AllAgeBrackets {
		b.WriteString("\n")
		b.WriteString(selectedStyle.Render(bracket.Label()))
		b.WriteString("\n")
		entries := m.hall[bracket]
		if len(entries) == 0 {
			b.WriteString(mutedTextStyle.Render("  no scores yet\n"))
			continue
		}
		for i, e := range entries {
			fmt.Fprintf(&b, "  %d. %s %d\n", i+1, e.Initials, e.Score)
		}
	}
	return b.String()
}

func (m *Model) renderFooter() string {
	sound := "sound on"
	if app.Muted() {
		sound = "muted"
	}
	switch {
	case m.screen == screenHallOfFame:
		return "r play again • q quit • " + sound
	case m.state.Phase == domain.PhaseSelectingAge:
		return "1-4 or ↑/↓ + enter choose • m mute • q quit • " + sound
	case m.state.Phase == domain.PhaseInProgress:
		return "1-4 answer • m mute • q quit • " + sound
	default:
		return "tab switch field • enter submit • esc quit"
	}
}

func userMessage(err error) string {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return err.Error()
}
