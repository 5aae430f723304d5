package domain

import "time"

// AgeBracket selects the difficulty tier and leaderboard group of a quiz.
type AgeBracket string

const (
	AgeBracket4to5  AgeBracket = "4-5"
	AgeBracket6to7  AgeBracket = "6-7"
	AgeBracket8to9  AgeBracket = "8-9"
	AgeBracketAdult AgeBracket = "adult"
)

// AllAgeBrackets lists the brackets in display order.
var AllAgeBrackets = []AgeBracket{AgeBracket4to5, AgeBracket6to7, AgeBracket8to9, AgeBracketAdult}

// ParseAgeBracket validates a raw bracket value.
func ParseAgeBracket(raw string) (AgeBracket, error) {
	for _, b := range AllAgeBrackets {
		if string(b) == raw {
			return b, nil
		}
	}
	return "", NewValidationError("Please choose a valid age group.")
}

// OperandMax is the largest operand drawn for the bracket.
func (b AgeBracket) OperandMax() int {
	switch b {
	case AgeBracket4to5:
		return 5
	case AgeBracket6to7:
		return 10
	case AgeBracket8to9:
		return 12
	default:
		return 20
	}
}

// Label is the human-readable bracket name.
func (b AgeBracket) Label() string {
	if b == AgeBracketAdult {
		return "Adults"
	}
	return string(b) + " years"
}

// Phase is the quiz session lifecycle stage.
type Phase string

const (
	PhaseSelectingAge Phase = "selectingAge"
	PhaseInProgress   Phase = "inProgress"
	PhaseComplete     Phase = "complete"
)

// Question is a multiplication problem with exactly one correct choice.
type Question struct {
	Prompt        string `json:"prompt"`
	CorrectAnswer int    `json:"-"`
	Choices       []int  `json:"choices"`
}

// AnswerRecord is one entry of the session answer log.
type AnswerRecord struct {
	Prompt       string `json:"prompt"`
	ChosenValue  int    `json:"chosenValue"`
	CorrectValue int    `json:"correctValue"`
	IsCorrect    bool   `json:"isCorrect"`
}

// AnswerResult summarizes a submitted answer for the player.
type AnswerResult struct {
	Record AnswerRecord `json:"record"`
	Score  int          `json:"score"`
	Sound  string       `json:"sound,omitempty"`
}

// SessionState is a point-in-time copy of a quiz session.
type SessionState struct {
	ID                   string         `json:"id"`
	AgeBracket           AgeBracket     `json:"ageBracket,omitempty"`
	TimeRemainingSeconds int            `json:"timeRemainingSeconds"`
	Score                int            `json:"score"`
	AnswerLog            []AnswerRecord `json:"answerLog"`
	Phase                Phase          `json:"phase"`
	Question             *Question      `json:"question,omitempty"`
}

// LeaderboardEntry is a ranked projection of a stored score.
type LeaderboardEntry struct {
	Initials   string     `json:"initials"`
	Score      int        `json:"score"`
	AgeBracket AgeBracket `json:"ageGroup"`
}

// Submission is the leaderboard form payload.
type Submission struct {
	Initials   string
	Email      string
	Score      int
	AgeBracket AgeBracket
}

// ScoreRecord is a row of the quiz_results table.
type ScoreRecord struct {
	ID        int64      `json:"id,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	Initials  string     `json:"initials"`
	Email     string     `json:"email"`
	Score     int        `json:"score"`
	AgeGroup  AgeBracket `json:"age_group"`
}

// Entry projects the record onto the leaderboard view.
func (r ScoreRecord) Entry() LeaderboardEntry {
	return LeaderboardEntry{Initials: r.Initials, Score: r.Score, AgeBracket: r.AgeGroup}
}

// HallOfFame maps every bracket to its best entries.
type HallOfFame map[AgeBracket][]LeaderboardEntry
