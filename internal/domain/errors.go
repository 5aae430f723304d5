package domain

import (
	"errors"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a quiz session does not exist.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionStarted is returned when an age bracket is chosen twice.
	ErrSessionStarted = errors.New("quiz session already started")
	// ErrSessionNotStarted is returned when answering before choosing an age bracket.
	ErrSessionNotStarted = errors.New("quiz session not started")
	// ErrSessionComplete is returned for answers that arrive after time ran out.
	ErrSessionComplete = errors.New("quiz session complete")
	// ErrSessionNotComplete is returned when submitting a score mid-quiz.
	ErrSessionNotComplete = errors.New("quiz session still in progress")
	// ErrAlreadySubmitted guards against a second leaderboard submission for one session.
	ErrAlreadySubmitted = errors.New("score already submitted")
)

// Leaderboard error kinds. GatewayError values unwrap to one of these.
var (
	ErrValidation       = errors.New("validation error")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConnection       = errors.New("connection error")
	ErrUnknownStore     = errors.New("unknown store error")
)

// GatewayError carries a message suitable for showing to the player.
type GatewayError struct {
	Kind    error
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewValidationError builds a locally detected input error.
func NewValidationError(message string) *GatewayError {
	return &GatewayError{Kind: ErrValidation, Message: message}
}

// StoreError is a structured failure reported by a score store.
// The zero value means the store answered without any detail.
type StoreError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *StoreError) Error() string {
	parts := make([]string, 0, 3)
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Details != "" {
		parts = append(parts, e.Details)
	}
	if len(parts) == 0 {
		return "store error without detail"
	}
	return "store error: " + strings.Join(parts, ": ")
}

// Empty reports whether the store supplied no structured fields.
func (e *StoreError) Empty() bool {
	return e.Code == "" && e.Message == "" && e.Details == "" && e.Hint == ""
}
