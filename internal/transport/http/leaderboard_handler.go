package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/domain"
)

const defaultLeaderboardLimit = 5

// LeaderboardHandler serves leaderboard reads and the mute toggle over REST.
type LeaderboardHandler struct {
	board *app.Leaderboard
}

func NewLeaderboardHandler(board *app.Leaderboard) *LeaderboardHandler {
	return &LeaderboardHandler{board: board}
}

// Register mounts the REST routes on mux.
func (h *LeaderboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /leaderboard", h.hallOfFame)
	mux.HandleFunc("GET /leaderboard/{age}", h.top)
	mux.HandleFunc("GET /mute", h.mute)
	mux.HandleFunc("POST /mute", h.toggleMute)
}

type hallOfFameResponse struct {
	HallOfFame domain.HallOfFame `json:"hallOfFame"`
	Position   int               `json:"position,omitempty"`
}

type muteResponse struct {
	Muted bool `json:"muted"`
}

func (h *LeaderboardHandler) top(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.NewValidationError("limit must be a number"))
			return
		}
		limit = n
	}
	entries, err := h.board.FetchTop(r.Context(), domain.AgeBracket(r.PathValue("age")), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *LeaderboardHandler) hallOfFame(w http.ResponseWriter, r *http.Request) {
	hall, err := h.board.FetchAllTop3(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := hallOfFameResponse{HallOfFame: hall}

	q := r.URL.Query()
	if q.Get("initials") != "" && q.Get("score") != "" {
		score, err := strconv.Atoi(q.Get("score"))
		if err != nil {
			writeError(w, domain.NewValidationError("score must be a number"))
			return
		}
		bracket, err := domain.ParseAgeBracket(q.Get("age"))
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Position = app.Rank(hall[bracket], score)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LeaderboardHandler) mute(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, muteResponse{Muted: app.Muted()})
}

func (h *LeaderboardHandler) toggleMute(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, muteResponse{Muted: app.ToggleMute()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), toErrorPayload(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConnection), errors.Is(err, domain.ErrUnknownStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
