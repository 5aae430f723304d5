package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectAgePayload struct {
	Age string `json:"age"`
}

type answerPayload struct {
	Value int `json:"value"`
}

type submitScorePayload struct {
	Initials string `json:"initials"`
	Email    string `json:"email"`
}

type completePayload struct {
	State domain.SessionState `json:"state"`
	Sound string              `json:"sound,omitempty"`
}

type submittedPayload struct {
	Entry      domain.LeaderboardEntry `json:"entry"`
	Position   int                     `json:"position"`
	HallOfFame domain.HallOfFame       `json:"hallOfFame,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// ServeWS upgrades the request and runs one quiz session over the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session := h.service.NewSession(ctx)
	updates, cancel, err := h.service.Subscribe(ctx, session.ID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	defer h.service.End(context.Background(), session.ID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// a single writer goroutine owns the connection's write side
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		completed := false
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					return
				}
				msg := outboundMessage[any]{Type: "state", Payload: state}
				if state.Phase == domain.PhaseComplete {
					if completed {
						continue
					}
					completed = true
					msg = outboundMessage[any]{Type: "complete", Payload: completePayload{State: state, Sound: app.ResultCue(state.Score)}}
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply, ok := h.handle(ctx, session.ID, inbound)
		if !ok {
			continue
		}
		select {
		case send <- reply:
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle runs one client message; state changes reach the client through the
// subscription, so only direct replies are returned.
func (h *WSHandler) handle(ctx context.Context, sessionID string, inbound inboundMessage) (outboundMessage[any], bool) {
	switch inbound.Type {
	case "selectAge":
		var payload selectAgePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errors.New("invalid selectAge payload")), true
		}
		if _, err := h.service.SelectAge(ctx, sessionID, domain.AgeBracket(payload.Age)); err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{}, false
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errors.New("invalid answer payload")), true
		}
		result, err := h.service.SubmitAnswer(ctx, sessionID, payload.Value)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: "answerResult", Payload: result}, true
	case "submitScore":
		var payload submitScorePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errors.New("invalid submitScore payload")), true
		}
		record, err := h.service.SubmitScore(ctx, sessionID, payload.Initials, payload.Email)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: "submitted", Payload: h.submitted(ctx, record)}, true
	default:
		return errorMessage(errors.New("unsupported message type")), true
	}
}

// submitted attaches the hall of fame; a failed read only leaves it out.
func (h *WSHandler) submitted(ctx context.Context, record domain.ScoreRecord) submittedPayload {
	payload := submittedPayload{Entry: record.Entry(), Position: 1}
	hall, err := h.service.Leaderboard().FetchAllTop3(ctx)
	if err != nil {
		log.Printf("hall of fame unavailable after submit: %v", err)
		return payload
	}
	payload.HallOfFame = hall
	payload.Position = app.Rank(hall[record.AgeGroup], record.Score)
	return payload
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
}

func toErrorPayload(err error) errorPayload {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return errorPayload{Message: gwErr.Message, Kind: errorKind(err)}
	}
	return errorPayload{Message: err.Error()}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permissionDenied"
	case errors.Is(err, domain.ErrConnection):
		return "connection"
	case errors.Is(err, domain.ErrUnknownStore):
		return "unknownStore"
	default:
		return ""
	}
}
