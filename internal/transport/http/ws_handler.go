package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxMessageSize = 4096

type WSHandler struct {
	service  *app.AssessmentService
	upgrader websocket.Upgrader
	validate *validator.Validate
	logger   *zap.Logger
	limit    rate.Limit
	burst    int
}

func NewWSHandler(service *app.AssessmentService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		validate: validator.New(),
		logger:   logger,
		limit:    rate.Limit(10),
		burst:    20,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string  `json:"questionId" validate:"omitempty,max=128"`
	Choice     *int    `json:"choice" validate:"omitempty,min=1,max=4,excluded_with=Text"`
	Text       *string `json:"text" validate:"omitempty,max=10000"`
}

type navigatePayload struct {
	Move  string `json:"move" validate:"required,oneof=next prev jump"`
	Index int    `json:"index" validate:"min=0"`
}

type submitPayload struct {
	Confirm bool `json:"confirm"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type warningPayload struct {
	Message  string `json:"message"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
}

// ServeWS opens the requested session and streams its countdown and state
// over a websocket. The countdown keeps running server side after the client
// disconnects, so an abandoned attempt is still submitted at its deadline.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	attempt, err := h.service.Open(r.Context(), sessionID)
	if err != nil {
		h.logger.Warn("open session failed", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	events, cancel := attempt.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "snapshot", Payload: attempt.Snapshot()}

	limiter := rate.NewLimiter(h.limit, h.burst)
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !limiter.Allow() {
			send <- errorMessage("too many messages")
			continue
		}
		send <- h.dispatch(r, attempt, inbound)
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, attempt *app.Attempt, inbound inboundMessage) outboundMessage[any] {
	ctx := r.Context()
	sessionID := attempt.SessionID()

	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := h.decode(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload")
		}
		value := domain.AnswerValue{Choice: payload.Choice, Text: payload.Text}
		snap, err := h.service.Answer(ctx, sessionID, payload.QuestionID, value)
		if err != nil {
			return h.failure(attempt, err)
		}
		return outboundMessage[any]{Type: "snapshot", Payload: snap}

	case "navigate":
		var payload navigatePayload
		if err := h.decode(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid navigate payload")
		}
		snap, err := h.service.Navigate(ctx, sessionID, app.Move(payload.Move), payload.Index)
		if err != nil {
			return h.failure(attempt, err)
		}
		return outboundMessage[any]{Type: "snapshot", Payload: snap}

	case "submit":
		var payload submitPayload
		if len(inbound.Payload) > 0 {
			if err := h.decode(inbound.Payload, &payload); err != nil {
				return errorMessage("invalid submit payload")
			}
		}
		_, err := h.service.Submit(ctx, sessionID, app.SubmitRequest{Reason: domain.ReasonManual, Confirmed: payload.Confirm})
		var unanswered *domain.UnansweredError
		if errors.As(err, &unanswered) {
			return outboundMessage[any]{Type: "warning", Payload: warningPayload{
				Message:  unanswered.Error(),
				Answered: unanswered.Answered,
				Total:    unanswered.Total,
			}}
		}
		if err != nil {
			return h.failure(attempt, err)
		}
		// the submitted event reaches the client through the subscription
		return outboundMessage[any]{Type: "snapshot", Payload: attempt.Snapshot()}

	case "snapshot":
		return outboundMessage[any]{Type: "snapshot", Payload: attempt.Snapshot()}

	default:
		return errorMessage("unsupported message type")
	}
}

func (h *WSHandler) decode(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func (h *WSHandler) failure(attempt *app.Attempt, err error) outboundMessage[any] {
	if errors.Is(err, domain.ErrSessionNotOpen) && attempt.State() == domain.StateSubmitted {
		err = domain.ErrAlreadySubmitted
	}
	h.logger.Debug("ws action failed", zap.String("session_id", attempt.SessionID()), zap.Error(err))
	return errorMessage(err.Error())
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrAssessmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
