package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWSHandler(service *app.SessionService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func errorMessage(err error) outboundMessage[any] {
	_, reason := statusFor(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Reason: reason}}
}

// ServeWS upgrades to a websocket that streams leaderboard snapshots for a
// room. Observers connect with roomId only; participants add participantId
// and token and may then send answer and next messages. A participant
// connected before the start receives its first question once a snapshot
// shows the room active.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	participantID := r.URL.Query().Get("participantId")
	token := r.URL.Query().Get("token")
	if roomID == "" {
		http.Error(w, "missing roomId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var next domain.NextQuestion
	if participantID != "" {
		next, err = h.service.NextQuestion(ctx, participantID, token)
		if err != nil {
			_ = conn.WriteJSON(errorMessage(err))
			return
		}
		if next.RoomID != roomID {
			h.log.Debug("ws room mismatch", "room_id", roomID, "participant_id", participantID)
			_ = conn.WriteJSON(errorMessage(domain.ErrForbidden))
			return
		}
	}

	updates, err := h.service.Watch(ctx, roomID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// enqueue drops the message once the writer has gone away.
	enqueue := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	// sendQuestion pushes the participant's current question.
	sendQuestion := func() {
		next, err := h.service.NextQuestion(ctx, participantID, token)
		if err != nil {
			if ctx.Err() == nil {
				enqueue(errorMessage(err))
			}
			return
		}
		enqueue(outboundMessage[any]{Type: "question", Payload: next})
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "room_id", roomID, "error", err)
				// unblock the read loop
				_ = conn.Close()
				return
			}
		}
	}()

	announced := participantID == "" || next.RoomStatus != domain.StatusWaiting
	go func() {
		defer close(updatesDone)
		for {
			select {
			case lb, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: lb}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
				if !announced && lb.Status == domain.StatusActive {
					announced = true
					sendQuestion()
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if participantID != "" {
		enqueue(outboundMessage[any]{Type: "question", Payload: next})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			if participantID == "" {
				enqueue(errorMessage(domain.ErrForbidden))
				continue
			}
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Reason: "invalid_body"}})
				continue
			}
			if err := domain.ValidateStruct(payload); err != nil {
				enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: validationMessage(err), Reason: "invalid_body"}})
				continue
			}
			result, err := h.service.Submit(ctx, participantID, token, payload.submission())
			if err != nil {
				enqueue(errorMessage(err))
				continue
			}
			enqueue(outboundMessage[any]{Type: "answerResult", Payload: result})
			sendQuestion()
		case "next":
			if participantID == "" {
				enqueue(errorMessage(domain.ErrForbidden))
				continue
			}
			sendQuestion()
		default:
			enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	cancel()
	<-updatesDone
	close(send)
	<-writerDone
}
