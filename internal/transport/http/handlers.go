package http

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

const (
	hostTokenHeader        = "X-Host-Token"
	participantTokenHeader = "X-Participant-Token"
)

// API exposes the session use cases over REST.
type API struct {
	service *app.SessionService
	log     *slog.Logger
}

type createRoomResponse struct {
	RoomID    string      `json:"roomId"`
	RoomCode  string      `json:"roomCode"`
	HostToken string      `json:"hostToken"`
	Room      domain.Room `json:"room"`
}

type joinRequest struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName" validate:"displayname"`
}

type joinResponse struct {
	ParticipantID string             `json:"participantId"`
	Token         string             `json:"token"`
	RoomID        string             `json:"roomId"`
	Participant   domain.Participant `json:"participant"`
}

type answerRequest struct {
	QuestionOrder int    `json:"questionOrder" validate:"gte=0"`
	Option        string `json:"option"`
	ElapsedMs     int64  `json:"elapsedMs" validate:"gte=0"`
}

// maxElapsedMs is the largest millisecond count a time.Duration can hold.
const maxElapsedMs = math.MaxInt64 / int64(time.Millisecond)

func (a answerRequest) submission() domain.AnswerSubmission {
	ms := a.ElapsedMs
	if ms > maxElapsedMs {
		ms = maxElapsedMs
	}
	return domain.AnswerSubmission{
		QuestionOrder:  a.QuestionOrder,
		SelectedOption: a.Option,
		Elapsed:        time.Duration(ms) * time.Millisecond,
	}
}

func (a *API) createRoom(w http.ResponseWriter, r *http.Request) {
	var spec domain.RoomSpec
	if err := readJSON(r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	room, err := a.service.CreateRoom(r.Context(), spec)
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{
		RoomID:    room.ID,
		RoomCode:  room.Code,
		HostToken: room.HostToken,
		Room:      room,
	})
}

func (a *API) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := a.service.GetRoom(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) getRoomByCode(w http.ResponseWriter, r *http.Request) {
	room, err := a.service.GetRoomByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) startRoom(w http.ResponseWriter, r *http.Request) {
	room, err := a.service.Start(r.Context(), chi.URLParam(r, "roomID"), r.Header.Get(hostTokenHeader))
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) endRoom(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_force", "force must be a boolean")
			return
		}
		force = parsed
	}
	room, err := a.service.End(r.Context(), chi.URLParam(r, "roomID"), r.Header.Get(hostTokenHeader), force)
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := a.service.Leaderboard(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if err := domain.ValidateStruct(req); err != nil {
		writeServiceError(w, r, a.log, fmt.Errorf("%w: %s", domain.ErrInvalidName, validationMessage(err)))
		return
	}
	p, err := a.service.Join(r.Context(), req.RoomCode, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinResponse{
		ParticipantID: p.ID,
		Token:         p.Token,
		RoomID:        p.RoomID,
		Participant:   p,
	})
}

func (a *API) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if err := domain.ValidateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", validationMessage(err))
		return
	}
	result, err := a.service.Submit(r.Context(), chi.URLParam(r, "participantID"),
		r.Header.Get(participantTokenHeader), req.submission())
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) listAnswers(w http.ResponseWriter, r *http.Request) {
	subs, err := a.service.Submissions(r.Context(), chi.URLParam(r, "participantID"), r.Header.Get(participantTokenHeader))
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (a *API) nextQuestion(w http.ResponseWriter, r *http.Request) {
	next, err := a.service.NextQuestion(r.Context(), chi.URLParam(r, "participantID"), r.Header.Get(participantTokenHeader))
	if err != nil {
		writeServiceError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}
