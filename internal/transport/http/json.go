package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"classroom-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// validationMessage lists the request fields that failed their validate tags.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return "invalid request body: " + strings.Join(parts, ", ")
}

func writeError(w http.ResponseWriter, status int, reason, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Reason: reason})
}

type errorMapping struct {
	err    error
	status int
	reason string
}

var errorMappings = []errorMapping{
	{domain.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
	{domain.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
	{domain.ErrQuestionNotFound, http.StatusNotFound, "question_not_found"},
	{domain.ErrRoomFull, http.StatusConflict, "room_full"},
	{domain.ErrRoomNotJoinable, http.StatusConflict, "room_not_joinable"},
	{domain.ErrNameTaken, http.StatusConflict, "name_taken"},
	{domain.ErrRoomNotActive, http.StatusConflict, "room_not_active"},
	{domain.ErrNoParticipants, http.StatusConflict, "no_participants"},
	{domain.ErrParticipantsUnfinished, http.StatusConflict, "participants_unfinished"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
	{domain.ErrInvalidRoom, http.StatusBadRequest, "invalid_room"},
	{domain.ErrCodeSpaceExhausted, http.StatusServiceUnavailable, "code_space_exhausted"},
}

// statusFor maps a service error to an HTTP status and a stable reason code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.reason
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, reason := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		msg = "internal error"
	}
	writeError(w, status, reason, msg)
}
