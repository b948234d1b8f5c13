package http

import (
	"net/http"
	"strings"
	"testing"

	"classroom-quiz-service/internal/domain"
)

func TestRoomLifecycleOverREST(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	room := createRoom(t, base)
	if room.RoomCode == "" || room.HostToken == "" {
		t.Fatalf("expected code and host token, got %+v", room)
	}

	ada := joinRoom(t, base, strings.ToLower(room.RoomCode), "Ada")
	bob := joinRoom(t, base, room.RoomCode, "Bob")

	var summary domain.RoomSummary
	if status := doJSON(t, http.MethodGet, base+"/api/rooms/code/"+room.RoomCode, nil, nil, &summary); status != http.StatusOK {
		t.Fatalf("get by code status %d", status)
	}
	if summary.ParticipantCount != 2 || summary.Status != domain.StatusWaiting {
		t.Fatalf("unexpected summary %+v", summary)
	}

	startRoom(t, base, room)

	var next domain.NextQuestion
	status := doJSON(t, http.MethodGet, base+"/api/participants/"+ada.ParticipantID+"/question",
		map[string]string{participantTokenHeader: ada.Token}, nil, &next)
	if status != http.StatusOK || next.Question == nil || next.Question.OrderNumber != 0 {
		t.Fatalf("unexpected next question %d %+v", status, next)
	}

	submit := func(p joinResponse, order int, option string) domain.SubmitResult {
		t.Helper()
		var result domain.SubmitResult
		status := doJSON(t, http.MethodPost, base+"/api/participants/"+p.ParticipantID+"/answers",
			map[string]string{participantTokenHeader: p.Token},
			answerRequest{QuestionOrder: order, Option: option, ElapsedMs: 1500}, &result)
		if status != http.StatusOK {
			t.Fatalf("submit status %d", status)
		}
		return result
	}

	if res := submit(ada, 0, "4"); !res.Accepted || !res.Correct || res.Participant.Score != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res := submit(ada, 0, "4"); res.Accepted {
		t.Fatalf("duplicate submission accepted: %+v", res)
	}
	submit(ada, 1, "H2O")
	submit(bob, 0, "3")

	var early errorResponse
	status = doJSON(t, http.MethodPost, base+"/api/rooms/"+room.RoomID+"/end",
		map[string]string{hostTokenHeader: room.HostToken}, nil, &early)
	if status != http.StatusConflict || early.Reason != "participants_unfinished" {
		t.Fatalf("expected unfinished conflict, got %d %+v", status, early)
	}

	if res := submit(bob, 1, "H2O"); res.RoomStatus != domain.StatusCompleted {
		t.Fatalf("expected auto completion, got %+v", res)
	}

	var lb domain.Leaderboard
	if status := doJSON(t, http.MethodGet, base+"/api/rooms/"+room.RoomID+"/leaderboard", nil, nil, &lb); status != http.StatusOK {
		t.Fatalf("leaderboard status %d", status)
	}
	if !lb.Complete || len(lb.Entries) != 2 || lb.Entries[0].DisplayName != "Ada" || lb.Entries[0].Score != 20 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}

	var subs []domain.Submission
	status = doJSON(t, http.MethodGet, base+"/api/participants/"+bob.ParticipantID+"/answers",
		map[string]string{participantTokenHeader: bob.Token}, nil, &subs)
	if status != http.StatusOK || len(subs) != 2 || subs[0].Correct {
		t.Fatalf("unexpected submissions %d %+v", status, subs)
	}
}

func TestErrorMapping(t *testing.T) {
	server := newTestServer(t)
	base := server.URL
	room := createRoom(t, base)

	cases := []struct {
		name   string
		method string
		path   string
		header map[string]string
		body   any
		status int
		reason string
	}{
		{"unknown room", http.MethodGet, "/api/rooms/nope", nil, nil, http.StatusNotFound, "room_not_found"},
		{"bad code", http.MethodGet, "/api/rooms/code/io", nil, nil, http.StatusNotFound, "room_not_found"},
		{"wrong host token", http.MethodPost, "/api/rooms/" + room.RoomID + "/start",
			map[string]string{hostTokenHeader: "wrong"}, nil, http.StatusForbidden, "forbidden"},
		{"start empty room", http.MethodPost, "/api/rooms/" + room.RoomID + "/start",
			map[string]string{hostTokenHeader: room.HostToken}, nil, http.StatusConflict, "no_participants"},
		{"blank name", http.MethodPost, "/api/join", nil,
			joinRequest{RoomCode: room.RoomCode, DisplayName: "  "}, http.StatusBadRequest, "invalid_name"},
		{"long name", http.MethodPost, "/api/join", nil,
			joinRequest{RoomCode: room.RoomCode, DisplayName: strings.Repeat("ы", domain.MaxNameLength+1)}, http.StatusBadRequest, "invalid_name"},
		{"invalid room", http.MethodPost, "/api/rooms", nil,
			domain.RoomSpec{Name: "x", MaxPlayers: 1}, http.StatusBadRequest, "invalid_room"},
		{"bad force", http.MethodPost, "/api/rooms/" + room.RoomID + "/end?force=maybe",
			map[string]string{hostTokenHeader: room.HostToken}, nil, http.StatusBadRequest, "invalid_force"},
		{"unknown participant", http.MethodGet, "/api/participants/nope/question", nil, nil,
			http.StatusNotFound, "participant_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp errorResponse
			status := doJSON(t, tc.method, base+tc.path, tc.header, tc.body, &resp)
			if status != tc.status || resp.Reason != tc.reason {
				t.Fatalf("expected %d %s, got %d %+v", tc.status, tc.reason, status, resp)
			}
		})
	}
}

func TestCreateRoomCountsNameRunes(t *testing.T) {
	server := newTestServer(t)
	spec := sampleSpec()
	spec.Name = strings.Repeat("д", 21)

	var created createRoomResponse
	if status := doJSON(t, http.MethodPost, server.URL+"/api/rooms", nil, spec, &created); status != http.StatusCreated {
		t.Fatalf("expected 21 rune name to be accepted, got %d", status)
	}
	if created.Room.Name != spec.Name {
		t.Fatalf("unexpected room name %q", created.Room.Name)
	}

	spec.Name = strings.Repeat("д", domain.MaxNameLength+1)
	var resp errorResponse
	if status := doJSON(t, http.MethodPost, server.URL+"/api/rooms", nil, spec, &resp); status != http.StatusBadRequest || resp.Reason != "invalid_room" {
		t.Fatalf("expected invalid_room, got %d %+v", status, resp)
	}
}

func TestAnswerElapsedBounds(t *testing.T) {
	server := newTestServer(t)
	base := server.URL
	room := createRoom(t, base)
	ada := joinRoom(t, base, room.RoomCode, "Ada")
	startRoom(t, base, room)

	path := base + "/api/participants/" + ada.ParticipantID + "/answers"
	headers := map[string]string{participantTokenHeader: ada.Token}

	var resp errorResponse
	status := doJSON(t, http.MethodPost, path, headers, answerRequest{QuestionOrder: 0, Option: "4", ElapsedMs: -1}, &resp)
	if status != http.StatusBadRequest || resp.Reason != "invalid_body" {
		t.Fatalf("expected invalid_body for negative elapsed, got %d %+v", status, resp)
	}

	// 9223372036854776ms overflows a time.Duration when converted naively.
	var result domain.SubmitResult
	status = doJSON(t, http.MethodPost, path, headers, answerRequest{QuestionOrder: 0, Option: "4", ElapsedMs: 9223372036854776}, &result)
	if status != http.StatusOK {
		t.Fatalf("submit status %d", status)
	}
	if !result.Accepted || result.Correct || result.ScoreDelta != 0 || result.Participant.Score != 0 {
		t.Fatalf("expected an accepted miss for an overlong elapsed, got %+v", result)
	}
}

func TestAnswerSubmissionClampsElapsed(t *testing.T) {
	sub := answerRequest{ElapsedMs: 9223372036854776}.submission()
	if sub.Elapsed <= 0 {
		t.Fatalf("expected a positive clamped elapsed, got %s", sub.Elapsed)
	}
	if sub := (answerRequest{ElapsedMs: 1500}).submission(); sub.Elapsed.Milliseconds() != 1500 {
		t.Fatalf("expected 1500ms, got %s", sub.Elapsed)
	}
}

func TestJoinConflicts(t *testing.T) {
	server := newTestServer(t)
	base := server.URL
	room := createRoom(t, base)

	joinRoom(t, base, room.RoomCode, "Ada")

	var resp errorResponse
	status := doJSON(t, http.MethodPost, base+"/api/join", nil, joinRequest{RoomCode: room.RoomCode, DisplayName: "ADA"}, &resp)
	if status != http.StatusConflict || resp.Reason != "name_taken" {
		t.Fatalf("expected name_taken, got %d %+v", status, resp)
	}

	joinRoom(t, base, room.RoomCode, "Bob")
	status = doJSON(t, http.MethodPost, base+"/api/join", nil, joinRequest{RoomCode: room.RoomCode, DisplayName: "Cy"}, &resp)
	if status != http.StatusConflict || resp.Reason != "room_full" {
		t.Fatalf("expected room_full, got %d %+v", status, resp)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
}
