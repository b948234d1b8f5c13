package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := app.NewSessionService(store, memory.NewBus(), memory.NewQuestionCache(store, time.Minute), app.Options{
		PollInterval: 50 * time.Millisecond,
		Logger:       logger,
	})
	server := httptest.NewServer(NewRouter(service, logger))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, headers map[string]string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func sampleSpec() domain.RoomSpec {
	autoEnd := true
	return domain.RoomSpec{
		Name:       "Science check",
		TimeLimit:  20,
		MaxPlayers: 2,
		AutoEnd:    &autoEnd,
		Questions: []domain.QuestionSpec{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectOption: "4"},
			{Prompt: "Water formula?", Options: []string{"H2O", "CO2"}, CorrectOption: "H2O"},
		},
	}
}

func createRoom(t *testing.T, base string) createRoomResponse {
	t.Helper()
	var created createRoomResponse
	if status := doJSON(t, http.MethodPost, base+"/api/rooms", nil, sampleSpec(), &created); status != http.StatusCreated {
		t.Fatalf("create room status %d", status)
	}
	return created
}

func joinRoom(t *testing.T, base, code, name string) joinResponse {
	t.Helper()
	var joined joinResponse
	status := doJSON(t, http.MethodPost, base+"/api/join", nil, joinRequest{RoomCode: code, DisplayName: name}, &joined)
	if status != http.StatusCreated {
		t.Fatalf("join %s status %d", name, status)
	}
	return joined
}

func startRoom(t *testing.T, base string, room createRoomResponse) {
	t.Helper()
	status := doJSON(t, http.MethodPost, base+"/api/rooms/"+room.RoomID+"/start",
		map[string]string{hostTokenHeader: room.HostToken}, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("start status %d", status)
	}
}
