package app_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/infra/memory"
)

type fixture struct {
	service *app.SessionService
	store   *memory.Store
	bus     *memory.Bus
}

func newFixture(t *testing.T, opts app.Options) fixture {
	t.Helper()
	store := memory.NewStore()
	bus := memory.NewBus()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = steppingClock()
	}
	return fixture{
		service: app.NewSessionService(store, bus, memory.NewQuestionCache(store, time.Minute), opts),
		store:   store,
		bus:     bus,
	}
}

// steppingClock advances one second per call so join times are distinct.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func boolPtr(b bool) *bool { return &b }

// threeQuestionSpec has answers "4", "Paris", "H2O".
func threeQuestionSpec(maxPlayers int) domain.RoomSpec {
	return domain.RoomSpec{
		Name:       "Friday quiz",
		Category:   "general",
		Difficulty: "easy",
		TimeLimit:  30,
		MaxPlayers: maxPlayers,
		AutoEnd:    boolPtr(true),
		Questions: []domain.QuestionSpec{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: "4"},
			{Prompt: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectOption: "Paris"},
			{Prompt: "Water formula?", Options: []string{"H2O", "CO2"}, CorrectOption: "H2O"},
		},
	}
}

func mustCreate(t *testing.T, s *app.SessionService, spec domain.RoomSpec) domain.Room {
	t.Helper()
	room, err := s.CreateRoom(context.Background(), spec)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func mustJoin(t *testing.T, s *app.SessionService, code, name string) domain.Participant {
	t.Helper()
	p, err := s.Join(context.Background(), code, name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return p
}

func mustStart(t *testing.T, s *app.SessionService, room domain.Room) {
	t.Helper()
	if _, err := s.Start(context.Background(), room.ID, room.HostToken); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func answer(order int, option string) domain.AnswerSubmission {
	return domain.AnswerSubmission{QuestionOrder: order, SelectedOption: option, Elapsed: 2 * time.Second}
}
