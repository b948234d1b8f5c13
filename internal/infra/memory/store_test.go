package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
)

func seedRoom(t *testing.T, store *Store, id, code string, maxPlayers int) domain.Room {
	t.Helper()
	room := domain.Room{
		ID:            id,
		Code:          code,
		Name:          "Math",
		QuestionCount: 2,
		MaxPlayers:    maxPlayers,
		Status:        domain.StatusWaiting,
		HostToken:     "host",
		CreatedAt:     time.Now(),
	}
	if err := store.CreateRoom(context.Background(), room, sampleQuestions()); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func TestStoreRejectsLiveCodeCollision(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedRoom(t, store, "room-1", "ABCDEF", 5)

	err := store.CreateRoom(ctx, domain.Room{ID: "room-2", Code: "ABCDEF", Status: domain.StatusWaiting}, nil)
	if err != domain.ErrCodeTaken {
		t.Fatalf("expected code taken, got %v", err)
	}

	_ = store.InsertParticipant(ctx, domain.Participant{ID: "p1", RoomID: "room-1", DisplayName: "Alice"})
	_, _, _ = store.StartRoom(ctx, "room-1", time.Now())
	_, _, _ = store.CompleteRoom(ctx, "room-1", time.Now())

	if inUse, _ := store.CodeInUse(ctx, "ABCDEF"); inUse {
		t.Fatalf("completed room should release its code")
	}
	if err := store.CreateRoom(ctx, domain.Room{ID: "room-2", Code: "ABCDEF", Status: domain.StatusWaiting, CreatedAt: time.Now()}, nil); err != nil {
		t.Fatalf("reuse code: %v", err)
	}
	room, err := store.GetRoomByCode(ctx, "ABCDEF")
	if err != nil || room.ID != "room-2" {
		t.Fatalf("expected live room-2 for code, got %+v %v", room, err)
	}
}

func TestStoreConcurrentSameNameJoin(t *testing.T) {
	store := NewStore()
	seedRoom(t, store, "room-1", "ABCDEF", 10)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i, id := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			name := "alice"
			if i == 1 {
				name = "ALICE"
			}
			errs <- store.InsertParticipant(context.Background(), domain.Participant{ID: id, RoomID: "room-1", DisplayName: name})
		}(i, id)
	}
	wg.Wait()
	close(errs)

	var ok, taken int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case domain.ErrNameTaken:
			taken++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || taken != 1 {
		t.Fatalf("expected one success and one name taken, got ok=%d taken=%d", ok, taken)
	}
}

func TestStoreInsertParticipantGuards(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedRoom(t, store, "room-1", "ABCDEF", 1)

	if err := store.InsertParticipant(ctx, domain.Participant{ID: "p1", RoomID: "room-1", DisplayName: "Alice"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertParticipant(ctx, domain.Participant{ID: "p2", RoomID: "room-1", DisplayName: "Bob"}); err != domain.ErrRoomFull {
		t.Fatalf("expected room full, got %v", err)
	}
	if err := store.InsertParticipant(ctx, domain.Participant{ID: "p3", RoomID: "nope", DisplayName: "Bob"}); err != domain.ErrRoomNotFound {
		t.Fatalf("expected room not found, got %v", err)
	}
	if _, _, err := store.StartRoom(ctx, "room-1", time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}
	seedRoom(t, store, "room-2", "GHJKLM", 5)
	if _, _, err := store.StartRoom(ctx, "room-2", time.Now()); err != domain.ErrNoParticipants {
		t.Fatalf("expected no participants, got %v", err)
	}
	if err := store.InsertParticipant(ctx, domain.Participant{ID: "p4", RoomID: "room-1", DisplayName: "Carol"}); err != domain.ErrRoomNotJoinable {
		t.Fatalf("expected not joinable, got %v", err)
	}
}

func TestStoreApplySubmissionCompareAndSet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedRoom(t, store, "room-1", "ABCDEF", 5)
	_ = store.InsertParticipant(ctx, domain.Participant{ID: "p1", RoomID: "room-1", DisplayName: "Alice"})

	sub := domain.Submission{ParticipantID: "p1", QuestionOrder: 0, ScoreDelta: 10}
	if _, applied, _ := store.ApplySubmission(ctx, sub); applied {
		t.Fatalf("submission must not apply while waiting")
	}
	_, _, _ = store.StartRoom(ctx, "room-1", time.Now())

	p, applied, err := store.ApplySubmission(ctx, sub)
	if err != nil || !applied {
		t.Fatalf("expected applied, got applied=%v err=%v", applied, err)
	}
	if p.Score != 10 || p.AnswersSubmitted != 1 {
		t.Fatalf("unexpected participant %+v", p)
	}

	p, applied, _ = store.ApplySubmission(ctx, sub)
	if applied || p.Score != 10 || p.AnswersSubmitted != 1 {
		t.Fatalf("duplicate must not apply, got applied=%v %+v", applied, p)
	}

	_, _, _ = store.ApplySubmission(ctx, domain.Submission{ParticipantID: "p1", QuestionOrder: 1})
	p, applied, _ = store.ApplySubmission(ctx, domain.Submission{ParticipantID: "p1", QuestionOrder: 2, ScoreDelta: 10})
	if applied || p.AnswersSubmitted != 2 {
		t.Fatalf("progress must be bounded by question count, got %+v", p)
	}

	subs, _ := store.ListSubmissions(ctx, "p1")
	if len(subs) != 2 || subs[0].QuestionOrder != 0 || subs[1].QuestionOrder != 1 {
		t.Fatalf("unexpected submissions %+v", subs)
	}
}

func TestStoreTransitionsOnlyMoveForward(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedRoom(t, store, "room-1", "ABCDEF", 5)
	_ = store.InsertParticipant(ctx, domain.Participant{ID: "p1", RoomID: "room-1", DisplayName: "Alice"})

	if _, applied, _ := store.CompleteRoom(ctx, "room-1", time.Now()); applied {
		t.Fatalf("waiting room must not complete")
	}
	room, applied, _ := store.StartRoom(ctx, "room-1", time.Now())
	if !applied || room.StartedAt == nil || room.EndedAt != nil {
		t.Fatalf("unexpected started room %+v", room)
	}
	if _, applied, _ := store.StartRoom(ctx, "room-1", time.Now()); applied {
		t.Fatalf("start must apply once")
	}
	room, applied, _ = store.CompleteRoom(ctx, "room-1", time.Now())
	if !applied || room.EndedAt == nil || room.Status != domain.StatusCompleted {
		t.Fatalf("unexpected completed room %+v", room)
	}
	if _, applied, _ := store.StartRoom(ctx, "room-1", time.Now()); applied {
		t.Fatalf("completed room must not restart")
	}
}
