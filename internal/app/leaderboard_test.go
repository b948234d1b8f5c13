package app

import (
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
)

func TestProjectLeaderboardOrdering(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	room := domain.Room{ID: "room-1", QuestionCount: 3, Status: domain.StatusActive}
	participants := []domain.Participant{
		{ID: "p-late", DisplayName: "Late", Score: 20, AnswersSubmitted: 2, JoinedAt: t0.Add(3 * time.Second)},
		{ID: "p-top", DisplayName: "Top", Score: 30, AnswersSubmitted: 3, JoinedAt: t0.Add(5 * time.Second)},
		{ID: "p-early", DisplayName: "Early", Score: 20, AnswersSubmitted: 2, JoinedAt: t0.Add(time.Second)},
		{ID: "p-ahead", DisplayName: "Ahead", Score: 20, AnswersSubmitted: 3, JoinedAt: t0.Add(4 * time.Second)},
	}

	want := []string{"p-top", "p-ahead", "p-early", "p-late"}
	for run := 0; run < 5; run++ {
		lb := ProjectLeaderboard(room, participants, t0)
		for i, id := range want {
			if lb.Entries[i].ParticipantID != id || lb.Entries[i].Rank != i+1 {
				t.Fatalf("run %d: position %d expected %s, got %+v", run, i, id, lb.Entries[i])
			}
		}
		if lb.Complete {
			t.Fatalf("room is not complete")
		}
		if !lb.Entries[0].Finished || lb.Entries[2].Finished {
			t.Fatalf("unexpected finished flags %+v", lb.Entries)
		}
		// rotate input order; output must not depend on it
		participants = append(participants[1:], participants[0])
	}
}

func TestProjectLeaderboardDoesNotMutateInput(t *testing.T) {
	participants := []domain.Participant{{ID: "b", Score: 1}, {ID: "a", Score: 5}}
	ProjectLeaderboard(domain.Room{QuestionCount: 1}, participants, time.Now())
	if participants[0].ID != "b" {
		t.Fatalf("projector must not reorder the snapshot")
	}
}

func TestIsComplete(t *testing.T) {
	room := domain.Room{QuestionCount: 2}
	cases := []struct {
		name string
		in   []domain.Participant
		want bool
	}{
		{"empty", nil, false},
		{"one unfinished", []domain.Participant{{AnswersSubmitted: 2}, {AnswersSubmitted: 1}}, false},
		{"all finished", []domain.Participant{{AnswersSubmitted: 2}, {AnswersSubmitted: 2}}, true},
	}
	for _, tc := range cases {
		if got := IsComplete(room, tc.in); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
