package app

import (
	"sort"
	"time"

	"classroom-quiz-service/internal/domain"
)

// ProjectLeaderboard ranks a participant snapshot. It is a pure function of its
// inputs: score descending, then answers submitted descending, then earliest
// join, then participant id so equal rows still order deterministically.
func ProjectLeaderboard(room domain.Room, participants []domain.Participant, at time.Time) domain.Leaderboard {
	rows := append([]domain.Participant(nil), participants...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.AnswersSubmitted != b.AnswersSubmitted {
			return a.AnswersSubmitted > b.AnswersSubmitted
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, p := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:             i + 1,
			ParticipantID:    p.ID,
			DisplayName:      p.DisplayName,
			Score:            p.Score,
			AnswersSubmitted: p.AnswersSubmitted,
			Finished:         p.AnswersSubmitted >= room.QuestionCount,
			JoinedAt:         p.JoinedAt,
		})
	}

	return domain.Leaderboard{
		RoomID:        room.ID,
		Status:        room.Status,
		QuestionCount: room.QuestionCount,
		Complete:      IsComplete(room, participants),
		Entries:       entries,
		UpdatedAt:     at,
	}
}

// IsComplete reports whether a non-empty participant set has answered every question.
func IsComplete(room domain.Room, participants []domain.Participant) bool {
	if len(participants) == 0 {
		return false
	}
	for _, p := range participants {
		if p.AnswersSubmitted != room.QuestionCount {
			return false
		}
	}
	return true
}
