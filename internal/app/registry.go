package app

import (
	"context"
	"crypto/subtle"
	"strings"

	"classroom-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// Join registers a display name in the waiting room identified by code.
//
// The checks here give callers a specific reason early; the store repeats the
// status, capacity and name checks atomically because joins may come from
// independent processes.
func (s *SessionService) Join(ctx context.Context, code, displayName string) (domain.Participant, error) {
	name, err := domain.ValidateDisplayName(displayName)
	if err != nil {
		return domain.Participant{}, err
	}
	code = normalizeCode(code)
	if !ValidCode(code) {
		return domain.Participant{}, domain.ErrRoomNotFound
	}

	var room domain.Room
	err = s.retry(ctx, func() (err error) {
		room, err = s.store.GetRoomByCode(ctx, code)
		return err
	})
	if err != nil {
		return domain.Participant{}, err
	}
	if room.Status != domain.StatusWaiting {
		return domain.Participant{}, domain.ErrRoomNotJoinable
	}

	participants, err := s.listParticipants(ctx, room.ID)
	if err != nil {
		return domain.Participant{}, err
	}
	if len(participants) >= room.MaxPlayers {
		return domain.Participant{}, domain.ErrRoomFull
	}
	key := domain.NormalizeName(name)
	for _, p := range participants {
		if domain.NormalizeName(p.DisplayName) == key {
			return domain.Participant{}, domain.ErrNameTaken
		}
	}

	now := s.now()
	participant := domain.Participant{
		ID:          uuid.NewString(),
		RoomID:      room.ID,
		DisplayName: name,
		Token:       uuid.NewString(),
		JoinedAt:    now,
		UpdatedAt:   now,
	}
	if err := s.retry(ctx, func() error {
		return s.store.InsertParticipant(ctx, participant)
	}); err != nil {
		return domain.Participant{}, err
	}

	s.log.Info("participant joined", "room_id", room.ID, "participant_id", participant.ID)
	joined := participant
	s.publish(ctx, domain.Event{Type: domain.EventParticipantJoined, RoomID: room.ID, Participant: &joined})
	return participant, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func tokensEqual(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
