package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classroom-quiz-service/internal/domain"
	"github.com/google/uuid"
)

const createAttempts = 3

// CreateRoom validates spec, allocates a room code and stores the room in the
// waiting state. The returned room carries the host token.
func (s *SessionService) CreateRoom(ctx context.Context, spec domain.RoomSpec) (domain.Room, error) {
	if err := spec.Validate(); err != nil {
		return domain.Room{}, err
	}

	autoEnd := s.autoEnd
	if spec.AutoEnd != nil {
		autoEnd = *spec.AutoEnd
	}

	room := domain.Room{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(spec.Name),
		Category:      spec.Category,
		Difficulty:    spec.Difficulty,
		QuestionCount: len(spec.Questions),
		TimeLimit:     spec.TimeLimit,
		MaxPlayers:    spec.MaxPlayers,
		AutoEnd:       autoEnd,
		Status:        domain.StatusWaiting,
		HostToken:     uuid.NewString(),
		CreatedAt:     s.now(),
	}
	questions := spec.BuildQuestions(room.ID)

	// The code check and the insert are separate; a concurrent create can still
	// claim the code first, in which case the store reports ErrCodeTaken.
	for i := 0; i < createAttempts; i++ {
		code, err := s.codes.Generate(ctx, s.store.CodeInUse)
		if err != nil {
			return domain.Room{}, err
		}
		room.Code = code
		err = s.retry(ctx, func() error {
			return s.store.CreateRoom(ctx, room, questions)
		})
		if errors.Is(err, domain.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return domain.Room{}, fmt.Errorf("create room: %w", err)
		}
		s.log.Info("room created", "room_id", room.ID, "room_code", room.Code, "questions", room.QuestionCount)
		return room, nil
	}
	return domain.Room{}, domain.ErrCodeSpaceExhausted
}

func (s *SessionService) hostRoom(ctx context.Context, roomID, hostToken string) (domain.Room, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !tokensEqual(room.HostToken, hostToken) {
		return domain.Room{}, domain.ErrForbidden
	}
	return room, nil
}

// Start moves a waiting room to active. Starting a room that already left the
// waiting state is a no-op returning the current room.
func (s *SessionService) Start(ctx context.Context, roomID, hostToken string) (domain.Room, error) {
	room, err := s.hostRoom(ctx, roomID, hostToken)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.StatusWaiting {
		return room, nil
	}

	var applied bool
	err = s.retry(ctx, func() (err error) {
		room, applied, err = s.store.StartRoom(ctx, roomID, s.now())
		return err
	})
	if err != nil {
		return domain.Room{}, err
	}
	if applied {
		s.log.Info("room started", "room_id", room.ID, "room_code", room.Code)
		s.publish(ctx, domain.Event{Type: domain.EventRoomUpdated, RoomID: room.ID, Room: &room})
	}
	return room, nil
}

// End completes an active room. Without force it refuses while any participant
// still has questions outstanding. Ending a completed room is a no-op; partial
// scores of a forced end are final.
func (s *SessionService) End(ctx context.Context, roomID, hostToken string, force bool) (domain.Room, error) {
	room, err := s.hostRoom(ctx, roomID, hostToken)
	if err != nil {
		return domain.Room{}, err
	}
	switch room.Status {
	case domain.StatusCompleted:
		return room, nil
	case domain.StatusWaiting:
		return domain.Room{}, domain.ErrRoomNotActive
	}

	if !force {
		participants, err := s.listParticipants(ctx, roomID)
		if err != nil {
			return domain.Room{}, err
		}
		if !IsComplete(room, participants) {
			return domain.Room{}, domain.ErrParticipantsUnfinished
		}
	}
	return s.complete(ctx, roomID, "ended")
}

func (s *SessionService) complete(ctx context.Context, roomID, reason string) (domain.Room, error) {
	var (
		room    domain.Room
		applied bool
	)
	err := s.retry(ctx, func() (err error) {
		room, applied, err = s.store.CompleteRoom(ctx, roomID, s.now())
		return err
	})
	if err != nil {
		return domain.Room{}, err
	}
	if applied {
		s.log.Info("room completed", "room_id", room.ID, "room_code", room.Code, "reason", reason)
		s.publish(ctx, domain.Event{Type: domain.EventRoomUpdated, RoomID: room.ID, Room: &room})
	}
	return room, nil
}

// autoComplete completes room once every participant has finished, for rooms
// that are not teacher paced.
func (s *SessionService) autoComplete(ctx context.Context, room domain.Room) (domain.Room, error) {
	if !room.AutoEnd || room.Status != domain.StatusActive {
		return room, nil
	}
	participants, err := s.listParticipants(ctx, room.ID)
	if err != nil {
		return room, err
	}
	if !IsComplete(room, participants) {
		return room, nil
	}
	return s.complete(ctx, room.ID, "all participants finished")
}

// ReconcileActiveRooms completes every auto-ending active room whose
// participants have all finished. It returns how many rooms it completed.
func (s *SessionService) ReconcileActiveRooms(ctx context.Context) (int, error) {
	var rooms []domain.Room
	err := s.retry(ctx, func() (err error) {
		rooms, err = s.store.ListRoomsByStatus(ctx, domain.StatusActive)
		return err
	})
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, room := range rooms {
		after, err := s.autoComplete(ctx, room)
		if err != nil {
			s.log.Warn("reconcile room failed", "room_id", room.ID, "error", err)
			continue
		}
		if after.Status == domain.StatusCompleted {
			completed++
		}
	}
	return completed, nil
}
