package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. A single mutex makes
// every operation atomic, which is what the Postgres store gets from row
// locks and conditional updates.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]domain.Room
	questions    map[string][]domain.Question
	participants map[string]domain.Participant
	byRoom       map[string][]string
	submissions  map[string][]domain.Submission
}

func NewStore() *Store {
	return &Store{
		rooms:        make(map[string]domain.Room),
		questions:    make(map[string][]domain.Question),
		participants: make(map[string]domain.Participant),
		byRoom:       make(map[string][]string),
		submissions:  make(map[string][]domain.Submission),
	}
}

func (s *Store) CreateRoom(_ context.Context, room domain.Room, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeInUseLocked(room.Code) {
		return domain.ErrCodeTaken
	}
	s.rooms[room.ID] = room
	qs := append([]domain.Question(nil), questions...)
	sort.Slice(qs, func(i, j int) bool { return qs[i].OrderNumber < qs[j].OrderNumber })
	s.questions[room.ID] = qs
	return nil
}

func (s *Store) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

// GetRoomByCode prefers the live room holding code, then the most recently
// created finished one.
func (s *Store) GetRoomByCode(_ context.Context, code string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  domain.Room
		found bool
	)
	for _, room := range s.rooms {
		if room.Code != code {
			continue
		}
		if !room.Status.Terminal() {
			return room, nil
		}
		if !found || room.CreatedAt.After(best.CreatedAt) {
			best, found = room, true
		}
	}
	if !found {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return best, nil
}

func (s *Store) CodeInUse(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codeInUseLocked(code), nil
}

func (s *Store) codeInUseLocked(code string) bool {
	for _, room := range s.rooms {
		if room.Code == code && !room.Status.Terminal() {
			return true
		}
	}
	return false
}

func (s *Store) ListRoomsByStatus(_ context.Context, status domain.RoomStatus) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Room, 0)
	for _, room := range s.rooms {
		if room.Status == status {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) StartRoom(_ context.Context, roomID string, at time.Time) (domain.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, false, domain.ErrRoomNotFound
	}
	if room.Status != domain.StatusWaiting {
		return room, false, nil
	}
	if len(s.byRoom[roomID]) == 0 {
		return room, false, domain.ErrNoParticipants
	}
	room.Status = domain.StatusActive
	room.StartedAt = &at
	s.rooms[roomID] = room
	return room, true, nil
}

func (s *Store) CompleteRoom(_ context.Context, roomID string, at time.Time) (domain.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, false, domain.ErrRoomNotFound
	}
	if room.Status != domain.StatusActive {
		return room, false, nil
	}
	room.Status = domain.StatusCompleted
	room.EndedAt = &at
	s.rooms[roomID] = room
	return room, true, nil
}

func (s *Store) ListQuestions(_ context.Context, roomID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, domain.ErrRoomNotFound
	}
	return append([]domain.Question(nil), s.questions[roomID]...), nil
}

func (s *Store) InsertParticipant(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[p.RoomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.Status != domain.StatusWaiting {
		return domain.ErrRoomNotJoinable
	}
	ids := s.byRoom[p.RoomID]
	key := domain.NormalizeName(p.DisplayName)
	for _, id := range ids {
		if domain.NormalizeName(s.participants[id].DisplayName) == key {
			return domain.ErrNameTaken
		}
	}
	if len(ids) >= room.MaxPlayers {
		return domain.ErrRoomFull
	}
	s.participants[p.ID] = p
	s.byRoom[p.RoomID] = append(ids, p.ID)
	return nil
}

func (s *Store) GetParticipant(_ context.Context, participantID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[participantID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

func (s *Store) ListParticipants(_ context.Context, roomID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byRoom[roomID]
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.participants[id])
	}
	return out, nil
}

func (s *Store) ApplySubmission(_ context.Context, sub domain.Submission) (domain.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[sub.ParticipantID]
	if !ok {
		return domain.Participant{}, false, domain.ErrParticipantNotFound
	}
	room := s.rooms[p.RoomID]
	if room.Status != domain.StatusActive ||
		p.AnswersSubmitted != sub.QuestionOrder ||
		p.AnswersSubmitted >= room.QuestionCount {
		return p, false, nil
	}
	p.Score += sub.ScoreDelta
	p.AnswersSubmitted++
	p.UpdatedAt = sub.SubmittedAt
	s.participants[p.ID] = p
	s.submissions[p.ID] = append(s.submissions[p.ID], sub)
	return p, true, nil
}

func (s *Store) ListSubmissions(_ context.Context, participantID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.participants[participantID]; !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return append([]domain.Submission(nil), s.submissions[participantID]...), nil
}
