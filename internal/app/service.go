package app

import (
	"context"
	"log/slog"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/cenkalti/backoff/v4"
)

// Store abstracts the durable session record (in-memory, Postgres).
//
// Implementations enforce the invariants that must hold across processes:
// InsertParticipant is atomic against capacity, status and the per-room name
// uniqueness constraint; StartRoom and CompleteRoom are conditional updates;
// ApplySubmission is a compare-and-set on answers_submitted.
type Store interface {
	CreateRoom(ctx context.Context, room domain.Room, questions []domain.Question) error
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (domain.Room, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	ListRoomsByStatus(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error)

	// StartRoom moves a waiting room with at least one participant to active.
	// applied is false when the room was not waiting.
	StartRoom(ctx context.Context, roomID string, at time.Time) (room domain.Room, applied bool, err error)
	// CompleteRoom moves an active room to completed. applied is false when the
	// room was not active.
	CompleteRoom(ctx context.Context, roomID string, at time.Time) (room domain.Room, applied bool, err error)

	ListQuestions(ctx context.Context, roomID string) ([]domain.Question, error)

	InsertParticipant(ctx context.Context, p domain.Participant) error
	GetParticipant(ctx context.Context, participantID string) (domain.Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error)

	// ApplySubmission adds sub.ScoreDelta and increments answers_submitted iff the
	// participant's answers_submitted equals sub.QuestionOrder, it is below the
	// room's question count and the room is active. p is the current row
	// whether or not the update applied.
	ApplySubmission(ctx context.Context, sub domain.Submission) (p domain.Participant, applied bool, err error)
	ListSubmissions(ctx context.Context, participantID string) ([]domain.Submission, error)
}

// Bus fans change events out to observers of a room. Delivery is at-least-once
// at best; consumers re-read the store rather than trusting event payloads.
type Bus interface {
	Publish(ctx context.Context, event domain.Event) error
	// Subscribe returns a channel of events for roomID. The caller must invoke
	// the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, roomID string) (<-chan domain.Event, func(), error)
}

// QuestionSource serves a room's ordered questions, typically through a cache.
type QuestionSource interface {
	Questions(ctx context.Context, roomID string) ([]domain.Question, error)
}

// Options tunes a SessionService. Zero values fall back to defaults.
type Options struct {
	CodeLength      int
	CodeAttempts    int
	Scoring         ScoringRule
	AutoEnd         bool
	PollInterval    time.Duration
	RetryMaxElapsed time.Duration
	Logger          *slog.Logger
	Clock           func() time.Time
}

const (
	defaultPollInterval    = 5 * time.Second
	defaultRetryMaxElapsed = 2 * time.Second
)

// SessionService contains the live quiz session use cases.
type SessionService struct {
	store     Store
	bus       Bus
	questions QuestionSource
	codes     *CodeGenerator
	scoring   ScoringRule
	autoEnd   bool
	poll      time.Duration
	retryMax  time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewSessionService(store Store, bus Bus, questions QuestionSource, opts Options) *SessionService {
	s := &SessionService{
		store:     store,
		bus:       bus,
		questions: questions,
		codes:     NewCodeGenerator(opts.CodeLength, opts.CodeAttempts),
		scoring:   opts.Scoring,
		autoEnd:   opts.AutoEnd,
		poll:      opts.PollInterval,
		retryMax:  opts.RetryMaxElapsed,
		log:       opts.Logger,
		now:       opts.Clock,
	}
	if s.questions == nil {
		s.questions = storeQuestions{store}
	}
	if s.scoring == nil {
		s.scoring = FixedPoints{Value: DefaultPoints}
	}
	if s.poll <= 0 {
		s.poll = defaultPollInterval
	}
	if s.retryMax == 0 {
		s.retryMax = defaultRetryMaxElapsed
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type storeQuestions struct{ store Store }

func (q storeQuestions) Questions(ctx context.Context, roomID string) ([]domain.Question, error) {
	return q.store.ListQuestions(ctx, roomID)
}

// retry runs op with exponential backoff until it succeeds, fails with a
// domain error, or the retry budget is spent. A negative budget disables retries.
func (s *SessionService) retry(ctx context.Context, op func() error) error {
	if s.retryMax < 0 {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxElapsedTime = s.retryMax
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && (domain.IsPermanent(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		s.log.Warn("store call failed, retrying", "error", err, "wait", wait)
	})
}

// publish never fails the caller; observers fall back to polling when events are lost.
func (s *SessionService) publish(ctx context.Context, event domain.Event) {
	if event.At.IsZero() {
		event.At = s.now()
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Warn("broadcast failed", "room_id", event.RoomID, "type", event.Type, "error", err)
	}
}

func (s *SessionService) getRoom(ctx context.Context, roomID string) (domain.Room, error) {
	var room domain.Room
	err := s.retry(ctx, func() (err error) {
		room, err = s.store.GetRoom(ctx, roomID)
		return err
	})
	return room, err
}

func (s *SessionService) listParticipants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := s.retry(ctx, func() (err error) {
		participants, err = s.store.ListParticipants(ctx, roomID)
		return err
	})
	return participants, err
}

func (s *SessionService) getParticipant(ctx context.Context, participantID, token string) (domain.Participant, error) {
	var p domain.Participant
	err := s.retry(ctx, func() (err error) {
		p, err = s.store.GetParticipant(ctx, participantID)
		return err
	})
	if err != nil {
		return domain.Participant{}, err
	}
	if !tokensEqual(p.Token, token) {
		return domain.Participant{}, domain.ErrForbidden
	}
	return p, nil
}

// GetRoom returns the room with its current participant count.
func (s *SessionService) GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	return s.summarize(ctx, room)
}

// GetRoomByCode resolves a room code to its live room (or the latest finished one).
func (s *SessionService) GetRoomByCode(ctx context.Context, code string) (domain.RoomSummary, error) {
	code = normalizeCode(code)
	if !ValidCode(code) {
		return domain.RoomSummary{}, domain.ErrRoomNotFound
	}
	var room domain.Room
	err := s.retry(ctx, func() (err error) {
		room, err = s.store.GetRoomByCode(ctx, code)
		return err
	})
	if err != nil {
		return domain.RoomSummary{}, err
	}
	return s.summarize(ctx, room)
}

func (s *SessionService) summarize(ctx context.Context, room domain.Room) (domain.RoomSummary, error) {
	participants, err := s.listParticipants(ctx, room.ID)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	return domain.RoomSummary{Room: room, ParticipantCount: len(participants)}, nil
}

// Leaderboard projects the latest participant snapshot for a room.
func (s *SessionService) Leaderboard(ctx context.Context, roomID string) (domain.Leaderboard, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	participants, err := s.listParticipants(ctx, roomID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return ProjectLeaderboard(room, participants, s.now()), nil
}
