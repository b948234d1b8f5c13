package app

import (
	"context"
	"fmt"

	"classroom-quiz-service/internal/domain"
)

// Submit scores one answer for a participant. Only the participant's own token
// may submit. A question order other than the participant's next unanswered
// question is a stale or duplicate submission: it is not scored, not an error,
// and the result carries the current participant row.
func (s *SessionService) Submit(ctx context.Context, participantID, token string, sub domain.AnswerSubmission) (domain.SubmitResult, error) {
	participant, err := s.getParticipant(ctx, participantID, token)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	room, err := s.getRoom(ctx, participant.RoomID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if room.Status != domain.StatusActive {
		return domain.SubmitResult{}, domain.ErrRoomNotActive
	}
	if sub.QuestionOrder != participant.AnswersSubmitted || sub.QuestionOrder >= room.QuestionCount {
		return stale(participant, room), nil
	}

	question, err := s.question(ctx, room.ID, sub.QuestionOrder)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	correct, delta := evaluate(s.scoring, room, question, sub)

	record := domain.Submission{
		ParticipantID:  participant.ID,
		QuestionOrder:  sub.QuestionOrder,
		SelectedOption: sub.SelectedOption,
		Correct:        correct,
		Elapsed:        sub.Elapsed,
		ScoreDelta:     delta,
		SubmittedAt:    s.now(),
	}
	var (
		updated domain.Participant
		applied bool
	)
	err = s.retry(ctx, func() (err error) {
		updated, applied, err = s.store.ApplySubmission(ctx, record)
		return err
	})
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("apply submission: %w", err)
	}
	if !applied {
		// Lost the compare-and-set: a retry already advanced the row, or the room ended.
		current, err := s.getRoom(ctx, room.ID)
		if err != nil {
			return domain.SubmitResult{}, err
		}
		if current.Status != domain.StatusActive {
			return domain.SubmitResult{}, domain.ErrRoomNotActive
		}
		return stale(updated, current), nil
	}

	s.publish(ctx, domain.Event{Type: domain.EventParticipantUpdated, RoomID: room.ID, Participant: &updated})

	after, err := s.autoComplete(ctx, room)
	if err != nil {
		// The answer is already recorded; the sweeper will retry completion.
		s.log.Warn("auto complete failed", "room_id", room.ID, "error", err)
		after = room
	}

	return domain.SubmitResult{
		Accepted:    true,
		Correct:     correct,
		ScoreDelta:  delta,
		Participant: updated,
		RoomStatus:  after.Status,
	}, nil
}

func stale(p domain.Participant, room domain.Room) domain.SubmitResult {
	return domain.SubmitResult{Accepted: false, Participant: p, RoomStatus: room.Status}
}

func (s *SessionService) question(ctx context.Context, roomID string, order int) (domain.Question, error) {
	var questions []domain.Question
	err := s.retry(ctx, func() (err error) {
		questions, err = s.questions.Questions(ctx, roomID)
		return err
	})
	if err != nil {
		return domain.Question{}, err
	}
	for _, q := range questions {
		if q.OrderNumber == order {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// NextQuestion derives the participant's current question from the stored
// progress counter. Questions are only revealed once the room is active.
func (s *SessionService) NextQuestion(ctx context.Context, participantID, token string) (domain.NextQuestion, error) {
	participant, err := s.getParticipant(ctx, participantID, token)
	if err != nil {
		return domain.NextQuestion{}, err
	}
	room, err := s.getRoom(ctx, participant.RoomID)
	if err != nil {
		return domain.NextQuestion{}, err
	}
	next := domain.NextQuestion{
		RoomID:           room.ID,
		Finished:         participant.AnswersSubmitted >= room.QuestionCount,
		AnswersSubmitted: participant.AnswersSubmitted,
		QuestionCount:    room.QuestionCount,
		RoomStatus:       room.Status,
	}
	if next.Finished || room.Status != domain.StatusActive {
		return next, nil
	}
	q, err := s.question(ctx, room.ID, participant.AnswersSubmitted)
	if err != nil {
		return domain.NextQuestion{}, err
	}
	view := q.View(room.TimeLimit)
	next.Question = &view
	return next, nil
}

// Submissions lists a participant's accepted answers in question order.
func (s *SessionService) Submissions(ctx context.Context, participantID, token string) ([]domain.Submission, error) {
	if _, err := s.getParticipant(ctx, participantID, token); err != nil {
		return nil, err
	}
	var subs []domain.Submission
	err := s.retry(ctx, func() (err error) {
		subs, err = s.store.ListSubmissions(ctx, participantID)
		return err
	})
	return subs, err
}
