package app

import (
	"time"

	"classroom-quiz-service/internal/domain"
)

// DefaultPoints is awarded for a correct answer when no rule is configured.
const DefaultPoints = 10

// ScoringRule turns an evaluated answer into a score delta.
type ScoringRule interface {
	Points(q domain.Question, correct bool, elapsed, limit time.Duration) int
}

// FixedPoints awards the same value for every correct answer.
type FixedPoints struct {
	Value int
}

func (f FixedPoints) Points(_ domain.Question, correct bool, _, _ time.Duration) int {
	if !correct {
		return 0
	}
	if f.Value <= 0 {
		return DefaultPoints
	}
	return f.Value
}

// SpeedBonus adds up to Bonus points on top of Base, decaying linearly over the
// time limit. Rooms without a time limit only earn Base.
type SpeedBonus struct {
	Base  int
	Bonus int
}

func (s SpeedBonus) Points(q domain.Question, correct bool, elapsed, limit time.Duration) int {
	base := FixedPoints{Value: s.Base}.Points(q, correct, elapsed, limit)
	if base == 0 || limit <= 0 || s.Bonus <= 0 {
		return base
	}
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := float64(limit-elapsed) / float64(limit)
	if remaining <= 0 {
		return base
	}
	return base + int(float64(s.Bonus)*remaining)
}

// evaluate validates a submission against the question key. A submission at or
// beyond the time limit is an automatic miss, as is a negative elapsed time;
// so is an option that is not on the question, which is what clients send when
// the timer runs out.
func evaluate(rule ScoringRule, room domain.Room, q domain.Question, sub domain.AnswerSubmission) (bool, int) {
	limit := room.TimeLimitDuration()
	if sub.Elapsed < 0 || (limit > 0 && sub.Elapsed >= limit) {
		return false, 0
	}
	correct := sub.SelectedOption != "" && sub.SelectedOption == q.CorrectOption
	return correct, rule.Points(q, correct, sub.Elapsed, limit)
}
