package domain

import (
	"strings"
	"time"
)

// RoomStatus is the lifecycle state of a room. It only ever moves forward.
type RoomStatus string

const (
	StatusWaiting   RoomStatus = "waiting"
	StatusActive    RoomStatus = "active"
	StatusCompleted RoomStatus = "completed"
)

func (s RoomStatus) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Valid reports whether s is a known status.
func (s RoomStatus) Valid() bool { return s.rank() >= 0 }

// Terminal reports whether no further transitions are possible.
func (s RoomStatus) Terminal() bool { return s == StatusCompleted }

// Before reports whether s precedes other in the lifecycle.
func (s RoomStatus) Before(other RoomStatus) bool { return s.rank() < other.rank() }

// Room is one scheduled multiplayer quiz session.
type Room struct {
	ID            string     `json:"id"`
	Code          string     `json:"roomCode"`
	Name          string     `json:"name"`
	Category      string     `json:"category,omitempty"`
	Difficulty    string     `json:"difficulty,omitempty"`
	QuestionCount int        `json:"questionCount"`
	TimeLimit     int        `json:"timeLimit"` // seconds per question, 0 disables the limit
	MaxPlayers    int        `json:"maxPlayers"`
	AutoEnd       bool       `json:"autoEnd"`
	Status        RoomStatus `json:"status"`
	HostToken     string     `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
}

// TimeLimitDuration returns the per-question limit, or zero when unlimited.
func (r Room) TimeLimitDuration() time.Duration {
	return time.Duration(r.TimeLimit) * time.Second
}

// Question is a single prompt within a room. OrderNumber is zero based.
type Question struct {
	RoomID        string   `json:"roomId"`
	OrderNumber   int      `json:"orderNumber"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption"`
}

// QuestionView is the participant-facing form of a question; it never carries the answer key.
type QuestionView struct {
	OrderNumber int      `json:"orderNumber"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	TimeLimit   int      `json:"timeLimit"`
}

// View strips the answer key.
func (q Question) View(timeLimit int) QuestionView {
	return QuestionView{
		OrderNumber: q.OrderNumber,
		Prompt:      q.Prompt,
		Options:     append([]string(nil), q.Options...),
		TimeLimit:   timeLimit,
	}
}

// Participant is a student's joined session within a room.
type Participant struct {
	ID               string    `json:"id"`
	RoomID           string    `json:"roomId"`
	DisplayName      string    `json:"displayName"`
	Score            int       `json:"score"`
	AnswersSubmitted int       `json:"answersSubmitted"`
	Token            string    `json:"-"`
	JoinedAt         time.Time `json:"joinedAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NormalizeName is the form used for the per-room display name uniqueness check.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Submission is an accepted answer, keyed by (ParticipantID, QuestionOrder).
type Submission struct {
	ParticipantID  string        `json:"participantId"`
	QuestionOrder  int           `json:"questionOrder"`
	SelectedOption string        `json:"selectedOption"`
	Correct        bool          `json:"correct"`
	Elapsed        time.Duration `json:"elapsed"`
	ScoreDelta     int           `json:"scoreDelta"`
	SubmittedAt    time.Time     `json:"submittedAt"`
}

// AnswerSubmission models the scoring signal from clients.
type AnswerSubmission struct {
	QuestionOrder  int
	SelectedOption string
	Elapsed        time.Duration
}

// SubmitResult summarizes the outcome of a submission. A stale or duplicate
// submission is not an error: Accepted is false and Participant holds the
// current authoritative row.
type SubmitResult struct {
	Accepted    bool        `json:"accepted"`
	Correct     bool        `json:"correct"`
	ScoreDelta  int         `json:"scoreDelta"`
	Participant Participant `json:"participant"`
	RoomStatus  RoomStatus  `json:"roomStatus"`
}

// NextQuestion is the participant's position in the question set.
type NextQuestion struct {
	RoomID           string        `json:"roomId"`
	Finished         bool          `json:"finished"`
	AnswersSubmitted int           `json:"answersSubmitted"`
	QuestionCount    int           `json:"questionCount"`
	RoomStatus       RoomStatus    `json:"roomStatus"`
	Question         *QuestionView `json:"question,omitempty"`
}

// LeaderboardEntry is a ranked view of a participant.
type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	ParticipantID    string    `json:"participantId"`
	DisplayName      string    `json:"displayName"`
	Score            int       `json:"score"`
	AnswersSubmitted int       `json:"answersSubmitted"`
	Finished         bool      `json:"finished"`
	JoinedAt         time.Time `json:"joinedAt"`
}

// Leaderboard captures the ordered scoreboard for a room.
type Leaderboard struct {
	RoomID        string             `json:"roomId"`
	Status        RoomStatus         `json:"status"`
	QuestionCount int                `json:"questionCount"`
	Complete      bool               `json:"complete"`
	Entries       []LeaderboardEntry `json:"entries"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// RoomSummary is the read model returned for room lookups.
type RoomSummary struct {
	Room
	ParticipantCount int `json:"participantCount"`
}

// EventType names a row-level change published on the realtime bus.
type EventType string

const (
	EventParticipantJoined  EventType = "participant_joined"
	EventParticipantUpdated EventType = "participant_updated"
	EventRoomUpdated        EventType = "room_updated"
)

// Event is a change notification tagged with its room.
type Event struct {
	Type        EventType    `json:"type"`
	RoomID      string       `json:"roomId"`
	Participant *Participant `json:"participant,omitempty"`
	Room        *Room        `json:"room,omitempty"`
	At          time.Time    `json:"at"`
}
