package domain

import (
	"fmt"
	"strings"
)

// MaxNameLength bounds room and participant display names.
const MaxNameLength = 40

// RoomSpec is what a teacher submits to create a room. It is decoded from JSON
// by the API and from YAML by the CLI.
type RoomSpec struct {
	Name       string         `json:"name" yaml:"name" validate:"required,max=40"`
	Category   string         `json:"category" yaml:"category"`
	Difficulty string         `json:"difficulty" yaml:"difficulty"`
	TimeLimit  int            `json:"timeLimit" yaml:"time_limit" validate:"gte=0"`
	MaxPlayers int            `json:"maxPlayers" yaml:"max_players" validate:"gte=1"`
	AutoEnd    *bool          `json:"autoEnd,omitempty" yaml:"auto_end"`
	Questions  []QuestionSpec `json:"questions" yaml:"questions" validate:"min=1,dive"`
}

// QuestionSpec is one question in a RoomSpec; its position defines OrderNumber.
// The correct option must be one of Options.
type QuestionSpec struct {
	Prompt        string   `json:"prompt" yaml:"prompt" validate:"required"`
	Options       []string `json:"options" yaml:"options" validate:"min=2,unique"`
	CorrectOption string   `json:"correctOption" yaml:"correct_option"`
}

// Validate checks the spec and returns an error wrapping ErrInvalidRoom.
// Name and prompts are checked with surrounding whitespace removed.
func (s RoomSpec) Validate() error {
	trimmed := s
	trimmed.Name = strings.TrimSpace(s.Name)
	trimmed.Questions = make([]QuestionSpec, len(s.Questions))
	for i, q := range s.Questions {
		q.Prompt = strings.TrimSpace(q.Prompt)
		trimmed.Questions[i] = q
	}
	if err := validate.Struct(trimmed); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRoom, describeValidation(err))
	}
	return nil
}

// BuildQuestions materializes the question rows for roomID.
func (s RoomSpec) BuildQuestions(roomID string) []Question {
	out := make([]Question, 0, len(s.Questions))
	for i, q := range s.Questions {
		out = append(out, Question{
			RoomID:        roomID,
			OrderNumber:   i,
			Prompt:        strings.TrimSpace(q.Prompt),
			Options:       append([]string(nil), q.Options...),
			CorrectOption: q.CorrectOption,
		})
	}
	return out
}
