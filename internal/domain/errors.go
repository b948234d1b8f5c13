package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room id or code does not resolve.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNotJoinable is returned when joining a room that already started or ended.
	ErrRoomNotJoinable = errors.New("room already started")
	// ErrRoomFull is returned when the room reached max players.
	ErrRoomFull = errors.New("room is full")
	// ErrNameTaken is returned when the display name is already used in the room.
	ErrNameTaken = errors.New("display name already taken in this room")
	// ErrInvalidName rejects empty or oversized display names.
	ErrInvalidName = errors.New("invalid display name")
	// ErrInvalidRoom rejects malformed room definitions.
	ErrInvalidRoom = errors.New("invalid room definition")
	// ErrParticipantNotFound is returned when a participant id is unknown.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrQuestionNotFound indicates a question order outside the room's question set.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrRoomNotActive rejects submissions outside the active state.
	ErrRoomNotActive = errors.New("room is not active")
	// ErrNoParticipants guards starting an empty room.
	ErrNoParticipants = errors.New("room has no participants")
	// ErrParticipantsUnfinished guards a non-forced end while answers are outstanding.
	ErrParticipantsUnfinished = errors.New("participants have not finished")
	// ErrForbidden is returned when a host or participant token does not match.
	ErrForbidden = errors.New("not allowed")
	// ErrCodeTaken is returned by stores when a room code collides with a live room.
	ErrCodeTaken = errors.New("room code in use")
	// ErrCodeSpaceExhausted is returned after too many room code collisions.
	ErrCodeSpaceExhausted = errors.New("could not allocate a room code")
)

var permanent = []error{
	ErrRoomNotFound, ErrRoomNotJoinable, ErrRoomFull, ErrNameTaken, ErrInvalidName,
	ErrInvalidRoom, ErrParticipantNotFound, ErrQuestionNotFound, ErrRoomNotActive,
	ErrNoParticipants, ErrParticipantsUnfinished, ErrForbidden, ErrCodeTaken, ErrCodeSpaceExhausted,
}

// IsPermanent reports whether err belongs to the domain taxonomy and must not be retried.
func IsPermanent(err error) bool {
	for _, target := range permanent {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
