package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	uniqueViolation = "23505"

	liveCodeIndex = "rooms_live_code_idx"
	nameIndex     = "participants_room_name_idx"
)

const roomColumns = `id, room_code, name, category, difficulty, question_count, time_limit,
	max_players, auto_end, status, host_token, created_at, started_at, ended_at`

const participantColumns = `id, room_id, display_name, score, answers_submitted, token, joined_at, updated_at`

// Store persists rooms, questions, participants and submissions in Postgres.
// Cross-process invariants are enforced with row locks, conditional updates
// and unique indexes rather than application-side checks.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateRoom(ctx context.Context, room domain.Room, questions []domain.Question) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		room.ID, room.Code, room.Name, room.Category, room.Difficulty, room.QuestionCount, room.TimeLimit,
		room.MaxPlayers, room.AutoEnd, string(room.Status), room.HostToken, room.CreatedAt, room.StartedAt, room.EndedAt)
	if err != nil {
		if isUniqueViolation(err, liveCodeIndex) {
			return domain.ErrCodeTaken
		}
		return fmt.Errorf("insert room: %w", err)
	}

	for _, q := range questions {
		_, err := tx.Exec(ctx, `INSERT INTO questions (room_id, order_number, prompt, options, correct_option)
			VALUES ($1, $2, $3, $4, $5)`, room.ID, q.OrderNumber, q.Prompt, q.Options, q.CorrectOption)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", q.OrderNumber, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, roomID)
	room, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, err
}

// GetRoomByCode prefers the live room holding code, then the most recently
// created finished one.
func (s *Store) GetRoomByCode(ctx context.Context, code string) (domain.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms
		WHERE room_code = $1
		ORDER BY (status <> 'completed') DESC, created_at DESC
		LIMIT 1`, code)
	room, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, err
}

func (s *Store) CodeInUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE room_code = $1 AND status <> 'completed')`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return exists, nil
}

func (s *Store) ListRoomsByStatus(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (s *Store) StartRoom(ctx context.Context, roomID string, at time.Time) (domain.Room, bool, error) {
	row := s.pool.QueryRow(ctx, `UPDATE rooms SET status = 'active', started_at = $2
		WHERE id = $1 AND status = 'waiting'
		  AND EXISTS (SELECT 1 FROM participants WHERE room_id = $1)
		RETURNING `+roomColumns, roomID, at)
	room, err := scanRoom(row)
	if err == nil {
		return room, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, false, fmt.Errorf("start room: %w", err)
	}

	room, err = s.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, false, err
	}
	if room.Status == domain.StatusWaiting {
		return room, false, domain.ErrNoParticipants
	}
	return room, false, nil
}

func (s *Store) CompleteRoom(ctx context.Context, roomID string, at time.Time) (domain.Room, bool, error) {
	row := s.pool.QueryRow(ctx, `UPDATE rooms SET status = 'completed', ended_at = $2
		WHERE id = $1 AND status = 'active'
		RETURNING `+roomColumns, roomID, at)
	room, err := scanRoom(row)
	if err == nil {
		return room, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, false, fmt.Errorf("complete room: %w", err)
	}

	room, err = s.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, false, err
	}
	return room, false, nil
}

func (s *Store) ListQuestions(ctx context.Context, roomID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT room_id, order_number, prompt, options, correct_option
		FROM questions WHERE room_id = $1 ORDER BY order_number`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Question, 0)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.RoomID, &q.OrderNumber, &q.Prompt, &q.Options, &q.CorrectOption); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		if _, err := s.GetRoom(ctx, roomID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InsertParticipant locks the room row so that status, capacity and name
// checks are serialized with concurrent joins and with StartRoom.
func (s *Store) InsertParticipant(ctx context.Context, p domain.Participant) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status     string
		maxPlayers int
	)
	err = tx.QueryRow(ctx, `SELECT status, max_players FROM rooms WHERE id = $1 FOR UPDATE`, p.RoomID).
		Scan(&status, &maxPlayers)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("lock room: %w", err)
	}
	if domain.RoomStatus(status) != domain.StatusWaiting {
		return domain.ErrRoomNotJoinable
	}

	var (
		count     int
		nameTaken bool
	)
	err = tx.QueryRow(ctx, `SELECT count(*),
			coalesce(bool_or(lower(btrim(display_name)) = $2), false)
		FROM participants WHERE room_id = $1`, p.RoomID, domain.NormalizeName(p.DisplayName)).
		Scan(&count, &nameTaken)
	if err != nil {
		return fmt.Errorf("count participants: %w", err)
	}
	if nameTaken {
		return domain.ErrNameTaken
	}
	if count >= maxPlayers {
		return domain.ErrRoomFull
	}

	_, err = tx.Exec(ctx, `INSERT INTO participants (`+participantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.RoomID, p.DisplayName, p.Score, p.AnswersSubmitted, p.Token, p.JoinedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, nameIndex) {
			return domain.ErrNameTaken
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) GetParticipant(ctx context.Context, participantID string) (domain.Participant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, participantID)
	p, err := scanParticipant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, err
}

func (s *Store) ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+participantColumns+` FROM participants
		WHERE room_id = $1 ORDER BY joined_at, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplySubmission holds a share lock on the room so that completion cannot
// interleave with the score update, then applies a compare-and-set on
// answers_submitted and records the submission in the same transaction.
func (s *Store) ApplySubmission(ctx context.Context, sub domain.Submission) (domain.Participant, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Participant{}, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status        string
		questionCount int
	)
	err = tx.QueryRow(ctx, `SELECT r.status, r.question_count
		FROM participants p JOIN rooms r ON r.id = p.room_id
		WHERE p.id = $1
		FOR SHARE OF r`, sub.ParticipantID).Scan(&status, &questionCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, false, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, false, fmt.Errorf("lock room: %w", err)
	}

	if domain.RoomStatus(status) == domain.StatusActive && sub.QuestionOrder < questionCount {
		row := tx.QueryRow(ctx, `UPDATE participants
			SET score = score + $3, answers_submitted = answers_submitted + 1, updated_at = $4
			WHERE id = $1 AND answers_submitted = $2
			RETURNING `+participantColumns,
			sub.ParticipantID, sub.QuestionOrder, sub.ScoreDelta, sub.SubmittedAt)
		p, err := scanParticipant(row)
		switch {
		case err == nil:
			_, err = tx.Exec(ctx, `INSERT INTO submissions
				(participant_id, question_order, selected_option, correct, elapsed_ms, score_delta, submitted_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				sub.ParticipantID, sub.QuestionOrder, sub.SelectedOption, sub.Correct,
				sub.Elapsed.Milliseconds(), sub.ScoreDelta, sub.SubmittedAt)
			if err != nil {
				return domain.Participant{}, false, fmt.Errorf("insert submission: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return domain.Participant{}, false, err
			}
			return p, true, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return domain.Participant{}, false, fmt.Errorf("apply submission: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, sub.ParticipantID)
	p, err := scanParticipant(row)
	if err != nil {
		return domain.Participant{}, false, err
	}
	return p, false, nil
}

func (s *Store) ListSubmissions(ctx context.Context, participantID string) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx, `SELECT participant_id, question_order, selected_option, correct,
			elapsed_ms, score_delta, submitted_at
		FROM submissions WHERE participant_id = $1 ORDER BY question_order`, participantID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0)
	for rows.Next() {
		var (
			sub       domain.Submission
			elapsedMs int64
		)
		if err := rows.Scan(&sub.ParticipantID, &sub.QuestionOrder, &sub.SelectedOption, &sub.Correct,
			&elapsedMs, &sub.ScoreDelta, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		if _, err := s.GetParticipant(ctx, participantID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanRoom(row pgx.Row) (domain.Room, error) {
	var (
		room   domain.Room
		status string
	)
	err := row.Scan(&room.ID, &room.Code, &room.Name, &room.Category, &room.Difficulty, &room.QuestionCount,
		&room.TimeLimit, &room.MaxPlayers, &room.AutoEnd, &status, &room.HostToken, &room.CreatedAt,
		&room.StartedAt, &room.EndedAt)
	if err != nil {
		return domain.Room{}, err
	}
	room.Status = domain.RoomStatus(status)
	return room, nil
}

func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(&p.ID, &p.RoomID, &p.DisplayName, &p.Score, &p.AnswersSubmitted, &p.Token,
		&p.JoinedAt, &p.UpdatedAt)
	return p, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}
