// Package repository persists monitoring sessions, their frame logs and
// alarm events.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"EYE_MONITOR/go-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepo stores sessions in Postgres.
type SessionRepo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateSession inserts a new active session.
func (r *SessionRepo) CreateSession(ctx context.Context, s models.Session) error {
	query := `INSERT INTO sessions (id, camera, started_at, status)
			VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query, s.ID, s.Camera, s.StartedAt, s.Status); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// EndSession closes a session with its final counters.
func (r *SessionRepo) EndSession(ctx context.Context, id string, endedAt time.Time, totalBlinks, alarms int, status string) error {
	query := `UPDATE sessions
			SET ended_at = $1, total_blinks = $2, alarms = $3, status = $4
			WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query, endedAt, totalBlinks, alarms, status, id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// InsertFrameRecords writes a batch of frame log rows in one statement.
func (r *SessionRepo) InsertFrameRecords(ctx context.Context, records []models.FrameRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `INSERT INTO frame_records (session_id, seq, blink, blink_rate, ear, fps, recorded_at)
			VALUES (:session_id, :seq, :blink, :blink_rate, :ear, :fps, :recorded_at)`

	if _, err := r.db.NamedExecContext(ctx, query, records); err != nil {
		return fmt.Errorf("failed to insert %d frame records: %w", len(records), err)
	}
	return nil
}

// InsertEvent stores an alarm event and returns its id.
func (r *SessionRepo) InsertEvent(ctx context.Context, e models.Event) (int64, error) {
	query := `INSERT INTO events (session_id, kind, blink_count, closed_frames, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, e.SessionID, e.Kind, e.BlinkCount, e.ClosedFrames, e.CreatedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

// ListSessions returns the most recent sessions first.
func (r *SessionRepo) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, camera, started_at, ended_at, total_blinks, alarms, status
			FROM sessions
			ORDER BY started_at DESC
			LIMIT $1`

	sessions := []models.Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session by id.
func (r *SessionRepo) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT id, camera, started_at, ended_at, total_blinks, alarms, status
			FROM sessions
			WHERE id = $1`

	var s models.Session
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// ListEvents returns the events of a session in order.
func (r *SessionRepo) ListEvents(ctx context.Context, sessionID string) ([]models.Event, error) {
	query := `SELECT id, session_id, kind, blink_count, closed_frames, created_at
			FROM events
			WHERE session_id = $1
			ORDER BY created_at, id`

	events := []models.Event{}
	if err := r.db.SelectContext(ctx, &events, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
