package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"EYE_MONITOR/go-backend/internal/models"
	"EYE_MONITOR/go-backend/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const sessionID = "6f1c2d3e-0000-4000-8000-000000000001"

func newRepo(t *testing.T) (*repository.SessionRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mockSQL, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	// The pgx name selects $N placeholders for named queries.
	db := sqlx.NewDb(mockDB, "pgx")
	return repository.New(db), mockSQL
}

func Test_SessionRepo_CreateSession(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		beforeTest func(sqlmock.Sqlmock)
		wantErr    bool
	}{
		{
			name: "fail create session",
			beforeTest: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).
					WithArgs(sessionID, 0, started, models.SessionActive).
					WillReturnError(errors.New("whoops, error"))
			},
			wantErr: true,
		},
		{
			name: "success create session",
			beforeTest: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).
					WithArgs(sessionID, 0, started, models.SessionActive).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRepo(t)
			tt.beforeTest(m)

			err := r.CreateSession(context.Background(), models.Session{
				ID:        sessionID,
				StartedAt: started,
				Status:    models.SessionActive,
			})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func Test_SessionRepo_EndSession(t *testing.T) {
	ended := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		beforeTest func(sqlmock.Sqlmock)
		wantErr    error
		anyErr     bool
	}{
		{
			name: "session ended",
			beforeTest: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(`UPDATE sessions`)).
					WithArgs(ended, 12, 1, models.SessionCompleted, sessionID).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "unknown session",
			beforeTest: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(`UPDATE sessions`)).
					WithArgs(ended, 12, 1, models.SessionCompleted, sessionID).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: repository.ErrSessionNotFound,
		},
		{
			name: "database error",
			beforeTest: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(`UPDATE sessions`)).
					WillReturnError(errors.New("connection reset"))
			},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRepo(t)
			tt.beforeTest(m)

			err := r.EndSession(context.Background(), sessionID, ended, 12, 1, models.SessionCompleted)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
			require.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func Test_SessionRepo_InsertFrameRecords(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC)
	records := []models.FrameRecord{
		{SessionID: sessionID, Seq: 1, Blink: 0, BlinkRate: 0, EAR: 0.31, FPS: 20, RecordedAt: at},
		{SessionID: sessionID, Seq: 2, Blink: 1, BlinkRate: 0.5, EAR: 0.12, FPS: 21, RecordedAt: at},
	}

	t.Run("empty batch is a no-op", func(t *testing.T) {
		r, m := newRepo(t)
		require.NoError(t, r.InsertFrameRecords(context.Background(), nil))
		require.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("batch in one statement", func(t *testing.T) {
		r, m := newRepo(t)
		m.ExpectExec(regexp.QuoteMeta(`INSERT INTO frame_records (session_id, seq, blink, blink_rate, ear, fps, recorded_at)`)).
			WithArgs(
				sessionID, int64(1), int64(0), 0.0, 0.31, 20.0, at,
				sessionID, int64(2), int64(1), 0.5, 0.12, 21.0, at,
			).
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, r.InsertFrameRecords(context.Background(), records))
		require.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("insert fails", func(t *testing.T) {
		r, m := newRepo(t)
		m.ExpectExec(regexp.QuoteMeta(`INSERT INTO frame_records`)).
			WillReturnError(errors.New("disk full"))

		err := r.InsertFrameRecords(context.Background(), records)
		require.Error(t, err)
		require.Contains(t, err.Error(), "2 frame records")
	})
}

func Test_SessionRepo_InsertEvent(t *testing.T) {
	r, m := newRepo(t)
	at := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)

	m.ExpectQuery(regexp.QuoteMeta(`INSERT INTO events`)).
		WithArgs(sessionID, models.EventDrowsinessAlarm, 4, 48, at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := r.InsertEvent(context.Background(), models.Event{
		SessionID:    sessionID,
		Kind:         models.EventDrowsinessAlarm,
		BlinkCount:   4,
		ClosedFrames: 48,
		CreatedAt:    at,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
	require.NoError(t, m.ExpectationsWereMet())
}

func Test_SessionRepo_ListSessions(t *testing.T) {
	r, m := newRepo(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ended := started.Add(time.Hour)

	rows := sqlmock.NewRows([]string{"id", "camera", "started_at", "ended_at", "total_blinks", "alarms", "status"}).
		AddRow(sessionID, 0, started, ended, 120, 2, models.SessionCompleted).
		AddRow("6f1c2d3e-0000-4000-8000-000000000002", 1, started, nil, 3, 0, models.SessionActive)

	m.ExpectQuery(regexp.QuoteMeta(`FROM sessions`)).
		WithArgs(50).
		WillReturnRows(rows)

	sessions, err := r.ListSessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, sessionID, sessions[0].ID)
	require.NotNil(t, sessions[0].EndedAt)
	require.Equal(t, 120, sessions[0].TotalBlinks)
	require.Nil(t, sessions[1].EndedAt)
	require.Equal(t, models.SessionActive, sessions[1].Status)
}

func Test_SessionRepo_GetSession(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		r, m := newRepo(t)
		started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		m.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
			WithArgs(sessionID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "camera", "started_at", "ended_at", "total_blinks", "alarms", "status"}).
				AddRow(sessionID, 0, started, nil, 0, 0, models.SessionActive))

		s, err := r.GetSession(context.Background(), sessionID)
		require.NoError(t, err)
		require.Equal(t, sessionID, s.ID)
	})

	t.Run("missing", func(t *testing.T) {
		r, m := newRepo(t)
		m.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
			WithArgs(sessionID).
			WillReturnError(sql.ErrNoRows)

		_, err := r.GetSession(context.Background(), sessionID)
		require.ErrorIs(t, err, repository.ErrSessionNotFound)
	})
}

func Test_SessionRepo_ListEvents(t *testing.T) {
	r, m := newRepo(t)
	at := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)

	m.ExpectQuery(regexp.QuoteMeta(`FROM events`)).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "kind", "blink_count", "closed_frames", "created_at"}).
			AddRow(1, sessionID, models.EventDrowsinessAlarm, 4, 48, at))

	events, err := r.ListEvents(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 48, events[0].ClosedFrames)
	require.Equal(t, at, events[0].CreatedAt)
}
