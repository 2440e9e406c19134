package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	data, err := fs.ReadFile(migrations, files[0])
	require.NoError(t, err)

	body := string(data)
	require.True(t, strings.Contains(body, "-- +goose Up"))
	require.True(t, strings.Contains(body, "-- +goose Down"))
	for _, table := range []string{"sessions", "frame_records", "events"} {
		require.Contains(t, body, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestPing(t *testing.T) {
	require.False(t, Ping(context.Background(), nil))

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectPing()
	require.True(t, Ping(context.Background(), sqlx.NewDb(mockDB, "sqlmock")))
	require.NoError(t, mock.ExpectationsWereMet())
}
