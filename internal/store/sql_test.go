package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secure.notes/internal/logger"
	"secure.notes/internal/models"
)

func newTestSQLStore(t *testing.T, driver string) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSQLStore(db, driver, logger.Nop()), mock
}

func TestSQLStore_Save(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverPostgres)
	note := newNote("tok", time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notes (token,data,created_at,expires_at) VALUES ($1,$2,$3,$4)")).
		WithArgs("tok", note.Data, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), note))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Save_SQLitePlaceholders(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverSQLite)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notes (token,data,created_at,expires_at) VALUES (?,?,?,?)")).
		WithArgs("tok", "envelope-tok", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), newNote("tok", 0)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Save_Conflict(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		err    error
	}{
		{name: "postgres unique violation", driver: DriverPostgres, err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}},
		{name: "sqlite primary key", driver: DriverSQLite, err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newTestSQLStore(t, tt.driver)
			mock.ExpectExec("INSERT INTO notes").WillReturnError(tt.err)

			err := s.Save(context.Background(), newNote("dup", time.Hour))
			assert.ErrorIs(t, err, ErrConflict)
		})
	}
}

func TestSQLStore_Save_OtherError(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverPostgres)
	mock.ExpectExec("INSERT INTO notes").WillReturnError(errors.New("disk full"))

	err := s.Save(context.Background(), newNote("tok", time.Hour))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestSQLStore_Take(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverPostgres)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM notes WHERE token = $1 RETURNING data, created_at, expires_at")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"data", "created_at", "expires_at"}).
			AddRow("envelope", now, now.Add(time.Hour)))

	note, err := s.Take(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", note.Token)
	assert.Equal(t, "envelope", note.Data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Take_NotFound(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverPostgres)

	mock.ExpectQuery("DELETE FROM notes").
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Take(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_Take_Expired(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverPostgres)
	past := time.Now().Add(-time.Hour)

	mock.ExpectQuery("DELETE FROM notes").
		WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"data", "created_at", "expires_at"}).
			AddRow("envelope", past.Add(-time.Hour), past))

	_, err := s.Take(context.Background(), "old")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSQLStore_Take_NoRetention(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverSQLite)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM notes WHERE token = ? RETURNING")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"data", "created_at", "expires_at"}).
			AddRow("envelope", time.Now(), nil))

	note, err := s.Take(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, note.ExpiresAt.IsZero())
}

func TestSQLStore_Exists(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverPostgres)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notes WHERE")).
		WithArgs("tok", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notes WHERE")).
		WithArgs("nope", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	ok, err := s.Exists(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStore_Purge(t *testing.T) {
	s, mock := newTestSQLStore(t, DriverPostgres)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notes WHERE expires_at <= $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestOpenSQLStore_UnsupportedDriver(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), "mysql", "dsn", 0, logger.Nop())
	assert.Error(t, err)
}

func TestSQLStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLStore(ctx, DriverSQLite, ":memory:", 0, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	kept := newNote("kept", time.Hour)
	forever := newNote("forever", 0)
	stale := newNote("stale", -time.Hour)
	for _, n := range []*models.Note{kept, forever, stale} {
		require.NoError(t, s.Save(ctx, n))
	}
	assert.ErrorIs(t, s.Save(ctx, newNote("kept", time.Hour)), ErrConflict)

	ok, err := s.Exists(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	purged, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	got, err := s.Take(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, kept.Data, got.Data)
	assert.WithinDuration(t, kept.CreatedAt, got.CreatedAt, time.Second)
	assert.WithinDuration(t, kept.ExpiresAt, got.ExpiresAt, time.Second)

	_, err = s.Take(ctx, "kept")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err = s.Exists(ctx, "kept")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.Take(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.IsZero())

	_, err = s.Take(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}
