package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"

	"secure.notes/internal/logger"
	"secure.notes/internal/models"
	"secure.notes/migrations"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"

	notesTable = "notes"
)

var _ Store = (*SQLStore)(nil)

// SQLStore keeps notes in PostgreSQL or SQLite. Take is a single
// DELETE ... RETURNING statement, so the database arbitrates concurrent
// readers.
type SQLStore struct {
	db            *sql.DB
	builder       sq.StatementBuilderType
	logger        *logger.Logger
	cleanupCancel context.CancelFunc
	now           func() time.Time
}

// OpenSQLStore connects with driver and dsn, applies migrations and starts
// the purge loop.
func OpenSQLStore(ctx context.Context, driver, dsn string, cleanupInterval time.Duration, log *logger.Logger) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(4)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting database (ping): %w", err)
	}

	if err = migrations.Migrate(db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("driver", driver).Msg("connected to database successfully")

	s := NewSQLStore(db, driver, log)
	if cleanupInterval > 0 {
		loopCtx, cancel := context.WithCancel(context.Background())
		s.cleanupCancel = cancel
		go s.cleanupLoop(loopCtx, cleanupInterval)
	}
	return s, nil
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, driver string, log *logger.Logger) *SQLStore {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		placeholder = sq.Dollar
	}

	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger:  log,
		now:     time.Now,
	}
}

func (s *SQLStore) Save(ctx context.Context, note *models.Note) error {
	var expiresAt any
	if !note.ExpiresAt.IsZero() {
		expiresAt = note.ExpiresAt.UTC()
	}

	query, args, err := s.builder.
		Insert(notesTable).
		Columns("token", "data", "created_at", "expires_at").
		Values(note.Token, note.Data, note.CreatedAt.UTC(), expiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		s.logger.Err(err).Msg("error saving note")
		return fmt.Errorf("save note: %w", err)
	}
	return nil
}

func (s *SQLStore) Take(ctx context.Context, token string) (*models.Note, error) {
	query, args, err := s.builder.
		Delete(notesTable).
		Where(sq.Eq{"token": token}).
		Suffix("RETURNING data, created_at, expires_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}

	note := &models.Note{Token: token}
	var expiresAt sql.NullTime
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&note.Data, &note.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Err(err).Msg("error taking note")
		return nil, fmt.Errorf("take note: %w", err)
	}
	if expiresAt.Valid {
		note.ExpiresAt = expiresAt.Time
	}

	if note.Expired(s.now()) {
		return nil, ErrExpired
	}
	return note, nil
}

func (s *SQLStore) Exists(ctx context.Context, token string) (bool, error) {
	query, args, err := s.builder.
		Select("COUNT(*)").
		From(notesTable).
		Where(sq.And{
			sq.Eq{"token": token},
			sq.Or{sq.Eq{"expires_at": nil}, sq.Gt{"expires_at": s.now().UTC()}},
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select: %w", err)
	}

	var n int
	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("note exists: %w", err)
	}
	return n > 0, nil
}

// Purge removes notes past their retention and reports how many went.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	query, args, err := s.builder.
		Delete(notesTable).
		Where(sq.LtOrEq{"expires_at": s.now().UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge notes: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error {
	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	return s.db.Close()
}

func (s *SQLStore) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Purge(ctx)
			if err != nil {
				s.logger.Err(err).Msg("error purging expired notes")
				continue
			}
			if n > 0 {
				s.logger.Debug().Int64("purged", n).Msg("expired notes purged")
			}
		}
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
