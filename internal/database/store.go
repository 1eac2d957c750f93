package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/scoutbot/internal/errors"
)

// Store defines the record store operations consumed by the invitation
// engine, the importer and the statistics export. Every failure is returned
// as a STORAGE application error.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Insert adds a user record. An existing telegram_id is left untouched
	// and reported as AlreadyExists.
	Insert(ctx context.Context, telegramID int64, username string, accessHash int64) (InsertResult, error)

	// Find returns the record for telegramID, or nil, nil if there is none.
	Find(ctx context.Context, telegramID int64) (*UserRecord, error)

	// ListCandidates returns records ordered by created_at ascending.
	ListCandidates(ctx context.Context, q CandidateQuery) ([]UserRecord, error)

	// MarkInvited sets invited_at to now.
	MarkInvited(ctx context.Context, telegramID int64) error

	// Delete removes a single record. Deleting a missing record is not an error.
	Delete(ctx context.Context, telegramID int64) error

	// DeleteAll removes every record and returns how many were deleted.
	DeleteAll(ctx context.Context) (int64, error)

	// Count returns the number of records and how many of them were invited.
	Count(ctx context.Context) (total int64, invited int64, err error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// StoreOption customizes a Store.
type StoreOption func(*sqlxStore)

// WithClock replaces the time source used for created_at and invited_at.
func WithClock(now func() time.Time) StoreOption {
	return func(s *sqlxStore) {
		s.now = now
	}
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger, opts ...StoreOption) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sqlxStore) timestamp() time.Time {
	return s.now().UTC()
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("database ping failed", err)
	}
	return nil
}

func (s *sqlxStore) Insert(ctx context.Context, telegramID int64, username string, accessHash int64) (InsertResult, error) {
	if telegramID == 0 {
		return 0, apperrors.NewStorageError("cannot insert user", fmt.Errorf("telegram_id cannot be zero"))
	}

	query := `
        INSERT INTO user (telegram_id, username, access_hash, created_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (telegram_id) DO NOTHING;
    `
	result, err := s.db.ExecContext(ctx, query, telegramID, username, accessHash, s.timestamp())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting user", "telegram_id", telegramID, "error", err)
		return 0, apperrors.NewStorageError(fmt.Sprintf("failed to insert user %d", telegramID), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStorageError("failed to read affected rows", err)
	}
	if affected == 0 {
		s.logger.DebugContext(ctx, "User already stored", "telegram_id", telegramID)
		return AlreadyExists, nil
	}

	s.logger.DebugContext(ctx, "User inserted", "telegram_id", telegramID)
	return Inserted, nil
}

func (s *sqlxStore) Find(ctx context.Context, telegramID int64) (*UserRecord, error) {
	var record UserRecord
	query := `SELECT telegram_id, username, access_hash, created_at, invited_at
	          FROM user WHERE telegram_id = ?`

	err := s.db.GetContext(ctx, &record, query, telegramID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error finding user", "telegram_id", telegramID, "error", err)
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to find user %d", telegramID), err)
	}

	return &record, nil
}

func (s *sqlxStore) ListCandidates(ctx context.Context, q CandidateQuery) ([]UserRecord, error) {
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = s.timestamp()
	}

	query := `SELECT telegram_id, username, access_hash, created_at, invited_at
	          FROM user
	          WHERE created_at <= ?`
	args := []any{asOf.UTC()}

	if !q.IncludeInvited {
		query += ` AND invited_at IS NULL`
	}
	query += ` ORDER BY created_at ASC, telegram_id ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	records := []UserRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error listing candidates", "as_of", asOf, "limit", q.Limit, "error", err)
		return nil, apperrors.NewStorageError("failed to list candidates", err)
	}

	s.logger.DebugContext(ctx, "Listed candidates",
		"as_of", asOf, "include_invited", q.IncludeInvited, "limit", q.Limit, "count", len(records))
	return records, nil
}

func (s *sqlxStore) MarkInvited(ctx context.Context, telegramID int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE user SET invited_at = ? WHERE telegram_id = ?`, s.timestamp(), telegramID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error marking user invited", "telegram_id", telegramID, "error", err)
		return apperrors.NewStorageError(fmt.Sprintf("failed to mark user %d invited", telegramID), err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when marking user invited",
			"telegram_id", telegramID, "affected", affected)
	}
	return nil
}

func (s *sqlxStore) Delete(ctx context.Context, telegramID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user WHERE telegram_id = ?`, telegramID); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting user", "telegram_id", telegramID, "error", err)
		return apperrors.NewStorageError(fmt.Sprintf("failed to delete user %d", telegramID), err)
	}
	s.logger.DebugContext(ctx, "User deleted", "telegram_id", telegramID)
	return nil
}

func (s *sqlxStore) DeleteAll(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting all users", "error", err)
		return 0, apperrors.NewStorageError("failed to delete all users", err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted all users", "count", count)
	return count, nil
}

func (s *sqlxStore) Count(ctx context.Context) (int64, int64, error) {
	var counts struct {
		Total   int64 `db:"total"`
		Invited int64 `db:"invited"`
	}
	query := `SELECT COUNT(*) AS total, COUNT(invited_at) AS invited FROM user`
	if err := s.db.GetContext(ctx, &counts, query); err != nil {
		s.logger.ErrorContext(ctx, "Error counting users", "error", err)
		return 0, 0, apperrors.NewStorageError("failed to count users", err)
	}
	return counts.Total, counts.Invited, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return apperrors.NewStorageError("failed to execute VACUUM", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
