package database

import (
	"database/sql"
	"time"
)

// UserRecord is a Telegram user imported from a source group. It is the
// candidate pool the invitation engine draws from.
type UserRecord struct {
	TelegramID int64  `db:"telegram_id"`
	Username   string `db:"username"`
	// AccessHash is the directory access hash seen at import time; zero when unknown.
	AccessHash int64     `db:"access_hash"`
	CreatedAt  time.Time `db:"created_at"`

	InvitedAt sql.NullTime `db:"invited_at"` // NULL until an invitation succeeds
}

// Invited reports whether an invitation to this user ever succeeded.
func (r UserRecord) Invited() bool {
	return r.InvitedAt.Valid
}

// InsertResult tells an import whether a record was new.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyExists
)

func (r InsertResult) String() string {
	if r == AlreadyExists {
		return "already_exists"
	}
	return "inserted"
}

// CandidateQuery filters records for invitation or export.
type CandidateQuery struct {
	// AsOf excludes records created after it.
	AsOf time.Time
	// IncludeInvited also returns records whose invited_at is set.
	IncludeInvited bool
	// Limit bounds the result; zero or negative means unbounded.
	Limit int
}
