// Package repository declares the storage contracts the services depend on.
//
// Services only ever see these interfaces; the concrete implementation
// lives in repository/sqlstore and can run on SQLite or Postgres.
package repository

import (
	"context"
	"time"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/model"
)

// ListOptions is offset pagination. Services clamp the values before they
// reach a repository.
type ListOptions struct {
	Limit  int
	Offset int
}

// ErrStaleUser is returned by SaveEngagement when the stored version no
// longer matches the one the caller read. It matches apperror.ErrConflict.
var ErrStaleUser = apperror.Conflict("user", "modified by a concurrent session")

type UserRepository interface {
	// Create assigns ID, timestamps and version 1.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// SaveEngagement writes the engagement fields and the mail preferences
	// (theme, subscribe) if the row is still at user.Version, then bumps
	// user.Version.
	// It returns ErrStaleUser otherwise.
	SaveEngagement(ctx context.Context, user *model.User) error

	UpdatePassword(ctx context.Context, id, password string) error

	// AddCoins credits delta and returns the new balance. It bumps the
	// version so a concurrent engagement save cannot overwrite the credit.
	AddCoins(ctx context.Context, id string, delta int) (int, error)
}

type JournalRepository interface {
	Create(ctx context.Context, journal *model.Journal) error
	GetByID(ctx context.Context, id string) (*model.Journal, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Journal, error)

	// ToggleLike likes the journal for userID, or unlikes it when the like
	// already exists. It returns the new state and like count.
	ToggleLike(ctx context.Context, journalID, userID string) (liked bool, count int, err error)

	// RecentJournals returns up to limit entries, newest first.
	RecentJournals(ctx context.Context, userID string, limit int) ([]model.Journal, error)
	// JournalsSince returns entries dated at or after since, oldest first.
	JournalsSince(ctx context.Context, userID string, since time.Time) ([]model.Journal, error)
	CountJournals(ctx context.Context, userID string) (int, error)
}

type MailRepository interface {
	// Insert stores mails and their recipient rows. Mails whose DedupKey
	// already exists are skipped silently. The returned slice holds the
	// mails that were actually written, with IDs assigned.
	Insert(ctx context.Context, mails []model.Mail) ([]model.Mail, error)

	// ListInbox returns the unexpired mails addressed to userID, newest first.
	ListInbox(ctx context.Context, userID string, now time.Time) ([]model.InboxItem, error)
	MarkRead(ctx context.Context, mailID, userID string) error

	// ClaimReward flips the recipient's claimed flag and returns the
	// reward amount. It fails with ErrConflict when already claimed and
	// ErrValidation when the mail carries no reward.
	ClaimReward(ctx context.Context, mailID, userID string) (int, error)

	// DeleteForRecipient removes userID's copy. The mail itself goes once
	// no recipients remain.
	DeleteForRecipient(ctx context.Context, mailID, userID string) error

	// DeleteExpired removes every mail whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// LastMailOfType returns the date of the newest mail of type t
	// addressed to userID, or nil if there is none.
	LastMailOfType(ctx context.Context, userID string, t model.MailType) (*time.Time, error)
}

// Repos groups the repositories bound to one handle: either the pool or a
// single transaction.
type Repos struct {
	Users    UserRepository
	Journals JournalRepository
	Mails    MailRepository
}

// Store owns the connection pool.
type Store interface {
	Repos() Repos

	// WithTx runs fn inside one transaction. It commits when fn returns
	// nil and rolls back otherwise. fn must only use the Repos it is given.
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error

	Ping(ctx context.Context) error
	Close() error
}
