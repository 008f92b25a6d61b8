// Package service contains the business logic of the journaling app.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	handler (HTTP)  →  service (business rules)  →  repository (storage)
//	                         ↘ engagement (login and like automations)
//
// Handlers parse requests and render responses. Services validate input,
// decide what happens, and own the transaction boundaries. Repositories
// only move rows.
//
// WHY THE SERVICE OWNS TRANSACTIONS:
// A login mutates the user (streak, coins, milestone ledgers) AND produces
// mails. Both must land or neither must: a ledger entry without its mail
// means the milestone is silently lost, a mail without its ledger entry
// means the next login sends it again. The service runs the engine, then
// writes the user and the mails through the same repository.Store
// transaction.
//
// ERRORS:
// Services return apperror kinds (NotFound, ValidationFailed, Conflict,
// Unauthorized). Anything else is an infrastructure failure, wrapped with
// "service: <action>: %w" and logged here once.
package service

import (
	"context"
	"time"

	"github.com/sakif/starlit/internal/engagement"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// clampList keeps pagination inside 1..MaxListLimit with a non-negative offset.
func clampList(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

// history adapts one set of repositories to the engine's read interface.
// Built from the Repos of a transaction, the engine sees exactly what the
// transaction sees.
type history struct {
	r repository.Repos
}

var _ engagement.History = history{}

func (h history) RecentJournals(ctx context.Context, userID string, limit int) ([]model.Journal, error) {
	return h.r.Journals.RecentJournals(ctx, userID, limit)
}

func (h history) JournalsSince(ctx context.Context, userID string, since time.Time) ([]model.Journal, error) {
	return h.r.Journals.JournalsSince(ctx, userID, since)
}

func (h history) CountJournals(ctx context.Context, userID string) (int, error) {
	return h.r.Journals.CountJournals(ctx, userID)
}

func (h history) LastMailOfType(ctx context.Context, userID string, t model.MailType) (*time.Time, error) {
	return h.r.Mails.LastMailOfType(ctx, userID, t)
}
