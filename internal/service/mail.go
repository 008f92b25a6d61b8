package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/repository"
)

// MailService is the inbox. Every operation is scoped to the caller's own
// recipient row, so a user can never see or claim someone else's copy.
type MailService struct {
	store  repository.Store
	now    func() time.Time
	logger *slog.Logger
}

func NewMailService(store repository.Store, logger *slog.Logger) *MailService {
	return &MailService{store: store, now: time.Now, logger: logger}
}

// List returns the caller's unexpired mail, newest first.
func (s *MailService) List(ctx context.Context, userID string) ([]model.InboxItem, error) {
	items, err := s.store.Repos().Mails.ListInbox(ctx, userID, s.now())
	if err != nil {
		return nil, failure(s.logger, "listing mail", err, slog.String("userID", userID))
	}
	return items, nil
}

func (s *MailService) MarkRead(ctx context.Context, mailID, userID string) error {
	if err := requireID(mailID); err != nil {
		return err
	}
	if err := s.store.Repos().Mails.MarkRead(ctx, mailID, userID); err != nil {
		return failure(s.logger, "marking mail read", err, slog.String("mailID", mailID))
	}
	return nil
}

// ClaimResult is the outcome of a reward claim.
type ClaimResult struct {
	RewardAmount    int
	NewCoinsBalance int
}

// ClaimReward flips the claimed flag and credits the coins in one
// transaction; a crash between the two cannot pay twice or not at all.
func (s *MailService) ClaimReward(ctx context.Context, mailID, userID string) (*ClaimResult, error) {
	if err := requireID(mailID); err != nil {
		return nil, err
	}

	var res ClaimResult
	err := s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		amount, err := r.Mails.ClaimReward(ctx, mailID, userID)
		if err != nil {
			return err
		}
		balance, err := r.Users.AddCoins(ctx, userID, amount)
		if err != nil {
			return err
		}
		res = ClaimResult{RewardAmount: amount, NewCoinsBalance: balance}
		return nil
	})
	if err != nil {
		return nil, failure(s.logger, "claiming reward", err,
			slog.String("mailID", mailID),
			slog.String("userID", userID),
		)
	}

	s.logger.Info("reward claimed",
		slog.String("mailID", mailID),
		slog.String("userID", userID),
		slog.Int("amount", res.RewardAmount),
	)
	return &res, nil
}

// Delete removes the caller's copy of the mail.
func (s *MailService) Delete(ctx context.Context, mailID, userID string) error {
	if err := requireID(mailID); err != nil {
		return err
	}
	if err := s.store.Repos().Mails.DeleteForRecipient(ctx, mailID, userID); err != nil {
		return failure(s.logger, "deleting mail", err, slog.String("mailID", mailID))
	}
	return nil
}

// SweepExpired deletes every mail past its expiry date.
func (s *MailService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.store.Repos().Mails.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, failure(s.logger, "sweeping expired mail", err)
	}
	if n > 0 {
		s.logger.Info("expired mail swept", slog.Int64("count", n))
	}
	return n, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ValidationFailed("id", "mail ID is required")
	}
	return nil
}
