package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/repository"
)

// compile-time check that *MailStore implements repository.MailRepository
var _ repository.MailRepository = (*MailStore)(nil)

// MailStore reads and writes mails and their per-recipient state.
type MailStore struct {
	h handle
}

// Insert writes each mail unless its dedup key is already taken.
//
// ON CONFLICT ... DO NOTHING is the idempotency guard: replaying the same
// engine event (a retried login, a double-clicked like) produces the same
// key and the second insert affects zero rows. Recipient rows are only
// written for mails that actually went in.
func (s *MailStore) Insert(ctx context.Context, mails []model.Mail) ([]model.Mail, error) {
	inserted := make([]model.Mail, 0, len(mails))
	for _, m := range mails {
		if m.ID == "" {
			m.ID = xid.New().String()
		}
		if m.DedupKey == "" {
			m.DedupKey = m.ID
		}

		var meta sql.NullString
		if m.Metadata != nil {
			raw, err := encodeJSON(m.Metadata)
			if err != nil {
				return nil, fmt.Errorf("sqlstore: encoding %s metadata: %w", m.Type, err)
			}
			meta = sql.NullString{String: raw, Valid: true}
		}

		res, err := s.h.exec(ctx,
			`INSERT INTO mails (id, sender, title, content, mail_type, reward_amount, metadata,
				theme_id, dedup_key, date, expiry_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (dedup_key) DO NOTHING`,
			m.ID, m.Sender, m.Title, m.Content, string(m.Type), m.RewardAmount, meta,
			m.ThemeID, m.DedupKey, toMillis(m.Date), nullMillis(m.ExpiryDate),
		)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: inserting %s mail: %w", m.Type, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("sqlstore: inserting %s mail: %w", m.Type, err)
		}
		if n == 0 {
			continue // duplicate dedup key
		}

		for _, r := range m.Recipients {
			_, err := s.h.exec(ctx,
				`INSERT INTO mail_recipients (mail_id, user_id, is_read, reward_claimed)
				 VALUES (?, ?, ?, ?)`,
				m.ID, r.UserID, r.Read, r.RewardClaimed,
			)
			if err != nil {
				return nil, fmt.Errorf("sqlstore: adding recipient %s to mail %s: %w", r.UserID, m.ID, err)
			}
		}
		inserted = append(inserted, m)
	}
	return inserted, nil
}

// ListInbox hides expired mails even before the sweeper has removed them.
func (s *MailStore) ListInbox(ctx context.Context, userID string, now time.Time) ([]model.InboxItem, error) {
	rows, err := s.h.query(ctx,
		`SELECT m.id, m.sender, m.title, m.content, m.mail_type, m.reward_amount, m.metadata,
			m.theme_id, m.date, m.expiry_date, r.is_read, r.reward_claimed
		 FROM mails m
		 JOIN mail_recipients r ON r.mail_id = m.id
		 WHERE r.user_id = ? AND (m.expiry_date IS NULL OR m.expiry_date > ?)
		 ORDER BY m.date DESC, m.id DESC`,
		userID, toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing inbox for %s: %w", userID, err)
	}
	defer rows.Close()

	items := []model.InboxItem{}
	for rows.Next() {
		var (
			it     model.InboxItem
			typ    string
			meta   sql.NullString
			date   int64
			expiry sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.Sender, &it.Title, &it.Content, &typ, &it.RewardAmount, &meta,
			&it.ThemeID, &date, &expiry, &it.Read, &it.RewardClaimed); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning mail: %w", err)
		}
		it.Type = model.MailType(typ)
		it.Date = fromMillis(date)
		it.ExpiryDate = timePtr(expiry)
		if meta.Valid {
			md, err := model.DecodeMetadata(it.Type, []byte(meta.String))
			if err != nil {
				return nil, fmt.Errorf("sqlstore: mail %s: %w", it.ID, err)
			}
			it.Metadata = md
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating inbox: %w", err)
	}
	return items, nil
}

func (s *MailStore) MarkRead(ctx context.Context, mailID, userID string) error {
	res, err := s.h.exec(ctx,
		`UPDATE mail_recipients SET is_read = ? WHERE mail_id = ? AND user_id = ?`,
		true, mailID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: marking mail %s read: %w", mailID, err)
	}
	return expectOne(res, "mail", mailID)
}

// ClaimReward guards the flip with "reward_claimed = false" so two racing
// claims cannot both succeed, even outside a transaction. Claiming also
// marks the mail read.
func (s *MailStore) ClaimReward(ctx context.Context, mailID, userID string) (int, error) {
	var (
		amount  int
		claimed bool
	)
	err := s.h.queryRow(ctx,
		`SELECT m.reward_amount, r.reward_claimed
		 FROM mails m
		 JOIN mail_recipients r ON r.mail_id = m.id
		 WHERE m.id = ? AND r.user_id = ?`,
		mailID, userID,
	).Scan(&amount, &claimed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("mail", mailID)
		}
		return 0, fmt.Errorf("sqlstore: reading reward on %s: %w", mailID, err)
	}
	if amount <= 0 {
		return 0, apperror.ValidationFailed("mail", "this mail carries no reward")
	}
	if claimed {
		return 0, apperror.Conflict("mail", "reward already claimed")
	}

	res, err := s.h.exec(ctx,
		`UPDATE mail_recipients SET reward_claimed = ?, is_read = ?
		 WHERE mail_id = ? AND user_id = ? AND reward_claimed = ?`,
		true, true, mailID, userID, false,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: claiming reward on %s: %w", mailID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: claiming reward on %s: %w", mailID, err)
	}
	if n == 0 {
		return 0, apperror.Conflict("mail", "reward already claimed")
	}
	return amount, nil
}

func (s *MailStore) DeleteForRecipient(ctx context.Context, mailID, userID string) error {
	res, err := s.h.exec(ctx,
		`DELETE FROM mail_recipients WHERE mail_id = ? AND user_id = ?`, mailID, userID)
	if err != nil {
		return fmt.Errorf("sqlstore: removing %s from mail %s: %w", userID, mailID, err)
	}
	if err := expectOne(res, "mail", mailID); err != nil {
		return err
	}

	_, err = s.h.exec(ctx,
		`DELETE FROM mails
		 WHERE id = ? AND NOT EXISTS (SELECT 1 FROM mail_recipients WHERE mail_id = ?)`,
		mailID, mailID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting orphaned mail %s: %w", mailID, err)
	}
	return nil
}

// DeleteExpired removes recipient rows explicitly rather than leaning on
// ON DELETE CASCADE, which SQLite only honours with foreign_keys on.
func (s *MailStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := toMillis(now)
	if _, err := s.h.exec(ctx,
		`DELETE FROM mail_recipients WHERE mail_id IN (
			SELECT id FROM mails WHERE expiry_date IS NOT NULL AND expiry_date <= ?)`,
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("sqlstore: deleting expired recipients: %w", err)
	}

	res, err := s.h.exec(ctx,
		`DELETE FROM mails WHERE expiry_date IS NOT NULL AND expiry_date <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: deleting expired mails: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: deleting expired mails: %w", err)
	}
	return n, nil
}

func (s *MailStore) LastMailOfType(ctx context.Context, userID string, t model.MailType) (*time.Time, error) {
	var last sql.NullInt64
	err := s.h.queryRow(ctx,
		`SELECT MAX(m.date)
		 FROM mails m
		 JOIN mail_recipients r ON r.mail_id = m.id
		 WHERE r.user_id = ? AND m.mail_type = ?`,
		userID, string(t),
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: last %s mail for %s: %w", t, userID, err)
	}
	return timePtr(last), nil
}
