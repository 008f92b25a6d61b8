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

// compile-time check that *JournalStore implements repository.JournalRepository
var _ repository.JournalRepository = (*JournalStore)(nil)

// JournalStore reads and writes journals and their likes.
type JournalStore struct {
	h handle
}

const journalColumns = `id, user_id, title, content, mood, tags, collections, word_count,
	theme, is_public, author_name, like_count, date, created_at, updated_at`

// Create inserts j. A zero Date defaults to the creation time.
func (s *JournalStore) Create(ctx context.Context, j *model.Journal) error {
	j.ID = xid.New().String()
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.Date.IsZero() {
		j.Date = now
	}
	if j.Tags == nil {
		j.Tags = []string{}
	}
	if j.Collections == nil {
		j.Collections = []string{}
	}
	if j.Likes == nil {
		j.Likes = []string{}
	}

	tags, err := encodeJSON(j.Tags)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding tags: %w", err)
	}
	collections, err := encodeJSON(j.Collections)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding collections: %w", err)
	}

	_, err = s.h.exec(ctx,
		`INSERT INTO journals (`+journalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.Title, j.Content, string(j.Mood), tags, collections, j.WordCount,
		j.Theme, j.IsPublic, j.AuthorName, j.LikeCount, toMillis(j.Date),
		toMillis(j.CreatedAt), toMillis(j.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting journal for %s: %w", j.UserID, err)
	}
	return nil
}

// GetByID loads the journal together with the ids of everyone who liked it.
func (s *JournalStore) GetByID(ctx context.Context, id string) (*model.Journal, error) {
	row := s.h.queryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE id = ?`, id)
	j, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("journal", id)
		}
		return nil, fmt.Errorf("sqlstore: getting journal %s: %w", id, err)
	}

	rows, err := s.h.query(ctx,
		`SELECT user_id FROM journal_likes WHERE journal_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing likes for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning like: %w", err)
		}
		j.Likes = append(j.Likes, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating likes: %w", err)
	}
	return j, nil
}

// ListByUser returns the user's own entries, newest first. Likes are not
// loaded; LikeCount is.
func (s *JournalStore) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Journal, error) {
	return s.list(ctx,
		`SELECT `+journalColumns+` FROM journals
		 WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
}

func (s *JournalStore) RecentJournals(ctx context.Context, userID string, limit int) ([]model.Journal, error) {
	return s.list(ctx,
		`SELECT `+journalColumns+` FROM journals
		 WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC
		 LIMIT ?`,
		userID, limit,
	)
}

func (s *JournalStore) JournalsSince(ctx context.Context, userID string, since time.Time) ([]model.Journal, error) {
	return s.list(ctx,
		`SELECT `+journalColumns+` FROM journals
		 WHERE user_id = ? AND date >= ?
		 ORDER BY date ASC, created_at ASC`,
		userID, toMillis(since),
	)
}

func (s *JournalStore) CountJournals(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.h.queryRow(ctx, `SELECT COUNT(*) FROM journals WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: counting journals for %s: %w", userID, err)
	}
	return n, nil
}

// ToggleLike flips userID's like on the journal and keeps like_count in
// step with journal_likes. Run it inside a transaction so the two writes
// land together.
func (s *JournalStore) ToggleLike(ctx context.Context, journalID, userID string) (bool, int, error) {
	var exists int
	err := s.h.queryRow(ctx, `SELECT COUNT(*) FROM journals WHERE id = ?`, journalID).Scan(&exists)
	if err != nil {
		return false, 0, fmt.Errorf("sqlstore: checking journal %s: %w", journalID, err)
	}
	if exists == 0 {
		return false, 0, apperror.NotFound("journal", journalID)
	}

	res, err := s.h.exec(ctx,
		`DELETE FROM journal_likes WHERE journal_id = ? AND user_id = ?`, journalID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("sqlstore: removing like on %s: %w", journalID, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("sqlstore: removing like on %s: %w", journalID, err)
	}

	liked := removed == 0
	delta := -1
	if liked {
		if _, err := s.h.exec(ctx,
			`INSERT INTO journal_likes (journal_id, user_id) VALUES (?, ?)`, journalID, userID); err != nil {
			return false, 0, fmt.Errorf("sqlstore: adding like on %s: %w", journalID, err)
		}
		delta = 1
	}

	var count int
	err = s.h.queryRow(ctx,
		`UPDATE journals SET like_count = like_count + ? WHERE id = ? RETURNING like_count`,
		delta, journalID,
	).Scan(&count)
	if err != nil {
		return false, 0, fmt.Errorf("sqlstore: updating like count on %s: %w", journalID, err)
	}
	return liked, count, nil
}

func (s *JournalStore) list(ctx context.Context, query string, args ...any) ([]model.Journal, error) {
	rows, err := s.h.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing journals: %w", err)
	}
	// ALWAYS close rows, or the connection never returns to the pool.
	defer rows.Close()

	journals := []model.Journal{}
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning journal: %w", err)
		}
		journals = append(journals, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating journals: %w", err)
	}
	return journals, nil
}

func scanJournal(row scanner) (*model.Journal, error) {
	var (
		j                          model.Journal
		mood, tags, collections    string
		date, createdAt, updatedAt int64
	)
	err := row.Scan(
		&j.ID, &j.UserID, &j.Title, &j.Content, &mood, &tags, &collections, &j.WordCount,
		&j.Theme, &j.IsPublic, &j.AuthorName, &j.LikeCount, &date, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Mood = model.Mood(mood)
	j.Date = fromMillis(date)
	j.CreatedAt = fromMillis(createdAt)
	j.UpdatedAt = fromMillis(updatedAt)
	j.Likes = []string{}

	if err := decodeJSON(tags, &j.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if err := decodeJSON(collections, &j.Collections); err != nil {
		return nil, fmt.Errorf("decoding collections: %w", err)
	}
	return &j, nil
}
