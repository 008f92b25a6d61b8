package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore reads and writes the users table.
type UserStore struct {
	h      handle
	logger *slog.Logger
}

const userColumns = `id, nickname, email, password, age, gender, subscribe, anonymous_name,
	current_streak, longest_streak, last_visited, last_journaled, coins, inventory,
	streak_milestones, entry_milestones, story_progress, active_mail_theme,
	last_weekly_summary, version, created_at, updated_at`

// engagementColumns are the JSON-encoded parts of a user row.
type engagementColumns struct {
	inventory, streak, entry, story string
}

func encodeEngagement(u *model.User) (engagementColumns, error) {
	var (
		c   engagementColumns
		err error
	)
	if c.inventory, err = encodeJSON(u.Inventory); err != nil {
		return c, fmt.Errorf("encoding inventory: %w", err)
	}
	if c.streak, err = encodeJSON(u.CompletedStreakMilestones); err != nil {
		return c, fmt.Errorf("encoding streak milestones: %w", err)
	}
	if c.entry, err = encodeJSON(u.CompletedEntryMilestones); err != nil {
		return c, fmt.Errorf("encoding entry milestones: %w", err)
	}
	if c.story, err = encodeJSON(u.StoryProgress); err != nil {
		return c, fmt.Errorf("encoding story progress: %w", err)
	}
	return c, nil
}

// Create inserts a new user. ID, timestamps and the initial version are
// assigned here and written back into u.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	u.ID = xid.New().String()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Version = 1
	u.Normalize()

	c, err := encodeEngagement(u)
	if err != nil {
		return fmt.Errorf("sqlstore: creating user: %w", err)
	}

	_, err = s.h.exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Nickname, u.Email, u.Password, u.Age, u.Gender, u.Subscribe, u.AnonymousName,
		u.CurrentStreak, u.LongestStreak, nullMillis(u.LastVisited), nullMillis(u.LastJournaled),
		u.Coins, c.inventory, c.streak, c.entry, c.story, u.ActiveMailTheme,
		u.LastWeeklySummary, u.Version, toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if err != nil {
		if s.h.dialect.IsUniqueViolation(err) {
			return apperror.Conflict("user", "email already in use")
		}
		return fmt.Errorf("sqlstore: inserting user %s: %w", u.Email, err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound if no user has that ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.h.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row, s.logger)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail matches the stored address exactly; callers lowercase it first.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.h.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row, s.logger)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlstore: getting user by email: %w", err)
	}
	return u, nil
}

// SaveEngagement is a compare-and-swap on the version column.
//
// The WHERE clause only matches if nobody has written the row since u was
// read. Zero affected rows means either the user vanished or a concurrent
// session won; we look once more to tell the two apart.
func (s *UserStore) SaveEngagement(ctx context.Context, u *model.User) error {
	c, err := encodeEngagement(u)
	if err != nil {
		return fmt.Errorf("sqlstore: saving user %s: %w", u.ID, err)
	}

	now := time.Now().UTC()
	res, err := s.h.exec(ctx,
		`UPDATE users SET
			current_streak = ?, longest_streak = ?, last_visited = ?, last_journaled = ?,
			coins = ?, inventory = ?, streak_milestones = ?, entry_milestones = ?,
			story_progress = ?, active_mail_theme = ?, subscribe = ?, last_weekly_summary = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		u.CurrentStreak, u.LongestStreak, nullMillis(u.LastVisited), nullMillis(u.LastJournaled),
		u.Coins, c.inventory, c.streak, c.entry,
		c.story, u.ActiveMailTheme, u.Subscribe, u.LastWeeklySummary,
		toMillis(now),
		u.ID, u.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: saving user %s: %w", u.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: saving user %s: %w", u.ID, err)
	}
	if n == 0 {
		if _, err := s.GetByID(ctx, u.ID); err != nil {
			return err
		}
		return repository.ErrStaleUser
	}

	u.Version++
	u.UpdatedAt = now
	return nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id, password string) error {
	res, err := s.h.exec(ctx,
		`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`,
		password, toMillis(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating password for %s: %w", id, err)
	}
	return expectOne(res, "user", id)
}

func (s *UserStore) AddCoins(ctx context.Context, id string, delta int) (int, error) {
	res, err := s.h.exec(ctx,
		`UPDATE users SET coins = coins + ?, version = version + 1, updated_at = ? WHERE id = ?`,
		delta, toMillis(time.Now().UTC()), id,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: crediting user %s: %w", id, err)
	}
	if err := expectOne(res, "user", id); err != nil {
		return 0, err
	}

	var coins int
	if err := s.h.queryRow(ctx, `SELECT coins FROM users WHERE id = ?`, id).Scan(&coins); err != nil {
		return 0, fmt.Errorf("sqlstore: reading balance for %s: %w", id, err)
	}
	return coins, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, logger *slog.Logger) (*model.User, error) {
	var (
		u                          model.User
		lastVisited, lastJournaled sql.NullInt64
		inventory, streak, entry   string
		story                      string
		createdAt, updatedAt       int64
	)
	err := row.Scan(
		&u.ID, &u.Nickname, &u.Email, &u.Password, &u.Age, &u.Gender, &u.Subscribe, &u.AnonymousName,
		&u.CurrentStreak, &u.LongestStreak, &lastVisited, &lastJournaled, &u.Coins, &inventory,
		&streak, &entry, &story, &u.ActiveMailTheme,
		&u.LastWeeklySummary, &u.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.LastVisited = timePtr(lastVisited)
	u.LastJournaled = timePtr(lastJournaled)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)

	u.Inventory = decodeColumn[[]model.InventoryItem](logger, u.ID, "inventory", inventory)
	u.CompletedStreakMilestones = decodeColumn[model.MilestoneLedger](logger, u.ID, "streak_milestones", streak)
	u.CompletedEntryMilestones = decodeColumn[model.MilestoneLedger](logger, u.ID, "entry_milestones", entry)
	u.StoryProgress = decodeColumn[model.StoryProgress](logger, u.ID, "story_progress", story)
	u.Normalize()
	return &u, nil
}

// decodeColumn reads one JSON engagement column. A malformed value is
// logged and replaced by the zero value; Normalize fills in the defaults.
func decodeColumn[T any](logger *slog.Logger, userID, column, raw string) T {
	var v T
	if err := decodeJSON(raw, &v); err != nil {
		logger.Warn("resetting malformed user column",
			slog.String("userID", userID),
			slog.String("column", column),
			slog.String("error", err.Error()),
		)
		var zero T
		return zero
	}
	return v
}

// expectOne maps "no row matched" onto apperror.NotFound.
func expectOne(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking affected rows: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
