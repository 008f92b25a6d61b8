package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/starlit/internal/auth"
	"github.com/sakif/starlit/internal/catalog"
	"github.com/sakif/starlit/internal/engagement"
	"github.com/sakif/starlit/internal/mailer"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/repository"
	"github.com/sakif/starlit/internal/repository/sqlstore"
)

// =========================================================================
// TEST HARNESS
// =========================================================================
//
// Services are tested against a real in-memory SQLite store: the point of
// this layer is transaction boundaries, and a fake repository cannot
// show that a failed insert rolled back a user update. Randomness and the
// clock are pinned so every run sees the same templates on the same day.

// day0 is a Wednesday in autumn.
var day0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// firstPick always takes the first template and never rolls an optional mail.
type firstPick struct{}

func (firstPick) IntN(int) int     { return 0 }
func (firstPick) Float64() float64 { return 0.99 }

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Enabled() bool { return true }

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

type harness struct {
	store    *sqlstore.Store
	accounts *AccountService
	journals *JournalService
	mails    *MailService
	tokens   *auth.TokenService
	mailer   *fakeMailer
	clock    *time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlstore.Open(ctx, "sqlite", ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.Default()
	require.NoError(t, err)

	engine := engagement.New(cat, firstPick{}, engagement.Config{MaxMailsPerLogin: 3}, logger)
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars", time.Hour)
	require.NoError(t, err)
	fm := &fakeMailer{}

	clock := day0
	now := func() time.Time { return clock }

	accounts := NewAccountService(store, engine, tokens, auth.NewPasswordServiceForTest(4), cat, fm, logger)
	accounts.rnd = firstPick{}
	accounts.now = now
	journals := NewJournalService(store, engine, logger)
	journals.now = now
	mails := NewMailService(store, logger)
	mails.now = now

	return &harness{
		store:    store,
		accounts: accounts,
		journals: journals,
		mails:    mails,
		tokens:   tokens,
		mailer:   fm,
		clock:    &clock,
	}
}

func (h *harness) signup(t *testing.T, nickname, email string) *model.User {
	t.Helper()
	res, err := h.accounts.Signup(context.Background(), SignupInput{
		Nickname: nickname,
		Email:    email,
		Password: "correct horse",
	})
	require.NoError(t, err)
	return res.User
}

func inboxOfType(t *testing.T, h *harness, userID string, typ model.MailType) []model.InboxItem {
	t.Helper()
	items, err := h.mails.List(context.Background(), userID)
	require.NoError(t, err)
	var out []model.InboxItem
	for _, it := range items {
		if it.Type == typ {
			out = append(out, it)
		}
	}
	return out
}

// =========================================================================
// SHARED HELPERS
// =========================================================================

func TestClampList(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset int
		want          repository.ListOptions
	}{
		{"defaults", 0, 0, repository.ListOptions{Limit: DefaultListLimit}},
		{"negative limit", -5, 10, repository.ListOptions{Limit: DefaultListLimit, Offset: 10}},
		{"too large", 500, 0, repository.ListOptions{Limit: MaxListLimit}},
		{"negative offset", 5, -1, repository.ListOptions{Limit: 5}},
		{"in range", 30, 60, repository.ListOptions{Limit: 30, Offset: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampList(tt.limit, tt.offset))
		})
	}
}

func TestAnonymousName(t *testing.T) {
	// m(109) + i(105) + r(114) + a(97) = 425
	assert.Equal(t, "WhisperingDreamer425", AnonymousName("Mira", firstPick{}))
	assert.Equal(t, "WhisperingDreamer425", AnonymousName("  mi-RA! ", firstPick{}))
	assert.Equal(t, "WhisperingDreamer0", AnonymousName("", firstPick{}))
}

func TestUserLocks_SerializesAndCleansUp(t *testing.T) {
	locks := newUserLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		overlap bool
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("u1")
			mu.Lock()
			inside++
			if inside > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.False(t, overlap, "two holders of the same user lock at once")
	assert.Equal(t, 0, locks.size())
}

func TestUserLocks_DifferentUsersDoNotBlock(t *testing.T) {
	locks := newUserLocks()
	unlockA := locks.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		locks.lock("b")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

// staleUsers reports a version clash for the first n saves.
type staleUsers struct {
	repository.UserRepository
	n     int
	saves int
}

func (s *staleUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	return &model.User{ID: id}, nil
}

func (s *staleUsers) SaveEngagement(_ context.Context, u *model.User) error {
	s.saves++
	if s.saves <= s.n {
		return repository.ErrStaleUser
	}
	u.Version++
	return nil
}

// txStore runs every transaction against the same fake repositories.
type txStore struct {
	repository.Store
	repos repository.Repos
	txs   int
}

func (s *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	s.txs++
	return fn(ctx, s.repos)
}

func TestUpdateUser_RetriesStaleVersion(t *testing.T) {
	users := &staleUsers{n: 2}
	store := &txStore{repos: repository.Repos{Users: users}}

	u, err := updateUser(context.Background(), store, "u1",
		func(context.Context, repository.Repos, *model.User) (bool, error) { return true, nil }, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, store.txs)
	assert.Equal(t, int64(1), u.Version)
}

func TestUpdateUser_GivesUpAfterMaxAttempts(t *testing.T) {
	users := &staleUsers{n: 100}
	store := &txStore{repos: repository.Repos{Users: users}}

	_, err := updateUser(context.Background(), store, "u1",
		func(context.Context, repository.Repos, *model.User) (bool, error) { return true, nil }, nil)

	assert.ErrorIs(t, err, repository.ErrStaleUser)
	assert.Equal(t, maxSaveAttempts, store.txs)
}

func TestUpdateUser_SkipsSaveWhenUnchanged(t *testing.T) {
	users := &staleUsers{n: 100}
	store := &txStore{repos: repository.Repos{Users: users}}
	afterRan := false

	_, err := updateUser(context.Background(), store, "u1",
		func(context.Context, repository.Repos, *model.User) (bool, error) { return false, nil },
		func(context.Context, repository.Repos) error { afterRan = true; return nil })

	require.NoError(t, err)
	assert.Equal(t, 0, users.saves)
	assert.True(t, afterRan)
}

func TestUpdateUser_MutateErrorIsNotRetried(t *testing.T) {
	store := &txStore{repos: repository.Repos{Users: &staleUsers{}}}
	boom := errors.New("boom")

	_, err := updateUser(context.Background(), store, "u1",
		func(context.Context, repository.Repos, *model.User) (bool, error) { return false, boom }, nil)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.txs)
}
