package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/starlit/internal/auth"
	"github.com/sakif/starlit/internal/handler"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/service"
)

type fakeAccounts struct{}

func (fakeAccounts) Signup(context.Context, service.SignupInput) (*service.AuthResult, error) {
	return &service.AuthResult{User: &model.User{ID: "u1"}, Token: "tok"}, nil
}

func (fakeAccounts) Login(context.Context, string, string) (*service.LoginResult, error) {
	return &service.LoginResult{User: &model.User{ID: "u1"}, Token: "tok"}, nil
}

func (fakeAccounts) Me(_ context.Context, userID string) (*model.User, error) {
	return &model.User{ID: userID}, nil
}

func (fakeAccounts) UpdateProfile(_ context.Context, userID string, _ service.ProfileInput) (*model.User, error) {
	return &model.User{ID: userID}, nil
}

func (fakeAccounts) AssignStory(_ context.Context, userID, _ string) (*model.User, error) {
	return &model.User{ID: userID}, nil
}

type fakeJournals struct{}

func (fakeJournals) Create(_ context.Context, userID string, _ service.CreateJournalInput) (*model.Journal, error) {
	return &model.Journal{ID: "j1", UserID: userID}, nil
}

func (fakeJournals) List(context.Context, string, int, int) ([]model.Journal, error) {
	return []model.Journal{}, nil
}

func (fakeJournals) ToggleLike(context.Context, string, string) (*service.LikeResult, error) {
	return &service.LikeResult{LikeCount: 1, IsLiked: true}, nil
}

type fakeMailbox struct{ claimed string }

func (*fakeMailbox) List(context.Context, string) ([]model.InboxItem, error) {
	return []model.InboxItem{}, nil
}
func (*fakeMailbox) MarkRead(context.Context, string, string) error { return nil }
func (f *fakeMailbox) ClaimReward(_ context.Context, mailID, _ string) (*service.ClaimResult, error) {
	f.claimed = mailID
	return &service.ClaimResult{RewardAmount: 50, NewCoinsBalance: 50}, nil
}
func (*fakeMailbox) Delete(context.Context, string, string) error { return nil }

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) SweepExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

func newTestServer(t *testing.T, db Pinger) (*Server, *auth.TokenService, *fakeMailbox) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars", time.Hour)
	require.NoError(t, err)
	mails := &fakeMailbox{}

	s := New(Config{Port: 0}, Deps{
		Accounts: handler.NewAccountHandler(fakeAccounts{}, time.Hour, false, logger),
		Journals: handler.NewJournalHandler(fakeJournals{}, logger),
		Mails:    handler.NewMailHandler(mails, logger),
		Tokens:   tokens,
		DB:       db,
		Sweeper:  &countingSweeper{},
	}, logger)
	return s, tokens, mails
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t, fakeDB{})
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	s, _, _ = newTestServer(t, fakeDB{err: errors.New("db down")})
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRoutes_AuthRequired(t *testing.T) {
	s, tokens, _ := newTestServer(t, fakeDB{})
	token, err := tokens.Generate("u1")
	require.NoError(t, err)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/me"},
		{http.MethodPut, "/api/me"},
		{http.MethodPut, "/api/me/story"},
		{http.MethodPost, "/api/journals"},
		{http.MethodGet, "/api/journals"},
		{http.MethodPost, "/api/journals/j1/like"},
		{http.MethodGet, "/api/mails"},
		{http.MethodPut, "/api/mails/m1/read"},
		{http.MethodPut, "/api/mails/m1/claim-reward"},
		{http.MethodDelete, "/api/mails/m1"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr = httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)
			assert.NotEqual(t, http.StatusUnauthorized, rr.Code)
			assert.NotEqual(t, http.StatusNotFound, rr.Code)
		})
	}
}

func TestRoutes_PublicAuthEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t, fakeDB{})

	for _, path := range []string{"/api/signup", "/api/login"} {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		// An empty body reaches the handler and fails validation, not auth.
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestRoutes_ClaimRewardPassesMailID(t *testing.T) {
	s, tokens, mails := newTestServer(t, fakeDB{})
	token, err := tokens.Generate("u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/mails/m42/claim-reward", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "m42", mails.claimed)
}

func TestRunSweeper_SweepsAtStartAndOnTicks(t *testing.T) {
	s, _, _ := newTestServer(t, fakeDB{})
	sweeper := &countingSweeper{err: errors.New("locked")}
	s.deps.Sweeper = sweeper
	s.config.SweepInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.runSweeper(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestNew_DefaultSweepInterval(t *testing.T) {
	s, _, _ := newTestServer(t, fakeDB{})
	assert.Equal(t, DefaultSweepInterval, s.config.SweepInterval)
}
