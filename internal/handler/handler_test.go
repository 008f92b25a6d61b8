package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/auth"
	"github.com/sakif/starlit/internal/handler"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/service"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// =========================================================================
// FAKE SERVICES
// =========================================================================
//
// Handlers only translate; the fakes record what reached them and return
// canned results so each test pins one mapping.

type fakeAccounts struct {
	signupIn  service.SignupInput
	loginArgs [2]string
	storyArgs [2]string
	profileIn service.ProfileInput
	err       error
}

func (f *fakeAccounts) Signup(_ context.Context, in service.SignupInput) (*service.AuthResult, error) {
	f.signupIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.AuthResult{User: &model.User{ID: "u1", Nickname: in.Nickname}, Token: "tok"}, nil
}

func (f *fakeAccounts) Login(_ context.Context, email, password string) (*service.LoginResult, error) {
	f.loginArgs = [2]string{email, password}
	if f.err != nil {
		return nil, f.err
	}
	return &service.LoginResult{
		User:        &model.User{ID: "u1", CurrentStreak: 3},
		Token:       "tok",
		CoinsEarned: 10,
		MailsQueued: 2,
	}, nil
}

func (f *fakeAccounts) Me(_ context.Context, userID string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: userID, Nickname: "Mira"}, nil
}

func (f *fakeAccounts) AssignStory(_ context.Context, userID, story string) (*model.User, error) {
	f.storyArgs = [2]string{userID, story}
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: userID, StoryProgress: model.StoryProgress{StoryName: story, CurrentChapter: 1}}, nil
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, userID string, in service.ProfileInput) (*model.User, error) {
	f.profileIn = in
	if f.err != nil {
		return nil, f.err
	}
	u := &model.User{ID: userID}
	if in.ActiveMailTheme != nil {
		u.ActiveMailTheme = *in.ActiveMailTheme
	}
	return u, nil
}

type fakeJournals struct {
	createIn   service.CreateJournalInput
	listArgs   [2]int
	likeTarget string
	err        error
}

func (f *fakeJournals) Create(_ context.Context, userID string, in service.CreateJournalInput) (*model.Journal, error) {
	f.createIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Journal{ID: "j1", UserID: userID, Title: in.Title}, nil
}

func (f *fakeJournals) List(_ context.Context, _ string, limit, offset int) ([]model.Journal, error) {
	f.listArgs = [2]int{limit, offset}
	if f.err != nil {
		return nil, f.err
	}
	return []model.Journal{{ID: "j1"}}, nil
}

func (f *fakeJournals) ToggleLike(_ context.Context, journalID, _ string) (*service.LikeResult, error) {
	f.likeTarget = journalID
	if f.err != nil {
		return nil, f.err
	}
	return &service.LikeResult{LikeCount: 5, IsLiked: true}, nil
}

type fakeMailbox struct {
	lastID string
	err    error
}

func (f *fakeMailbox) List(context.Context, string) ([]model.InboxItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.InboxItem{{ID: "m1", Type: model.MailReward, RewardAmount: 50}}, nil
}

func (f *fakeMailbox) MarkRead(_ context.Context, mailID, _ string) error {
	f.lastID = mailID
	return f.err
}

func (f *fakeMailbox) ClaimReward(_ context.Context, mailID, _ string) (*service.ClaimResult, error) {
	f.lastID = mailID
	if f.err != nil {
		return nil, f.err
	}
	return &service.ClaimResult{RewardAmount: 50, NewCoinsBalance: 60}, nil
}

func (f *fakeMailbox) Delete(_ context.Context, mailID, _ string) error {
	f.lastID = mailID
	return f.err
}

// =========================================================================
// HELPERS
// =========================================================================

// authed attaches a user id and, when id is set, a chi URL param.
func authed(req *http.Request, userID, id string) *http.Request {
	ctx := auth.WithUserID(req.Context(), userID)
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

// =========================================================================
// ERROR MAPPING
// =========================================================================

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		kind    string
		message string
	}{
		{"validation", apperror.ValidationFailed("title", "title is required"), http.StatusBadRequest, "validation_error", "title is required"},
		{"unauthorized", apperror.Unauthorized("invalid email or password"), http.StatusUnauthorized, "unauthorized", "invalid email or password"},
		{"forbidden", apperror.Forbidden("this journal is private"), http.StatusForbidden, "forbidden", "this journal is private"},
		{"not found", apperror.NotFound("mail", "m9"), http.StatusNotFound, "not_found", "mail not found with id m9"},
		{"conflict", apperror.Conflict("mail", "reward already claimed"), http.StatusConflict, "conflict", "mail: reward already claimed"},
		{"wrapped", fmt.Errorf("service: x: %w", apperror.NotFound("mail", "m9")), http.StatusNotFound, "not_found", "mail not found with id m9"},
		{"internal", errors.New("sql: connection refused"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewMailHandler(&fakeMailbox{err: tt.err}, discard)
			rr := httptest.NewRecorder()
			h.HandleMarkRead(rr, authed(httptest.NewRequest(http.MethodPut, "/api/mails/m9/read", nil), "u1", "m9"))

			assert.Equal(t, tt.status, rr.Code)
			body := decodeBody[handler.ErrorResponse](t, rr)
			assert.Equal(t, tt.kind, body.Error)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

// =========================================================================
// ACCOUNT
// =========================================================================

func TestHandleSignup(t *testing.T) {
	fake := &fakeAccounts{}
	h := handler.NewAccountHandler(fake, time.Hour, false, discard)

	body := `{"nickname":"Mira","email":"mira@example.com","password":"secret1","age":29,"subscribe":true}`
	rr := httptest.NewRecorder()
	h.HandleSignup(rr, httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, service.SignupInput{
		Nickname: "Mira", Email: "mira@example.com", Password: "secret1", Age: 29, Subscribe: true,
	}, fake.signupIn)

	res := decodeBody[struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}](t, rr)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, "tok", res.Token)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestHandleSignup_BadBody(t *testing.T) {
	h := handler.NewAccountHandler(&fakeAccounts{}, time.Hour, false, discard)

	for _, body := range []string{"", `{"nickname":`, `[1,2]`} {
		rr := httptest.NewRecorder()
		h.HandleSignup(rr, httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %q", body)
	}
}

func TestHandleSignup_TooLarge(t *testing.T) {
	h := handler.NewAccountHandler(&fakeAccounts{}, time.Hour, false, discard)

	body := `{"nickname":"` + strings.Repeat("a", 2<<20) + `"}`
	rr := httptest.NewRecorder()
	h.HandleSignup(rr, httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody[handler.ErrorResponse](t, rr).Message, "too large")
}

func TestHandleLogin(t *testing.T) {
	fake := &fakeAccounts{}
	h := handler.NewAccountHandler(fake, time.Hour, true, discard)

	rr := httptest.NewRecorder()
	h.HandleLogin(rr, httptest.NewRequest(http.MethodPost, "/api/login",
		bytes.NewBufferString(`{"email":"mira@example.com","password":"secret1"}`)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, [2]string{"mira@example.com", "secret1"}, fake.loginArgs)

	res := decodeBody[map[string]any](t, rr)
	assert.Equal(t, "tok", res["token"])
	assert.EqualValues(t, 10, res["coinsEarned"])
	assert.EqualValues(t, 0, res["streakBonus"])
	assert.EqualValues(t, 2, res["mailsQueued"])

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	fake := &fakeAccounts{err: apperror.Unauthorized("invalid email or password")}
	h := handler.NewAccountHandler(fake, time.Hour, false, discard)

	rr := httptest.NewRecorder()
	h.HandleLogin(rr, httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"mira@example.com","password":"nope"}`)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, rr.Result().Cookies(), "no cookie on failure")
}

func TestHandleLogout(t *testing.T) {
	h := handler.NewAccountHandler(&fakeAccounts{}, time.Hour, false, discard)

	rr := httptest.NewRecorder()
	h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestHandleMe(t *testing.T) {
	h := handler.NewAccountHandler(&fakeAccounts{}, time.Hour, false, discard)

	rr := httptest.NewRecorder()
	h.HandleMe(rr, authed(httptest.NewRequest(http.MethodGet, "/api/me", nil), "u1", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", decodeBody[model.User](t, rr).ID)

	rr = httptest.NewRecorder()
	h.HandleMe(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "no user in context")
}

func TestHandleAssignStory(t *testing.T) {
	fake := &fakeAccounts{}
	h := handler.NewAccountHandler(fake, time.Hour, false, discard)

	rr := httptest.NewRecorder()
	h.HandleAssignStory(rr, authed(httptest.NewRequest(http.MethodPut, "/api/me/story",
		strings.NewReader(`{"storyName":"Moonwake Adventures"}`)), "u1", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, [2]string{"u1", "Moonwake Adventures"}, fake.storyArgs)
	assert.Equal(t, 1, decodeBody[model.User](t, rr).StoryProgress.CurrentChapter)
}

func TestHandleUpdateProfile(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		err           error
		wantCode      int
		wantTheme     *string
		wantSubscribe *bool
	}{
		{
			name:      "theme only",
			body:      `{"activeMailTheme":"mailtheme_starry_night"}`,
			wantCode:  http.StatusOK,
			wantTheme: ptr("mailtheme_starry_night"),
		},
		{
			name:          "subscribe only",
			body:          `{"subscribe":false}`,
			wantCode:      http.StatusOK,
			wantSubscribe: ptr(false),
		},
		{
			name:     "unknown theme",
			body:     `{"activeMailTheme":"nope"}`,
			err:      apperror.ValidationFailed("activeMailTheme", "unknown mail theme"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad json",
			body:     `{"subscribe":`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAccounts{err: tt.err}
			h := handler.NewAccountHandler(fake, time.Hour, false, discard)

			rr := httptest.NewRecorder()
			h.HandleUpdateProfile(rr, authed(httptest.NewRequest(http.MethodPut, "/api/me",
				strings.NewReader(tt.body)), "u1", ""))

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantTheme, fake.profileIn.ActiveMailTheme)
			assert.Equal(t, tt.wantSubscribe, fake.profileIn.Subscribe)
		})
	}
}

func ptr[T any](v T) *T { return &v }

// =========================================================================
// JOURNALS
// =========================================================================

func TestHandleCreateJournal(t *testing.T) {
	fake := &fakeJournals{}
	h := handler.NewJournalHandler(fake, discard)

	body := `{"title":"Rain","content":"wet","mood":"Sad","tags":["weather"],"isPublic":true}`
	rr := httptest.NewRecorder()
	h.HandleCreate(rr, authed(httptest.NewRequest(http.MethodPost, "/api/journals", strings.NewReader(body)), "u1", ""))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, service.CreateJournalInput{
		Title: "Rain", Content: "wet", Mood: "Sad", Tags: []string{"weather"}, IsPublic: true,
	}, fake.createIn)
	assert.Equal(t, "j1", decodeBody[model.Journal](t, rr).ID)
}

func TestHandleListJournals(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		args   [2]int
	}{
		{"defaults", "", http.StatusOK, [2]int{0, 0}},
		{"paged", "?limit=10&offset=30", http.StatusOK, [2]int{10, 30}},
		{"bad limit", "?limit=ten", http.StatusBadRequest, [2]int{}},
		{"bad offset", "?offset=x", http.StatusBadRequest, [2]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeJournals{}
			h := handler.NewJournalHandler(fake, discard)

			rr := httptest.NewRecorder()
			h.HandleList(rr, authed(httptest.NewRequest(http.MethodGet, "/api/journals"+tt.query, nil), "u1", ""))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.args, fake.listArgs)
		})
	}
}

func TestHandleToggleLike(t *testing.T) {
	fake := &fakeJournals{}
	h := handler.NewJournalHandler(fake, discard)

	rr := httptest.NewRecorder()
	h.HandleToggleLike(rr, authed(httptest.NewRequest(http.MethodPost, "/api/journals/j7/like", nil), "u1", "j7"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "j7", fake.likeTarget)
	assert.JSONEq(t, `{"likeCount":5,"isLiked":true}`, rr.Body.String())
}

// =========================================================================
// MAIL
// =========================================================================

func TestHandleListMail(t *testing.T) {
	h := handler.NewMailHandler(&fakeMailbox{}, discard)

	rr := httptest.NewRecorder()
	h.HandleList(rr, authed(httptest.NewRequest(http.MethodGet, "/api/mails", nil), "u1", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeBody[[]map[string]any](t, rr)
	require.Len(t, items, 1)
	assert.Equal(t, "reward", items[0]["mailType"])
}

func TestHandleClaimReward(t *testing.T) {
	fake := &fakeMailbox{}
	h := handler.NewMailHandler(fake, discard)

	rr := httptest.NewRecorder()
	h.HandleClaimReward(rr, authed(httptest.NewRequest(http.MethodPut, "/api/mails/m1/claim-reward", nil), "u1", "m1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "m1", fake.lastID)
	assert.JSONEq(t, `{"rewardAmount":50,"newCoinsBalance":60}`, rr.Body.String())
}

func TestHandleDeleteMail(t *testing.T) {
	fake := &fakeMailbox{}
	h := handler.NewMailHandler(fake, discard)

	rr := httptest.NewRecorder()
	h.HandleDelete(rr, authed(httptest.NewRequest(http.MethodDelete, "/api/mails/m1", nil), "u1", "m1"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "m1", fake.lastID)
	assert.Empty(t, rr.Body.String())
}
