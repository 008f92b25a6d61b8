package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/starlit/internal/auth"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/service"
)

// Accounts is the slice of service.AccountService the handlers use.
type Accounts interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Me(ctx context.Context, userID string) (*model.User, error)
	AssignStory(ctx context.Context, userID, storyName string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, in service.ProfileInput) (*model.User, error)
}

// AccountHandler serves signup, login, logout and the profile.
//
// TOKENS:
// Signup and login return the JWT in the body for API clients AND set it
// as an HttpOnly cookie for the browser. JavaScript cannot read an
// HttpOnly cookie, so an XSS bug cannot steal the session.
type AccountHandler struct {
	accounts     Accounts
	tokenTTL     time.Duration
	secureCookie bool
	logger       *slog.Logger
}

// NewAccountHandler wires the handler. secureCookie should be true
// whenever the app is served over HTTPS.
func NewAccountHandler(accounts Accounts, tokenTTL time.Duration, secureCookie bool, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type signupRequest struct {
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Subscribe bool   `json:"subscribe"`
}

type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// HandleSignup creates an account.
//
// HTTP: POST /api/signup → 201 {user, token}
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Signup(r.Context(), service.SignupInput{
		Nickname:  req.Nickname,
		Email:     req.Email,
		Password:  req.Password,
		Age:       req.Age,
		Gender:    req.Gender,
		Subscribe: req.Subscribe,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, authResponse{User: res.User, Token: res.Token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User        *model.User `json:"user"`
	Token       string      `json:"token"`
	CoinsEarned int         `json:"coinsEarned"`
	StreakBonus int         `json:"streakBonus"`
	MailsQueued int         `json:"mailsQueued"`
}

// HandleLogin verifies credentials and runs the daily engagement pass.
//
// HTTP: POST /api/login → 200 {user, token, coinsEarned, streakBonus, mailsQueued}
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, loginResponse{
		User:        res.User,
		Token:       res.Token,
		CoinsEarned: res.CoinsEarned,
		StreakBonus: res.StreakBonus,
		MailsQueued: res.MailsQueued,
	})
}

// HandleLogout clears the session cookie. Bearer tokens stay valid until
// they expire; the client simply forgets them.
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /api/me
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := h.accounts.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// updateProfileRequest uses pointers so an omitted field is left alone.
type updateProfileRequest struct {
	ActiveMailTheme *string `json:"activeMailTheme"`
	Subscribe       *bool   `json:"subscribe"`
}

// HandleUpdateProfile changes the caller's mail theme and subscription.
//
// HTTP: PUT /api/me {activeMailTheme?, subscribe?}
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.accounts.UpdateProfile(r.Context(), userID, service.ProfileInput{
		ActiveMailTheme: req.ActiveMailTheme,
		Subscribe:       req.Subscribe,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type assignStoryRequest struct {
	StoryName string `json:"storyName"`
}

// HandleAssignStory starts a story for the caller.
//
// HTTP: PUT /api/me/story {storyName}
func (h *AccountHandler) HandleAssignStory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req assignStoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.accounts.AssignStory(r.Context(), userID, req.StoryName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AccountHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
