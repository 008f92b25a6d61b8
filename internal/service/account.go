package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/auth"
	"github.com/sakif/starlit/internal/catalog"
	"github.com/sakif/starlit/internal/engagement"
	"github.com/sakif/starlit/internal/mailer"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/repository"
)

const (
	MaxNicknameLength = 40
	MinPasswordLength = 6

	// maxSaveAttempts bounds the optimistic-concurrency retry loop. Losing
	// three races in a row means something is hammering the row.
	maxSaveAttempts = 3
)

// AccountService handles signup, login and the profile.
//
//	AccountHandler (HTTP) → AccountService → repository.Store (one tx per operation)
//	                                       ↘ engagement.Engine (welcome batch, login run)
//	                                       ↘ auth (passwords, tokens)
//	                                       ↘ mailer (email copies of summaries)
type AccountService struct {
	store     repository.Store
	engine    *engagement.Engine
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	cat       *catalog.Catalog
	mail      mailer.Mailer
	rnd       engagement.Rand
	locks     *userLocks
	now       func() time.Time
	logger    *slog.Logger
}

func NewAccountService(
	store repository.Store,
	engine *engagement.Engine,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	cat *catalog.Catalog,
	mail mailer.Mailer,
	logger *slog.Logger,
) *AccountService {
	if mail == nil {
		mail = mailer.Disabled{}
	}
	return &AccountService{
		store:     store,
		engine:    engine,
		tokens:    tokens,
		passwords: passwords,
		cat:       cat,
		mail:      mail,
		rnd:       engagement.DefaultRand(),
		locks:     newUserLocks(),
		now:       time.Now,
		logger:    logger,
	}
}

// SignupInput is the registration form.
type SignupInput struct {
	Nickname  string
	Email     string
	Password  string
	Age       int
	Gender    string
	Subscribe bool
}

// AuthResult is returned by Signup.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginResult is returned by Login.
type LoginResult struct {
	User        *model.User
	Token       string
	CoinsEarned int
	// StreakBonus is always 0; the daily reward is reported in CoinsEarned.
	// Kept so existing clients that read the field keep working.
	StreakBonus int
	MailsQueued int
}

// Signup creates the account and its welcome mails in one transaction.
//
// LastVisited is left nil, so the first login counts as day one of the
// streak and pays the daily reward.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Email = normalizeEmail(in.Email)

	if err := validateSignup(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	user := &model.User{
		Nickname:      in.Nickname,
		Email:         in.Email,
		Password:      hash,
		Age:           in.Age,
		Gender:        strings.TrimSpace(in.Gender),
		Subscribe:     in.Subscribe,
		AnonymousName: AnonymousName(in.Nickname, s.rnd),
		Inventory:     model.DefaultInventory(),
	}

	now := s.now()
	var queued int
	err = s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		inserted, err := r.Mails.Insert(ctx, s.engine.WelcomeBatch(user, now))
		if err != nil {
			return err
		}
		queued = len(inserted)
		return nil
	})
	if err != nil {
		return nil, s.fail("signup", err, slog.String("email", in.Email))
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, s.fail("signup", err, slog.String("userID", user.ID))
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.Int("mails", queued),
	)
	return &AuthResult{User: user, Token: token}, nil
}

func validateSignup(in SignupInput) error {
	if in.Nickname == "" {
		return apperror.ValidationFailed("nickname", "nickname is required")
	}
	if len([]rune(in.Nickname)) > MaxNicknameLength {
		return apperror.ValidationFailed("nickname",
			fmt.Sprintf("nickname must be %d characters or less", MaxNicknameLength))
	}
	if !looksLikeEmail(in.Email) {
		return apperror.ValidationFailed("email", "a valid email is required")
	}
	if len(in.Password) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if in.Age < 0 {
		return apperror.ValidationFailed("age", "age cannot be negative")
	}
	return nil
}

// Login checks the credentials, runs the engagement engine and issues a
// token.
//
// LOGIN PIPELINE:
//  1. Verify the password. Legacy plaintext rows are rehashed on the spot.
//  2. Take the per-user lock.
//  3. In one transaction: reload the user, run the engine, save the user
//     at the version it was read at, insert the mails.
//  4. On a version clash, start step 3 over with a fresh read.
//  5. After commit, email copies of new summary mails to subscribers.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, s.fail("login", err, slog.String("email", email))
	}

	needsRehash, err := s.passwords.Verify(user.Password, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("login rejected", slog.String("userID", user.ID))
			return nil, errBadCredentials
		}
		return nil, s.fail("login", err, slog.String("userID", user.ID))
	}
	if needsRehash {
		s.upgradePassword(ctx, user.ID, password)
	}

	userID := user.ID
	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.now()
	var (
		res      engagement.LoginResult
		inserted []model.Mail
	)
	user, err = updateUser(ctx, s.store, userID, func(ctx context.Context, r repository.Repos, u *model.User) (bool, error) {
		res = s.engine.RunLogin(ctx, u, now, history{r})
		return true, nil
	}, func(ctx context.Context, r repository.Repos) error {
		var err error
		inserted, err = r.Mails.Insert(ctx, res.Mails)
		return err
	})
	if err != nil {
		return nil, s.fail("login", err, slog.String("userID", userID))
	}

	s.emailCopies(ctx, user, inserted)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, s.fail("login", err, slog.String("userID", user.ID))
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.Int("streak", user.CurrentStreak),
		slog.Int("coinsEarned", res.CoinsEarned),
		slog.Int("mails", len(inserted)),
	)
	return &LoginResult{
		User:        user,
		Token:       token,
		CoinsEarned: res.CoinsEarned,
		MailsQueued: len(inserted),
	}, nil
}

var errBadCredentials = apperror.Unauthorized("invalid email or password")

// upgradePassword replaces a legacy plaintext password with its hash. A
// failure is logged and retried on the next login.
func (s *AccountService) upgradePassword(ctx context.Context, userID, plaintext string) {
	hash, err := s.passwords.Hash(plaintext)
	if err == nil {
		err = s.store.Repos().Users.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn("password upgrade failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("legacy password rehashed", slog.String("userID", userID))
}

// emailCopies sends weekly summaries to users who opted in to email.
// The in-app mail is already committed; a send failure only loses the copy.
func (s *AccountService) emailCopies(ctx context.Context, u *model.User, mails []model.Mail) {
	if !u.Subscribe || !s.mail.Enabled() {
		return
	}
	for _, m := range mails {
		if m.Type != model.MailSummary {
			continue
		}
		err := s.mail.Send(ctx, mailer.Message{
			To:      u.Email,
			Subject: m.Title,
			HTML:    m.Content,
			Text:    mailer.PlainText(m.Content),
		})
		if err != nil {
			s.logger.Warn("summary email failed",
				slog.String("userID", u.ID),
				slog.String("mailID", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Me returns the caller's profile.
func (s *AccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.fail("loading profile", err, slog.String("userID", userID))
	}
	return u, nil
}

// ProfileInput carries the profile fields a user may change. Nil fields
// are left as they are.
type ProfileInput struct {
	ActiveMailTheme *string
	Subscribe       *bool
}

// UpdateProfile changes the mail theme and the email subscription. The
// theme must exist in the catalog; an empty theme switches skins off.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	var theme string
	if in.ActiveMailTheme != nil {
		theme = strings.TrimSpace(*in.ActiveMailTheme)
		if _, ok := s.cat.Theme(theme); theme != "" && !ok {
			return nil, apperror.ValidationFailed("activeMailTheme", fmt.Sprintf("unknown mail theme %q", theme))
		}
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	u, err := updateUser(ctx, s.store, userID, func(_ context.Context, _ repository.Repos, u *model.User) (bool, error) {
		changed := false
		if in.ActiveMailTheme != nil && u.ActiveMailTheme != theme {
			u.ActiveMailTheme = theme
			changed = true
		}
		if in.Subscribe != nil && u.Subscribe != *in.Subscribe {
			u.Subscribe = *in.Subscribe
			changed = true
		}
		return changed, nil
	}, nil)
	if err != nil {
		return nil, s.fail("updating profile", err, slog.String("userID", userID))
	}
	return u, nil
}

// AssignStory starts storyName at chapter 1. Re-assigning the story that
// is already in progress leaves the progress alone.
func (s *AccountService) AssignStory(ctx context.Context, userID, storyName string) (*model.User, error) {
	storyName = strings.TrimSpace(storyName)
	if _, ok := s.cat.Story(storyName); !ok {
		return nil, apperror.ValidationFailed("storyName", fmt.Sprintf("unknown story %q", storyName))
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	u, err := updateUser(ctx, s.store, userID, func(_ context.Context, _ repository.Repos, u *model.User) (bool, error) {
		if u.StoryProgress.StoryName == storyName && !u.StoryProgress.IsComplete {
			return false, nil
		}
		assigned := s.now()
		u.StoryProgress = model.StoryProgress{StoryName: storyName, CurrentChapter: 1, AssignedAt: &assigned}
		return true, nil
	}, nil)
	if err != nil {
		return nil, s.fail("assigning story", err, slog.String("userID", userID))
	}

	s.logger.Info("story assigned",
		slog.String("userID", userID),
		slog.String("story", storyName),
	)
	return u, nil
}

// fail logs infrastructure errors and wraps them. Domain errors pass
// through untouched: they are answers, not failures.
func (s *AccountService) fail(action string, err error, attrs ...any) error {
	return failure(s.logger, action, err, attrs...)
}

func failure(logger *slog.Logger, action string, err error, attrs ...any) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	logger.Error(action+" failed", append(attrs, slog.String("error", err.Error()))...)
	return fmt.Errorf("service: %s: %w", action, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func looksLikeEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

// updateUser reads userID, lets mutate change it, and saves it at the
// version it was read at, all inside one transaction. after, when set,
// runs in the same transaction once the save succeeded. A version clash
// reruns the whole transaction against a fresh read.
//
// mutate returns false when there is nothing to save.
func updateUser(
	ctx context.Context,
	store repository.Store,
	userID string,
	mutate func(ctx context.Context, r repository.Repos, u *model.User) (bool, error),
	after func(ctx context.Context, r repository.Repos) error,
) (*model.User, error) {
	var (
		saved *model.User
		err   error
	)
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		err = store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
			u, err := r.Users.GetByID(ctx, userID)
			if err != nil {
				return err
			}
			changed, err := mutate(ctx, r, u)
			if err != nil {
				return err
			}
			if changed {
				if err := r.Users.SaveEngagement(ctx, u); err != nil {
					return err
				}
			}
			if after != nil {
				if err := after(ctx, r); err != nil {
					return err
				}
			}
			saved = u
			return nil
		})
		if !errors.Is(err, repository.ErrStaleUser) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return saved, nil
}
