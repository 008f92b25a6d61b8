package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/engagement"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/repository"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 50_000
	MaxTags          = 20
)

// JournalService writes entries and handles likes.
type JournalService struct {
	store  repository.Store
	engine *engagement.Engine
	now    func() time.Time
	logger *slog.Logger
}

func NewJournalService(store repository.Store, engine *engagement.Engine, logger *slog.Logger) *JournalService {
	return &JournalService{
		store:  store,
		engine: engine,
		now:    time.Now,
		logger: logger,
	}
}

// CreateJournalInput is an entry as submitted by its author.
type CreateJournalInput struct {
	Title       string
	Content     string
	Mood        string
	Tags        []string
	Collections []string
	Theme       string
	IsPublic    bool
	AuthorName  string
}

// Create saves the entry and stamps the author's LastJournaled, in one
// transaction.
//
// Public entries carry an author name; when none is given the user's
// anonymous name is used.
func (s *JournalService) Create(ctx context.Context, userID string, in CreateJournalInput) (*model.Journal, error) {
	j, err := buildJournal(userID, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	j.Date = now

	_, err = updateUser(ctx, s.store, userID, func(ctx context.Context, r repository.Repos, u *model.User) (bool, error) {
		if j.IsPublic && j.AuthorName == "" {
			j.AuthorName = u.AnonymousName
			if j.AuthorName == "" {
				return false, apperror.ValidationFailed("authorName", "public entries need an author name")
			}
		}
		if err := r.Journals.Create(ctx, j); err != nil {
			return false, err
		}
		u.LastJournaled = &now
		return true, nil
	}, nil)
	if err != nil {
		return nil, failure(s.logger, "creating journal", err, slog.String("userID", userID))
	}

	s.logger.Info("journal created",
		slog.String("userID", userID),
		slog.String("journalID", j.ID),
		slog.String("mood", string(j.Mood)),
	)
	return j, nil
}

func buildJournal(userID string, in CreateJournalInput) (*model.Journal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len([]rune(title)) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if len(in.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d bytes or less", MaxContentLength))
	}
	mood, ok := model.ParseMood(in.Mood)
	if !ok {
		return nil, apperror.ValidationFailed("mood", fmt.Sprintf("unknown mood %q", in.Mood))
	}
	tags := cleanList(in.Tags)
	if len(tags) > MaxTags {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags", MaxTags))
	}

	collections := cleanList(in.Collections)
	if !slices.Contains(collections, model.DefaultCollection) {
		collections = append([]string{model.DefaultCollection}, collections...)
	}

	return &model.Journal{
		UserID:      userID,
		Title:       title,
		Content:     in.Content,
		Mood:        mood,
		Tags:        tags,
		Collections: collections,
		WordCount:   model.CountWords(in.Content),
		Theme:       strings.TrimSpace(in.Theme),
		IsPublic:    in.IsPublic,
		AuthorName:  strings.TrimSpace(in.AuthorName),
	}, nil
}

// cleanList trims, drops empties and removes duplicates, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// List returns the caller's own entries, newest first.
func (s *JournalService) List(ctx context.Context, userID string, limit, offset int) ([]model.Journal, error) {
	journals, err := s.store.Repos().Journals.ListByUser(ctx, userID, clampList(limit, offset))
	if err != nil {
		return nil, failure(s.logger, "listing journals", err, slog.String("userID", userID))
	}
	return journals, nil
}

// LikeResult is the journal's like state after a toggle.
type LikeResult struct {
	LikeCount int
	IsLiked   bool
}

// ToggleLike likes or unlikes journalID for userID. A like that lands on a
// threshold mails the author in the same transaction.
//
// Private entries can only be liked by their author.
func (s *JournalService) ToggleLike(ctx context.Context, journalID, userID string) (*LikeResult, error) {
	journalID = strings.TrimSpace(journalID)
	if journalID == "" {
		return nil, apperror.ValidationFailed("id", "journal ID is required")
	}

	now := s.now()
	var res LikeResult
	err := s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		j, err := r.Journals.GetByID(ctx, journalID)
		if err != nil {
			return err
		}
		if !j.IsPublic && j.UserID != userID {
			return apperror.Forbidden("this journal is private")
		}

		liked, count, err := r.Journals.ToggleLike(ctx, journalID, userID)
		if err != nil {
			return err
		}
		res = LikeResult{LikeCount: count, IsLiked: liked}
		if !liked || j.UserID == userID {
			return nil
		}

		author, err := r.Users.GetByID(ctx, j.UserID)
		if err != nil {
			return err
		}
		j.LikeCount = count
		_, err = r.Mails.Insert(ctx, s.engine.RunLike(author, *j, userID, now))
		return err
	})
	if err != nil {
		return nil, failure(s.logger, "toggling like", err,
			slog.String("journalID", journalID),
			slog.String("userID", userID),
		)
	}
	return &res, nil
}
