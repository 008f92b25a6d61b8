package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/service"
)

// Journals is the slice of service.JournalService the handlers use.
type Journals interface {
	Create(ctx context.Context, userID string, in service.CreateJournalInput) (*model.Journal, error)
	List(ctx context.Context, userID string, limit, offset int) ([]model.Journal, error)
	ToggleLike(ctx context.Context, journalID, userID string) (*service.LikeResult, error)
}

type JournalHandler struct {
	journals Journals
	logger   *slog.Logger
}

func NewJournalHandler(journals Journals, logger *slog.Logger) *JournalHandler {
	return &JournalHandler{journals: journals, logger: logger}
}

type createJournalRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Mood        string   `json:"mood"`
	Tags        []string `json:"tags"`
	Collections []string `json:"collections"`
	Theme       string   `json:"theme"`
	IsPublic    bool     `json:"isPublic"`
	AuthorName  string   `json:"authorName"`
}

// HandleCreate saves a new entry.
//
// HTTP: POST /api/journals → 201 journal
func (h *JournalHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createJournalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	j, err := h.journals.Create(r.Context(), userID, service.CreateJournalInput{
		Title:       req.Title,
		Content:     req.Content,
		Mood:        req.Mood,
		Tags:        req.Tags,
		Collections: req.Collections,
		Theme:       req.Theme,
		IsPublic:    req.IsPublic,
		AuthorName:  req.AuthorName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// HandleList returns the caller's entries, newest first.
//
// HTTP: GET /api/journals?limit=20&offset=0
//
// Missing parameters fall back to the service defaults; garbage is a 400.
func (h *JournalHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	journals, err := h.journals.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, journals)
}

type likeResponse struct {
	LikeCount int  `json:"likeCount"`
	IsLiked   bool `json:"isLiked"`
}

// HandleToggleLike likes or unlikes an entry.
//
// HTTP: POST /api/journals/{id}/like → {likeCount, isLiked}
func (h *JournalHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.journals.ToggleLike(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{LikeCount: res.LikeCount, IsLiked: res.IsLiked})
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
