package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/starlit/internal/model"
	"github.com/sakif/starlit/internal/service"
)

// Mailbox is the slice of service.MailService the handlers use.
type Mailbox interface {
	List(ctx context.Context, userID string) ([]model.InboxItem, error)
	MarkRead(ctx context.Context, mailID, userID string) error
	ClaimReward(ctx context.Context, mailID, userID string) (*service.ClaimResult, error)
	Delete(ctx context.Context, mailID, userID string) error
}

// MailHandler serves the inbox. Every route acts on the caller's own
// recipient copy; the mail id alone grants nothing.
type MailHandler struct {
	mails  Mailbox
	logger *slog.Logger
}

func NewMailHandler(mails Mailbox, logger *slog.Logger) *MailHandler {
	return &MailHandler{mails: mails, logger: logger}
}

// HandleList returns the inbox.
//
// HTTP: GET /api/mails
func (h *MailHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	items, err := h.mails.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleMarkRead flags one mail as read.
//
// HTTP: PUT /api/mails/{id}/read
func (h *MailHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.mails.MarkRead(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "mail marked as read"})
}

type claimResponse struct {
	RewardAmount    int `json:"rewardAmount"`
	NewCoinsBalance int `json:"newCoinsBalance"`
}

// HandleClaimReward pays out the mail's coins.
//
// HTTP: PUT /api/mails/{id}/claim-reward → {rewardAmount, newCoinsBalance}
func (h *MailHandler) HandleClaimReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.mails.ClaimReward(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		RewardAmount:    res.RewardAmount,
		NewCoinsBalance: res.NewCoinsBalance,
	})
}

// HandleDelete removes the caller's copy.
//
// HTTP: DELETE /api/mails/{id} → 204
func (h *MailHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.mails.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
