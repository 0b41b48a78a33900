package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-bookstore-admin/internal/application/invite"
	"github.com/go-bookstore-admin/internal/pkg/validate"
	"github.com/go-bookstore-admin/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

type InviteHandler struct {
	svc invite.Service
}

func NewInviteHandler(svc invite.Service) *InviteHandler {
	return &InviteHandler{svc: svc}
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invite.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	inv, err := h.svc.Create(r.Context(), req, p.User.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	invites, err := h.svc.List(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PageEnvelope{Data: invites})
}

func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Revoke(r.Context(), chi.URLParam(r, "email")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "invite revoked"})
}
