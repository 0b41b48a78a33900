package handler

import (
	"net/http"
	"strconv"

	"github.com/go-bookstore-admin/internal/application/cleanup"
)

type CleanupHandler struct {
	svc cleanup.Service
}

func NewCleanupHandler(svc cleanup.Service) *CleanupHandler {
	return &CleanupHandler{svc: svc}
}

type cleanupEnvelope struct {
	Job     string `json:"job"`
	Deleted int    `json:"deleted"`
}

func (h *CleanupHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.RunAll(r.Context()))
}

func (h *CleanupHandler) ExpiredOtps(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ExpiredOtps(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupEnvelope{Job: "expired_otps", Deleted: n})
}

func (h *CleanupHandler) OldUsedOtps(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.OldUsedOtps(r.Context(), ageDays(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupEnvelope{Job: "old_used_otps", Deleted: n})
}

func (h *CleanupHandler) ExpiredAuthSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ExpiredAuthSessions(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupEnvelope{Job: "expired_auth_sessions", Deleted: n})
}

func (h *CleanupHandler) OldAuthSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.OldAuthSessions(r.Context(), ageDays(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupEnvelope{Job: "old_auth_sessions", Deleted: n})
}

func (h *CleanupHandler) ExpiredLoginSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ExpiredLoginSessions(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupEnvelope{Job: "expired_login_sessions", Deleted: n})
}

func ageDays(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("age_days"))
	return n
}
