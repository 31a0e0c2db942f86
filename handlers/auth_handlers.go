package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/haniwon/clinic-server/auth"
	"github.com/haniwon/clinic-server/logging"
	"github.com/haniwon/clinic-server/store"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string             `json:"token"`
	Account *store.StaffAccount `json:"account"`
}

// Login serves POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	account, err := h.db.GetStaffAccountByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		// Same response for unknown user and wrong password.
		h.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !account.IsActive {
		h.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := auth.CheckPassword(account.PasswordHash, req.Password); err != nil {
		logging.Warn("Failed login attempt", "username", req.Username, "remote_addr", r.RemoteAddr)
		h.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.sessions.IssueToken(account.ID, account.Username, account.Role)
	if err != nil {
		logging.Error("Failed to issue session token", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.db.TouchStaffLogin(r.Context(), account.ID, time.Now()); err != nil {
		logging.Warn("Failed to record login time", "username", account.Username, "error", err)
	}

	h.RespondWithJSON(w, http.StatusOK, loginResponse{Token: token, Account: account})
}

// Logout serves POST /api/auth/logout. The token is revoked until it would
// have expired anyway.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	h.sessions.Revoke(claims)
	h.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// CurrentAccount serves GET /api/auth/me.
func (h *Handler) CurrentAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	account, err := h.db.GetStaffAccount(r.Context(), claims.AccountID)
	if err != nil {
		h.storeError(w, err, "Account not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, account)
}

type createStaffRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

// CreateStaffAccount serves POST /api/staff (admin only).
func (h *Handler) CreateStaffAccount(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Username) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Username cannot be empty")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	account := &store.StaffAccount{
		Username:     strings.TrimSpace(req.Username),
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         auth.ParseRole(req.Role),
		IsActive:     true,
	}

	if err := h.db.CreateStaffAccount(r.Context(), account); err != nil {
		h.RespondWithError(w, http.StatusConflict, "Username already exists")
		return
	}

	logging.Info("Staff account created", "username", account.Username, "role", account.Role)
	h.RespondWithJSON(w, http.StatusCreated, account)
}

// ListStaffAccounts serves GET /api/staff (admin only).
func (h *Handler) ListStaffAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.db.ListStaffAccounts(r.Context())
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, accounts)
}

type setActiveRequest struct {
	IsActive bool `json:"isActive"`
}

// SetStaffActive serves PUT /api/staff/{id}/active (admin only).
func (h *Handler) SetStaffActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claims, _ := ClaimsFromContext(r.Context())
	if claims != nil && claims.AccountID == id {
		h.RespondWithError(w, http.StatusBadRequest, "Cannot deactivate your own account")
		return
	}

	var req setActiveRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.db.SetStaffActive(r.Context(), id, req.IsActive); err != nil {
		h.storeError(w, err, "Account not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"id": id, "isActive": req.IsActive})
}
