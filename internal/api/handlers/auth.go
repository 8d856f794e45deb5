package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/coinmatch/internal/api/httpx"
	"github.com/baharkarakas/coinmatch/internal/auth"
	"github.com/baharkarakas/coinmatch/internal/services"
)

type AuthHandler struct {
	TM     *auth.TokenManager
	Users  *services.UserService
	AppEnv string
	h      *Handler
}

func NewAuthHandler(tm *auth.TokenManager, users *services.UserService, appEnv string, h *Handler) *AuthHandler {
	return &AuthHandler{TM: tm, Users: users, AppEnv: appEnv, h: h}
}

type loginReq struct {
	UserID string `json:"user_id"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues tokens for a directory user. Credentials are handled by the
// surrounding platform, so outside dev it is not available.
func (a *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if a.AppEnv != "dev" {
		httpx.WriteError(w, http.StatusNotImplemented, "not_implemented", "login is provided by the identity platform", nil)
		return
	}
	var req loginReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.UserID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "user_id required", nil)
		return
	}
	u, err := a.Users.Get(r.Context(), req.UserID)
	if err != nil {
		a.h.writeError(w, r, err)
		return
	}
	a.issue(w, r, u.ID, string(u.Role))
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "refresh_token required", nil)
		return
	}
	claims, err := a.TM.ParseRefresh(req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
		return
	}
	a.issue(w, r, claims.UserID, claims.Role)
}

func (a *AuthHandler) issue(w http.ResponseWriter, r *http.Request, userID, role string) {
	access, refresh, exp, err := a.TM.GeneratePair(userID, role)
	if err != nil {
		a.h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Truncate(time.Second).Seconds()),
	})
}
