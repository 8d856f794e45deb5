package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/baharkarakas/coinmatch/internal/api/httpx"
	"github.com/baharkarakas/coinmatch/internal/api/validate"
	"github.com/baharkarakas/coinmatch/internal/middleware"
	"github.com/baharkarakas/coinmatch/internal/services"
)

var errForbidden = errors.New("forbidden")

type Handler struct {
	Users         *services.UserService
	Ledger        *services.LedgerService
	Matches       *services.MatchService
	Settlement    *services.SettlementService
	Notifications *services.NotificationService
	Log           *slog.Logger
}

// writeError maps service errors onto HTTP statuses. Anything unmapped is
// logged and reported as 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fields validate.Errs
	if errors.As(err, &fields) {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", "validation failed", fields)
		return
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTutorNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, services.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, services.ErrDuplicatePendingRequest):
		status, code = http.StatusConflict, "duplicate_pending_request"
	case errors.Is(err, services.ErrInsufficientFunds):
		status, code = http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, services.ErrPaymentDeclined):
		status, code = http.StatusPaymentRequired, "payment_declined"
	case errors.Is(err, services.ErrMessageTooShort):
		status, code = http.StatusUnprocessableEntity, "message_too_short"
	case errors.Is(err, services.ErrInvalidAmount):
		status, code = http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, services.ErrInvalidInput):
		status, code = http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, errForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrSettlementFailed):
		status, code = http.StatusInternalServerError, "settlement_failed"
	}

	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", "path", r.URL.Path, "request_id", middleware.RequestIDFrom(r.Context()), "err", err)
		if code == "internal_error" {
			httpx.WriteError(w, status, code, "internal error", nil)
			return
		}
	}
	httpx.WriteError(w, status, code, err.Error(), nil)
}

func badRequest(w http.ResponseWriter, err error) {
	httpx.WriteError(w, http.StatusBadRequest, "bad_request", "malformed request body", err.Error())
}

// caller is set by the auth middleware on every protected route.
func caller(r *http.Request) string {
	u, _ := middleware.FromCtx(r.Context())
	return u.UserID
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return n
}
