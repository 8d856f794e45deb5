package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/coinmatch/internal/api/httpx"
	"github.com/baharkarakas/coinmatch/internal/api/validate"
	"github.com/baharkarakas/coinmatch/internal/services"
	"github.com/go-chi/chi/v5"
)

type bookReq struct {
	MatchRequestID string    `json:"match_request_id"`
	CoinCost       int64     `json:"coin_cost"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

func (h *Handler) BookLesson(w http.ResponseWriter, r *http.Request) {
	var req bookReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := validate.Collect(
		validate.Required("match_request_id", req.MatchRequestID),
		validate.MinInt("coin_cost", req.CoinCost, 0),
	); err != nil {
		h.writeError(w, r, err)
		return
	}
	mr, err := h.Matches.Get(r.Context(), req.MatchRequestID)
	if err == nil && mr.StudentID != caller(r) {
		err = errForbidden
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	l, err := h.Settlement.BookLesson(r.Context(), services.BookInput{
		MatchRequestID: req.MatchRequestID,
		CoinCost:       req.CoinCost,
		ScheduledAt:    req.ScheduledAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := h.Settlement.GetLesson(r.Context(), id)
	if err == nil && caller(r) != l.StudentID && caller(r) != l.TutorID {
		err = errForbidden
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	l, err = h.Settlement.CompleteLesson(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}
