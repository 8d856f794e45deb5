package handlers

import (
	"context"
	"net/http"

	"github.com/baharkarakas/coinmatch/internal/api/httpx"
	"github.com/baharkarakas/coinmatch/internal/api/validate"
	"github.com/baharkarakas/coinmatch/internal/models"
	"github.com/baharkarakas/coinmatch/internal/services"
	"github.com/go-chi/chi/v5"
)

type sendReq struct {
	TutorID      string  `json:"tutor_id"`
	Message      string  `json:"message"`
	ScheduleNote *string `json:"schedule_note,omitempty"`
}

func (h *Handler) SendMatchRequest(w http.ResponseWriter, r *http.Request) {
	var req sendReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := validate.Collect(validate.Required("tutor_id", req.TutorID)); err != nil {
		h.writeError(w, r, err)
		return
	}
	mr, err := h.Matches.Send(r.Context(), services.SendInput{
		StudentID:    caller(r),
		TutorID:      req.TutorID,
		Message:      req.Message,
		ScheduleNote: req.ScheduleNote,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, mr)
}

func (h *Handler) ListMatchRequests(w http.ResponseWriter, r *http.Request) {
	as := r.URL.Query().Get("as")
	if as == "" {
		as = "student"
	}
	if err := validate.Collect(validate.OneOf("as", as, "student", "tutor")); err != nil {
		h.writeError(w, r, err)
		return
	}

	var (
		rows []models.MatchRequest
		err  error
	)
	if as == "tutor" {
		rows, err = h.Matches.ListForTutor(r.Context(), caller(r))
	} else {
		rows, err = h.Matches.ListForStudent(r.Context(), caller(r))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) GetMatchRequest(w http.ResponseWriter, r *http.Request) {
	mr, err := h.Matches.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && caller(r) != mr.StudentID && caller(r) != mr.TutorID {
		err = errForbidden
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mr)
}

type transitionFunc func(ctx context.Context, id string) (models.MatchRequest, error)

// transition runs op after checking the caller is the party allowed to make
// it: the tutor for approve/reject, the student for cancel.
func (h *Handler) transition(op transitionFunc, byTutor bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		mr, err := h.Matches.Get(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		owner := mr.StudentID
		if byTutor {
			owner = mr.TutorID
		}
		if caller(r) != owner {
			h.writeError(w, r, errForbidden)
			return
		}
		mr, err = op(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, mr)
	}
}

func (h *Handler) ApproveMatchRequest() http.HandlerFunc { return h.transition(h.Matches.Approve, true) }

func (h *Handler) RejectMatchRequest() http.HandlerFunc { return h.transition(h.Matches.Reject, true) }

func (h *Handler) CancelMatchRequest() http.HandlerFunc { return h.transition(h.Matches.Cancel, false) }
