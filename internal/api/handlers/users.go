package handlers

import (
	"net/http"

	"github.com/baharkarakas/coinmatch/internal/api/httpx"
	"github.com/baharkarakas/coinmatch/internal/api/validate"
	"github.com/baharkarakas/coinmatch/internal/models"
	"github.com/baharkarakas/coinmatch/internal/services"
	"github.com/go-chi/chi/v5"
)

type registerReq struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.Role == "" {
		req.Role = string(models.RoleStudent)
	}
	if err := validate.Collect(
		validate.Required("name", req.Name),
		validate.OneOf("role", req.Role, string(models.RoleStudent), string(models.RoleTutor)),
	); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.Users.Register(r.Context(), services.RegisterInput{ID: req.ID, Name: req.Name, Role: models.Role(req.Role)})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
