package handlers

import (
	"net/http"

	"github.com/baharkarakas/coinmatch/internal/api/httpx"
	"github.com/baharkarakas/coinmatch/internal/api/validate"
)

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Ledger.Balance(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

type purchaseReq struct {
	Amount           int64  `json:"amount"`
	PaymentReference string `json:"payment_reference"`
}

type balanceResp struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := validate.Collect(validate.Required("payment_reference", req.PaymentReference)); err != nil {
		h.writeError(w, r, err)
		return
	}
	uid := caller(r)
	bal, err := h.Ledger.Purchase(r.Context(), uid, req.Amount, req.PaymentReference)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, balanceResp{UserID: uid, Balance: bal})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	page, err := h.Ledger.History(r.Context(), caller(r), queryInt(r, "page", 1), queryInt(r, "page_size", 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}
