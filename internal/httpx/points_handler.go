package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mim1012/dorami-sub000/internal/points"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

type PointsHandler struct {
	Ledger *points.Ledger
}

type PointsMutationReq struct {
	UserID      string `json:"user_id"`
	Amount      int    `json:"amount"`
	Type        string `json:"type"`
	OrderID     string `json:"order_id"`
	Description string `json:"description"`
}

type ValidateRedemptionReq struct {
	UserID      string `json:"user_id"`
	PointsToUse int    `json:"points_to_use"`
	OrderTotal  int    `json:"order_total"`
}

func (h *PointsHandler) Register(r *chi.Mux) {
	r.Post("/points/add", h.add)
	r.Post("/points/deduct", h.deduct)
	r.Post("/points/validate", h.validate)
	r.Get("/points/{userID}", h.balance)
	r.Get("/points/{userID}/history", h.history)
}

func (h *PointsHandler) add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Ledger.Add, shop.PointAdminAdjust)
}

func (h *PointsHandler) deduct(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Ledger.Deduct, shop.PointUsedOrder)
}

func (h *PointsHandler) mutate(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, userID string, amount int, txType shop.PointTxType, orderID, desc string) (shop.PointBalance, error),
	defType shop.PointTxType,
) {
	var req PointsMutationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}
	txType := defType
	if req.Type != "" {
		txType = shop.PointTxType(req.Type)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bal, err := fn(ctx, req.UserID, req.Amount, txType, req.OrderID, req.Description)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (h *PointsHandler) validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRedemptionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Ledger.ValidateRedemption(ctx, req.UserID, req.PointsToUse, req.OrderTotal); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *PointsHandler) balance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bal, err := h.Ledger.Balance(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (h *PointsHandler) history(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	txs, err := h.Ledger.History(ctx, chi.URLParam(r, "userID"), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}
