package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mim1012/dorami-sub000/internal/inventory"
)

// StockHandler exposes admin stock mutations directly on inventory control.
type StockHandler struct {
	Inv *inventory.Repo
}

type StockReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Post("/stock/decrease", h.decrease)
	r.Post("/stock/restore", h.restore)
}

func (h *StockHandler) decrease(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Inv.Decrease)
}

func (h *StockHandler) restore(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Inv.Restore)
}

func (h *StockHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, productID string, qty int) (inventory.Level, error)) {
	var req StockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lv, err := fn(ctx, req.ProductID, req.Qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lv)
}
