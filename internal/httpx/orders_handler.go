package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mim1012/dorami-sub000/internal/order"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

type OrdersHandler struct {
	Orders *order.Service
}

type CreateOrderReq struct {
	UserID      string         `json:"user_id"`
	Items       []shop.ItemQty `json:"items"`
	PointsToUse int            `json:"points_to_use"`
}

type CreateOrderFromCartReq struct {
	UserID      string `json:"user_id"`
	PointsToUse int    `json:"points_to_use"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Post("/orders/cart", h.createFromCart)
	r.Post("/orders/{id}/cancel", h.cancel)
	r.Post("/orders/{id}/confirm-payment", h.confirmPayment)
	r.Post("/orders/{id}/ship", h.ship)
	r.Post("/orders/{id}/deliver", h.deliver)
	r.Get("/orders/{id}", h.get)
	r.Get("/users/{userID}/orders", h.listByUser)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Create(ctx, req.UserID, req.Items, req.PointsToUse)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) createFromCart(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderFromCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.CreateFromCart(ctx, req.UserID, req.PointsToUse)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Orders.Cancel(ctx, orderID, req.UserID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.Orders.ConfirmPayment)
}

func (h *OrdersHandler) ship(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.Orders.MarkShipped)
}

func (h *OrdersHandler) deliver(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.Orders.MarkDelivered)
}

func (h *OrdersHandler) adminTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID string) (shop.Order, error)) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := fn(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Repo.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orders, err := h.Orders.Repo.ListByUser(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Orders.Repo.ListProducts(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
