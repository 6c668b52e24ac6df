package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mim1012/dorami-sub000/internal/waitlist"
)

type WaitlistHandler struct {
	Queue *waitlist.Queue
}

type JoinWaitlistReq struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

func (h *WaitlistHandler) Register(r *chi.Mux) {
	r.Post("/waitlist", h.join)
	r.Get("/waitlist/{productID}/position", h.position)
	r.Delete("/waitlist", h.leave)
	r.Post("/waitlist/{productID}/promote", h.promote)
}

func (h *WaitlistHandler) join(w http.ResponseWriter, r *http.Request) {
	var req JoinWaitlistReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id or product_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, pos, err := h.Queue.Join(ctx, req.UserID, req.ProductID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"reservation": res,
		"position":    pos,
	})
}

func (h *WaitlistHandler) position(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	pos, err := h.Queue.Position(ctx, userID, chi.URLParam(r, "productID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"position": pos})
}

func (h *WaitlistHandler) leave(w http.ResponseWriter, r *http.Request) {
	var req JoinWaitlistReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Queue.Cancel(ctx, req.UserID, req.ProductID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *WaitlistHandler) promote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Queue.PromoteNext(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if res == nil {
		writeJSON(w, http.StatusOK, map[string]any{"promoted": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promoted": res})
}
