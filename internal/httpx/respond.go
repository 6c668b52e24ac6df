package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/mim1012/dorami-sub000/internal/shop"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain error kinds onto HTTP statuses and ships the
// structured payload through so clients can render exact messages.
func writeErr(w http.ResponseWriter, err error) {
	de, ok := shop.AsDomain(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, statusFor(de.Kind), map[string]any{"error": de.Error(), "detail": de})
}

func statusFor(kind shop.ErrKind) int {
	switch kind {
	case shop.KindProductNotFound, shop.KindOrderNotFound, shop.KindUserNotFound, shop.KindCartItemNotFound:
		return http.StatusNotFound
	case shop.KindCartEmpty, shop.KindCartItemsExpired, shop.KindInsufficientStock,
		shop.KindInsufficientPoints, shop.KindAlreadyConfirmed, shop.KindInvalidTransition:
		return http.StatusConflict
	case shop.KindPointsDisabled, shop.KindPointsBelowMinimum, shop.KindPointsExceedMax:
		return http.StatusUnprocessableEntity
	case shop.KindInvalidQuantity:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
