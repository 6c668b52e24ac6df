package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mim1012/dorami-sub000/internal/shop"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		kind shop.ErrKind
		want int
	}{
		{shop.KindProductNotFound, http.StatusNotFound},
		{shop.KindOrderNotFound, http.StatusNotFound},
		{shop.KindUserNotFound, http.StatusNotFound},
		{shop.KindCartItemNotFound, http.StatusNotFound},
		{shop.KindCartEmpty, http.StatusConflict},
		{shop.KindCartItemsExpired, http.StatusConflict},
		{shop.KindInsufficientStock, http.StatusConflict},
		{shop.KindInsufficientPoints, http.StatusConflict},
		{shop.KindAlreadyConfirmed, http.StatusConflict},
		{shop.KindInvalidTransition, http.StatusConflict},
		{shop.KindPointsDisabled, http.StatusUnprocessableEntity},
		{shop.KindPointsBelowMinimum, http.StatusUnprocessableEntity},
		{shop.KindPointsExceedMax, http.StatusUnprocessableEntity},
		{shop.KindInvalidQuantity, http.StatusBadRequest},
		{shop.ErrKind("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.kind), string(c.kind))
	}
}

func TestWriteErrDomainPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, shop.ErrInsufficientStock("p1", 2, 5))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error  string           `json:"error"`
		Detail shop.DomainError `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, shop.KindInsufficientStock, body.Detail.Kind)
	assert.Equal(t, 2, body.Detail.Available)
	assert.Equal(t, 5, body.Detail.Requested)
}

func TestWriteErrPlainErrorIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, errors.New("connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
