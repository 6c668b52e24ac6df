package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mim1012/dorami-sub000/internal/shop"
	"github.com/mim1012/dorami-sub000/internal/testutil"
)

func newTestPgStore(t *testing.T) (*PgStore, context.Context) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	return &PgStore{DB: pool}, ctx
}

func TestPgStoreProductExists(t *testing.T) {
	s, ctx := newTestPgStore(t)
	pid := testutil.InsertProduct(t, ctx, s.DB, "drop item", 50000, 0, 0)

	ok, err := s.ProductExists(ctx, pid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ProductExists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPgStorePromoteFlipsLatestWaitingRow(t *testing.T) {
	s, ctx := newTestPgStore(t)

	require.NoError(t, s.CreateReservation(ctx, shop.Reservation{
		UserID: "alice", ProductID: "p1", Number: 1, Status: shop.ReservationWaiting,
	}))

	now := time.Now().UTC().Truncate(time.Millisecond)
	r, err := s.PromoteReservation(ctx, "alice", "p1", now, now.Add(10*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, shop.ReservationPromoted, r.Status)
	assert.Equal(t, int64(1), r.Number)
	require.NotNil(t, r.ExpiresAt)
	assert.WithinDuration(t, now.Add(10*time.Minute), *r.ExpiresAt, time.Second)

	// no WAITING row left to promote
	_, err = s.PromoteReservation(ctx, "alice", "p1", now, now.Add(10*time.Minute))
	assert.Error(t, err)
}

func TestPgStoreCancelOnlyTouchesWaitingRows(t *testing.T) {
	s, ctx := newTestPgStore(t)

	require.NoError(t, s.CreateReservation(ctx, shop.Reservation{
		UserID: "alice", ProductID: "p1", Number: 1, Status: shop.ReservationWaiting,
	}))
	now := time.Now().UTC()
	_, err := s.PromoteReservation(ctx, "alice", "p1", now, now.Add(10*time.Minute))
	require.NoError(t, err)

	// cancelling after promotion is a no-op on the promoted row
	require.NoError(t, s.CancelReservation(ctx, "alice", "p1"))

	var status string
	require.NoError(t, s.DB.QueryRow(ctx,
		`SELECT status FROM reservations WHERE user_id='alice' AND product_id='p1'`).Scan(&status))
	assert.Equal(t, string(shop.ReservationPromoted), status)
}
