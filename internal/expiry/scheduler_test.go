package expiry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mim1012/dorami-sub000/internal/redisx"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

type fakeOrders struct {
	stale     []shop.Order
	staleErr  error
	expired   []string
	expireErr map[string]error
}

func (f *fakeOrders) StalePendingOrders(_ context.Context, _ time.Time) ([]shop.Order, error) {
	return f.stale, f.staleErr
}

func (f *fakeOrders) Expire(_ context.Context, orderID string) error {
	if err := f.expireErr[orderID]; err != nil {
		return err
	}
	f.expired = append(f.expired, orderID)
	return nil
}

func newTestScheduler(t *testing.T, orders *fakeOrders) (*Scheduler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &Scheduler{
		Orders:            orders,
		Redis:             rdb,
		ExpiryWindow:      24 * time.Hour,
		ExpiryInterval:    time.Minute,
		ReminderThreshold: 12 * time.Hour,
		ReminderInterval:  10 * time.Minute,
		ServiceName:       "test-scheduler",
		Now:               func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) },
	}, mr
}

func staleOrder(id string) shop.Order {
	return shop.Order{
		ID:        id,
		UserID:    "u1",
		Total:     10000,
		Status:    shop.OrderPendingPayment,
		CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestExpireOnceCancelsStaleOrders(t *testing.T) {
	orders := &fakeOrders{stale: []shop.Order{staleOrder("ORD-20260830-00001"), staleOrder("ORD-20260830-00002")}}
	s, _ := newTestScheduler(t, orders)

	require.NoError(t, s.ExpireOnce(context.Background()))
	assert.Equal(t, []string{"ORD-20260830-00001", "ORD-20260830-00002"}, orders.expired)
}

func TestExpireOnceSkipsOrdersWithLiveTimer(t *testing.T) {
	orders := &fakeOrders{stale: []shop.Order{staleOrder("ORD-20260830-00001"), staleOrder("ORD-20260830-00002")}}
	s, mr := newTestScheduler(t, orders)

	// a live payment timer means the window has not elapsed for this order
	mr.Set(fmt.Sprintf(redisx.KeyPaymentTimer, "ORD-20260830-00001"), "1")

	require.NoError(t, s.ExpireOnce(context.Background()))
	assert.Equal(t, []string{"ORD-20260830-00002"}, orders.expired)
}

func TestExpireOnceIsolatesPerOrderFailures(t *testing.T) {
	orders := &fakeOrders{
		stale: []shop.Order{
			staleOrder("ORD-20260830-00001"),
			staleOrder("ORD-20260830-00002"),
			staleOrder("ORD-20260830-00003"),
		},
		expireErr: map[string]error{"ORD-20260830-00002": errors.New("deadlock")},
	}
	s, _ := newTestScheduler(t, orders)

	require.NoError(t, s.ExpireOnce(context.Background()))
	assert.Equal(t, []string{"ORD-20260830-00001", "ORD-20260830-00003"}, orders.expired)
}

func TestExpireOncePropagatesQueryError(t *testing.T) {
	orders := &fakeOrders{staleErr: errors.New("db down")}
	s, _ := newTestScheduler(t, orders)

	assert.Error(t, s.ExpireOnce(context.Background()))
}

func TestRemindOnceMarksEachOrderOnce(t *testing.T) {
	orders := &fakeOrders{stale: []shop.Order{staleOrder("ORD-20260831-00001")}}
	s, mr := newTestScheduler(t, orders)
	ctx := context.Background()

	require.NoError(t, s.RemindOnce(ctx))
	assert.True(t, mr.Exists(fmt.Sprintf(redisx.KeyReminderSent, "ORD-20260831-00001")))

	// the second pass finds the marker and stays silent
	require.NoError(t, s.RemindOnce(ctx))

	ttl := mr.TTL(fmt.Sprintf(redisx.KeyReminderSent, "ORD-20260831-00001"))
	assert.Equal(t, redisx.TTLReminder, ttl)
}
