package waitlist

import (
	"context"
	"encoding/json"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mim1012/dorami-sub000/internal/shop"
)

func cancelledMessage(t *testing.T, eventID string, items []shop.ItemQty) kafkago.Message {
	t.Helper()
	env := shop.NewEnvelope(shop.EventOrderCancelled, "test-api", "", "ORD-20260901-00001",
		shop.OrderCancelledPayload{OrderID: "ORD-20260901-00001", UserID: "u1", Items: items})
	if eventID != "" {
		env.EventID = eventID
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestHandleOrderCancelledPromotesPerUnit(t *testing.T) {
	store := newFakeStore("p1")
	q := newTestQueue(t, store)
	c := &Consumer{Queue: q, Redis: q.Redis, ServiceName: "test-waitlist"}
	ctx := context.Background()

	for _, user := range []string{"alice", "bob", "carol"} {
		_, _, err := q.Join(ctx, user, "p1")
		require.NoError(t, err)
	}

	// two freed units promote exactly the first two waiters
	err := c.HandleOrderCancelled(ctx, cancelledMessage(t, "", []shop.ItemQty{{ProductID: "p1", Qty: 2}}))
	require.NoError(t, err)

	assert.Equal(t, shop.ReservationPromoted, store.rows["alice|p1"].Status)
	assert.Equal(t, shop.ReservationPromoted, store.rows["bob|p1"].Status)
	assert.Equal(t, shop.ReservationWaiting, store.rows["carol|p1"].Status)
}

func TestHandleOrderCancelledStopsWhenQueueDrains(t *testing.T) {
	store := newFakeStore("p1")
	q := newTestQueue(t, store)
	c := &Consumer{Queue: q, Redis: q.Redis, ServiceName: "test-waitlist"}
	ctx := context.Background()

	_, _, err := q.Join(ctx, "alice", "p1")
	require.NoError(t, err)

	// more units freed than waiters; the surplus is dropped silently
	err = c.HandleOrderCancelled(ctx, cancelledMessage(t, "", []shop.ItemQty{{ProductID: "p1", Qty: 5}}))
	require.NoError(t, err)
	assert.Equal(t, shop.ReservationPromoted, store.rows["alice|p1"].Status)
}

func TestHandleOrderCancelledDeduplicatesByEventID(t *testing.T) {
	store := newFakeStore("p1")
	q := newTestQueue(t, store)
	c := &Consumer{Queue: q, Redis: q.Redis, ServiceName: "test-waitlist"}
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		_, _, err := q.Join(ctx, user, "p1")
		require.NoError(t, err)
	}

	msg := cancelledMessage(t, "evt-1", []shop.ItemQty{{ProductID: "p1", Qty: 1}})
	require.NoError(t, c.HandleOrderCancelled(ctx, msg))
	// redelivery of the same event must not consume a second waiter
	require.NoError(t, c.HandleOrderCancelled(ctx, msg))

	assert.Equal(t, shop.ReservationPromoted, store.rows["alice|p1"].Status)
	assert.Equal(t, shop.ReservationWaiting, store.rows["bob|p1"].Status)
}

func TestHandleOrderCancelledIgnoresOtherEventTypes(t *testing.T) {
	store := newFakeStore("p1")
	q := newTestQueue(t, store)
	c := &Consumer{Queue: q, Redis: q.Redis, ServiceName: "test-waitlist"}
	ctx := context.Background()

	_, _, err := q.Join(ctx, "alice", "p1")
	require.NoError(t, err)

	env := shop.NewEnvelope(shop.EventOrderPaid, "test-api", "", "ORD-20260901-00001",
		shop.OrderPaidPayload{OrderID: "ORD-20260901-00001"})
	b, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, c.HandleOrderCancelled(ctx, kafkago.Message{Value: b}))
	assert.Equal(t, shop.ReservationWaiting, store.rows["alice|p1"].Status)
}
