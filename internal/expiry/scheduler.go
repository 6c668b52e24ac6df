package expiry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	kafkax "github.com/mim1012/dorami-sub000/internal/kafka"
	"github.com/mim1012/dorami-sub000/internal/redisx"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

// Orders is the slice of the order service the scheduler needs.
type Orders interface {
	StalePendingOrders(ctx context.Context, cutoff time.Time) ([]shop.Order, error)
	Expire(ctx context.Context, orderID string) error
}

// Scheduler owns the two recurring jobs: cancelling stale unpaid orders and
// sending one-time payment reminders. A failure on one order is logged and
// the batch continues.
type Scheduler struct {
	Orders   Orders
	Redis    *redis.Client
	Reminder *kafkax.Producer // publishes order.payment.reminder

	ExpiryWindow      time.Duration
	ExpiryInterval    time.Duration
	ReminderThreshold time.Duration
	ReminderInterval  time.Duration

	ServiceName string
	Now         func() time.Time
}

func (s *Scheduler) nowUTC() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(ctx, s.ExpiryInterval, s.ExpireOnce) })
	g.Go(func() error { return s.loop(ctx, s.ReminderInterval, s.RemindOnce) })
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context) error) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := tick(ctx); err != nil {
				log.Printf("scheduler tick: %v", err)
			}
		}
	}
}

// ExpireOnce cancels orders still PENDING_PAYMENT past the expiry window.
// A live payment-timer marker means the window has not elapsed yet (or the
// order progressed); those are skipped.
func (s *Scheduler) ExpireOnce(ctx context.Context) error {
	cutoff := s.nowUTC().Add(-s.ExpiryWindow)
	stale, err := s.Orders.StalePendingOrders(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stale orders: %w", err)
	}

	for _, o := range stale {
		live, err := redisx.Exists(ctx, s.Redis, fmt.Sprintf(redisx.KeyPaymentTimer, o.ID))
		if err != nil {
			log.Printf("expire %s: payment timer check: %v", o.ID, err)
			continue
		}
		if live {
			continue
		}
		if err := s.Orders.Expire(ctx, o.ID); err != nil {
			// Isolate the failure; the rest of the batch still runs.
			log.Printf("expire %s: %v", o.ID, err)
			continue
		}
		log.Printf("expired order %s (created %s)", o.ID, o.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// RemindOnce sends at most one payment reminder per unpaid order older than
// the threshold. The Redis marker decides which pass sends it.
func (s *Scheduler) RemindOnce(ctx context.Context) error {
	cutoff := s.nowUTC().Add(-s.ReminderThreshold)
	unpaid, err := s.Orders.StalePendingOrders(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find unpaid orders: %w", err)
	}

	for _, o := range unpaid {
		won, err := redisx.SetMarkerNX(ctx, s.Redis, fmt.Sprintf(redisx.KeyReminderSent, o.ID), redisx.TTLReminder)
		if err != nil {
			log.Printf("remind %s: marker: %v", o.ID, err)
			continue
		}
		if !won {
			continue
		}
		s.publishReminder(o)
	}
	return nil
}

func (s *Scheduler) publishReminder(o shop.Order) {
	if s.Reminder == nil {
		return
	}
	env := shop.NewEnvelope(shop.EventPaymentReminder, s.ServiceName, "", o.ID,
		shop.PaymentReminderPayload{OrderID: o.ID, UserID: o.UserID, Total: o.Total})
	s.Reminder.Publish(shop.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventPaymentReminder)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
