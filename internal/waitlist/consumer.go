package waitlist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/mim1012/dorami-sub000/internal/kafka"
	"github.com/mim1012/dorami-sub000/internal/redisx"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

// Consumer promotes waiters when cancellations free stock. It is attached as
// the handler of the order.cancelled consumer group.
type Consumer struct {
	Queue       *Queue
	Redis       *redis.Client
	Producer    *kafkax.Producer // publishes reservation.promoted
	ServiceName string
}

// HandleOrderCancelled promotes one waiter per released unit. PromoteNext is
// not idempotent, so the event is deduplicated by event id first.
func (c *Consumer) HandleOrderCancelled(ctx context.Context, m kafkago.Message) error {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != shop.EventOrderCancelled {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "waitlist", env.EventID)
	won, err := redisx.SetMarkerNX(ctx, c.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	p, err := kafkax.UnwrapPayload[shop.OrderCancelledPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, it := range p.Items {
		for i := 0; i < it.Qty; i++ {
			res, err := c.Queue.PromoteNext(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if res == nil {
				break // nobody waiting for this product
			}
			log.Printf("promoted reservation %s user=%s product=%s", res.ID, res.UserID, res.ProductID)
			c.publishPromoted(*res, env.TraceID)
		}
	}
	return nil
}

func (c *Consumer) publishPromoted(res shop.Reservation, trace string) {
	if c.Producer == nil {
		return
	}
	env := shop.NewEnvelope(shop.EventReservationPromoted, c.ServiceName, trace, res.ProductID,
		shop.ReservationPromotedPayload{
			ReservationID: res.ID,
			UserID:        res.UserID,
			ProductID:     res.ProductID,
			ExpiresAt:     derefTime(res.ExpiresAt),
		})
	c.Producer.Publish(shop.PartitionKey(res.ProductID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventReservationPromoted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
