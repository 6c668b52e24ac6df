package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mim1012/dorami-sub000/internal/redisx"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

// Store is the durable side of the queue: Reservation rows kept for audit and
// for rebuilding after a coordination-store restart. Ordering authority stays
// with the Redis sorted set.
type Store interface {
	ProductExists(ctx context.Context, productID string) (bool, error)
	CreateReservation(ctx context.Context, r shop.Reservation) error
	PromoteReservation(ctx context.Context, userID, productID string, promotedAt, expiresAt time.Time) (shop.Reservation, error)
	CancelReservation(ctx context.Context, userID, productID string) error
}

// Queue is the FIFO waiting list per sold-out product. Arrival time is the
// sorted-set score, so earlier joiners always pop first.
type Queue struct {
	Redis  *redis.Client
	Store  Store
	Window time.Duration // completion window stamped on a promotion

	Now func() time.Time
}

func (q *Queue) nowUTC() time.Time {
	if q.Now != nil {
		return q.Now().UTC()
	}
	return time.Now().UTC()
}

// Join enqueues the user and returns their 1-based position. Re-joining
// while already waiting keeps the original position.
func (q *Queue) Join(ctx context.Context, userID, productID string) (shop.Reservation, int64, error) {
	ok, err := q.Store.ProductExists(ctx, productID)
	if err != nil {
		return shop.Reservation{}, 0, err
	}
	if !ok {
		return shop.Reservation{}, 0, shop.ErrProductNotFound(productID)
	}

	now := q.nowUTC()
	key := fmt.Sprintf(redisx.KeyWaitlist, productID)
	added, err := q.Redis.ZAddNX(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: userID,
	}).Result()
	if err != nil {
		return shop.Reservation{}, 0, fmt.Errorf("join waitlist %s: %w", productID, err)
	}

	var res shop.Reservation
	if added > 0 {
		num, err := q.Redis.Incr(ctx, fmt.Sprintf(redisx.KeyReservationSeq, productID)).Result()
		if err != nil {
			return shop.Reservation{}, 0, fmt.Errorf("reservation number %s: %w", productID, err)
		}
		res = shop.Reservation{
			UserID:    userID,
			ProductID: productID,
			Number:    num,
			Status:    shop.ReservationWaiting,
			CreatedAt: now,
		}
		if err := q.Store.CreateReservation(ctx, res); err != nil {
			// Roll the zset entry back so fast store and rows do not diverge.
			_ = q.Redis.ZRem(ctx, key, userID).Err()
			return shop.Reservation{}, 0, err
		}
	}

	pos, err := q.Position(ctx, userID, productID)
	if err != nil {
		return shop.Reservation{}, 0, err
	}
	return res, pos, nil
}

// PromoteNext pops the earliest waiter and flips them to PROMOTED with a
// completion deadline. Returns nil when nobody is waiting.
//
// Not idempotent: each call consumes one waiter. The caller owns calling it
// exactly once per unit of freed stock.
func (q *Queue) PromoteNext(ctx context.Context, productID string) (*shop.Reservation, error) {
	key := fmt.Sprintf(redisx.KeyWaitlist, productID)
	popped, err := q.Redis.ZPopMin(ctx, key, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("pop waitlist %s: %w", productID, err)
	}
	if len(popped) == 0 {
		return nil, nil
	}

	userID, _ := popped[0].Member.(string)
	now := q.nowUTC()
	window := q.Window
	if window <= 0 {
		window = 10 * time.Minute
	}
	res, err := q.Store.PromoteReservation(ctx, userID, productID, now, now.Add(window))
	if err != nil {
		// Put the waiter back at their original score; losing the zset entry
		// while the row stays WAITING would drop them from the queue for good.
		_ = q.Redis.ZAdd(ctx, key, popped[0]).Err()
		return nil, err
	}
	return &res, nil
}

// Position returns the 1-based rank, or 0 when the user is not waiting.
func (q *Queue) Position(ctx context.Context, userID, productID string) (int64, error) {
	key := fmt.Sprintf(redisx.KeyWaitlist, productID)
	rank, err := q.Redis.ZRank(ctx, key, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rank waitlist %s: %w", productID, err)
	}
	return rank + 1, nil
}

// Cancel removes the user from the sorted set and marks the durable row
// CANCELLED as one logical operation. A later re-join gets a new position.
func (q *Queue) Cancel(ctx context.Context, userID, productID string) error {
	key := fmt.Sprintf(redisx.KeyWaitlist, productID)
	removed, err := q.Redis.ZRem(ctx, key, userID).Result()
	if err != nil {
		return fmt.Errorf("leave waitlist %s: %w", productID, err)
	}
	if removed == 0 {
		return nil
	}
	return q.Store.CancelReservation(ctx, userID, productID)
}
