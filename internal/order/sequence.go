package order

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mim1012/dorami-sub000/internal/redisx"
)

// Sequence hands out order ids of the form ORD-YYYYMMDD-NNNNN. The counter is
// a per-day Redis INCR, so concurrent checkouts always get distinct numbers
// and the sequence resets daily. A failed checkout after the INCR leaves an
// unused number; gaps are fine, duplicates are not.
type Sequence struct {
	Redis *redis.Client
}

var OrderIDPattern = regexp.MustCompile(`^ORD-\d{8}-\d{5}$`)

func (s *Sequence) NextOrderID(ctx context.Context, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")
	key := fmt.Sprintf(redisx.KeyOrderSeq, day)

	n, err := s.Redis.Incr(ctx, key).Result()
	if err != nil {
		// A duplicate order id is worse than a failed checkout: the whole
		// operation fails when the counter is unreachable.
		return "", fmt.Errorf("order sequence: %w", err)
	}
	if n == 1 {
		_ = s.Redis.Expire(ctx, key, redisx.TTLOrderSeq).Err()
	}
	return fmt.Sprintf("ORD-%s-%05d", day, n), nil
}
