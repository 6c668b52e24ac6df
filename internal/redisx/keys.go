package redisx

import "time"

const (
	// Daily order-number counter: seq:order:{yyyymmdd} -> int64.
	// Two concurrent checkouts on the same day never get the same number.
	KeyOrderSeq = "seq:order:%s"

	// Per-product reservation-number counter: seq:reservation:{product_id}.
	KeyReservationSeq = "seq:reservation:%s"

	// Payment timer per order: order:payment_timer:{order_id}.
	// While the key lives, the expiry sweep leaves the order alone.
	KeyPaymentTimer = "order:payment_timer:%s"

	// At-most-once reminder marker: order:reminder:{order_id}.
	KeyReminderSent = "order:reminder:%s"

	// Waiting list per sold-out product: waitlist:{product_id},
	// sorted set of user ids scored by arrival time.
	KeyWaitlist = "waitlist:%s"

	// Dedup event processing: dedup:{service}:{event_id}.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderSeq = 48 * time.Hour
	TTLReminder = 48 * time.Hour
	TTLDedup    = 48 * time.Hour
)
