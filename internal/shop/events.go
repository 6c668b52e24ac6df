package shop

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated        = "OrderCreated"
	EventOrderPaid           = "OrderPaid"
	EventOrderCancelled      = "OrderCancelled"
	EventPaymentReminder     = "PaymentReminder"
	EventReservationPromoted = "ReservationPromoted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or product_id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload into a v1 envelope. Marshal failure of our own
// payload types is a programming error, hence the panic.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}
}

// ---- payload types per event ----

type ItemAtPurchase struct {
	ProductID       string `json:"product_id"`
	Qty             int    `json:"qty"`
	PriceAtPurchase int    `json:"price_at_purchase"`
}

type OrderCreatedPayload struct {
	OrderID string           `json:"order_id"`
	UserID  string           `json:"user_id"`
	Total   int              `json:"total"`
	Items   []ItemAtPurchase `json:"items"`
}

type OrderPaidPayload struct {
	OrderID      string `json:"order_id"`
	UserID       string `json:"user_id"`
	Total        int    `json:"total"`
	PointsEarned int    `json:"points_earned"`
}

type OrderCancelledPayload struct {
	OrderID string    `json:"order_id"`
	UserID  string    `json:"user_id"`
	Items   []ItemQty `json:"items"`
}

type PaymentReminderPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Total   int    `json:"total"`
}

type ReservationPromotedPayload struct {
	ReservationID string    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	ProductID     string    `json:"product_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}
