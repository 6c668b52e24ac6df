package shop

import "time"

type Product struct {
	ID          string
	Name        string
	Price       int
	ShippingFee int
	Quantity    int
	Status      ProductStatus // see status.go
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CartItem struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	// Price and fee are captured when the item enters the cart; later
	// product price changes never alter a pending cart's total.
	UnitPrice   int
	ShippingFee int
	ExpiresAt   *time.Time
	Status      CartItemStatus
	CreatedAt   time.Time
}

// BuyerSnapshot is copied onto the order at checkout. Orders stay readable
// even after the user edits their profile.
type BuyerSnapshot struct {
	Email         string `json:"email"`
	DepositorName string `json:"depositor_name"`
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	AddressDetail string `json:"address_detail"`
	PostalCode    string `json:"postal_code"`
}

type Order struct {
	ID             string // ORD-YYYYMMDD-NNNNN
	UserID         string
	Buyer          BuyerSnapshot
	Subtotal       int
	ShippingFee    int
	Total          int // subtotal + shipping_fee - points_used
	PointsUsed     int
	PointsEarned   int
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	ShippingStatus ShippingStatus
	CreatedAt      time.Time
	PaidAt         *time.Time
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	Items          []OrderItem
}

// OrderItem rows are never edited after insert; corrections happen through
// order status transitions.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   int
	ShippingFee int
}

type Reservation struct {
	ID        string
	UserID    string
	ProductID string
	// Number is per-product monotonic, display only; queue order comes from
	// the waitlist sorted set, not from this.
	Number     int64
	Status     ReservationStatus
	PromotedAt *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// PointBalance is a materialized cache of the transaction ledger sum.
// Invariant: CurrentBalance == LifetimeEarned - LifetimeUsed - LifetimeExpired.
type PointBalance struct {
	UserID          string
	CurrentBalance  int
	LifetimeEarned  int
	LifetimeUsed    int
	LifetimeExpired int
}

// PointTransaction is append-only.
type PointTransaction struct {
	ID           string
	UserID       string
	Amount       int // signed
	BalanceAfter int
	Type         PointTxType
	OrderID      string
	Description  string
	CreatedAt    time.Time
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}
