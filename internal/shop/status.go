package shop

type ProductStatus string

const (
	ProductAvailable ProductStatus = "AVAILABLE"
	ProductSoldOut   ProductStatus = "SOLD_OUT"
)

type CartItemStatus string

const (
	CartItemActive    CartItemStatus = "ACTIVE"
	CartItemExpired   CartItemStatus = "EXPIRED"
	CartItemCompleted CartItemStatus = "COMPLETED"
)

type OrderStatus string

const (
	OrderPendingPayment   OrderStatus = "PENDING_PAYMENT"
	OrderPaymentConfirmed OrderStatus = "PAYMENT_CONFIRMED"
	OrderShipped          OrderStatus = "SHIPPED"
	OrderDelivered        OrderStatus = "DELIVERED"
	OrderCancelled        OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
)

type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "PENDING"
	ShippingShipped   ShippingStatus = "SHIPPED"
	ShippingDelivered ShippingStatus = "DELIVERED"
)

type ReservationStatus string

const (
	ReservationWaiting   ReservationStatus = "WAITING"
	ReservationPromoted  ReservationStatus = "PROMOTED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

type PointTxType string

const (
	PointEarnedOrder     PointTxType = "EARNED_ORDER"
	PointUsedOrder       PointTxType = "USED_ORDER"
	PointExpired         PointTxType = "EXPIRED"
	PointAdminAdjust     PointTxType = "ADMIN_ADJUST"
	PointCancelledRefund PointTxType = "CANCELLED_REFUND"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPendingPayment:   {OrderPaymentConfirmed: true, OrderCancelled: true},
	OrderPaymentConfirmed: {OrderShipped: true, OrderCancelled: true},
	OrderShipped:          {OrderDelivered: true},
	OrderDelivered:        {},
	OrderCancelled:        {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}
