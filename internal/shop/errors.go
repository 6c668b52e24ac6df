package shop

import (
	"errors"
	"fmt"
)

// ErrKind tags deterministic domain failures. Callers match on the kind and
// render the structured fields; infra errors stay plain wrapped errors.
type ErrKind string

const (
	KindProductNotFound    ErrKind = "PRODUCT_NOT_FOUND"
	KindOrderNotFound      ErrKind = "ORDER_NOT_FOUND"
	KindUserNotFound       ErrKind = "USER_NOT_FOUND"
	KindCartItemNotFound   ErrKind = "CART_ITEM_NOT_FOUND"
	KindCartEmpty          ErrKind = "CART_EMPTY"
	KindCartItemsExpired   ErrKind = "CART_ITEMS_EXPIRED"
	KindInsufficientStock  ErrKind = "INSUFFICIENT_STOCK"
	KindInsufficientPoints ErrKind = "INSUFFICIENT_POINTS"
	KindPointsDisabled     ErrKind = "POINTS_DISABLED"
	KindPointsBelowMinimum ErrKind = "POINTS_BELOW_MINIMUM"
	KindPointsExceedMax    ErrKind = "POINTS_EXCEED_MAX"
	KindAlreadyConfirmed   ErrKind = "PAYMENT_ALREADY_CONFIRMED"
	KindInvalidQuantity    ErrKind = "INVALID_QUANTITY"
	KindInvalidTransition  ErrKind = "INVALID_TRANSITION"
)

type DomainError struct {
	Kind      ErrKind `json:"kind"`
	ProductID string  `json:"product_id,omitempty"`
	OrderID   string  `json:"order_id,omitempty"`
	UserID    string  `json:"user_id,omitempty"`
	Available int     `json:"available,omitempty"`
	Requested int     `json:"requested,omitempty"`
}

func (e *DomainError) Error() string {
	switch e.Kind {
	case KindInsufficientStock:
		return fmt.Sprintf("insufficient stock for product %s: available=%d requested=%d", e.ProductID, e.Available, e.Requested)
	case KindInsufficientPoints:
		return fmt.Sprintf("insufficient points for user %s: available=%d requested=%d", e.UserID, e.Available, e.Requested)
	case KindProductNotFound:
		return fmt.Sprintf("product not found: %s", e.ProductID)
	case KindOrderNotFound:
		return fmt.Sprintf("order not found: %s", e.OrderID)
	case KindUserNotFound:
		return fmt.Sprintf("user not found: %s", e.UserID)
	default:
		return string(e.Kind)
	}
}

func ErrProductNotFound(productID string) *DomainError {
	return &DomainError{Kind: KindProductNotFound, ProductID: productID}
}

func ErrOrderNotFound(orderID string) *DomainError {
	return &DomainError{Kind: KindOrderNotFound, OrderID: orderID}
}

func ErrUserNotFound(userID string) *DomainError {
	return &DomainError{Kind: KindUserNotFound, UserID: userID}
}

func ErrInsufficientStock(productID string, available, requested int) *DomainError {
	return &DomainError{Kind: KindInsufficientStock, ProductID: productID, Available: available, Requested: requested}
}

func ErrInsufficientPoints(userID string, available, requested int) *DomainError {
	return &DomainError{Kind: KindInsufficientPoints, UserID: userID, Available: available, Requested: requested}
}

// IsKind reports whether err is a DomainError with the given kind.
func IsKind(err error, kind ErrKind) bool {
	de, ok := AsDomain(err)
	return ok && de.Kind == kind
}

func AsDomain(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
