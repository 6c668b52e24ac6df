package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/mim1012/dorami-sub000/internal/inventory"
	kafkax "github.com/mim1012/dorami-sub000/internal/kafka"
	"github.com/mim1012/dorami-sub000/internal/points"
	"github.com/mim1012/dorami-sub000/internal/postgres"
	"github.com/mim1012/dorami-sub000/internal/redisx"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

// Producers fan out domain events, one producer per topic.
type Producers struct {
	Created   *kafkax.Producer
	Paid      *kafkax.Producer
	Cancelled *kafkax.Producer
}

// Service assembles orders: stock, order rows, points debit commit together
// or not at all. Events are published strictly after commit.
type Service struct {
	DB        *pgxpool.Pool
	Repo      *Repo
	Inventory *inventory.Repo
	Points    *points.Ledger
	Seq       *Sequence
	Redis     *redis.Client
	Producers Producers

	ServiceName     string
	TxTimeout       time.Duration
	ExpiryWindow    time.Duration
	EarnRatePercent int

	// Now is overridable in tests; zero value means time.Now.
	Now func() time.Time
}

func (s *Service) nowUTC() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) txCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.TxTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Create builds an order from an explicit item list. Stock is decremented in
// the same transaction as the order insert: both commit or both roll back.
func (s *Service) Create(ctx context.Context, userID string, items []shop.ItemQty, pointsToUse int) (shop.Order, error) {
	if len(items) == 0 {
		return shop.Order{}, &shop.DomainError{Kind: shop.KindCartEmpty, UserID: userID}
	}

	buyer, err := s.Repo.GetBuyer(ctx, userID)
	if err != nil {
		return shop.Order{}, err
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Repo.ResolveProducts(ctx, ids)
	if err != nil {
		return shop.Order{}, err
	}

	orderItems := make([]shop.OrderItem, 0, len(items))
	for _, it := range items {
		p := products[it.ProductID]
		orderItems = append(orderItems, shop.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Qty,
			UnitPrice:   p.Price,
			ShippingFee: p.ShippingFee,
		})
	}

	o, err := s.assemble(ctx, userID, buyer, orderItems, pointsToUse, func(txCtx context.Context, tx pgx.Tx) error {
		return s.Inventory.BatchDecreaseTx(txCtx, tx, items)
	})
	if err != nil {
		return shop.Order{}, err
	}
	return o, nil
}

// CreateFromCart builds an order from the user's ACTIVE cart rows. This path
// records the order without re-checking stock: the cart model treats stock
// as reserved at add time.
func (s *Service) CreateFromCart(ctx context.Context, userID string, pointsToUse int) (shop.Order, error) {
	buyer, err := s.Repo.GetBuyer(ctx, userID)
	if err != nil {
		return shop.Order{}, err
	}

	cart, err := s.Repo.CartForUser(ctx, userID)
	if err != nil {
		return shop.Order{}, err
	}
	orderItems, cartIDs, err := s.cartToOrderItems(ctx, userID, cart)
	if err != nil {
		return shop.Order{}, err
	}

	o, err := s.assemble(ctx, userID, buyer, orderItems, pointsToUse, func(txCtx context.Context, tx pgx.Tx) error {
		// Re-select inside the transaction; a row completed by a concurrent
		// checkout must not be billed twice.
		inTx, err := s.Repo.ActiveCartItemsTx(txCtx, tx, userID)
		if err != nil {
			return err
		}
		if len(inTx) != len(cartIDs) {
			return &shop.DomainError{Kind: shop.KindCartEmpty, UserID: userID}
		}
		return s.Repo.CompleteCartItemsTx(txCtx, tx, cartIDs)
	})
	if err != nil {
		return shop.Order{}, err
	}
	return o, nil
}

func (s *Service) cartToOrderItems(ctx context.Context, userID string, cart []shop.CartItem) ([]shop.OrderItem, []string, error) {
	if len(cart) == 0 {
		return nil, nil, &shop.DomainError{Kind: shop.KindCartEmpty, UserID: userID}
	}
	now := s.nowUTC()
	for _, it := range cart {
		// Expired rows fail the whole assembly; dropping them silently would
		// bill a cart the shopper no longer sees.
		if it.ExpiresAt != nil && it.ExpiresAt.Before(now) {
			return nil, nil, &shop.DomainError{Kind: shop.KindCartItemsExpired, UserID: userID, ProductID: it.ProductID}
		}
	}

	ids := make([]string, 0, len(cart))
	for _, it := range cart {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Repo.ResolveProducts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	orderItems := make([]shop.OrderItem, 0, len(cart))
	cartIDs := make([]string, 0, len(cart))
	for _, it := range cart {
		orderItems = append(orderItems, shop.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   it.ProductID,
			ProductName: products[it.ProductID].Name,
			Quantity:    it.Quantity,
			// Captured-at-add-time values, not current product prices.
			UnitPrice:   it.UnitPrice,
			ShippingFee: it.ShippingFee,
		})
		cartIDs = append(cartIDs, it.ID)
	}
	return orderItems, cartIDs, nil
}

// assemble is the shared tail of both checkout paths: totals, points
// pre-check, order id, one transaction, then marker + event.
func (s *Service) assemble(ctx context.Context, userID string, buyer shop.BuyerSnapshot, items []shop.OrderItem, pointsToUse int, inTx func(context.Context, pgx.Tx) error) (shop.Order, error) {
	subtotal, shippingFee := computeTotals(items)
	total := subtotal + shippingFee

	if pointsToUse > 0 {
		// Cheap pre-check before the transaction opens; the debit inside the
		// transaction re-reads the balance for real.
		if err := s.Points.ValidateRedemption(ctx, userID, pointsToUse, total); err != nil {
			return shop.Order{}, err
		}
	}

	now := s.nowUTC()
	orderID, err := s.Seq.NextOrderID(ctx, now)
	if err != nil {
		return shop.Order{}, err
	}

	o := shop.Order{
		ID:             orderID,
		UserID:         userID,
		Buyer:          buyer,
		Subtotal:       subtotal,
		ShippingFee:    shippingFee,
		Total:          total - pointsToUse,
		PointsUsed:     pointsToUse,
		Status:         shop.OrderPendingPayment,
		PaymentStatus:  shop.PaymentPending,
		ShippingStatus: shop.ShippingPending,
		CreatedAt:      now,
		Items:          items,
	}
	for i := range o.Items {
		o.Items[i].OrderID = orderID
	}

	txCtx, cancel := s.txCtx(ctx)
	defer cancel()
	err = postgres.WithTx(txCtx, s.DB, func(tx pgx.Tx) error {
		if err := inTx(txCtx, tx); err != nil {
			return err
		}
		if err := s.Repo.InsertOrderTx(txCtx, tx, o); err != nil {
			return err
		}
		if pointsToUse > 0 {
			if _, err := s.Points.DeductTx(txCtx, tx, userID, pointsToUse, shop.PointUsedOrder, orderID, "order payment"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return shop.Order{}, err
	}

	s.armPaymentTimer(ctx, orderID)
	s.publish(s.Producers.Created, shop.NewEnvelope(
		shop.EventOrderCreated, s.ServiceName, "", orderID,
		shop.OrderCreatedPayload{OrderID: orderID, UserID: userID, Total: o.Total, Items: itemsAtPurchase(items)},
	))
	return o, nil
}

// Cancel reverses the stock effect of checkout and refunds used points.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) error {
	o, err := s.finishOrder(ctx, orderID, func(o shop.Order) error {
		if o.UserID != userID {
			return shop.ErrOrderNotFound(orderID)
		}
		if o.PaymentStatus == shop.PaymentConfirmed {
			return &shop.DomainError{Kind: shop.KindAlreadyConfirmed, OrderID: orderID}
		}
		if !shop.CanTransition(o.Status, shop.OrderCancelled) {
			return &shop.DomainError{Kind: shop.KindInvalidTransition, OrderID: orderID}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.afterCancel(ctx, o)
	return nil
}

// Expire is the scheduler's cancellation: no ownership check, and an order
// that progressed past PENDING_PAYMENT is skipped without error.
func (s *Service) Expire(ctx context.Context, orderID string) error {
	var skipped bool
	o, err := s.finishOrder(ctx, orderID, func(o shop.Order) error {
		if o.Status != shop.OrderPendingPayment {
			skipped = true
			return errSkip
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !skipped {
		s.afterCancel(ctx, o)
	}
	return nil
}

var errSkip = errors.New("skip")

// StalePendingOrders exposes the expiry sweep's query on the service.
func (s *Service) StalePendingOrders(ctx context.Context, cutoff time.Time) ([]shop.Order, error) {
	return s.Repo.StalePendingOrders(ctx, cutoff)
}

// finishOrder locks the order, runs the guard, then restores stock per item,
// refunds points, and flips the order to CANCELLED, all in one transaction.
func (s *Service) finishOrder(ctx context.Context, orderID string, guard func(shop.Order) error) (shop.Order, error) {
	txCtx, cancel := s.txCtx(ctx)
	defer cancel()

	var out shop.Order
	err := postgres.WithTx(txCtx, s.DB, func(tx pgx.Tx) error {
		o, err := s.Repo.GetOrderForUpdateTx(txCtx, tx, orderID)
		if err != nil {
			return err
		}
		if err := guard(o); err != nil {
			return err
		}
		for _, it := range o.Items {
			if _, err := s.Inventory.RestoreTx(txCtx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		if o.PointsUsed > 0 {
			if _, err := s.Points.AddTx(txCtx, tx, o.UserID, o.PointsUsed, shop.PointCancelledRefund, orderID, "order cancelled"); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(txCtx,
			`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
			orderID, shop.OrderCancelled); err != nil {
			return fmt.Errorf("cancel order %s: %w", orderID, err)
		}
		out = o
		return nil
	})
	if errors.Is(err, errSkip) {
		return out, nil
	}
	return out, err
}

func (s *Service) afterCancel(ctx context.Context, o shop.Order) {
	s.disarmPaymentTimer(ctx, o.ID)
	items := make([]shop.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, shop.ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	s.publish(s.Producers.Cancelled, shop.NewEnvelope(
		shop.EventOrderCancelled, s.ServiceName, "", o.ID,
		shop.OrderCancelledPayload{OrderID: o.ID, UserID: o.UserID, Items: items},
	))
}

// ConfirmPayment is the admin's manual bank-transfer confirmation. Earned
// points are credited in the same transaction as the status flip.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string) (shop.Order, error) {
	txCtx, cancel := s.txCtx(ctx)
	defer cancel()

	var out shop.Order
	err := postgres.WithTx(txCtx, s.DB, func(tx pgx.Tx) error {
		o, err := s.Repo.GetOrderForUpdateTx(txCtx, tx, orderID)
		if err != nil {
			return err
		}
		if o.PaymentStatus == shop.PaymentConfirmed {
			return &shop.DomainError{Kind: shop.KindAlreadyConfirmed, OrderID: orderID}
		}
		if !shop.CanTransition(o.Status, shop.OrderPaymentConfirmed) {
			return &shop.DomainError{Kind: shop.KindInvalidTransition, OrderID: orderID}
		}

		earned := o.Total * s.EarnRatePercent / 100
		if earned > 0 {
			if _, err := s.Points.AddTx(txCtx, tx, o.UserID, earned, shop.PointEarnedOrder, orderID, "order payment confirmed"); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(txCtx,
			`UPDATE orders SET status=$2, payment_status=$3, points_earned=$4, paid_at=now(), updated_at=now() WHERE id=$1`,
			orderID, shop.OrderPaymentConfirmed, shop.PaymentConfirmed, earned); err != nil {
			return fmt.Errorf("confirm order %s: %w", orderID, err)
		}
		o.Status = shop.OrderPaymentConfirmed
		o.PaymentStatus = shop.PaymentConfirmed
		o.PointsEarned = earned
		out = o
		return nil
	})
	if err != nil {
		return shop.Order{}, err
	}

	s.disarmPaymentTimer(ctx, out.ID)
	s.publish(s.Producers.Paid, shop.NewEnvelope(
		shop.EventOrderPaid, s.ServiceName, "", out.ID,
		shop.OrderPaidPayload{OrderID: out.ID, UserID: out.UserID, Total: out.Total, PointsEarned: out.PointsEarned},
	))
	return out, nil
}

func (s *Service) MarkShipped(ctx context.Context, orderID string) (shop.Order, error) {
	return s.transition(ctx, orderID, shop.OrderShipped,
		`UPDATE orders SET status=$2, shipping_status=$3, shipped_at=now(), updated_at=now() WHERE id=$1`,
		shop.ShippingShipped)
}

func (s *Service) MarkDelivered(ctx context.Context, orderID string) (shop.Order, error) {
	return s.transition(ctx, orderID, shop.OrderDelivered,
		`UPDATE orders SET status=$2, shipping_status=$3, delivered_at=now(), updated_at=now() WHERE id=$1`,
		shop.ShippingDelivered)
}

func (s *Service) transition(ctx context.Context, orderID string, to shop.OrderStatus, stmt string, shipping shop.ShippingStatus) (shop.Order, error) {
	txCtx, cancel := s.txCtx(ctx)
	defer cancel()

	var out shop.Order
	err := postgres.WithTx(txCtx, s.DB, func(tx pgx.Tx) error {
		o, err := s.Repo.GetOrderForUpdateTx(txCtx, tx, orderID)
		if err != nil {
			return err
		}
		if !shop.CanTransition(o.Status, to) {
			return &shop.DomainError{Kind: shop.KindInvalidTransition, OrderID: orderID}
		}
		if _, err := tx.Exec(txCtx, stmt, orderID, to, shipping); err != nil {
			return fmt.Errorf("transition order %s to %s: %w", orderID, to, err)
		}
		o.Status = to
		o.ShippingStatus = shipping
		out = o
		return nil
	})
	return out, err
}

func (s *Service) armPaymentTimer(ctx context.Context, orderID string) {
	ttl := s.ExpiryWindow
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	key := fmt.Sprintf(redisx.KeyPaymentTimer, orderID)
	if err := s.Redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		// Best effort: without the marker the expiry sweep may cancel the
		// order a tick earlier than the window, never a tick later.
		log.Printf("arm payment timer %s: %v", orderID, err)
	}
}

func (s *Service) disarmPaymentTimer(ctx context.Context, orderID string) {
	key := fmt.Sprintf(redisx.KeyPaymentTimer, orderID)
	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		log.Printf("disarm payment timer %s: %v", orderID, err)
	}
}

func (s *Service) publish(p *kafkax.Producer, env shop.Envelope) {
	if p == nil {
		return
	}
	p.Publish(shop.PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// computeTotals: subtotal sums price*qty per line; the shipping fee sums once
// per line, never deduplicated across lines of the same product.
func computeTotals(items []shop.OrderItem) (subtotal, shippingFee int) {
	for _, it := range items {
		subtotal += it.UnitPrice * it.Quantity
		shippingFee += it.ShippingFee
	}
	return subtotal, shippingFee
}

func itemsAtPurchase(items []shop.OrderItem) []shop.ItemAtPurchase {
	out := make([]shop.ItemAtPurchase, 0, len(items))
	for _, it := range items {
		out = append(out, shop.ItemAtPurchase{ProductID: it.ProductID, Qty: it.Quantity, PriceAtPurchase: it.UnitPrice})
	}
	return out
}
