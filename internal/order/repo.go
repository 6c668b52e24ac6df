package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mim1012/dorami-sub000/internal/shop"
)

type Repo struct{ DB *pgxpool.Pool }

// GetBuyer resolves the contact/shipping snapshot at call time; the values
// are copied onto the order, not referenced.
func (r *Repo) GetBuyer(ctx context.Context, userID string) (shop.BuyerSnapshot, error) {
	var b shop.BuyerSnapshot
	err := r.DB.QueryRow(ctx,
		`SELECT email, depositor_name, recipient_name, phone, address, address_detail, postal_code
		 FROM users WHERE id=$1`, userID).
		Scan(&b.Email, &b.DepositorName, &b.RecipientName, &b.Phone, &b.Address, &b.AddressDetail, &b.PostalCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.BuyerSnapshot{}, shop.ErrUserNotFound(userID)
	}
	if err != nil {
		return shop.BuyerSnapshot{}, fmt.Errorf("resolve buyer %s: %w", userID, err)
	}
	return b, nil
}

// ResolveProducts loads current name/price/fee for each id, keyed by id.
// Missing ids surface as ProductNotFound.
func (r *Repo) ResolveProducts(ctx context.Context, ids []string) (map[string]shop.Product, error) {
	params := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx,
		`SELECT id, name, price, shipping_fee, quantity, status FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]shop.Product{}
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ShippingFee, &p.Quantity, &p.Status); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, shop.ErrProductNotFound(id)
		}
	}
	return out, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]shop.Product, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, name, price, shipping_fee, quantity, status, created_at, updated_at
		 FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ShippingFee, &p.Quantity, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) InsertOrderTx(ctx context.Context, tx pgx.Tx, o shop.Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, email, depositor_name, recipient_name, phone,
		                   address, address_detail, postal_code,
		                   subtotal, shipping_fee, total, points_used, points_earned,
		                   status, payment_status, shipping_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		o.ID, o.UserID, o.Buyer.Email, o.Buyer.DepositorName, o.Buyer.RecipientName, o.Buyer.Phone,
		o.Buyer.Address, o.Buyer.AddressDetail, o.Buyer.PostalCode,
		o.Subtotal, o.ShippingFee, o.Total, o.PointsUsed, o.PointsEarned,
		o.Status, o.PaymentStatus, o.ShippingStatus)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, product_name, quantity, unit_price, shipping_fee)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.ShippingFee)
		if err != nil {
			return fmt.Errorf("insert order item for %s: %w", o.ID, err)
		}
	}
	return nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (shop.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Order{}, shop.ErrOrderNotFound(orderID)
	}
	if err != nil {
		return shop.Order{}, err
	}
	o.Items, err = r.orderItems(ctx, orderID)
	return o, err
}

// GetOrderForUpdateTx locks the order row for a status transition.
func (r *Repo) GetOrderForUpdateTx(ctx context.Context, tx pgx.Tx, orderID string) (shop.Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Order{}, shop.ErrOrderNotFound(orderID)
	}
	if err != nil {
		return shop.Order{}, err
	}
	o.Items, err = r.orderItemsTx(ctx, tx, orderID)
	return o, err
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]shop.Order, error) {
	rows, err := r.DB.Query(ctx, selectOrder+` WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items, err = r.orderItems(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// StalePendingOrders returns PENDING_PAYMENT orders created before cutoff,
// items included, for the expiry sweep.
func (r *Repo) StalePendingOrders(ctx context.Context, cutoff time.Time) ([]shop.Order, error) {
	rows, err := r.DB.Query(ctx,
		selectOrder+` WHERE status=$1 AND created_at < $2 ORDER BY created_at`,
		shop.OrderPendingPayment, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items, err = r.orderItems(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

const selectOrder = `
	SELECT id, user_id, email, depositor_name, recipient_name, phone,
	       address, address_detail, postal_code,
	       subtotal, shipping_fee, total, points_used, points_earned,
	       status, payment_status, shipping_status,
	       created_at, paid_at, shipped_at, delivered_at
	FROM orders`

func scanOrder(row pgx.Row) (shop.Order, error) {
	var o shop.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Buyer.Email, &o.Buyer.DepositorName, &o.Buyer.RecipientName, &o.Buyer.Phone,
		&o.Buyer.Address, &o.Buyer.AddressDetail, &o.Buyer.PostalCode,
		&o.Subtotal, &o.ShippingFee, &o.Total, &o.PointsUsed, &o.PointsEarned,
		&o.Status, &o.PaymentStatus, &o.ShippingStatus,
		&o.CreatedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt)
	return o, err
}

func (r *Repo) orderItems(ctx context.Context, orderID string) ([]shop.OrderItem, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, shipping_fee
		 FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (r *Repo) orderItemsTx(ctx context.Context, tx pgx.Tx, orderID string) ([]shop.OrderItem, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, shipping_fee
		 FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]shop.OrderItem, error) {
	defer rows.Close()
	var out []shop.OrderItem
	for rows.Next() {
		var it shop.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.ShippingFee); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
