package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mim1012/dorami-sub000/internal/shop"
)

// AddCartItem captures the product's current price and fee into the row.
// Stock is not touched here; the cart path commits stock at order time.
func (r *Repo) AddCartItem(ctx context.Context, userID, productID string, qty int, ttl time.Duration) (shop.CartItem, error) {
	if qty <= 0 {
		return shop.CartItem{}, &shop.DomainError{Kind: shop.KindInvalidQuantity, ProductID: productID, Requested: qty}
	}

	var price, fee int
	err := r.DB.QueryRow(ctx, `SELECT price, shipping_fee FROM products WHERE id=$1`, productID).Scan(&price, &fee)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.CartItem{}, shop.ErrProductNotFound(productID)
	}
	if err != nil {
		return shop.CartItem{}, fmt.Errorf("resolve product %s: %w", productID, err)
	}

	item := shop.CartItem{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProductID:   productID,
		Quantity:    qty,
		UnitPrice:   price,
		ShippingFee: fee,
		Status:      shop.CartItemActive,
	}
	var expires any
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		item.ExpiresAt = &t
		expires = t
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO cart_items(id, user_id, product_id, quantity, unit_price, shipping_fee, expires_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		item.ID, userID, productID, qty, price, fee, expires, item.Status)
	if err != nil {
		return shop.CartItem{}, fmt.Errorf("add cart item: %w", err)
	}
	return item, nil
}

func (r *Repo) CartForUser(ctx context.Context, userID string) ([]shop.CartItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, product_id, quantity, unit_price, shipping_fee, expires_at, status, created_at
		FROM cart_items WHERE user_id=$1 AND status=$2 ORDER BY created_at`,
		userID, shop.CartItemActive)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

// ActiveCartItemsTx selects the user's ACTIVE rows inside the checkout
// transaction, locked so a concurrent checkout blocks here and re-reads the
// rows as COMPLETED after the winner commits.
func (r *Repo) ActiveCartItemsTx(ctx context.Context, tx pgx.Tx, userID string) ([]shop.CartItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, product_id, quantity, unit_price, shipping_fee, expires_at, status, created_at
		FROM cart_items WHERE user_id=$1 AND status=$2 ORDER BY created_at FOR UPDATE`,
		userID, shop.CartItemActive)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

func (r *Repo) CompleteCartItemsTx(ctx context.Context, tx pgx.Tx, ids []string) error {
	for _, id := range ids {
		if _, err := tx.Exec(ctx,
			`UPDATE cart_items SET status=$2 WHERE id=$1`, id, shop.CartItemCompleted); err != nil {
			return fmt.Errorf("complete cart item %s: %w", id, err)
		}
	}
	return nil
}

func (r *Repo) DeleteCartItem(ctx context.Context, itemID, userID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND user_id=$2`, itemID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shop.DomainError{Kind: shop.KindCartItemNotFound, UserID: userID}
	}
	return nil
}

func collectCartItems(rows pgx.Rows) ([]shop.CartItem, error) {
	defer rows.Close()
	var out []shop.CartItem
	for rows.Next() {
		var it shop.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.ShippingFee, &it.ExpiresAt, &it.Status, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
