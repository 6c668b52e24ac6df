package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mim1012/dorami-sub000/internal/postgres"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

// Repo serializes all stock mutations. Product.quantity is only ever written
// here, under a row lock, so concurrent decrements against the same product
// cannot both succeed when only one has sufficient stock.
type Repo struct {
	DB        *pgxpool.Pool
	TxTimeout time.Duration
}

type Level struct {
	Quantity int  `json:"quantity"`
	SoldOut  bool `json:"sold_out"`
}

func (r *Repo) txCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.TxTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Decrease opens its own transaction. SoldOut in the returned level is the
// synchronous signal that this decrement took the product to zero.
func (r *Repo) Decrease(ctx context.Context, productID string, qty int) (Level, error) {
	ctx, cancel := r.txCtx(ctx)
	defer cancel()

	var lv Level
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		var err error
		lv, err = r.DecreaseTx(ctx, tx, productID, qty)
		return err
	})
	return lv, err
}

// DecreaseTx runs inside a caller-owned transaction so order assembly can
// commit stock and order together, or neither.
func (r *Repo) DecreaseTx(ctx context.Context, tx pgx.Tx, productID string, qty int) (Level, error) {
	if qty <= 0 {
		return Level{}, &shop.DomainError{Kind: shop.KindInvalidQuantity, ProductID: productID, Requested: qty}
	}

	var current int
	err := tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return Level{}, shop.ErrProductNotFound(productID)
	}
	if err != nil {
		return Level{}, fmt.Errorf("lock product %s: %w", productID, err)
	}
	if current < qty {
		return Level{}, shop.ErrInsufficientStock(productID, current, qty)
	}

	next := current - qty
	status := shop.ProductAvailable
	if next == 0 {
		status = shop.ProductSoldOut
	}
	_, err = tx.Exec(ctx,
		`UPDATE products SET quantity=$2, status=$3, updated_at=now() WHERE id=$1`,
		productID, next, status)
	if err != nil {
		return Level{}, fmt.Errorf("decrease product %s: %w", productID, err)
	}
	return Level{Quantity: next, SoldOut: next == 0}, nil
}

// Restore increments quantity and unconditionally reopens the product.
// A product manually marked sold out gets reopened too; known gap, kept.
func (r *Repo) Restore(ctx context.Context, productID string, qty int) (Level, error) {
	ctx, cancel := r.txCtx(ctx)
	defer cancel()

	var lv Level
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		var err error
		lv, err = r.RestoreTx(ctx, tx, productID, qty)
		return err
	})
	return lv, err
}

func (r *Repo) RestoreTx(ctx context.Context, tx pgx.Tx, productID string, qty int) (Level, error) {
	if qty <= 0 {
		return Level{}, &shop.DomainError{Kind: shop.KindInvalidQuantity, ProductID: productID, Requested: qty}
	}

	var next int
	err := tx.QueryRow(ctx,
		`UPDATE products SET quantity = quantity + $2, status=$3, updated_at=now()
		 WHERE id=$1 RETURNING quantity`,
		productID, qty, shop.ProductAvailable).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return Level{}, shop.ErrProductNotFound(productID)
	}
	if err != nil {
		return Level{}, fmt.Errorf("restore product %s: %w", productID, err)
	}
	return Level{Quantity: next, SoldOut: false}, nil
}

// BatchDecrease decrements every item or none: the first failure rolls the
// whole batch back, no partial decrements survive.
func (r *Repo) BatchDecrease(ctx context.Context, items []shop.ItemQty) error {
	ctx, cancel := r.txCtx(ctx)
	defer cancel()

	return postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		return r.BatchDecreaseTx(ctx, tx, items)
	})
}

func (r *Repo) BatchDecreaseTx(ctx context.Context, tx pgx.Tx, items []shop.ItemQty) error {
	for _, it := range items {
		if _, err := r.DecreaseTx(ctx, tx, it.ProductID, it.Qty); err != nil {
			return err
		}
	}
	return nil
}
