package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mim1012/dorami-sub000/internal/config"
	"github.com/mim1012/dorami-sub000/internal/postgres"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

// Ledger owns the point_transactions append-only log and its materialized
// balance row. The two are always written in the same transaction: a balance
// without its transaction row must not be possible.
type Ledger struct {
	DB        *pgxpool.Pool
	Cfg       config.PointsConfig
	TxTimeout time.Duration
}

func (l *Ledger) txCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := l.TxTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (l *Ledger) Add(ctx context.Context, userID string, amount int, txType shop.PointTxType, orderID, desc string) (shop.PointBalance, error) {
	ctx, cancel := l.txCtx(ctx)
	defer cancel()

	var bal shop.PointBalance
	err := postgres.WithTx(ctx, l.DB, func(tx pgx.Tx) error {
		var err error
		bal, err = l.AddTx(ctx, tx, userID, amount, txType, orderID, desc)
		return err
	})
	return bal, err
}

func (l *Ledger) Deduct(ctx context.Context, userID string, amount int, txType shop.PointTxType, orderID, desc string) (shop.PointBalance, error) {
	ctx, cancel := l.txCtx(ctx)
	defer cancel()

	var bal shop.PointBalance
	err := postgres.WithTx(ctx, l.DB, func(tx pgx.Tx) error {
		var err error
		bal, err = l.DeductTx(ctx, tx, userID, amount, txType, orderID, desc)
		return err
	})
	return bal, err
}

// AddTx credits points inside a caller-owned transaction.
func (l *Ledger) AddTx(ctx context.Context, tx pgx.Tx, userID string, amount int, txType shop.PointTxType, orderID, desc string) (shop.PointBalance, error) {
	if amount <= 0 {
		return shop.PointBalance{}, &shop.DomainError{Kind: shop.KindInvalidQuantity, UserID: userID, Requested: amount}
	}

	bal, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return shop.PointBalance{}, err
	}

	bal.CurrentBalance += amount
	bal.LifetimeEarned += amount
	if err := writeMutation(ctx, tx, bal, amount, txType, orderID, desc); err != nil {
		return shop.PointBalance{}, err
	}
	return bal, nil
}

// DeductTx debits points. The balance check happens here, after the row lock,
// never from a cached value; concurrent deductions serialize on the row.
func (l *Ledger) DeductTx(ctx context.Context, tx pgx.Tx, userID string, amount int, txType shop.PointTxType, orderID, desc string) (shop.PointBalance, error) {
	if amount <= 0 {
		return shop.PointBalance{}, &shop.DomainError{Kind: shop.KindInvalidQuantity, UserID: userID, Requested: amount}
	}

	bal, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return shop.PointBalance{}, err
	}
	if bal.CurrentBalance < amount {
		return shop.PointBalance{}, shop.ErrInsufficientPoints(userID, bal.CurrentBalance, amount)
	}

	bal.CurrentBalance -= amount
	// Lifetime counters are conditional on the deduction type.
	switch txType {
	case shop.PointUsedOrder:
		bal.LifetimeUsed += amount
	case shop.PointExpired:
		bal.LifetimeExpired += amount
	}
	if err := writeMutation(ctx, tx, bal, -amount, txType, orderID, desc); err != nil {
		return shop.PointBalance{}, err
	}
	return bal, nil
}

// ValidateRedemption runs the four redemption checks in order; the first
// failing check determines the reported reason. Read-only.
func (l *Ledger) ValidateRedemption(ctx context.Context, userID string, pointsToUse, orderTotal int) error {
	bal, err := l.Balance(ctx, userID)
	if err != nil {
		return err
	}
	return checkRedemption(l.Cfg, bal.CurrentBalance, userID, pointsToUse, orderTotal)
}

func checkRedemption(cfg config.PointsConfig, balance int, userID string, pointsToUse, orderTotal int) error {
	if !cfg.Enabled {
		return &shop.DomainError{Kind: shop.KindPointsDisabled, UserID: userID}
	}
	if pointsToUse < cfg.MinimumRedemption {
		return &shop.DomainError{Kind: shop.KindPointsBelowMinimum, UserID: userID, Requested: pointsToUse, Available: cfg.MinimumRedemption}
	}
	if max := orderTotal * cfg.MaxRedemptionPercent / 100; pointsToUse > max {
		return &shop.DomainError{Kind: shop.KindPointsExceedMax, UserID: userID, Requested: pointsToUse, Available: max}
	}
	if pointsToUse > balance {
		return shop.ErrInsufficientPoints(userID, balance, pointsToUse)
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, userID string) (shop.PointBalance, error) {
	bal := shop.PointBalance{UserID: userID}
	err := l.DB.QueryRow(ctx,
		`SELECT current_balance, lifetime_earned, lifetime_used, lifetime_expired
		 FROM point_balances WHERE user_id=$1`, userID).
		Scan(&bal.CurrentBalance, &bal.LifetimeEarned, &bal.LifetimeUsed, &bal.LifetimeExpired)
	if errors.Is(err, pgx.ErrNoRows) {
		return bal, nil // no row yet means zero balance
	}
	if err != nil {
		return shop.PointBalance{}, fmt.Errorf("read balance %s: %w", userID, err)
	}
	return bal, nil
}

func (l *Ledger) History(ctx context.Context, userID string, limit, offset int) ([]shop.PointTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := l.DB.Query(ctx,
		`SELECT id, user_id, amount, balance_after, type, COALESCE(order_id,''), description, created_at
		 FROM point_transactions WHERE user_id=$1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.PointTransaction
	for rows.Next() {
		var t shop.PointTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.BalanceAfter, &t.Type, &t.OrderID, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// lockBalance reads-or-creates the user's balance row under a row lock.
func lockBalance(ctx context.Context, tx pgx.Tx, userID string) (shop.PointBalance, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO point_balances(user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return shop.PointBalance{}, fmt.Errorf("ensure balance %s: %w", userID, err)
	}
	bal := shop.PointBalance{UserID: userID}
	err := tx.QueryRow(ctx,
		`SELECT current_balance, lifetime_earned, lifetime_used, lifetime_expired
		 FROM point_balances WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&bal.CurrentBalance, &bal.LifetimeEarned, &bal.LifetimeUsed, &bal.LifetimeExpired)
	if err != nil {
		return shop.PointBalance{}, fmt.Errorf("lock balance %s: %w", userID, err)
	}
	return bal, nil
}

// writeMutation persists the updated balance and its ledger row atomically
// with respect to the surrounding transaction. balance_after snapshots the
// post-mutation value; it is never recomputed later.
func writeMutation(ctx context.Context, tx pgx.Tx, bal shop.PointBalance, amount int, txType shop.PointTxType, orderID, desc string) error {
	_, err := tx.Exec(ctx,
		`UPDATE point_balances
		 SET current_balance=$2, lifetime_earned=$3, lifetime_used=$4, lifetime_expired=$5, updated_at=now()
		 WHERE user_id=$1`,
		bal.UserID, bal.CurrentBalance, bal.LifetimeEarned, bal.LifetimeUsed, bal.LifetimeExpired)
	if err != nil {
		return fmt.Errorf("update balance %s: %w", bal.UserID, err)
	}

	var oid any
	if orderID != "" {
		oid = orderID
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO point_transactions(id, user_id, amount, balance_after, type, order_id, description)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.NewString(), bal.UserID, amount, bal.CurrentBalance, txType, oid, desc)
	if err != nil {
		return fmt.Errorf("insert point tx for %s: %w", bal.UserID, err)
	}
	return nil
}
