package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mim1012/dorami-sub000/internal/shop"
)

type PgStore struct{ DB *pgxpool.Pool }

func (s *PgStore) ProductExists(ctx context.Context, productID string) (bool, error) {
	var one int
	err := s.DB.QueryRow(ctx, `SELECT 1 FROM products WHERE id=$1`, productID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PgStore) CreateReservation(ctx context.Context, r shop.Reservation) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO reservations(id, user_id, product_id, reservation_number, status)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), r.UserID, r.ProductID, r.Number, r.Status)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *PgStore) PromoteReservation(ctx context.Context, userID, productID string, promotedAt, expiresAt time.Time) (shop.Reservation, error) {
	var r shop.Reservation
	err := s.DB.QueryRow(ctx, `
		UPDATE reservations
		SET status=$3, promoted_at=$4, expires_at=$5
		WHERE id = (SELECT id FROM reservations
		            WHERE user_id=$1 AND product_id=$2 AND status=$6
		            ORDER BY created_at DESC LIMIT 1)
		RETURNING id, user_id, product_id, reservation_number, status, promoted_at, expires_at, created_at`,
		userID, productID, shop.ReservationPromoted, promotedAt, expiresAt, shop.ReservationWaiting).
		Scan(&r.ID, &r.UserID, &r.ProductID, &r.Number, &r.Status, &r.PromotedAt, &r.ExpiresAt, &r.CreatedAt)
	if err != nil {
		return shop.Reservation{}, fmt.Errorf("promote reservation %s/%s: %w", userID, productID, err)
	}
	return r, nil
}

func (s *PgStore) CancelReservation(ctx context.Context, userID, productID string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE reservations SET status=$3
		WHERE user_id=$1 AND product_id=$2 AND status=$4`,
		userID, productID, shop.ReservationCancelled, shop.ReservationWaiting)
	if err != nil {
		return fmt.Errorf("cancel reservation %s/%s: %w", userID, productID, err)
	}
	return nil
}
