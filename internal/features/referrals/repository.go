package referrals

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/payout-bot/internal/db/postgres"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// RecordPurchase сохраняет покупку. false — платёж уже был записан.
func (r *Repository) RecordPurchase(ctx context.Context, p Purchase) (bool, error) {
	var orderID, courseID *string
	if p.OrderID != "" {
		orderID = &p.OrderID
	}
	if p.CourseID != "" {
		courseID = &p.CourseID
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO course_purchases (payment_id, order_id, user_id, course_id, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_id) DO NOTHING
	`, p.PaymentID, orderID, p.UserID, courseID, p.Amount)
	if err != nil {
		return false, fmt.Errorf("ошибка записи покупки: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReferrerOf возвращает пригласившего. uuid.Nil — пользователь пришёл сам.
func (r *Repository) ReferrerOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var referrer uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT referrer_user_id FROM referrals WHERE referred_user_id = $1`, userID,
	).Scan(&referrer)
	if postgres.IsNoRows(err) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка поиска пригласившего: %w", err)
	}
	return referrer, nil
}

// AddReferral связывает приглашённого с пригласившим. Повтор не меняет связь.
func (r *Repository) AddReferral(ctx context.Context, referred, referrer uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO referrals (referred_user_id, referrer_user_id) VALUES ($1, $2)
		ON CONFLICT (referred_user_id) DO NOTHING
	`, referred, referrer)
	if err != nil {
		return fmt.Errorf("ошибка записи реферала: %w", err)
	}
	return nil
}
