// Package confirm — repository.go: сессии подтверждения в таблице payout_confirmations,
// чтобы их видели все реплики и они переживали рестарт.
package confirm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/payout-bot/internal/db/postgres"
)

// PostgresStore хранит сессии в PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put создаёт или заменяет сессию заявки.
func (r *PostgresStore) Put(ctx context.Context, s *Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payout_confirmations
		    (payout_id, user_id, amount, payout_method_id, operator_id, requested_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (payout_id) DO UPDATE SET
		    user_id = EXCLUDED.user_id,
		    amount = EXCLUDED.amount,
		    payout_method_id = EXCLUDED.payout_method_id,
		    operator_id = EXCLUDED.operator_id,
		    requested_at = EXCLUDED.requested_at,
		    expires_at = EXCLUDED.expires_at
	`, s.PayoutID, s.UserID, s.Amount, s.PayoutMethodID, s.OperatorID, s.RequestedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения сессии подтверждения: %w", err)
	}
	return nil
}

// Take удаляет сессию и возвращает её (DELETE ... RETURNING). nil — сессии нет.
func (r *PostgresStore) Take(ctx context.Context, payoutID uuid.UUID) (*Session, error) {
	var s Session
	err := r.db.QueryRow(ctx, `
		DELETE FROM payout_confirmations WHERE payout_id = $1
		RETURNING payout_id, user_id, amount, payout_method_id, operator_id, requested_at, expires_at
	`, payoutID).Scan(&s.PayoutID, &s.UserID, &s.Amount, &s.PayoutMethodID, &s.OperatorID, &s.RequestedAt, &s.ExpiresAt)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии подтверждения: %w", err)
	}
	return &s, nil
}

// PurgeExpired удаляет просроченные сессии.
func (r *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM payout_confirmations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки сессий подтверждения: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
