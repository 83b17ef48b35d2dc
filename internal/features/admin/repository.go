// Package admin — repository.go работает с таблицей admin_audit_log.
package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository пишет и читает журнал действий.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий журнала.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Record добавляет запись в журнал.
func (r *Repository) Record(ctx context.Context, e AuditEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_audit_log (actor, action, payout_id, user_id, amount, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.Actor, e.Action, e.PayoutID, e.UserID, e.Amount, e.Details)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return nil
}

// ListForPayout — записи по одной заявке, старые сверху.
func (r *Repository) ListForPayout(ctx context.Context, payoutID uuid.UUID) ([]*AuditEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, actor, action, payout_id, user_id, amount, details, created_at
		FROM admin_audit_log WHERE payout_id = $1 ORDER BY created_at, id
	`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	defer rows.Close()

	var list []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.PayoutID, &e.UserID, &e.Amount, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
