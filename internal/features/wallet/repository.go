// Package wallet — repository.go выполняет все операции с таблицами wallets и wallet_transactions.
// Каждое изменение баланса и его запись в историю идут в одной транзакции БД.
package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/db/postgres"
)

// Repository предоставляет методы для работы с кошельками.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий кошельков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает кошелёк пользователя; если записи нет — нулевой кошелёк.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w := Wallet{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT balance, total_earned, total_withdrawn, last_updated
		FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.Balance, &w.TotalEarned, &w.TotalWithdrawn, &w.LastUpdated)
	if postgres.IsNoRows(err) {
		return &w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения кошелька: %w", err)
	}
	return &w, nil
}

// Credit начисляет средства. false — операция с таким Reference уже была.
func (r *Repository) Credit(ctx context.Context, e Entry) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	applied, err := CreditTx(ctx, tx, e)
	if err != nil || !applied {
		return applied, err
	}
	return true, tx.Commit(ctx)
}

// Debit списывает средства; при нехватке — common.ErrInsufficientBalance и ничего не меняется.
func (r *Repository) Debit(ctx context.Context, e Entry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := DebitTx(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// History возвращает последние limit записей, новые сверху.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, amount, description, status, reference, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &t.Status, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}

// --- Операции внутри чужой транзакции (используются заявками на выплату) ---

// LockTx создаёт кошелёк при необходимости, блокирует строку (FOR UPDATE) и возвращает баланс.
func LockTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (decimal.Decimal, error) {
	if err := ensureTx(ctx, tx, userID); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка блокировки кошелька: %w", err)
	}
	return balance, nil
}

// CreditTx начисляет средства в рамках tx. Возврат (TxRefund) поднимает только balance:
// total_earned и total_withdrawn не уменьшаются, история возврата — в строках журнала.
func CreditTx(ctx context.Context, tx pgx.Tx, e Entry) (bool, error) {
	if !common.ValidMoney(e.Amount) {
		return false, common.ErrInvalidAmount
	}
	if err := ensureTx(ctx, tx, e.UserID); err != nil {
		return false, err
	}

	applied, err := insertEntryTx(ctx, tx, e)
	if err != nil || !applied {
		return applied, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance + $2,
		    total_earned = total_earned + CASE WHEN $3::boolean THEN 0 ELSE $2::numeric END,
		    last_updated = NOW()
		WHERE user_id = $1
	`, e.UserID, e.Amount, e.Type == TxRefund)
	if err != nil {
		return false, fmt.Errorf("ошибка начисления: %w", err)
	}
	return true, nil
}

// DebitTx списывает средства одним условным UPDATE: баланс не уходит в минус.
func DebitTx(ctx context.Context, tx pgx.Tx, e Entry) error {
	if !common.ValidMoney(e.Amount) {
		return common.ErrInvalidAmount
	}

	tag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $2,
		    total_withdrawn = total_withdrawn + $2,
		    last_updated = NOW()
		WHERE user_id = $1 AND balance >= $2
	`, e.UserID, e.Amount)
	if err != nil {
		return fmt.Errorf("ошибка списания: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrInsufficientBalance
	}

	applied, err := insertEntryTx(ctx, tx, e)
	if err != nil {
		return err
	}
	if !applied {
		// Списание с этим Reference уже записано — откатываем всю транзакцию
		return fmt.Errorf("повторное списание %s/%s: %w", e.Type, e.Reference, common.ErrAlreadyProcessed)
	}
	return nil
}

func ensureTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания кошелька: %w", err)
	}
	return nil
}

func insertEntryTx(ctx context.Context, tx pgx.Tx, e Entry) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, type, amount, description, status, reference)
		VALUES ($1, $2, $3, $4, $5, 'completed', $6)
		ON CONFLICT (type, reference) WHERE reference IS NOT NULL DO NOTHING
	`, uuid.New(), e.UserID, string(e.Type), e.Amount, e.Description, e.reference())
	if err != nil {
		return false, fmt.Errorf("ошибка записи операции: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
