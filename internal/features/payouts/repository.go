// Package payouts — repository.go работает с таблицей payout_requests.
// Переходы статуса — условные UPDATE ... WHERE status = 'pending' с проверкой числа строк,
// списание и возврат — через флаг wallet_debited в той же транзакции, что и движение по кошельку.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/db/postgres"
	"serotonyl.ru/payout-bot/internal/features/methods"
	"serotonyl.ru/payout-bot/internal/features/wallet"
)

const requestColumns = `
	id, user_id, amount, payout_method_id, status, created_at, processed_at,
	razorpay_payout_id, failure_reason, wallet_debited`

// Repository хранит заявки на выплату.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий заявок.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create проверяет доступный остаток и вставляет заявку в pending.
// Доступно = баланс − сумма pending-заявок, по которым ещё не было списания.
// Строка кошелька блокируется на время проверки, поэтому параллельные заявки не превышают баланс.
func (r *Repository) Create(ctx context.Context, in NewRequest) (*Request, *methods.Method, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := wallet.LockTx(ctx, tx, in.UserID)
	if err != nil {
		return nil, nil, err
	}

	method, err := methods.ResolveTx(ctx, tx, in.UserID, in.MethodID)
	if err != nil {
		return nil, nil, err
	}

	var reserved decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payout_requests
		WHERE user_id = $1 AND status = 'pending' AND NOT wallet_debited
	`, in.UserID).Scan(&reserved)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка подсчёта зарезервированной суммы: %w", err)
	}
	if in.Amount.GreaterThan(balance.Sub(reserved)) {
		return nil, nil, common.ErrInsufficientBalance
	}

	req, err := scanRequest(tx.QueryRow(ctx, `
		INSERT INTO payout_requests (id, user_id, amount, payout_method_id, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING `+requestColumns,
		uuid.New(), in.UserID, in.Amount, method.ID))
	if err != nil {
		return nil, nil, err
	}
	return req, method, tx.Commit(ctx)
}

// Get возвращает заявку по id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM payout_requests WHERE id = $1`, id))
}

// GetByProcessorRef ищет заявку по id выплаты у процессора.
func (r *Repository) GetByProcessorRef(ctx context.Context, ref string) (*Request, error) {
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM payout_requests WHERE razorpay_payout_id = $1`, ref))
}

// ListForUser — заявки пользователя, новые сверху.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Request, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+` FROM payout_requests
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявок: %w", err)
	}
	return collectRequests(rows)
}

// ListPending — все pending-заявки, созданные раньше before, старые сверху.
func (r *Repository) ListPending(ctx context.Context, before time.Time) ([]*Request, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+` FROM payout_requests
		WHERE status = 'pending' AND created_at <= $1 ORDER BY created_at
	`, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения pending-заявок: %w", err)
	}
	return collectRequests(rows)
}

// AttachProcessorRef запоминает id выплаты у процессора, если он ещё не записан.
func (r *Repository) AttachProcessorRef(ctx context.Context, id uuid.UUID, ref string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payout_requests SET razorpay_payout_id = $2
		WHERE id = $1 AND razorpay_payout_id IS NULL
	`, id, ref)
	if err != nil {
		return fmt.Errorf("ошибка сохранения id процессора: %w", err)
	}
	return nil
}

// MarkDispatched — процессор принял выплату: сохраняем его id и сразу списываем сумму,
// деньги уже ушли к процессору. Заявка остаётся в pending до вебхука.
func (r *Repository) MarkDispatched(ctx context.Context, id uuid.UUID, ref string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID uuid.UUID
	var amount decimal.Decimal
	err = tx.QueryRow(ctx, `
		UPDATE payout_requests SET razorpay_payout_id = $2, wallet_debited = TRUE
		WHERE id = $1 AND status = 'pending' AND NOT wallet_debited
		RETURNING user_id, amount
	`, id, ref).Scan(&userID, &amount)
	if postgres.IsNoRows(err) {
		return common.ErrAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("ошибка отметки отправки: %w", err)
	}

	if err := wallet.DebitTx(ctx, tx, withdrawalEntry(id, userID, amount)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkSucceeded переводит pending → success и списывает amount (ноль — сумма заявки),
// если списания ещё не было. Статус фиксируется отдельной транзакцией: ошибка списания
// не откатывает success, а возвращается в Settlement.WalletErr.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID, ref string, amount decimal.Decimal) (*Settlement, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, `
		UPDATE payout_requests
		SET status = 'success', processed_at = NOW(),
		    razorpay_payout_id = COALESCE(razorpay_payout_id, NULLIF($2, ''))
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns,
		id, ref))
	if errors.Is(err, common.ErrPayoutNotFound) {
		return nil, common.ErrAlreadyProcessed
	}
	if err != nil {
		return nil, err
	}

	s := &Settlement{Payout: req}
	if req.WalletDebited {
		return s, nil
	}
	if amount.IsZero() {
		amount = req.Amount
	}

	debited, err := r.debitOnce(ctx, req, amount)
	if err != nil {
		s.WalletErr = err
		return s, nil
	}
	s.Debited = debited
	req.WalletDebited = req.WalletDebited || debited
	return s, nil
}

func (r *Repository) debitOnce(ctx context.Context, req *Request, amount decimal.Decimal) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE payout_requests SET wallet_debited = TRUE WHERE id = $1 AND NOT wallet_debited
	`, req.ID)
	if err != nil {
		return false, fmt.Errorf("ошибка отметки списания: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := wallet.DebitTx(ctx, tx, withdrawalEntry(req.ID, req.UserID, amount)); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// MarkFailed переводит pending → failed с причиной и возвращает деньги на кошелёк,
// если по заявке было списание. Всё в одной транзакции.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, ref, reason string) (*Settlement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE payout_requests
		SET status = 'failed', processed_at = NOW(), failure_reason = $2,
		    razorpay_payout_id = COALESCE(razorpay_payout_id, NULLIF($3, ''))
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns,
		id, reason, ref))
	if errors.Is(err, common.ErrPayoutNotFound) {
		return nil, common.ErrAlreadyProcessed
	}
	if err != nil {
		return nil, err
	}

	s := &Settlement{Payout: req}
	if req.WalletDebited {
		tag, err := tx.Exec(ctx, `UPDATE payout_requests SET wallet_debited = FALSE WHERE id = $1 AND wallet_debited`, id)
		if err != nil {
			return nil, fmt.Errorf("ошибка снятия отметки списания: %w", err)
		}
		if tag.RowsAffected() == 1 {
			applied, err := wallet.CreditTx(ctx, tx, wallet.Entry{
				UserID:      req.UserID,
				Amount:      req.Amount,
				Type:        wallet.TxRefund,
				Description: "Refund for failed payout " + id.String(),
				Reference:   id.String(),
			})
			if err != nil {
				return nil, err
			}
			s.Refunded = applied
			req.WalletDebited = false
		}
	}
	return s, tx.Commit(ctx)
}

func withdrawalEntry(id, userID uuid.UUID, amount decimal.Decimal) wallet.Entry {
	return wallet.Entry{
		UserID:      userID,
		Amount:      amount,
		Type:        wallet.TxWithdrawal,
		Description: "Payout " + id.String(),
		Reference:   id.String(),
	}
}

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.UserID, &req.Amount, &req.PayoutMethodID, &req.Status, &req.CreatedAt,
		&req.ProcessedAt, &req.ProcessorRef, &req.FailureReason, &req.WalletDebited,
	)
	if postgres.IsNoRows(err) {
		return nil, common.ErrPayoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения заявки: %w", err)
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]*Request, error) {
	defer rows.Close()
	var list []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, req)
	}
	return list, rows.Err()
}
