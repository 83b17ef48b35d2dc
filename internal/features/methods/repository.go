// Package methods — repository.go работает с таблицей payout_methods.
package methods

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/db/postgres"
)

const defaultIndex = "uq_payout_methods_default"

const selectColumns = `
	SELECT id, user_id, method_type, COALESCE(upi_id, ''), COALESCE(account_number, ''),
	       COALESCE(ifsc_code, ''), is_default, added_at
	FROM payout_methods`

// Repository хранит способы выплаты.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий способов выплаты.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Add сохраняет способ. Первый способ пользователя становится способом по умолчанию.
func (r *Repository) Add(ctx context.Context, userID uuid.UUID, in AddInput) (*Method, error) {
	m, err := r.add(ctx, userID, in, false)
	if postgres.IsUniqueViolation(err, defaultIndex) {
		// Параллельное добавление первого способа: default уже занят соседом
		m, err = r.add(ctx, userID, in, true)
	}
	return m, err
}

func (r *Repository) add(ctx context.Context, userID uuid.UUID, in AddInput, forceSecondary bool) (*Method, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := lockUserMethods(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	m := &Method{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          in.Type,
		UPIID:         in.UPIID,
		AccountNumber: in.AccountNumber,
		IFSCCode:      in.IFSCCode,
		IsDefault:     len(existing) == 0 && !forceSecondary,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO payout_methods (id, user_id, method_type, upi_id, account_number, ifsc_code, is_default)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
		RETURNING added_at
	`, m.ID, m.UserID, string(m.Type), m.UPIID, m.AccountNumber, m.IFSCCode, m.IsDefault).Scan(&m.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка добавления способа выплаты: %w", err)
	}
	return m, tx.Commit(ctx)
}

// List возвращает способы пользователя: сначала default, дальше новые.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]*Method, error) {
	rows, err := r.db.Query(ctx, selectColumns+`
		WHERE user_id = $1
		ORDER BY is_default DESC, added_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения способов выплаты: %w", err)
	}
	defer rows.Close()
	return scanMethods(rows)
}

// Get возвращает способ пользователя; чужой или несуществующий — ErrMethodNotFound.
func (r *Repository) Get(ctx context.Context, userID, methodID uuid.UUID) (*Method, error) {
	return scanOne(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1 AND user_id = $2`, methodID, userID))
}

// GetByID — без проверки владельца (карточка выплаты для оператора).
func (r *Repository) GetByID(ctx context.Context, methodID uuid.UUID) (*Method, error) {
	return scanOne(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, methodID))
}

// SetDefault делает способ основным: снимаем флаг со всех и ставим на выбранный в одной транзакции.
func (r *Repository) SetDefault(ctx context.Context, userID, methodID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := lockUserMethods(ctx, tx, userID)
	if err != nil {
		return err
	}
	if !contains(existing, methodID) {
		return common.ErrMethodNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payout_methods SET is_default = FALSE WHERE user_id = $1 AND is_default
	`, userID); err != nil {
		return fmt.Errorf("ошибка сброса default: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE payout_methods SET is_default = TRUE WHERE id = $1
	`, methodID); err != nil {
		return fmt.Errorf("ошибка установки default: %w", err)
	}
	return tx.Commit(ctx)
}

// Remove удаляет способ, если на него не ссылается заявка в pending.
// Если удалён default — основным становится самый новый из оставшихся.
func (r *Repository) Remove(ctx context.Context, userID, methodID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockUserMethods(ctx, tx, userID); err != nil {
		return err
	}

	var inUse bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM payout_requests WHERE payout_method_id = $1 AND status = 'pending')
	`, methodID).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("ошибка проверки заявок: %w", err)
	}
	if inUse {
		return common.ErrMethodInUse
	}

	var wasDefault bool
	err = tx.QueryRow(ctx, `
		DELETE FROM payout_methods WHERE id = $1 AND user_id = $2 RETURNING is_default
	`, methodID, userID).Scan(&wasDefault)
	if postgres.IsNoRows(err) {
		return common.ErrMethodNotFound
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления способа выплаты: %w", err)
	}

	if wasDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE payout_methods SET is_default = TRUE
			WHERE id = (SELECT id FROM payout_methods WHERE user_id = $1 ORDER BY added_at DESC LIMIT 1)
		`, userID); err != nil {
			return fmt.Errorf("ошибка назначения нового default: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ResolveTx выбирает способ для новой заявки внутри транзакции заявки:
// явно указанный (если он принадлежит пользователю) или default.
// Строка блокируется FOR SHARE, чтобы её нельзя было удалить до вставки заявки.
func ResolveTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, methodID *uuid.UUID) (*Method, error) {
	var row pgx.Row
	if methodID != nil {
		row = tx.QueryRow(ctx, selectColumns+` WHERE id = $1 AND user_id = $2 FOR SHARE`, *methodID, userID)
	} else {
		row = tx.QueryRow(ctx, selectColumns+` WHERE user_id = $1 AND is_default FOR SHARE`, userID)
	}
	m, err := scanOne(row)
	if methodID == nil && errors.Is(err, common.ErrMethodNotFound) {
		return nil, common.ErrNoPayoutMethod
	}
	return m, err
}

func lockUserMethods(ctx context.Context, tx pgx.Tx, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM payout_methods WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки способов выплаты: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения способов выплаты: %w", err)
	}
	return ids, nil
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func scanOne(row pgx.Row) (*Method, error) {
	var m Method
	err := row.Scan(&m.ID, &m.UserID, &m.Type, &m.UPIID, &m.AccountNumber, &m.IFSCCode, &m.IsDefault, &m.AddedAt)
	if postgres.IsNoRows(err) {
		return nil, common.ErrMethodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения способа выплаты: %w", err)
	}
	return &m, nil
}

func scanMethods(rows pgx.Rows) ([]*Method, error) {
	var list []*Method
	for rows.Next() {
		var m Method
		if err := rows.Scan(&m.ID, &m.UserID, &m.Type, &m.UPIID, &m.AccountNumber, &m.IFSCCode, &m.IsDefault, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования способа выплаты: %w", err)
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
