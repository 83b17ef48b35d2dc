// Package confirm — service.go: протокол подтверждения поверх хранилища сессий.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/admin"
	"serotonyl.ru/payout-bot/internal/features/payouts"
)

// Payouts — то, что протоколу нужно от сервиса заявок.
type Payouts interface {
	Get(ctx context.Context, id uuid.UUID) (*payouts.Request, error)
	ConfirmManually(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*payouts.Settlement, error)
}

// SessionStore — MemoryStore или PostgresStore.
type SessionStore interface {
	Put(ctx context.Context, s *Session) error
	Take(ctx context.Context, payoutID uuid.UUID) (*Session, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// AuditLog — журнал действий оператора.
type AuditLog interface {
	Record(ctx context.Context, e admin.AuditEntry) error
}

// Service ведёт двухшаговое подтверждение.
type Service struct {
	payouts Payouts
	store   SessionStore
	audit   AuditLog
	ttl     time.Duration
	now     func() time.Time
}

func NewService(p Payouts, store SessionStore, audit AuditLog, ttl time.Duration) *Service {
	return &Service{payouts: p, store: store, audit: audit, ttl: ttl, now: time.Now}
}

// TTL — окно между /confirm_payout и YES.
func (s *Service) TTL() time.Duration { return s.ttl }

// Begin открывает (или заменяет) сессию подтверждения заявки.
// ErrAlreadyProcessed, если заявки нет или она не pending.
func (s *Service) Begin(ctx context.Context, payoutID uuid.UUID, operatorID int64) (*Session, error) {
	req, err := s.payouts.Get(ctx, payoutID)
	if errors.Is(err, common.ErrPayoutNotFound) {
		return nil, common.ErrAlreadyProcessed
	}
	if err != nil {
		return nil, err
	}
	if req.Status != payouts.StatusPending {
		return nil, common.ErrAlreadyProcessed
	}

	now := s.now()
	sess := &Session{
		PayoutID:       req.ID,
		UserID:         req.UserID,
		Amount:         req.Amount,
		PayoutMethodID: req.PayoutMethodID,
		OperatorID:     operatorID,
		RequestedAt:    now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"payout_id":   payoutID,
		"operator_id": operatorID,
		"amount":      req.Amount.String(),
		"expires_at":  sess.ExpiresAt,
	}).Info("Открыта сессия подтверждения выплаты")
	return sess, nil
}

// Confirm — второй шаг. Сессия удаляется при любом исходе, так что YES не повторить.
// Сумма списания берётся из снимка сессии.
func (s *Service) Confirm(ctx context.Context, payoutID uuid.UUID, operatorID int64) (*payouts.Settlement, error) {
	sess, err := s.store.Take(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, common.ErrNoConfirmation
	}

	logger := log.WithFields(log.Fields{"payout_id": payoutID, "operator_id": operatorID})
	if sess.Expired(s.now()) {
		logger.WithField("requested_at", sess.RequestedAt).Info("Сессия подтверждения истекла")
		return nil, common.ErrConfirmationExpired
	}

	st, err := s.payouts.ConfirmManually(ctx, payoutID, sess.Amount)
	if err != nil {
		return nil, err
	}

	entry := admin.AuditEntry{
		Actor:    admin.TelegramActor(operatorID),
		Action:   admin.ActionConfirmPayout,
		PayoutID: &sess.PayoutID,
		UserID:   &sess.UserID,
		Amount:   decimal.NewNullDecimal(sess.Amount),
		Details:  fmt.Sprintf("requested_at=%s debited=%t", sess.RequestedAt.UTC().Format(time.RFC3339), st.Debited),
	}
	if st.WalletErr != nil {
		entry.Details += " wallet_error=" + common.Truncate(st.WalletErr.Error(), 200)
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logger.WithError(err).Error("Не удалось записать подтверждение в журнал")
	}
	return st, nil
}

// PurgeExpired чистит просроченные сессии (cron). Сама проверка срока ленивая, в Confirm.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	return s.store.PurgeExpired(ctx, s.now())
}
