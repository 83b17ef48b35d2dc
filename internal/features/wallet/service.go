// Package wallet — service.go содержит проверки и логирование поверх репозитория.
package wallet

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/common"
)

// Store — то, что сервису нужно от хранилища кошельков.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	Credit(ctx context.Context, e Entry) (bool, error)
	Debit(ctx context.Context, e Entry) error
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Service управляет кошельками.
type Service struct {
	store Store
}

// NewService создаёт сервис кошельков.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get возвращает кошелёк (нулевой для нового пользователя).
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.store.Get(ctx, userID)
}

// Credit начисляет средства. Повтор с тем же Reference ничего не меняет и возвращает false.
func (s *Service) Credit(ctx context.Context, e Entry) (bool, error) {
	if !common.ValidMoney(e.Amount) {
		return false, common.ErrInvalidAmount
	}
	applied, err := s.store.Credit(ctx, e)
	if err != nil {
		return false, err
	}

	logger := log.WithFields(log.Fields{
		"user_id":   e.UserID,
		"amount":    e.Amount.String(),
		"type":      e.Type,
		"reference": e.Reference,
	})
	if applied {
		logger.Info("Начисление на кошелёк")
	} else {
		logger.Debug("Начисление уже было, пропускаем")
	}
	return applied, nil
}

// Debit списывает средства.
func (s *Service) Debit(ctx context.Context, e Entry) error {
	if !common.ValidMoney(e.Amount) {
		return common.ErrInvalidAmount
	}
	if err := s.store.Debit(ctx, e); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id":   e.UserID,
		"amount":    e.Amount.String(),
		"type":      e.Type,
		"reference": e.Reference,
	}).Info("Списание с кошелька")
	return nil
}

// History возвращает историю; limit приводится к 1..100 (0 — по умолчанию 20).
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return s.store.History(ctx, userID, limit)
}
