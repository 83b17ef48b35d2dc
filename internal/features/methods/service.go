// Package methods — service.go: проверка реквизитов и операции над способами выплаты.
package methods

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store — хранилище способов выплаты.
type Store interface {
	Add(ctx context.Context, userID uuid.UUID, in AddInput) (*Method, error)
	List(ctx context.Context, userID uuid.UUID) ([]*Method, error)
	Get(ctx context.Context, userID, methodID uuid.UUID) (*Method, error)
	GetByID(ctx context.Context, methodID uuid.UUID) (*Method, error)
	SetDefault(ctx context.Context, userID, methodID uuid.UUID) error
	Remove(ctx context.Context, userID, methodID uuid.UUID) error
}

// Service управляет способами выплаты.
type Service struct {
	store Store
}

// NewService создаёт сервис способов выплаты.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add проверяет реквизиты и сохраняет способ.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, in AddInput) (*Method, error) {
	normalized, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	m, err := s.store.Add(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id":    userID,
		"method_id":  m.ID,
		"type":       m.Type,
		"is_default": m.IsDefault,
	}).Info("Добавлен способ выплаты")
	return m, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Method, error) {
	return s.store.List(ctx, userID)
}

// Lookup возвращает способ по id без проверки владельца.
func (s *Service) Lookup(ctx context.Context, methodID uuid.UUID) (*Method, error) {
	return s.store.GetByID(ctx, methodID)
}

// SetDefault делает способ основным.
func (s *Service) SetDefault(ctx context.Context, userID, methodID uuid.UUID) error {
	if err := s.store.SetDefault(ctx, userID, methodID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "method_id": methodID}).Info("Способ выплаты стал основным")
	return nil
}

// Remove удаляет способ (ErrMethodInUse, если по нему идёт выплата).
func (s *Service) Remove(ctx context.Context, userID, methodID uuid.UUID) error {
	if err := s.store.Remove(ctx, userID, methodID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "method_id": methodID}).Info("Способ выплаты удалён")
	return nil
}
