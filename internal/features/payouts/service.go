// Package payouts — service.go: оркестрация расчёта заявок.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/methods"
	"serotonyl.ru/payout-bot/internal/processor"
)

// Store — хранилище заявок (Repository в проде, фейк в тестах).
type Store interface {
	Create(ctx context.Context, in NewRequest) (*Request, *methods.Method, error)
	Get(ctx context.Context, id uuid.UUID) (*Request, error)
	GetByProcessorRef(ctx context.Context, ref string) (*Request, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Request, error)
	ListPending(ctx context.Context, before time.Time) ([]*Request, error)
	AttachProcessorRef(ctx context.Context, id uuid.UUID, ref string) error
	MarkDispatched(ctx context.Context, id uuid.UUID, ref string) error
	MarkSucceeded(ctx context.Context, id uuid.UUID, ref string, amount decimal.Decimal) (*Settlement, error)
	MarkFailed(ctx context.Context, id uuid.UUID, ref, reason string) (*Settlement, error)
}

// Processor — внешний процессор выплат.
type Processor interface {
	CreatePayout(ctx context.Context, req processor.PayoutRequest) (*processor.Result, error)
}

// Notifier — сообщения в чат оператора.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Options — настраиваемые параметры расчёта.
type Options struct {
	MinAmount decimal.Decimal
	Currency  string
}

const listLimit = 50

// Service управляет жизненным циклом заявок.
type Service struct {
	store     Store
	processor Processor // nil — автоматические выплаты выключены
	notifier  Notifier
	opts      Options
}

// NewService создаёт сервис заявок. proc может быть nil.
func NewService(store Store, proc Processor, notifier Notifier, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &Service{store: store, processor: proc, notifier: notifier, opts: opts}
}

// MinAmount — минимальная сумма вывода.
func (s *Service) MinAmount() decimal.Decimal { return s.opts.MinAmount }

// RequestWithdrawal создаёт заявку, уведомляет оператора и, если процессор настроен,
// сразу отправляет выплату.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, methodID *uuid.UUID) (*Outcome, error) {
	if !common.ValidMoney(amount) {
		return nil, common.ErrInvalidAmount
	}
	if amount.LessThan(s.opts.MinAmount) {
		return nil, fmt.Errorf("%w (minimum %s)", common.ErrBelowMinimum, common.FormatINR(s.opts.MinAmount))
	}

	req, method, err := s.store.Create(ctx, NewRequest{UserID: userID, Amount: amount, MethodID: methodID})
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"payout_id": req.ID,
		"user_id":   userID,
		"amount":    amount.String(),
		"method":    method.Type,
	})
	logger.Info("Создана заявка на выплату")

	s.notify(ctx, fmt.Sprintf(
		"🆕 Withdrawal request %s\nUser: %s\nAmount: %s\nMethod: %s\n\nConfirm with /confirm_payout %s",
		req.ID, userID, common.FormatINR(amount), method.Describe(), req.ID,
	))

	if s.processor == nil {
		return &Outcome{
			Success: true,
			Message: "Withdrawal request submitted and awaiting confirmation",
			Payout:  req,
		}, nil
	}
	return s.dispatch(ctx, req, method, logger), nil
}

// dispatch отправляет заявку в процессор и применяет немедленный ответ.
func (s *Service) dispatch(ctx context.Context, req *Request, method *methods.Method, logger *log.Entry) *Outcome {
	res, err := s.processor.CreatePayout(ctx, processor.PayoutRequest{
		ReferenceID:   req.ID.String(),
		UserID:        req.UserID.String(),
		AmountPaise:   common.ToPaise(req.Amount),
		Currency:      s.opts.Currency,
		VPA:           method.UPIID,
		AccountNumber: method.AccountNumber,
		IFSC:          method.IFSCCode,
	})
	if err != nil {
		logger.WithError(err).Warn("Процессор отклонил выплату")
		return s.failImmediately(ctx, req, "", common.Truncate(err.Error(), 500))
	}

	logger = logger.WithFields(log.Fields{"processor_id": res.ID, "processor_status": res.Status})

	switch {
	case res.Succeeded():
		st, err := s.store.MarkSucceeded(ctx, req.ID, res.ID, decimal.Zero)
		if err != nil {
			logger.WithError(err).Error("Не удалось отметить выплату успешной")
			return &Outcome{Success: true, Message: "Payout processed", Payout: s.reload(ctx, req)}
		}
		s.reportWalletErr(ctx, st, logger)
		return &Outcome{Success: true, Message: "Payout processed", Payout: st.Payout}

	case res.Final():
		reason := res.FailureReason
		if reason == "" {
			reason = "processor status " + res.Status
		}
		return s.failImmediately(ctx, req, res.ID, reason)

	default:
		err := s.store.MarkDispatched(ctx, req.ID, res.ID)
		switch {
		case errors.Is(err, common.ErrAlreadyProcessed):
			// вебхук процессора успел закрыть заявку раньше ответа CreatePayout
			logger.Info("Заявка уже закрыта вебхуком процессора")
			if err := s.store.AttachProcessorRef(ctx, req.ID, res.ID); err != nil {
				logger.WithError(err).Warn("Не удалось сохранить id процессора")
			}
			fresh := s.reload(ctx, req)
			return &Outcome{Success: fresh.Status != StatusFailed, Message: settledMessage(fresh), Payout: fresh}
		case err != nil:
			logger.WithError(err).Error("Не удалось списать средства под отправленную выплату")
			if err := s.store.AttachProcessorRef(ctx, req.ID, res.ID); err != nil {
				logger.WithError(err).Error("Не удалось сохранить id процессора")
			}
			s.notify(ctx, fmt.Sprintf("⚠️ Payout %s is in flight at the processor (%s) but the wallet debit failed: %v", req.ID, res.ID, err))
		}
		logger.Info("Выплата передана процессору")
		return &Outcome{Success: true, Message: "Payout is being processed", Payout: s.reload(ctx, req)}
	}
}

func (s *Service) failImmediately(ctx context.Context, req *Request, ref, reason string) *Outcome {
	st, err := s.store.MarkFailed(ctx, req.ID, ref, reason)
	if err != nil {
		log.WithError(err).WithField("payout_id", req.ID).Error("Не удалось отметить выплату неуспешной")
		return &Outcome{Success: false, Message: "Payout failed: " + reason, Payout: s.reload(ctx, req)}
	}
	s.notify(ctx, fmt.Sprintf("❌ Payout %s failed at the processor: %s", req.ID, reason))
	return &Outcome{Success: false, Message: "Payout failed: " + reason, Payout: st.Payout}
}

// SettleFromProcessor применяет событие вебхука. Неизвестные и уже закрытые заявки — no-op.
func (s *Service) SettleFromProcessor(ctx context.Context, upd ProcessorUpdate) (*Settlement, error) {
	logger := log.WithFields(log.Fields{
		"event":        upd.Event,
		"processor_id": upd.ProcessorRef,
		"reference_id": upd.ReferenceID,
	})

	req, err := s.findForUpdate(ctx, upd)
	if errors.Is(err, common.ErrPayoutNotFound) {
		logger.Warn("Вебхук для неизвестной выплаты, пропускаем")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logger = logger.WithField("payout_id", req.ID)

	var st *Settlement
	switch upd.Kind {
	case UpdateProcessed:
		st, err = s.store.MarkSucceeded(ctx, req.ID, upd.ProcessorRef, decimal.Zero)
	case UpdateFailed:
		reason := upd.Reason
		if reason == "" {
			reason = upd.Event
		}
		st, err = s.store.MarkFailed(ctx, req.ID, upd.ProcessorRef, reason)
	default:
		return nil, fmt.Errorf("%w: unknown update kind %d", common.ErrMalformedEvent, upd.Kind)
	}
	if errors.Is(err, common.ErrAlreadyProcessed) {
		logger.Info("Выплата уже закрыта, повтор вебхука игнорируем")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{
		"status":   st.Payout.Status,
		"debited":  st.Debited,
		"refunded": st.Refunded,
	}).Info("Выплата закрыта по вебхуку")

	if st.Payout.Status == StatusSuccess {
		s.notify(ctx, fmt.Sprintf("✅ Payout %s processed by the processor, %s", req.ID, common.FormatINR(req.Amount)))
	} else {
		msg := fmt.Sprintf("❌ Payout %s failed: %s", req.ID, derefOr(st.Payout.FailureReason, upd.Event))
		if st.Refunded {
			msg += fmt.Sprintf("\n%s returned to the wallet", common.FormatINR(req.Amount))
		}
		s.notify(ctx, msg)
	}
	s.reportWalletErr(ctx, st, logger)
	return st, nil
}

func (s *Service) findForUpdate(ctx context.Context, upd ProcessorUpdate) (*Request, error) {
	if upd.ProcessorRef != "" {
		req, err := s.store.GetByProcessorRef(ctx, upd.ProcessorRef)
		if err == nil || !errors.Is(err, common.ErrPayoutNotFound) {
			return req, err
		}
	}
	id, err := uuid.Parse(upd.ReferenceID)
	if err != nil {
		return nil, common.ErrPayoutNotFound
	}
	return s.store.Get(ctx, id)
}

// ConfirmManually — оператор подтвердил выплату: pending → success и списание amount.
// ErrAlreadyProcessed, если заявка уже закрыта.
func (s *Service) ConfirmManually(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Settlement, error) {
	st, err := s.store.MarkSucceeded(ctx, id, "", amount)
	if err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{"payout_id": id, "amount": amount.String(), "debited": st.Debited})
	if st.WalletErr != nil {
		logger.WithError(st.WalletErr).Error("Выплата подтверждена, но списание не удалось")
	} else {
		logger.Info("Выплата подтверждена оператором")
	}
	return st, nil
}

// FailManually — административный отказ: pending → failed и возврат, если было списание.
func (s *Service) FailManually(ctx context.Context, id uuid.UUID, reason string) (*Settlement, error) {
	if reason == "" {
		reason = "rejected by operator"
	}
	st, err := s.store.MarkFailed(ctx, id, "", reason)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"payout_id": id,
		"reason":    reason,
		"refunded":  st.Refunded,
	}).Info("Выплата отклонена вручную")
	return st, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Request, error) {
	return s.store.ListForUser(ctx, userID, listLimit)
}

// ListPending — pending-заявки старше olderThan (0 — все).
func (s *Service) ListPending(ctx context.Context, olderThan time.Duration) ([]*Request, error) {
	return s.store.ListPending(ctx, time.Now().Add(-olderThan))
}

func (s *Service) reportWalletErr(ctx context.Context, st *Settlement, logger *log.Entry) {
	if st == nil || st.WalletErr == nil {
		return
	}
	logger.WithError(st.WalletErr).Error("Статус финальный, но списание с кошелька не удалось")
	s.notify(ctx, fmt.Sprintf("⚠️ Payout %s is marked success but the wallet debit failed: %v", st.Payout.ID, st.WalletErr))
}

func settledMessage(req *Request) string {
	switch req.Status {
	case StatusSuccess:
		return "Payout processed"
	case StatusFailed:
		if req.FailureReason != nil {
			return "Payout failed: " + *req.FailureReason
		}
		return "Payout failed"
	}
	return "Payout is being processed"
}

func (s *Service) reload(ctx context.Context, req *Request) *Request {
	fresh, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return req
	}
	return fresh
}

// notify — уведомление оператору. Ошибки только логируются.
func (s *Service) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		log.WithError(err).Warn("Не удалось отправить уведомление оператору")
	}
}

func derefOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}
