package referrals

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/wallet"
)

type Store interface {
	RecordPurchase(ctx context.Context, p Purchase) (bool, error)
	ReferrerOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// Wallet — начисление на кошелёк (wallet.Service).
type Wallet interface {
	Credit(ctx context.Context, e wallet.Entry) (bool, error)
}

type Service struct {
	store   Store
	wallet  Wallet
	percent decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// NewService — percent в процентах от суммы покупки (10 = 10%).
func NewService(store Store, w Wallet, percent decimal.Decimal) *Service {
	return &Service{store: store, wallet: w, percent: percent}
}

// HandlePurchase записывает покупку и начисляет комиссию пригласившему.
// Повтор того же платежа безопасен: кошелёк дедуплицирует по id платежа.
// Возвращает nil, если комиссии нет (нет пригласившего или сумма округлилась до нуля).
func (s *Service) HandlePurchase(ctx context.Context, p Purchase) (*Commission, error) {
	if p.PaymentID == "" || p.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: purchase without payment id or user", common.ErrMalformedEvent)
	}

	logger := log.WithFields(log.Fields{
		"payment_id": p.PaymentID,
		"user_id":    p.UserID,
		"amount":     p.Amount.String(),
	})

	inserted, err := s.store.RecordPurchase(ctx, p)
	if err != nil {
		return nil, err
	}
	if !inserted {
		logger.Debug("Покупка уже записана")
	}

	referrer, err := s.store.ReferrerOf(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if referrer == uuid.Nil {
		return nil, nil
	}

	amount := p.Amount.Mul(s.percent).Div(hundred).RoundDown(2)
	if !amount.IsPositive() {
		return nil, nil
	}

	applied, err := s.wallet.Credit(ctx, wallet.Entry{
		UserID:      referrer,
		Amount:      amount,
		Type:        wallet.TxReferralCommission,
		Description: fmt.Sprintf("Referral commission for payment %s", p.PaymentID),
		Reference:   p.PaymentID,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка начисления комиссии: %w", err)
	}

	logger.WithFields(log.Fields{
		"referrer_id": referrer,
		"commission":  amount.String(),
		"applied":     applied,
	}).Info("Комиссия за приглашение")
	return &Commission{ReferrerID: referrer, Amount: amount, Applied: applied}, nil
}
