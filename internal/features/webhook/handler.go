package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/payouts"
	"serotonyl.ru/payout-bot/internal/features/referrals"
)

// HeaderSignature — заголовок с подписью Razorpay.
const HeaderSignature = "X-Razorpay-Signature"

const maxBodyBytes = 1 << 20

type Purchases interface {
	HandlePurchase(ctx context.Context, p referrals.Purchase) (*referrals.Commission, error)
}

type Settler interface {
	SettleFromProcessor(ctx context.Context, upd payouts.ProcessorUpdate) (*payouts.Settlement, error)
}

// Handler — POST /webhooks/razorpay.
type Handler struct {
	secret    string
	purchases Purchases
	payouts   Settler
}

func NewHandler(secret string, purchases Purchases, settler Settler) *Handler {
	return &Handler{secret: secret, purchases: purchases, payouts: settler}
}

// Handle проверяет подпись, затем применяет событие.
// 5xx только на внутренних ошибках, чтобы Razorpay повторил доставку.
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	logger := log.WithFields(log.Fields{"component": "razorpay_webhook", "ip": c.ClientIP()})
	if !VerifySignature(body, c.GetHeader(HeaderSignature), h.secret) {
		logger.Warn("вебхук с неверной подписью")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	ev, err := Parse(body)
	if err != nil {
		logger.WithError(err).Warn("не удалось разобрать вебхук")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}
	logger = logger.WithField("event", ev.Name)

	ctx := c.Request.Context()
	switch {
	case ev.Purchase != nil:
		_, err = h.purchases.HandlePurchase(ctx, *ev.Purchase)
	case ev.Payout != nil:
		_, err = h.payouts.SettleFromProcessor(ctx, *ev.Payout)
	default:
		logger.Debug("событие не обрабатывается, подтверждаем")
	}

	if err != nil {
		if errors.Is(err, common.ErrMalformedEvent) {
			logger.WithError(err).Warn("некорректное событие")
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
			return
		}
		logger.WithError(err).Error("ошибка обработки вебхука")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
