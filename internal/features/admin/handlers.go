// Package admin — handlers.go: /admin/payouts/*, доступ по X-Admin-Key.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/features/payouts"
	"serotonyl.ru/payout-bot/internal/httpapi/respond"
	"serotonyl.ru/payout-bot/internal/middleware"
)

// HeaderAdminKey — заголовок с ключом админского API.
const HeaderAdminKey = "X-Admin-Key"

// PayoutAdmin — операции над заявками, доступные администратору.
type PayoutAdmin interface {
	ListPending(ctx context.Context, olderThan time.Duration) ([]*payouts.Request, error)
	FailManually(ctx context.Context, id uuid.UUID, reason string) (*payouts.Settlement, error)
}

// AuditLog — журнал действий.
type AuditLog interface {
	Record(ctx context.Context, e AuditEntry) error
}

// Handler обслуживает админский API.
type Handler struct {
	payouts PayoutAdmin
	audit   AuditLog
}

func NewHandler(p PayoutAdmin, audit AuditLog) *Handler {
	return &Handler{payouts: p, audit: audit}
}

// Register вешает маршруты на группу, закрытую RequireKey.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/payouts/pending", h.HandlePending)
	g.POST("/payouts/:id/fail", h.HandleFail)
}

// RequireKey проверяет X-Admin-Key. Неудачные попытки считаются по IP:
// после лимита адрес получает 429 до конца окна, даже с верным ключом.
func RequireKey(verifier *KeyVerifier, failures *middleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		logger := log.WithFields(log.Fields{"component": "admin_auth", "ip": ip})

		if failures.Exceeded(ip) {
			logger.Warn("слишком много попыток с неверным ключом")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
			return
		}
		if !verifier.Verify(c.GetHeader(HeaderAdminKey)) {
			failures.Allow(ip)
			logger.Warn("неверный ключ админского API")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// HandlePending — GET /admin/payouts/pending?older_than=24h
func (h *Handler) HandlePending(c *gin.Context) {
	var olderThan time.Duration
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			respond.BadRequest(c, "older_than must be a duration like 24h")
			return
		}
		olderThan = d
	}

	list, err := h.payouts.ListPending(c.Request.Context(), olderThan)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if list == nil {
		list = []*payouts.Request{}
	}
	c.JSON(http.StatusOK, gin.H{"pending": list})
}

type failBody struct {
	Reason string `json:"reason"`
}

// HandleFail — POST /admin/payouts/:id/fail {reason}
func (h *Handler) HandleFail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.BadRequest(c, "invalid payout id")
		return
	}
	var body failBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respond.BadRequest(c, "invalid request body")
			return
		}
	}

	st, err := h.payouts.FailManually(c.Request.Context(), id, body.Reason)
	if err != nil {
		respond.Error(c, err)
		return
	}

	entry := AuditEntry{
		Actor:    APIActor,
		Action:   ActionFailPayout,
		PayoutID: &st.Payout.ID,
		UserID:   &st.Payout.UserID,
		Amount:   decimal.NewNullDecimal(st.Payout.Amount),
		Details:  "ip=" + c.ClientIP() + " reason=" + derefOr(st.Payout.FailureReason),
	}
	if err := h.audit.Record(c.Request.Context(), entry); err != nil {
		log.WithError(err).WithField("payout_id", id).Error("Не удалось записать действие в журнал")
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"payout":   st.Payout,
		"refunded": st.Refunded,
	})
}

func derefOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
