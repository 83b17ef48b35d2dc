// Package payouts — handlers.go: /api/withdrawals.
package payouts

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"serotonyl.ru/payout-bot/internal/httpapi/respond"
	"serotonyl.ru/payout-bot/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// withdrawalBody — тело POST /api/withdrawals.
type withdrawalBody struct {
	Amount         decimal.Decimal `json:"amount"`
	PayoutMethodID *uuid.UUID      `json:"payout_method_id"`
}

// Register вешает маршруты; create — дополнительные middleware на создание (rate limit).
func (h *Handler) Register(g *gin.RouterGroup, create ...gin.HandlerFunc) {
	chain := append(append([]gin.HandlerFunc{}, create...), h.HandleCreate)
	g.POST("/withdrawals", chain...)
	g.GET("/withdrawals", h.HandleList)
}

// HandleCreate — POST /api/withdrawals → {success, message, payout_id}
func (h *Handler) HandleCreate(c *gin.Context) {
	var body withdrawalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		rejectWithdrawal(c, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.service.RequestWithdrawal(c.Request.Context(), middleware.UserID(c), body.Amount, body.PayoutMethodID)
	if err != nil {
		if status := respond.Status(err); status < http.StatusInternalServerError {
			rejectWithdrawal(c, status, err.Error())
			return
		}
		respond.Error(c, err)
		return
	}

	status := http.StatusCreated
	if !out.Success {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":   out.Success,
		"message":   out.Message,
		"payout_id": out.Payout.ID,
		"status":    out.Payout.Status,
	})
}

// rejectWithdrawal — отказ в форме {success, message}; error дублирует message для общих клиентов.
func rejectWithdrawal(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg, "error": msg})
}

// HandleList — GET /api/withdrawals
func (h *Handler) HandleList(c *gin.Context) {
	list, err := h.service.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if list == nil {
		list = []*Request{}
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}
