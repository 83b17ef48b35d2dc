// Package wallet — handlers.go отдаёт кошелёк и историю по HTTP.
package wallet

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/payout-bot/internal/httpapi/respond"
	"serotonyl.ru/payout-bot/internal/middleware"
)

// Handler обрабатывает /api/wallet*.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик кошелька.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register вешает маршруты на группу, уже закрытую AuthRequired.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/wallet", h.HandleWallet)
	g.GET("/wallet/transactions", h.HandleTransactions)
}

// HandleWallet — GET /api/wallet
func (h *Handler) HandleWallet(c *gin.Context) {
	w, err := h.service.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// HandleTransactions — GET /api/wallet/transactions?limit=N
func (h *Handler) HandleTransactions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.BadRequest(c, "limit must be a number")
			return
		}
		limit = n
	}

	txs, err := h.service.History(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if txs == nil {
		txs = []*Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
