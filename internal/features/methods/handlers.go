// Package methods — handlers.go: /api/payout-methods.
package methods

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"serotonyl.ru/payout-bot/internal/httpapi/respond"
	"serotonyl.ru/payout-bot/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register вешает маршруты на группу пользователя.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/payout-methods", h.HandleList)
	g.POST("/payout-methods", h.HandleAdd)
	g.PUT("/payout-methods/:id/default", h.HandleSetDefault)
	g.DELETE("/payout-methods/:id", h.HandleRemove)
}

func (h *Handler) HandleList(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	views := make([]View, 0, len(list))
	for _, m := range list {
		views = append(views, m.View())
	}
	c.JSON(http.StatusOK, gin.H{"payout_methods": views})
}

func (h *Handler) HandleAdd(c *gin.Context) {
	var in AddInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}
	m, err := h.service.Add(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, m.View())
}

func (h *Handler) HandleSetDefault(c *gin.Context) {
	id, ok := methodID(c)
	if !ok {
		return
	}
	if err := h.service.SetDefault(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) HandleRemove(c *gin.Context) {
	id, ok := methodID(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func methodID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.BadRequest(c, "invalid payout method id")
		return uuid.Nil, false
	}
	return id, true
}
