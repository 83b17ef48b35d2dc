// Package respond переводит ошибки предметной области в HTTP-ответы.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/common"
)

// Status возвращает HTTP-код для ошибки.
func Status(err error) int {
	switch {
	case errors.Is(err, common.ErrPayoutNotFound), errors.Is(err, common.ErrMethodNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrMethodInUse), errors.Is(err, common.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidSignature):
		return http.StatusUnauthorized
	case common.IsValidation(err), errors.Is(err, common.ErrMalformedEvent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error пишет {"error": ...}. Для 500 текст ошибки наружу не отдаём.
func Error(c *gin.Context, err error) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("ошибка обработки запроса")
		msg = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BadRequest — для ошибок разбора тела и параметров.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
