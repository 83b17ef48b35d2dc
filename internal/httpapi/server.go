// Package httpapi собирает gin-роутер сервиса: вебхуки, API пользователя и админский API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/middleware"
)

// Routes — обработчики, которые вешаются на роутер.
type Routes struct {
	RazorpayWebhook gin.HandlerFunc
	TelegramWebhook gin.HandlerFunc

	Wallet   Registrar
	Methods  Registrar
	Payouts  PayoutsRegistrar
	Admin    Registrar
	AdminKey gin.HandlerFunc

	JWTSecret         string
	WithdrawalLimiter *middleware.RateLimiter
	Health            func(ctx context.Context) error
}

// Registrar — обработчики фичи (wallet, methods, admin).
type Registrar interface {
	Register(g *gin.RouterGroup)
}

// PayoutsRegistrar — payouts.Handler: создание заявки получает свои middleware.
type PayoutsRegistrar interface {
	Register(g *gin.RouterGroup, create ...gin.HandlerFunc)
}

// NewRouter собирает роутер.
func NewRouter(r Routes) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.Recovery(), middleware.RequestLogger())

	engine.GET("/healthz", func(c *gin.Context) {
		if r.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := r.Health(ctx); err != nil {
				log.WithError(err).Warn("healthcheck failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	hooks := engine.Group("/webhooks")
	hooks.POST("/razorpay", r.RazorpayWebhook)
	hooks.POST("/telegram", r.TelegramWebhook)

	api := engine.Group("/api", middleware.AuthRequired(r.JWTSecret))
	r.Wallet.Register(api)
	r.Methods.Register(api)
	var createMW []gin.HandlerFunc
	if r.WithdrawalLimiter != nil {
		createMW = append(createMW, middleware.RateLimit(r.WithdrawalLimiter, middleware.UserKey))
	}
	r.Payouts.Register(api, createMW...)

	adminGroup := engine.Group("/admin", r.AdminKey)
	r.Admin.Register(adminGroup)

	return engine
}

// Server — HTTP-сервер с graceful shutdown.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Start блокируется до остановки сервера. После Shutdown возвращает nil.
func (s *Server) Start() error {
	log.WithField("addr", s.srv.Addr).Info("HTTP сервер запущен")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
