// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики
// и собирает всё в HTTP-сервер и планировщик.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/payout-bot/internal/bot"
	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/config"
	"serotonyl.ru/payout-bot/internal/db/postgres"
	"serotonyl.ru/payout-bot/internal/features/admin"
	"serotonyl.ru/payout-bot/internal/features/confirm"
	"serotonyl.ru/payout-bot/internal/features/methods"
	"serotonyl.ru/payout-bot/internal/features/payouts"
	"serotonyl.ru/payout-bot/internal/features/referrals"
	"serotonyl.ru/payout-bot/internal/features/wallet"
	"serotonyl.ru/payout-bot/internal/features/webhook"
	"serotonyl.ru/payout-bot/internal/httpapi"
	"serotonyl.ru/payout-bot/internal/jobs"
	"serotonyl.ru/payout-bot/internal/middleware"
	"serotonyl.ru/payout-bot/internal/processor"
)

// Попытки с неверным X-Admin-Key: столько за окно, дальше 429.
const (
	adminFailLimit  = 5
	adminFailWindow = 15 * time.Minute
)

// App содержит все компоненты приложения.
type App struct {
	Server      *httpapi.Server
	Scheduler   *jobs.Scheduler
	DB          *pgxpool.Pool
	TelegramBot *telego.Bot

	limiters []*middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	var botOpts []telego.BotOption
	if cfg.AppEnv == "development" {
		botOpts = append(botOpts, telego.WithDefaultDebugLogger())
	}
	tg, err := telego.NewBot(cfg.TelegramBotToken, botOpts...)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botUsername := ""
	if me, err := tg.GetMe(ctx); err != nil {
		log.WithError(err).Warn("getMe не удался, команды вида /cmd@Bot принимаются без проверки имени")
	} else {
		botUsername = me.Username
		log.Infof("Авторизован как @%s", me.Username)
	}
	if cfg.TelegramWebhookURL != "" {
		if err := tg.SetWebhook(ctx, &telego.SetWebhookParams{
			URL:         cfg.TelegramWebhookURL,
			SecretToken: cfg.TelegramWebhookSecret,
		}); err != nil {
			log.WithError(err).Error("Не удалось зарегистрировать вебхук Telegram")
		} else {
			log.WithField("url", cfg.TelegramWebhookURL).Info("Вебхук Telegram зарегистрирован")
		}
	}
	notifier := bot.NewNotifier(tg, cfg.OperatorChatID)

	// === 3. Репозитории ===
	walletRepo := wallet.NewRepository(pool)
	methodRepo := methods.NewRepository(pool)
	payoutRepo := payouts.NewRepository(pool)
	referralRepo := referrals.NewRepository(pool)
	auditRepo := admin.NewRepository(pool)

	var sessions confirm.SessionStore
	switch cfg.ConfirmStore {
	case config.ConfirmStoreMemory:
		sessions = confirm.NewMemoryStore()
		log.Warn("Сессии подтверждения хранятся в памяти: только одна реплика")
	default:
		sessions = confirm.NewPostgresStore(pool)
	}

	// === 4. Сервисы ===
	// nil-интерфейс, а не (*RazorpayX)(nil): сервис проверяет processor == nil
	var proc payouts.Processor
	if cfg.ProcessorEnabled() {
		proc = processor.NewRazorpayX(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayXAccount)
		log.Info("Автоматические выплаты RazorpayX включены")
	} else {
		log.Info("RazorpayX не настроен, выплаты подтверждаются оператором вручную")
	}

	walletService := wallet.NewService(walletRepo)
	methodService := methods.NewService(methodRepo)
	payoutService := payouts.NewService(payoutRepo, proc, notifier, payouts.Options{
		MinAmount: cfg.PayoutMinAmount,
		Currency:  cfg.PayoutCurrency,
	})
	referralService := referrals.NewService(referralRepo, walletService, cfg.ReferralCommissionPercent)
	confirmService := confirm.NewService(payoutService, sessions, auditRepo, cfg.PayoutConfirmTTL)

	keyVerifier, err := admin.NewKeyVerifier(cfg.AdminAPIKeyHash)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ADMIN_API_KEY_HASH: %w", err)
	}

	// === 5. Канал оператора ===
	loc := common.LoadLocation(cfg.AppTimezone)
	operatorBot := bot.New(tg, confirmService, payoutService, auditRepo, bot.Options{
		OperatorChatID: cfg.OperatorChatID,
		WebhookSecret:  cfg.TelegramWebhookSecret,
		BotUsername:    botUsername,
		Location:       loc,
	})

	// === 6. HTTP ===
	withdrawalLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	adminFailures := middleware.NewRateLimiter(adminFailLimit, adminFailWindow)

	router := httpapi.NewRouter(httpapi.Routes{
		RazorpayWebhook:   webhook.NewHandler(cfg.RazorpayWebhookSecret, referralService, payoutService).Handle,
		TelegramWebhook:   operatorBot.HandleWebhook,
		Wallet:            wallet.NewHandler(walletService),
		Methods:           methods.NewHandler(methodService),
		Payouts:           payouts.NewHandler(payoutService),
		Admin:             admin.NewHandler(payoutService, auditRepo),
		AdminKey:          admin.RequireKey(keyVerifier, adminFailures),
		JWTSecret:         cfg.JWTSecret,
		WithdrawalLimiter: withdrawalLimiter,
		Health:            pool.Ping,
	})

	// === 7. Планировщик задач ===
	scheduler := jobs.NewScheduler(confirmService, payoutService, notifier, jobs.Options{
		Location:       loc,
		DigestSchedule: cfg.PendingDigestSchedule,
		StaleAfter:     cfg.PendingStaleAfter,
	})

	return &App{
		Server:      httpapi.NewServer(cfg.HTTPAddr, router),
		Scheduler:   scheduler,
		DB:          pool,
		TelegramBot: tg,
		limiters:    []*middleware.RateLimiter{withdrawalLimiter, adminFailures},
	}, nil
}

// Close освобождает ресурсы после остановки сервера.
func (a *App) Close() {
	for _, rl := range a.limiters {
		rl.Close()
	}
	a.DB.Close()
}
