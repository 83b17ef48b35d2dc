// Package config загружает конфигурацию сервиса выплат из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Хранилища сессий подтверждения выплат.
const (
	ConfirmStorePostgres = "postgres"
	ConfirmStoreMemory   = "memory"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// --- Telegram (канал оператора) ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Единственный чат, из которого принимаются команды подтверждения выплат
	OperatorChatID int64 `envconfig:"OPERATOR_CHAT_ID" required:"true"`
	// Секрет, который Telegram кладёт в X-Telegram-Bot-Api-Secret-Token
	TelegramWebhookSecret string `envconfig:"TELEGRAM_WEBHOOK_SECRET" required:"true"`
	// Если задан — при старте регистрируем вебхук (setWebhook)
	TelegramWebhookURL string `envconfig:"TELEGRAM_WEBHOOK_URL"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"payouts"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"learn_earn"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Kolkata"`

	// --- Razorpay ---
	// Ключи API нужны только для автоматических выплат (RazorpayX).
	// Без них все заявки ждут ручного подтверждения оператором.
	RazorpayKeyID         string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `envconfig:"RAZORPAY_KEY_SECRET"`
	RazorpayXAccount      string `envconfig:"RAZORPAYX_ACCOUNT_NUMBER"`
	RazorpayWebhookSecret string `envconfig:"RAZORPAY_WEBHOOK_SECRET" required:"true"`

	// --- Payouts ---
	PayoutMinAmount  decimal.Decimal `envconfig:"PAYOUT_MIN_AMOUNT" default:"100"`
	PayoutCurrency   string          `envconfig:"PAYOUT_CURRENCY" default:"INR"`
	PayoutConfirmTTL time.Duration   `envconfig:"PAYOUT_CONFIRM_TTL" default:"10m"`
	ConfirmStore     string          `envconfig:"CONFIRM_STORE" default:"postgres"`

	// --- Referrals ---
	ReferralCommissionPercent decimal.Decimal `envconfig:"REFERRAL_COMMISSION_PERCENT" default:"10"`

	// --- Auth ---
	// JWT, выданные бэкендом аутентификации (HS256)
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Argon2id-хеш ключа админского API (scripts/generate_hash.go)
	AdminAPIKeyHash string `envconfig:"ADMIN_API_KEY_HASH" required:"true"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"5"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Jobs ---
	PendingDigestSchedule string        `envconfig:"PENDING_DIGEST_SCHEDULE" default:"0 10 * * *"`
	PendingStaleAfter     time.Duration `envconfig:"PENDING_STALE_AFTER" default:"24h"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// ProcessorEnabled сообщает, настроены ли автоматические выплаты через RazorpayX.
func (c *Config) ProcessorEnabled() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != "" && c.RazorpayXAccount != ""
}

func (c *Config) Validate() error {
	if c.OperatorChatID == 0 {
		return fmt.Errorf("OPERATOR_CHAT_ID не задан или равен 0")
	}
	if strings.TrimSpace(c.TelegramWebhookSecret) == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_SECRET пустой")
	}
	if !c.PayoutMinAmount.IsPositive() {
		return fmt.Errorf("PAYOUT_MIN_AMOUNT должен быть > 0")
	}
	if c.PayoutConfirmTTL <= 0 {
		return fmt.Errorf("PAYOUT_CONFIRM_TTL должен быть > 0")
	}
	if c.ReferralCommissionPercent.IsNegative() || c.ReferralCommissionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("REFERRAL_COMMISSION_PERCENT должен быть в диапазоне 0..100")
	}
	switch c.ConfirmStore {
	case ConfirmStorePostgres, ConfirmStoreMemory:
	default:
		return fmt.Errorf("CONFIRM_STORE: неизвестное хранилище %q", c.ConfirmStore)
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	// .env не обязателен: в Docker всё приходит через окружение
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	cfg.ConfirmStore = strings.ToLower(strings.TrimSpace(cfg.ConfirmStore))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
