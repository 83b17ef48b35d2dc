// Package pgtest поднимает пул к тестовой базе для интеграционных тестов.
// Тесты пропускаются, если PAYOUTS_TEST_DSN не задан.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/payout-bot/internal/db/postgres"
)

// EnvDSN — переменная окружения со строкой подключения к тестовой базе.
const EnvDSN = "PAYOUTS_TEST_DSN"

// Open подключается к тестовой базе и применяет миграции.
// Таблицы не очищаются: пакеты тестов идут параллельно, поэтому каждый тест
// работает со своими свежими uuid пользователей.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s не задан, интеграционный тест пропущен", EnvDSN)
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn, 20, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))

	return pool
}
