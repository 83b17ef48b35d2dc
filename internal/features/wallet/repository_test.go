package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/db/postgres/pgtest"
)

func setUpWallet(t *testing.T, repo *Repository, balance int64) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	if balance > 0 {
		applied, err := repo.Credit(context.Background(), Entry{
			UserID:    userID,
			Amount:    decimal.NewFromInt(balance),
			Type:      TxAdjustment,
			Reference: uuid.NewString(),
		})
		require.NoError(t, err)
		require.True(t, applied)
	}
	return userID
}

func TestGetUnknownUserIsZero(t *testing.T) {
	repo := NewRepository(pgtest.Open(t))

	w, err := repo.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.TotalEarned.IsZero())
}

func TestConcurrentDebits(t *testing.T) {
	repo := NewRepository(pgtest.Open(t))
	userID := setUpWallet(t, repo, 50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount, failCount := 0, 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Debit(context.Background(), Entry{
				UserID:    userID,
				Amount:    decimal.NewFromInt(10),
				Type:      TxWithdrawal,
				Reference: uuid.NewString(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, common.ErrInsufficientBalance)
				failCount++
			} else {
				successCount++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, successCount, "successCount")
	require.Equal(t, 5, failCount, "failCount")

	w, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, w.Balance.IsZero(), "finalBalance %s", w.Balance)
	require.True(t, w.TotalWithdrawn.Equal(decimal.NewFromInt(50)))
}

func TestDebitInsufficientLeavesWalletUntouched(t *testing.T) {
	repo := NewRepository(pgtest.Open(t))
	userID := setUpWallet(t, repo, 30)

	err := repo.Debit(context.Background(), Entry{UserID: userID, Amount: decimal.NewFromInt(31), Type: TxWithdrawal})
	require.True(t, errors.Is(err, common.ErrInsufficientBalance))

	w, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(30)))

	history, err := repo.History(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestIdempotentCreditByReference(t *testing.T) {
	repo := NewRepository(pgtest.Open(t))
	userID := uuid.New()
	e := Entry{
		UserID:    userID,
		Amount:    decimal.NewFromInt(40),
		Type:      TxReferralCommission,
		Reference: "pay_" + uuid.NewString(),
	}

	applied, err := repo.Credit(context.Background(), e)
	require.NoError(t, err)
	require.True(t, applied)

	for i := 0; i < 2; i++ {
		applied, err = repo.Credit(context.Background(), e)
		require.NoError(t, err)
		require.False(t, applied)
	}

	w, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, w.Balance.Equal(decimal.NewFromInt(40)), "finalBalance %s", w.Balance)
	require.True(t, w.TotalEarned.Equal(decimal.NewFromInt(40)))
}

func TestRefundRestoresBalanceOnly(t *testing.T) {
	repo := NewRepository(pgtest.Open(t))
	userID := setUpWallet(t, repo, 500)
	payoutID := uuid.NewString()

	require.NoError(t, repo.Debit(context.Background(), Entry{UserID: userID, Amount: decimal.NewFromInt(200), Type: TxWithdrawal, Reference: payoutID}))
	_, err := repo.Credit(context.Background(), Entry{UserID: userID, Amount: decimal.NewFromInt(200), Type: TxRefund, Reference: payoutID})
	require.NoError(t, err)

	w, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(500)))
	assert.True(t, w.TotalEarned.Equal(decimal.NewFromInt(500)), "refund is not earnings")
	assert.True(t, w.TotalWithdrawn.Equal(decimal.NewFromInt(200)), "total_withdrawn never decreases")

	_, err = repo.Credit(context.Background(), Entry{UserID: userID, Amount: decimal.NewFromInt(200), Type: TxRefund, Reference: payoutID})
	require.NoError(t, err)
	w, err = repo.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(500)), "repeated refund is deduplicated")

	history, err := repo.History(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, TxRefund, history[0].Type)
}
