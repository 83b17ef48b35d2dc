package payouts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/db/postgres/pgtest"
	"serotonyl.ru/payout-bot/internal/features/methods"
	"serotonyl.ru/payout-bot/internal/features/wallet"
)

type fixture struct {
	repo    *Repository
	wallets *wallet.Repository
	userID  uuid.UUID
}

func setUp(t *testing.T, balance int64) *fixture {
	t.Helper()
	pool := pgtest.Open(t)
	ctx := context.Background()
	f := &fixture{repo: NewRepository(pool), wallets: wallet.NewRepository(pool), userID: uuid.New()}

	_, err := f.wallets.Credit(ctx, wallet.Entry{UserID: f.userID, Amount: rupees(balance), Type: wallet.TxAdjustment, Reference: uuid.NewString()})
	require.NoError(t, err)
	_, err = methods.NewRepository(pool).Add(ctx, f.userID, methods.AddInput{Type: methods.TypeUPI, UPIID: "learner@okaxis"})
	require.NoError(t, err)
	return f
}

func (f *fixture) balance(t *testing.T) string {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), f.userID)
	require.NoError(t, err)
	return w.Balance.StringFixed(2)
}

func TestCreateUsesDefaultMethod(t *testing.T) {
	f := setUp(t, 500)

	req, method, err := f.repo.Create(context.Background(), NewRequest{UserID: f.userID, Amount: rupees(200)})
	require.NoError(t, err)
	assert.Equal(t, method.ID, req.PayoutMethodID)
	assert.Equal(t, StatusPending, req.Status)
	assert.False(t, req.WalletDebited)
	assert.Equal(t, "500.00", f.balance(t))
}

func TestConcurrentCreateNeverOverdraws(t *testing.T) {
	f := setUp(t, 500)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.repo.Create(context.Background(), NewRequest{UserID: f.userID, Amount: rupees(200)})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
				return
			}
			assert.ErrorIs(t, err, common.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, created)
}

func TestConcurrentConfirmDebitsExactlyOnce(t *testing.T) {
	f := setUp(t, 500)
	ctx := context.Background()
	req, _, err := f.repo.Create(ctx, NewRequest{UserID: f.userID, Amount: rupees(200)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := f.repo.MarkSucceeded(ctx, req.ID, "", rupees(200))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				assert.NoError(t, st.WalletErr)
				wins++
			case errors.Is(err, common.ErrAlreadyProcessed):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 9, losses)
	assert.Equal(t, "300.00", f.balance(t))

	got, err := f.repo.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.True(t, got.WalletDebited)
	assert.NotNil(t, got.ProcessedAt)
}

func TestDispatchedThenFailedRefunds(t *testing.T) {
	f := setUp(t, 500)
	ctx := context.Background()
	req, _, err := f.repo.Create(ctx, NewRequest{UserID: f.userID, Amount: rupees(200)})
	require.NoError(t, err)

	ref := "pout_" + uuid.NewString()[:12]
	require.NoError(t, f.repo.MarkDispatched(ctx, req.ID, ref))
	assert.Equal(t, "300.00", f.balance(t))
	assert.ErrorIs(t, f.repo.MarkDispatched(ctx, req.ID, ref), common.ErrAlreadyProcessed)

	byRef, err := f.repo.GetByProcessorRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, req.ID, byRef.ID)

	st, err := f.repo.MarkFailed(ctx, req.ID, ref, "payout.reversed")
	require.NoError(t, err)
	assert.True(t, st.Refunded)
	assert.Equal(t, "500.00", f.balance(t))

	_, err = f.repo.MarkFailed(ctx, req.ID, ref, "payout.reversed")
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
	assert.Equal(t, "500.00", f.balance(t))
}

func TestMarkFailedWithoutDebitLeavesWallet(t *testing.T) {
	f := setUp(t, 500)
	ctx := context.Background()
	req, _, err := f.repo.Create(ctx, NewRequest{UserID: f.userID, Amount: rupees(200)})
	require.NoError(t, err)

	st, err := f.repo.MarkFailed(ctx, req.ID, "", "operator rejected")
	require.NoError(t, err)
	assert.False(t, st.Refunded)
	assert.Equal(t, "500.00", f.balance(t))

	pending, err := f.repo.ListPending(ctx, time.Now())
	require.NoError(t, err)
	for _, p := range pending {
		assert.NotEqual(t, req.ID, p.ID)
	}
}
