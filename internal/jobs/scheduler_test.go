package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/payout-bot/internal/features/payouts"
)

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) PurgeExpired(context.Context) (int, error) {
	f.calls++
	return 2, f.err
}

type fakeLister struct {
	list      []*payouts.Request
	olderThan time.Duration
}

func (f *fakeLister) ListPending(_ context.Context, olderThan time.Duration) ([]*payouts.Request, error) {
	f.olderThan = olderThan
	return f.list, nil
}

type fakeNotifier struct{ texts []string }

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func pending(n int, amount int64) []*payouts.Request {
	list := make([]*payouts.Request, n)
	for i := range list {
		list[i] = &payouts.Request{
			ID:        uuid.New(),
			Amount:    decimal.NewFromInt(amount),
			Status:    payouts.StatusPending,
			CreatedAt: time.Now().Add(-30 * time.Hour),
		}
	}
	return list
}

func TestPendingDigest(t *testing.T) {
	lister := &fakeLister{list: pending(2, 500)}
	notifier := &fakeNotifier{}
	s := NewScheduler(&fakePurger{}, lister, notifier, Options{DigestSchedule: "0 10 * * *", StaleAfter: 24 * time.Hour})

	s.PendingDigest(context.Background())
	assert.Equal(t, 24*time.Hour, lister.olderThan)
	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], "2 payouts are waiting longer than 24h0m0s, ₹1,000.00 total")
	assert.Contains(t, notifier.texts[0], "/confirm_payout "+lister.list[0].ID.String())
}

func TestPendingDigestTruncatesAndSkipsEmpty(t *testing.T) {
	notifier := &fakeNotifier{}
	lister := &fakeLister{}
	s := NewScheduler(&fakePurger{}, lister, notifier, Options{DigestSchedule: "0 10 * * *", StaleAfter: time.Hour})

	s.PendingDigest(context.Background())
	assert.Empty(t, notifier.texts)

	lister.list = pending(digestLimit+3, 100)
	s.PendingDigest(context.Background())
	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], fmt.Sprintf("…and %d more", 3))
}

func TestPurgeSessionsLogsErrors(t *testing.T) {
	p := &fakePurger{err: errors.New("db down")}
	s := NewScheduler(p, &fakeLister{}, &fakeNotifier{}, Options{DigestSchedule: "0 10 * * *"})
	s.PurgeSessions(context.Background())
	assert.Equal(t, 1, p.calls)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&fakePurger{}, &fakeLister{}, &fakeNotifier{}, Options{DigestSchedule: "every day"})
	assert.Error(t, s.Start(context.Background()))
}
