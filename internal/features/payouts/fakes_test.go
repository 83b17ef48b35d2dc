package payouts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"serotonyl.ru/payout-bot/internal/common"
	"serotonyl.ru/payout-bot/internal/features/methods"
	"serotonyl.ru/payout-bot/internal/processor"
)

// memStore повторяет семантику Repository в памяти: доступный остаток,
// условные переходы и флаг wallet_debited.
type memStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*Request
	balances map[uuid.UUID]decimal.Decimal
	methods  map[uuid.UUID]*methods.Method // способ по умолчанию на пользователя
}

func newMemStore() *memStore {
	return &memStore{
		requests: map[uuid.UUID]*Request{},
		balances: map[uuid.UUID]decimal.Decimal{},
		methods:  map[uuid.UUID]*methods.Method{},
	}
}

func (m *memStore) addUser(balance int64) uuid.UUID {
	userID := uuid.New()
	m.balances[userID] = decimal.NewFromInt(balance)
	m.methods[userID] = &methods.Method{ID: uuid.New(), UserID: userID, Type: methods.TypeUPI, UPIID: "learner@okaxis", IsDefault: true}
	return userID
}

func (m *memStore) balance(userID uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

func (m *memStore) setBalance(userID uuid.UUID, v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = decimal.NewFromInt(v)
}

func (m *memStore) Create(_ context.Context, in NewRequest) (*Request, *methods.Method, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	method, ok := m.methods[in.UserID]
	if !ok {
		return nil, nil, common.ErrNoPayoutMethod
	}
	if in.MethodID != nil && *in.MethodID != method.ID {
		return nil, nil, common.ErrMethodNotFound
	}

	reserved := decimal.Zero
	for _, r := range m.requests {
		if r.UserID == in.UserID && r.Status == StatusPending && !r.WalletDebited {
			reserved = reserved.Add(r.Amount)
		}
	}
	if in.Amount.GreaterThan(m.balances[in.UserID].Sub(reserved)) {
		return nil, nil, common.ErrInsufficientBalance
	}

	req := &Request{ID: uuid.New(), UserID: in.UserID, Amount: in.Amount, PayoutMethodID: method.ID, Status: StatusPending, CreatedAt: time.Now()}
	m.requests[req.ID] = req
	return clone(req), method, nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, common.ErrPayoutNotFound
	}
	return clone(r), nil
}

func (m *memStore) GetByProcessorRef(_ context.Context, ref string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.ProcessorRef != nil && *r.ProcessorRef == ref {
			return clone(r), nil
		}
	}
	return nil, common.ErrPayoutNotFound
}

func (m *memStore) ListForUser(_ context.Context, userID uuid.UUID, _ int) ([]*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.requests {
		if r.UserID == userID {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (m *memStore) ListPending(_ context.Context, before time.Time) ([]*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.requests {
		if r.Status == StatusPending && !r.CreatedAt.After(before) {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (m *memStore) AttachProcessorRef(_ context.Context, id uuid.UUID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.requests[id]; r != nil && r.ProcessorRef == nil {
		r.ProcessorRef = &ref
	}
	return nil
}

func (m *memStore) MarkDispatched(_ context.Context, id uuid.UUID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.requests[id]
	if r == nil || r.Status != StatusPending || r.WalletDebited {
		return common.ErrAlreadyProcessed
	}
	if err := m.debitLocked(r.UserID, r.Amount); err != nil {
		return err
	}
	r.ProcessorRef = &ref
	r.WalletDebited = true
	return nil
}

func (m *memStore) MarkSucceeded(_ context.Context, id uuid.UUID, ref string, amount decimal.Decimal) (*Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.requests[id]
	if r == nil || r.Status != StatusPending {
		return nil, common.ErrAlreadyProcessed
	}
	now := time.Now()
	r.Status, r.ProcessedAt = StatusSuccess, &now
	if r.ProcessorRef == nil && ref != "" {
		r.ProcessorRef = &ref
	}

	s := &Settlement{}
	if !r.WalletDebited {
		if amount.IsZero() {
			amount = r.Amount
		}
		if err := m.debitLocked(r.UserID, amount); err != nil {
			s.WalletErr = err
		} else {
			r.WalletDebited, s.Debited = true, true
		}
	}
	s.Payout = clone(r)
	return s, nil
}

func (m *memStore) MarkFailed(_ context.Context, id uuid.UUID, ref, reason string) (*Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.requests[id]
	if r == nil || r.Status != StatusPending {
		return nil, common.ErrAlreadyProcessed
	}
	now := time.Now()
	r.Status, r.ProcessedAt, r.FailureReason = StatusFailed, &now, &reason
	if r.ProcessorRef == nil && ref != "" {
		r.ProcessorRef = &ref
	}

	s := &Settlement{}
	if r.WalletDebited {
		m.balances[r.UserID] = m.balances[r.UserID].Add(r.Amount)
		r.WalletDebited, s.Refunded = false, true
	}
	s.Payout = clone(r)
	return s, nil
}

func (m *memStore) debitLocked(userID uuid.UUID, amount decimal.Decimal) error {
	if m.balances[userID].LessThan(amount) {
		return common.ErrInsufficientBalance
	}
	m.balances[userID] = m.balances[userID].Sub(amount)
	return nil
}

func clone(r *Request) *Request {
	c := *r
	return &c
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return f.err
}

func (f *fakeNotifier) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

type fakeProcessor struct {
	result *processor.Result
	err    error
	calls  []processor.PayoutRequest
	before func(req processor.PayoutRequest) // вызывается до ответа, как вебхук, пришедший раньше
}

func (f *fakeProcessor) CreatePayout(_ context.Context, req processor.PayoutRequest) (*processor.Result, error) {
	f.calls = append(f.calls, req)
	if f.before != nil {
		f.before(req)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

var errProcessorDown = errors.New("gateway timeout")
