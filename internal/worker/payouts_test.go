package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"refbot/internal/database/dbtest"
	"refbot/internal/ledger"
	"refbot/internal/models"
	"refbot/internal/payout"
	"refbot/internal/settings"
)

type fakePayer struct {
	mu       sync.Mutex
	fail     error
	calls    []decimal.Decimal
	nextID   int64
	inFlight func(requestID uint)
}

func (f *fakePayer) Transfer(_ context.Context, requestID uint, userID int64, currency string, amount decimal.Decimal) (*payout.Transfer, error) {
	if f.inFlight != nil {
		f.inFlight(requestID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, amount)
	if f.fail != nil {
		return nil, f.fail
	}
	f.nextID++
	return &payout.Transfer{ID: 500 + f.nextID, TgUserID: userID, Currency: currency}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts map[int64][]string
}

func (f *fakeNotifier) Notify(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.texts == nil {
		f.texts = map[int64][]string{}
	}
	f.texts[userID] = append(f.texts[userID], text)
	return nil
}

type harness struct {
	mr          *miniredis.Miniredis
	ledger      *ledger.Ledger
	withdrawals *ledger.WithdrawalLog
	payer       *fakePayer
	notifier    *fakeNotifier
	worker      *Payouts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	s := settings.NewStore(db)
	require.NoError(t, s.Seed(ctx))
	l := ledger.New(db, s, nil)
	w := ledger.NewWithdrawalLog(l)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{mr: mr, ledger: l, withdrawals: w, payer: &fakePayer{}, notifier: &fakeNotifier{}}
	h.worker = &Payouts{
		Withdrawals: w,
		Settings:    s,
		Redis:       rdb,
		Payer:       h.payer,
		Notifier:    h.notifier,
		Currency:    "USDT",
		ClaimTTL:    time.Minute,
	}
	return h
}

func (h *harness) request(t *testing.T, userID int64, amount int64) *models.WithdrawalRequest {
	t.Helper()
	ctx := context.Background()
	_, err := h.ledger.Register(ctx, ledger.Registration{UserID: userID})
	require.NoError(t, err)
	_, err = h.ledger.AdjustBalance(ctx, userID, decimal.NewFromInt(amount))
	require.NoError(t, err)
	req, err := h.withdrawals.Create(ctx, userID, decimal.NewFromInt(amount))
	require.NoError(t, err)
	return req
}

func TestProcessPendingPaysNetAndApproves(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	req := h.request(t, 42, 150)

	assert.Equal(t, 1, h.worker.ProcessPending(ctx))

	require.Len(t, h.payer.calls, 1)
	assert.Equal(t, "142.5", h.payer.calls[0].String())

	stored, err := h.withdrawals.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, stored.Status)
	assert.Equal(t, "501", stored.InvoiceID)

	acc, _ := h.ledger.GetAccount(ctx, 42)
	assert.True(t, acc.Balance.IsZero())
	assert.Len(t, h.notifier.texts[42], 1)

	assert.Equal(t, 0, h.worker.ProcessPending(ctx))
	assert.Len(t, h.payer.calls, 1)
}

func TestProcessPendingSkipsClaimed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	req := h.request(t, 42, 100)
	require.NoError(t, h.mr.Set(claimKey(req.ID), "1"))

	assert.Equal(t, 0, h.worker.ProcessPending(ctx))
	assert.Empty(t, h.payer.calls)

	stored, _ := h.withdrawals.Get(ctx, req.ID)
	assert.Equal(t, models.WithdrawalPending, stored.Status)
}

func TestProcessPendingRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	req := h.request(t, 42, 100)
	h.payer.fail = errors.New("provider down")

	assert.Equal(t, 0, h.worker.ProcessPending(ctx))
	stored, _ := h.withdrawals.Get(ctx, req.ID)
	assert.Equal(t, models.WithdrawalProcessing, stored.Status)

	// claim still held
	assert.Equal(t, 0, h.worker.ProcessPending(ctx))
	assert.Len(t, h.payer.calls, 1)

	h.payer.fail = nil
	h.mr.FastForward(2 * time.Minute)
	assert.Equal(t, 1, h.worker.ProcessPending(ctx))

	stored, _ = h.withdrawals.Get(ctx, req.ID)
	assert.Equal(t, models.WithdrawalApproved, stored.Status)
}

func TestProcessPendingLeavesRejectedAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	req := h.request(t, 42, 100)
	_, err := h.withdrawals.Transition(ctx, req.ID, models.WithdrawalRejected)
	require.NoError(t, err)

	assert.Equal(t, 0, h.worker.ProcessPending(ctx))
	assert.Empty(t, h.payer.calls)
}

func TestStartStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.worker.Interval = 10 * time.Millisecond
	h.request(t, 42, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.worker.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		pending, err := h.withdrawals.ListByStatus(context.Background(), models.WithdrawalPending)
		return err == nil && len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRejectDuringTransferIsRefused(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	req := h.request(t, 42, 100)

	var rejectErr error
	h.payer.inFlight = func(id uint) {
		_, rejectErr = h.withdrawals.Transition(ctx, id, models.WithdrawalRejected)
	}

	assert.Equal(t, 1, h.worker.ProcessPending(ctx))
	assert.ErrorIs(t, rejectErr, ledger.ErrInvalidTransition)

	stored, err := h.withdrawals.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, stored.Status)

	acc, _ := h.ledger.GetAccount(ctx, 42)
	assert.True(t, acc.Balance.IsZero(), "balance %s", acc.Balance)
}

func TestProcessPendingSkipsReviewedRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	req := h.request(t, 42, 100)

	// listed as pending, approved by hand before the claim is taken
	stale := *req
	_, err := h.withdrawals.Transition(ctx, req.ID, models.WithdrawalApproved)
	require.NoError(t, err)

	assert.False(t, h.worker.payOne(ctx, zap.NewNop(), stale, decimal.NewFromInt(5)))
	assert.Empty(t, h.payer.calls)
}
