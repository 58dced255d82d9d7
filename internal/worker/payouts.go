package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"refbot/internal/logging"
	"refbot/internal/models"
	"refbot/internal/monitoring"
	"refbot/internal/payout"
	"refbot/internal/settings"
)

type Withdrawals interface {
	ListByStatus(ctx context.Context, status models.WithdrawalStatus) ([]models.WithdrawalRequest, error)
	MarkProcessing(ctx context.Context, id uint) (*models.WithdrawalRequest, error)
	CompletePayout(ctx context.Context, id uint, invoiceID string) (*models.WithdrawalRequest, error)
}

type Settings interface {
	Decimal(ctx context.Context, key string) (decimal.Decimal, error)
}

type Payer interface {
	Transfer(ctx context.Context, requestID uint, userID int64, currency string, amount decimal.Decimal) (*payout.Transfer, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

const DefaultClaimTTL = 10 * time.Minute

// Payouts pays out pending withdrawals through the payout provider and
// approves them. A request is claimed in Redis so several instances never
// pay it concurrently, and marked processing in the ledger before the
// transfer so an administrator can no longer reject it. A failed payout
// stays processing and is retried with the same transfer id once the
// claim expires.
type Payouts struct {
	Withdrawals Withdrawals
	Settings    Settings
	Redis       *redis.Client
	Payer       Payer
	Notifier    Notifier
	Currency    string
	Interval    time.Duration
	ClaimTTL    time.Duration
	Log         *zap.Logger
}

func (p *Payouts) Start(ctx context.Context) {
	log := logging.OrNop(p.Log)
	interval := p.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info("Background payout worker started", zap.Duration("interval", interval))

	// Run once at start
	p.ProcessPending(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("Background payout worker stopped")
			return
		case <-ticker.C:
			p.ProcessPending(ctx)
		}
	}
}

// ProcessPending runs one payout cycle and returns how many requests were approved.
func (p *Payouts) ProcessPending(ctx context.Context) int {
	log := logging.OrNop(p.Log)

	// unfinished payouts first, then new requests
	var pending []models.WithdrawalRequest
	for _, status := range []models.WithdrawalStatus{models.WithdrawalProcessing, models.WithdrawalPending} {
		reqs, err := p.Withdrawals.ListByStatus(ctx, status)
		if err != nil {
			log.Error("Error querying withdrawals", zap.String("status", string(status)), zap.Error(err))
			return 0
		}
		pending = append(pending, reqs...)
	}
	if len(pending) == 0 {
		return 0
	}

	tax, err := p.Settings.Decimal(ctx, settings.KeyWithdrawTax)
	if err != nil {
		log.Error("Error reading withdrawal tax", zap.Error(err))
		return 0
	}

	paid := 0
	for _, req := range pending {
		if ctx.Err() != nil {
			break
		}
		if p.payOne(ctx, log, req, tax) {
			paid++
		}
	}
	return paid
}

func (p *Payouts) payOne(ctx context.Context, log *zap.Logger, req models.WithdrawalRequest, tax decimal.Decimal) bool {
	log = log.With(zap.Uint("request_id", req.ID), zap.Int64("user_id", req.UserID))

	claimed, err := p.Redis.SetNX(ctx, claimKey(req.ID), "1", p.claimTTL()).Result()
	if err != nil {
		log.Error("Failed to claim withdrawal", zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}

	if req.Status == models.WithdrawalPending {
		if _, err := p.Withdrawals.MarkProcessing(ctx, req.ID); err != nil {
			// reviewed by an administrator in the meantime
			log.Info("Withdrawal no longer pending, skipping", zap.Error(err))
			return false
		}
	}

	net := settings.NetAmount(req.Amount.Decimal, tax)
	transfer, err := p.Payer.Transfer(ctx, req.ID, req.UserID, p.Currency, net)
	if err != nil {
		monitoring.PayoutsTotal.WithLabelValues("failed").Inc()
		log.Warn("Payout failed, will retry", zap.Error(err))
		return false
	}

	invoice := strconv.FormatInt(transfer.ID, 10)
	if _, err := p.Withdrawals.CompletePayout(ctx, req.ID, invoice); err != nil {
		// the transfer id is deterministic, so a retry cannot pay twice
		monitoring.PayoutsTotal.WithLabelValues("unrecorded").Inc()
		log.Error("Paid but failed to approve withdrawal", zap.String("invoice_id", invoice), zap.Error(err))
		return false
	}
	monitoring.PayoutsTotal.WithLabelValues("paid").Inc()
	log.Info("Withdrawal paid", zap.String("invoice_id", invoice), zap.String("net", net.String()))

	if p.Notifier != nil {
		text := fmt.Sprintf("✅ Withdrawal #%d paid: %s %s", req.ID, net.String(), p.Currency)
		if err := p.Notifier.Notify(ctx, req.UserID, text); err != nil {
			log.Warn("Failed to notify user about payout", zap.Error(err))
		}
	}
	return true
}

func (p *Payouts) claimTTL() time.Duration {
	if p.ClaimTTL > 0 {
		return p.ClaimTTL
	}
	return DefaultClaimTTL
}

func claimKey(id uint) string {
	return fmt.Sprintf("payout_claim_%d", id)
}
