package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"refbot/internal/models"
	"refbot/internal/monitoring"
	"refbot/internal/settings"
)

// WithdrawalLog records withdrawal requests. Creating a request reserves
// the gross amount from the balance; rejecting it refunds the reservation.
// Requests are never deleted.
type WithdrawalLog struct {
	ledger *Ledger
}

// NewWithdrawalLog shares the ledger's store and locks.
func NewWithdrawalLog(l *Ledger) *WithdrawalLog {
	return &WithdrawalLog{ledger: l}
}

// Create validates amount against the current limits and balance, then
// debits the balance and records a pending request in one transaction.
func (w *WithdrawalLog) Create(ctx context.Context, userID int64, amount decimal.Decimal) (*models.WithdrawalRequest, error) {
	req, err := w.create(ctx, userID, amount)
	monitoring.WithdrawalRequestsTotal.WithLabelValues(resultLabel(err)).Inc()
	return req, err
}

func (w *WithdrawalLog) create(ctx context.Context, userID int64, amount decimal.Decimal) (*models.WithdrawalRequest, error) {
	minimum, err := w.ledger.settings.Decimal(ctx, settings.KeyMinWithdraw)
	if err != nil {
		return nil, wrap("create withdrawal", err)
	}
	maximum, err := w.ledger.settings.Decimal(ctx, settings.KeyMaxWithdraw)
	if err != nil {
		return nil, wrap("create withdrawal", err)
	}

	unlock := w.ledger.locks.Lock(userID)
	defer unlock()

	var req models.WithdrawalRequest
	err = w.ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}
		switch {
		case !models.FitsMoneyScale(amount):
			return ErrTooPrecise
		case !amount.IsPositive() || amount.LessThan(minimum):
			return ErrBelowMinimum
		case amount.GreaterThan(maximum):
			return ErrAboveMaximum
		case account.Balance.LessThan(amount):
			return ErrInsufficientBalance
		}

		if err := setBalance(tx, account, account.Balance.Sub(amount)); err != nil {
			return err
		}
		req = models.WithdrawalRequest{
			UserID: userID,
			Amount: models.NewMoney(amount),
			Status: models.WithdrawalPending,
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, wrap("create withdrawal", err)
	}

	w.ledger.log.Info("Withdrawal requested",
		zap.Uint("request_id", req.ID),
		zap.Int64("user_id", userID),
		zap.String("amount", amount.String()))
	return &req, nil
}

// Transition moves a pending request to approved or rejected.
func (w *WithdrawalLog) Transition(ctx context.Context, id uint, status models.WithdrawalStatus) (*models.WithdrawalRequest, error) {
	return w.TransitionWithInvoice(ctx, id, status, "")
}

// TransitionWithInvoice is Transition that also records the payout
// reference, if any.
func (w *WithdrawalLog) TransitionWithInvoice(ctx context.Context, id uint, status models.WithdrawalStatus, invoiceID string) (*models.WithdrawalRequest, error) {
	if !status.Terminal() {
		return nil, ErrInvalidTransition
	}
	return w.move(ctx, id, models.WithdrawalPending, status, invoiceID)
}

// MarkProcessing reserves a pending request for an automated payout. From
// then on Transition refuses it, so it cannot be rejected while money is
// on its way.
func (w *WithdrawalLog) MarkProcessing(ctx context.Context, id uint) (*models.WithdrawalRequest, error) {
	return w.move(ctx, id, models.WithdrawalPending, models.WithdrawalProcessing, "")
}

// CompletePayout approves a processing request with the transfer reference.
func (w *WithdrawalLog) CompletePayout(ctx context.Context, id uint, invoiceID string) (*models.WithdrawalRequest, error) {
	return w.move(ctx, id, models.WithdrawalProcessing, models.WithdrawalApproved, invoiceID)
}

// move changes status from one value to another and refunds the gross
// amount when the target is rejected.
func (w *WithdrawalLog) move(ctx context.Context, id uint, from, to models.WithdrawalStatus, invoiceID string) (*models.WithdrawalRequest, error) {
	current, err := w.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := w.ledger.locks.Lock(current.UserID)
	defer unlock()

	var req models.WithdrawalRequest
	err = w.ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&req, id).Error; err != nil {
			return err
		}
		if req.Status != from {
			return ErrInvalidTransition
		}

		if to == models.WithdrawalRejected {
			account, err := lockAccount(tx, req.UserID)
			if err != nil {
				return err
			}
			if err := setBalance(tx, account, account.Balance.Add(req.Amount.Decimal)); err != nil {
				return err
			}
		}

		updates := map[string]any{"status": to}
		if invoiceID != "" {
			updates["invoice_id"] = invoiceID
		}
		if err := tx.Model(&req).Updates(updates).Error; err != nil {
			return err
		}
		req.Status = to
		if invoiceID != "" {
			req.InvoiceID = invoiceID
		}
		return nil
	})
	if err != nil {
		return nil, wrap("transition withdrawal", err)
	}

	monitoring.WithdrawalTransitionsTotal.WithLabelValues(string(to)).Inc()
	w.ledger.log.Info("Withdrawal status changed",
		zap.Uint("request_id", id),
		zap.Int64("user_id", req.UserID),
		zap.String("from", string(from)),
		zap.String("status", string(to)))
	return &req, nil
}

func (w *WithdrawalLog) Get(ctx context.Context, id uint) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := w.ledger.db.WithContext(ctx).Take(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get withdrawal", err)
	}
	return &req, nil
}

// ListByStatus returns requests in creation order.
func (w *WithdrawalLog) ListByStatus(ctx context.Context, status models.WithdrawalStatus) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	err := w.ledger.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&out).Error
	if err != nil {
		return nil, wrap("list withdrawals", err)
	}
	return out, nil
}

func (w *WithdrawalLog) ListByUser(ctx context.Context, userID int64) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	err := w.ledger.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&out).Error
	if err != nil {
		return nil, wrap("list withdrawals", err)
	}
	return out, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, ErrAboveMaximum):
		return "above_maximum"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrTooPrecise):
		return "too_precise"
	default:
		return "error"
	}
}
