package models

import "time"

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalApproved   WithdrawalStatus = "approved"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	// WithdrawalProcessing marks a request whose payout is in flight. Only
	// the payout worker may finish it.
	WithdrawalProcessing WithdrawalStatus = "processing"
)

// Terminal reports whether no further transition is allowed.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

type WithdrawalRequest struct {
	ID        uint             `gorm:"primaryKey"`
	UserID    int64            `gorm:"not null;index"`
	Amount    Money            `gorm:"not null"`
	Status    WithdrawalStatus `gorm:"size:16;not null;index"`
	InvoiceID string           `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
