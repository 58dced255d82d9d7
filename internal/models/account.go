package models

import "time"

// Account is keyed by the platform user id.
type Account struct {
	UserID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Username      string `gorm:"size:255"`
	DisplayName   string `gorm:"size:255"`
	Balance       Money  `gorm:"not null"`
	ReferredBy    int64  `gorm:"not null;index"`
	ReferralCount int    `gorm:"not null"`
	Banned        bool   `gorm:"not null;default:false"` // reserved, not enforced
	MenuVersion   int    `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Withdrawals []WithdrawalRequest `gorm:"foreignKey:UserID;references:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
}
