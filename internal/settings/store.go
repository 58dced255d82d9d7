// Package settings holds the tunable numeric parameters of the ledger.
// Values are read from the database on every call so an administrator's
// change applies to the next request.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"refbot/internal/models"
)

const (
	KeyMinWithdraw   = "min_withdraw"
	KeyMaxWithdraw   = "max_withdraw"
	KeyWithdrawTax   = "withdraw_tax"
	KeyPerReferBonus = "per_refer_bonus"
)

var Defaults = map[string]string{
	KeyMinWithdraw:   "50",
	KeyMaxWithdraw:   "1000",
	KeyWithdrawTax:   "5",
	KeyPerReferBonus: "10",
}

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

// Limits is a snapshot of the four recognized settings.
type Limits struct {
	MinWithdraw   decimal.Decimal
	MaxWithdraw   decimal.Decimal
	WithdrawTax   decimal.Decimal
	PerReferBonus decimal.Decimal
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Seed inserts every default that is not stored yet. Existing values win.
func (s *Store) Seed(ctx context.Context) error {
	rows := make([]models.Setting, 0, len(Defaults))
	for k, v := range Defaults {
		rows = append(rows, models.Setting{Key: k, Value: v})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

// Get returns the stored value, or the default for a recognized key that
// has no row.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var row models.Setting
	err := s.db.WithContext(ctx).Where(&models.Setting{Key: key}).Take(&row).Error
	switch {
	case err == nil:
		return row.Value, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if v, ok := Defaults[key]; ok {
			return v, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	default:
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
}

// Set upserts key. Recognized keys must hold a non-negative decimal with at
// most models.MoneyScale fractional digits, and the tax may not exceed 100.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, ok := Defaults[key]; ok {
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() || !models.FitsMoneyScale(d) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		if key == KeyWithdrawTax && d.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		value = d.String()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) Decimal(ctx context.Context, key string) (decimal.Decimal, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return d, nil
}

func (s *Store) Limits(ctx context.Context) (Limits, error) {
	var l Limits
	for key, dst := range map[string]*decimal.Decimal{
		KeyMinWithdraw:   &l.MinWithdraw,
		KeyMaxWithdraw:   &l.MaxWithdraw,
		KeyWithdrawTax:   &l.WithdrawTax,
		KeyPerReferBonus: &l.PerReferBonus,
	} {
		d, err := s.Decimal(ctx, key)
		if err != nil {
			return Limits{}, err
		}
		*dst = d
	}
	return l, nil
}

// NetAmount applies the withdrawal tax percentage to gross, rounding down
// to 8 decimal places.
func NetAmount(gross, taxPercent decimal.Decimal) decimal.Decimal {
	keep := decimal.NewFromInt(100).Sub(taxPercent).Div(decimal.NewFromInt(100))
	return gross.Mul(keep).RoundDown(8)
}
