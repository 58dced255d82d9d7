package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// MoneyScale is the number of fractional digits a stored amount keeps.
const MoneyScale = 8

// Money is a decimal amount column. SQLite has no exact numeric type, so
// there it is stored as TEXT.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (Money) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric(20,8)"
}

// FitsMoneyScale reports whether d has no digits past MoneyScale.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}
