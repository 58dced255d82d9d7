// Package ledger owns account balances and the withdrawal request log.
//
// Every balance mutation runs inside one database transaction while
// holding the per-user lock of each account it touches, and re-reads the
// rows with SELECT ... FOR UPDATE so concurrent processes sharing a
// postgres store are serialized as well.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"refbot/internal/logging"
	"refbot/internal/menu"
	"refbot/internal/models"
	"refbot/internal/monitoring"
	"refbot/internal/settings"
)

// Settings is the read side of settings.Store.
type Settings interface {
	Decimal(ctx context.Context, key string) (decimal.Decimal, error)
}

// Ledger owns account rows and balances.
type Ledger struct {
	db       *gorm.DB
	settings Settings
	locks    *keyedMutex
	log      *zap.Logger
}

// New builds a Ledger. A nil log discards output.
func New(db *gorm.DB, s Settings, log *zap.Logger) *Ledger {
	return &Ledger{
		db:       db,
		settings: s,
		locks:    newKeyedMutex(),
		log:      logging.OrNop(log),
	}
}

// Registration describes a first contact; ReferredBy is 0 without a referrer.
type Registration struct {
	UserID      int64
	Username    string
	DisplayName string
	ReferredBy  int64
}

// Stats is the user count and the total of all balances.
type Stats struct {
	TotalUsers   int64
	TotalBalance decimal.Decimal
}

// Register creates the account once. A later call for the same user is a
// no-op returning the stored account. A referrer other than the user gets
// the per-referral bonus and one more referral in the same transaction;
// an unknown referrer is ignored.
func (l *Ledger) Register(ctx context.Context, r Registration) (*models.Account, error) {
	referrer := r.ReferredBy
	if referrer == r.UserID {
		if referrer != 0 {
			l.log.Debug("Ignoring self referral", zap.Int64("user_id", r.UserID))
		}
		referrer = 0
	}

	ids := []int64{r.UserID}
	bonus := decimal.Zero
	if referrer != 0 {
		ids = append(ids, referrer)
		b, err := l.settings.Decimal(ctx, settings.KeyPerReferBonus)
		if err != nil {
			return nil, wrap("register", err)
		}
		bonus = b
	}

	unlock := l.locks.Lock(ids...)
	defer unlock()

	var (
		account  models.Account
		created  bool
		credited bool
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", r.UserID).Take(&account).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var ref *models.Account
		if referrer != 0 {
			ref, err = lockAccount(tx, referrer)
			if errors.Is(err, ErrNotFound) {
				l.log.Info("Unknown referrer", zap.Int64("user_id", r.UserID), zap.Int64("referrer_id", referrer))
				ref, err = nil, nil
			}
			if err != nil {
				return err
			}
		}

		account = models.Account{
			UserID:      r.UserID,
			Username:    r.Username,
			DisplayName: r.DisplayName,
			Balance:     models.NewMoney(decimal.Zero),
			MenuVersion: menu.DefaultVersion,
		}
		if ref != nil {
			account.ReferredBy = ref.UserID
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&account)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// another process inserted it first
			return tx.Where("user_id = ?", r.UserID).Take(&account).Error
		}
		created = true

		if ref == nil {
			return nil
		}
		credited = true
		return tx.Model(&models.Account{}).Where("user_id = ?", ref.UserID).Updates(map[string]any{
			"balance":        ref.Balance.Add(bonus),
			"referral_count": gorm.Expr("referral_count + ?", 1),
		}).Error
	})
	if err != nil {
		return nil, wrap("register", err)
	}

	if created {
		monitoring.RegistrationsTotal.Inc()
		l.log.Info("Registered account", zap.Int64("user_id", r.UserID), zap.Int64("referred_by", account.ReferredBy))
	}
	if credited {
		monitoring.ReferralCreditsTotal.Inc()
		l.log.Info("Credited referral bonus",
			zap.Int64("referrer_id", account.ReferredBy),
			zap.Int64("user_id", r.UserID),
			zap.String("bonus", bonus.String()))
	}
	return &account, nil
}

// GetAccount returns ErrNotFound for an unknown user.
func (l *Ledger) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var account models.Account
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get account", err)
	}
	return &account, nil
}

// AdjustBalance adds delta, which may be negative, to the balance.
func (l *Ledger) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (*models.Account, error) {
	if !models.FitsMoneyScale(delta) {
		return nil, ErrTooPrecise
	}

	unlock := l.locks.Lock(userID)
	defer unlock()

	var account *models.Account
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = lockAccount(tx, userID)
		if err != nil {
			return err
		}
		next := account.Balance.Add(delta)
		if next.IsNegative() {
			return ErrInsufficientBalance
		}
		return setBalance(tx, account, next)
	})
	if err != nil {
		return nil, wrap("adjust balance", err)
	}

	l.log.Info("Adjusted balance",
		zap.Int64("user_id", userID),
		zap.String("delta", delta.String()),
		zap.String("balance", account.Balance.String()))
	return account, nil
}

// AggregateStats reads every balance in one statement and sums them as
// decimals, since SQL SUM over sqlite text columns goes through floats.
// It takes no ledger locks.
func (l *Ledger) AggregateStats(ctx context.Context) (Stats, error) {
	var balances []models.Money
	err := l.db.WithContext(ctx).Model(&models.Account{}).Pluck("balance", &balances).Error
	if err != nil {
		return Stats{}, wrap("aggregate stats", err)
	}
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Decimal)
	}
	return Stats{TotalUsers: int64(len(balances)), TotalBalance: total}, nil
}

// TopReferrers lists accounts with at least one referral, best first.
func (l *Ledger) TopReferrers(ctx context.Context, limit int) ([]models.Account, error) {
	var out []models.Account
	err := l.db.WithContext(ctx).
		Where("referral_count > 0").
		Order("referral_count DESC").Order("user_id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, wrap("top referrers", err)
	}
	return out, nil
}

// SetMenuVersion stores a known menu version for the user.
func (l *Ledger) SetMenuVersion(ctx context.Context, userID int64, version int) (*models.Account, error) {
	if _, err := menu.Resolve(version); err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(userID)
	defer unlock()

	res := l.db.WithContext(ctx).Model(&models.Account{}).Where("user_id = ?", userID).Update("menu_version", version)
	if res.Error != nil {
		return nil, wrap("set menu version", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return l.GetAccount(ctx, userID)
}

func lockAccount(tx *gorm.DB, userID int64) (*models.Account, error) {
	var account models.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func setBalance(tx *gorm.DB, account *models.Account, balance decimal.Decimal) error {
	if err := tx.Model(&models.Account{}).Where("user_id = ?", account.UserID).Update("balance", balance).Error; err != nil {
		return err
	}
	account.Balance = models.NewMoney(balance)
	return nil
}
