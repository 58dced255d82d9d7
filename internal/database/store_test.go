package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"refbot/internal/config"
	"refbot/internal/models"
)

func TestOpenSQLiteCreatesTables(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "bot.db")}

	db, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	defer Close(db)

	for _, table := range []string{"accounts", "withdrawal_requests", "settings"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	account := models.Account{UserID: 42, Balance: models.NewMoney(decimal.RequireFromString("12345678901.12345678"))}
	require.NoError(t, db.Create(&account).Error)
	require.NoError(t, db.Create(&models.WithdrawalRequest{
		UserID: 42,
		Amount: models.NewMoney(decimal.NewFromInt(50)),
		Status: models.WithdrawalPending,
	}).Error)

	// requests must point at an existing account
	orphan := models.WithdrawalRequest{UserID: 7, Amount: models.NewMoney(decimal.NewFromInt(1)), Status: models.WithdrawalPending}
	assert.Error(t, db.Create(&orphan).Error)

	var stored models.Account
	require.NoError(t, db.Take(&stored, "user_id = ?", 42).Error)
	assert.Equal(t, "12345678901.12345678", stored.Balance.String())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "mysql"}, zap.NewNop())
	assert.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{RedisHost: mr.Host(), RedisPort: mr.Port()}

	rdb, err := ConnectRedis(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	_, err = ConnectRedis(context.Background(), &config.Config{RedisHost: "127.0.0.1", RedisPort: "1"}, zap.NewNop())
	assert.Error(t, err)
}
