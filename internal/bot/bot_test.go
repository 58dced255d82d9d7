package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"refbot/internal/config"
	"refbot/internal/database"
	"refbot/internal/database/dbtest"
	"refbot/internal/membership"
	"refbot/internal/settings"
)

func newTestBot(t *testing.T) (*Bot, *observer.ObservedLogs, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	store := settings.NewStore(db)
	require.NoError(t, store.Seed(context.Background()))

	core, logs := observer.New(zapcore.DebugLevel)
	b := NewBot(nil, nil, nil, store, membership.AllowAll{}, &config.Config{Currency: "USDT"}, zap.New(core))
	return b, logs, db
}

func TestSettingReadsCurrentValues(t *testing.T) {
	ctx := context.Background()
	b, logs, _ := newTestBot(t)

	l, err := b.limits(ctx)
	require.NoError(t, err)
	assert.Equal(t, "50", l.MinWithdraw.String())

	bonus, err := b.setting(ctx, settings.KeyPerReferBonus)
	require.NoError(t, err)
	assert.Equal(t, "10", bonus.String())
	assert.Zero(t, logs.Len())
}

func TestSettingFailuresAreLogged(t *testing.T) {
	ctx := context.Background()
	b, logs, db := newTestBot(t)
	require.NoError(t, database.Close(db))

	_, err := b.limits(ctx)
	assert.Error(t, err)
	_, err = b.setting(ctx, settings.KeyWithdrawTax)
	assert.Error(t, err)

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Failed to read settings", entries[0].Message)
	assert.Equal(t, "Failed to read setting", entries[1].Message)
}
