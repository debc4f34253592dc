package database

import (
	"testing"
	"time"

	"tradingbot/src/database/migrations"
	"tradingbot/src/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(Config{Driver: DriverSQLite, GormLogLevel: 1}, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { closeDB(db) })
	return db
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, "dsn")
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openMemory(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	for _, table := range []string{"trades", "candles", "exceptions", "data_migrations"} {
		require.True(t, db.Migrator().HasTable(table), table)
	}

	var applied []migrations.DataMigration
	require.NoError(t, db.Order("id").Find(&applied).Error)
	require.Len(t, applied, 2)
	require.Equal(t, "00001_normalize_trade_symbols", applied[0].ID)
}

func TestMigrate_BackfillsLegacyRows(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, db.AutoMigrate(&model.TradeRecord{}))

	exit := time.Date(2025, time.January, 3, 12, 0, 0, 0, time.UTC)
	legacy := model.TradeRecord{
		Symbol:    "btcusdt",
		Strategy:  "RSIStrategy",
		Timeframe: "1h",
		TradeType: "long",
		EntryTime: exit.Add(-time.Hour),
		ExitTime:  exit,
		Profit:    decimal.NewFromInt(5),
	}
	require.NoError(t, db.Create(&legacy).Error)

	require.NoError(t, Migrate(db))

	var got model.TradeRecord
	require.NoError(t, db.First(&got, legacy.ID).Error)
	require.Equal(t, "BTCUSDT", got.Symbol)
	require.Equal(t, "backTestBot", got.RunName)
}
