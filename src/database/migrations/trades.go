package migrations

import (
	"gorm.io/gorm"
)

// normalizeTradeSymbols upper-cases symbols written by older importers.
func normalizeTradeSymbols(tx *gorm.DB) error {
	for _, table := range []string{"trades", "candles"} {
		if !tx.Migrator().HasTable(table) {
			continue
		}
		if err := tx.Exec("UPDATE " + table + " SET symbol = UPPER(symbol) WHERE symbol <> UPPER(symbol)").Error; err != nil {
			return err
		}
	}
	return nil
}

// backfillTradeRunName assigns rows without a run label to the backtest run.
func backfillTradeRunName(tx *gorm.DB) error {
	if !tx.Migrator().HasTable("trades") {
		return nil
	}
	return tx.Exec("UPDATE trades SET run_name = ? WHERE run_name = '' OR run_name IS NULL", "backTestBot").Error
}
