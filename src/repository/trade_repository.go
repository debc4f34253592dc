package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tradingbot/src/model"
	"tradingbot/src/utils"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const tradeInsertBatch = 500

type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepositoryWithDB(db *gorm.DB) *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with custom DB instance")

	return &TradeRepository{
		db: db,
	}
}

// AppendTrades inserts a batch of closed positions. The caller's slice is not
// modified and IDs always come from the database, so the same batch may be
// retried. Failures are reported as transient.
func (r *TradeRepository) AppendTrades(ctx context.Context, trades []model.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	rows := make([]model.TradeRecord, len(trades))
	copy(rows, trades)
	for i := range rows {
		rows[i].ID = 0
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&rows, tradeInsertBatch).Error; err != nil {
		return fmt.Errorf("%w: insert %d trades: %v", model.ErrTransientPersistence, len(rows), err)
	}
	return nil
}

type tradeProfitRow struct {
	ExitTime time.Time
	Profit   decimal.Decimal
}

// QueryDailyProfit sums profit per UTC exit day for trades of a run exiting in [from, to).
// Days without trades are absent.
func (r *TradeRepository) QueryDailyProfit(ctx context.Context, runName string, from, to time.Time) ([]model.DailyProfit, error) {
	var rows []tradeProfitRow
	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Select("exit_time, profit").
		Where("run_name = ? AND exit_time >= ? AND exit_time < ?", runName, from.UTC(), to.UTC()).
		Order("exit_time").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*model.DailyProfit)
	for _, row := range rows {
		key := utils.DateKey(row.ExitTime)
		day, ok := byDay[key]
		if !ok {
			day = &model.DailyProfit{Date: utils.StartOfDayUTC(row.ExitTime)}
			byDay[key] = day
		}
		day.Profit = day.Profit.Add(row.Profit)
		day.Trades++
	}

	out := make([]model.DailyProfit, 0, len(byDay))
	for _, day := range byDay {
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Clear deletes the trades of a run, or every trade when runName is empty.
func (r *TradeRepository) Clear(ctx context.Context, runName string) (int64, error) {
	q := r.db.WithContext(ctx)
	if runName == "" {
		q = q.Where("1 = 1")
	} else {
		q = q.Where("run_name = ?", runName)
	}
	res := q.Delete(&model.TradeRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	logger.WithField("component", "TradeRepository").
		WithField("run_name", runName).
		WithField("deleted", res.RowsAffected).
		Info("trades cleared")
	return res.RowsAffected, nil
}

// Recent returns the latest trades of a run, newest first.
func (r *TradeRepository) Recent(ctx context.Context, runName string, limit int) ([]model.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var trades []model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("run_name = ?", runName).
		Order("exit_time DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}
