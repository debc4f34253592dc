package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradingbot/src/database"
	"tradingbot/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidInterval = errors.New("invalid interval. allowed: whole minutes up to 1d")

const candleInsertBatch = 1000

type CandleRepository struct {
	db *gorm.DB
}

func NewCandleRepository() *CandleRepository {
	logger.WithField("component", "CandleRepository").
		Info("Creating new CandleRepository with MainDB")

	return &CandleRepository{
		db: database.MainDB,
	}
}

func NewCandleRepositoryWithDB(db *gorm.DB) *CandleRepository {
	logger.WithField("component", "CandleRepository").
		Info("Creating new CandleRepository with custom DB instance")

	return &CandleRepository{
		db: db,
	}
}

// Upsert stores candles, replacing prices of bars that already exist.
func (r *CandleRepository) Upsert(ctx context.Context, symbol string, tf model.Timeframe, candles []model.Candle) (int64, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	rows := make([]model.CandleRow, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, model.NewCandleRow(symbol, tf, c))
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "datetime"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).
		CreateInBatches(&rows, candleInsertBatch)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// FetchCandles reads stored bars of a timeframe. When none are stored it
// builds them from 1m rows. A zero start with a positive limit returns the
// latest limit bars up to end.
func (r *CandleRepository) FetchCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time, limit int) ([]model.Candle, error) {
	rows, err := r.fetchRows(ctx, symbol, tf, start, end, limit)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return toCandles(rows), nil
	}
	if tf == model.Timeframe1m {
		return nil, fmt.Errorf("%w: no stored candles for %s %s", model.ErrDataUnavailable, symbol, tf)
	}

	mult := int(tf.Duration() / time.Minute)
	limit1m := 0
	if limit > 0 {
		limit1m = limit*mult + mult
	}
	minuteRows, err := r.fetchRows(ctx, symbol, model.Timeframe1m, start, end, limit1m)
	if err != nil {
		return nil, err
	}
	if len(minuteRows) == 0 {
		return nil, fmt.Errorf("%w: no stored candles for %s %s", model.ErrDataUnavailable, symbol, tf)
	}

	agg, err := AggregateCandles(toCandles(minuteRows), tf.Duration())
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(agg) > limit {
		agg = agg[len(agg)-limit:]
	}
	return agg, nil
}

func (r *CandleRepository) fetchRows(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time, limit int) ([]model.CandleRow, error) {
	q := r.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ?", symbol, string(tf))
	if !start.IsZero() {
		q = q.Where("datetime >= ?", start.UTC())
	}
	if !end.IsZero() {
		q = q.Where("datetime <= ?", end.UTC())
	}

	var rows []model.CandleRow
	if limit > 0 {
		if err := q.Order("datetime DESC").Limit(limit).Find(&rows).Error; err != nil {
			return nil, err
		}
		// reverse to ascending chronological order for easier logic
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		return rows, nil
	}

	if err := q.Order("datetime ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestTime returns the open time of the newest stored bar.
func (r *CandleRepository) LatestTime(ctx context.Context, symbol string, tf model.Timeframe) (time.Time, bool, error) {
	var row model.CandleRow
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ?", symbol, string(tf)).
		Order("datetime DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return time.Time{}, false, err
	}
	if row.ID == 0 {
		return time.Time{}, false, nil
	}
	return row.Datetime.UTC(), true, nil
}

func toCandles(rows []model.CandleRow) []model.Candle {
	out := make([]model.Candle, len(rows))
	for i, row := range rows {
		out[i] = row.ToCandle()
	}
	return out
}

func bucketStart(t time.Time, interval time.Duration) time.Time {
	// Align to wall-clock boundaries: 12:07 with 5m => 12:05
	secs := t.Unix()
	step := int64(interval.Seconds())
	return time.Unix((secs/step)*step, 0).UTC()
}

// AggregateCandles folds ascending 1m candles into buckets of interval.
func AggregateCandles(candles []model.Candle, interval time.Duration) ([]model.Candle, error) {
	if interval < time.Minute || interval > 24*time.Hour || interval%time.Minute != 0 {
		return nil, ErrInvalidInterval
	}

	if len(candles) == 0 {
		return []model.Candle{}, nil
	}

	out := make([]model.Candle, 0, len(candles)/int(interval.Minutes())+2)

	var cur model.Candle
	var curBucket time.Time
	hasCur := false

	for _, c := range candles {
		b := bucketStart(c.Time, interval)

		if !hasCur || !b.Equal(curBucket) {
			if hasCur {
				out = append(out, cur)
			}
			curBucket = b
			hasCur = true
			cur = model.Candle{
				Time:   curBucket,
				Open:   c.Open,
				High:   c.High,
				Low:    c.Low,
				Close:  c.Close,
				Volume: c.Volume,
			}
			continue
		}

		if c.High.GreaterThan(cur.High) {
			cur.High = c.High
		}
		if c.Low.LessThan(cur.Low) {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume = cur.Volume.Add(c.Volume)
	}

	if hasCur {
		out = append(out, cur)
	}

	return out, nil
}
