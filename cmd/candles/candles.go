package candles

import (
	"context"
	"fmt"
	"time"

	"tradingbot/src/model"
	"tradingbot/src/utils"

	logger "github.com/sirupsen/logrus"
)

type Source interface {
	FetchCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time, limit int) ([]model.Candle, error)
}

type Store interface {
	Upsert(ctx context.Context, symbol string, tf model.Timeframe, candles []model.Candle) (int64, error)
	LatestTime(ctx context.Context, symbol string, tf model.Timeframe) (time.Time, bool, error)
}

// Ingestor copies exchange klines into the candles table.
type Ingestor struct {
	Log    *logger.Entry
	Source Source
	Store  Store
	Config *Config
	now    func() time.Time
}

func (o *Ingestor) Start(ctx context.Context) error {
	if o.Config == nil {
		o.Config = GetConfig()
	}
	tf, err := model.ParseTimeframe(o.Config.Timeframe)
	if err != nil {
		return err
	}
	if o.Log == nil {
		o.Log = logger.WithField("cmd", "candles")
	}
	if o.now == nil {
		o.now = time.Now
	}

	end := o.Config.EndDt
	if end.IsZero() {
		end = o.now().UTC()
	}

	for _, raw := range o.Config.Symbols {
		symbol := utils.NormalizeToUSDT(raw)
		start, err := o.determineStartPoint(ctx, symbol, tf)
		if err != nil {
			return err
		}
		stored, err := o.ingest(ctx, symbol, tf, start, end)
		if err != nil {
			o.Log.WithError(err).WithField("symbol", symbol).Error("candle ingestion failed")
			return err
		}
		o.Log.WithFields(logger.Fields{
			"symbol":    symbol,
			"timeframe": tf,
			"from":      start,
			"to":        end,
			"stored":    stored,
		}).Info("candles inserted or updated in database")
	}
	return nil
}

// determineStartPoint resumes from the latest stored bar in AUTO_MODE. That
// bar is fetched again since it may have been stored while still open.
func (o *Ingestor) determineStartPoint(ctx context.Context, symbol string, tf model.Timeframe) (time.Time, error) {
	start := o.Config.StartDt.UTC()
	if !o.Config.AutoMode {
		return start, nil
	}

	latest, ok, err := o.Store.LatestTime(ctx, symbol, tf)
	if err != nil {
		o.Log.WithError(err).Error("Failed to query latest datetime")
		return time.Time{}, err
	}
	if !ok {
		o.Log.
			WithField("symbol", symbol).
			WithField("StartDt", start.String()).
			Warn("no records found, start from the configured StartDt")
		return start, nil
	}

	o.Log.
		WithField("symbol", symbol).
		WithField("StartDt", latest.String()).
		Info("determineStartPoint valid date found")
	return latest, nil
}

// ingest pages forward from start until a short page or end.
func (o *Ingestor) ingest(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) (int64, error) {
	var stored int64
	cursor := start
	for !cursor.After(end) {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		page, err := o.Source.FetchCandles(ctx, symbol, tf, cursor, end, o.Config.Limit)
		if err != nil {
			return stored, fmt.Errorf("fetch %s %s from %s: %w", symbol, tf, cursor.Format(time.RFC3339), err)
		}
		page = model.NormalizeCandles(page)
		if len(page) == 0 {
			break
		}

		n, err := o.Store.Upsert(ctx, symbol, tf, page)
		if err != nil {
			return stored, fmt.Errorf("upsert %s %s: %w", symbol, tf, err)
		}
		stored += n

		next := page[len(page)-1].Time.Add(tf.Duration())
		if len(page) < o.Config.Limit || !next.After(cursor) {
			break
		}
		cursor = next
	}
	return stored, nil
}
