package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tradingbot/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// ComboResult counts what one combination did during a pass.
type ComboResult struct {
	Combination     model.Combination `json:"combination"`
	Candles         int               `json:"candles"`
	Opened          int               `json:"opened"`
	Closed          int               `json:"closed"`
	NetProfit       decimal.Decimal   `json:"net_profit"`
	Flushed         int               `json:"flushed"`
	Dropped         int               `json:"dropped"`
	GateBlocked     int               `json:"gate_blocked"`
	BreakerBlocked  int               `json:"breaker_blocked"`
	CapacityBlocked int               `json:"capacity_blocked"`
	SizingRejected  int               `json:"sizing_rejected"`
	OrderErrors     int               `json:"order_errors"`
}

// SkippedCombination is a combination that produced no processing, with the reason.
type SkippedCombination struct {
	Combination model.Combination `json:"combination"`
	Reason      string            `json:"reason"`
}

// Summary reports the outcome of a backtest pass or a live cycle.
type Summary struct {
	Mode       Mode                 `json:"mode"`
	RunName    string               `json:"run_name"`
	RunID      string               `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Requested  int                  `json:"requested"`
	Processed  []ComboResult        `json:"processed"`
	Skipped    []SkippedCombination `json:"skipped"`
	NotDue     int                  `json:"not_due"`
	Cancelled  bool                 `json:"cancelled"`
	Session    SessionState         `json:"session"`

	mu sync.Mutex
}

func newSummary(mode Mode, runName, runID string, requested int, now time.Time) *Summary {
	return &Summary{Mode: mode, RunName: runName, RunID: runID, Requested: requested, StartedAt: now}
}

func (s *Summary) skip(c model.Combination, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped = append(s.Skipped, SkippedCombination{Combination: c, Reason: err.Error()})
}

func (s *Summary) add(r ComboResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed = append(s.Processed, r)
}

func (s *Summary) finish(session SessionState, cancelled bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Session = session
	s.Cancelled = cancelled
	s.FinishedAt = now
	sort.Slice(s.Processed, func(i, j int) bool {
		return s.Processed[i].Combination.String() < s.Processed[j].Combination.String()
	})
	sort.Slice(s.Skipped, func(i, j int) bool {
		return s.Skipped[i].Combination.String() < s.Skipped[j].Combination.String()
	})
}

// Totals sums the per-combination counters.
func (s *Summary) Totals() ComboResult {
	var t ComboResult
	for _, r := range s.Processed {
		t.Candles += r.Candles
		t.Opened += r.Opened
		t.Closed += r.Closed
		t.NetProfit = t.NetProfit.Add(r.NetProfit)
		t.Flushed += r.Flushed
		t.Dropped += r.Dropped
		t.GateBlocked += r.GateBlocked
		t.BreakerBlocked += r.BreakerBlocked
		t.CapacityBlocked += r.CapacityBlocked
		t.SizingRejected += r.SizingRejected
		t.OrderErrors += r.OrderErrors
	}
	return t
}

// Log writes the summary and one warning per skipped combination.
func (s *Summary) Log(log *logger.Entry) {
	t := s.Totals()
	log.WithFields(logger.Fields{
		"mode":         s.Mode,
		"run_name":     s.RunName,
		"run_id":       s.RunID,
		"requested":    s.Requested,
		"processed":    len(s.Processed),
		"skipped":      len(s.Skipped),
		"not_due":      s.NotDue,
		"opened":       t.Opened,
		"closed":       t.Closed,
		"flushed":      t.Flushed,
		"dropped":      t.Dropped,
		"net_profit":   t.NetProfit.StringFixed(2),
		"balance":      s.Session.CurrentBalance.StringFixed(2),
		"max_drawdown": s.Session.MaxDrawdownSoFar.StringFixed(4),
		"within_limit": s.Session.WithinLimit,
		"cancelled":    s.Cancelled,
		"duration":     s.FinishedAt.Sub(s.StartedAt).String(),
	}).Info("run summary")

	for _, sk := range s.Skipped {
		log.WithField("combination", sk.Combination.String()).
			WithField("reason", sk.Reason).
			Warn("combination skipped")
	}
}

// Text renders the summary for notifications.
func (s *Summary) Text() string {
	t := s.Totals()
	var b strings.Builder
	fmt.Fprintf(&b, "%s run %s (%s)\n", s.Mode, s.RunName, s.RunID)
	fmt.Fprintf(&b, "combinations: %d processed, %d skipped, %d not due\n", len(s.Processed), len(s.Skipped), s.NotDue)
	fmt.Fprintf(&b, "trades: %d opened, %d closed, net %s\n", t.Opened, t.Closed, t.NetProfit.StringFixed(2))
	fmt.Fprintf(&b, "balance: %s (max drawdown %s)\n", s.Session.CurrentBalance.StringFixed(2), s.Session.MaxDrawdownSoFar.StringFixed(4))
	if s.Cancelled {
		b.WriteString("run was cancelled\n")
	}
	for _, sk := range s.Skipped {
		fmt.Fprintf(&b, "skipped %s: %s\n", sk.Combination, sk.Reason)
	}
	return b.String()
}
