package engine

import (
	"errors"
	"sync"

	"tradingbot/src/risk"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrDrawdownLimit       = errors.New("max drawdown limit breached")
)

// SessionState is the run-wide balance view. Only the session aggregator writes it.
type SessionState struct {
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PeakBalance      decimal.Decimal `json:"peak_balance"`
	Drawdown         decimal.Decimal `json:"drawdown"`
	MaxDrawdownSoFar decimal.Decimal `json:"max_drawdown_so_far"`
	MaxDrawdownLimit decimal.Decimal `json:"max_drawdown_limit"`
	WithinLimit      bool            `json:"within_limit"`
	OpenedPositions  int             `json:"opened_positions"`
	ClosedPositions  int             `json:"closed_positions"`
	RealizedProfit   decimal.Decimal `json:"realized_profit"`
	Fees             decimal.Decimal `json:"fees"`
}

type eventKind int

const (
	eventReserve eventKind = iota
	eventRelease
	eventSettle
	eventQuery
)

type sessionEvent struct {
	kind     eventKind
	notional decimal.Decimal
	net      decimal.Decimal
	fees     decimal.Decimal
	reply    chan error
	state    chan SessionState
}

// Session serializes every balance mutation through a single goroutine.
// Workers send reserve and settle events; readers use Snapshot.
type Session struct {
	events chan sessionEvent
	done   chan struct{}
	once   sync.Once

	trips     chan SessionState
	tripsDone chan struct{}

	tracker *risk.DrawdownTracker
	state   SessionState
	onTrip  func(SessionState)
	log     *logger.Entry

	mu       sync.RWMutex
	snapshot SessionState
}

// NewSession starts an aggregator for a fresh balance.
func NewSession(initial, drawdownLimit decimal.Decimal) *Session {
	return startSession(SessionState{
		InitialBalance:   initial,
		CurrentBalance:   initial,
		AvailableBalance: initial,
		PeakBalance:      initial,
		MaxDrawdownLimit: drawdownLimit,
		WithinLimit:      true,
	}, risk.NewDrawdownTracker(initial, drawdownLimit))
}

// RestoreSession resumes an aggregator from a checkpointed state.
func RestoreSession(state SessionState) *Session {
	tracker := risk.RestoreDrawdownTracker(state.MaxDrawdownLimit, state.PeakBalance, state.CurrentBalance, state.MaxDrawdownSoFar)
	state.WithinLimit = tracker.WithinLimit()
	return startSession(state, tracker)
}

func startSession(state SessionState, tracker *risk.DrawdownTracker) *Session {
	s := &Session{
		events:    make(chan sessionEvent, 256),
		done:      make(chan struct{}),
		trips:     make(chan SessionState, 16),
		tripsDone: make(chan struct{}),
		tracker:   tracker,
		state:     state,
		snapshot:  state,
		log:       logger.WithField("component", "session"),
	}
	go s.aggregate()
	go s.dispatchTrips()
	return s
}

// OnCircuitBreak registers a callback invoked each time the drawdown limit is
// breached. It runs on its own goroutine, never on the aggregator, and must be
// set before events flow.
func (s *Session) OnCircuitBreak(fn func(SessionState)) {
	s.onTrip = fn
}

func (s *Session) aggregate() {
	defer close(s.done)
	for ev := range s.events {
		s.apply(ev)
	}
}

func (s *Session) dispatchTrips() {
	defer close(s.tripsDone)
	for st := range s.trips {
		if s.onTrip != nil {
			s.onTrip(st)
		}
	}
}

func (s *Session) apply(ev sessionEvent) {
	wasWithin := s.state.WithinLimit

	switch ev.kind {
	case eventQuery:
		ev.state <- s.state
		return

	case eventReserve:
		var err error
		switch {
		case !s.state.WithinLimit:
			err = ErrDrawdownLimit
		case !ev.notional.IsPositive() || ev.notional.GreaterThan(s.state.AvailableBalance):
			err = ErrInsufficientBalance
		default:
			s.state.AvailableBalance = s.state.AvailableBalance.Sub(ev.notional)
			s.state.OpenedPositions++
			s.publish()
		}
		ev.reply <- err
		return

	case eventRelease:
		s.state.AvailableBalance = s.state.AvailableBalance.Add(ev.notional)
		s.state.OpenedPositions--

	case eventSettle:
		s.state.AvailableBalance = s.state.AvailableBalance.Add(ev.notional).Add(ev.net)
		s.state.CurrentBalance = s.state.CurrentBalance.Add(ev.net)
		s.state.RealizedProfit = s.state.RealizedProfit.Add(ev.net)
		s.state.Fees = s.state.Fees.Add(ev.fees)
		s.state.ClosedPositions++

		s.tracker.Update(s.state.CurrentBalance)
		s.state.PeakBalance = s.tracker.Peak()
		s.state.Drawdown = s.tracker.Drawdown()
		s.state.MaxDrawdownSoFar = s.tracker.MaxDrawdown()
		s.state.WithinLimit = s.tracker.WithinLimit()
	}

	s.publish()

	if wasWithin && !s.state.WithinLimit {
		s.log.
			WithField("max_drawdown", s.state.MaxDrawdownSoFar.String()).
			WithField("limit", s.state.MaxDrawdownLimit.String()).
			WithField("balance", s.state.CurrentBalance.String()).
			Warn("max drawdown limit breached, new entries halted")
		select {
		case s.trips <- s.state:
		default:
			s.log.Warn("circuit breaker callback queue full, trip event dropped")
		}
	}
}

func (s *Session) publish() {
	s.mu.Lock()
	s.snapshot = s.state
	s.mu.Unlock()
}

// Reserve takes notional from the available balance. It blocks until the
// aggregator has applied the request and fails once the drawdown limit is breached.
func (s *Session) Reserve(notional decimal.Decimal) error {
	reply := make(chan error, 1)
	s.events <- sessionEvent{kind: eventReserve, notional: notional, reply: reply}
	return <-reply
}

// Release returns a reservation that never became a position.
func (s *Session) Release(notional decimal.Decimal) {
	s.events <- sessionEvent{kind: eventRelease, notional: notional}
}

// Settle books a closed position: its entry notional comes back plus the net profit.
func (s *Session) Settle(entryNotional, net, fees decimal.Decimal) {
	s.events <- sessionEvent{kind: eventSettle, notional: entryNotional, net: net, fees: fees}
}

// Current returns the state after every event the caller sent before it.
func (s *Session) Current() SessionState {
	reply := make(chan SessionState, 1)
	s.events <- sessionEvent{kind: eventQuery, state: reply}
	return <-reply
}

// Snapshot returns the last published state without waiting on the aggregator.
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Session) WithinLimit() bool {
	return s.Snapshot().WithinLimit
}

// Close drains pending events, stops the aggregator and waits for queued
// circuit breaker callbacks. The session must not receive events afterwards;
// Snapshot keeps working.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.events)
		<-s.done
		close(s.trips)
		<-s.tripsDone
	})
}

