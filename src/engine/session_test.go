package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSession_ReserveAndSettle(t *testing.T) {
	s := NewSession(d("1000"), d("0.2"))
	defer s.Close()

	require.NoError(t, s.Reserve(d("100")))
	require.True(t, d("900").Equal(s.Snapshot().AvailableBalance))

	s.Settle(d("100"), d("9.79"), d("0.21"))

	st := s.Current()
	require.True(t, d("1009.79").Equal(st.CurrentBalance), st.CurrentBalance.String())
	require.True(t, d("1009.79").Equal(st.AvailableBalance), st.AvailableBalance.String())
	require.True(t, d("1009.79").Equal(st.PeakBalance))
	require.True(t, d("0.21").Equal(st.Fees))
	require.Equal(t, 1, st.OpenedPositions)
	require.Equal(t, 1, st.ClosedPositions)
	require.True(t, st.WithinLimit)
}

func TestSession_ReserveRejectsOverdraft(t *testing.T) {
	s := NewSession(d("100"), d("0.2"))
	defer s.Close()

	require.ErrorIs(t, s.Reserve(d("150")), ErrInsufficientBalance)
	require.ErrorIs(t, s.Reserve(d("0")), ErrInsufficientBalance)
	require.NoError(t, s.Reserve(d("100")))
	require.ErrorIs(t, s.Reserve(d("1")), ErrInsufficientBalance)

	s.Release(d("100"))
	st := s.Current()
	require.True(t, d("100").Equal(st.AvailableBalance))
	require.Equal(t, 0, st.OpenedPositions)
}

func TestSession_CircuitBreaker(t *testing.T) {
	s := NewSession(d("10000"), d("0.2"))

	var mu sync.Mutex
	var trips []SessionState
	s.OnCircuitBreak(func(st SessionState) {
		mu.Lock()
		defer mu.Unlock()
		trips = append(trips, st)
	})

	// 10000 -> 12000 -> 9000 is a 25% drawdown from the peak
	require.NoError(t, s.Reserve(d("1000")))
	s.Settle(d("1000"), d("2000"), d("0"))
	require.NoError(t, s.Reserve(d("1000")))
	s.Settle(d("1000"), d("-3000"), d("0"))

	st := s.Current()
	require.False(t, st.WithinLimit)
	require.False(t, s.WithinLimit())
	require.True(t, d("0.25").Equal(st.MaxDrawdownSoFar), st.MaxDrawdownSoFar.String())

	require.ErrorIs(t, s.Reserve(d("1000")), ErrDrawdownLimit)

	// a new peak brings the current drawdown back under the limit
	s.Settle(d("0"), d("4000"), d("0"))
	s.Close()

	final := s.Snapshot()
	require.True(t, final.WithinLimit)
	require.True(t, d("0").Equal(final.Drawdown), final.Drawdown.String())
	require.True(t, d("0.25").Equal(final.MaxDrawdownSoFar), final.MaxDrawdownSoFar.String())
	require.Len(t, trips, 1)
	require.True(t, d("9000").Equal(trips[0].CurrentBalance), trips[0].CurrentBalance.String())
}

func TestSession_SlowCircuitBreakerCallbackDoesNotBlock(t *testing.T) {
	s := NewSession(d("10000"), d("0.1"))

	release := make(chan struct{})
	called := make(chan SessionState, 1)
	s.OnCircuitBreak(func(st SessionState) {
		called <- st
		<-release
	})

	require.NoError(t, s.Reserve(d("5000")))
	s.Settle(d("5000"), d("-2000"), d("0"))

	// the callback is parked until release, yet the aggregator keeps serving
	tripped := <-called
	require.False(t, tripped.WithinLimit)

	start := time.Now()
	st := s.Current()
	require.Less(t, int64(time.Since(start)), int64(time.Second))
	require.False(t, st.WithinLimit)
	require.ErrorIs(t, s.Reserve(d("100")), ErrDrawdownLimit)
	s.Settle(d("0"), d("10"), d("0"))
	require.True(t, d("8010").Equal(s.Current().CurrentBalance))

	close(release)
	s.Close()
}

func TestSession_ConcurrentUpdates(t *testing.T) {
	s := NewSession(d("10000"), d("0.5"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if s.Reserve(d("10")) == nil {
					s.Settle(d("10"), d("1"), d("0.01"))
				}
			}
		}()
	}
	wg.Wait()
	s.Close()

	st := s.Snapshot()
	require.Equal(t, 200, st.ClosedPositions)
	require.True(t, d("10200").Equal(st.CurrentBalance), st.CurrentBalance.String())
	require.True(t, d("10200").Equal(st.AvailableBalance))
	require.True(t, d("2").Equal(st.Fees))
}

func TestRestoreSession(t *testing.T) {
	s := RestoreSession(SessionState{
		InitialBalance:   d("10000"),
		CurrentBalance:   d("7000"),
		AvailableBalance: d("6500"),
		PeakBalance:      d("10000"),
		MaxDrawdownSoFar: d("0.3"),
		MaxDrawdownLimit: d("0.2"),
		WithinLimit:      true,
	})
	defer s.Close()

	st := s.Snapshot()
	require.False(t, st.WithinLimit)
	require.True(t, d("6500").Equal(st.AvailableBalance))
}
