package executors

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradingbot/src/cache"
	"tradingbot/src/engine"
	"tradingbot/src/model"
	"tradingbot/src/server"
	"tradingbot/src/streak"

	logger "github.com/sirupsen/logrus"
)

// Cycler is the part of the orchestrator the live loop drives.
type Cycler interface {
	RunCycle(ctx context.Context, combos []model.Combination, now time.Time) (*engine.Summary, error)
	Checkpoint() []engine.StreamCheckpoint
	OpenPositions() int
	RunName() string
	RunID() string
	Session() *engine.Session
	Close(ctx context.Context)
}

type Gate interface {
	Run(ctx context.Context) error
	Snapshot() streak.State
}

type CheckpointSaver interface {
	Save(ctx context.Context, cp cache.Checkpoint) error
}

type CheckpointLoader interface {
	Load(ctx context.Context, runName string) (cache.Checkpoint, error)
}

// LoadCheckpoint returns nil when no store is configured or nothing was saved.
func LoadCheckpoint(ctx context.Context, store CheckpointLoader, runName string) (*cache.Checkpoint, error) {
	if store == nil {
		return nil, nil
	}
	cp, err := store.Load(ctx, runName)
	if errors.Is(err, cache.ErrNoCheckpoint) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Loop runs orchestrator cycles on a ticker next to the streak gate.
type Loop struct {
	cfg    Config
	mode   engine.Mode
	combos []model.Combination
	orch   Cycler
	gate   Gate
	store  CheckpointSaver
	log    *logger.Entry
	now    func() time.Time

	mu            sync.RWMutex
	lastCycle     time.Time
	openPositions int
}

// NewLoop wires a loop. gate and store are optional.
func NewLoop(cfg Config, mode engine.Mode, combos []model.Combination, orch Cycler, gate Gate, store CheckpointSaver) *Loop {
	return &Loop{
		cfg:    cfg,
		mode:   mode,
		combos: combos,
		orch:   orch,
		gate:   gate,
		store:  store,
		log:    logger.WithField("component", "loop").WithField("mode", mode).WithField("run_name", orch.RunName()),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// StartLoop blocks until ctx is done or a cycle hits a configuration error.
// On exit it saves a final checkpoint and flushes the orchestrator.
func (l *Loop) StartLoop(ctx context.Context) error {
	period := l.cfg.LoopPeriod
	if period <= 0 {
		period = 15 * time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	gateCtx, stopGate := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if l.gate != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.gate.Run(gateCtx); err != nil {
				l.log.WithError(err).Error("streak gate loop failed")
			}
		}()
	}

	defer func() {
		stopGate()
		wg.Wait()
		l.saveCheckpoint(ctx)
		l.orch.Close(context.Background())
	}()

	if l.cfg.RunOnStart {
		if err := l.cycle(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			l.log.Info("loop stopped")
			return nil

		case <-ticker.C:
			if err := l.cycle(ctx); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) cycle(ctx context.Context) error {
	now := l.now()
	l.log.WithField("at", now).Info("loop tick")

	summary, err := l.orch.RunCycle(ctx, l.combos, now)
	if err != nil {
		l.log.WithError(err).Error("cycle failed")
		return err
	}

	l.mu.Lock()
	l.lastCycle = now
	l.openPositions = l.orch.OpenPositions()
	l.mu.Unlock()

	totals := summary.Totals()
	l.log.WithFields(logger.Fields{
		"processed":      len(summary.Processed),
		"skipped":        len(summary.Skipped),
		"not_due":        summary.NotDue,
		"opened":         totals.Opened,
		"closed":         totals.Closed,
		"open_positions": l.openPositions,
	}).Info("cycle finished")

	l.saveCheckpoint(ctx)
	return nil
}

func (l *Loop) saveCheckpoint(ctx context.Context) {
	if l.store == nil {
		return
	}
	cp := cache.Checkpoint{
		RunName: l.orch.RunName(),
		RunID:   l.orch.RunID(),
		SavedAt: l.now(),
		Session: l.orch.Session().Current(),
		Streams: l.orch.Checkpoint(),
	}
	if l.gate != nil {
		cp.Streak = l.gate.Snapshot()
	}

	timeout := l.cfg.CheckpointTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := l.store.Save(saveCtx, cp); err != nil {
		l.log.WithError(err).Error("failed to save checkpoint")
		return
	}
	l.log.WithField("streams", len(cp.Streams)).Debug("checkpoint saved")
}

// Status implements server.StatusSource.
func (l *Loop) Status() server.Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	session := l.orch.Session().Snapshot()
	status := server.Status{
		RunName:       l.orch.RunName(),
		Mode:          string(l.mode),
		Combinations:  len(l.combos),
		OpenPositions: l.openPositions,
		LastCycle:     l.lastCycle,
		Session:       &session,
	}
	if l.gate != nil {
		s := l.gate.Snapshot()
		status.Streak = &s
	}
	return status
}
