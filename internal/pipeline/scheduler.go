package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/zenorc/zenorc/internal/service"
)

// SchedulerConfig holds the tunables for the cooldown scheduler.
type SchedulerConfig struct {
	// Cooldown is the hard floor on spacing between terminal transitions.
	Cooldown time.Duration
	// Tick is the re-check interval while waiting. Cooldowns are tens of
	// seconds, so ~1s of jitter is immaterial; no precise wake computation.
	Tick time.Duration
}

// DefaultSchedulerConfig returns the scheduler defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Cooldown: 40 * time.Second,
		Tick:     time.Second,
	}
}

// Scheduler turns the queue into a dispatch stream: strict FIFO, exactly one
// dispatch in flight, and at least Cooldown between terminal transitions.
type Scheduler struct {
	dispatcher service.Dispatcher
	state      *State
	logger     *slog.Logger
	now        func() time.Time
	cfg        SchedulerConfig
}

// NewScheduler wires a scheduler over the shared state and a dispatcher.
func NewScheduler(state *State, dispatcher service.Dispatcher, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultSchedulerConfig().Cooldown
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultSchedulerConfig().Tick
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		state:      state,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run re-checks the queue on a fixed tick until ctx is cancelled.
func (sc *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(sc.cfg.Tick)
	defer ticker.Stop()

	for {
		sc.Tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs at most one dispatch. Exported for tests.
func (sc *Scheduler) Tick(ctx context.Context) {
	txnID, ok := sc.state.PopReady(sc.now(), sc.cfg.Cooldown)
	if !ok {
		if remaining := sc.state.CooldownRemaining(sc.now(), sc.cfg.Cooldown); remaining > 0 && sc.state.QueueLen() > 0 {
			sc.logger.Debug("cooldown active", "remaining", remaining.Round(time.Second))
		}
		return
	}

	sc.logger.Info("dispatching transaction", "txn_id", txnID)

	err := sc.dispatcher.Publish(ctx)
	// Failure still consumes the cooldown window: a possibly-unreachable
	// broker must not be hammered on the next tick.
	sc.state.Finish(txnID, err == nil, sc.now())

	if err != nil {
		sc.logger.Error("dispatch failed", "txn_id", txnID, "error", err)
		return
	}
	sc.logger.Info("dispatch completed", "txn_id", txnID)
}
