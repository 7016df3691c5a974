package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/zenorc/zenorc/internal/classify"
	"github.com/zenorc/zenorc/internal/model"
	"github.com/zenorc/zenorc/internal/service"
)

// IngestorConfig holds the tunables for the ingestion loop.
type IngestorConfig struct {
	// PollInterval is the time between inbox scans.
	PollInterval time.Duration
	// FetchWindow bounds one scan to the most recent unread messages.
	FetchWindow int
	// Amount is the fixed expected value recorded with each transaction.
	Amount string
}

// DefaultIngestorConfig returns the ingestion defaults.
func DefaultIngestorConfig() IngestorConfig {
	return IngestorConfig{
		PollInterval: 3 * time.Second,
		FetchWindow:  30,
		Amount:       "5",
	}
}

// Ingestor drives the source and classifier on a fixed tick, filters
// duplicates against shared state, and enqueues new accepted transactions.
type Ingestor struct {
	source     service.NotificationSource
	ledger     service.Ledger
	classifier *classify.Classifier
	state      *State
	logger     *slog.Logger
	now        func() time.Time
	cfg        IngestorConfig
}

// NewIngestor wires an ingestion loop over the given collaborators.
func NewIngestor(source service.NotificationSource, ledger service.Ledger, classifier *classify.Classifier, state *State, cfg IngestorConfig, logger *slog.Logger) *Ingestor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultIngestorConfig().PollInterval
	}
	if cfg.FetchWindow <= 0 {
		cfg.FetchWindow = DefaultIngestorConfig().FetchWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		source:     source,
		ledger:     ledger,
		classifier: classifier,
		state:      state,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run polls until ctx is cancelled. Every tick is independent: a source
// error aborts the current tick only, and the next tick retries from
// scratch.
func (in *Ingestor) Run(ctx context.Context) error {
	ticker := time.NewTicker(in.cfg.PollInterval)
	defer ticker.Stop()

	for {
		in.Tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one fetch-and-classify pass. Exported for tests and for
// one-shot scans.
func (in *Ingestor) Tick(ctx context.Context) {
	notifications, err := in.source.FetchUnseen(ctx, in.cfg.FetchWindow)
	if err != nil {
		in.logger.Warn("inbox scan failed", "error", err)
		return
	}

	for _, n := range notifications {
		if ctx.Err() != nil {
			return
		}
		in.ingestOne(ctx, n)
	}
}

// ingestOne applies the dedupe filter to a single notification. Side effects
// are strictly ordered: the source ref is marked consumed and the ledger row
// appended before the id becomes eligible for dispatch, so a crash mid-way
// can at worst leave an early duplicate ledger row, never lose a transaction
// inside the process.
func (in *Ingestor) ingestOne(ctx context.Context, n model.Notification) {
	if in.state.RefConsumed(n.SourceRef) {
		return
	}

	result := in.classifier.Classify(n)
	if !result.Accepted {
		in.consume(ctx, n.SourceRef)
		return
	}
	if result.SynthesizedID {
		in.logger.Warn("no reference number in message, synthesized id",
			"source_ref", n.SourceRef, "txn_id", result.TxnID)
	}

	in.consume(ctx, n.SourceRef)

	if !in.state.Admit(result.TxnID) {
		in.logger.Debug("duplicate transaction dropped",
			"source_ref", n.SourceRef, "txn_id", result.TxnID)
		return
	}

	accepted := in.now()
	entry := model.LedgerEntry{ID: result.TxnID, Amount: in.cfg.Amount, When: accepted}
	if err := in.ledger.Record(ctx, entry); err != nil {
		// Non-fatal: the in-memory pipeline proceeds. A restart inside this
		// window will not know the id, so a restart-time duplicate is
		// possible; accepted risk.
		in.logger.Error("ledger append failed", "txn_id", result.TxnID, "error", err)
	}

	in.state.Enqueue(result.TxnID)
	in.logger.Info("transaction queued",
		"txn_id", result.TxnID,
		"source_ref", n.SourceRef,
		"queue_length", in.state.QueueLen())
}

func (in *Ingestor) consume(ctx context.Context, sourceRef string) {
	in.state.ConsumeRef(sourceRef)
	if err := in.source.MarkConsumed(ctx, sourceRef); err != nil {
		in.logger.Warn("failed to mark message consumed", "source_ref", sourceRef, "error", err)
	}
}
