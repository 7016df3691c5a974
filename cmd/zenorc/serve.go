package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/zenorc/zenorc/internal/classify"
	"github.com/zenorc/zenorc/internal/config"
	"github.com/zenorc/zenorc/internal/imap"
	"github.com/zenorc/zenorc/internal/mqtt"
	"github.com/zenorc/zenorc/internal/pipeline"
	"github.com/zenorc/zenorc/internal/server"
	"github.com/zenorc/zenorc/internal/sheets"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the payment relay pipeline",
		Long: `Run the ingestion loop, cooldown scheduler and status server until
interrupted. The dedup set is seeded from the ledger at startup.`,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "status server listen address (overrides server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	config.SetDefaults(viper.GetViper())

	source, err := imap.NewSource(config.LoadIMAPConfig(viper.GetViper()), logger.With("component", "imap"))
	if err != nil {
		return fmt.Errorf("imap source: %w", err)
	}
	defer func() { _ = source.Close() }()

	dispatcher, err := mqtt.NewPublisher(config.LoadMQTTConfig(viper.GetViper()), logger.With("component", "mqtt"))
	if err != nil {
		return fmt.Errorf("mqtt publisher: %w", err)
	}

	ledger, err := sheets.NewLedger(ctx, config.LoadSheetsConfig(viper.GetViper()), logger.With("component", "sheets"))
	if err != nil {
		return fmt.Errorf("sheets ledger: %w", err)
	}

	// Seed dedup state. A failure here is a warning, not fatal: the pipeline
	// starts with an empty seed and the ledger keeps receiving appends.
	knownIDs, err := ledger.LoadKnownIDs(ctx)
	if err != nil {
		logger.Warn("ledger seed failed, starting with empty dedup set", "error", err)
		knownIDs = nil
	}

	state := pipeline.NewState(knownIDs)
	classifier := classify.New(config.LoadPolicy(viper.GetViper()))
	ingestor := pipeline.NewIngestor(source, ledger, classifier, state,
		config.LoadIngestorConfig(viper.GetViper()), logger.With("component", "ingest"))
	scheduler := pipeline.NewScheduler(state, dispatcher,
		config.LoadSchedulerConfig(viper.GetViper()), logger.With("component", "scheduler"))
	statusServer := server.New(viper.GetString("server.addr"), state, logger.With("component", "server"))

	logger.Info("starting payment relay",
		"cooldown", viper.GetDuration("pipeline.cooldown"),
		"poll_interval", viper.GetDuration("pipeline.poll_interval"),
		"listen", viper.GetString("server.addr"))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return ingestor.Run(groupCtx) })
	group.Go(func() error { return scheduler.Run(groupCtx) })
	group.Go(func() error { return statusServer.Run(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
