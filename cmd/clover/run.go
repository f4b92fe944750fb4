package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/datasets"
	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/etl"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/retry"
	"github.com/Ramsey-B/clover/pkg/source"
)

var runCmd = &cobra.Command{
	Use:       "run <pipeline>",
	Short:     "Run one ETL pipeline",
	Args:      cobra.ExactArgs(1),
	ValidArgs: datasets.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixtures, err := cmd.Flags().GetString("fixtures")
		if err != nil {
			return fmt.Errorf("failed to get fixtures flag: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, err = a.start(ctx, appOptions{memoryStore: fixtures != "", withRedis: true, withKafka: true})
		if err != nil {
			return err
		}
		defer a.stop()

		ctx, cfg, err := resolve[*config.Config](ctx)
		if err != nil {
			return err
		}
		ctx, logger, err := resolve[ectologger.Logger](ctx)
		if err != nil {
			return err
		}
		ctx, stores, err := resolve[docstore.Provider](ctx)
		if err != nil {
			return err
		}
		var locker *redis.Locker
		if cfg.RedisEnabled {
			if ctx, locker, err = resolve[*redis.Locker](ctx); err != nil {
				return err
			}
		}
		var emitter *events.Emitter
		if cfg.KafkaEnabled {
			if ctx, emitter, err = resolve[*events.Emitter](ctx); err != nil {
				return err
			}
		}

		var src source.Client
		if fixtures != "" {
			src, err = loadFixtures(fixtures)
			if err != nil {
				return err
			}
		} else {
			httpCfg := httpclient.DefaultConfig()
			httpCfg.Timeout = cfg.CFBDTimeout
			src = source.NewCFBDClient(source.CFBDConfig{
				BaseURL: cfg.CFBDBaseURL,
				APIKey:  cfg.CFBDAPIKey,
			}, httpclient.NewClient(httpCfg, logger), logger)
		}

		opts := []etl.Option{
			etl.WithSkipExtractionCleanup(cfg.SkipExtractionCleanup),
			etl.WithSkipStagingCleanup(cfg.SkipStagingCleanup),
			etl.WithExtractionConcurrency(cfg.ExtractionConcurrency),
		}
		if emitter != nil {
			opts = append(opts, etl.WithObserver(emitter))
		}

		caller := retry.NewCaller(retry.Config{MaxAttempts: cfg.RetryMaxAttempts, Delay: cfg.RetryDelay}, logger)
		pipeline, err := datasets.NewPipeline(args[0], datasets.Settings{
			Years:             cfg.Years,
			Classifications:   cfg.Classifications,
			Weeks:             cfg.Weeks,
			ReplaceProduction: cfg.ReplaceProduction,
		}, stores, src, caller, logger, opts...)
		if err != nil {
			return err
		}

		var report etl.RunReport
		runPipeline := func(ctx context.Context) error {
			report = pipeline.Run(ctx)
			return nil
		}
		if locker != nil {
			err = locker.WithLock(ctx, pipeline.Name(), cfg.RunLockTTL, runPipeline)
		} else {
			err = runPipeline(ctx)
		}
		if err != nil {
			return fmt.Errorf("pipeline %s did not run: %w", pipeline.Name(), err)
		}

		if !report.Succeeded() {
			return fmt.Errorf("pipeline %s aborted in %s: %w", report.Pipeline, report.FailedStage, report.Err)
		}
		for unit, load := range report.Loads {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", unit, load)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("fixtures", "", "serve source records from a JSON file of endpoint -> records and use the in-memory store")
}

// loadFixtures reads {"teams?year=2024": [...], "venues": [...]} into a static source.
func loadFixtures(path string) (*source.StaticClient, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records := map[string][]source.Record{}
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, errors.Join(fmt.Errorf("invalid fixtures file %s", path), err)
	}
	return &source.StaticClient{Records: records}, nil
}
