package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gwobs/trigfit/internal/bins"
	"github.com/gwobs/trigfit/internal/combine"
	"github.com/gwobs/trigfit/internal/config"
	"github.com/gwobs/trigfit/internal/dailyfit"
	"github.com/gwobs/trigfit/internal/ingest"
	"github.com/gwobs/trigfit/internal/logger"
	"github.com/gwobs/trigfit/internal/models"
	"github.com/gwobs/trigfit/internal/quality"
	"github.com/gwobs/trigfit/internal/store"
	"github.com/gwobs/trigfit/internal/tailfit"
	"github.com/gwobs/trigfit/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	st := store.New(cfg.Storage.DataDir)

	var notifier quality.Notifier
	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = client
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting fit service (cadence: %v, ifos: %v, function: %s, threshold: %.2f)",
		cfg.Input.Cadence, cfg.Input.IFOs, cfg.Fit.Function, cfg.Fit.Threshold)

	ticker := time.NewTicker(cfg.Input.Cadence)
	defer ticker.Stop()

	// Fit yesterday immediately on startup, then on each tick.
	runCycle(cfg, st, notifier, time.Now())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return
		case tickTime := <-ticker.C:
			runCycle(cfg, st, notifier, tickTime)
		}
	}
}

// runCycle fits the most recent complete day for every detector, combines
// the rolling window, and reports quality violations once for the cycle.
func runCycle(cfg *config.Config, st *store.Store, notifier quality.Notifier, now time.Time) {
	startTime := time.Now()
	day := now.AddDate(0, 0, -1) // Most recent complete day
	limits := quality.Limits{
		Lower:               cfg.Quality.LowerLimit,
		Upper:               cfg.Quality.UpperLimit,
		MinDurationForCheck: cfg.Quality.MinDurationForCheck,
	}

	var violations []quality.Violation
	for _, ifo := range cfg.Input.IFOs {
		daily, err := fitDay(cfg, st, ifo, day, now)
		if err != nil {
			logger.Error("Daily fit failed for %s: %v", ifo, err)
			continue
		}
		violations = append(violations, quality.CheckDaily(daily, limits)...)

		combined, err := combine.Combine(st, ifo, day, combine.Config{
			Days:                   cfg.Combine.Days,
			MaxGapDays:             cfg.Combine.MaxGapDays,
			ConservativePercentile: cfg.Combine.ConservativePercentile,
		}, now)
		if err != nil {
			logger.Error("Combination failed for %s: %v", ifo, err)
			continue
		}
		if err := st.SaveCombined(combined); err != nil {
			logger.Error("Failed to save combined record for %s: %v", ifo, err)
			continue
		}
		logger.Info("Combined %d days for %s (%s..%s)", combined.DaysUsed, ifo,
			combined.FirstDate, combined.LastDate)
		violations = append(violations, quality.CheckCombined(combined, limits)...)
	}

	quality.Report(violations, notifier)
	logger.Info("Fit cycle completed in %v with %d quality violations",
		time.Since(startTime), len(violations))
}

// fitDay loads one detector-day of triggers, runs the daily fit and
// publishes the record.
func fitDay(cfg *config.Config, st *store.Store, ifo string, day, now time.Time) (*models.DailyFitRecord, error) {
	tf, err := ingest.Load(ingest.Path(cfg.Input.TriggerDir, ifo, day))
	if err != nil {
		return nil, err
	}

	rec, err := dailyfit.Run(tf.Triggers, tf.LiveTime, tf.VetoSegments, dailyfit.Params{
		IFO:           ifo,
		Date:          day,
		Family:        tailfit.Family(cfg.Fit.Function),
		Threshold:     cfg.Fit.Threshold,
		Spacing:       bins.Spacing(cfg.Fit.BinSpacing),
		BinCount:      cfg.Fit.BinCount,
		BinEdges:      cfg.Fit.BinEdges,
		PruneEnabled:  cfg.Prune.Enabled,
		PruneBinCount: cfg.Prune.BinCount,
		PruneQuota:    cfg.Prune.Quota,
		PruneWindow:   cfg.Prune.Window,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := st.SaveDaily(rec); err != nil {
		return nil, err
	}
	logger.Info("Published daily record %s %s (%d bins, live time %.0f s)",
		ifo, rec.Date, len(rec.Bins), rec.LiveTime)
	return rec, nil
}
