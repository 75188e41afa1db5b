// Command fit-combine runs one combination pass over previously published
// daily records and quality-checks the result. It is re-runnable: the same
// daily records always reproduce the same combined record.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/gwobs/trigfit/internal/combine"
	"github.com/gwobs/trigfit/internal/config"
	"github.com/gwobs/trigfit/internal/logger"
	"github.com/gwobs/trigfit/internal/models"
	"github.com/gwobs/trigfit/internal/quality"
	"github.com/gwobs/trigfit/internal/store"
	"github.com/gwobs/trigfit/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	ifo        = flag.String("ifo", "", "Detector to combine (required)")
	endDate    = flag.String("end", "", "Last day of the window, YYYY-MM-DD (default: yesterday)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *ifo == "" {
		log.Fatal("-ifo is required")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	end := time.Now().AddDate(0, 0, -1)
	if *endDate != "" {
		end, err = time.Parse(models.DateLayout, *endDate)
		if err != nil {
			logger.Fatal("Invalid -end date %q: %v", *endDate, err)
		}
	}

	st := store.New(cfg.Storage.DataDir)

	combined, err := combine.Combine(st, *ifo, end, combine.Config{
		Days:                   cfg.Combine.Days,
		MaxGapDays:             cfg.Combine.MaxGapDays,
		ConservativePercentile: cfg.Combine.ConservativePercentile,
	}, time.Now())
	if err != nil {
		logger.Fatal("Combination failed: %v", err)
	}
	if err := st.SaveCombined(combined); err != nil {
		logger.Fatal("Failed to save combined record: %v", err)
	}
	logger.Info("Published combined record %s %s..%s (%d days)",
		combined.IFO, combined.FirstDate, combined.LastDate, combined.DaysUsed)

	var notifier quality.Notifier
	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = client
	}

	violations := quality.CheckCombined(combined, quality.Limits{
		Lower:               cfg.Quality.LowerLimit,
		Upper:               cfg.Quality.UpperLimit,
		MinDurationForCheck: cfg.Quality.MinDurationForCheck,
	})
	quality.Report(violations, notifier)
}
