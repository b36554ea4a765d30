package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/ledger"
	"github.com/ignite/campaign-tracker/internal/metrics"
	"github.com/ignite/campaign-tracker/internal/pkg/distlock"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
	"github.com/ignite/campaign-tracker/internal/pkg/retry"
	"github.com/ignite/campaign-tracker/internal/sheets"
	"github.com/ignite/campaign-tracker/internal/source"
	"github.com/ignite/campaign-tracker/internal/storage"
	"github.com/ignite/campaign-tracker/internal/tracker"
)

// loadConfig reads and validates the config file and applies logging flags.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.LoadFromEnv(opts.ConfigPath)
	if err != nil {
		return nil, setupError("loading config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, setupError("validating config", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, setupError("logging.level", err)
	}
	if opts.Verbose {
		level = logger.DEBUG
	}
	logger.SetLevel(level)
	return cfg, nil
}

// app owns the resources of one invocation.
type app struct {
	runner  *tracker.Runner
	closers []func() error
	logFile *os.File
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.logFile != nil {
		logger.SetOutput(os.Stderr)
		a.logFile.Close()
	}
}

// buildApp wires a Runner for campaign and environment. The source
// database is only opened when withSource is set.
func buildApp(ctx context.Context, cfg *config.Config, campaignName, environment string, withSource bool) (*app, error) {
	camp, err := cfg.Campaign(campaignName)
	if err != nil {
		return nil, setupError("campaign", err)
	}
	var srcCfg config.SourceConfig
	if withSource {
		if srcCfg, err = cfg.Environment(environment); err != nil {
			return nil, setupError("environment", err)
		}
	}

	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, setupError("opening log file", err)
		}
		a.logFile = f
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	runID := uuid.NewString()
	logger.SetBaseFields("run_id", runID, "campaign", campaignName, "environment", environment)

	client, err := sheets.NewAuthenticatedClient(ctx, cfg.Sheets)
	if err != nil {
		return nil, setupError("sheets client", err)
	}
	dest := client.Spreadsheet(camp.SheetID)
	if _, err := dest.SheetTitles(ctx); err != nil {
		return nil, setupError("destination", err)
	}

	var extractor tracker.Extractor
	if withSource {
		db, err := source.Connect(ctx, srcCfg)
		if err != nil {
			return nil, setupError("source database", err)
		}
		a.closers = append(a.closers, db.Close)
		extractor = source.NewExtractor(db, cfg.Tracker.LargeBatchThreshold)
	}

	lock, err := buildLock(ctx, cfg.Lock, camp.SheetID, a)
	if err != nil {
		return nil, setupError("run lock", err)
	}

	var mirror storage.Mirror
	if cfg.Storage.S3Bucket != "" {
		s3Mirror, err := storage.NewAWSStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, setupError("backup mirror", err)
		}
		mirror = s3Mirror
	}
	backups := storage.New(cfg.Storage, campaignName, mirror)

	m := metrics.New()
	readPolicy := retry.Default()
	writePolicy := retry.Policy{
		MaxAttempts: cfg.Tracker.MaxAttempts,
		Backoff:     retry.Exponential(time.Second),
		Sleep:       retry.ContextSleep,
	}
	writer := tracker.NewWriter(dest, backups, writePolicy, cfg.Tracker.Settle(), m)

	a.runner = &tracker.Runner{
		CampaignName: campaignName,
		Campaign:     camp,
		Environment:  environment,
		RunID:        runID,
		Dest:         dest,
		Extractor:    extractor,
		Filter:       source.NewFilterBuilder(cfg.Tracker),
		Resolver:     tracker.NewKeyResolver(dest, readPolicy),
		Writer:       writer,
		Merger:       tracker.NewMerger(dest, writer, readPolicy),
		Ledger:       ledger.NewStore(cfg.State.Dir, campaignName),
		Mirror:       backups,
		Lock:         lock,
		Metrics:      m,
		Push:         cfg.Metrics,
	}
	ok = true
	return a, nil
}

func buildLock(ctx context.Context, cfg config.LockConfig, sheetID string, a *app) (distlock.DistLock, error) {
	key := distlock.KeyFor(sheetID)
	switch {
	case cfg.RedisURL != "":
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return distlock.NewLock(client, nil, key, cfg.TTL()), nil
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening lock database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("connecting to lock database: %w", err)
		}
		return distlock.NewLock(nil, db, key, cfg.TTL()), nil
	default:
		logger.Debug("no run lock configured; runs must be serialized by the scheduler")
		return distlock.NoopLock{}, nil
	}
}
