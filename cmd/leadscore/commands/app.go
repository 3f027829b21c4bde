package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/export"
	"github.com/wonny/leadscore/internal/ingest"
	"github.com/wonny/leadscore/internal/metrics"
	"github.com/wonny/leadscore/internal/pipeline"
	"github.com/wonny/leadscore/internal/pipelineconfig"
	"github.com/wonny/leadscore/internal/storage"
	"github.com/wonny/leadscore/pkg/config"
	"github.com/wonny/leadscore/pkg/database"
	"github.com/wonny/leadscore/pkg/logger"
	"github.com/wonny/leadscore/pkg/redis"
)

// app holds the process-wide dependencies shared by every command
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	pipeline *pipelineconfig.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// db is nil when DATABASE_URL is not set
	db    *database.DB
	redis *redis.Client
}

// bootstrap loads both config layers and the logger.
// Logs go to stderr so stdout stays clean for table output.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if pipelinePath != "" {
		cfg.PipelineConfigPath = pipelinePath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.NewWithWriter(cfg, os.Stderr)

	pcfg, _, err := pipelineconfig.Load(cfg.PipelineConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config %s: %w", cfg.PipelineConfigPath, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		pipeline: pcfg,
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

// connect opens Postgres (when configured or required) and Redis.
// The storage schema is migrated on every connect.
func (a *app) connect(ctx context.Context, requireDB bool) error {
	if requireDB || a.cfg.Database.URL != "" || a.cfg.Source.Kind == "postgres" {
		db, err := database.New(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.log.WithField("schema", db.Schema).Info("Connected to database")

		if err := storage.Migrate(ctx, db.Pool, db.Schema); err != nil {
			return err
		}
	}

	rc, err := redis.New(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rc

	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// sourceReader returns the configured raw input reader
func (a *app) sourceReader() (contracts.SourceReader, error) {
	src := a.cfg.Source
	switch src.Kind {
	case "csv":
		return ingest.NewCSVReader(ingest.Paths{
			Paying:    src.PayingCSV,
			NonPaying: src.NonPayingCSV,
			Usage:     src.UsageCSV,
		}, a.pipeline.Columns, a.log), nil
	case "postgres":
		if a.db == nil {
			return nil, fmt.Errorf("SOURCE_KIND=postgres requires DATABASE_URL")
		}
		return storage.NewSourceRepository(a.db.Pool, storage.SourceTables{
			Paying:    src.PayingTable,
			NonPaying: src.NonPayingTable,
			Usage:     src.UsageTable,
		}, a.pipeline.Columns, a.log), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// featureRepository returns the Postgres sink fronted by Redis, or nil
// without a database
func (a *app) featureRepository() storage.Repository {
	if a.db == nil {
		return nil
	}
	return storage.NewCachedFeatures(
		storage.NewFeatureRepository(a.db.Pool, a.db.Schema),
		redis.NewCache(a.redis, "leadscore"),
		a.log,
	)
}

func (a *app) exporter() *export.CSVWriter {
	return export.NewCSVWriter(a.cfg.OutputDir, a.log)
}

// newRunner wires reader → pipeline → writers
func (a *app) newRunner(writers ...contracts.FeatureWriter) (*pipeline.Runner, error) {
	p, err := pipeline.New(a.pipeline, a.metrics, a.log)
	if err != nil {
		return nil, err
	}
	reader, err := a.sourceReader()
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(p, reader, a.log, writers...), nil
}

// gathererIfEnabled exposes the registry on /metrics unless METRICS_ENABLED=false
func (a *app) gathererIfEnabled() prometheus.Gatherer {
	if !a.cfg.MetricsEnabled {
		return nil
	}
	return a.registry
}
