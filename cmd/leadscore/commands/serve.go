package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/api"
	"github.com/wonny/leadscore/internal/api/handlers"
	"github.com/wonny/leadscore/internal/handoff"
	"github.com/wonny/leadscore/internal/pipeline"
	"github.com/wonny/leadscore/internal/scheduler"
	"github.com/wonny/leadscore/internal/scheduler/jobs"
	"github.com/wonny/leadscore/internal/storage"
	"github.com/wonny/leadscore/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest feature table over HTTP",
	Long: `Starts the REST API in front of the latest feature table.

Without DATABASE_URL the table lives in memory and is built on start.

Endpoints:
  GET  /health                  - Health check
  GET  /metrics                 - Prometheus metrics
  GET  /api/runs/latest         - Latest run report
  POST /api/runs                - Rebuild now
  GET  /api/features            - Feature rows (?offset, ?limit, ?format=csv)
  GET  /api/features/{entity}   - Rows of one entity
  POST /api/handoff/top         - Rank rows by collaborator scores
  POST /api/handoff/annotate    - Validate a segmentation annotation

Example:
  go run ./cmd/leadscore serve
  go run ./cmd/leadscore serve --port 9000 --schedule`,
	RunE: runServe,
}

var (
	servePort         string
	serveSchedule     bool
	serveBuildOnStart bool
	serveTaxonomy     string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API port (default $PORT)")
	serveCmd.Flags().BoolVar(&serveSchedule, "schedule", false, "also run the rebuild scheduler")
	serveCmd.Flags().BoolVar(&serveBuildOnStart, "build-on-start", false, "build once before serving (always on without a database)")
	serveCmd.Flags().StringVar(&serveTaxonomy, "taxonomy", "", "segmentation taxonomy YAML (default built-in)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	if servePort != "" {
		a.cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.connect(ctx, false); err != nil {
		return err
	}
	defer a.close()

	taxonomy, err := handoff.LoadTaxonomy(serveTaxonomy)
	if err != nil {
		return err
	}

	// 1. Store: Postgres (+Redis) when available, memory otherwise
	var store storage.Repository = a.featureRepository()
	if store == nil {
		store = storage.NewMemoryStore()
		serveBuildOnStart = true
	}

	exporter := a.exporter()
	runner, err := a.newRunner(exporter, store)
	if err != nil {
		return err
	}

	if serveBuildOnStart {
		if _, err := runner.Run(ctx); err != nil {
			return fmt.Errorf("initial build: %w", err)
		}
	}

	// 2. Scheduler
	var sched *scheduler.Scheduler
	if serveSchedule {
		sched, err = newScheduler(a, runner, exporter)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 3. Router + server
	deps := api.Deps{
		Features: handlers.NewFeatureHandler(store, a.cfg.API.MaxRows, a.log),
		Handoff:  handlers.NewHandoffHandler(store, taxonomy, a.cfg.API.MaxRows, a.log),
		Runs:     handlers.NewRunHandler(runner, a.log),
		Limiter:  api.NewLimiter(a.cfg.API.RateLimit, a.cfg.API.RateBurst, redis.NewRateLimiter(a.redis, "leadscore"), a.log),
		Metrics:  a.metrics,
		Gatherer: a.gathererIfEnabled(),
	}
	if a.db != nil {
		deps.DB = a.db
	}
	router := api.NewRouter(deps, a.log)

	server := api.New(a.cfg, a.log, router)

	out := cmd.OutOrStdout()
	printSuccess(out, fmt.Sprintf("Server running on http://localhost:%s", a.cfg.Port))
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// newScheduler registers the rebuild and retention jobs
func newScheduler(a *app, runner *pipeline.Runner, pruner jobs.Pruner) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	if err := sched.AddJob(jobs.NewRebuildJob(runner, a.cfg.ScheduleSpec, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewRetentionJob(pruner, a.cfg.OutputKeepRuns, a.log)); err != nil {
		return nil, err
	}
	return sched, nil
}
