package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/scheduler"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Rebuild scheduler",
	Long: `Runs or inspects the periodic rebuild.

Subcommands:
  start   - run the scheduler until interrupted
  list    - show registered jobs and their next activation
  run     - run one job now

Example:
  go run ./cmd/leadscore schedule start
  go run ./cmd/leadscore schedule run feature_rebuild`,
}

var (
	scheduleStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Registers and runs:
- feature_rebuild: $SCHEDULE_SPEC (default Sunday 03:00 UTC)
- export_retention: daily 04:00 UTC, keeps $OUTPUT_KEEP_RUNS runs

Stop with Ctrl+C.`,
		RunE: runScheduleStart,
	}

	scheduleListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  runScheduleList,
	}

	scheduleRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runScheduleRun,
	}
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
}

// withScheduler bootstraps the app and hands a configured scheduler to fn
func withScheduler(cmd *cobra.Command, fn func(a *app, s *scheduler.Scheduler) error) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	if err := a.connect(cmd.Context(), false); err != nil {
		return err
	}
	defer a.close()

	exporter := a.exporter()
	writers := []contracts.FeatureWriter{exporter}
	if repo := a.featureRepository(); repo != nil {
		writers = append(writers, repo)
	}

	runner, err := a.newRunner(writers...)
	if err != nil {
		return err
	}

	sched, err := newScheduler(a, runner, exporter)
	if err != nil {
		return err
	}
	return fn(a, sched)
}

func runScheduleStart(cmd *cobra.Command, args []string) error {
	return withScheduler(cmd, func(a *app, s *scheduler.Scheduler) error {
		s.Start()

		out := cmd.OutOrStdout()
		printHeader(out, "leadscore scheduler")
		for _, name := range s.GetAllJobs() {
			next, _ := s.NextRun(name)
			printKeyValue(out, name, next.Format(time.RFC3339))
		}
		fmt.Fprintln(out, "\nPress Ctrl+C to stop")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		s.Stop()
		return nil
	})
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	return withScheduler(cmd, func(a *app, s *scheduler.Scheduler) error {
		stats := s.GetJobStats()

		rows := make([][]string, 0, len(stats))
		for _, name := range s.GetAllJobs() {
			rows = append(rows, []string{name, stats[name].Schedule})
		}
		printTable(cmd.OutOrStdout(), []string{"JOB", "SCHEDULE"}, []int{20, 16}, rows)
		return nil
	})
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	return withScheduler(cmd, func(a *app, s *scheduler.Scheduler) error {
		defer s.Stop()

		result, err := s.RunJob(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printHeader(out, "Job "+result.JobName)
		printKeyValue(out, "Attempts", fmt.Sprint(result.Attempts))
		printKeyValue(out, "Duration", result.Duration.Round(time.Millisecond).String())
		if !result.Success {
			return fmt.Errorf("job %s failed: %s", result.JobName, result.Error)
		}
		printSuccess(out, "Job completed")
		return nil
	})
}
