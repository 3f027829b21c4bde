package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/storage"
	"github.com/wonny/leadscore/pkg/config"
	"github.com/wonny/leadscore/pkg/database"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "PostgreSQL tools",
}

var (
	dbCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Test the connection and show pool statistics",
		Long: `데이터베이스 연결을 테스트하고 풀 통계를 표시합니다.

Example:
  go run ./cmd/leadscore db check`,
		RunE: runDBCheck,
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the feature_runs / feature_rows schema",
		RunE:  runDBMigrate,
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	printHeader(out, "Database connection test")
	printKeyValue(out, "Env", cfg.Env)
	printKeyValue(out, "Database URL", maskPassword(cfg.Database.URL))
	printKeyValue(out, "Schema", cfg.Database.Schema)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Fprintln(out, singleLine)
	printKeyValue(out, "Response time", status.ResponseTime.String())
	printKeyValue(out, "Max connections", fmt.Sprint(status.Stats.MaxConns))
	printKeyValue(out, "Total connections", fmt.Sprint(status.Stats.TotalConns))
	printKeyValue(out, "Idle connections", fmt.Sprint(status.Stats.IdleConns))
	printKeyValue(out, "Acquire count", fmt.Sprint(status.Stats.AcquireCount))
	fmt.Fprintln(out, doubleLine)

	printSuccess(out, "Database is healthy")
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(cmd.Context(), db.Pool, db.Schema); err != nil {
		return err
	}

	printSuccess(cmd.OutOrStdout(), "Schema "+db.Schema+" is up to date")
	return nil
}

// maskPassword hides the password of a connection URL for display
func maskPassword(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}
