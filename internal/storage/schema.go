package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL creates the run and feature tables inside schema %[1]s
const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.feature_runs (
	run_id       UUID PRIMARY KEY,
	config_hash  TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	row_count    INTEGER NOT NULL,
	positives    INTEGER NOT NULL,
	report       JSONB NOT NULL,
	table_meta   JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS feature_runs_finished_idx
	ON %[1]s.feature_runs (finished_at DESC);

CREATE TABLE IF NOT EXISTS %[1]s.feature_rows (
	run_id            UUID NOT NULL REFERENCES %[1]s.feature_runs (run_id) ON DELETE CASCADE,
	entity_id         TEXT NOT NULL,
	snapshot_date     DATE NOT NULL,
	firmographics     TEXT[] NOT NULL,
	employee_midpoint DOUBLE PRECISION,
	features          DOUBLE PRECISION[] NOT NULL,
	recency_days      INTEGER NOT NULL,
	label             SMALLINT NOT NULL CHECK (label IN (0, 1)),
	PRIMARY KEY (run_id, entity_id, snapshot_date)
);
`

// Migrate creates the storage schema if it does not exist
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf(schemaDDL, pgx.Identifier{schema}.Sanitize())); err != nil {
		return fmt.Errorf("migrate schema %s: %w", schema, err)
	}
	return nil
}
