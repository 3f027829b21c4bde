package pipelineconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
columns:
  counters: [actions_email, users_email]
  firmographics: [industry, employee_range]
  employee_range: employee_range
`

func TestLoad(t *testing.T) {
	path := "../../config/pipeline.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, data, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.Equal(t, "conversion_30d", cfg.Meta.PipelineID)
	assert.Equal(t, []int{7, 14, 30}, cfg.WindowsDays)
	assert.Equal(t, 30, cfg.LabelHorizonDays)
	assert.Len(t, cfg.Columns.Counters, 8)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2, "hash not deterministic")
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, CadenceWeekly, cfg.Cadence.Kind)
	wd, ok := cfg.Cadence.WeekdayValue()
	require.True(t, ok)
	assert.Equal(t, time.Sunday, wd)
	assert.Equal(t, []int{7, 14, 30}, cfg.WindowsDays)
	assert.Equal(t, 30, cfg.LabelHorizonDays)
	assert.Equal(t, 365, cfg.Recency.SentinelDays)
	assert.Equal(t, 7, cfg.Momentum.WindowDays, "momentum defaults to the smallest window")
	assert.Equal(t, DuplicateError, cfg.DuplicatePolicy)
}

func TestParseSortsWindows(t *testing.T) {
	cfg, err := Parse([]byte(`
windows_days: [30, 7, 14]
cadence: {kind: Weekly, weekday: " Monday "}
columns: {counters: [a]}
`))
	require.NoError(t, err)
	assert.Equal(t, []int{7, 14, 30}, cfg.WindowsDays)
	assert.Equal(t, "monday", cfg.Cadence.Weekday)
	assert.Equal(t, 7, cfg.Momentum.WindowDays)
}

func TestParseUnknownField(t *testing.T) {
	_, err := Parse([]byte(`
windows: [7]
columns: {counters: [a]}
`))
	assert.Error(t, err, "typos must fail at start")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"no counters", `columns: {counters: []}`, "columns.counters"},
		{"bad cadence", "cadence: {kind: monthly}\ncolumns: {counters: [a]}", "cadence.kind"},
		{"bad weekday", "cadence: {weekday: funday}\ncolumns: {counters: [a]}", "cadence.weekday"},
		{"zero window", "windows_days: [0, 7]\ncolumns: {counters: [a]}", "windows_days[0]"},
		{"duplicate window", "windows_days: [7, 7]\ncolumns: {counters: [a]}", "windows_days"},
		{"zero horizon", "label_horizon_days: 0\ncolumns: {counters: [a]}", "label_horizon_days"},
		{"zero sentinel", "recency: {sentinel_days: 0}\ncolumns: {counters: [a]}", "recency.sentinel_days"},
		{"momentum not a window", "momentum: {window_days: 10}\ncolumns: {counters: [a]}", "momentum.window_days"},
		{"negative smoothing", "momentum: {smoothing: -1}\ncolumns: {counters: [a]}", "momentum.smoothing"},
		{"duplicate counter", `columns: {counters: [a, a]}`, "columns.counters"},
		{"counter collides with id", `columns: {counters: [id]}`, "columns.counters"},
		{"employee range not firmographic", `columns: {counters: [a], employee_range: size}`, "columns.employee_range"},
		{"firmographic named label", `columns: {counters: [actions], firmographics: [label]}`, "columns.firmographics[0]"},
		{"firmographic named recency_days", `columns: {counters: [actions], firmographics: [industry, recency_days]}`, "columns.firmographics[1]"},
		{"firmographic named like a window sum", `columns: {counters: [actions], firmographics: [actions_7d_sum]}`, "columns.firmographics[0]"},
		{"firmographic named like momentum", `columns: {counters: [actions], firmographics: [actions_momentum]}`, "columns.firmographics[0]"},
		{"firmographic named snapshot_date", `columns: {counters: [actions], firmographics: [snapshot_date]}`, "columns.firmographics[0]"},
		{"firmographic shadows employee midpoint", `columns: {counters: [actions], firmographics: [size, employee_midpoint], employee_range: size}`, "columns.firmographics[1]"},
		{"bad policy", "duplicate_policy: latest\ncolumns: {counters: [a]}", "duplicate_policy"},
		{"negative parallelism", "parallelism: -2\ncolumns: {counters: [a]}", "parallelism"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestOutputColumnsUnique(t *testing.T) {
	// employee_midpoint is only generated when employee_range is set
	cfg, err := Parse([]byte(`
windows_days: [7]
columns:
  counters: [actions, users]
  firmographics: [industry, employee_midpoint, actions_14d_sum]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"industry", "employee_midpoint", "actions_14d_sum"}, cfg.Columns.Firmographics)
}

func TestHashChangesWithConfig(t *testing.T) {
	a, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(minimalYAML + "label_horizon_days: 14\n"))
	require.NoError(t, err)

	ha, _ := Hash(a)
	hb, _ := Hash(b)
	assert.NotEqual(t, ha, hb)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
