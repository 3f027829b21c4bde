package pipelineconfig

import (
	"fmt"
	"math"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/s3_features"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints.
// Validation runs once at pipeline start; stages trust their config.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.PipelineID == "" {
		return ValidationError{"meta.pipeline_id", "required"}
	}

	// === Cadence ===
	switch cfg.Cadence.Kind {
	case CadenceWeekly:
		if _, ok := cfg.Cadence.WeekdayValue(); !ok {
			return ValidationError{"cadence.weekday", fmt.Sprintf("unknown weekday %q", cfg.Cadence.Weekday)}
		}
	case CadenceDaily:
	default:
		return ValidationError{"cadence.kind", "must be weekly or daily"}
	}

	// === Windows ===
	if len(cfg.WindowsDays) == 0 {
		return ValidationError{"windows_days", "must not be empty"}
	}
	seen := make(map[int]bool, len(cfg.WindowsDays))
	for i, w := range cfg.WindowsDays {
		if w <= 0 {
			return ValidationError{fmt.Sprintf("windows_days[%d]", i), "must be > 0"}
		}
		if seen[w] {
			return ValidationError{"windows_days", fmt.Sprintf("duplicate window %d", w)}
		}
		seen[w] = true
	}

	// === Label ===
	if cfg.LabelHorizonDays <= 0 {
		return ValidationError{"label_horizon_days", "must be > 0"}
	}

	// === Recency ===
	if cfg.Recency.SentinelDays <= 0 {
		return ValidationError{"recency.sentinel_days", "must be > 0"}
	}

	// === Momentum ===
	if !seen[cfg.Momentum.WindowDays] {
		return ValidationError{"momentum.window_days", fmt.Sprintf("must be one of windows_days, got %d", cfg.Momentum.WindowDays)}
	}
	if cfg.Momentum.Smoothing < 0 || math.IsNaN(cfg.Momentum.Smoothing) || math.IsInf(cfg.Momentum.Smoothing, 0) {
		return ValidationError{"momentum.smoothing", "must be a finite value >= 0"}
	}

	// === Columns ===
	if err := validateColumns(cfg.Columns); err != nil {
		return err
	}
	if err := validateOutputColumns(cfg.Columns, cfg.WindowsDays); err != nil {
		return err
	}

	// === Policy ===
	if cfg.DuplicatePolicy != DuplicateError && cfg.DuplicatePolicy != DuplicatePreferPaying {
		return ValidationError{"duplicate_policy", "must be error or prefer_paying"}
	}
	if cfg.Parallelism < 0 {
		return ValidationError{"parallelism", "must be >= 0"}
	}

	return nil
}

func validateColumns(c Columns) error {
	if c.EntityID == "" {
		return ValidationError{"columns.entity_id", "required"}
	}
	if c.ConversionDate == "" {
		return ValidationError{"columns.conversion_date", "required"}
	}
	if c.EventTime == "" {
		return ValidationError{"columns.event_time", "required"}
	}
	if len(c.Counters) == 0 {
		return ValidationError{"columns.counters", "must not be empty"}
	}

	reserved := map[string]string{
		c.EntityID:       "columns.entity_id",
		c.ConversionDate: "columns.conversion_date",
		c.EventTime:      "columns.event_time",
	}
	if c.Revenue != "" {
		reserved[c.Revenue] = "columns.revenue"
	}

	if err := validateUnique("columns.counters", c.Counters, reserved); err != nil {
		return err
	}
	if err := validateUnique("columns.firmographics", c.Firmographics, reserved); err != nil {
		return err
	}

	if c.EmployeeRange != "" && !contains(c.Firmographics, c.EmployeeRange) {
		return ValidationError{"columns.employee_range", fmt.Sprintf("%q must be listed in columns.firmographics", c.EmployeeRange)}
	}
	return nil
}

// validateOutputColumns rejects firmographics that would share a header
// name with a fixed or generated column of the feature table.
func validateOutputColumns(c Columns, windows []int) error {
	generated := map[string]bool{
		contracts.ColumnEntityID:     true,
		contracts.ColumnSnapshotDate: true,
		contracts.ColumnRecencyDays:  true,
		contracts.ColumnLabel:        true,
	}
	if c.EmployeeRange != "" {
		generated[contracts.ColumnEmployeeMidpoint] = true
	}
	for _, name := range s3_features.FeatureNames(c.Counters, windows).Names {
		if generated[name] {
			return ValidationError{"columns.counters", fmt.Sprintf("generated column %q is produced twice", name)}
		}
		generated[name] = true
	}

	for i, name := range c.Firmographics {
		if generated[name] {
			return ValidationError{fmt.Sprintf("columns.firmographics[%d]", i), fmt.Sprintf("%q collides with a generated output column", name)}
		}
	}
	return nil
}

// === Helper Functions ===

func validateUnique(field string, names []string, reserved map[string]string) error {
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if name == "" {
			return ValidationError{fmt.Sprintf("%s[%d]", field, i), "must not be empty"}
		}
		if seen[name] {
			return ValidationError{field, fmt.Sprintf("duplicate column %q", name)}
		}
		if other, ok := reserved[name]; ok {
			return ValidationError{field, fmt.Sprintf("column %q collides with %s", name, other)}
		}
		seen[name] = true
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
