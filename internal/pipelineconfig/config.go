package pipelineconfig

import (
	"sort"
	"strings"
	"time"
)

// Config is the full pipeline configuration
// ⭐ SSOT: 파이프라인 설정은 이 구조체에서만 정의
type Config struct {
	Meta             Meta     `yaml:"meta" json:"meta"`
	Cadence          Cadence  `yaml:"cadence" json:"cadence"`
	WindowsDays      []int    `yaml:"windows_days" json:"windows_days"`
	LabelHorizonDays int      `yaml:"label_horizon_days" json:"label_horizon_days"`
	Recency          Recency  `yaml:"recency" json:"recency"`
	Momentum         Momentum `yaml:"momentum" json:"momentum"`
	Columns          Columns  `yaml:"columns" json:"columns"`

	// DuplicatePolicy decides what happens when an id is in both sources:
	// "error" aborts, "prefer_paying" keeps the paying row
	DuplicatePolicy string `yaml:"duplicate_policy" json:"duplicate_policy"`

	// Parallelism bounds per-entity workers (0 = GOMAXPROCS)
	Parallelism int `yaml:"parallelism" json:"parallelism"`
}

// Meta 메타 정보
type Meta struct {
	PipelineID string `yaml:"pipeline_id" json:"pipeline_id"`
	Version    string `yaml:"version" json:"version"`
}

// Cadence S2: 스냅샷 주기
type Cadence struct {
	Kind    string `yaml:"kind" json:"kind"`       // weekly | daily
	Weekday string `yaml:"weekday" json:"weekday"` // weekly only
}

// Recency S3: 마지막 활동 이후 경과일
type Recency struct {
	// SentinelDays is emitted when no activity was observed yet.
	// Observed recency is capped at this value.
	SentinelDays int `yaml:"sentinel_days" json:"sentinel_days"`
}

// Momentum S3: 인접 윈도우 비교
type Momentum struct {
	// WindowDays is the length of both compared windows (0 = smallest window)
	WindowDays int `yaml:"window_days" json:"window_days"`
	// Smoothing is added to the denominator: (cur - prev) / (prev + smoothing)
	Smoothing float64 `yaml:"smoothing" json:"smoothing"`
}

// Columns maps source table columns
type Columns struct {
	EntityID       string   `yaml:"entity_id" json:"entity_id"`
	ConversionDate string   `yaml:"conversion_date" json:"conversion_date"`
	Revenue        string   `yaml:"revenue" json:"revenue"`
	EventTime      string   `yaml:"event_time" json:"event_time"`
	Firmographics  []string `yaml:"firmographics" json:"firmographics"`
	Counters       []string `yaml:"counters" json:"counters"`

	// EmployeeRange is an optional firmographic parsed to a numeric midpoint
	EmployeeRange string `yaml:"employee_range" json:"employee_range"`
}

const (
	CadenceWeekly = "weekly"
	CadenceDaily  = "daily"

	DuplicateError        = "error"
	DuplicatePreferPaying = "prefer_paying"
)

// Default returns the configuration used when a field is not set
func Default() Config {
	return Config{
		Meta: Meta{PipelineID: "conversion_30d", Version: "1"},
		Cadence: Cadence{
			Kind:    CadenceWeekly,
			Weekday: "sunday",
		},
		WindowsDays:      []int{7, 14, 30},
		LabelHorizonDays: 30,
		Recency:          Recency{SentinelDays: 365},
		Momentum:         Momentum{WindowDays: 0, Smoothing: 0},
		Columns: Columns{
			EntityID:       "id",
			ConversionDate: "close_date",
			Revenue:        "mrr",
			EventTime:      "timestamp",
		},
		DuplicatePolicy: DuplicateError,
	}
}

// normalize fills derived defaults. Called by Load before Validate.
func (c *Config) normalize() {
	c.Cadence.Kind = strings.ToLower(strings.TrimSpace(c.Cadence.Kind))
	c.Cadence.Weekday = strings.ToLower(strings.TrimSpace(c.Cadence.Weekday))

	windows := append([]int(nil), c.WindowsDays...)
	sort.Ints(windows)
	c.WindowsDays = windows

	if c.Momentum.WindowDays == 0 && len(c.WindowsDays) > 0 {
		c.Momentum.WindowDays = c.WindowsDays[0]
	}
}

// WeekdayValue returns the cadence weekday
func (c Cadence) WeekdayValue() (time.Weekday, bool) {
	wd, ok := weekdays[c.Weekday]
	return wd, ok
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}
