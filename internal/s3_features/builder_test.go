package s3_features

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/logger"
)

func day(s string) time.Time {
	d, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newSeries builds a dense series; values[i] holds the counters of day start+i
func newSeries(id, start string, counters []string, values [][]float64) *contracts.DailySeries {
	s := &contracts.DailySeries{EntityID: id, Counters: counters}
	for i, v := range values {
		s.Days = append(s.Days, contracts.DailyUsageRecord{
			Date:     contracts.AddDays(day(start), i),
			Counters: v,
		})
	}
	return s
}

func testConfig() Config {
	return Config{
		Counters:       []string{"actions", "users"},
		WindowsDays:    []int{7, 14, 30},
		SentinelDays:   365,
		MomentumWindow: 7,
	}
}

func feature(t *testing.T, b *Builder, s contracts.Snapshot, name string) float64 {
	t.Helper()
	idx := b.Schema().Index(name)
	require.GreaterOrEqual(t, idx, 0, name)
	return s.Features[idx]
}

func TestFeatureNames(t *testing.T) {
	schema := FeatureNames([]string{"a", "b"}, []int{7, 14})
	assert.Equal(t, []string{
		"a_7d_sum", "a_7d_mean", "a_14d_sum", "a_14d_mean",
		"b_7d_sum", "b_7d_mean", "b_14d_sum", "b_14d_mean",
		"a_recency_days", "a_momentum", "b_recency_days", "b_momentum",
	}, schema.Names)
}

func TestBuilder_WindowBeforeFirstActivity(t *testing.T) {
	// first usage 2024-01-05; the 7-day window at 2024-01-07 only sees 3 days
	series := newSeries("G", "2024-01-05", []string{"actions", "users"}, [][]float64{
		{3, 1},
		{0, 0},
		{2, 1},
	})
	b := NewBuilder(testConfig(), logger.Nop())
	snapshots := []contracts.Snapshot{{EntityID: "G", Date: day("2024-01-07")}}

	require.NoError(t, b.Build(series, snapshots))
	s := snapshots[0]

	require.Len(t, s.Features, b.Schema().Len())
	assert.Equal(t, 5.0, feature(t, b, s, "actions_7d_sum"))
	assert.InDelta(t, 5.0/7.0, feature(t, b, s, "actions_7d_mean"), 1e-12)
	assert.Equal(t, 5.0, feature(t, b, s, "actions_30d_sum"))
	assert.InDelta(t, 5.0/30.0, feature(t, b, s, "actions_30d_mean"), 1e-12)
	assert.Equal(t, 2.0, feature(t, b, s, "users_14d_sum"))

	assert.Equal(t, 0, s.RecencyDays)
	assert.Equal(t, 0.0, feature(t, b, s, "actions_recency_days"))
	// previous 7-day window is entirely before the series
	assert.Equal(t, 5.0, feature(t, b, s, "actions_momentum"))
}

func TestBuilder_IncrementalUpdateLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := make([][]float64, 90)
	for i := range values {
		values[i] = []float64{float64(rng.Intn(20)), float64(rng.Intn(3))}
	}
	series := newSeries("E", "2024-01-01", []string{"actions", "users"}, values)
	windows := newCounterWindows(series)

	at := func(i int) float64 {
		if i < 0 || i >= len(values) {
			return 0
		}
		return values[i][0]
	}

	for _, w := range []int{7, 14, 30} {
		for d := 1; d < len(values); d++ {
			want := windows.windowSum(0, d-1, w) - at(d-w) + at(d)
			assert.Equal(t, want, windows.windowSum(0, d, w), "w=%d d=%d", w, d)
		}
	}
}

func TestBuilder_FractionalWindowsAfterLargeValue(t *testing.T) {
	// a huge early day must not bleed rounding error into later windows
	values := make([][]float64, 41)
	values[0] = []float64{1e15, 0}
	for i := 1; i < len(values); i++ {
		values[i] = []float64{0.1, 0.3}
	}
	series := newSeries("L", "2024-01-01", testConfig().Counters, values)
	b := NewBuilder(testConfig(), logger.Nop())

	snapshots := []contracts.Snapshot{{EntityID: "L", Date: contracts.AddDays(day("2024-01-01"), 40)}}
	require.NoError(t, b.Build(series, snapshots))
	s := snapshots[0]

	assert.InDelta(t, 0.7, feature(t, b, s, "actions_7d_sum"), 1e-12)
	assert.InDelta(t, 0.1, feature(t, b, s, "actions_7d_mean"), 1e-12)
	assert.InDelta(t, 1.4, feature(t, b, s, "actions_14d_sum"), 1e-12)
	assert.InDelta(t, 9.0, feature(t, b, s, "users_30d_sum"), 1e-12)
	assert.InDelta(t, 0.0, feature(t, b, s, "actions_momentum"), 1e-12)
}

func TestBuilder_RecencySentinel(t *testing.T) {
	cfg := testConfig()
	b := NewBuilder(cfg, logger.Nop())

	t.Run("no nonzero day yet", func(t *testing.T) {
		series := newSeries("Q", "2024-01-01", cfg.Counters, [][]float64{{0, 0}, {0, 0}, {0, 0}, {4, 0}})
		snapshots := []contracts.Snapshot{{EntityID: "Q", Date: day("2024-01-03")}}
		require.NoError(t, b.Build(series, snapshots))

		assert.Equal(t, 365, snapshots[0].RecencyDays)
		assert.Equal(t, 365.0, feature(t, b, snapshots[0], "actions_recency_days"))
	})

	t.Run("observed recency capped at sentinel", func(t *testing.T) {
		values := make([][]float64, 400)
		for i := range values {
			values[i] = []float64{0, 0}
		}
		values[0] = []float64{1, 1}
		values[380] = []float64{0, 2}
		series := newSeries("R", "2023-01-01", cfg.Counters, values)

		snapshots := []contracts.Snapshot{
			{EntityID: "R", Date: contracts.AddDays(day("2023-01-01"), 370)},
			{EntityID: "R", Date: contracts.AddDays(day("2023-01-01"), 390)},
		}
		require.NoError(t, b.Build(series, snapshots))

		assert.Equal(t, 365, snapshots[0].RecencyDays)
		assert.Equal(t, 10, snapshots[1].RecencyDays)
		assert.Equal(t, 365.0, feature(t, b, snapshots[1], "actions_recency_days"))
		assert.Equal(t, 10.0, feature(t, b, snapshots[1], "users_recency_days"))
	})

	t.Run("snapshot after series end counts from the snapshot", func(t *testing.T) {
		series := newSeries("T", "2024-01-01", cfg.Counters, [][]float64{{1, 0}, {0, 1}})
		snapshots := []contracts.Snapshot{{EntityID: "T", Date: day("2024-01-07")}}
		require.NoError(t, b.Build(series, snapshots))

		assert.Equal(t, 5, snapshots[0].RecencyDays)
		assert.Equal(t, 6.0, feature(t, b, snapshots[0], "actions_recency_days"))
		assert.Equal(t, 5.0, feature(t, b, snapshots[0], "users_recency_days"))
		// window features treat the same trailing days as zeros
		assert.Equal(t, 1.0, feature(t, b, snapshots[0], "actions_7d_sum"))
	})

	t.Run("days since last activity", func(t *testing.T) {
		series := newSeries("S", "2024-01-01", cfg.Counters, [][]float64{{1, 0}, {0, 1}, {0, 0}, {0, 0}})
		snapshots := []contracts.Snapshot{{EntityID: "S", Date: day("2024-01-04")}}
		require.NoError(t, b.Build(series, snapshots))

		assert.Equal(t, 2, snapshots[0].RecencyDays)
		assert.Equal(t, 3.0, feature(t, b, snapshots[0], "actions_recency_days"))
		assert.Equal(t, 2.0, feature(t, b, snapshots[0], "users_recency_days"))
	})
}

func TestBuilder_Momentum(t *testing.T) {
	cfg := testConfig()
	b := NewBuilder(cfg, logger.Nop())

	values := make([][]float64, 21)
	for i := range values {
		values[i] = []float64{0, 0}
	}
	// days 7..13 → actions 1/day, days 14..20 → actions 2/day
	for i := 7; i < 14; i++ {
		values[i][0] = 1
	}
	for i := 14; i < 21; i++ {
		values[i][0] = 2
	}
	series := newSeries("M", "2024-01-01", cfg.Counters, values)

	snapshots := []contracts.Snapshot{
		{EntityID: "M", Date: contracts.AddDays(day("2024-01-01"), 20)},
		{EntityID: "M", Date: contracts.AddDays(day("2024-01-01"), 13)},
	}
	require.NoError(t, b.Build(series, snapshots))

	assert.InDelta(t, (14.0-7.0)/7.0, feature(t, b, snapshots[0], "actions_momentum"), 1e-12)
	assert.Equal(t, 7.0, feature(t, b, snapshots[1], "actions_momentum"), "zero previous window → signed delta")
	assert.Equal(t, 0.0, feature(t, b, snapshots[0], "users_momentum"), "both windows empty → neutral 0")

	for _, s := range snapshots {
		for _, v := range s.Features {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}

func TestMomentumCalculator(t *testing.T) {
	tests := []struct {
		name      string
		smoothing float64
		cur, prev float64
		want      float64
	}{
		{"both zero", 0, 0, 0, 0},
		{"both zero smoothed", 1, 0, 0, 0},
		{"ratio", 0, 15, 10, 0.5},
		{"decline", 0, 5, 10, -0.5},
		{"zero prev delta", 0, 4, 0, 4},
		{"add-one smoothing", 1, 4, 0, 4},
		{"smoothed ratio", 1, 21, 9, 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMomentumCalculator(7, tt.smoothing)
			assert.InDelta(t, tt.want, m.Calculate(tt.cur, tt.prev), 1e-12)
		})
	}
}

func TestBuilder_Errors(t *testing.T) {
	b := NewBuilder(testConfig(), logger.Nop())

	assert.NoError(t, b.Build(nil, nil))

	err := b.Build(&contracts.DailySeries{EntityID: "Z"}, []contracts.Snapshot{{EntityID: "Z"}})
	assert.ErrorIs(t, err, contracts.ErrEmptyActivityRange)

	series := newSeries("A", "2024-01-01", []string{"actions", "users"}, [][]float64{{1, 1}})
	err = b.Build(series, []contracts.Snapshot{{EntityID: "B", Date: day("2024-01-01")}})
	assert.Error(t, err)

	short := newSeries("A", "2024-01-01", []string{"actions"}, [][]float64{{1}})
	err = b.Build(short, []contracts.Snapshot{{EntityID: "A", Date: day("2024-01-01")}})
	assert.Error(t, err)
}
