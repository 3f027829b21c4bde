package s3_features

import (
	"fmt"

	"github.com/wonny/leadscore/internal/contracts"
)

// counterWindows sums trailing windows directly over the dense series.
// Days are added in date order, so a window total never depends on values
// outside the window.
type counterWindows struct {
	days []contracts.DailyUsageRecord
}

func newCounterWindows(series *contracts.DailySeries) *counterWindows {
	return &counterWindows{days: series.Days}
}

// windowSum returns the total of counter c over the trailing window of
// `days` days ending at (and including) offset `end`. Offsets outside the
// series contribute zero.
func (w *counterWindows) windowSum(c, end, days int) float64 {
	lo := end - days + 1
	hi := end
	if lo < 0 {
		lo = 0
	}
	if hi > len(w.days)-1 {
		hi = len(w.days) - 1
	}

	total := 0.0
	for i := lo; i <= hi; i++ {
		total += w.days[i].Counters[c]
	}
	return total
}

// SumColumn names the rolling-sum column of counter over window days
func SumColumn(counter string, days int) string {
	return fmt.Sprintf("%s_%dd_sum", counter, days)
}

// MeanColumn names the rolling-mean column of counter over window days
func MeanColumn(counter string, days int) string {
	return fmt.Sprintf("%s_%dd_mean", counter, days)
}

// RecencyColumn names the per-counter recency column
func RecencyColumn(counter string) string {
	return counter + "_recency_days"
}

// MomentumColumn names the per-counter momentum column
func MomentumColumn(counter string) string {
	return counter + "_momentum"
}

// FeatureNames returns the feature schema for counters × windows.
// Window sum/mean blocks come first, then recency and momentum per counter.
func FeatureNames(counters []string, windows []int) contracts.FeatureSchema {
	names := make([]string, 0, len(counters)*(2*len(windows)+2))
	for _, c := range counters {
		for _, w := range windows {
			names = append(names, SumColumn(c, w), MeanColumn(c, w))
		}
	}
	for _, c := range counters {
		names = append(names, RecencyColumn(c), MomentumColumn(c))
	}
	return contracts.FeatureSchema{Names: names}
}
