package contracts

import "time"

// RawUsage is one raw usage-log row before aggregation
type RawUsage struct {
	EntityID  string
	Timestamp time.Time
	Counters  map[string]float64
}

// DailyUsageRecord is one entity, one calendar day.
// Counters follow the configured counter order.
type DailyUsageRecord struct {
	Date     time.Time `json:"date"`
	Counters []float64 `json:"counters"`
}

// Active reports whether any counter is nonzero
func (r DailyUsageRecord) Active() bool {
	for _, v := range r.Counters {
		if v != 0 {
			return true
		}
	}
	return false
}

// DailySeries is the dense per-day series of a single entity.
// Days[i].Date == Start + i days; there are no gaps.
type DailySeries struct {
	EntityID string             `json:"entity_id"`
	Counters []string           `json:"counters"`
	Days     []DailyUsageRecord `json:"days"`
}

// Empty reports whether the series has no usable day
func (s *DailySeries) Empty() bool {
	return len(s.Days) == 0
}

// Start returns the first activity day
func (s *DailySeries) Start() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Days[0].Date
}

// End returns the last day of the series
func (s *DailySeries) End() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Days[len(s.Days)-1].Date
}

// IndexOf returns the offset of day within the series.
// The result may be negative or >= len(Days) when day is outside the range.
func (s *DailySeries) IndexOf(day time.Time) int {
	return DaysBetween(s.Start(), day)
}
