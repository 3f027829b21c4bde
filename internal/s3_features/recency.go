package s3_features

import "github.com/wonny/leadscore/internal/contracts"

// lastActive tracks, for every offset, the latest offset at or before it with
// a nonzero value (-1 when none).
type lastActive struct {
	perCounter [][]int
	any        []int
}

func newLastActive(series *contracts.DailySeries) *lastActive {
	n := len(series.Days)
	la := &lastActive{
		perCounter: make([][]int, len(series.Counters)),
		any:        make([]int, n),
	}
	for c := range series.Counters {
		la.perCounter[c] = make([]int, n)
	}

	prevAny := -1
	prev := make([]int, len(series.Counters))
	for c := range prev {
		prev[c] = -1
	}

	for i, rec := range series.Days {
		for c, v := range rec.Counters {
			if v != 0 {
				prev[c] = i
				prevAny = i
			}
			la.perCounter[c][i] = prev[c]
		}
		la.any[i] = prevAny
	}
	return la
}

// recency converts a last-active lookup into days since activity.
// No activity yet → sentinel; observed values are capped at the sentinel.
func recency(last []int, offset, sentinel int) int {
	if offset < 0 || len(last) == 0 {
		return sentinel
	}
	// 시리즈 종료 이후 날짜: 조회만 마지막 날로, 경과일은 스냅샷 기준
	lookup := offset
	if lookup > len(last)-1 {
		lookup = len(last) - 1
	}

	at := last[lookup]
	if at < 0 {
		return sentinel
	}

	days := offset - at
	if days > sentinel {
		return sentinel
	}
	return days
}
