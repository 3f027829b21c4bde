package s5_assembly

import (
	"strconv"
	"strings"
)

// ParseEmployeeRange converts an employee band to its numeric midpoint:
// "51-200" → 125.5, "1000+" → 1000, "2 to 5" → 3.5, "1,000" → 1000.
// Returns false when the value cannot be parsed; it is never imputed.
func ParseEmployeeRange(val string) (float64, bool) {
	s := strings.TrimSpace(val)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")

	// "1000+"
	if strings.HasSuffix(s, "+") {
		return parseNumber(strings.TrimSuffix(s, "+"))
	}

	// "51-200", "51 - 200"
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		if mid, ok := midpoint(lo, hi); ok {
			return mid, true
		}
	}

	// "2 to 5"
	if i := strings.Index(strings.ToLower(s), " to "); i >= 0 {
		if mid, ok := midpoint(s[:i], s[i+len(" to "):]); ok {
			return mid, true
		}
	}

	return parseNumber(s)
}

func midpoint(lo, hi string) (float64, bool) {
	l, ok := parseNumber(lo)
	if !ok {
		return 0, false
	}
	h, ok := parseNumber(hi)
	if !ok {
		return 0, false
	}
	return (l + h) / 2.0, true
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
