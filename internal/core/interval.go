package core

import (
	"strconv"
	"strings"
)

var intervalUnits = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
	'M': 2592000,
}

// IntervalSeconds maps an exchange interval code such as "15m", "4h" or
// "1d" to its length in seconds. "M" is treated as 30 days.
func IntervalSeconds(interval string) (int64, bool) {
	interval = strings.TrimSpace(interval)
	if len(interval) < 2 {
		return 0, false
	}
	unit, ok := intervalUnits[interval[len(interval)-1]]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * unit, true
}
