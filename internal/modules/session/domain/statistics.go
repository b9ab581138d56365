package domain

import (
	"sort"
	"time"
)

// Total is one grouped line of a statistics report.
type Total struct {
	Key      string
	Duration time.Duration
	Count    int
}

func (s Session) ApplicationTotals(now time.Time) map[string]time.Duration {
	return s.groupBy(now, func(a Activity) string { return a.ApplicationName })
}

func (s Session) FileTotals(now time.Time) map[string]time.Duration {
	return s.groupBy(now, func(a Activity) string { return a.FilePath })
}

// TotalActiveTime sums every activity. Activities of one session never overlap
// because at most one of them runs at a time.
func (s Session) TotalActiveTime(now time.Time) time.Duration {
	var total time.Duration
	for _, a := range s.Activities {
		total += a.Duration(now)
	}
	return total
}

func (s Session) groupBy(now time.Time, key func(Activity) string) map[string]time.Duration {
	out := map[string]time.Duration{}
	for _, a := range s.Activities {
		out[key(a)] += a.Duration(now)
	}
	return out
}

// SortedTotals orders a grouped mapping by duration, longest first, then by key.
func SortedTotals(totals map[string]time.Duration) []Total {
	out := make([]Total, 0, len(totals))
	for k, d := range totals {
		out = append(out, Total{Key: k, Duration: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Duration != out[j].Duration {
			return out[i].Duration > out[j].Duration
		}
		return out[i].Key < out[j].Key
	})
	return out
}
