// Package stats summarizes endpoint histories: uptime, latency and status
// code distribution. All functions are read-only.
package stats

import (
	"fmt"
	"time"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/period"
)

// Uptime is the share of time, in percent, an endpoint spent in its healthy
// status between its first record and now. ok is false without history.
func Uptime(ep endpoint.Endpoint, now time.Time) (pct float64, ok bool, err error) {
	if len(ep.History) == 0 {
		return 0, false, nil
	}
	periods, err := period.Aggregate(ep.History)
	if err != nil {
		return 0, false, fmt.Errorf("uptime for %q: %w", ep.ID, err)
	}

	total := now.Sub(ep.History[0].Timestamp)
	if total <= 0 {
		return 0, false, nil
	}

	healthy := ep.HealthyStatus()
	var up time.Duration
	for _, p := range periods {
		if p.Status == healthy {
			up += p.Duration(now)
		}
	}
	return float64(up) / float64(total) * 100, true, nil
}

// OverallUptime is the percentage of endpoints currently in their healthy
// status. ok is false when there are no endpoints.
func OverallUptime(eps []endpoint.Endpoint) (pct float64, ok bool) {
	if len(eps) == 0 {
		return 0, false
	}
	online := 0
	for _, ep := range eps {
		if ep.Healthy() {
			online++
		}
	}
	return float64(online) / float64(len(eps)) * 100, true
}

// LatencySummary aggregates every measured latency of a set of endpoints.
type LatencySummary struct {
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Samples int           `json:"samples"`
}

// Latency summarizes all present latencies. ok is false if none were measured.
func Latency(eps []endpoint.Endpoint) (LatencySummary, bool) {
	var s LatencySummary
	var sum time.Duration
	for _, ep := range eps {
		for _, rec := range ep.History {
			d, ok := rec.LatencyDuration()
			if !ok {
				continue
			}
			if s.Samples == 0 || d < s.Min {
				s.Min = d
			}
			if d > s.Max {
				s.Max = d
			}
			sum += d
			s.Samples++
		}
	}
	if s.Samples == 0 {
		return LatencySummary{}, false
	}
	s.Average = sum / time.Duration(s.Samples)
	return s, true
}

// LatestLatency returns the latency of an endpoint's newest record.
func LatestLatency(ep endpoint.Endpoint) (time.Duration, bool) {
	if len(ep.History) == 0 {
		return 0, false
	}
	return ep.History[len(ep.History)-1].LatencyDuration()
}

// MostFrequentStatusCode returns the status code seen most often. On a tie
// the code that reached the highest count first wins.
func MostFrequentStatusCode(eps []endpoint.Endpoint) (int, bool) {
	counts := make(map[int64]int)
	var best int64
	bestCount := 0
	for _, ep := range eps {
		for _, rec := range ep.History {
			if !rec.StatusCode.Valid {
				continue
			}
			code := rec.StatusCode.Int64
			counts[code]++
			if counts[code] > bestCount {
				best, bestCount = code, counts[code]
			}
		}
	}
	if bestCount == 0 {
		return 0, false
	}
	return int(best), true
}

// StatusCodeCounts returns how often each status code occurred.
func StatusCodeCounts(eps []endpoint.Endpoint) map[int]int {
	counts := make(map[int]int)
	for _, ep := range eps {
		for _, rec := range ep.History {
			if rec.StatusCode.Valid {
				counts[int(rec.StatusCode.Int64)]++
			}
		}
	}
	return counts
}

// Counts splits endpoints by their current status.
type Counts struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

// StatusCounts counts endpoints that are currently healthy or not.
func StatusCounts(eps []endpoint.Endpoint) Counts {
	c := Counts{Total: len(eps)}
	for _, ep := range eps {
		if ep.Healthy() {
			c.Online++
		}
	}
	c.Offline = c.Total - c.Online
	return c
}
