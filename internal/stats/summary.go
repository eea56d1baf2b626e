package stats

import (
	"time"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// EndpointUptime is one endpoint's time-weighted uptime.
type EndpointUptime struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Uptime  *float64 `json:"uptime_percent"`
	Records int      `json:"records"`
}

// Summary is the full statistics view over a set of endpoints. Pointer
// fields are nil when the value is absent.
type Summary struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	Counts           Counts           `json:"counts"`
	OverallUptime    *float64         `json:"overall_uptime_percent"`
	Latency          *LatencySummary  `json:"latency"`
	MostFrequentCode *int             `json:"most_frequent_status_code"`
	StatusCodes      map[int]int      `json:"status_codes"`
	Endpoints        []EndpointUptime `json:"endpoints"`
}

// Summarize computes every statistic at once.
func Summarize(eps []endpoint.Endpoint, now time.Time) (Summary, error) {
	s := Summary{
		GeneratedAt: now,
		Counts:      StatusCounts(eps),
		StatusCodes: StatusCodeCounts(eps),
		Endpoints:   make([]EndpointUptime, 0, len(eps)),
	}
	if pct, ok := OverallUptime(eps); ok {
		s.OverallUptime = &pct
	}
	if l, ok := Latency(eps); ok {
		s.Latency = &l
	}
	if code, ok := MostFrequentStatusCode(eps); ok {
		s.MostFrequentCode = &code
	}
	for _, ep := range eps {
		eu := EndpointUptime{
			ID:      ep.ID,
			Name:    ep.Name,
			Status:  ep.LastKnownStatus,
			Records: len(ep.History),
		}
		pct, ok, err := Uptime(ep, now)
		if err != nil {
			return Summary{}, err
		}
		if ok {
			eu.Uptime = &pct
		}
		s.Endpoints = append(s.Endpoints, eu)
	}
	return s, nil
}
