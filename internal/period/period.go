// Package period compresses an endpoint's history into contiguous runs of
// the same status.
package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// ErrMalformedHistory means a history was not in chronological order.
var ErrMalformedHistory = errors.New("malformed history")

// Period is a maximal run of consecutive records sharing one description.
// End is the timestamp of the first record after the run and is null while
// the run is ongoing.
type Period struct {
	Status string    `json:"status"`
	Start  time.Time `json:"start"`
	End    null.Time `json:"end"`
}

// Ongoing reports whether the period is the current one.
func (p Period) Ongoing() bool {
	return !p.End.Valid
}

// Duration is the length of the period; an ongoing period runs until now.
func (p Period) Duration(now time.Time) time.Duration {
	end := now
	if p.End.Valid {
		end = p.End.Time
	}
	if end.Before(p.Start) {
		return 0
	}
	return end.Sub(p.Start)
}

// Aggregate groups records, oldest first, into periods in chronological
// order. It fails with ErrMalformedHistory if a timestamp goes backwards.
func Aggregate(records []endpoint.StatusRecord) ([]Period, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var periods []Period
	cur := Period{Status: describe(records[0]), Start: records[0].Timestamp}
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if rec.Timestamp.Before(records[i-1].Timestamp) {
			return nil, fmt.Errorf("record %d at %s precedes record %d at %s: %w",
				i, rec.Timestamp.Format(time.RFC3339Nano),
				i-1, records[i-1].Timestamp.Format(time.RFC3339Nano),
				ErrMalformedHistory)
		}
		status := describe(rec)
		if status == cur.Status {
			continue
		}
		cur.End = null.TimeFrom(rec.Timestamp)
		periods = append(periods, cur)
		cur = Period{Status: status, Start: rec.Timestamp}
	}
	return append(periods, cur), nil
}

// MostRecentFirst returns a reversed copy of periods.
func MostRecentFirst(periods []Period) []Period {
	out := make([]Period, len(periods))
	for i, p := range periods {
		out[len(periods)-1-i] = p
	}
	return out
}

// ForDisplay aggregates records and orders the result newest first.
func ForDisplay(records []endpoint.StatusRecord) ([]Period, error) {
	periods, err := Aggregate(records)
	if err != nil {
		return nil, err
	}
	return MostRecentFirst(periods), nil
}

func describe(r endpoint.StatusRecord) string {
	if r.Description == "" {
		return endpoint.UnknownStatus
	}
	return r.Description
}
