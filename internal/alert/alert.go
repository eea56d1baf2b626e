// Package alert decides which probe outcomes are worth telling the user
// about and forwards those to a Notifier.
package alert

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hazz-dev/everwatch/internal/checker"
	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/metrics"
)

// Notification describes a significant status change.
type Notification struct {
	EndpointID     string    `json:"endpoint_id"`
	EndpointName   string    `json:"endpoint_name"`
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
	Critical       bool      `json:"critical"`
	TimeSensitive  bool      `json:"time_sensitive"`
	At             time.Time `json:"at"`
}

// Notifier delivers notifications. Notify must not block on delivery and
// must handle its own failures.
type Notifier interface {
	Notify(n Notification)
}

// Store is the part of the endpoint registry the decider reads and writes.
type Store interface {
	Get(id string) (endpoint.Endpoint, error)
	SetStatus(id, status string) error
	Append(id string, rec endpoint.StatusRecord) (endpoint.StatusRecord, error)
}

// Options gate which transitions reach the notifier.
type Options struct {
	NotifyOnDown bool
	NotifyOnUp   bool
}

// Decision is what Handle did with one outcome.
type Decision struct {
	Record         endpoint.StatusRecord
	PreviousStatus string
	Changed        bool
	Notified       bool
}

// Decider applies probe outcomes to the store and raises notifications on
// status transitions.
type Decider struct {
	store    Store
	notifier Notifier
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDecider creates a Decider. A nil notifier drops notifications; a nil
// logger uses the default logger.
func NewDecider(store Store, notifier Notifier, opts Options, m *metrics.Metrics, logger *slog.Logger) *Decider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decider{
		store:    store,
		notifier: notifier,
		opts:     opts,
		metrics:  m,
		logger:   logger,
	}
}

// Handle classifies an outcome, notifies on a status change, then updates the
// endpoint's last known status and appends the record. Callers must hold the
// endpoint's turn so that these steps are one unit.
func (d *Decider) Handle(id string, out checker.Outcome, at time.Time) (Decision, error) {
	ep, err := d.store.Get(id)
	if err != nil {
		return Decision{}, err
	}

	rec := endpoint.StatusRecord{
		Timestamp:   at,
		StatusCode:  out.StatusCode,
		Description: out.Description,
		Latency:     out.Latency,
		Critical:    endpoint.IsCritical(out.StatusCode, ep.Settings.ExpectedStatus),
	}
	if rec.Description == "" {
		rec.Description = endpoint.UnknownStatus
	}

	dec := Decision{
		PreviousStatus: ep.LastKnownStatus,
		Changed:        rec.Description != ep.LastKnownStatus,
	}
	if dec.Changed && d.shouldNotify(ep.LastKnownStatus, rec.Critical) {
		d.notify(ep, rec)
		dec.Notified = true
	}

	if err := d.store.SetStatus(id, rec.Description); err != nil {
		return dec, fmt.Errorf("updating status: %w", err)
	}
	stored, err := d.store.Append(id, rec)
	if err != nil {
		return dec, fmt.Errorf("appending record: %w", err)
	}
	dec.Record = stored

	latency, measured := stored.LatencyDuration()
	d.metrics.ObserveProbe(id, stored.Critical, latency, measured)
	d.logger.Debug("probe applied",
		"endpoint", ep.Name,
		"status", stored.Description,
		"critical", stored.Critical,
		"changed", dec.Changed,
	)
	return dec, nil
}

// shouldNotify applies the baseline rule and the down/up gates. The first
// outcome after the pending status only establishes a baseline.
func (d *Decider) shouldNotify(previous string, critical bool) bool {
	if previous == "" || previous == endpoint.PendingStatus {
		return false
	}
	if critical {
		return d.opts.NotifyOnDown
	}
	return d.opts.NotifyOnUp
}

func (d *Decider) notify(ep endpoint.Endpoint, rec endpoint.StatusRecord) {
	n := Notification{
		EndpointID:     ep.ID,
		EndpointName:   ep.Name,
		URL:            ep.URL,
		Title:          Title(ep.Settings.TimeSensitive),
		Body:           fmt.Sprintf("%s is now %s", ep.URL, rec.Description),
		Status:         rec.Description,
		PreviousStatus: ep.LastKnownStatus,
		Critical:       rec.Critical,
		TimeSensitive:  ep.Settings.TimeSensitive,
		At:             rec.Timestamp,
	}
	d.metrics.IncNotifications(n.TimeSensitive)
	if d.notifier == nil {
		return
	}
	d.notifier.Notify(n)
}

// Title is the notification title for the given urgency.
func Title(timeSensitive bool) string {
	if timeSensitive {
		return "Endpoint Status Changed (Time Sensitive)"
	}
	return "Endpoint Status Changed (Regular)"
}
