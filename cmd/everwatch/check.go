package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/everwatch/internal/alert"
	"github.com/hazz-dev/everwatch/internal/checker"
	"github.com/hazz-dev/everwatch/internal/config"
	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/scheduler"
	"github.com/hazz-dev/everwatch/internal/storage"
)

var errCritical = errors.New("one or more endpoints are critical")

func checkCmd() *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every endpoint once and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, st, err := loadState(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()
			if record {
				return recordChecks(cmd.Context(), cmd.OutOrStdout(), cfg, st)
			}
			return runChecks(cmd.Context(), cmd.OutOrStdout(), st.reg.List(), cfg.ProbeTimeout)
		},
	}
	cmd.Flags().BoolVar(&record, "record", false, "append the results to history and save them")
	return cmd
}

type checkRow struct {
	ep  endpoint.Endpoint
	out checker.Outcome
}

// runChecks probes eps concurrently without touching their history.
func runChecks(ctx context.Context, out io.Writer, eps []endpoint.Endpoint, timeout time.Duration) error {
	rows := make([]checkRow, len(eps))
	var wg sync.WaitGroup
	for i, ep := range eps {
		wg.Add(1)
		go func(i int, ep endpoint.Endpoint) {
			defer wg.Done()
			rows[i] = checkRow{ep: ep, out: checker.New(ep, timeout).Check(ctx)}
		}(i, ep)
	}
	wg.Wait()
	return writeChecks(out, rows)
}

// recordChecks runs one manual cycle through the normal pipeline so results
// are appended, notified and saved like scheduled ones.
func recordChecks(ctx context.Context, out io.Writer, cfg *config.Config, st *state) error {
	logger := slog.Default()
	writer := storage.NewWriter(st.gw, st.reg, nil, logger)
	decider := alert.NewDecider(st.reg, alert.NewLogNotifier(logger), alert.Options{
		NotifyOnDown: cfg.NotifyOnDown,
		NotifyOnUp:   cfg.NotifyOnUp,
	}, nil, logger)
	sched := scheduler.New(st.reg, decider, writer, scheduler.Options{
		Interval:      cfg.Interval(),
		ProbeTimeout:  cfg.ProbeTimeout,
		MaxConcurrent: cfg.MaxConcurrentProbes,
	}, nil, logger)

	if err := sched.RunCycle(ctx, scheduler.TriggerManual); err != nil {
		return fmt.Errorf("recording checks: %w", err)
	}

	eps := st.reg.List()
	rows := make([]checkRow, 0, len(eps))
	for _, ep := range eps {
		if len(ep.History) == 0 {
			continue
		}
		rec := ep.History[len(ep.History)-1]
		rows = append(rows, checkRow{ep: ep, out: checker.Outcome{
			StatusCode:  rec.StatusCode,
			Description: rec.Description,
			Latency:     rec.Latency,
		}})
	}
	return writeChecks(out, rows)
}

func writeChecks(out io.Writer, rows []checkRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No endpoints configured. Add one with 'everwatch endpoint add <url>'.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL\tSTATUS\tLATENCY\tCRITICAL")
	anyCritical := false
	for _, r := range rows {
		latency := "-"
		if d, ok := r.out.LatencyDuration(); ok {
			latency = d.Round(time.Millisecond).String()
		}
		critical := endpoint.IsCritical(r.out.StatusCode, r.ep.Settings.ExpectedStatus)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ep.Name,
			r.ep.URL,
			r.out.Description,
			latency,
			yesNo(critical),
		)
		if critical {
			anyCritical = true
		}
	}
	w.Flush()

	if anyCritical {
		return errCritical
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
