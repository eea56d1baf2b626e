package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/stats"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the last known status of every endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := loadState(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()
			return executeStatus(cmd.OutOrStdout(), st.reg.List(), time.Now())
		},
	}
}

func executeStatus(out io.Writer, eps []endpoint.Endpoint, now time.Time) error {
	if len(eps) == 0 {
		fmt.Fprintln(out, "No endpoints. Add one with 'everwatch endpoint add <url>'.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tUPTIME\tLATENCY\tLAST CHECKED")
	for _, ep := range eps {
		uptime := "-"
		pct, ok, err := stats.Uptime(ep, now)
		if err != nil {
			return err
		}
		if ok {
			uptime = fmt.Sprintf("%.2f%%", pct)
		}

		latency := "-"
		if d, ok := stats.LatestLatency(ep); ok {
			latency = d.Round(time.Millisecond).String()
		}

		checked := "never"
		if n := len(ep.History); n > 0 {
			checked = ep.History[n-1].Timestamp.Local().Format(timeLayout)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ep.Name,
			ep.LastKnownStatus,
			uptime,
			latency,
			checked,
		)
	}
	return w.Flush()
}
