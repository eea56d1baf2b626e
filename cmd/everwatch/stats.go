package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/stats"
)

func statsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print uptime, latency and status code statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := loadState(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()
			return executeStats(cmd.OutOrStdout(), st.reg.List(), time.Now(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func executeStats(out io.Writer, eps []endpoint.Endpoint, now time.Time, asJSON bool) error {
	s, err := stats.Summarize(eps, now)
	if err != nil {
		return fmt.Errorf("computing statistics: %w", err)
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Endpoints:\t%d (%d online, %d offline)\n", s.Counts.Total, s.Counts.Online, s.Counts.Offline)
	fmt.Fprintf(w, "Overall uptime:\t%s\n", percent(s.OverallUptime))
	if s.Latency != nil {
		fmt.Fprintf(w, "Latency:\tavg %s, min %s, max %s (%d samples)\n",
			s.Latency.Average.Round(time.Millisecond),
			s.Latency.Min.Round(time.Millisecond),
			s.Latency.Max.Round(time.Millisecond),
			s.Latency.Samples,
		)
	} else {
		fmt.Fprintln(w, "Latency:\t-")
	}
	if s.MostFrequentCode != nil {
		fmt.Fprintf(w, "Most frequent code:\t%d\n", *s.MostFrequentCode)
	} else {
		fmt.Fprintln(w, "Most frequent code:\t-")
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(s.StatusCodes) > 0 {
		codes := make([]int, 0, len(s.StatusCodes))
		for c := range s.StatusCodes {
			codes = append(codes, c)
		}
		sort.Ints(codes)

		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tCOUNT")
		for _, c := range codes {
			fmt.Fprintf(w, "%d\t%d\n", c, s.StatusCodes[c])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(s.Endpoints) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATUS\tUPTIME\tRECORDS")
		for _, e := range s.Endpoints {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.Name, e.Status, percent(e.Uptime), e.Records)
		}
		return w.Flush()
	}
	return nil
}

func percent(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *p)
}
