package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/period"
)

const timeLayout = "2006-01-02 15:04:05"

func periodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "periods <id>",
		Short: "Print an endpoint's status periods, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := loadState(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			ep, err := st.reg.Get(args[0])
			if err != nil {
				return err
			}
			return executePeriods(cmd.OutOrStdout(), ep, time.Now())
		},
	}
}

func executePeriods(out io.Writer, ep endpoint.Endpoint, now time.Time) error {
	periods, err := period.ForDisplay(ep.History)
	if err != nil {
		return fmt.Errorf("periods for %q: %w", ep.ID, err)
	}
	if len(periods) == 0 {
		fmt.Fprintf(out, "No history for %s yet.\n", ep.Name)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tSTART\tEND\tDURATION")
	for _, p := range periods {
		end := "ongoing"
		if !p.Ongoing() {
			end = p.End.Time.Local().Format(timeLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.Status,
			p.Start.Local().Format(timeLayout),
			end,
			p.Duration(now).Round(time.Second),
		)
	}
	return w.Flush()
}
