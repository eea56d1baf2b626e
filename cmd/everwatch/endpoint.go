package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

func endpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "endpoint",
		Aliases: []string{"endpoints"},
		Short:   "Manage monitored endpoints",
	}
	cmd.AddCommand(endpointAddCmd())
	cmd.AddCommand(endpointListCmd())
	cmd.AddCommand(endpointRemoveCmd())
	return cmd
}

type addOptions struct {
	name           string
	timeSensitive  bool
	skipTLS        bool
	expectedStatus int
}

// defaultAddOptions matches endpoint.DefaultSettings.
func defaultAddOptions() addOptions {
	d := endpoint.DefaultSettings()
	return addOptions{
		timeSensitive:  d.TimeSensitive,
		skipTLS:        d.SkipTLSVerification,
		expectedStatus: int(d.ExpectedStatus.Int64),
	}
}

// endpointEditor applies edits either to the local store or through a
// running server.
type endpointEditor interface {
	add(ctx context.Context, rawURL string, opts addOptions) (endpoint.Endpoint, error)
	remove(ctx context.Context, id string) error
}

// withEditor runs fn against the running server if one answers on the
// configured address, and against the store otherwise.
func withEditor(ctx context.Context, out io.Writer, fn func(endpointEditor) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if r := dialRemote(ctx, cfg.Server.Address); r != nil {
		fmt.Fprintf(out, "using running server at %s\n", r.base)
		return fn(r)
	}
	st, err := openLocal(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	return fn(st)
}

func endpointAddCmd() *cobra.Command {
	opts := defaultAddOptions()
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEditor(cmd.Context(), cmd.OutOrStdout(), func(ed endpointEditor) error {
				return executeAdd(cmd.Context(), cmd.OutOrStdout(), ed, args[0], opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.name, "name", "", "display name (defaults to the url)")
	cmd.Flags().BoolVar(&opts.timeSensitive, "time-sensitive", opts.timeSensitive, "deliver notifications as time sensitive (--time-sensitive=false for regular)")
	cmd.Flags().BoolVar(&opts.skipTLS, "skip-tls-verification", opts.skipTLS, "accept invalid TLS certificates")
	cmd.Flags().IntVar(&opts.expectedStatus, "expected-status", opts.expectedStatus, "healthy status code, 0 for any 1xx-3xx")
	return cmd
}

func executeAdd(ctx context.Context, out io.Writer, ed endpointEditor, rawURL string, opts addOptions) error {
	ep, err := ed.add(ctx, rawURL, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added %s (%s)\n", ep.ID, ep.URL)
	if ep.Settings.SkipTLSVerification {
		fmt.Fprintln(out, "warning: TLS certificate verification is disabled for this endpoint")
	}
	return nil
}

func endpointListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := loadState(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()
			return executeList(cmd.OutOrStdout(), st.reg.List())
		},
	}
}

func executeList(out io.Writer, eps []endpoint.Endpoint) error {
	if len(eps) == 0 {
		fmt.Fprintln(out, "No endpoints. Add one with 'everwatch endpoint add <url>'.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tURL\tEXPECTED\tSTATUS")
	for _, ep := range eps {
		expected := "any"
		if ep.Settings.ExpectedStatus.Valid {
			expected = fmt.Sprint(ep.Settings.ExpectedStatus.Int64)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ep.ID, ep.Name, ep.URL, expected, ep.LastKnownStatus)
	}
	return w.Flush()
}

func endpointRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove an endpoint and its history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEditor(cmd.Context(), cmd.OutOrStdout(), func(ed endpointEditor) error {
				return executeRemove(cmd.Context(), cmd.OutOrStdout(), ed, args[0])
			})
		},
	}
}

func executeRemove(ctx context.Context, out io.Writer, ed endpointEditor, id string) error {
	if err := ed.remove(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %s\n", id)
	return nil
}
