package cli

import (
	"fmt"
	"text/tabwriter"

	"realtyhub/internal/app"

	"github.com/spf13/cobra"
)

func newReplayCmd(opts *options) *cobra.Command {
	var showFailed bool

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay due side effects from the failure journal",
		Long: `Run one pass of the side-effect replay worker.

With --failed, list the effects that exhausted their retries instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, opts.logger(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			if showFailed {
				return listFailed(cmd, opts, a, cfg.Worker.BatchSize)
			}

			n, err := a.Worker.RunOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			if opts.isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]int{"processed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d side effect(s)\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFailed, "failed", false, "list dead side effects instead of replaying")
	return cmd
}

func listFailed(cmd *cobra.Command, opts *options, a *app.App, limit int) error {
	failed, err := a.DB.FailedSideEffects(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if opts.isJSON() {
		return printJSON(cmd.OutOrStdout(), failed)
	}
	if len(failed) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No failed side effects")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBOOKING\tEFFECT\tATTEMPTS\tLAST ERROR")
	for _, f := range failed {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", f.ID, f.BookingID, f.Effect, f.Attempts, f.LastError)
	}
	return tw.Flush()
}
