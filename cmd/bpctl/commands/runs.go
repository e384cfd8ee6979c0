package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kode4food/buildprops/pkg/api"
)

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create, list and complete runs",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create JOB",
			Short: "Start a new run of a job and print its ID",
			Args:  exactArgs(1, "JOB"),
			RunE: func(cmd *cobra.Command, args []string) error {
				run, err := opts.client().CreateRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), run.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list JOB",
			Short: "List the runs of a job",
			Args:  exactArgs(1, "JOB"),
			RunE: func(cmd *cobra.Command, args []string) error {
				runs, err := opts.client().ListRuns(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "NUMBER\tID\tSTATUS")
				for _, r := range runs {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n",
						r.Number, r.ID, r.Status)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "complete RUN",
			Short: "Finalize a run",
			Args:  exactArgs(1, "RUN"),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := opts.client().Run(api.RunID(args[0]))
				run, err := c.Complete(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = success.Fprintf(cmd.OutOrStdout(),
					"Run %s #%d completed\n", run.Job, run.Number)
				return nil
			},
		},
	)
	return cmd
}
