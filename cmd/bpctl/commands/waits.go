package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kode4food/buildprops/pkg/api"
)

const pollBlock = 20 * time.Second

var ErrWaitFailed = errors.New("wait failed")

func newWaitCommand(opts *options) *cobra.Command {
	var timeout int64
	var unit string

	cmd := &cobra.Command{
		Use:   "wait RUN KEY...",
		Short: "Block until every key has a value on the run",
		Long: `Block until every key has a value on the run. --timeout is
counted in --unit (NANOSECONDS through DAYS, default MINUTES). A zero
timeout waits forever. Interrupting bpctl cancels the wait.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(
				cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()

			c := opts.client()
			st, err := c.Run(api.RunID(args[0])).StartWait(ctx,
				api.WaitRequest{Keys: args[1:], Timeout: timeout, Unit: unit},
			)
			if err != nil {
				return err
			}
			if id := st.ID; !st.IsDone() {
				st, err = c.AwaitWait(ctx, id, pollBlock)
				if errors.Is(err, context.Canceled) {
					st, err = c.CancelWait(context.Background(), id,
						"interrupted")
				}
			}
			if err != nil {
				return err
			}

			printWait(cmd.OutOrStdout(), st)
			if st.State == api.WaitFailed {
				return ErrWaitFailed
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&timeout, "timeout", 0, "Wait timeout in --unit")
	cmd.Flags().StringVar(&unit, "unit", string(api.DefaultTimeUnit),
		"Unit of --timeout")
	return cmd
}

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [RUN...]",
		Short: "Stream property changes of the given runs, or of all runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(
				cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()

			ids := make([]api.RunID, len(args))
			for i, a := range args {
				ids[i] = api.RunID(a)
			}
			ch, err := opts.client().Watch(ctx, ids...)
			if err != nil {
				return err
			}
			for ev := range ch {
				printChange(cmd.OutOrStdout(), ev)
			}
			return nil
		},
	}
}
