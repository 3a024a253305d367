package cli

import (
	"context"
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
)

// NewFlushCommand creates the flush command.
func NewFlushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Deliver events left in the local queue",
		Long: `Deliver events left in the local queue by earlier runs.

Sending stops after the configured number of attempts or the flush timeout,
whichever comes first. Undelivered events stay queued.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlush(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runFlush(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := opts.newClient("")
	if err != nil {
		return err
	}

	before := client.QueueState()
	queued := len(before.Pending) + len(before.InFlight)
	flushErr := client.FlushAll(ctx)
	after := client.QueueState()
	if err := client.Close(ctx); err != nil {
		return err
	}
	remaining := len(after.Pending) + len(after.InFlight)

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, func(obj *jwriter.ObjectState) {
			obj.Name("queued").Int(queued)
			obj.Name("delivered").Int(after.Delivered)
			obj.Name("discarded").Int(after.Discarded)
			obj.Name("remaining").Int(remaining)
		})
	}
	fmt.Fprintf(out, "Delivered %d of %d queued events (%d discarded)\n", after.Delivered, queued, after.Discarded)
	if flushErr != nil {
		fmt.Fprintf(out, "%d events remain queued: %v\n", remaining, flushErr)
	}
	return nil
}
