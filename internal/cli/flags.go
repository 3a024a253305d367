package cli

import (
	"context"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/Tap30/courier-go/adapters"
)

// FlagsOptions holds flags for the flags command.
type FlagsOptions struct {
	*RootOptions
	DistinctID string
	Cached     bool
}

// NewFlagsCommand creates the flags command.
func NewFlagsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FlagsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Resolve feature flags for a distinct ID",
		Long: `Resolve feature flags for a distinct ID and store them in the local cache.

With --cached the stored flags are printed without contacting the server.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlags(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DistinctID, "distinct-id", "", "distinct ID to resolve flags for")
	cmd.Flags().BoolVar(&opts.Cached, "cached", false, "print the cached flags only")

	return cmd
}

func runFlags(ctx context.Context, opts *FlagsOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := opts.newClient(opts.DistinctID)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	if !opts.Cached {
		if _, err := client.ReloadFeatureFlags(ctx); err != nil {
			return err
		}
	}
	flags := client.FeatureFlags()

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, func(obj *jwriter.ObjectState) {
			obj.Name("distinct_id").String(client.DistinctID())
			adapters.WriteValueMap(obj.Name("feature_flags"), flags)
		})
	}
	writeFlagsText(out, flags)
	return nil
}
