package cli

import (
	"fmt"
	"io"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/Tap30/courier-go/adapters"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Limit int
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Show the persisted queue and flag cache",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of events to list (0 for all)")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	storage, err := cfg.OpenStorage()
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	if closer, ok := storage.(io.Closer); ok {
		defer closer.Close()
	}

	events, err := storage.LoadQueue()
	if err != nil {
		return fmt.Errorf("loading queue: %w", err)
	}
	flags, err := storage.LoadFlags()
	if err != nil {
		return fmt.Errorf("loading flags: %w", err)
	}

	listed := events
	if opts.Limit > 0 && len(listed) > opts.Limit {
		listed = listed[:opts.Limit]
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, func(obj *jwriter.ObjectState) {
			obj.Name("queued").Int(len(events))
			adapters.WriteEvents(obj.Name("events"), listed)
			adapters.WriteValueMap(obj.Name("feature_flags"), flags)
		})
	}

	fmt.Fprintf(out, "Queued events: %d\n", len(events))
	for _, e := range listed {
		fmt.Fprintf(out, "  %s  %-24s %s (%s)\n", e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.Name, e.DistinctID, e.MessageID)
	}
	if len(listed) < len(events) {
		fmt.Fprintf(out, "  ... %d more\n", len(events)-len(listed))
	}
	fmt.Fprintln(out, "Feature flags:")
	writeFlagsText(out, flags)
	return nil
}
