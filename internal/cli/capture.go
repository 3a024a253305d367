package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/spf13/cobra"
)

// CaptureOptions holds flags for the capture command.
type CaptureOptions struct {
	*RootOptions
	Props      []string
	DistinctID string
	Screen     bool
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capture <event>",
		Short: "Capture an event and deliver it",
		Long: `Capture an event and deliver it along with anything still queued.

Property values are parsed as JSON when possible and sent as strings otherwise.
Events that cannot be delivered stay in the local queue for the next run.

Example:
  courier capture signup --prop plan=pro --prop seats=3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Props, "prop", "p", nil, "event property as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.DistinctID, "distinct-id", "", "distinct ID to attribute the event to")
	cmd.Flags().BoolVar(&opts.Screen, "screen", false, "capture a screen view named <event>")

	return cmd
}

func runCapture(ctx context.Context, opts *CaptureOptions, name string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	props, err := parseProps(opts.Props)
	if err != nil {
		return err
	}

	client, err := opts.newClient(opts.DistinctID)
	if err != nil {
		return err
	}

	if opts.Screen {
		err = client.Screen(name, props)
	} else {
		err = client.Capture(name, props)
	}
	if err != nil {
		_ = client.Close(ctx)
		return err
	}

	flushErr := client.FlushAll(ctx)
	state := client.QueueState()
	if err := client.Close(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, func(obj *jwriter.ObjectState) {
			obj.Name("event").String(name)
			obj.Name("distinct_id").String(client.DistinctID())
			obj.Name("delivered").Bool(flushErr == nil)
			obj.Name("pending").Int(len(state.Pending) + len(state.InFlight))
		})
	}
	fmt.Fprintf(out, "Captured %s for %s\n", name, client.DistinctID())
	if flushErr != nil {
		fmt.Fprintf(out, "Delivery incomplete, %d events queued for the next run: %v\n",
			len(state.Pending)+len(state.InFlight), flushErr)
	}
	return nil
}

// parseProps turns key=value pairs into a property map.
func parseProps(pairs []string) (ldvalue.ValueMap, error) {
	b := ldvalue.ValueMapBuildWithCapacity(len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return ldvalue.ValueMap{}, fmt.Errorf("invalid --prop %q: expected key=value", pair)
		}
		b.Set(key, parsePropValue(raw))
	}
	return b.Build(), nil
}

func parsePropValue(raw string) ldvalue.Value {
	if raw == "null" {
		return ldvalue.Null()
	}
	if v := ldvalue.Parse([]byte(raw)); !v.IsNull() {
		return v
	}
	return ldvalue.String(raw)
}
