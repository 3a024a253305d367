package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tap30/courier-go/adapters"
	"github.com/Tap30/courier-go/internal/devserver"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr   string
	APIKey string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local ingestion server for testing",
		Long: `Run a local ingestion server that accepts /batch and /decide requests.

Captured events are listed at GET /admin/events. POST /admin/fail?count=N&status=S
makes the next N requests fail, and an event with the trigger_error property
set to true is answered with a 500.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", devserver.DefaultAddr, "listen address")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "require this API key on every request")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	level := opts.LogLevel
	if level == "" {
		level = string(adapters.LogLevelInfo)
	}
	srv := devserver.New(devserver.Options{
		APIKey: opts.APIKey,
		Logger: adapters.NewLoggersAdapter(adapters.LogLevel(level)),
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", opts.Addr)
	return srv.ListenAndServe(ctx, opts.Addr)
}
