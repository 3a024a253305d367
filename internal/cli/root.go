// Package cli implements the courier command line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	courier "github.com/Tap30/courier-go"
	"github.com/Tap30/courier-go/adapters"
	"github.com/Tap30/courier-go/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"

	// Getenv is os.Getenv unless a test replaces it.
	Getenv func(string) string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the courier CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Getenv: os.Getenv}

	cmd := &cobra.Command{
		Use:           "courier",
		Short:         "Courier analytics client",
		Long:          "Capture analytics events, flush the durable queue and resolve feature flags.",
		Version:       courier.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ~/.courier/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error|none)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewFlushCommand(opts))
	cmd.AddCommand(NewFlagsCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) configPath() (string, error) {
	if o.ConfigPath != "" {
		return o.ConfigPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and applies environment and flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path, err := o.configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	getenv := o.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.ApplyEnv(getenv)
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg, nil
}

func (o *RootOptions) logger(cfg *config.Config) adapters.LoggerAdapter {
	return adapters.NewLoggersAdapter(adapters.LogLevel(cfg.LogLevel))
}

// newClient builds and initializes a client from the resolved config. The
// caller must Close it so the queue snapshot is written.
func (o *RootOptions) newClient(distinctID string) (*courier.Client, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if distinctID != "" {
		cfg.DistinctID = distinctID
	}
	clientConfig, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	clientConfig.LoggerAdapter = o.logger(cfg)

	client, err := courier.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}
	if err := client.Init(); err != nil {
		return nil, err
	}
	return client, nil
}
