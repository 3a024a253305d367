package cli

import (
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/Tap30/courier-go/internal/config"
)

// ConfigInitOptions holds flags for the config init command.
type ConfigInitOptions struct {
	*RootOptions
	APIKey    string
	Host      string
	Namespace string
	Driver    string
	Force     bool
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the courier config file",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigInitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file",
		Long: `Write a config file with the given credentials.

Example:
  courier config init --api-key phc_123 --host https://events.example.com`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "project API key")
	cmd.Flags().StringVar(&opts.Host, "host", "", "ingestion host, e.g. https://events.example.com")
	cmd.Flags().StringVar(&opts.Namespace, "namespace", "", "storage namespace")
	cmd.Flags().StringVar(&opts.Driver, "storage", config.DriverFile, "storage driver (file|sqlite)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")

	return cmd
}

func runConfigInit(opts *ConfigInitOptions, cmd *cobra.Command) error {
	path, err := opts.configPath()
	if err != nil {
		return err
	}
	existing, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	if existing.APIKey != "" && !opts.Force {
		return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
	}

	cfg := existing
	cfg.APIKey = opts.APIKey
	cfg.Host = opts.Host
	if opts.Namespace != "" {
		cfg.Namespace = opts.Namespace
	}
	cfg.Storage.Driver = opts.Driver
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the resolved configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, func(obj *jwriter.ObjectState) {
					obj.Name("api_key").String(maskKey(cfg.APIKey))
					obj.Name("host").String(cfg.Host)
					obj.Name("namespace").String(cfg.Namespace)
					obj.Name("storage").String(cfg.Storage.Driver)
					obj.Name("log_level").String(cfg.LogLevel)
				})
			}
			fmt.Fprintf(out, "api_key:   %s\n", maskKey(cfg.APIKey))
			fmt.Fprintf(out, "host:      %s\n", cfg.Host)
			fmt.Fprintf(out, "namespace: %s\n", cfg.Namespace)
			fmt.Fprintf(out, "storage:   %s\n", cfg.Storage.Driver)
			fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
			return nil
		},
	}
}

// maskKey keeps the first four characters of a key.
func maskKey(key string) string {
	if len(key) <= 4 {
		return key
	}
	return key[:4] + "****"
}
