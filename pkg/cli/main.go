// Package cli builds the docctl command tree over the document repository.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nimburion/docrepo/pkg/config"
	"github.com/nimburion/docrepo/pkg/health"
	"github.com/nimburion/docrepo/pkg/observability/logger"
	"github.com/nimburion/docrepo/pkg/version"
)

// CommandOptions configures the root command.
type CommandOptions struct {
	// Name is the binary name and the default service name.
	Name string
	// ConfigPath is the default value of --config-file.
	ConfigPath string
	// EnvPrefix prefixes environment overrides; empty means config.DefaultEnvPrefix.
	EnvPrefix string
	// CustomCommands are appended to the root command.
	CustomCommands []*cobra.Command
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	envPrefix  string
	output     string
}

// NewRootCommand creates the docctl CLI with version, config, healthcheck,
// query, find-one, count and seed subcommands.
func NewRootCommand(opts CommandOptions) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "docctl"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         "Query and seed MongoDB document collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config-file", "c", opts.ConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", opts.EnvPrefix, "environment variable prefix")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", string(formatJSON), "output format (json, yaml)")

	rootCmd.AddCommand(newVersionCommand(opts.Name, flags))
	rootCmd.AddCommand(newConfigCommand(flags))
	rootCmd.AddCommand(newHealthcheckCommand(flags))
	rootCmd.AddCommand(newQueryCommand(flags))
	rootCmd.AddCommand(newFindOneCommand(flags))
	rootCmd.AddCommand(newCountCommand(flags))
	rootCmd.AddCommand(newSeedCommand(flags))

	for _, cmd := range opts.CustomCommands {
		rootCmd.AddCommand(cmd)
	}
	return rootCmd
}

// Execute runs the command and exits non-zero on failure.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// LoadConfigAndLogger loads configuration and builds the logger it describes.
// Logs go to stderr so command output on stdout stays machine readable.
func LoadConfigAndLogger(cfgPath, envPrefix string) (*config.Config, logger.Logger, error) {
	if envPrefix == "" {
		envPrefix = config.DefaultEnvPrefix
	}
	cfg, err := config.NewViperLoader(cfgPath, envPrefix).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Observability.LogLevel),
		Format: logger.LogFormat(cfg.Observability.LogFormat),
		Output: os.Stderr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

// commandContext derives a cancellable context carrying a fresh request ID.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return logger.ContextWithRequestID(ctx, uuid.NewString()), stop
}

func newVersionCommand(name string, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(cmd.OutOrStdout(), flags.output, version.Current(name))
		},
	}
}

func newConfigCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and show the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := LoadConfigAndLogger(flags.configPath, flags.envPrefix)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return err
		},
	}
}

func newHealthcheckCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to MongoDB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := LoadConfigAndLogger(flags.configPath, flags.envPrefix)
			if err != nil {
				return err
			}
			ctx, stop := commandContext(cmd)
			defer stop()

			rt, err := openRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			registry := health.NewRegistry()
			registry.Register(health.NewAdapterChecker("mongodb", rt.adapter, cfg.Database.ConnectTimeout))
			registry.Register(health.NewCustomChecker("config", func(ctx context.Context) (health.Status, string, error) {
				if err := cfg.Validate(); err != nil {
					return health.StatusUnhealthy, "", err
				}
				if len(cfg.Query.SearchableFields) == 0 {
					return health.StatusDegraded, "no searchable fields configured", nil
				}
				return health.StatusHealthy, fmt.Sprintf("%d searchable collections", len(cfg.Query.SearchableFields)), nil
			}))

			result := registry.Check(ctx)
			if err := render(cmd.OutOrStdout(), flags.output, result); err != nil {
				return err
			}
			if result.Status == health.StatusUnhealthy {
				return fmt.Errorf("healthcheck failed: %s", result.Status)
			}
			return nil
		},
	}
}
