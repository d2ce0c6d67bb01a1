// Package cli exposes the service through cobra commands: serve (the default),
// version and config.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/devserver/pkg/config"
	"github.com/nimburion/devserver/pkg/observability/logger"
	"github.com/nimburion/devserver/pkg/server"
	"github.com/nimburion/devserver/pkg/version"
)

// CommandOptions configures the root command.
type CommandOptions struct {
	Name        string
	Description string
	// ConfigPath is the default --config-file value. Empty means no file.
	ConfigPath string
	// DotEnvPath is the default --dotenv-file value.
	DotEnvPath string

	// Optional: overrides server startup. Defaults to RunServer.
	RunServer func(ctx context.Context, cfg *config.Config, log logger.Logger) error
	// Optional: log output, used by tests. Defaults to stdout.
	LogOutput io.Writer
}

// NewRootCommand creates the CLI with serve, version and config subcommands.
// Running the root command without a subcommand serves.
func NewRootCommand(opts CommandOptions) *cobra.Command {
	if opts.Name == "" {
		opts.Name = version.ServiceName
	}
	if opts.DotEnvPath == "" {
		opts.DotEnvPath = config.DefaultDotEnvFile
	}
	if opts.RunServer == nil {
		opts.RunServer = RunServer
	}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath, dotEnvPath string
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path (yaml, json or toml)")
	flags.StringVar(&dotEnvPath, "dotenv-file", opts.DotEnvPath, "dotenv file merged below real environment variables")
	registerConfigFlags(flags)

	loadConfig := func(fs *pflag.FlagSet) (*config.Config, error) {
		cfg, err := config.NewViperLoader(cfgPath).
			WithDotEnvFile(dotEnvPath).
			WithFlags(fs).
			Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			log, err := NewLogger(cfg, opts.LogOutput)
			if err != nil {
				return err
			}
			defer syncLogger(log)
			return opts.RunServer(cmd.Context(), cfg, log)
		},
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = serveCmd.RunE

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd.Flags()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			formatted, err := formatConfig(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted)
			return nil
		},
	})
	rootCmd.AddCommand(configCmd)

	return rootCmd
}

// registerConfigFlags declares the flags the config loader binds.
func registerConfigFlags(fs *pflag.FlagSet) {
	fs.Int("port", 0, "public listen port (env PORT)")
	fs.String("static-dir", "", "static asset root (env STATIC_DIR)")
	fs.String("environment", "", "environment label (env ENVIRONMENT)")
	fs.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	fs.String("log-format", "", "json or text (env LOG_FORMAT)")
	fs.String("router-type", "", "nethttp, gorilla or gin (env ROUTER_TYPE)")
}

// RunServer builds the application from cfg and serves until a termination
// signal arrives.
func RunServer(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	app, err := server.New(ctx, server.Options{Config: cfg, Logger: log})
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

// NewLogger creates the zap logger described by cfg. An unknown level falls
// back to info and is reported once the logger exists.
func NewLogger(cfg *config.Config, out io.Writer) (logger.Logger, error) {
	level, levelErr := logger.ParseLogLevel(cfg.Observability.LogLevel)
	if levelErr != nil {
		level = logger.InfoLevel
	}
	format, err := logger.ParseLogFormat(cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  level,
		Format: format,
		Output: out,
		Fields: map[string]string{
			"service":     version.ServiceName,
			"environment": cfg.Service.Environment,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	if levelErr != nil {
		log.Warn("unknown log level, using info", "log_level", cfg.Observability.LogLevel)
	}
	return log, nil
}

func syncLogger(log logger.Logger) {
	if s, ok := log.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

func formatConfig(cfg *config.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// Execute runs the command and exits with status 1 on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
