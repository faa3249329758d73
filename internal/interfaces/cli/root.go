package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"antiposta.dev/testserver/internal/config"
	"antiposta.dev/testserver/internal/monitoring"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// Runtime is a wired, startable server
type Runtime interface {
	Start() error
	Port() int
	Done() <-chan error
	LiveFeed() *monitoring.Feed
	Shutdown(ctx context.Context) error
}

// CLIContainer holds all the dependencies for CLI commands
type CLIContainer struct {
	LoadConfig func(path string) (*config.Config, error)
	NewRuntime func(cfg *config.Config, logOut io.Writer) (Runtime, error)
	Stdout     io.Writer
	Stderr     io.Writer
}

// ServeFlags holds command-line flags for the server
type ServeFlags struct {
	Host       string
	ConfigPath string
	LogLevel   string
	Debug      bool
	RawHTML    bool
	Dashboard  bool
}

// NewRootCommand creates the server command
func NewRootCommand(container *CLIContainer) *cobra.Command {
	flags := &ServeFlags{}

	rootCmd := &cobra.Command{
		Use:   "antiposta-test-server [port]",
		Short: "HTTP echo server for testing clients",
		Long: `Antiposta test server answers every request with a description of the
request itself: method, path, headers, query parameters, decoded body and
client address.

The response format follows the Accept and Content-Type headers and is one
of JSON, HTML, XML or plain text.

Examples:
  antiposta-test-server                 # Listen on port 8000
  antiposta-test-server 9000            # Listen on port 9000
  antiposta-test-server --dashboard     # Show a live request monitor`,
		Args:          cobra.MaximumNArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, container, flags, args)
		},
	}

	rootCmd.SetVersionTemplate(versionText())
	rootCmd.SetOut(container.Stdout)
	rootCmd.SetErr(container.Stderr)

	rootCmd.Flags().StringVar(&flags.Host, "host", "", "Interface to listen on (default all interfaces)")
	rootCmd.Flags().StringVar(&flags.ConfigPath, "config", "", "Config file path, YAML or JSON")
	rootCmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&flags.Debug, "debug", false, "Log a dump of every decoded request")
	rootCmd.Flags().BoolVar(&flags.RawHTML, "raw-html", false, "Do not escape request data in HTML responses")
	rootCmd.Flags().BoolVar(&flags.Dashboard, "dashboard", false, "Show a live terminal view of incoming requests")

	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// resolveConfig loads configuration and applies flags and the positional port on top
func resolveConfig(cmd *cobra.Command, container *CLIContainer, flags *ServeFlags, args []string) (*config.Config, error) {
	cfg, err := container.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, w := range cfg.Warnings {
		fmt.Fprintln(out, w)
	}

	// Only explicitly set flags override file and environment values
	if cmd.Flags().Changed("host") {
		cfg.Host = flags.Host
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = flags.Debug
	}
	if cmd.Flags().Changed("raw-html") {
		cfg.RawHTML = flags.RawHTML
	}
	if cmd.Flags().Changed("dashboard") {
		cfg.Dashboard = flags.Dashboard
	}

	if len(args) > 0 {
		port, err := config.ParsePort(args[0])
		if err != nil {
			for _, w := range config.PortWarnings(args[0]) {
				fmt.Fprintln(out, w)
			}
			port = config.DefaultPort
		}
		cfg.Port = port
	}

	return cfg, nil
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "antiposta-test-server version %s\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
				Version, BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func versionText() string {
	return fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH)
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the root command until ctx is cancelled or the server stops
func Execute(ctx context.Context, container *CLIContainer) {
	rootCmd := NewRootCommand(container)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
