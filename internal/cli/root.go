package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/charliek/sidecarhost/internal/config"
	"github.com/charliek/sidecarhost/internal/constants"
	"github.com/charliek/sidecarhost/internal/runstate"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath string
	apiAddr    string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sidecarhost",
	Short: "Launch and supervise a sidecar process",
	Long: `sidecarhost launches one long-lived helper binary (the sidecar) next to
the application, streams its output and stops it when the host exits.
It supports:
  - Platform-specific sidecar binary resolution
  - Live output capture with filtering and streaming
  - Optional HTTP health checks
  - A local control API and an interactive TUI`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Client commands talk to a running host; find it unless --addr was given
		if isClientCommand(cmd) && !cmd.Flags().Changed("addr") {
			apiAddr = discoverAPIAddress()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sidecarhost version %s\n", Version)
	},
}

func init() {
	// Persistent flags available to all subcommands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", constants.DefaultConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", constants.DefaultAPIAddress, "API address for remote commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.SetVersionTemplate("sidecarhost version {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

// isClientCommand reports whether cmd talks to a running host over the API
func isClientCommand(cmd *cobra.Command) bool {
	if cmd.Annotations != nil && cmd.Annotations["client"] == "true" {
		return true
	}
	if cmd.HasParent() && cmd.Parent() != cmd.Root() {
		return isClientCommand(cmd.Parent())
	}
	return false
}

// clientAnnotation marks commands that need API address discovery
var clientAnnotation = map[string]string{"client": "true"}

// newLogger builds the host logger
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads the configuration and reports the file it came from.
// An explicit --config must exist; otherwise the standard file names are
// tried and the defaults used (with an empty path) when none is found.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	if cmd.Flags().Changed("config") {
		cfg, err := config.Load(configPath)
		return cfg, configPath, err
	}

	path := configPath
	if _, err := os.Stat(path); err != nil {
		found, findErr := config.FindConfigFile()
		if findErr != nil {
			cfg := config.Default()
			if cwd, err := os.Getwd(); err == nil {
				cfg.Dir = cwd
			}
			return cfg, "", nil
		}
		path = found
	}

	cfg, err := config.Load(path)
	return cfg, path, err
}

// loadAPIAddrFromConfig attempts to read the API address from the config file.
// Returns empty string if config doesn't exist or can't be read.
func loadAPIAddrFromConfig() string {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "" // Config doesn't exist or is invalid, use default
	}

	host := cfg.API.Host
	if host == "" || host == "0.0.0.0" {
		host = constants.DefaultAPIHost
	}
	port := cfg.API.Port
	if port == 0 {
		port = constants.DefaultAPIPort
	}

	return fmt.Sprintf("http://%s:%d", host, port)
}

// discoverAPIAddress attempts to discover the API address.
// Priority:
// 1. State file (.sidecarhost/sidecarhost.state) - for running instances
// 2. Config file (sidecarhost.yaml) - for configured port
// 3. Default address
func discoverAPIAddress() string {
	if state, err := runstate.GetRunningState(""); err == nil {
		return state.Addr()
	}

	if addr := loadAPIAddrFromConfig(); addr != "" {
		return addr
	}

	return constants.DefaultAPIAddress
}
