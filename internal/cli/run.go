package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/charliek/sidecarhost/internal/api"
	"github.com/charliek/sidecarhost/internal/config"
	"github.com/charliek/sidecarhost/internal/constants"
	"github.com/charliek/sidecarhost/internal/host"
	"github.com/charliek/sidecarhost/internal/runstate"
	"github.com/charliek/sidecarhost/internal/tui"
)

// Run command flags
var (
	runTUI   bool
	runNoAPI bool
	runWatch bool
	runPort  int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the host and its sidecar",
	Long: `Start the host, spawn the sidecar and stream its output until
interrupted (Ctrl+C / SIGTERM) or asked to shut down over the API.

A sidecar that cannot be found or launched is reported and the host keeps
running without it.

Examples:
  sidecarhost run             # Stream sidecar output to the terminal
  sidecarhost run --tui       # Interactive output viewer
  sidecarhost run --no-api    # No local control API
  sidecarhost run --watch     # Restart the sidecar when its binary is rebuilt`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the interactive output viewer")
	runCmd.Flags().BoolVar(&runNoAPI, "no-api", false, "Do not start the local control API")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Restart the sidecar when its binary changes")
	runCmd.Flags().IntVarP(&runPort, "port", "p", 0, "Override the API port")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		if runPort < 1 || runPort > 65535 {
			return fmt.Errorf("invalid port: %d (must be 1-65535)", runPort)
		}
		cfg.API.Port = runPort
	}
	if runTUI && !isTerminal(os.Stdout) {
		return errors.New("--tui requires an interactive terminal")
	}

	if err := runstate.CleanupStale(cfg.Dir); err != nil {
		if errors.Is(err, runstate.ErrHostRunning) {
			return fmt.Errorf("sidecarhost is already running in %s", cfg.Dir)
		}
		return err
	}

	logOut := io.Writer(os.Stderr)
	if runTUI {
		// The TUI owns the terminal
		f, err := openLogFile(cfg.Dir)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(logOut)

	var mirror *slog.Logger
	if !runTUI {
		mirror = logger.With("component", "sidecar")
	}

	h, err := host.New(host.Options{Config: cfg, Logger: logger, Mirror: mirror})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownCh := make(chan struct{})
	var shutdownOnce sync.Once
	shutdownFn := func() {
		shutdownOnce.Do(func() { close(shutdownCh) })
	}

	if cfgPath != "" {
		fmt.Fprintf(out, "Starting sidecarhost with config: %s\n", cfgPath)
	} else {
		fmt.Fprintln(out, "Starting sidecarhost with default config")
	}

	var apiServer *api.Server
	if cfg.APIEnabled() && !runNoAPI {
		apiServer, err = startAPI(out, cfg, cfgPath, h, logger, shutdownFn)
		if err != nil {
			h.Stop(context.Background())
			return err
		}
	}

	if err := h.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Sidecar not started: %v\n", err)
	}
	if runWatch || cfg.Sidecar.Watch {
		if err := h.Watch(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Binary watch disabled: %v\n", err)
		}
	}

	if runTUI {
		tuiCtx, cancelTUI := untilShutdown(ctx, shutdownCh)
		if err := tui.Run(tuiCtx, h, h.Logs()); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		}
		cancelTUI()
	} else {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nShutting down...")
		case <-shutdownCh:
			fmt.Fprintln(out, "\nShutdown requested via API...")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("API server shutdown failed", "error", err)
		}
		if err := runstate.RemoveState(cfg.Dir); err != nil {
			logger.Warn("failed to remove state file", "error", err)
		}
	}
	h.Stop(shutdownCtx)

	fmt.Fprintln(out, "Shutdown complete")
	return nil
}

// untilShutdown returns a context that is cancelled when parent is done or
// shutdownCh closes
func untilShutdown(parent context.Context, shutdownCh <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-shutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// startAPI binds the control API, records the host state and serves in the background
func startAPI(out io.Writer, cfg *config.Config, cfgPath string, h *host.Host, logger *slog.Logger, shutdownFn func()) (*api.Server, error) {
	authEnabled := isAuthRequired(cfg)
	var token string

	if authEnabled {
		var err error
		token, err = generateToken()
		if err != nil {
			return nil, fmt.Errorf("generating auth token: %w", err)
		}
		if err := saveToken(cfg.Dir, token); err != nil {
			return nil, err
		}
	} else if !isLocalhost(cfg.API.Host) {
		fmt.Fprintf(os.Stderr, "WARNING: Auth disabled while binding to all interfaces (%s)\n", cfg.API.Host)
		fmt.Fprintf(os.Stderr, "         Any network client can control this host.\n")
	}

	env, err := cfg.LoadEnv()
	if err != nil {
		return nil, err
	}

	handlers := api.NewHandlers(h, h.Logs(), api.HandlerOptions{
		ConfigFile: cfgPath,
		SidecarEnv: envMap(env),
		ShutdownFn: shutdownFn,
		Logger:     logger.With("component", "api"),
	})
	server := api.NewServer(api.ServerConfig{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		AuthEnabled: authEnabled,
		Token:       token,
		Metrics:     h.Metrics().Handler(),
		Logger:      logger.With("component", "api"),
	}, handlers)

	if err := server.Listen(); err != nil {
		return nil, err
	}

	state := &runstate.State{
		PID:        os.Getpid(),
		Port:       server.Port(),
		Host:       clientHost(cfg.API.Host),
		StartedAt:  time.Now(),
		ConfigFile: cfgPath,
		Sidecar:    cfg.Sidecar.Name,
	}
	if err := state.Write(cfg.Dir); err != nil {
		logger.Warn("failed to write state file", "error", err)
	}

	scope := "network accessible"
	if isLocalhost(cfg.API.Host) {
		scope = "local only"
	}
	authNote := "no auth"
	if authEnabled {
		authNote = "auth enabled"
	}
	fmt.Fprintf(out, "API server: http://%s (%s, %s)\n", server.Addr(), scope, authNote)
	if authEnabled {
		fmt.Fprintf(out, "Auth token saved to: %s\n", tokenPath(cfg.Dir))
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server error", "error", err)
		}
	}()

	return server, nil
}

// tokenPath returns the path to the token file in the state directory
func tokenPath(dir string) string {
	return filepath.Join(runstate.StateDir(dir), constants.TokenFileName)
}

// generateToken generates a cryptographically secure random token
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// saveToken saves the token to the state directory
func saveToken(dir, token string) error {
	if err := runstate.EnsureStateDir(dir); err != nil {
		return err
	}
	// Write token with restrictive permissions (owner read/write only)
	if err := os.WriteFile(tokenPath(dir), []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// loadToken loads the token from the state directory
func loadToken(dir string) (string, error) {
	data, err := os.ReadFile(tokenPath(dir))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// openLogFile opens the host log file used while the TUI owns the terminal
func openLogFile(dir string) (*os.File, error) {
	if err := runstate.EnsureStateDir(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(runstate.StateDir(dir), "sidecarhost.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// isTerminal reports whether f is attached to a terminal
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// isLocalhost checks if the host is a localhost address
func isLocalhost(host string) bool {
	return host == "" || host == "127.0.0.1" || host == "localhost" || host == "::1"
}

// isAuthRequired determines if authentication should be enabled based on config
func isAuthRequired(cfg *config.Config) bool {
	// Explicit config takes precedence
	if cfg.API.Auth != nil {
		return *cfg.API.Auth
	}
	// Auto-determine: auth required unless binding to localhost only
	return !isLocalhost(cfg.API.Host)
}

// clientHost returns the address clients should dial for a bind host
func clientHost(bind string) string {
	switch bind {
	case "", "0.0.0.0", "::":
		return constants.DefaultAPIHost
	}
	return bind
}

// envMap turns KEY=VALUE pairs into a map
func envMap(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		key, value, _ := strings.Cut(kv, "=")
		m[key] = value
	}
	return m
}
