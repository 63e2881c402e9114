package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/charliek/sidecarhost/internal/api"
	"github.com/charliek/sidecarhost/internal/constants"
	"github.com/charliek/sidecarhost/internal/host"
	"github.com/charliek/sidecarhost/internal/locator"
)

// Client command flags
var (
	statusJSON  bool
	logsFollow  bool
	logsJSON    bool
	logsParams  LogParams
	greetRemote bool
)

var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show host and sidecar status",
	Annotations: clientAnnotation,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := NewClient(apiAddr).GetStatus()
		if err != nil {
			return fmt.Errorf("%w\nIs sidecarhost running? Try 'sidecarhost run' first", err)
		}
		return printStatus(cmd.OutOrStdout(), status, statusJSON)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show sidecar output",
	Long: `Show recent sidecar output from a running host.

Examples:
  sidecarhost logs                       # Last 100 lines
  sidecarhost logs -f                    # Follow live output
  sidecarhost logs --stream stderr       # Only stderr
  sidecarhost logs --pattern 'ERR|WARN' --regex`,
	Annotations: clientAnnotation,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		out := cmd.OutOrStdout()

		if logsFollow {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return followLogs(ctx, client, out, logsParams, logsJSON)
		}

		resp, err := client.GetLogs(logsParams)
		if err != nil {
			return err
		}
		return printLogs(out, resp, logsJSON)
	},
}

var stopCmd = &cobra.Command{
	Use:         "stop",
	Short:       "Stop the running host and its sidecar",
	Annotations: clientAnnotation,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := NewClient(apiAddr).Shutdown(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Shutdown initiated")
		return nil
	},
}

var sidecarCmd = &cobra.Command{
	Use:         "sidecar",
	Short:       "Control the sidecar of a running host",
	Annotations: clientAnnotation,
}

var sidecarStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Spawn the sidecar",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := NewClient(apiAddr).StartSidecar(); err != nil {
			return fmt.Errorf("failed to start sidecar: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Sidecar started")
		return nil
	},
}

var sidecarStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Shut the sidecar down, leaving the host running",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := NewClient(apiAddr).StopSidecar(); err != nil {
			return fmt.Errorf("failed to stop sidecar: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Sidecar stopped")
		return nil
	},
}

var greetCmd = &cobra.Command{
	Use:         "greet [name]",
	Short:       "Print a greeting",
	Args:        cobra.MaximumNArgs(1),
	Annotations: clientAnnotation,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "World"
		if len(args) == 1 {
			name = args[0]
		}

		msg := host.Greet(name)
		if greetRemote {
			var err error
			if msg, err = NewClient(apiAddr).Greet(name); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show where the sidecar binary is looked up",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return printResolve(cmd.OutOrStdout(), host.NewLocator(cfg))
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow live output")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "Output as JSON")
	logsCmd.Flags().IntVarP(&logsParams.Lines, "lines", "n", constants.DefaultLogLimit, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsParams.Stream, "stream", "", "Only show this stream (stdout or stderr)")
	logsCmd.Flags().StringVar(&logsParams.Pattern, "pattern", "", "Filter lines by pattern")
	logsCmd.Flags().BoolVar(&logsParams.Regex, "regex", false, "Treat --pattern as a regular expression")

	greetCmd.Flags().BoolVar(&greetRemote, "remote", false, "Ask the running host instead of answering locally")

	sidecarCmd.AddCommand(sidecarStartCmd, sidecarStopCmd)
	rootCmd.AddCommand(statusCmd, logsCmd, stopCmd, sidecarCmd, greetCmd, resolveCmd)
}

// printStatus writes the status as a summary or JSON
func printStatus(w io.Writer, status *api.StatusResponse, jsonOutput bool) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(status)
	}

	sc := status.Sidecar
	fmt.Fprintf(w, "Status: %s\n", status.Status)
	fmt.Fprintf(w, "Uptime: %s\n", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
	if status.ConfigFile != "" {
		fmt.Fprintf(w, "Config: %s\n", status.ConfigFile)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.Header("Sidecar", "Status", "PID", "Uptime", "Lines", "Health")
	if err := table.Append([]string{
		sc.Name,
		sc.Status,
		strconv.Itoa(sc.PID),
		formatDuration(time.Duration(sc.UptimeSeconds) * time.Second),
		strconv.FormatInt(sc.Lines, 10),
		sc.Health,
	}); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if sc.Path != "" {
		fmt.Fprintf(w, "Binary:   %s\n", sc.Path)
	}
	if sc.Instance != "" {
		fmt.Fprintf(w, "Instance: %s\n", sc.Instance)
	}
	if sc.ExitCode != nil {
		fmt.Fprintf(w, "Exit:     %d\n", *sc.ExitCode)
	}
	if sc.Resources != nil {
		fmt.Fprintf(w, "Memory:   %.1f MiB  CPU: %.1f%%\n", float64(sc.Resources.RSSBytes)/(1024*1024), sc.Resources.CPUPercent)
	}
	if hc := sc.Healthcheck; hc != nil && hc.LastError != "" {
		fmt.Fprintf(w, "Health:   %d consecutive failures, last error: %s\n", hc.ConsecutiveFailures, hc.LastError)
	}
	return nil
}

// printLogs writes a page of output lines
func printLogs(w io.Writer, resp *api.LogsResponse, jsonOutput bool) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(resp)
	}

	printer := NewLogPrinter(w)
	for _, entry := range resp.Logs {
		printer.PrintLine(entry)
	}
	if resp.FilteredCount < resp.TotalCount {
		fmt.Fprintf(w, "\n(showing %d of %d lines)\n", resp.FilteredCount, resp.TotalCount)
	}
	return nil
}

// followLogs prints live output until ctx is cancelled
func followLogs(ctx context.Context, client *Client, w io.Writer, params LogParams, jsonOutput bool) error {
	printer := NewLogPrinter(w)
	enc := json.NewEncoder(w)
	return client.StreamLogs(ctx, params, func(entry api.LogLineResponse) {
		if jsonOutput {
			if err := enc.Encode(entry); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to encode line: %v\n", err)
			}
			return
		}
		printer.PrintLine(entry)
	})
}

// printResolve writes the lookup order and the resolved binary
func printResolve(w io.Writer, loc *locator.Locator) error {
	triple := loc.Triple
	if triple == "" {
		triple = "(unknown platform)"
	}
	fmt.Fprintf(w, "Sidecar: %s\n", loc.Name)
	fmt.Fprintf(w, "Target:  %s\n", triple)
	fmt.Fprintln(w, "Candidates:")
	for _, c := range loc.Candidates() {
		fmt.Fprintf(w, "  %s\n", c)
	}

	path, err := loc.Resolve()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Resolved: %s\n", path)
	return nil
}

// formatDuration formats a duration nicely
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
