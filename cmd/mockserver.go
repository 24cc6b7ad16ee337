package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/antrail/internal/mockserver"
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Serve a synthetic ACO backend for local use",
	Long: `Serve every backend endpoint the client uses with synthetic data, so the
TUI and 'antrail run' can be tried without the real solver. Faults can be
injected to exercise malformed-event and dropped-stream handling.`,
	Args: cobra.NoArgs,
	RunE: runMockServer,
}

func init() {
	defaults := mockserver.DefaultOptions()
	f := mockServerCmd.Flags()
	f.String("addr", "127.0.0.1:5000", "listen address")
	f.Duration("delay", defaults.Delay, "delay between streamed events")
	f.Int("runs", defaults.Runs, "runs per batch")
	f.Int("malformed-every", 0, "emit a malformed event after every n-th progress event")
	f.Int("drop-after", 0, "close streams after n events without a final event")
	rootCmd.AddCommand(mockServerCmd)
}

func runMockServer(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	addr, _ := f.GetString("addr")
	opts := mockserver.DefaultOptions()
	opts.Delay, _ = f.GetDuration("delay")
	opts.Runs, _ = f.GetInt("runs")
	opts.MalformedEvery, _ = f.GetInt("malformed-every")
	opts.DropAfter, _ = f.GetInt("drop-after")

	cleanup, err := initDebugLog(false)
	if err != nil {
		return fmt.Errorf("opening debug log: %w", err)
	}
	defer cleanup()

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Mock backend listening on http://%s\n", l.Addr())
	return mockserver.New(opts).Serve(ctx, l)
}
