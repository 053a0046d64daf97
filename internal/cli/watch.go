package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/client"
	"github.com/roach88/configstore/internal/metrics"
	"github.com/roach88/configstore/internal/model"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Types       []string
	MetricsAddr string
}

// DeltaView is the printed form of one change.
type DeltaView struct {
	Change  model.ChangeType `json:"change"`
	Type    model.EntityType `json:"type"`
	ID      string           `json:"id"`
	Patch   int              `json:"patch"`
	Version string           `json:"version"`
}

func (d DeltaView) String() string {
	return fmt.Sprintf("%-6s %-6s %s patch=%d version=%s", d.Change, d.Type, d.ID, d.Patch, d.Version)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow entity changes",
		Long: `Scan the store once, then print every change found by later scans.
Scans run on the polling schedule and, for a local store, whenever
files change. Stops on interrupt or when a scan fails.

Exit codes:
  0 - Interrupted
  1 - A scan failed or the configuration is invalid
  2 - Command error (client disabled, etc.)

Examples:
  configstore watch --config configstore.yaml
  configstore watch --type policy --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Types, "type", "t", nil, "entity types to follow (policy|access|pip)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics at this address under /metrics")
	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	types, err := parseTypes(opts.Types)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	m := metrics.NewListener()
	c, err := opts.openClient(cmd, f, client.WithListener(m))
	if err != nil {
		return err
	}
	defer c.Close()

	if opts.MetricsAddr != "" {
		addr, shutdown, err := serveMetrics(opts.MetricsAddr, m.Handler(), opts.logger(cmd))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, err)
		}
		defer shutdown()
		f.VerboseLog("serving metrics on http://%s/metrics", addr)
	}

	start, err := c.EntityInfos(ctx, types...)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeScan, err)
	}
	if !f.JSON() {
		fmt.Fprintf(f.Writer, "watching %d entities\n", len(start))
	}

	batches, errc := c.EntityUpdatesBatch(ctx, start, types...)
	for batch := range batches {
		for _, d := range batch {
			view := DeltaView{
				Change:  d.Type,
				Type:    d.Entity.Type(),
				ID:      d.Entity.ID(),
				Patch:   d.Entity.PatchVersion(),
				Version: d.Entity.Version(),
			}
			if f.JSON() {
				if err := f.encodeLine(view); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(f.Writer, view)
		}
	}
	if err := <-errc; err != nil {
		return f.Fail(ExitFailure, ErrCodeScan, err)
	}
	return nil
}

// serveMetrics serves handler under /metrics. It returns the bound
// address and a function that stops the server.
func serveMetrics(addr string, handler http.Handler, logger *zap.SugaredLogger) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return ln.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
