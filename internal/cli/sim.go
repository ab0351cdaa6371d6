package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/flint/internal/config"
	"github.com/roach88/flint/internal/gateway"
)

// SimOptions holds flags for the sim command.
type SimOptions struct {
	*RootOptions
	Listen       string
	Rules        []string
	TickInterval time.Duration

	// ready, when set, is called with the listening address once the
	// server accepts connections.
	ready func(addr net.Addr)
}

// NewSimCommand creates the sim command.
func NewSimCommand(rootOpts *RootOptions) *cobra.Command {
	return newSimCommand(&SimOptions{RootOptions: rootOpts})
}

func newSimCommand(opts *SimOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Serve a simulated world over websocket",
		Long: `Serve an in-memory block world that speaks the flint gateway protocol,
for running tests without a game server.

With --tick-interval the world advances on its own while time is not
frozen, like a live server.

Examples:
  flint sim
  flint sim --listen 127.0.0.1:25585 --rule gravity --tick-interval 50ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "address to listen on (default from config, "+config.DefaultListen+")")
	cmd.Flags().StringSliceVar(&opts.Rules, "rule", nil, fmt.Sprintf("world rules to enable %v", config.RuleNames()))
	cmd.Flags().DurationVar(&opts.TickInterval, "tick-interval", 0, "advance the unfrozen world on this interval (0 disables)")

	return cmd
}

func runSim(opts *SimOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)
	logger := opts.logger(cmd)

	sim := opts.cfg.Sim
	if cmd.Flags().Changed("listen") {
		sim.Listen = opts.Listen
	}
	if cmd.Flags().Changed("rule") {
		sim.Rules = opts.Rules
	}
	if cmd.Flags().Changed("tick-interval") {
		sim.TickInterval = opts.TickInterval
	}
	if sim.TickInterval < 0 {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("--tick-interval must not be negative, got %s", sim.TickInterval), nil)
	}
	worldOpts, err := sim.WorldOptions()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid world rules", err)
	}

	world := gateway.NewWorld(append(worldOpts, gateway.WithWorldLogger(logger.With("component", "world")))...)
	srv := gateway.NewServer(world, gateway.WithServerLogger(logger.With("component", "server")))

	ln, err := net.Listen("tcp", sim.Listen)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConnect, "failed to listen", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if sim.TickInterval > 0 {
		go srv.RunClock(ctx, sim.TickInterval)
	}

	errc := make(chan error, 1)
	go func() { errc <- httpSrv.Serve(ln) }()

	url := "ws://" + ln.Addr().String() + "/"
	if f.JSON() {
		_ = f.Success(map[string]any{"url": url, "rules": sim.Rules})
	} else {
		fmt.Fprintf(f.Writer, "serving world on %s\n", url)
	}
	logger.Info("sim listening", "url", url, "rules", sim.Rules, "tick_interval", sim.TickInterval)
	if opts.ready != nil {
		opts.ready(ln.Addr())
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "server stopped", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	if err := srv.Close(); err != nil {
		logger.Warn("close connections", "error", err)
	}

	hash, err := world.SnapshotHash()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to hash world", err)
	}
	if !f.JSON() {
		fmt.Fprintf(f.Writer, "stopped at tick %d, snapshot %s\n", world.CurrentTick(), hash)
	}
	logger.Info("sim stopped", "world_tick", world.CurrentTick(), "snapshot", hash)
	return nil
}
