package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scanviz/merge-results/internal/metrics"
	"github.com/scanviz/merge-results/internal/watcher"
	"github.com/spf13/cobra"
)

type watchConfig struct {
	Debounce    time.Duration `mapstructure:"debounce" yaml:"debounce,omitempty"`
	MetricsHost string        `mapstructure:"metrics-host" yaml:"metrics-host,omitempty"`
	MetricsPort int           `mapstructure:"metrics-port" yaml:"metrics-port,omitempty"`
}

func installWatchCmd(app *App) error {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Aggregate scanner results every time they change",
		Long: `Aggregate scanner results once, then again every time a result file of the input directory is created, modified, removed or renamed.

A failed aggregation is reported and leaves the previous document untouched; watching goes on until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running watch command")
			return app.watchRun(cmd.Context())
		},
	}

	watchCmd.Flags().DurationVar(&app.config.Watch.Debounce, "debounce", watcher.DefaultDebounce, "delay during which successive changes are coalesced into one aggregation")
	watchCmd.Flags().StringVar(&app.config.Watch.MetricsHost, "metrics-host", "localhost", "host for the metrics endpoint")
	watchCmd.Flags().IntVar(&app.config.Watch.MetricsPort, "metrics-port", 0, "port for the metrics endpoint, disabled if 0")

	for _, name := range []string{"debounce", "metrics-host", "metrics-port"} {
		if err := app.viper.BindPFlag(name, watchCmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("could not bind %s flag: %w", name, err)
		}
	}

	app.cmd.AddCommand(watchCmd)
	return nil
}

// watchRun aggregates the scanner results every time they change, until ctx is done or the process is interrupted.
func (a *App) watchRun(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes, errs, err := watcher.New(a.config.InputDir,
		watcher.WithDebounce(a.config.debounce()),
		watcher.WithIgnore(a.config.Output),
	).Watch(ctx)
	if err != nil {
		return err
	}

	if a.config.Watch.MetricsPort != 0 {
		srv := metrics.NewServer(metrics.Config{Host: a.config.Watch.MetricsHost, Port: a.config.Watch.MetricsPort}, a.recorder)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	a.watchAggregate(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopped watching scanner results")
			return nil
		case _, ok := <-changes:
			if !ok {
				// Errors are sent before both channels get closed.
				return <-errs
			}
			a.watchAggregate(ctx)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// watchAggregate runs one aggregation, reporting but not returning failures.
func (a *App) watchAggregate(ctx context.Context) {
	res, err := a.aggregate(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Aggregation failed, keeping the previous document", "error", err)
		}
		return
	}
	if a.config.DryRun {
		return
	}
	fmt.Fprintf(a.cmd.OutOrStdout(), "Successfully aggregated %d scanner results into %s\n", res.Scanners, res.OutputPath)
}
