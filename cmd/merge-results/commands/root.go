// Package commands implements the merge-results command line interface.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scanviz/merge-results/internal/aggregator"
	"github.com/scanviz/merge-results/internal/cli"
	"github.com/scanviz/merge-results/internal/constants"
	"github.com/scanviz/merge-results/internal/metrics"
	"github.com/scanviz/merge-results/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	recorder *metrics.Recorder
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int  `mapstructure:"verbose" yaml:"verbose,omitempty"`
	JSONLogs  bool `mapstructure:"json-logs" yaml:"json-logs,omitempty"`

	InputDir    string `mapstructure:"input-dir" yaml:"input-dir,omitempty"`
	Output      string `mapstructure:"output" yaml:"output,omitempty"`
	DryRun      bool   `mapstructure:"dry-run" yaml:"dry-run,omitempty"`
	MetricsFile string `mapstructure:"metrics-file" yaml:"metrics-file,omitempty"`

	Watch watchConfig `mapstructure:",squash" yaml:",inline"`

	ConfigPath string `mapstructure:"config" yaml:"-"`
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{recorder: metrics.New()}

	a.cmd = &cobra.Command{
		Use:   constants.CmdName,
		Short: "Aggregate scanner results for the visualizer",
		Long: `Aggregate the scanner result files of a directory into the single document read by the visualizer.

Every *.json file of the input directory must hold a JSON object mapping scanner names to their results.
All objects are merged, in file name order, under the "` + constants.EnvelopeKey + `" key of the output document.
A scanner found in several files keeps the results of the last one.

Nothing is written if any result file can't be read or parsed.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.cmd.ErrOrStderr(), a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := cli.Unmarshal(a.viper, &a.config); err != nil {
				return err
			}
			slog.Debug("got app config", "config", a.config)

			cli.SetSlog(a.cmd.ErrOrStderr(), a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context())
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	if err := installWatchCmd(&a); err != nil {
		return nil, err
	}
	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	cmd.PersistentFlags().StringVarP(&app.config.InputDir, "input-dir", "i", constants.GetDefaultInputDir(), "directory to read the scanner result files from")
	cmd.PersistentFlags().StringVarP(&app.config.Output, "output", "o", constants.GetDefaultOutputPath(), "path of the aggregated document, replaced if it exists")
	cmd.PersistentFlags().BoolVarP(&app.config.DryRun, "dry-run", "d", false, "print the aggregated document instead of writing it")
	cmd.PersistentFlags().StringVar(&app.config.MetricsFile, "metrics-file", "", "write Prometheus metrics about the run to this file, in the text exposition format")

	if err := cmd.MarkPersistentFlagDirname("input-dir"); err != nil {
		panic(fmt.Errorf("failed to mark input-dir flag as directory: %w", err))
	}
	if err := cmd.MarkPersistentFlagFilename("output", "json"); err != nil {
		panic(fmt.Errorf("failed to mark output flag as filename: %w", err))
	}
	if err := cmd.MarkPersistentFlagFilename("metrics-file", "prom"); err != nil {
		panic(fmt.Errorf("failed to mark metrics-file flag as filename: %w", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run(ctx context.Context) error {
	res, err := a.aggregate(ctx)
	if err != nil {
		return err
	}

	if !a.config.DryRun {
		fmt.Fprintf(a.cmd.OutOrStdout(), "Successfully aggregated %d scanner results into %s\n", res.Scanners, res.OutputPath)
	}
	return nil
}

// aggregate runs one aggregation pass with the current configuration and records it.
func (a *App) aggregate(ctx context.Context) (res aggregator.Result, err error) {
	var opts []aggregator.Options
	if a.config.DryRun {
		opts = append(opts, aggregator.WithDryRun(a.cmd.OutOrStdout()))
	}

	start := time.Now()
	res, err = aggregator.New(opts...).Run(ctx, a.config.InputDir, a.config.Output)
	a.recorder.Observe(res.Files, res.Scanners, err, start, time.Since(start))

	if a.config.MetricsFile != "" {
		if err := a.recorder.WriteToTextfile(a.config.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics file", "file", a.config.MetricsFile, "error", err)
		}
	}

	return res, err
}

// debounce returns the configured watch debounce, or the default.
func (c appConfig) debounce() time.Duration {
	if c.Watch.Debounce <= 0 {
		return watcher.DefaultDebounce
	}
	return c.Watch.Debounce
}
