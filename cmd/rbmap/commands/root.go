// Package commands implements the rbmap subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/internal/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/config"
	"github.com/Sumatoshi-tech/rbmap/pkg/version"
)

// GlobalOptions are the persistent flags shared by every subcommand.
type GlobalOptions struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
	NoColor    bool
}

// NewRootCommand builds the rbmap command tree.
func NewRootCommand() *cobra.Command {
	opts := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "rbmap",
		Short: "rbmap - red-black ordered map verification and benchmarking",
		Long: `rbmap exercises the arena-backed red-black OrderedMap.

Commands:
  stress    Randomized differential testing against a built-in map
  bench     Per-operation latency and tree height across map sizes
  replay    Re-run a saved operation log`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if opts.NoColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: rbmap.yaml in ., ./config or /etc/rbmap)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress informational logs")
	flags.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		NewStressCommand(opts),
		NewBenchCommand(opts),
		NewReplayCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// session is the per-invocation state: loaded config plus telemetry.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	cancel    context.CancelFunc
}

func openSession(ctx context.Context, opts *GlobalOptions, mode observability.AppMode) (*session, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.MetricsAddr = cfg.Telemetry.MetricsAddr
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON
	obsCfg.LogLevel = cfg.Logging.SlogLevel()

	switch {
	case opts.Verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case opts.Quiet:
		obsCfg.LogLevel = slog.LevelWarn
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	slog.SetDefault(providers.Logger)

	serveCtx, cancel := context.WithCancel(ctx)
	sess := &session{cfg: cfg, providers: providers, cancel: cancel}

	if obsCfg.MetricsAddr != "" {
		if _, err := observability.ServeMetrics(serveCtx, obsCfg.MetricsAddr, providers.MetricsHandler, providers.Logger); err != nil {
			sess.close()

			return nil, err
		}
	}

	return sess, nil
}

func (s *session) close() {
	s.cancel()

	if err := s.providers.Shutdown(context.Background()); err != nil {
		s.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

func (s *session) logger() *slog.Logger {
	return s.providers.Logger
}
