package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/internal/bench"
	"github.com/Sumatoshi-tech/rbmap/internal/observability"
	"github.com/Sumatoshi-tech/rbmap/internal/report"
	"github.com/Sumatoshi-tech/rbmap/pkg/config"
)

const (
	flagSizes     = "sizes"
	flagChart     = "chart"
	flagBenchSeed = "seed"

	chartFilePerm = 0o644
)

// NewBenchCommand creates the bench subcommand.
func NewBenchCommand(opts *GlobalOptions) *cobra.Command {
	var (
		sizes  []int
		chart  string
		seed   uint64
		format string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure per-operation latency and tree height across map sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			sess, err := openSession(cmd.Context(), opts, observability.ModeBench)
			if err != nil {
				return err
			}
			defer sess.close()

			benchCfg := sess.cfg.Bench

			if cmd.Flags().Changed(flagSizes) {
				benchCfg.Sizes = sizes
			}

			if cmd.Flags().Changed(flagChart) {
				benchCfg.Chart = chart
			}

			if cmd.Flags().Changed(flagBenchSeed) {
				benchCfg.Seed = seed
			}

			if err := config.ValidateSizes(benchCfg.Sizes); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			return runBench(cmd, sess, benchCfg, outFormat)
		},
	}

	cmd.Flags().IntSliceVar(&sizes, flagSizes, config.DefaultBenchSizes, "map sizes to measure")
	cmd.Flags().StringVar(&chart, flagChart, "", "write an HTML chart to this path")
	cmd.Flags().Uint64Var(&seed, flagBenchSeed, config.DefaultBenchSeed, "key generator seed")
	cmd.Flags().StringVar(&format, flagFormat, string(report.FormatTable), "output format: table, json or yaml")

	return cmd
}

func runBench(cmd *cobra.Command, sess *session, cfg config.BenchConfig, format report.Format) error {
	metrics, err := observability.NewBenchMetrics(sess.providers.Meter)
	if err != nil {
		return err
	}

	runner := &bench.Runner{Logger: sess.logger(), Metrics: metrics}

	samples, err := runner.Run(cmd.Context(), bench.Config{Sizes: cfg.Sizes, Seed: cfg.Seed})
	if err != nil {
		return err
	}

	if err := bench.Write(cmd.OutOrStdout(), format, samples); err != nil {
		return err
	}

	for _, sample := range samples {
		if float64(sample.Height) > sample.Bound {
			color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(),
				"height %d exceeds bound %.1f at size %d\n", sample.Height, sample.Bound, sample.Size)
		}
	}

	if cfg.Chart == "" {
		return nil
	}

	file, err := os.OpenFile(cfg.Chart, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, chartFilePerm)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}

	if err := bench.Chart(samples, file); err != nil {
		_ = file.Close()

		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close chart: %w", err)
	}

	color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "chart written to %s\n", cfg.Chart)

	return nil
}
