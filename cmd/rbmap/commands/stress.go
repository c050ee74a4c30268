package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/internal/observability"
	"github.com/Sumatoshi-tech/rbmap/internal/report"
	"github.com/Sumatoshi-tech/rbmap/internal/stress"
	"github.com/Sumatoshi-tech/rbmap/pkg/config"
)

const (
	flagSeeds        = "seeds"
	flagSeedBase     = "seed-base"
	flagOps          = "ops"
	flagKeys         = "keys"
	flagParallel     = "parallel"
	flagCheckEvery   = "check-every"
	flagSaveFailures = "save-failures"
	flagFormat       = "format"

	failureDirPerm = 0o750
)

// ErrCasesFailed is returned when at least one stress case diverged.
var ErrCasesFailed = errors.New("stress cases failed")

type stressFlags struct {
	seeds      int
	seedBase   uint64
	ops        int
	keys       int
	parallel   int
	checkEvery int
	saveDir    string
	format     string
}

// NewStressCommand creates the stress subcommand.
func NewStressCommand(opts *GlobalOptions) *cobra.Command {
	var flags stressFlags

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run randomized differential cases against a built-in map",
		Long: `Each case applies a seeded random mix of inserts, removes and lookups to an
OrderedMap and to a built-in map, compares every answer, checks the
red-black invariants, then removes all remaining keys in random order.

Flags override the stress section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStress(cmd, opts, &flags)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&flags.seeds, flagSeeds, config.DefaultStressSeeds, "number of cases, one per seed")
	fs.Uint64Var(&flags.seedBase, flagSeedBase, config.DefaultStressSeedBase, "seed of the first case")
	fs.IntVar(&flags.ops, flagOps, config.DefaultStressOps, "random operations per case")
	fs.IntVar(&flags.keys, flagKeys, config.DefaultStressKeySpace, "key space size")
	fs.IntVar(&flags.parallel, flagParallel, 0, "cases run at once (default: number of CPUs)")
	fs.IntVar(&flags.checkEvery, flagCheckEvery, config.DefaultStressCheckEvery,
		"check invariants every N mutations (1 = every step, 0 = only at the end)")
	fs.StringVar(&flags.saveDir, flagSaveFailures, "", "directory for op logs of failing cases")
	fs.StringVar(&flags.format, flagFormat, string(report.FormatTable), "output format: table, json or yaml")

	return cmd
}

// applyStressFlags copies explicitly set flags over the config values.
func applyStressFlags(cmd *cobra.Command, flags *stressFlags, cfg *config.StressConfig) error {
	fs := cmd.Flags()

	if fs.Changed(flagSeeds) {
		cfg.Seeds = flags.seeds
	}

	if fs.Changed(flagSeedBase) {
		cfg.SeedBase = flags.seedBase
	}

	if fs.Changed(flagOps) {
		cfg.Ops = flags.ops
	}

	if fs.Changed(flagKeys) {
		cfg.KeySpace = flags.keys
	}

	if fs.Changed(flagParallel) {
		cfg.Parallel = flags.parallel
	}

	if fs.Changed(flagCheckEvery) {
		cfg.CheckEvery = flags.checkEvery
	}

	if fs.Changed(flagSaveFailures) {
		cfg.SaveDir = flags.saveDir
	}

	return cfg.Validate()
}

func runStress(cmd *cobra.Command, opts *GlobalOptions, flags *stressFlags) error {
	format, err := report.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd.Context(), opts, observability.ModeStress)
	if err != nil {
		return err
	}
	defer sess.close()

	stressCfg := sess.cfg.Stress
	if err := applyStressFlags(cmd, flags, &stressCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	metrics, err := observability.NewStressMetrics(sess.providers.Meter)
	if err != nil {
		return err
	}

	runner := &stress.Runner{
		Parallelism: stressCfg.Parallel,
		Logger:      sess.logger(),
		Metrics:     metrics,
	}

	caseCfg := stress.Config{
		Ops:         stressCfg.Ops,
		KeySpace:    stressCfg.KeySpace,
		RemoveRatio: stressCfg.RemoveRatio,
		LookupRatio: stressCfg.LookupRatio,
		CheckEvery:  stressCfg.CheckEvery,
	}

	sess.logger().InfoContext(cmd.Context(), "starting stress run",
		"cases", stressCfg.Seeds, "seed_base", stressCfg.SeedBase,
		"ops", stressCfg.Ops, "keys", stressCfg.KeySpace, "parallel", stressCfg.Parallel)

	results, err := runner.Run(cmd.Context(), caseCfg, stress.Seeds(stressCfg.SeedBase, stressCfg.Seeds))
	if err != nil {
		return err
	}

	if err := stress.Write(cmd.OutOrStdout(), format, results); err != nil {
		return err
	}

	if err := saveFailures(cmd.ErrOrStderr(), stressCfg.SaveDir, results); err != nil {
		return err
	}

	summary := stress.Summarize(results)
	if summary.Failed > 0 {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "FAIL %d of %d cases diverged\n", summary.Failed, summary.Cases)

		return fmt.Errorf("%w: %d of %d", ErrCasesFailed, summary.Failed, summary.Cases)
	}

	color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "PASS %d cases\n", summary.Cases)

	return nil
}

func saveFailures(w io.Writer, dir string, results []stress.CaseResult) error {
	if dir == "" {
		return nil
	}

	for _, result := range results {
		if !result.Failed() || result.Log == nil {
			continue
		}

		if err := os.MkdirAll(dir, failureDirPerm); err != nil {
			return fmt.Errorf("create failure dir: %w", err)
		}

		path := filepath.Join(dir, failureFileName(result.Seed))
		if err := result.Log.WriteFile(path); err != nil {
			return err
		}

		color.New(color.FgYellow).Fprintf(w, "saved %s (%d ops)\n", path, result.Log.Len())
	}

	return nil
}

func failureFileName(seed uint64) string {
	return fmt.Sprintf("case-%d.oplog", seed)
}
