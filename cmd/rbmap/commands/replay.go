package commands

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/internal/observability"
	"github.com/Sumatoshi-tech/rbmap/internal/oplog"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

const flagCheck = "check"

// NewReplayCommand creates the replay subcommand.
func NewReplayCommand(opts *GlobalOptions) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "replay <file.oplog>",
		Short: "Re-run a saved operation log against a fresh map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), opts, observability.ModeReplay)
			if err != nil {
				return err
			}
			defer sess.close()

			return runReplay(cmd, sess, args[0], check)
		},
	}

	cmd.Flags().BoolVar(&check, flagCheck, false, "check invariants after every mutation")

	return cmd
}

func runReplay(cmd *cobra.Command, sess *session, path string, check bool) error {
	ctx, span := sess.providers.Tracer.Start(cmd.Context(), "replay")
	defer span.End()

	log, err := oplog.ReadFile(path)
	if err != nil {
		return err
	}

	replayOpts := oplog.ReplayOptions{}
	if check {
		replayOpts.CheckEvery = 1
	}

	m := rbtree.New[uint32, uint32]()

	sess.logger().InfoContext(ctx, "replaying", "path", path, "ops", humanize.Comma(int64(log.Len())), "check", check)

	stats, err := oplog.Replay(log, m, replayOpts)

	out := cmd.ErrOrStderr()

	if err != nil {
		span.RecordError(err)

		var replayErr *oplog.ReplayError
		if errors.As(err, &replayErr) {
			color.New(color.FgRed).Fprintf(out, "FAIL at op #%d %s\n", replayErr.Index, replayErr.Op)
		} else {
			color.New(color.FgRed).Fprintf(out, "FAIL after %d ops\n", stats.Ops())
		}

		return fmt.Errorf("replay %s: %w", path, err)
	}

	color.New(color.FgGreen).Fprintf(out, "PASS %s ops (%s inserts, %s removes, %s gets, %d checks), %d entries left\n",
		humanize.Comma(int64(stats.Ops())),
		humanize.Comma(int64(stats.Inserts)),
		humanize.Comma(int64(stats.Removes)),
		humanize.Comma(int64(stats.Gets)),
		stats.Checks, m.Len())

	return nil
}
