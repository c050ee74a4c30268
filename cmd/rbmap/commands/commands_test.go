package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/rbmap/cmd/rbmap/commands"
	"github.com/Sumatoshi-tech/rbmap/internal/bench"
	"github.com/Sumatoshi-tech/rbmap/internal/oplog"
	"github.com/Sumatoshi-tech/rbmap/internal/report"
	"github.com/Sumatoshi-tech/rbmap/internal/stress"
	"github.com/Sumatoshi-tech/rbmap/pkg/config"
)

type execResult struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI with an empty config file so the host's rbmap.yaml
// cannot leak in.
func execute(t *testing.T, args ...string) execResult {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "rbmap.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o600))

	var stdout, stderr bytes.Buffer

	root := commands.NewRootCommand()
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.ExecuteContext(context.Background())

	return execResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	res := execute(t, "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "rbmap ")
	assert.Contains(t, res.stdout, "commit:")
}

func TestStressCommandJSON(t *testing.T) {
	t.Parallel()

	res := execute(t, "stress",
		"--seeds", "3", "--seed-base", "40", "--ops", "300", "--keys", "32",
		"--parallel", "2", "--check-every", "1", "--format", "json")
	require.NoError(t, res.err)

	var doc stress.Report

	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, 3, doc.Summary.Cases)
	assert.Zero(t, doc.Summary.Failed)
	require.Len(t, doc.Cases, 3)
	assert.Equal(t, []uint64{40, 41, 42}, []uint64{doc.Cases[0].Seed, doc.Cases[1].Seed, doc.Cases[2].Seed})
	assert.Contains(t, res.stderr, "PASS 3 cases")
}

func TestStressCommandTable(t *testing.T) {
	t.Parallel()

	res := execute(t, "stress", "--seeds", "2", "--ops", "100", "--keys", "16", "--parallel", "1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "#2")
	assert.Contains(t, res.stdout, "0 FAILED")
}

func TestStressCommandRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "format", args: []string{"--format", "xml"}, want: report.ErrUnknownFormat},
		{name: "keys", args: []string{"--keys", "0"}, want: config.ErrInvalidKeySpace},
		{name: "seeds", args: []string{"--seeds", "-1"}, want: config.ErrInvalidSeeds},
		{name: "parallel", args: []string{"--parallel", "0"}, want: config.ErrInvalidParallel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := execute(t, append([]string{"stress"}, tt.args...)...)
			require.ErrorIs(t, res.err, tt.want)
		})
	}
}

func TestBenchCommand(t *testing.T) {
	t.Parallel()

	chartPath := filepath.Join(t.TempDir(), "bench.html")

	res := execute(t, "bench", "--sizes", "10,200", "--chart", chartPath, "--format", "yaml")
	require.NoError(t, res.err)

	var samples []bench.Sample

	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &samples))
	require.Len(t, samples, 2)
	assert.Equal(t, 200, samples[1].Size)
	assert.LessOrEqual(t, float64(samples[1].Height), samples[1].Bound)

	html, err := os.ReadFile(chartPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Tree height")
	assert.Contains(t, res.stderr, "chart written")
}

func TestBenchCommandRejectsBadSizes(t *testing.T) {
	t.Parallel()

	res := execute(t, "bench", "--sizes", "10,-5")
	require.ErrorIs(t, res.err, config.ErrInvalidSizes)
}

func TestReplayCommand(t *testing.T) {
	t.Parallel()

	result, err := stress.RunCase(context.Background(), stress.Config{Ops: 400, KeySpace: 64, RemoveRatio: 0.3, Seed: 5})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "case-5.oplog")
	require.NoError(t, result.Log.WriteFile(path))

	res := execute(t, "replay", "--check", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "PASS")
	assert.Contains(t, res.stderr, "0 entries left")
}

func TestReplayCommandCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.oplog")
	require.NoError(t, os.WriteFile(path, []byte("RBOP\x01"), 0o600))

	res := execute(t, "replay", path)
	require.ErrorIs(t, res.err, oplog.ErrCorruptLog)
}

func TestReplayCommandNeedsFile(t *testing.T) {
	t.Parallel()

	res := execute(t, "replay")
	require.Error(t, res.err)
}
