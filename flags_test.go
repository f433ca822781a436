package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"netlatlab/config"
	"netlatlab/runstore"
	"netlatlab/stats"
)

func TestParseFlagsDefaults(t *testing.T) {
	cli, cfg, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, cli.ConfigPath)
	assert.Equal(t, config.Default(), cfg)
}

func TestParseFlagsPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 50000
batch_size: 64
queue_capacity: 8192
output_path: from-file.bin
`), 0o644))

	t.Setenv("NLL_BATCH", "128")
	t.Setenv("NLL_WORK", "5us")

	cli, cfg, err := parseFlags([]string{
		"-config", path,
		"-port", "50001",
		"-single-thread",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, path, cli.ConfigPath)
	assert.Equal(t, 50001, cfg.Port, "flag beats file")
	assert.Equal(t, 128, cfg.BatchSize, "env beats file")
	assert.Equal(t, 8192, cfg.QueueCapacity, "file beats default")
	assert.Equal(t, "from-file.bin", cfg.OutputPath)
	assert.Equal(t, 5*time.Microsecond, cfg.ProcessingDelay)
	assert.True(t, cfg.SingleThread)
	assert.Equal(t, config.Default().WorkerCPU, cfg.WorkerCPU)
}

func TestParseFlagsEnvConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_packets: 42\n"), 0o644))
	t.Setenv("NLL_CONFIG", path)

	_, cfg, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.MaxPackets)
}

func TestParseFlagsErrors(t *testing.T) {
	_, _, err := parseFlags([]string{"-nope"}, io.Discard)
	require.Error(t, err)

	_, _, err = parseFlags([]string{"-h"}, io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))

	_, _, err = parseFlags([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, io.Discard)
	require.Error(t, err)
}

func TestParseFlagsBadEnvValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 5555\n"), 0o644))

	cases := map[string]string{
		"NLL_PORT":          "not-a-number",
		"NLL_MAX_PACKETS":   "-3",
		"NLL_TIMEOUT":       "soon",
		"NLL_SINGLE_THREAD": "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, _, err := parseFlags([]string{"-config", path}, io.Discard)
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrInvalid), "got %v", err)
			assert.Contains(t, err.Error(), key)
		})
	}

	t.Setenv("NLL_PORT", "")
	_, cfg, err := parseFlags([]string{"-config", path}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 5555, cfg.Port, "file value survives an empty variable")
}

func TestExitErrorOnlySocketFailureIsFatal(t *testing.T) {
	sockErr := errors.New("ingest: receive: boom")
	assert.NoError(t, exitError(nil, errors.New("close"), errors.New("summary")))
	assert.ErrorIs(t, exitError(sockErr, nil, errors.New("summary")), sockErr)
	assert.NoError(t, exitError(nil, nil, nil))
}

func TestRunValidateOnly(t *testing.T) {
	require.NoError(t, run([]string{"-validate", "-log-level", "error"}))

	err := run([]string{"-validate", "-queue", "1000", "-log-level", "error"})
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestReportWritesSinks(t *testing.T) {
	dir := t.TempDir()
	store, err := runstore.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	r := runstore.NewRun(config.Default())
	r.Stats = stats.Snapshot{Received: 5, Processed: 4, Dropped: 1}
	r.EndedAt = r.StartedAt.Add(time.Second)
	summary := filepath.Join(dir, "out", "summary.json")
	require.NoError(t, report(context.Background(), summary, store, r))

	raw, err := os.ReadFile(summary)
	require.NoError(t, err)
	var snap stats.Snapshot
	require.NoError(t, sonnet.Unmarshal(raw, &snap))
	assert.Equal(t, r.Stats, snap)

	got, err := store.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.Stats.Processed)
}
