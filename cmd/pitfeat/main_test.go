package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-db/pitfeat"
)

const testPipeline = `
base: interactions
output: session_features
stages:
  - name: candidates
    kind: candidate_counter
`

func seedTables(t *testing.T, path string) {
	t.Helper()
	cfg := pitfeat.DefaultSQLiteConfig()
	cfg.Path = path
	tables, err := pitfeat.OpenSQLiteTables(cfg)
	require.NoError(t, err)
	defer tables.Close()

	df := pitfeat.MustNewFrame(
		pitfeat.StringColumn("session_id", []string{"s1", "s1", "s2"}),
		pitfeat.NullableString("content_id_hashed", []string{"a", "", "c"}, []bool{true, false, true}),
	)
	require.NoError(t, tables.WriteTable(context.Background(), "interactions", df))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tables.db")
	cfgPath := filepath.Join(dir, "pipeline.yaml")
	metricsPath := filepath.Join(dir, "metrics.prom")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testPipeline), 0o644))
	seedTables(t, dbPath)

	o, err := parseFlags([]string{
		"-config", cfgPath,
		"-db", dbPath,
		"-store", "file",
		"-dir", filepath.Join(dir, "snapshots"),
		"-write-table", "session_features",
		"-metrics-file", metricsPath,
	})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, run(context.Background(), o, logger))

	backend, err := pitfeat.NewFileBackend(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	out, err := pitfeat.NewSnapshotStore(backend, "").Load(context.Background(), "session_features")
	require.NoError(t, err)
	counts, err := out.Column(pitfeat.ColSessionCandidateCount)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 1}, counts.Ints)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "pitfeat_stage_rows_total")

	cfg := pitfeat.DefaultSQLiteConfig()
	cfg.Path = dbPath
	tables, err := pitfeat.OpenSQLiteTables(cfg)
	require.NoError(t, err)
	defer tables.Close()
	written, err := tables.ReadTable(context.Background(), "session_features")
	require.NoError(t, err)
	assert.Equal(t, 3, written.Len())
	assert.True(t, written.Has(pitfeat.ColSessionCandidateCount))
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("unknown store", func(t *testing.T) {
		o, err := parseFlags([]string{"-db", filepath.Join(dir, "a.db"), "-store", "tape"})
		require.NoError(t, err)
		assert.ErrorContains(t, run(context.Background(), o, logger), "unknown snapshot backend")
	})

	t.Run("missing table", func(t *testing.T) {
		cfgPath := filepath.Join(dir, "pipeline.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte(testPipeline), 0o644))
		o, err := parseFlags([]string{"-config", cfgPath, "-db", filepath.Join(dir, "b.db"), "-store", "memory"})
		require.NoError(t, err)
		assert.ErrorContains(t, run(context.Background(), o, logger), "load table interactions")
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := newLogger(options{logLevel: "loud"})
		assert.Error(t, err)
	})
}
