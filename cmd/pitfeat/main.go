// Command pitfeat runs a feature pipeline over tables stored in SQLite and
// saves the result as a snapshot.
//
//	pitfeat -config pipeline.yaml -db tables.db -store file -dir snapshots
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chronicle-db/pitfeat"
)

type options struct {
	configPath  string
	dbPath      string
	store       string
	dir         string
	prefix      string
	bucket      string
	region      string
	endpoint    string
	pathStyle   bool
	writeTable  string
	metricsFile string
	list        bool
	logLevel    string
	logJSON     bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("pitfeat", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "pipeline.yaml", "pipeline definition")
	fs.StringVar(&o.dbPath, "db", "pitfeat.db", "SQLite database holding the input tables")
	fs.StringVar(&o.store, "store", "file", "snapshot backend: file, s3, sqlite or memory")
	fs.StringVar(&o.dir, "dir", "snapshots", "snapshot directory for the file backend")
	fs.StringVar(&o.prefix, "prefix", "", "snapshot key prefix")
	fs.StringVar(&o.bucket, "bucket", "", "S3 bucket")
	fs.StringVar(&o.region, "region", "", "S3 region")
	fs.StringVar(&o.endpoint, "endpoint", "", "S3-compatible endpoint")
	fs.BoolVar(&o.pathStyle, "path-style", false, "use path-style S3 addressing")
	fs.StringVar(&o.writeTable, "write-table", "", "also write the result to this SQLite table")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "write stage metrics in text format to this file")
	fs.BoolVar(&o.list, "list", false, "list stored snapshots and exit")
	fs.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&o.logJSON, "log-json", false, "log as JSON")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func newLogger(o options) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	hopts := &slog.HandlerOptions{Level: level}
	if o.logJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts)), nil
}

func openBackend(ctx context.Context, o options, tables *pitfeat.SQLiteTables) (pitfeat.StorageBackend, error) {
	switch o.store {
	case "file":
		return pitfeat.NewFileBackend(o.dir)
	case "s3":
		cfg := pitfeat.S3BackendConfig{
			Bucket:       o.bucket,
			Region:       o.region,
			Endpoint:     o.endpoint,
			UsePathStyle: o.pathStyle,
			Retry:        pitfeat.DefaultRetryConfig(),
		}
		return pitfeat.NewS3Backend(ctx, cfg)
	case "sqlite":
		return tables.Snapshots(), nil
	case "memory":
		return pitfeat.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", o.store)
}

func run(ctx context.Context, o options, logger *slog.Logger) error {
	sqlCfg := pitfeat.DefaultSQLiteConfig()
	sqlCfg.Path = o.dbPath
	tables, err := pitfeat.OpenSQLiteTables(sqlCfg)
	if err != nil {
		return err
	}
	defer tables.Close()

	backend, err := openBackend(ctx, o, tables)
	if err != nil {
		return err
	}
	defer backend.Close()
	store := pitfeat.NewSnapshotStore(backend, o.prefix)

	if o.list {
		names, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	cfg, err := pitfeat.LoadPipelineConfig(o.configPath)
	if err != nil {
		return err
	}
	p, err := cfg.Build()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	p.Logger = logger
	p.Metrics = pitfeat.NewMetrics(reg)

	in := make(pitfeat.Tables)
	for _, name := range p.Tables() {
		f, err := tables.ReadTable(ctx, name)
		if err != nil {
			return fmt.Errorf("load table %s: %w", name, err)
		}
		logger.Info("table loaded", "table", name, "rows", f.Len(), "columns", f.Width())
		in[name] = f
	}

	out, err := p.Run(ctx, in)
	if o.metricsFile != "" {
		if werr := prometheus.WriteToTextfile(o.metricsFile, reg); werr != nil {
			logger.Warn("failed to write metrics", "path", o.metricsFile, "err", werr)
		}
	}
	if err != nil {
		return err
	}

	if err := store.Save(ctx, cfg.Output, out); err != nil {
		return err
	}
	logger.Info("snapshot saved", "name", cfg.Output, "store", o.store, "rows", out.Len())

	if o.writeTable != "" {
		if err := tables.WriteTable(ctx, o.writeTable, out); err != nil {
			return err
		}
		logger.Info("table written", "table", o.writeTable)
	}
	return nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	logger, err := newLogger(o)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o, logger); err != nil {
		logger.Error("pitfeat failed", "err", err)
		cancel()
		os.Exit(1)
	}
}
