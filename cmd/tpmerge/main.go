package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/canlog/tpmerge/internal/metrics"
	"github.com/canlog/tpmerge/internal/pipeline"
	"github.com/canlog/tpmerge/internal/sink"
	"github.com/canlog/tpmerge/internal/storage"
)

// Helper implementations live in dedicated files: version.go, config.go,
// job.go, logger.go, metrics_logger.go.

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("tpmerge %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel, cfg.logFile)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	jf, err := loadJobFile(cfg.jobPath)
	if err != nil {
		l.Error("job_load_error", "error", err)
		os.Exit(1)
	}
	job, storageCfg, err := jf.toJob(cfg)
	if err != nil {
		l.Error("job_config_error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	fs, err := storage.Setup(storageCfg)
	if err != nil {
		l.Error("storage_setup_error", "error", err)
		os.Exit(1)
	}

	// TODO: wire a DBC-based FrameDecoder once the dbc loader package lands;
	// until then signal rows only flow for embedders that supply a decoder.
	p := &pipeline.Pipeline{FS: fs}
	var flushSink func()
	if jf.Influx.Host != "" {
		p.Sink, flushSink = sink.Connect(jf.Influx.Host, jf.Influx.Token, jf.Influx.Org, jf.Influx.Bucket)
		defer flushSink()
	}

	res, rows, err := p.Run(ctx, job)
	if err != nil {
		l.Error("pipeline_error", "error", err)
		cancel()
		wg.Wait()
		os.Exit(1)
	}
	l.Info("done",
		"frames_out", len(res.Table),
		"synthesized", res.Stats.Synthesized,
		"forced_flushes", res.Stats.ForcedFlushes,
		"signal_rows", len(rows),
		"snapshot", job.SnapshotPath,
	)
	cancel()
	wg.Wait()
}
