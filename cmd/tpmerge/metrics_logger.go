package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/canlog/tpmerge/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"frames_in", snap.FramesIn,
					"passthrough", snap.Passthrough,
					"synthesized", snap.Synthesized,
					"sequences", snap.Sequences,
					"forced_flushes", snap.ForcedFlushes,
					"counter_gaps", snap.CounterGaps,
					"decode_groups", snap.DecodeGroups,
					"signals", snap.Signals,
					"malformed_lines", snap.Malformed,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
