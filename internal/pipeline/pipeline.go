// Package pipeline ties the stages together: fetch a frame log from storage,
// reassemble transport-protocol sequences, persist the merged table, and
// optionally decode and ship signal rows. The signal decoder stays an
// external collaborator supplied by the embedder; without one the pipeline
// stops after the merge.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/canlog/tpmerge/internal/can"
	"github.com/canlog/tpmerge/internal/canlog"
	"github.com/canlog/tpmerge/internal/decode"
	"github.com/canlog/tpmerge/internal/logging"
	"github.com/canlog/tpmerge/internal/metrics"
	"github.com/canlog/tpmerge/internal/record"
	"github.com/canlog/tpmerge/internal/sink"
	"github.com/canlog/tpmerge/internal/storage"
	"github.com/canlog/tpmerge/internal/tp"
)

// Job describes one run.
type Job struct {
	InputPath string
	Format    canlog.Format

	Profile        tp.Profile
	TargetIDs      []uint32
	StrictCounters bool
	Parallel       int

	// SnapshotPath, when set, receives the merged table as a CBOR snapshot
	// on local disk.
	SnapshotPath string
}

// Pipeline holds the collaborators. FS is required; Decoder and Sink are
// optional.
type Pipeline struct {
	FS      storage.Filesystem
	Decoder decode.FrameDecoder
	Sink    *sink.Influx
}

// Run executes job and returns the merge result plus any decoded rows.
func (p *Pipeline) Run(ctx context.Context, job Job) (tp.Result, []decode.Signal, error) {
	rc, err := p.FS.Open(ctx, job.InputPath)
	if err != nil {
		metrics.IncError(metrics.ErrStorage)
		return tp.Result{}, nil, fmt.Errorf("pipeline: %w", err)
	}
	table, err := canlog.Read(rc, job.Format)
	_ = rc.Close()
	if err != nil {
		metrics.IncError(metrics.ErrLogRead)
		return tp.Result{}, nil, fmt.Errorf("pipeline: %w", err)
	}

	res, err := tp.Combine(ctx, table, tp.Options{
		Profile:        job.Profile,
		TargetIDs:      job.TargetIDs,
		StrictCounters: job.StrictCounters,
		Parallel:       job.Parallel,
	})
	if err != nil {
		return tp.Result{}, nil, fmt.Errorf("pipeline: %w", err)
	}
	logging.L().Info("combine_done",
		"frames_in", res.Stats.FramesIn,
		"synthesized", res.Stats.Synthesized,
		"sequences", res.Stats.Sequences,
		"forced_flushes", res.Stats.ForcedFlushes,
	)
	if res.Stats.ForcedFlushes > 0 {
		logging.L().Warn("forced_flushes", "count", res.Stats.ForcedFlushes)
	}

	if job.SnapshotPath != "" {
		if err := writeSnapshot(job.SnapshotPath, res.Table); err != nil {
			metrics.IncError(metrics.ErrSnapshot)
			return tp.Result{}, nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	var rows []decode.Signal
	if p.Decoder != nil {
		rows, err = decode.ByLength(ctx, p.Decoder, res.Table)
		if err != nil {
			return tp.Result{}, nil, fmt.Errorf("pipeline: %w", err)
		}
		p.Sink.WriteSignals(rows)
	}
	return res, rows, nil
}

func writeSnapshot(path string, table can.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot create: %w", err)
	}
	codec := record.Codec{}
	if _, err := codec.EncodeTo(f, table); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot close: %w", err)
	}
	return nil
}
