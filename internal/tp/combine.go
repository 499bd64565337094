package tp

import (
	"context"
	"errors"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/canlog/tpmerge/internal/can"
	"github.com/canlog/tpmerge/internal/metrics"
)

// ErrNoTargets is returned when Combine is called without target identifiers.
var ErrNoTargets = errors.New("tp: no target identifiers configured")

// Options configure one Combine run.
type Options struct {
	Profile Profile

	// TargetIDs are the watched arbitration identifiers whose multi-frame
	// sequences get reassembled. Identifiers absent from the input are
	// silently skipped.
	TargetIDs []uint32

	// StrictCounters enables validation of the ISO-TP consecutive-frame
	// rolling counter. Gaps are counted in Stats.CounterGaps and the payload
	// is still appended in arrival order; the default (off) trusts arrival
	// order entirely, matching what loggers actually record.
	StrictCounters bool

	// Parallel bounds concurrent channel workers; <=0 means GOMAXPROCS.
	Parallel int
}

// Stats summarize one Combine run. ForcedFlushes counts sequences that were
// still accumulating when their channel's input ran out; their synthesized
// frames may be truncated.
type Stats struct {
	FramesIn      int
	Passthrough   int
	Synthesized   int
	Sequences     int
	ForcedFlushes int
	CounterGaps   int
}

func (s *Stats) add(o Stats) {
	s.FramesIn += o.FramesIn
	s.Passthrough += o.Passthrough
	s.Synthesized += o.Synthesized
	s.Sequences += o.Sequences
	s.ForcedFlushes += o.ForcedFlushes
	s.CounterGaps += o.CounterGaps
}

// Result is a merged frame table plus the run's statistics.
type Result struct {
	Table can.Table
	Stats Stats
}

// Combine reassembles multi-frame transport-protocol messages in table.
// Fragment frames of watched identifiers are replaced by synthesized frames
// carrying the concatenated payload, keyed at each sequence's start
// timestamp; everything else passes through unchanged. Channels are
// independent and processed concurrently; the output is re-sorted by
// timestamp with stable ties. The input table is not modified.
func Combine(ctx context.Context, table can.Table, opts Options) (Result, error) {
	if len(opts.TargetIDs) == 0 {
		return Result{}, ErrNoTargets
	}

	channels := table.SplitByChannel()
	chNums := make([]uint8, 0, len(channels))
	for ch := range channels {
		chNums = append(chNums, ch)
	}
	sort.Slice(chNums, func(i, j int) bool { return chNums[i] < chNums[j] })

	limit := opts.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	perChannel := make([]can.Table, len(chNums))
	chStats := make([]Stats, len(chNums))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, ch := range chNums {
		i, ch := i, ch
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perChannel[i], chStats[i] = combineChannel(channels[ch], opts)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	for i := range perChannel {
		res.Table = append(res.Table, perChannel[i]...)
		res.Stats.add(chStats[i])
	}
	res.Table.SortByTimestamp()

	metrics.AddFramesIn(res.Stats.FramesIn)
	metrics.AddPassthrough(res.Stats.Passthrough)
	metrics.AddSynthesized(res.Stats.Synthesized)
	metrics.AddSequences(res.Stats.Sequences)
	metrics.AddForcedFlushes(res.Stats.ForcedFlushes)
	metrics.AddCounterGaps(res.Stats.CounterGaps)
	return res, nil
}

// combineChannel assembles every watched identifier on one channel and merges
// the channel timeline: unconsumed frames keep their place, synthesized
// frames join at their sequence start timestamps.
func combineChannel(frames can.Table, opts Options) (can.Table, Stats) {
	// Classification is order-sensitive, so establish ascending timestamp
	// order before feeding the state machine.
	sorted := frames.Clone()
	sorted.SortByTimestamp()

	indexed := make([]indexedFrame, len(sorted))
	for i, f := range sorted {
		indexed[i] = indexedFrame{idx: i, f: f}
	}

	st := Stats{FramesIn: len(sorted)}
	consumed := make(map[int]bool)
	var synths can.Table
	for _, target := range opts.TargetIDs {
		synths = append(synths, assembleTarget(indexed, target, opts.Profile, opts.StrictCounters, &st, consumed)...)
	}

	out := make(can.Table, 0, len(sorted)-len(consumed)+len(synths))
	for i, f := range sorted {
		if !consumed[i] {
			out = append(out, f)
		}
	}
	st.Passthrough = len(out)
	out = append(out, synths...)
	out.SortByTimestamp()
	return out, st
}
