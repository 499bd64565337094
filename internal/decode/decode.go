// Package decode bridges merged frame tables to a downstream signal decoder.
// The decoder itself is an external collaborator that requires every frame in
// one invocation to share a single declared payload length; this package only
// groups, fans out and re-merges.
package decode

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/canlog/tpmerge/internal/can"
	"github.com/canlog/tpmerge/internal/metrics"
)

// Signal is one decoded physical-value row.
type Signal struct {
	Timestamp float64
	Name      string
	Value     float64
}

// FrameDecoder decodes one group of frames that all share the same declared
// payload length. Implementations are expected to be stateless per call and
// safe for concurrent use.
type FrameDecoder interface {
	DecodeGroup(ctx context.Context, frames can.Table) ([]Signal, error)
}

// ByLength partitions table by declared payload length, forwards each group
// to dec concurrently, and returns the concatenated rows sorted by timestamp.
// Group processing order does not affect the result.
func ByLength(ctx context.Context, dec FrameDecoder, table can.Table) ([]Signal, error) {
	groups := make(map[uint16]can.Table)
	for _, f := range table {
		groups[f.Length] = append(groups[f.Length], f)
	}
	lengths := make([]uint16, 0, len(groups))
	for l := range groups {
		lengths = append(lengths, l)
	}
	sort.Slice(lengths, func(i, j int) bool { return lengths[i] < lengths[j] })

	// One result slot per group keeps concatenation order deterministic no
	// matter which goroutine finishes first.
	perGroup := make([][]Signal, len(lengths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, l := range lengths {
		i, l := i, l
		eg.Go(func() error {
			got, err := dec.DecodeGroup(ctx, groups[l])
			if err != nil {
				metrics.IncError(metrics.ErrDecode)
				return fmt.Errorf("decode group length=%d: %w", l, err)
			}
			metrics.IncDecodeGroup()
			metrics.AddSignals(len(got))
			perGroup[i] = got
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	var rows []Signal
	for _, got := range perGroup {
		rows = append(rows, got...)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	return rows, nil
}
