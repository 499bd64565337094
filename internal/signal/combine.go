// Package signal derives new signal series from decoded ones. It covers the
// common post-processing step of computing a synthetic signal from two
// decoded series that do not share sample points.
package signal

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/canlog/tpmerge/internal/decode"
)

// ErrMissingSignal is returned when a named input series has no rows.
var ErrMissingSignal = errors.New("signal: input series not found")

// ErrEmptyResult is returned when no output row could be produced, e.g. the
// two series never overlap in time.
var ErrEmptyResult = errors.New("signal: combination produced no rows")

// Combine merges series a and b from rows onto their union time axis with
// forward-fill, applies fn at every point where both sides have a value, and
// returns the result named name, sorted by timestamp. Points where fn yields
// NaN are dropped.
func Combine(rows []decode.Signal, a, b string, fn func(x, y float64) float64, name string) ([]decode.Signal, error) {
	sa := series(rows, a)
	if len(sa) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingSignal, a)
	}
	sb := series(rows, b)
	if len(sb) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingSignal, b)
	}

	// Union time axis, ascending. Duplicate timestamps across the two series
	// collapse to one point.
	axis := make([]float64, 0, len(sa)+len(sb))
	for _, p := range sa {
		axis = append(axis, p.Timestamp)
	}
	for _, p := range sb {
		axis = append(axis, p.Timestamp)
	}
	sort.Float64s(axis)
	axis = dedup(axis)

	var out []decode.Signal
	var ia, ib int
	var va, vb float64
	var hasA, hasB bool
	for _, ts := range axis {
		for ia < len(sa) && sa[ia].Timestamp <= ts {
			va, hasA = sa[ia].Value, true
			ia++
		}
		for ib < len(sb) && sb[ib].Timestamp <= ts {
			vb, hasB = sb[ib].Value, true
			ib++
		}
		if !hasA || !hasB {
			continue // forward-fill has nothing to carry yet
		}
		v := fn(va, vb)
		if math.IsNaN(v) {
			continue
		}
		out = append(out, decode.Signal{Timestamp: ts, Name: name, Value: v})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyResult, name)
	}
	return out, nil
}

// series extracts one named series in timestamp order (stable on ties).
func series(rows []decode.Signal, name string) []decode.Signal {
	var out []decode.Signal
	for _, r := range rows {
		if r.Name == name {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

func dedup(sorted []float64) []float64 {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
