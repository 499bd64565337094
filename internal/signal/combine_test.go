package signal

import (
	"errors"
	"math"
	"testing"

	"github.com/canlog/tpmerge/internal/decode"
)

func row(ts float64, name string, v float64) decode.Signal {
	return decode.Signal{Timestamp: ts, Name: name, Value: v}
}

func TestCombine_ForwardFill(t *testing.T) {
	rows := []decode.Signal{
		row(1.0, "speed", 10),
		row(2.0, "rpm", 2000),
		row(3.0, "speed", 20),
		row(4.0, "rpm", 3000),
	}
	got, err := Combine(rows, "speed", "rpm", func(x, y float64) float64 { return y / x }, "rpm_per_speed")
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	// speed has no rpm partner at t=1.0, so the axis starts at 2.0.
	want := []decode.Signal{
		row(2.0, "rpm_per_speed", 200),
		row(3.0, "rpm_per_speed", 100),
		row(4.0, "rpm_per_speed", 150),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCombine_SharedTimestampsCollapse(t *testing.T) {
	rows := []decode.Signal{
		row(1.0, "a", 1),
		row(1.0, "b", 2),
		row(2.0, "a", 3),
		row(2.0, "b", 4),
	}
	got, err := Combine(rows, "a", "b", func(x, y float64) float64 { return x + y }, "sum")
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(got) != 2 || got[0].Value != 3 || got[1].Value != 7 {
		t.Fatalf("got %+v", got)
	}
}

func TestCombine_MissingSignal(t *testing.T) {
	rows := []decode.Signal{row(1.0, "a", 1)}
	if _, err := Combine(rows, "a", "nope", func(x, y float64) float64 { return x }, "out"); !errors.Is(err, ErrMissingSignal) {
		t.Fatalf("err=%v, want ErrMissingSignal", err)
	}
}

func TestCombine_NaNRowsDropped(t *testing.T) {
	rows := []decode.Signal{
		row(1.0, "a", 0),
		row(1.0, "b", 0),
		row(2.0, "a", 4),
		row(2.0, "b", 2),
	}
	got, err := Combine(rows, "a", "b", func(x, y float64) float64 {
		if x == 0 && y == 0 {
			return math.NaN()
		}
		return x / y
	}, "ratio")
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(got) != 1 || got[0].Value != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestCombine_NoOverlap(t *testing.T) {
	rows := []decode.Signal{row(1.0, "a", 1)}
	rows = append(rows, row(2.0, "b", math.NaN()))
	if _, err := Combine(rows, "a", "b", func(x, y float64) float64 { return math.NaN() }, "out"); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err=%v, want ErrEmptyResult", err)
	}
}
