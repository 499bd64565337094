// Package record persists frame tables so a merged timeline can be replayed
// or handed to other tooling without re-running the combiner.
package record

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/canlog/tpmerge/internal/can"
)

// snapshotVersion is bumped on incompatible layout changes.
const snapshotVersion = 1

// Codec encodes/decodes frame-table snapshots as CBOR. Stateless and safe
// for concurrent use.
type Codec struct{}

// ErrVersion is returned when a snapshot was written by an incompatible
// layout version.
var ErrVersion = errors.New("record: unsupported snapshot version")

// ErrTruncated is returned when the underlying reader ends mid-snapshot.
var ErrTruncated = errors.New("record: truncated snapshot")

type snapshot struct {
	Version int         `cbor:"v"`
	Frames  []wireFrame `cbor:"frames"`
}

type wireFrame struct {
	Timestamp float64 `cbor:"ts"`
	Channel   uint8   `cbor:"ch"`
	ID        uint32  `cbor:"id"`
	DLC       uint8   `cbor:"dlc"`
	Length    uint16  `cbor:"len"`
	Data      []byte  `cbor:"data"`
}

// Encode packs a table into a single CBOR snapshot.
func (c *Codec) Encode(table can.Table) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.EncodeTo(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the snapshot to w and returns bytes written.
func (c *Codec) EncodeTo(w io.Writer, table can.Table) (int, error) {
	snap := snapshot{Version: snapshotVersion, Frames: make([]wireFrame, len(table))}
	for i, f := range table {
		snap.Frames[i] = wireFrame{
			Timestamp: f.Timestamp,
			Channel:   f.Channel,
			ID:        f.ID,
			DLC:       f.DLC,
			Length:    f.Length,
			Data:      f.Data,
		}
	}
	data, err := cbor.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("record encode: %w", err)
	}
	n, err := w.Write(data)
	if err != nil {
		return n, fmt.Errorf("record write: %w", err)
	}
	return n, nil
}

// Decode reads one snapshot from r.
func (c *Codec) Decode(r io.Reader) (can.Table, error) {
	var snap snapshot
	if err := cbor.NewDecoder(r).Decode(&snap); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("record decode: %w", ErrTruncated)
		}
		return nil, fmt.Errorf("record decode: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, snap.Version)
	}
	table := make(can.Table, len(snap.Frames))
	for i, f := range snap.Frames {
		table[i] = can.Frame{
			Timestamp: f.Timestamp,
			Channel:   f.Channel,
			ID:        f.ID,
			DLC:       f.DLC,
			Length:    f.Length,
			Data:      f.Data,
		}
	}
	return table, nil
}
