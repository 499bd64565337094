package can

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Table is an ordered collection of frames. Insertion order carries no
// meaning on its own; callers re-derive order with SortByTimestamp, which is
// stable so frames with equal timestamps keep their relative input order.
type Table []Frame

// SortByTimestamp sorts the table in place, ascending, stable on ties.
func (t Table) SortByTimestamp() {
	sort.SliceStable(t, func(i, j int) bool { return t[i].Timestamp < t[j].Timestamp })
}

// SplitByChannel partitions the table per bus channel. Frames keep their
// relative order within each partition.
func (t Table) SplitByChannel() map[uint8]Table {
	out := make(map[uint8]Table)
	for _, f := range t {
		out[f.Channel] = append(out[f.Channel], f)
	}
	return out
}

// Clone deep-copies the table including payloads.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for i, f := range t {
		out[i] = f.Copy()
	}
	return out
}

// ParseID parses a hexadecimal arbitration identifier ("18EBFF00", "0x7E8").
func ParseID(s string) (uint32, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if h == "" {
		return 0, fmt.Errorf("parse id: empty identifier")
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse id %q: %w", s, err)
	}
	return uint32(v), nil
}

// ParseIDList parses a list of hexadecimal identifiers, preserving order.
func ParseIDList(ss []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(ss))
	for _, s := range ss {
		id, err := ParseID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
