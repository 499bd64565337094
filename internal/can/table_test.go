package can

import (
	"bytes"
	"testing"
)

func TestSortByTimestampIsStable(t *testing.T) {
	table := Table{
		{Timestamp: 2.0, ID: 0x30},
		{Timestamp: 1.0, ID: 0x10},
		{Timestamp: 1.0, ID: 0x20}, // same timestamp, later input
	}
	table.SortByTimestamp()
	if table[0].ID != 0x10 || table[1].ID != 0x20 || table[2].ID != 0x30 {
		t.Fatalf("order: %#x %#x %#x", table[0].ID, table[1].ID, table[2].ID)
	}
}

func TestSplitByChannel(t *testing.T) {
	table := Table{
		{Timestamp: 1, Channel: 0, ID: 1},
		{Timestamp: 2, Channel: 1, ID: 2},
		{Timestamp: 3, Channel: 0, ID: 3},
	}
	parts := table.SplitByChannel()
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 1 {
		t.Fatalf("parts=%v", parts)
	}
	if parts[0][0].ID != 1 || parts[0][1].ID != 3 {
		t.Fatalf("channel 0 order: %+v", parts[0])
	}
}

func TestCloneIsDeep(t *testing.T) {
	table := Table{{Timestamp: 1, Data: []byte{1, 2, 3}}}
	clone := table.Clone()
	clone[0].Data[0] = 9
	if table[0].Data[0] != 1 {
		t.Fatalf("clone shares payload storage")
	}
}

func TestFrameCopy(t *testing.T) {
	f := Frame{ID: 0x7E8, Data: []byte{1, 2}}
	g := f.Copy()
	g.Data[0] = 9
	if f.Data[0] != 1 {
		t.Fatalf("copy shares payload storage")
	}
	if !bytes.Equal(g.Data, []byte{9, 2}) {
		t.Fatalf("copy data=% X", g.Data)
	}
}

func TestParseID(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"7E8", 0x7E8, true},
		{"0x7E8", 0x7E8, true},
		{" 1CECFF00 ", 0x1CECFF00, true},
		{"", 0, false},
		{"zz", 0, false},
		{"1FFFFFFFF", 0, false}, // exceeds 32 bits
	}
	for _, tc := range cases {
		got, err := ParseID(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseID(%q) err=%v", tc.in, err)
		}
		if err == nil && got != tc.want {
			t.Fatalf("ParseID(%q)=%#x, want %#x", tc.in, got, tc.want)
		}
	}
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList([]string{"7E8", "7E9"})
	if err != nil || len(ids) != 2 || ids[0] != 0x7E8 || ids[1] != 0x7E9 {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
	if _, err := ParseIDList([]string{"7E8", "bad!"}); err == nil {
		t.Fatalf("expected error")
	}
}
