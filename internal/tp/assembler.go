package tp

import (
	"github.com/canlog/tpmerge/internal/can"
)

// sequence is the transient accumulator for one in-flight multi-frame message
// on a (channel, target identifier) pair. It exists between the first frame
// that opens it and the flush that consumes it.
type sequence struct {
	open        bool
	payload     []byte
	start       float64
	idOverride  uint32
	hasOverride bool

	// strict-mode rolling counter tracking (ISO-TP low nibble)
	expect     byte
	haveExpect bool
}

// indexedFrame pairs a frame with its position in the channel's
// timestamp-sorted table so consumed fragments can be removed later.
type indexedFrame struct {
	idx int
	f   can.Frame
}

// synthesize builds a replacement frame from a template and an accumulated
// payload. All non-payload columns come from the template; the DLC code is
// zeroed because the result no longer has a single physical DLC, and the
// arbitration id is overridden only when the assembler reconstructed one
// (J1939 BAM).
func synthesize(template can.Frame, ts float64, payload []byte, idOverride uint32, hasOverride bool) can.Frame {
	f := template.Copy()
	f.Timestamp = ts
	f.Data = append([]byte(nil), payload...)
	f.Length = uint16(len(payload))
	f.DLC = 0
	if hasOverride {
		f.ID = idOverride
	}
	return f
}

// pgnToID reassembles the 24-bit PGN announced in a BAM frame (payload bytes
// 5..7, little-endian) into a 29-bit extended arbitration id with priority 6
// and destination 254.
func pgnToID(data []byte) uint32 {
	pgn := uint32(data[7])<<16 | uint32(data[6])<<8 | uint32(data[5])
	return 6<<26 | pgn<<8 | 254
}

// assembleTarget runs the Idle/Accumulating state machine for one target
// identifier over one channel's frames (already sorted ascending by
// timestamp). It returns the synthesized frames for this target and marks
// consumed fragment positions in consumed. Frames for other identifiers are
// never inspected; watched frames whose byte pattern matches no tag are left
// untouched so they pass through.
func assembleTarget(frames []indexedFrame, target uint32, p Profile, strict bool, st *Stats, consumed map[int]bool) can.Table {
	var (
		synths   can.Table
		template *can.Frame
		seq      sequence
	)

	flush := func(forced bool) {
		if !seq.open {
			return
		}
		seq.open = false
		if len(seq.payload) == 0 || template == nil {
			return
		}
		synths = append(synths, synthesize(*template, seq.start, seq.payload, seq.idOverride, seq.hasOverride))
		st.Synthesized++
		if forced {
			st.ForcedFlushes++
		}
	}

	for _, it := range frames {
		f := it.f
		if f.ID != target && !(p.HasBAM && f.ID == p.BAMID) {
			continue
		}
		if template == nil {
			tf := f.Copy()
			template = &tf
		}
		if len(f.Data) == 0 {
			continue
		}

		switch p.classify(f.ID, f.Data[0], seq.open) {
		case classSingle:
			// Self-contained message: emit immediately, leading type byte
			// stripped. Does not disturb an in-flight sequence.
			synths = append(synths, synthesize(*template, f.Timestamp, f.Data[1:], 0, false))
			st.Synthesized++
			consumed[it.idx] = true

		case classFirst:
			// A dropped terminal frame must not leak into the next message:
			// flush whatever has accumulated before starting over.
			flush(false)
			seq = sequence{open: true, start: f.Timestamp}
			if p.HasBAM && len(f.Data) >= 8 {
				seq.idOverride = pgnToID(f.Data)
				seq.hasOverride = true
			}
			if p.FirstPayloadStart < len(f.Data) {
				seq.payload = append(seq.payload, f.Data[p.FirstPayloadStart:]...)
			}
			if strict {
				seq.expect, seq.haveExpect = 1, true
			}
			st.Sequences++
			consumed[it.idx] = true

		case classConseq:
			if !seq.open {
				// Continuation with no open sequence: nothing to append to,
				// pass the frame through untouched.
				continue
			}
			if strict && seq.haveExpect && p.ConseqMask == 0xF0 {
				got := f.Data[0] & 0x0F
				if got != seq.expect {
					st.CounterGaps++
				}
				seq.expect = (got + 1) & 0x0F
			}
			if p.ConseqPayloadStart < len(f.Data) {
				seq.payload = append(seq.payload, f.Data[p.ConseqPayloadStart:]...)
			}
			consumed[it.idx] = true

		case classUnrelated:
			// Permissive default: not a protocol violation, just not ours.
		}
	}

	// End of stream: emit whatever is left rather than dropping a partial
	// message on the floor. Surfaced via Stats.ForcedFlushes.
	flush(true)
	return synths
}
