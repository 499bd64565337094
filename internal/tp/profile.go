package tp

import (
	"fmt"

	"github.com/canlog/tpmerge/internal/can"
)

// Profile describes one transport-protocol grammar: the bit masks and tags
// that classify a frame's first payload byte, the offsets where real payload
// starts in first and consecutive frames, and (J1939 only) the broadcast
// announce identifier. Profiles are immutable configuration; build one with
// UDS, NMEA or J1939 and pass it to Combine.
type Profile struct {
	SingleMask byte
	FirstMask  byte
	ConseqMask byte
	SingleTag  byte
	FirstTag   byte
	ConseqTag  byte

	// Byte offset where the accumulated payload starts within a first frame
	// and a consecutive frame respectively.
	FirstPayloadStart  int
	ConseqPayloadStart int

	// BAMID is the broadcast announce identifier on the bus. When HasBAM is
	// set, first frames are matched by arrival identifier instead of a bit
	// tag, and consecutive frames are matched by the target identifier while
	// a sequence is accumulating.
	BAMID  uint32
	HasBAM bool
}

// UDS returns the ISO-TP/UDS profile. All three tags live in the high nibble
// of the first payload byte: 0x0 single, 0x1 first, 0x2 consecutive.
func UDS() Profile {
	return Profile{
		SingleMask:         0xF0,
		FirstMask:          0xF0,
		ConseqMask:         0xF0,
		SingleTag:          0x00,
		FirstTag:           0x10,
		ConseqTag:          0x20,
		FirstPayloadStart:  2,
		ConseqPayloadStart: 1,
	}
}

// NMEA returns the NMEA 2000 fast-packet profile. A single frame is a
// self-contained payload whose whole first byte equals the 0xFF sentinel; a
// zero low nibble marks the first frame of a fast packet and everything else
// is a continuation.
func NMEA() Profile {
	return Profile{
		SingleMask:         0xFF,
		FirstMask:          0x0F,
		ConseqMask:         0x00,
		SingleTag:          0xFF,
		FirstTag:           0x00,
		ConseqTag:          0x00,
		FirstPayloadStart:  0,
		ConseqPayloadStart: 1,
	}
}

// J1939 returns the J1939 BAM profile. The announce frame is matched purely
// by the broadcast identifier; its payload carries only metadata (the PGN of
// the upcoming sequence in bytes 5..7), so the first-frame payload start of 8
// contributes nothing. Data frames arrive on the target identifier.
func J1939(bamIDHex string) (Profile, error) {
	bamID, err := can.ParseID(bamIDHex)
	if err != nil {
		return Profile{}, fmt.Errorf("j1939 profile: %w", err)
	}
	return Profile{
		SingleMask:         0xFF,
		FirstMask:          0xFF,
		ConseqMask:         0x00,
		SingleTag:          0xFF,
		FirstTag:           0x20,
		ConseqTag:          0x00,
		FirstPayloadStart:  8,
		ConseqPayloadStart: 1,
		BAMID:              bamID,
		HasBAM:             true,
	}, nil
}

// frameClass is the classification of one frame under a profile.
type frameClass int

const (
	classUnrelated frameClass = iota
	classSingle
	classFirst
	classConseq
)

// classify buckets a frame by its first payload byte and arrival identifier.
// accumulating reports whether a sequence is currently open for the target;
// BAM continuation frames are only recognized while one is.
func (p Profile) classify(arrivalID uint32, first byte, accumulating bool) frameClass {
	if p.HasBAM {
		if first&p.SingleMask == p.SingleTag {
			return classSingle
		}
		if arrivalID == p.BAMID {
			return classFirst
		}
		if accumulating {
			return classConseq
		}
		return classUnrelated
	}
	switch {
	case first&p.SingleMask == p.SingleTag:
		return classSingle
	case first&p.FirstMask == p.FirstTag:
		return classFirst
	case first&p.ConseqMask == p.ConseqTag:
		return classConseq
	}
	return classUnrelated
}
