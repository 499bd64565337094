package can

// SocketCAN flag bits for can_id (same values as <linux/can.h>)
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// Frame is one logged bus frame. Timestamp is seconds relative to whatever
// epoch the logger used; it is the sole ordering key and need not be unique.
// ID may carry EFF/RTR/ERR flags in its upper bits like SocketCAN.
// Length is the declared payload length column; raw frames carry 0..64 bytes
// but a reassembled transport-protocol frame can exceed that, so Data is a
// slice rather than a fixed array. DLC is the raw DLC code column; frames
// synthesized from a multi-frame sequence set it to 0 because no single
// physical DLC applies.
type Frame struct {
	Timestamp float64
	Channel   uint8
	ID        uint32
	DLC       uint8
	Length    uint16
	Data      []byte
}

// Copy returns a deep copy; Data is cloned so the copy owns its payload.
func (f Frame) Copy() Frame {
	g := f
	g.Data = append([]byte(nil), f.Data...)
	return g
}
