package st

import (
	"encoding/hex"
	"fmt"

	"github.com/sarchlab/avalonbus/signal"
)

// A Beat is one bus cycle of a packet that is built by the caller rather
// than framed from bytes. Fields whose wire does not exist must be zero.
type Beat struct {
	Data          signal.Word
	StartOfPacket bool
	EndOfPacket   bool
	Empty         uint64
	Channel       uint64
	Error         uint64

	// Idle beats keep valid low for one cycle and do not wait for ready.
	Idle bool
}

// A ChannelPacket is a packet delivered together with the channel it was
// received on.
type ChannelPacket struct {
	Data    []byte
	Channel int
}

func (p ChannelPacket) String() string {
	return fmt.Sprintf("%s@%d", hex.EncodeToString(p.Data), p.Channel)
}
