package fanout

import (
	"sync/atomic"

	"github.com/dkeye/Classroom/internal/core"
)

type ChannelState int32

const (
	ChannelStateOk ChannelState = iota
	ChannelStateMuted
	ChannelStateDelete
)

// OutChannel is a single outgoing snapshot channel to a subscriber.
type OutChannel struct {
	Ch    core.SnapshotChannel
	state atomic.Int32 // Zero by default (ChannelStateOk)
}

func NewOutChannel(ch core.SnapshotChannel) *OutChannel {
	return &OutChannel{Ch: ch}
}

func (oc *OutChannel) GetState() ChannelState {
	return ChannelState(oc.state.Load())
}

func (oc *OutChannel) MarkOk() {
	oc.state.Store(int32(ChannelStateOk))
}

func (oc *OutChannel) MarkMuted() {
	oc.state.Store(int32(ChannelStateMuted))
}

func (oc *OutChannel) MarkDelete() {
	oc.state.Store(int32(ChannelStateDelete))
}
