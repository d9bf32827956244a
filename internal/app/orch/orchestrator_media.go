package orch

import (
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

func (o *Orchestrator) BindMediaHandlers(mc core.MediaConnection, sid core.SessionID) {
	mc.OnSnapshotChannel(func() { o.OnMediaReady(sid) })
	mc.OnSnapshot(func(f core.Frame) { o.OnSnapshot(sid, f) })
	mc.OnClosed(func() { o.OnMediaDisconnect(sid) })
}

func (o *Orchestrator) OnMediaDisconnect(sid core.SessionID) {
	if roomID, _, ok := o.Registry.RoomOf(sid); ok {
		o.unsubscribeMedia(roomID, sid)
	}
}

func (o *Orchestrator) unsubscribeMedia(roomID domain.RoomID, sid core.SessionID) {
	if o.Fanout != nil {
		o.Fanout.MarkSubscriberDelete(roomID, sid)
	}
}

// OnMediaReady subscribes sid's snapshot channel to its room once both the
// channel is open and the member has joined.
func (o *Orchestrator) OnMediaReady(sid core.SessionID) {
	if o.Fanout == nil {
		return
	}
	roomID, sess, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	mc := sess.Media()
	if mc == nil || mc.IsClosed() || !mc.SnapshotReady() {
		return
	}
	o.Fanout.AddSubscriber(roomID, sid, mc)
}
