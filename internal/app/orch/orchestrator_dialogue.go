package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/dialogue"
)

// OnDialogue relays a dialogue frame from sid. Leader-origin kinds from a
// member that does not hold the seat are dropped; everything else is
// stamped with the sender and forwarded by target.
func (o *Orchestrator) OnDialogue(sid core.SessionID, data core.Frame) error {
	w, err := dialogue.ParseWire(data)
	if err != nil {
		metricRejected.WithLabelValues("dialogue", "bad_frame").Inc()
		return err
	}
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		metricRejected.WithLabelValues("dialogue", "no_room").Inc()
		return ErrNotInRoom
	}
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	isLeader := room.IsLeader(sid)
	if w.Kind.LeaderOrigin() && !isLeader {
		metricRejected.WithLabelValues("dialogue", "sender_not_leader").Inc()
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("kind", string(w.Kind)).Msg("dropping leader message from non-leader")
		return ErrNotLeader
	}
	w.From = string(sid)
	w.FromLeader = isLeader
	frame, err := w.Marshal()
	if err != nil {
		return err
	}

	metricRelayed.WithLabelValues(string(w.Kind), string(w.Target)).Inc()
	switch w.Target {
	case dialogue.TargetLeader:
		leader := room.Leader()
		if leader == "" || leader == sid {
			return nil
		}
		if err := room.SendTo(leader, frame); err != nil {
			if ms, ok := room.Member(leader); ok {
				o.handleDrops(room, core.PublishResult{Dropped: []core.MemberSession{ms}}, app.ClassDialogue)
			}
			return nil
		}
	default:
		// The sender has already applied TargetAll locally.
		o.handleDrops(room, room.Broadcast(sid, frame), app.ClassDialogue)
	}
	return nil
}

// OnSnapshot relays a leader snapshot. Members with an open data channel get
// it there, the rest over their signal connection.
func (o *Orchestrator) OnSnapshot(sid core.SessionID, data core.Frame) {
	if _, err := dialogue.DecodeSnapshot(data); err != nil {
		metricRejected.WithLabelValues("snapshot", "malformed").Inc()
		return
	}
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return
	}
	if !room.IsLeader(sid) {
		metricRejected.WithLabelValues("snapshot", "sender_not_leader").Inc()
		return
	}

	var reached map[core.SessionID]bool
	if o.Fanout != nil {
		reached = o.Fanout.Publish(roomID, sid, data)
	}
	metricSnapshots.WithLabelValues("datachannel").Add(float64(len(reached)))
	res := room.BroadcastBinary(sid, data, func(s core.SessionID) bool { return reached[s] })
	metricSnapshots.WithLabelValues("websocket").Add(float64(res.SendTo))
	o.handleDrops(room, res, app.ClassSnapshot)
}
