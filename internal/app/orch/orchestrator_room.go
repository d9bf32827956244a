package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// Connect binds a fresh signal session. A previous connection with the same
// token loses its room membership and media.
func (o *Orchestrator) Connect(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	if old, ok := o.Registry.GetSession(sid); ok && old != sess {
		o.Leave(sid)
		if mc := old.Media(); mc != nil {
			mc.Close()
		}
	}
	o.Registry.BindSignal(sid, sess, cancel)
}

func (o *Orchestrator) CreateRoom(name string) core.RoomService {
	return o.Rooms.CreateRoom(domain.RoomName(name))
}

// Join moves sid into roomID, leaving its current room first. The first
// member of an empty room takes the leader seat.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID) (core.RoomService, error) {
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, ErrNoSession
	}
	if current, _, ok := o.Registry.RoomOf(sid); ok {
		if current == roomID {
			return room, nil
		}
		o.Leave(sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(current)).Msg("left previous room")
	}

	became := room.AddMember(sid, session)
	o.Registry.UpdateRoom(sid, roomID)
	metricMembers.Inc()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("added to room")

	o.OnMediaReady(sid)

	user, _ := o.Registry.User(sid)
	o.broadcastJSON(room, sid, MemberEvent{Type: "member_joined", SID: sid, User: user})
	if became {
		metricLeaderChanges.WithLabelValues("join").Inc()
		o.announceLeader(room)
	}
	return room, nil
}

// Leave removes sid from its room. If sid held the leader seat it migrates
// to the oldest remaining member and everyone is told.
func (o *Orchestrator) Leave(sid core.SessionID) (domain.RoomID, bool) {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return "", false
	}
	o.unsubscribeMedia(roomID, sid)
	o.Registry.RemoveRoom(sid)

	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return roomID, true
	}
	next, changed := room.RemoveMember(sid)
	metricMembers.Dec()

	user, _ := o.Registry.User(sid)
	o.broadcastJSON(room, sid, MemberEvent{Type: "member_left", SID: sid, User: user})
	if changed && next != "" {
		metricLeaderChanges.WithLabelValues("migrate").Inc()
		log.Info().Str("module", "orch").Str("room", string(roomID)).Str("from", string(sid)).Str("to", string(next)).Msg("leader left; seat migrated")
		o.announceLeader(room)
	}
	return roomID, true
}

// KickBySID removes sid from its room and tells it so.
func (o *Orchestrator) KickBySID(sid core.SessionID) bool {
	if _, ok := o.Leave(sid); !ok {
		return false
	}
	if sess, ok := o.Registry.GetSession(sid); ok {
		o.sendJSON(sess.Signal(), map[string]string{"type": "left"})
	}
	return true
}

// Disconnect is called when a signal connection ends. It is a no-op if sess
// was already replaced by a newer connection for the same sid.
func (o *Orchestrator) Disconnect(sid core.SessionID, sess core.MemberSession) {
	if current, ok := o.Registry.GetSession(sid); !ok || current != sess {
		return
	}
	o.Leave(sid)
	if mc := sess.Media(); mc != nil {
		mc.Close()
	}
	o.Registry.Unbind(sid, sess)
}

// SetLeader hands the seat to sid explicitly.
func (o *Orchestrator) SetLeader(roomID domain.RoomID, sid core.SessionID) error {
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if room.IsLeader(sid) {
		return nil
	}
	if err := room.SetLeader(sid); err != nil {
		return err
	}
	metricLeaderChanges.WithLabelValues("explicit").Inc()
	o.announceLeader(room)
	return nil
}

func (o *Orchestrator) EvictRoom(id domain.RoomID) bool {
	if _, ok := o.Rooms.GetRoom(id); !ok {
		return false
	}
	for _, snap := range o.Registry.MembersOfRoom(id) {
		o.KickBySID(snap.SID)
	}
	o.Rooms.StopRoom(id)
	if o.Fanout != nil {
		o.Fanout.StopRoom(id)
	}
	return true
}

func (o *Orchestrator) announceLeader(room core.RoomService) {
	o.broadcastJSON(room, "", LeaderEvent{Type: "leader", Room: room.Room().ID, SID: room.Leader()})
}
