package orch

import (
	"errors"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/app/fanout"
	"github.com/dkeye/Classroom/internal/core"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNoSession    = errors.New("no session")
	ErrNotInRoom    = errors.New("not in a room")
	ErrNotLeader    = errors.New("sender is not the room leader")
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Fanout   *fanout.Manager
}

// handleDrops applies the backpressure policy to members whose queue was full.
func (o *Orchestrator) handleDrops(room core.RoomService, res core.PublishResult, class app.FrameClass) {
	if len(res.Dropped) > 0 {
		metricBackpressure.WithLabelValues(className(class)).Add(float64(len(res.Dropped)))
	}
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow, class) {
		case app.KickMember:
			for _, snap := range o.Registry.MembersOfRoom(room.Room().ID) {
				if snap.Session == slow {
					log.Warn().Str("module", "orch").Str("sid", string(snap.SID)).Msg("kicking slow member")
					o.KickBySID(snap.SID)
				}
			}
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

// broadcastJSON sends v to every member of room except from.
func (o *Orchestrator) broadcastJSON(room core.RoomService, from core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("broadcast marshal")
		return
	}
	o.handleDrops(room, room.Broadcast(from, b), app.ClassControl)
}

func (o *Orchestrator) sendJSON(sig core.SignalConnection, v any) {
	if sig == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("sendJSON marshal")
		return
	}
	_ = sig.TrySend(b)
}

func className(c app.FrameClass) string {
	switch c {
	case app.ClassDialogue:
		return "dialogue"
	case app.ClassSnapshot:
		return "snapshot"
	}
	return "control"
}
