package signal

import (
	"errors"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

func (ctl *SignalWSController) createRoom(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	if _, _, ok := ctl.Orch.Registry.RoomOf(sid); ok {
		ctl.sendError(conn, "already_in_room")
		return
	}
	type Payload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create_room payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	room := ctl.Orch.CreateRoom(p.Name)
	resp := struct {
		Type     string          `json:"type"`
		Room     domain.RoomID   `json:"room"`
		RoomName domain.RoomName `json:"room_name"`
	}{
		"room_created",
		room.Room().ID,
		room.Room().Name,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if p.Name != "" {
		if err := ctl.Orch.Registry.UpdateUsername(sid, p.Name); err != nil {
			ctl.sendError(conn, "invalid_name")
			return
		}
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename on join")
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", p.Room).Msg("join")
	room, err := ctl.Orch.Join(sid, domain.RoomID(p.Room))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room_id", p.Room).Msg("join failed")
		code := "join_failed"
		if errors.Is(err, orch.ErrRoomNotFound) {
			code = "room_not_found"
		}
		ctl.sendError(conn, code)
		return
	}
	ctl.sendJSON(conn, orch.RoomState(room, sid))
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	if !ctl.Orch.KickBySID(sid) {
		ctl.sendJSON(conn, map[string]any{"type": "left"})
	}
}

// handleSetLeader lets the current leader hand the seat to another member.
func (ctl *SignalWSController) handleSetLeader(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SID == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		ctl.sendError(conn, "not_in_room")
		return
	}
	room, ok := ctl.Orch.Rooms.GetRoom(roomID)
	if !ok || !room.IsLeader(sid) {
		ctl.sendError(conn, "not_leader")
		return
	}
	if err := ctl.Orch.SetLeader(roomID, core.SessionID(p.SID)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("to", p.SID).Msg("set_leader failed")
		ctl.sendError(conn, "not_member")
	}
}
