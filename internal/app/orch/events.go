package orch

import (
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// Server->client envelopes produced by the orchestrator.

type LeaderEvent struct {
	Type string         `json:"type"`
	Room domain.RoomID  `json:"room"`
	SID  core.SessionID `json:"sid"`
}

type MemberEvent struct {
	Type string         `json:"type"`
	SID  core.SessionID `json:"sid"`
	User domain.User    `json:"user"`
}

type RoomStateEvent struct {
	Type     string           `json:"type"`
	Room     domain.RoomID    `json:"room"`
	RoomName domain.RoomName  `json:"room_name"`
	Members  []core.MemberDTO `json:"members"`
	Count    int              `json:"count"`
	Leader   core.SessionID   `json:"leader"`
	You      core.SessionID   `json:"you"`
}

func RoomState(room core.RoomService, you core.SessionID) RoomStateEvent {
	members := room.MembersSnapshot()
	return RoomStateEvent{
		Type:     "room_state",
		Room:     room.Room().ID,
		RoomName: room.Room().Name,
		Members:  members,
		Count:    len(members),
		Leader:   room.Leader(),
		You:      you,
	}
}
