package core

import (
	"errors"

	"github.com/dkeye/Classroom/internal/domain"
)

var ErrNotMember = errors.New("not a member of the room")

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	SID      SessionID     `json:"sid"`
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Leader   bool          `json:"leader"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set and the leader seat but never touches transport
// resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Member(sid SessionID) (MemberSession, bool)

	// AddMember reports whether the newcomer took the empty leader seat.
	AddMember(sid SessionID, ms MemberSession) (becameLeader bool)
	// RemoveMember reports the new leader when the leaving member held the seat.
	RemoveMember(sid SessionID) (newLeader SessionID, changed bool)

	Leader() SessionID
	IsLeader(sid SessionID) bool
	SetLeader(sid SessionID) error

	Broadcast(from SessionID, data Frame) PublishResult
	BroadcastBinary(from SessionID, data Frame, skip func(SessionID) bool) PublishResult
	SendTo(sid SessionID, data Frame) error
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
	Leader      SessionID       `json:"leader,omitempty"`
}

type RoomManager interface {
	CreateRoom(name domain.RoomName) RoomService
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
