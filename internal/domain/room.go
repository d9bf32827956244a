package domain

import "github.com/google/uuid"

type (
	RoomName string
	RoomID   string
)

const MaxRoomNameLen = 36

type Room struct {
	ID   RoomID   `json:"id"`
	Name RoomName `json:"name"`
}

// NewRoom assigns a fresh id; names longer than MaxRoomNameLen are cut.
func NewRoom(name string) *Room {
	if len(name) > MaxRoomNameLen {
		name = name[:MaxRoomNameLen]
	}
	return &Room{ID: RoomID(uuid.NewString()), Name: RoomName(name)}
}
