package domain

// Member represents user's participation meta for a room.
// Leadership is not stored here; the room derives it from join order.
type Member struct {
	User *User
	// JoinSeq orders members inside a room; the oldest present member leads.
	JoinSeq uint64
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	return &Member{User: user}
}
