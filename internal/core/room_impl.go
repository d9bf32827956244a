package core

import (
	"cmp"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room   *domain.Room
	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	byUser map[domain.UserID]SessionID
	seq    uint64
	leader SessionID
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:   room,
		bySID:  make(map[SessionID]MemberSession),
		byUser: make(map[domain.UserID]SessionID),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Member(sid SessionID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.bySID[sid]
	return ms, ok
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) bool {
	u := ms.Meta().User.ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		r.seq++
		ms.Meta().JoinSeq = r.seq
	}
	r.bySID[sid] = ms
	r.byUser[u] = sid
	became := false
	if r.leader == "" {
		r.leader = sid
		became = true
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Str("user", string(u)).Bool("leader", became).Msg("member added")
	return became
}

func (r *roomImpl) RemoveMember(sid SessionID) (SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return "", false
	}
	delete(r.byUser, ms.Meta().User.ID)
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member removed")
	if r.leader != sid {
		return "", false
	}
	r.leader = r.oldestLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("from", string(sid)).Str("to", string(r.leader)).Msg("leader migrated")
	return r.leader, true
}

// oldestLocked picks the member with the lowest join sequence.
func (r *roomImpl) oldestLocked() SessionID {
	var (
		best    SessionID
		bestSeq uint64
	)
	for sid, ms := range r.bySID {
		seq := ms.Meta().JoinSeq
		if best == "" || seq < bestSeq {
			best, bestSeq = sid, seq
		}
	}
	return best
}

func (r *roomImpl) Leader() SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.leader
}

func (r *roomImpl) IsLeader(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sid != "" && r.leader == sid
}

func (r *roomImpl) SetLeader(sid SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return ErrNotMember
	}
	r.leader = sid
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("leader set")
	return nil
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	return r.publish(from, data, nil, false)
}

// BroadcastBinary sends a binary frame to every member except from and the
// ones skip accepts.
func (r *roomImpl) BroadcastBinary(from SessionID, data Frame, skip func(SessionID) bool) PublishResult {
	return r.publish(from, data, skip, true)
}

func (r *roomImpl) publish(from SessionID, data Frame, skip func(SessionID) bool, binary bool) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from || (skip != nil && skip(sid)) {
			continue
		}
		sig := m.Signal()
		if sig == nil {
			continue
		}
		var err error
		if binary {
			err = sig.TrySendBinary(data)
		} else {
			err = sig.TrySend(data)
		}
		if err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Bool("binary", binary).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) SendTo(sid SessionID, data Frame) error {
	r.mu.RLock()
	m, ok := r.bySID[sid]
	r.mu.RUnlock()
	if !ok || m.Signal() == nil {
		return ErrNotMember
	}
	return m.Signal().TrySend(data)
}

// MembersSnapshot lists members oldest first.
func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	type row struct {
		dto MemberDTO
		seq uint64
	}
	rows := make([]row, 0, len(r.bySID))
	for sid, ms := range r.bySID {
		u := ms.Meta().User
		rows = append(rows, row{
			dto: MemberDTO{SID: sid, ID: u.ID, Username: u.Username, Leader: sid == r.leader},
			seq: ms.Meta().JoinSeq,
		})
	}
	slices.SortFunc(rows, func(a, b row) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]MemberDTO, 0, len(rows))
	for _, rw := range rows {
		out = append(out, rw.dto)
	}
	return out
}
