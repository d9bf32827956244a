package fanout

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// Manager keeps one Fanout per room.
type Manager struct {
	mu     sync.RWMutex
	fanout map[domain.RoomID]*Fanout
}

func NewManager() *Manager {
	return &Manager{fanout: make(map[domain.RoomID]*Fanout)}
}

func (m *Manager) getOrCreate(room domain.RoomID) *Fanout {
	m.mu.RLock()
	f, ok := m.fanout[room]
	m.mu.RUnlock()
	if ok {
		return f
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok = m.fanout[room]; ok {
		return f
	}
	f = NewFanout()
	m.fanout[room] = f
	return f
}

// AddSubscriber attaches dstSID's snapshot channel to the room fan-out.
func (m *Manager) AddSubscriber(room domain.RoomID, dstSID core.SessionID, ch core.SnapshotChannel) {
	m.getOrCreate(room).AddOutChannel(dstSID, NewOutChannel(ch))
	log.Info().Str("module", "fanout").Str("room", string(room)).Str("sid", string(dstSID)).Msg("snapshot subscriber added")
}

// MarkSubscriberDelete marks dstSID's channel as ChannelStateDelete.
func (m *Manager) MarkSubscriberDelete(room domain.RoomID, dstSID core.SessionID) {
	m.mu.RLock()
	f, ok := m.fanout[room]
	m.mu.RUnlock()
	if !ok {
		return
	}
	if oc, ok := f.outChannel(dstSID); ok {
		oc.MarkDelete()
	}
}

// Publish sends a snapshot from fromSID to the room and returns the members
// reached over a data channel.
func (m *Manager) Publish(room domain.RoomID, fromSID core.SessionID, data core.Frame) map[core.SessionID]bool {
	m.mu.RLock()
	f, ok := m.fanout[room]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	logger := log.With().
		Str("module", "fanout").
		Str("room", string(room)).
		Str("sid", string(fromSID)).
		Logger()
	return f.forward(fromSID, data, &logger)
}

// StopRoom drops the room's fan-out.
func (m *Manager) StopRoom(room domain.RoomID) {
	m.mu.Lock()
	f, ok := m.fanout[room]
	if ok {
		delete(m.fanout, room)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	f.markAllDelete()
}

// HasSubscriber reports whether dstSID has a healthy channel in the room.
func (m *Manager) HasSubscriber(room domain.RoomID, dstSID core.SessionID) bool {
	m.mu.RLock()
	f, ok := m.fanout[room]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	oc, ok := f.outChannel(dstSID)
	return ok && oc.GetState() == ChannelStateOk
}
