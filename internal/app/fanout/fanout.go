package fanout

import (
	"maps"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/Classroom/internal/core"
)

// Fanout delivers leader snapshots of one room to every subscribed member.
type Fanout struct {
	mu          sync.RWMutex
	outChannels map[core.SessionID]*OutChannel
}

func NewFanout() *Fanout {
	return &Fanout{outChannels: make(map[core.SessionID]*OutChannel)}
}

// forward writes data to every healthy channel except the sender's and
// returns the members it reached.
func (f *Fanout) forward(from core.SessionID, data core.Frame, logger *zerolog.Logger) map[core.SessionID]bool {
	snapshot := make(map[core.SessionID]*OutChannel, len(f.outChannels))
	f.mu.RLock()
	maps.Copy(snapshot, f.outChannels)
	f.mu.RUnlock()

	reached := make(map[core.SessionID]bool, len(snapshot))
	dirty := make([]core.SessionID, 0, len(snapshot))
	for dstSID, oc := range snapshot {
		if dstSID == from {
			continue
		}
		switch oc.GetState() {
		case ChannelStateDelete:
			dirty = append(dirty, dstSID)
		case ChannelStateMuted:
		case ChannelStateOk:
			if err := oc.Ch.SendSnapshot(data); err != nil {
				logger.Error().
					Err(err).
					Str("dst_sid", string(dstSID)).
					Msg("fanout write error, marking channel as delete")
				oc.MarkDelete()
				dirty = append(dirty, dstSID)
				continue
			}
			reached[dstSID] = true
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		f.cleanupDeleted(dirty)
	}
	return reached
}

func (f *Fanout) cleanupDeleted(dirty []core.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sid := range dirty {
		if oc, ok := f.outChannels[sid]; ok && oc.GetState() == ChannelStateDelete {
			delete(f.outChannels, sid)
		}
	}
}

func (f *Fanout) markAllDelete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, oc := range f.outChannels {
		oc.MarkDelete()
	}
}

func (f *Fanout) AddOutChannel(dst core.SessionID, oc *OutChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.outChannels[dst]; ok {
		old.MarkDelete()
	}
	f.outChannels[dst] = oc
}

func (f *Fanout) outChannel(dst core.SessionID) (*OutChannel, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	oc, ok := f.outChannels[dst]
	return oc, ok
}

func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.outChannels)
}
