package client

import (
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Authority mirrors the relay's view of the leader seat. It satisfies
// dialogue.Authority; the node reads it from the session loop while the
// read pump updates it.
type Authority struct {
	mu     sync.RWMutex
	you    string
	leader string
	room   string
}

func (a *Authority) IsLeader() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.you != "" && a.you == a.leader
}

func (a *Authority) You() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.you
}

func (a *Authority) Leader() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.leader
}

func (a *Authority) Room() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.room
}

// Observe updates the seat from a server frame. It reports whether the frame
// was one it understands.
func (a *Authority) Observe(frame []byte) bool {
	var ev struct {
		Type   string `json:"type"`
		Room   string `json:"room"`
		SID    string `json:"sid"`
		Leader any    `json:"leader"`
		You    string `json:"you"`
	}
	if err := json.Unmarshal(frame, &ev); err != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.Type {
	case "room_state":
		a.room = ev.Room
		a.you = ev.You
		if s, ok := ev.Leader.(string); ok {
			a.leader = s
		}
	case "leader":
		if ev.Room != "" && a.room != "" && ev.Room != a.room {
			return true
		}
		a.leader = ev.SID
	case "whoami":
		a.you = ev.SID
		if ev.Room != "" {
			a.room = ev.Room
		}
		if b, ok := ev.Leader.(bool); ok && b {
			a.leader = ev.SID
		}
	case "left":
		a.room = ""
		a.leader = ""
	default:
		return false
	}
	log.Debug().Str("module", "client.authority").Str("type", ev.Type).Str("you", a.you).Str("leader", a.leader).Msg("seat update")
	return true
}
