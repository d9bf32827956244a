// Package dialogue implements the leader-authoritative dialogue replication
// protocol for one session member: the replicated state and its codecs, the
// leader-only sequencer, the audio distribution path and the local text reveal.
package dialogue

import "fmt"

// State is the replicated part of a dialogue: which line is active and
// whether a sequence is running.
type State struct {
	Index   int
	Playing bool
}

// Idle is the state before a sequence starts and after it ends.
var Idle = State{Index: -1, Playing: false}

func (s State) String() string {
	return fmt.Sprintf("(%d,%t)", s.Index, s.Playing)
}

// Valid checks the state invariants against a script of n entries.
// A negative n skips the upper bound check.
func (s State) Valid(n int) bool {
	if s.Index == -1 {
		return !s.Playing
	}
	if s.Index < 0 || !s.Playing {
		return false
	}
	return n < 0 || s.Index < n
}
