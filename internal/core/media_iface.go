package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// SnapshotChannel is the lossy path to one member.
type SnapshotChannel interface {
	SendSnapshot(Frame) error
}

type MediaConnection interface {
	SnapshotChannel
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying resources.
	Close()
	IsClosed() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnSnapshotChannel is invoked once the member's snapshot data channel is open.
	OnSnapshotChannel(func())
	SnapshotReady() bool
	// OnSnapshot is invoked for every snapshot the member sends on its channel.
	OnSnapshot(func(Frame))
	// OnClosed sets a callback for cleanup media session.
	OnClosed(func())
}
