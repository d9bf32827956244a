package app

import "github.com/dkeye/Classroom/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// FrameClass tells the policy what kind of frame could not be queued.
type FrameClass int

const (
	ClassControl FrameClass = iota
	// ClassDialogue frames are reliable and ordered; losing one desyncs the member.
	ClassDialogue
	// ClassSnapshot frames are superseded by the next one.
	ClassSnapshot
)

type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession, class FrameClass) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ core.RoomService, _ core.MemberSession, class FrameClass) BackpressureAction {
	if class == ClassSnapshot {
		return DropFrame
	}
	return KickMember
}
