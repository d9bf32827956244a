package dialogue

import (
	"context"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
)

// Authority tells whether this member currently leads the session.
// The answer may change between calls.
type Authority interface {
	IsLeader() bool
}

// Transport delivers messages to other session members. Send routes by
// env.Target (never TargetAll; the node expands it). SendSnapshot may use a
// lossy channel.
type Transport interface {
	Send(env Envelope) error
	SendSnapshot(data []byte) error
}

// VoiceConfig selects the voice used for synthesis.
type VoiceConfig struct {
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	Style           float64
	SpeakerBoost    bool
}

// Synthesizer turns text into audio. It may take arbitrary time and must
// honour ctx.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) (*domain.AudioBuffer, error)
}

// Player is the local audio output. Play replaces whatever is playing.
type Player interface {
	Play(buf *domain.AudioBuffer)
	Stop()
	Playing() bool
}

// View receives UI-facing updates. None of the methods may block.
type View interface {
	ShowPanel(show bool)
	UpdateUI(speaker, text string, color domain.Color)
	SetText(text string)
	SetCursorLocked(locked bool)
	// SetCamera switches the leader's local camera; main=false shows the avatar view.
	SetCamera(main bool)
	StateChanged(st State)
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Dispatcher runs work on the member's single session goroutine.
type Dispatcher interface {
	// Post queues fn to run on the session goroutine.
	Post(fn func())
	// After runs fn on the session goroutine once d has elapsed.
	After(d time.Duration, fn func()) Timer
	// Go runs task off the session goroutine and posts the continuation it
	// returns, if any.
	Go(task func(ctx context.Context) func())
}

// NopView discards every update.
type NopView struct{}

func (NopView) ShowPanel(bool)                        {}
func (NopView) UpdateUI(string, string, domain.Color) {}
func (NopView) SetText(string)                        {}
func (NopView) SetCursorLocked(bool)                  {}
func (NopView) SetCamera(bool)                        {}
func (NopView) StateChanged(State)                    {}
