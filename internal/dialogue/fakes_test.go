package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkeye/Classroom/internal/domain"
)

// manualDispatcher runs everything on the test goroutine against fake time.
type manualDispatcher struct {
	now    time.Duration
	queue  []func()
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (d *manualDispatcher) Post(fn func()) { d.queue = append(d.queue, fn) }

func (d *manualDispatcher) After(dur time.Duration, fn func()) Timer {
	t := &manualTimer{at: d.now + dur, fn: fn}
	d.timers = append(d.timers, t)
	return t
}

func (d *manualDispatcher) Go(task func(ctx context.Context) func()) {
	if cont := task(context.Background()); cont != nil {
		d.Post(cont)
	}
}

func (d *manualDispatcher) drain() {
	for len(d.queue) > 0 {
		fn := d.queue[0]
		d.queue = d.queue[1:]
		fn()
	}
}

// advance moves fake time forward, firing due timers in order.
func (d *manualDispatcher) advance(dur time.Duration) {
	target := d.now + dur
	for {
		d.drain()
		var next *manualTimer
		for _, t := range d.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		d.now = next.at
		next.fired = true
		next.fn()
	}
	d.now = target
	d.drain()
}

func (d *manualDispatcher) pendingTimers() int {
	n := 0
	for _, t := range d.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeAuth struct{ leader bool }

func (a *fakeAuth) IsLeader() bool { return a.leader }

// recordingTransport keeps what a node sent and optionally hands it to peers.
type recordingTransport struct {
	self      *fakeAuth
	sent      []Envelope
	snapshots [][]byte
	peers     []*Node
	fail      error
}

func (t *recordingTransport) Send(env Envelope) error {
	t.sent = append(t.sent, env)
	if t.fail != nil {
		return t.fail
	}
	env.FromLeader = t.self.leader
	for _, p := range t.peers {
		if env.Target == TargetLeader && !p.auth.IsLeader() {
			continue
		}
		p.Receive(env)
	}
	return nil
}

func (t *recordingTransport) SendSnapshot(data []byte) error {
	t.snapshots = append(t.snapshots, data)
	if t.fail != nil {
		return t.fail
	}
	for _, p := range t.peers {
		_ = p.ReceiveSnapshot(data)
	}
	return nil
}

func (t *recordingTransport) kinds() []Kind {
	out := make([]Kind, 0, len(t.sent))
	for _, e := range t.sent {
		out = append(out, e.Payload.Kind())
	}
	return out
}

func (t *recordingTransport) lastOf(k Kind) (Envelope, bool) {
	for i := len(t.sent) - 1; i >= 0; i-- {
		if t.sent[i].Payload.Kind() == k {
			return t.sent[i], true
		}
	}
	return Envelope{}, false
}

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	buf   func(text string) *domain.AudioBuffer
}

func (s *fakeSynth) Synthesize(_ context.Context, text string, _ VoiceConfig) (*domain.AudioBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	if err, ok := s.fail[text]; ok {
		return nil, err
	}
	if s.buf != nil {
		return s.buf(text), nil
	}
	return testBuffer(1000, 1, 500), nil
}

type fakeView struct {
	panel    bool
	panels   []bool
	speaker  string
	text     string
	color    domain.Color
	cursor   *bool
	camera   []bool
	changes  []State
	textSets int
}

func (v *fakeView) ShowPanel(show bool) {
	v.panel = show
	v.panels = append(v.panels, show)
}

func (v *fakeView) UpdateUI(speaker, _ string, color domain.Color) {
	v.speaker = speaker
	v.color = color
}

func (v *fakeView) SetText(text string) {
	v.text = text
	v.textSets++
}

func (v *fakeView) SetCursorLocked(locked bool) { v.cursor = &locked }
func (v *fakeView) SetCamera(main bool)         { v.camera = append(v.camera, main) }
func (v *fakeView) StateChanged(st State)       { v.changes = append(v.changes, st) }

type fakePlayer struct {
	played  []*domain.AudioBuffer
	stops   int
	playing bool
}

func (p *fakePlayer) Play(buf *domain.AudioBuffer) {
	p.played = append(p.played, buf)
	p.playing = true
}

func (p *fakePlayer) Stop() {
	p.stops++
	p.playing = false
}

func (p *fakePlayer) Playing() bool { return p.playing }

type member struct {
	node   *Node
	auth   *fakeAuth
	tr     *recordingTransport
	view   *fakeView
	player *fakePlayer
}

func newMember(t *testing.T, id string, leader bool, disp *manualDispatcher, cfg Config, script domain.Script, synth Synthesizer) *member {
	t.Helper()
	m := &member{
		auth:   &fakeAuth{leader: leader},
		view:   &fakeView{},
		player: &fakePlayer{},
	}
	m.tr = &recordingTransport{self: m.auth}
	logger := zerolog.Nop()
	n, err := NewNode(Options{
		ID:          id,
		Config:      cfg,
		Script:      script,
		Authority:   m.auth,
		Transport:   m.tr,
		Synthesizer: synth,
		Dispatcher:  disp,
		View:        m.view,
		Player:      m.player,
		Logger:      &logger,
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	m.node = n
	return m
}

// link makes every member deliver to every other member.
func link(members ...*member) {
	for _, m := range members {
		for _, o := range members {
			if o != m {
				m.tr.peers = append(m.tr.peers, o.node)
			}
		}
	}
}

func instantConfig() Config {
	return Config{SnapshotInterval: 100 * time.Millisecond}
}

func testBuffer(rate, channels, frames int) *domain.AudioBuffer {
	s := make([]float32, frames*channels)
	for i := range s {
		s[i] = float32(i%100)/100 - 0.5
	}
	return &domain.AudioBuffer{SampleRate: rate, Channels: channels, Samples: s}
}

var errNetwork = errors.New("network down")
