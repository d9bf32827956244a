package dialogue

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/domain"
)

// Config tunes the timing of one member.
type Config struct {
	// SnapshotInterval is how often a leader pushes its state.
	SnapshotInterval time.Duration
	// TypewriterSpeed is the delay between revealed characters; 0 reveals at once.
	TypewriterSpeed time.Duration
	AutoAdvance     bool
	// AutoAdvanceDelay is added to the audio duration before advancing.
	AutoAdvanceDelay time.Duration
	// HoldWhileSpeaking ignores Advance while local audio still plays.
	HoldWhileSpeaking bool
	// MaxFrameBytes caps the wire size of an outgoing audio frame; bigger
	// lines play locally only. 0 means no cap.
	MaxFrameBytes int64
	Voice         VoiceConfig
}

func DefaultConfig() Config {
	return Config{
		SnapshotInterval: 100 * time.Millisecond,
		TypewriterSpeed:  50 * time.Millisecond,
		AutoAdvanceDelay: time.Second,
		MaxFrameBytes:    8 << 20,
	}
}

// Options wires a Node to its collaborators.
type Options struct {
	ID          string
	Config      Config
	Script      domain.Script
	Authority   Authority
	Transport   Transport
	Synthesizer Synthesizer
	Dispatcher  Dispatcher
	View        View
	Player      Player
	Logger      *zerolog.Logger
}

// Node is one session member running the dialogue protocol. It is not safe
// for concurrent use: every call must come from the member's Dispatcher
// goroutine.
type Node struct {
	id     string
	cfg    Config
	auth   Authority
	tr     Transport
	synth  Synthesizer
	disp   Dispatcher
	view   View
	player Player
	log    zerolog.Logger

	state     State
	cache     *AudioCache
	reveal    *reveal
	seq       *Sequencer
	wasLeader bool
}

func NewNode(o Options) (*Node, error) {
	if o.Authority == nil || o.Transport == nil || o.Dispatcher == nil {
		return nil, errors.New("dialogue: authority, transport and dispatcher are required")
	}
	if o.View == nil {
		o.View = NopView{}
	}
	if o.Player == nil {
		o.Player = &nopPlayer{}
	}
	logger := log.With().Str("module", "dialogue").Str("member", o.ID).Logger()
	if o.Logger != nil {
		logger = o.Logger.With().Str("member", o.ID).Logger()
	}
	n := &Node{
		id:     o.ID,
		cfg:    o.Config,
		auth:   o.Authority,
		tr:     o.Transport,
		synth:  o.Synthesizer,
		disp:   o.Dispatcher,
		view:   o.View,
		player: o.Player,
		log:    logger,
		state:  Idle,
		cache:  NewAudioCache(),
	}
	n.reveal = newReveal(o.Dispatcher, o.View, o.Config.TypewriterSpeed)
	n.seq = newSequencer(n, o.Script.Clone())
	return n, nil
}

// State is the member's view of the replicated state: authoritative on the
// leader, a mirror elsewhere.
func (n *Node) State() State { return n.state }

func (n *Node) Cache() *AudioCache { return n.cache }

func (n *Node) Sequencer() *Sequencer { return n.seq }

// Revealing reports whether the local typewriter is still running.
func (n *Node) Revealing() bool { return n.reveal.Running() }

// Start is the start input. Only a leader can begin a sequence.
func (n *Node) Start() bool {
	if !n.auth.IsLeader() {
		n.log.Debug().Msg("start ignored: not leader")
		return false
	}
	if n.state.Playing {
		return false
	}
	return n.seq.Handle(Event{Kind: EventStart})
}

// Next is the advance input. Followers turn it into a request to the leader.
func (n *Node) Next() bool {
	if !n.auth.IsLeader() {
		n.send(TargetLeader, RequestNext{})
		n.log.Debug().Msg("sent request to leader to play next dialogue")
		return false
	}
	if !n.state.Playing {
		return false
	}
	return n.seq.Handle(Event{Kind: EventAdvance})
}

// Skip is the skip input. Followers turn it into a request to the leader.
func (n *Node) Skip() bool {
	if !n.auth.IsLeader() {
		n.send(TargetLeader, RequestSkip{})
		n.log.Debug().Msg("sent request to leader to skip dialogue")
		return false
	}
	if !n.state.Playing {
		return false
	}
	return n.seq.Handle(Event{Kind: EventSkip})
}

// Tick is driven by the session loop at the snapshot interval.
func (n *Node) Tick() {
	leader := n.auth.IsLeader()
	switch {
	case n.wasLeader && !leader:
		n.seq.suspend()
		n.log.Info().Str("state", n.state.String()).Msg("leadership lost; suspending sequencer")
	case !n.wasLeader && leader:
		n.log.Info().Str("state", n.state.String()).Msg("leadership acquired")
	}
	n.wasLeader = leader
	if leader {
		n.pushSnapshot()
	}
}

// ReceiveSnapshot applies a snapshot from the leader. Leaders ignore them.
func (n *Node) ReceiveSnapshot(data []byte) error {
	st, err := DecodeSnapshot(data)
	if err != nil {
		n.log.Warn().Err(err).Msg("bad snapshot")
		return err
	}
	if n.auth.IsLeader() {
		return nil
	}
	if st == n.state {
		metricSnapshots.WithLabelValues("false").Inc()
		return nil
	}
	metricSnapshots.WithLabelValues("true").Inc()
	n.state = st
	n.log.Debug().Str("state", st.String()).Msg("received state change")
	n.view.StateChanged(st)
	if st.Playing {
		if buf, ok := n.cache.Unplayed(st.Index); ok {
			n.play(st.Index, buf)
		}
	}
	return nil
}

type handler struct {
	// fromLeader: the sender must have been leader when relayed.
	fromLeader bool
	// toLeader: only the current leader acts on it.
	toLeader bool
	fn       func(n *Node, p Payload)
}

// handlers is the dispatch table keyed by message kind. It is filled in init
// because the handlers reach back into Receive.
var handlers map[Kind]handler

func init() {
	handlers = map[Kind]handler{
		KindShowPanel:       {fromLeader: true, fn: (*Node).onShowPanel},
		KindUpdateUI:        {fromLeader: true, fn: (*Node).onUpdateUI},
		KindUpdateText:      {fromLeader: true, fn: (*Node).onUpdateText},
		KindStartTypewriter: {fromLeader: true, fn: (*Node).onStartTypewriter},
		KindSetCursor:       {fromLeader: true, fn: (*Node).onSetCursor},
		KindAudio:           {fromLeader: true, fn: (*Node).onAudio},
		KindRequestNext:     {toLeader: true, fn: (*Node).onRequestNext},
		KindRequestSkip:     {toLeader: true, fn: (*Node).onRequestSkip},
	}
}

// Receive dispatches a message relayed from another member.
func (n *Node) Receive(env Envelope) {
	if env.Payload == nil {
		return
	}
	kind := env.Payload.Kind()
	h, ok := handlers[kind]
	if !ok {
		metricMessagesDropped.WithLabelValues(string(kind), "unknown").Inc()
		return
	}
	if h.fromLeader && !env.FromLeader {
		n.log.Warn().Str("kind", string(kind)).Str("from", env.From).Msg("dropping leader message from non-leader")
		metricMessagesDropped.WithLabelValues(string(kind), "sender_not_leader").Inc()
		return
	}
	if h.toLeader && !n.auth.IsLeader() {
		n.log.Debug().Str("kind", string(kind)).Str("from", env.From).Msg("dropping request: not leader")
		metricMessagesDropped.WithLabelValues(string(kind), "not_leader").Inc()
		return
	}
	h.fn(n, env.Payload)
}

func (n *Node) onShowPanel(p Payload) {
	m := p.(ShowPanel)
	if m.Show {
		n.cache.Reset()
	}
	n.view.ShowPanel(m.Show)
}

func (n *Node) onUpdateUI(p Payload) {
	m := p.(UpdateUI)
	n.view.UpdateUI(m.Speaker, m.Text, m.Color())
}

func (n *Node) onUpdateText(p Payload) {
	n.reveal.Complete(p.(UpdateText).Text)
}

func (n *Node) onStartTypewriter(p Payload) {
	n.reveal.Start(p.(StartTypewriter).Text)
}

func (n *Node) onSetCursor(p Payload) {
	n.view.SetCursorLocked(p.(SetCursor).Locked)
}

func (n *Node) onAudio(p Payload) {
	m := p.(AudioData)
	buf, err := m.Buffer()
	if err != nil {
		metricAudioRejected.Inc()
		n.log.Warn().Err(err).Int("index", m.Index).Msg("rejecting audio data")
		return
	}
	n.cache.Put(m.Index, buf)
	n.log.Debug().Int("index", m.Index).Dur("length", buf.Duration()).Msg("received audio data")
	if n.state.Playing && n.state.Index == m.Index {
		if cached, ok := n.cache.Unplayed(m.Index); ok {
			n.play(m.Index, cached)
		}
	}
}

func (n *Node) onRequestNext(Payload) {
	if n.state.Playing {
		n.seq.Handle(Event{Kind: EventAdvance})
	}
}

func (n *Node) onRequestSkip(Payload) {
	if n.state.Playing {
		n.seq.Handle(Event{Kind: EventSkip})
	}
}

// emit sends p to target. TargetAll is applied locally first and then
// relayed to the others.
func (n *Node) emit(target Target, p Payload) {
	if target == TargetAll {
		n.Receive(Envelope{Target: TargetAll, From: n.id, FromLeader: n.auth.IsLeader(), Payload: p})
		target = TargetOthers
	}
	n.send(target, p)
}

func (n *Node) send(target Target, p Payload) {
	env := Envelope{Target: target, From: n.id, FromLeader: n.auth.IsLeader(), Payload: p}
	if err := n.tr.Send(env); err != nil {
		n.log.Debug().Err(err).Str("kind", string(p.Kind())).Msg("send failed")
	}
}

// setState is the only writer of the authoritative state.
func (n *Node) setState(st State) {
	if st == n.state {
		return
	}
	n.state = st
	n.view.StateChanged(st)
	n.pushSnapshot()
}

func (n *Node) pushSnapshot() {
	if err := n.tr.SendSnapshot(EncodeSnapshot(n.state)); err != nil {
		n.log.Debug().Err(err).Msg("snapshot send failed")
	}
}

func (n *Node) play(index int, buf *domain.AudioBuffer) {
	n.player.Play(buf)
	n.cache.MarkPlayed(index)
	n.log.Debug().Int("index", index).Dur("length", buf.Duration()).Msg("playing audio")
}

type nopPlayer struct{}

func (*nopPlayer) Play(*domain.AudioBuffer) {}
func (*nopPlayer) Stop()                    {}
func (*nopPlayer) Playing() bool            { return false }
