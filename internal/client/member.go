package client

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/dialogue"
	"github.com/dkeye/Classroom/internal/domain"
)

type Options struct {
	Name        string
	Room        string // empty creates a new room
	Config      dialogue.Config
	Script      domain.Script
	Synthesizer dialogue.Synthesizer
	View        dialogue.View
	Player      dialogue.Player
}

// Member connects one dialogue.Node to the relay. Inbound frames arrive on
// the read pump and are handed to the node through the session loop.
type Member struct {
	opts Options
	out  Sender
	auth *Authority
	tr   *Transport
	loop *dialogue.Loop
	node *dialogue.Node
	peer *Peer
}

func NewMember(ctx context.Context, out Sender, o Options) (*Member, error) {
	m := &Member{
		opts: o,
		out:  out,
		auth: &Authority{},
		tr:   NewTransport(out),
		loop: dialogue.NewLoop(ctx, 256),
	}
	logger := log.With().Str("module", "client").Str("name", o.Name).Logger()
	node, err := dialogue.NewNode(dialogue.Options{
		ID:          o.Name,
		Config:      o.Config,
		Script:      o.Script,
		Authority:   m.auth,
		Transport:   m.tr,
		Synthesizer: o.Synthesizer,
		Dispatcher:  m.loop,
		View:        o.View,
		Player:      o.Player,
		Logger:      &logger,
	})
	if err != nil {
		return nil, err
	}
	m.node = node
	return m, nil
}

func (m *Member) Authority() *Authority { return m.auth }

// AttachPeer routes snapshots through p once its channel is open. It must be
// called before the pumps start.
func (m *Member) AttachPeer(p *Peer) {
	m.peer = p
	m.tr.peer = p
	p.OnSnapshot(m.HandleBinary)
}

// Enter joins the configured room, or creates one and joins it.
func (m *Member) Enter() error {
	if m.opts.Room == "" {
		return m.out.SendJSON(map[string]string{"type": "create_room", "name": m.opts.Name + "'s classroom"})
	}
	return m.join(m.opts.Room)
}

func (m *Member) join(room string) error {
	return m.out.SendJSON(map[string]string{"type": "join", "room": room, "name": m.opts.Name})
}

// Run drives the node until ctx is done, ticking at the snapshot interval.
func (m *Member) Run() error {
	tick := m.opts.Config.SnapshotInterval
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return m.loop.Run(tick, m.node.Tick)
}

// Input posts a user command: start, next or skip.
func (m *Member) Input(cmd string) error {
	switch cmd {
	case "start":
		m.loop.Post(func() { m.node.Start() })
	case "next":
		m.loop.Post(func() { m.node.Next() })
	case "skip":
		m.loop.Post(func() { m.node.Skip() })
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// Inspect runs fn with the node on the session goroutine and waits for it.
func (m *Member) Inspect(ctx context.Context, fn func(n *dialogue.Node)) error {
	done := make(chan struct{})
	m.loop.Post(func() {
		fn(m.node)
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Member) HandleBinary(b []byte) {
	data := append([]byte(nil), b...)
	m.loop.Post(func() { _ = m.node.ReceiveSnapshot(data) })
}

func (m *Member) HandleText(frame []byte) {
	var env struct {
		Type  string `json:"type"`
		Room  string `json:"room"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("bad frame")
		return
	}
	switch env.Type {
	case dialogue.FrameType:
		de, err := dialogue.UnmarshalEnvelope(frame)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad dialogue frame")
			return
		}
		m.loop.Post(func() { m.node.Receive(de) })
	case "answer", "candidate":
		if m.peer == nil {
			return
		}
		if err := m.peer.HandleSignal(env.Type, frame); err != nil {
			log.Warn().Err(err).Str("module", "client").Str("type", env.Type).Msg("webrtc signal")
		}
	case "room_created":
		log.Info().Str("module", "client").Str("room", env.Room).Msg("room created")
		if err := m.join(env.Room); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("join")
		}
	case "error":
		log.Warn().Str("module", "client").Str("error", env.Error).Msg("relay error")
	case "pong", "member_joined", "member_left", "member_updated":
		log.Debug().Str("module", "client").Str("type", env.Type).Msg("event")
	default:
		if !m.auth.Observe(frame) {
			log.Debug().Str("module", "client").Str("type", env.Type).Msg("unhandled frame")
		}
	}
}
