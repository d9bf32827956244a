package client

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/dialogue"
)

// Sender is the outbound half of the signal connection.
type Sender interface {
	SendText(b []byte) error
	SendBinary(b []byte) error
	SendJSON(v any) error
}

type snapshotPath interface {
	Ready() bool
	SendSnapshot(b []byte) error
}

// Transport implements dialogue.Transport over the relay. Snapshots prefer
// the data channel and fall back to websocket binary frames.
type Transport struct {
	out  Sender
	peer snapshotPath
}

func NewTransport(out Sender) *Transport {
	return &Transport{out: out}
}

func (t *Transport) Send(env dialogue.Envelope) error {
	b, err := dialogue.MarshalEnvelope(env)
	if err != nil {
		return err
	}
	return t.out.SendText(b)
}

func (t *Transport) SendSnapshot(b []byte) error {
	if t.peer != nil && t.peer.Ready() {
		err := t.peer.SendSnapshot(b)
		if err == nil {
			return nil
		}
		log.Debug().Err(err).Str("module", "client.transport").Msg("data channel send failed, using websocket")
	}
	return t.out.SendBinary(b)
}
