package dialogue

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/dkeye/Classroom/internal/domain"
)

// Kind tags a dialogue message on the wire.
type Kind string

const (
	KindShowPanel       Kind = "show_panel"
	KindUpdateUI        Kind = "update_ui"
	KindUpdateText      Kind = "update_text"
	KindStartTypewriter Kind = "start_typewriter"
	KindSetCursor       Kind = "set_cursor"
	KindAudio           Kind = "audio"
	KindRequestNext     Kind = "request_next"
	KindRequestSkip     Kind = "request_skip"
)

// LeaderOrigin reports whether only the leader may send this kind.
func (k Kind) LeaderOrigin() bool {
	switch k {
	case KindShowPanel, KindUpdateUI, KindUpdateText, KindStartTypewriter, KindSetCursor, KindAudio:
		return true
	}
	return false
}

// Request reports whether the kind is a member->leader request.
func (k Kind) Request() bool {
	return k == KindRequestNext || k == KindRequestSkip
}

func (k Kind) Known() bool { return k.LeaderOrigin() || k.Request() }

// Target addresses a message.
type Target string

const (
	// TargetAll is applied locally by the sender and relayed to everyone else.
	TargetAll    Target = "all"
	TargetOthers Target = "others"
	TargetLeader Target = "leader"
)

func (t Target) Valid() bool {
	return t == TargetAll || t == TargetOthers || t == TargetLeader
}

// Payload is implemented by every message in the catalog.
type Payload interface {
	Kind() Kind
}

type ShowPanel struct {
	Show bool `json:"show"`
}

type UpdateUI struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	R       float32 `json:"r"`
	G       float32 `json:"g"`
	B       float32 `json:"b"`
}

type UpdateText struct {
	Text string `json:"text"`
}

type StartTypewriter struct {
	Text string `json:"text"`
}

type SetCursor struct {
	Locked bool `json:"locked"`
}

// AudioData carries raw float32 sample bytes for one dialogue line.
type AudioData struct {
	Index      int    `json:"index"`
	Samples    []byte `json:"samples"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type RequestNext struct{}

type RequestSkip struct{}

func (ShowPanel) Kind() Kind       { return KindShowPanel }
func (UpdateUI) Kind() Kind        { return KindUpdateUI }
func (UpdateText) Kind() Kind      { return KindUpdateText }
func (StartTypewriter) Kind() Kind { return KindStartTypewriter }
func (SetCursor) Kind() Kind       { return KindSetCursor }
func (AudioData) Kind() Kind       { return KindAudio }
func (RequestNext) Kind() Kind     { return KindRequestNext }
func (RequestSkip) Kind() Kind     { return KindRequestSkip }

func (u UpdateUI) Color() domain.Color { return domain.Color{R: u.R, G: u.G, B: u.B} }

// Envelope is a decoded message together with its routing data.
// From and FromLeader are stamped by the relay.
type Envelope struct {
	Target     Target
	From       string
	FromLeader bool
	Payload    Payload
}

// FrameType is the envelope "type" used by the signal protocol for dialogue messages.
const FrameType = "dialogue"

// Wire is the JSON form of an Envelope. The relay works on Wire directly so it
// never has to decode payloads it only forwards.
type Wire struct {
	Type       string          `json:"type"`
	Target     Target          `json:"target"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	From       string          `json:"from,omitempty"`
	FromLeader bool            `json:"from_leader,omitempty"`
}

// ParseWire reads the routing part of a dialogue frame.
func ParseWire(data []byte) (Wire, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Wire{}, fmt.Errorf("dialogue frame: %w", err)
	}
	if !w.Kind.Known() {
		return Wire{}, fmt.Errorf("%w: %q", ErrUnknownKind, w.Kind)
	}
	if !w.Target.Valid() {
		return Wire{}, fmt.Errorf("%w: %q", ErrUnknownTarget, w.Target)
	}
	return w, nil
}

func (w Wire) Marshal() ([]byte, error) {
	w.Type = FrameType
	return json.Marshal(w)
}

// Decode turns the wire form into a typed envelope.
func (w Wire) Decode() (Envelope, error) {
	var p Payload
	switch w.Kind {
	case KindShowPanel:
		p = &ShowPanel{}
	case KindUpdateUI:
		p = &UpdateUI{}
	case KindUpdateText:
		p = &UpdateText{}
	case KindStartTypewriter:
		p = &StartTypewriter{}
	case KindSetCursor:
		p = &SetCursor{}
	case KindAudio:
		p = &AudioData{}
	case KindRequestNext:
		p = &RequestNext{}
	case KindRequestSkip:
		p = &RequestSkip{}
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, w.Kind)
	}
	if len(w.Payload) > 0 {
		if err := json.Unmarshal(w.Payload, p); err != nil {
			return Envelope{}, fmt.Errorf("dialogue %s payload: %w", w.Kind, err)
		}
	}
	return Envelope{
		Target:     w.Target,
		From:       w.From,
		FromLeader: w.FromLeader,
		Payload:    deref(p),
	}, nil
}

// MarshalEnvelope encodes env as a dialogue frame.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	if env.Payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrUnknownKind)
	}
	raw, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, err
	}
	return Wire{
		Target:     env.Target,
		Kind:       env.Payload.Kind(),
		Payload:    raw,
		From:       env.From,
		FromLeader: env.FromLeader,
	}.Marshal()
}

// UnmarshalEnvelope decodes a dialogue frame.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	w, err := ParseWire(data)
	if err != nil {
		return Envelope{}, err
	}
	return w.Decode()
}

// deref keeps handlers working on values rather than pointers.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *ShowPanel:
		return *v
	case *UpdateUI:
		return *v
	case *UpdateText:
		return *v
	case *StartTypewriter:
		return *v
	case *SetCursor:
		return *v
	case *AudioData:
		return *v
	case *RequestNext:
		return *v
	case *RequestSkip:
		return *v
	}
	return p
}
