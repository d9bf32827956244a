package client

import (
	"errors"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/adapters/rtc"
)

var ErrPeerNotReady = errors.New("snapshot channel not open")

// Peer is the member's WebRTC connection to the relay. It only carries the
// snapshot data channel, configured unordered and without retransmits so a
// late snapshot is dropped rather than delaying a newer one.
type Peer struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	mu     sync.Mutex
	open   bool
	onSnap func([]byte)
}

// signaller is the part of Conn the peer needs.
type signaller interface {
	SendJSON(v any) error
}

func NewPeer(cfg webrtc.Configuration, sig signaller) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	ordered := false
	var retransmits uint16
	dc, err := pc.CreateDataChannel(rtc.SnapshotLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &retransmits,
	})
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	p := &Peer{pc: pc, dc: dc}

	dc.OnOpen(func() {
		p.mu.Lock()
		p.open = true
		p.mu.Unlock()
		log.Info().Str("module", "client.rtc").Msg("snapshot channel open")
	})
	dc.OnClose(func() {
		p.mu.Lock()
		p.open = false
		p.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			return
		}
		p.mu.Lock()
		fn := p.onSnap
		p.mu.Unlock()
		if fn != nil {
			fn(msg.Data)
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "client.rtc").Str("peer_connection_state", s.String()).Msg("Peer state")
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	// The relay answers once; send the offer with every local candidate in it.
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, err
	}
	<-gatherComplete
	if err := sig.SendJSON(map[string]string{"type": "offer", "sdp": pc.LocalDescription().SDP}); err != nil {
		_ = pc.Close()
		return nil, err
	}
	return p, nil
}

// OnSnapshot sets the callback for snapshots the relay sends on the channel.
func (p *Peer) OnSnapshot(fn func([]byte)) {
	p.mu.Lock()
	p.onSnap = fn
	p.mu.Unlock()
}

func (p *Peer) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *Peer) SendSnapshot(b []byte) error {
	if !p.Ready() {
		return ErrPeerNotReady
	}
	return p.dc.Send(b)
}

// HandleSignal applies an answer or candidate frame from the relay.
func (p *Peer) HandleSignal(typ string, frame []byte) error {
	switch typ {
	case "answer":
		var a struct {
			SDP string `json:"sdp"`
		}
		if err := json.Unmarshal(frame, &a); err != nil {
			return err
		}
		return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: a.SDP})
	case "candidate":
		if p.pc.RemoteDescription() == nil {
			// already part of the answer
			return nil
		}
		var c struct {
			Candidate     string `json:"candidate"`
			SDPMid        string `json:"sdpMid"`
			SDPMLineIndex uint16 `json:"sdpMLineIndex"`
		}
		if err := json.Unmarshal(frame, &c); err != nil {
			return err
		}
		ci := webrtc.ICECandidateInit{Candidate: c.Candidate, SDPMLineIndex: &c.SDPMLineIndex}
		if c.SDPMid != "" {
			ci.SDPMid = &c.SDPMid
		}
		return p.pc.AddICECandidate(ci)
	}
	return nil
}

func (p *Peer) Close() {
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "client.rtc").Msg("close error")
	}
}
