package client

import (
	"context"
	"errors"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/dkeye/Classroom/internal/dialogue"
	"github.com/dkeye/Classroom/internal/domain"
)

type fakeSender struct {
	mu     sync.Mutex
	text   [][]byte
	binary [][]byte
}

func (s *fakeSender) SendText(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = append(s.text, b)
	return nil
}

func (s *fakeSender) SendBinary(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binary = append(s.binary, b)
	return nil
}

func (s *fakeSender) SendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SendText(b)
}

func (s *fakeSender) lastText() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.text) == 0 {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(s.text[len(s.text)-1], &m)
	return m
}

type fakePeer struct {
	ready bool
	fail  bool
	got   [][]byte
}

func (p *fakePeer) Ready() bool { return p.ready }

func (p *fakePeer) SendSnapshot(b []byte) error {
	if p.fail {
		return errors.New("sctp closed")
	}
	p.got = append(p.got, b)
	return nil
}

// recordingPlayer is safe to read from the test goroutine.
type recordingPlayer struct {
	mu     sync.Mutex
	played []*domain.AudioBuffer
}

func (p *recordingPlayer) Play(buf *domain.AudioBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, buf)
}

func (p *recordingPlayer) Stop()         {}
func (p *recordingPlayer) Playing() bool { return false }

func (p *recordingPlayer) snapshot() []*domain.AudioBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.AudioBuffer(nil), p.played...)
}

type stubSynth struct{ buf *domain.AudioBuffer }

func (s stubSynth) Synthesize(context.Context, string, dialogue.VoiceConfig) (*domain.AudioBuffer, error) {
	return s.buf, nil
}
