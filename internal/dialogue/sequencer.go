package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
)

// EventKind is an input to the sequencer.
type EventKind int

const (
	EventStart EventKind = iota
	EventAdvance
	EventSkip
	eventAudioReady
	eventAudioFailed
	eventAutoAdvance
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventAdvance:
		return "advance"
	case EventSkip:
		return "skip"
	case eventAudioReady:
		return "audio_ready"
	case eventAudioFailed:
		return "audio_failed"
	case eventAutoAdvance:
		return "auto_advance"
	}
	return "unknown"
}

// Event is handed to Sequencer.Handle. Internal events carry the sequence
// and line generation they were issued for.
type Event struct {
	Kind  EventKind
	Index int

	run  uint64
	line uint64
	buf  *domain.AudioBuffer
	err  error
}

// Sequencer is the leader-only state machine Idle -> PlayingEntry(i) -> Idle.
// Handle is its only mutating entry point and refuses to act unless the
// member is leader at that moment.
type Sequencer struct {
	n      *Node
	script domain.Script

	// run changes per sequence, line per played entry.
	run       uint64
	line      uint64
	autoTimer Timer
}

func newSequencer(n *Node, script domain.Script) *Sequencer {
	return &Sequencer{n: n, script: script}
}

// Handle applies ev and reports whether it changed anything.
func (s *Sequencer) Handle(ev Event) bool {
	if !s.n.auth.IsLeader() {
		s.n.log.Debug().Str("event", ev.Kind.String()).Msg("ignored: not leader")
		metricTransitions.WithLabelValues(ev.Kind.String(), "not_leader").Inc()
		return false
	}
	var ok bool
	switch ev.Kind {
	case EventStart:
		ok = s.start()
	case EventAdvance:
		ok = s.advance()
	case EventSkip:
		ok = s.skip()
	case eventAudioReady:
		ok = s.audioReady(ev)
	case eventAudioFailed:
		ok = s.audioFailed(ev)
	case eventAutoAdvance:
		ok = s.autoAdvance(ev)
	}
	outcome := "applied"
	if !ok {
		outcome = "rejected"
	}
	metricTransitions.WithLabelValues(ev.Kind.String(), outcome).Inc()
	return ok
}

func (s *Sequencer) start() bool {
	if s.n.state.Playing {
		s.n.log.Debug().Msg("start rejected: dialogue already playing")
		return false
	}
	if s.script.Len() == 0 {
		s.n.log.Warn().Msg("start rejected: empty script")
		return false
	}
	s.run++
	s.n.emit(TargetAll, SetCursor{Locked: false})
	s.n.view.SetCamera(false)
	s.n.emit(TargetAll, ShowPanel{Show: true})
	s.n.setState(State{Index: 0, Playing: true})
	s.n.log.Info().Int("entries", s.script.Len()).Msg("starting dialogue sequence")
	s.playEntry()
	return true
}

// advance is the two-phase input: finish the reveal first, then move on.
func (s *Sequencer) advance() bool {
	if !s.n.state.Playing {
		return false
	}
	if s.n.reveal.Running() {
		s.completeReveal()
		return true
	}
	if s.n.cfg.HoldWhileSpeaking && s.n.player.Playing() {
		s.n.log.Debug().Msg("advance held: audio still playing")
		return false
	}
	s.next()
	return true
}

func (s *Sequencer) skip() bool {
	if !s.n.state.Playing {
		return false
	}
	s.end()
	return true
}

func (s *Sequencer) next() {
	i := s.n.state.Index + 1
	if i >= s.script.Len() {
		s.end()
		return
	}
	s.n.setState(State{Index: i, Playing: true})
	s.playEntry()
}

func (s *Sequencer) end() {
	s.cancelTimers()
	s.line++
	s.n.reveal.Cancel()
	s.n.player.Stop()
	s.n.emit(TargetAll, SetCursor{Locked: true})
	s.n.view.SetCamera(true)
	s.n.setState(Idle)
	s.n.emit(TargetAll, ShowPanel{Show: false})
	s.n.log.Info().Msg("dialogue sequence completed")
}

func (s *Sequencer) completeReveal() {
	e, ok := s.script.At(s.n.state.Index)
	if !ok {
		return
	}
	s.n.emit(TargetAll, UpdateText{Text: e.Text})
}

func (s *Sequencer) playEntry() {
	i := s.n.state.Index
	e, ok := s.script.At(i)
	if !ok {
		return
	}
	s.cancelTimers()
	s.line++
	s.n.emit(TargetAll, UpdateUI{Speaker: e.Speaker, Text: e.Text, R: e.Color.R, G: e.Color.G, B: e.Color.B})
	s.n.emit(TargetAll, StartTypewriter{Text: e.Text})
	s.n.log.Info().Int("index", i).Int("total", s.script.Len()).Str("text", e.Text).Msg("playing dialogue entry")

	if e.Audio != nil {
		s.deliverAudio(i, e.Audio)
		return
	}
	s.requestAudio(i, e.Text)
}

func (s *Sequencer) requestAudio(index int, text string) {
	if strings.TrimSpace(text) == "" || s.n.synth == nil {
		return
	}
	run, line := s.run, s.line
	synth, voice := s.n.synth, s.n.cfg.Voice
	s.n.disp.Go(func(ctx context.Context) func() {
		started := time.Now()
		buf, err := synth.Synthesize(ctx, text, voice)
		metricSynthesisMS.Observe(float64(time.Since(started).Milliseconds()))
		if err == nil && buf.Empty() {
			err = fmt.Errorf("%w: empty audio for entry %d", ErrSynthesis, index)
		}
		ev := Event{Kind: eventAudioReady, Index: index, run: run, line: line, buf: buf}
		if err != nil {
			ev = Event{Kind: eventAudioFailed, Index: index, run: run, line: line, err: err}
		}
		return func() { s.Handle(ev) }
	})
}

func (s *Sequencer) audioReady(ev Event) bool {
	metricSynthesis.WithLabelValues("ok").Inc()
	if ev.run != s.run {
		s.n.log.Debug().Int("index", ev.Index).Msg("dropping audio from a finished sequence")
		return false
	}
	if ev.line != s.line || ev.Index != s.n.state.Index {
		// Late but same sequence: keep it, nobody hears it.
		s.n.cache.Put(ev.Index, ev.buf)
		s.n.log.Debug().Int("index", ev.Index).Msg("caching late audio")
		return false
	}
	s.deliverAudio(ev.Index, ev.buf)
	return true
}

func (s *Sequencer) audioFailed(ev Event) bool {
	metricSynthesis.WithLabelValues("error").Inc()
	s.n.log.Error().Err(ev.err).Int("index", ev.Index).Msg("speech synthesis failed; continuing without audio")
	return false
}

// deliverAudio plays buf locally, ships it to the others and arms the
// automatic advance.
func (s *Sequencer) deliverAudio(index int, buf *domain.AudioBuffer) {
	s.n.cache.Put(index, buf)
	s.n.play(index, buf)

	data, err := NewAudioData(index, buf)
	switch {
	case err != nil:
		s.n.log.Error().Err(err).Int("index", index).Msg("cannot encode audio")
	case s.n.cfg.MaxFrameBytes > 0 && AudioFrameSize(len(data.Samples)) > s.n.cfg.MaxFrameBytes:
		metricAudioOversize.Inc()
		s.n.log.Error().Int("index", index).Int64("frame_bytes", AudioFrameSize(len(data.Samples))).
			Int64("max_frame_bytes", s.n.cfg.MaxFrameBytes).Dur("duration", buf.Duration()).
			Msg("audio too large for the relay; followers get text only")
	default:
		metricAudioBytesSent.Add(float64(len(data.Samples)))
		s.n.log.Debug().Int("index", index).Int("bytes", len(data.Samples)).Msg("sending audio data")
		s.n.emit(TargetOthers, data)
	}

	if s.n.cfg.AutoAdvance && index+1 < s.script.Len() {
		run, line := s.run, s.line
		wait := buf.Duration() + s.n.cfg.AutoAdvanceDelay
		s.autoTimer = s.n.disp.After(wait, func() {
			s.Handle(Event{Kind: eventAutoAdvance, Index: index, run: run, line: line})
		})
	}
}

func (s *Sequencer) autoAdvance(ev Event) bool {
	if ev.run != s.run || ev.line != s.line || !s.n.state.Playing || s.n.state.Index != ev.Index {
		return false
	}
	s.autoTimer = nil
	s.n.reveal.Cancel()
	s.next()
	return true
}

func (s *Sequencer) cancelTimers() {
	if s.autoTimer != nil {
		s.autoTimer.Stop()
		s.autoTimer = nil
	}
}

// suspend drops leader-only pending work after leadership is lost.
func (s *Sequencer) suspend() {
	s.cancelTimers()
	s.line++
}
