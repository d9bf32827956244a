package dialogue

import "time"

// reveal is the per-character typewriter task. It only runs on the session
// goroutine; stale timer callbacks are discarded by generation.
type reveal struct {
	disp  Dispatcher
	view  View
	speed time.Duration

	runes   []rune
	pos     int
	running bool
	gen     uint64
	timer   Timer
}

func newReveal(disp Dispatcher, view View, speed time.Duration) *reveal {
	return &reveal{disp: disp, view: view, speed: speed}
}

func (r *reveal) Running() bool { return r.running }

// Start cancels any reveal in flight and begins revealing text.
func (r *reveal) Start(text string) {
	r.Cancel()
	r.runes = []rune(text)
	r.pos = 0
	if r.speed <= 0 || len(r.runes) == 0 {
		r.view.SetText(text)
		return
	}
	r.running = true
	r.view.SetText("")
	r.step(r.gen)
}

func (r *reveal) step(gen uint64) {
	if gen != r.gen || !r.running {
		return
	}
	r.pos++
	r.view.SetText(string(r.runes[:r.pos]))
	if r.pos >= len(r.runes) {
		r.running = false
		r.timer = nil
		return
	}
	r.timer = r.disp.After(r.speed, func() { r.step(gen) })
}

// Cancel stops the reveal where it is.
func (r *reveal) Cancel() {
	r.gen++
	r.running = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Complete stops the reveal and shows text in full.
func (r *reveal) Complete(text string) {
	r.Cancel()
	r.runes = []rune(text)
	r.pos = len(r.runes)
	r.view.SetText(text)
}
