package dialogue

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Loop is the session goroutine of one member. Everything that touches a
// Node is funnelled through it.
type Loop struct {
	ctx   context.Context
	tasks chan func()
}

func NewLoop(ctx context.Context, buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{ctx: ctx, tasks: make(chan func(), buffer)}
}

// Post blocks while the queue is full and drops fn once the loop is done.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.ctx.Done():
	}
}

func (l *Loop) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

func (l *Loop) Go(task func(ctx context.Context) func()) {
	go func() {
		if cont := task(l.ctx); cont != nil {
			l.Post(cont)
		}
	}()
}

// Run executes posted work and calls onTick every tick until ctx is done.
func (l *Loop) Run(tick time.Duration, onTick func()) error {
	var tc <-chan time.Time
	if tick > 0 && onTick != nil {
		t := time.NewTicker(tick)
		defer t.Stop()
		tc = t.C
	}
	for {
		select {
		case <-l.ctx.Done():
			log.Debug().Str("module", "dialogue.loop").Msg("loop ctx done")
			return l.ctx.Err()
		case fn := <-l.tasks:
			fn()
		case <-tc:
			onTick()
		}
	}
}
