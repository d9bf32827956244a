package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/audio"
	"github.com/dkeye/Classroom/internal/domain"
)

// WAVPlayer stands in for a sound device: each played buffer is written to
// dir and counts as playing for its duration. An empty dir only keeps time.
// It is used from the session goroutine only.
type WAVPlayer struct {
	dir   string
	now   func() time.Time
	until time.Time
	n     int
}

func NewWAVPlayer(dir string) *WAVPlayer {
	return &WAVPlayer{dir: dir, now: time.Now}
}

func (p *WAVPlayer) Play(buf *domain.AudioBuffer) {
	p.n++
	p.until = p.now().Add(buf.Duration())
	if p.dir == "" {
		return
	}
	path := filepath.Join(p.dir, fmt.Sprintf("line-%03d.wav", p.n))
	if err := p.write(path, buf); err != nil {
		log.Error().Err(err).Str("module", "client.player").Str("path", path).Msg("write wav")
		return
	}
	log.Info().Str("module", "client.player").Str("path", path).Dur("duration", buf.Duration()).Msg("playing")
}

func (p *WAVPlayer) write(path string, buf *domain.AudioBuffer) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audio.WriteWAV(f, buf); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (p *WAVPlayer) Stop() { p.until = time.Time{} }

func (p *WAVPlayer) Playing() bool { return p.now().Before(p.until) }
