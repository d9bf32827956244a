package client

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/dialogue"
	"github.com/dkeye/Classroom/internal/domain"
)

// TerminalView renders the dialogue panel as lines of text.
type TerminalView struct {
	mu      sync.Mutex
	w       io.Writer
	speaker string
	shown   bool
}

func NewTerminalView(w io.Writer) *TerminalView {
	return &TerminalView{w: w}
}

func (v *TerminalView) ShowPanel(show bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.shown == show {
		return
	}
	v.shown = show
	if show {
		fmt.Fprintln(v.w, "=== dialogue ===")
	} else {
		fmt.Fprintln(v.w, "\n=== end ===")
	}
}

func (v *TerminalView) UpdateUI(speaker, text string, _ domain.Color) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.speaker = speaker
	fmt.Fprintf(v.w, "\n%s: ", speaker)
}

// SetText redraws the current line in place.
func (v *TerminalView) SetText(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, "\r\033[K%s: %s", v.speaker, text)
}

func (v *TerminalView) SetCursorLocked(locked bool) {
	log.Debug().Str("module", "client.view").Bool("locked", locked).Msg("cursor")
}

func (v *TerminalView) SetCamera(main bool) {
	log.Debug().Str("module", "client.view").Bool("main", main).Msg("camera")
}

func (v *TerminalView) StateChanged(st dialogue.State) {
	log.Debug().Str("module", "client.view").Str("state", st.String()).Msg("state changed")
}
