package domain

// Color is an RGB triple with components in [0,1].
type Color struct {
	R float32 `json:"r" mapstructure:"r"`
	G float32 `json:"g" mapstructure:"g"`
	B float32 `json:"b" mapstructure:"b"`
}

var (
	ColorWhite = Color{R: 1, G: 1, B: 1}
	ColorCyan  = Color{R: 0, G: 1, B: 1}
)

// Entry is one line of a dialogue script.
type Entry struct {
	Speaker string
	Text    string
	Color   Color
	// Audio is an optional pre-supplied buffer; when nil the line is synthesized.
	Audio *AudioBuffer
}

// Script is an ordered, immutable list of entries.
type Script []Entry

func (s Script) Len() int { return len(s) }

// At returns the entry at i and whether i is in range.
func (s Script) At(i int) (Entry, bool) {
	if i < 0 || i >= len(s) {
		return Entry{}, false
	}
	return s[i], true
}

// Clone copies the entry slice so later edits to the source cannot leak in.
func (s Script) Clone() Script {
	out := make(Script, len(s))
	copy(out, s)
	return out
}

// DefaultScript is used when no entries are configured.
func DefaultScript() Script {
	lines := []string{
		"Hello! Welcome to our synchronized classroom.",
		"You will be asked to answer the quiz.",
		"Quiz paper is on the table.",
		"Take your time to read the questions.",
		"Good luck!",
	}
	out := make(Script, 0, len(lines))
	for _, l := range lines {
		out = append(out, Entry{Speaker: "Teacher", Text: l, Color: ColorCyan})
	}
	return out
}
