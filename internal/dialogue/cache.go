package dialogue

import "github.com/dkeye/Classroom/internal/domain"

type cacheEntry struct {
	buf    *domain.AudioBuffer
	played bool
}

// AudioCache maps dialogue indexes to buffers for one member. Entries are
// never replaced while a sequence runs; Reset starts over.
type AudioCache struct {
	entries map[int]*cacheEntry
}

func NewAudioCache() *AudioCache {
	return &AudioCache{entries: make(map[int]*cacheEntry)}
}

// Put stores buf under index unless something is already there.
func (c *AudioCache) Put(index int, buf *domain.AudioBuffer) bool {
	if buf == nil {
		return false
	}
	if _, ok := c.entries[index]; ok {
		return false
	}
	c.entries[index] = &cacheEntry{buf: buf}
	return true
}

func (c *AudioCache) Get(index int) (*domain.AudioBuffer, bool) {
	e, ok := c.entries[index]
	if !ok {
		return nil, false
	}
	return e.buf, true
}

// Unplayed returns the buffer for index if it exists and was never played.
func (c *AudioCache) Unplayed(index int) (*domain.AudioBuffer, bool) {
	e, ok := c.entries[index]
	if !ok || e.played {
		return nil, false
	}
	return e.buf, true
}

func (c *AudioCache) MarkPlayed(index int) {
	if e, ok := c.entries[index]; ok {
		e.played = true
	}
}

func (c *AudioCache) Len() int { return len(c.entries) }

func (c *AudioCache) Reset() {
	clear(c.entries)
}
