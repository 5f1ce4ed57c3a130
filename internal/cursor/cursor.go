// Package cursor owns the immutable playlist and sweeper list built at
// startup, and the current play-head index into the playlist.
package cursor

import (
	"fmt"
	"math/rand"
	"sync"
)

// Cursor holds the playlist, the sweeper list, and the current index. The
// playlist and sweeper list never change after construction; the index has a
// single writer (the broadcast loop) and many readers (the HTTP surface).
type Cursor struct {
	playlist []string
	sweepers []string
	shuffle  bool

	mu    sync.RWMutex
	index int

	rng *rand.Rand
}

// New builds a Cursor over playlist (must be non-empty) and sweepers (may be
// empty). When shuffle is true the starting index is chosen uniformly at
// random, matching the original station's startup behavior; otherwise
// playback starts at index 0.
func New(playlist, sweepers []string, shuffle bool) (*Cursor, error) {
	if len(playlist) == 0 {
		return nil, fmt.Errorf("playlist is empty")
	}

	c := &Cursor{
		playlist: playlist,
		sweepers: sweepers,
		shuffle:  shuffle,
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}
	if shuffle {
		c.index = c.rng.Intn(len(playlist))
	}
	return c, nil
}

// Len returns the playlist length.
func (c *Cursor) Len() int {
	return len(c.playlist)
}

// Sweepers returns the immutable sweeper list.
func (c *Cursor) Sweepers() []string {
	return c.sweepers
}

// Current returns the track at the current index.
func (c *Cursor) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playlist[c.index]
}

// Index returns the current index.
func (c *Cursor) Index() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Advance moves the cursor to the next track per the configured policy
// (sequential wraparound, or uniform random with no immediate repeat unless
// there is only one track) and returns the new current track. It is a single
// atomic write: callers must call it exactly once per play-or-skip, never
// both.
func (c *Cursor) Advance() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.playlist)
	if c.shuffle {
		next := c.index
		for {
			next = c.rng.Intn(n)
			if next != c.index || n == 1 {
				break
			}
		}
		c.index = next
	} else {
		c.index = (c.index + 1) % n
	}
	return c.playlist[c.index]
}

// RandomSweeper draws a uniformly random sweeper path using the cursor's own
// seeded source (the same one Advance uses for shuffle), not the global
// math/rand source. ok is false if the sweeper list is empty.
func (c *Cursor) RandomSweeper() (path string, ok bool) {
	if len(c.sweepers) == 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepers[c.rng.Intn(len(c.sweepers))], true
}
