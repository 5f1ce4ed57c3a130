// Package stats holds the station's live operational counters and gauges.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is safe for concurrent use. Counters are atomics; time_played uses a
// monotonic start instant recorded at process start.
type Stats struct {
	startedAt time.Time

	listeners    atomic.Int64
	maxListeners atomic.Int64

	bytesTranscoded  atomic.Int64
	bytesCopied      atomic.Int64
	bytesSent        atomic.Int64
	targetBandwidth  atomic.Int64

	mu        sync.Mutex
	accum     int64
	lastTick  time.Time

	bitrateMu    sync.Mutex
	lastBitrate  int
	bitrateSet   bool
	bitrateVaries atomic.Bool
}

// New creates a Stats with time_played measured from now.
func New() *Stats {
	now := time.Now()
	return &Stats{startedAt: now, lastTick: now}
}

// IncListeners records a new subscriber connecting.
func (s *Stats) IncListeners() {
	n := s.listeners.Add(1)
	for {
		cur := s.maxListeners.Load()
		if n <= cur || s.maxListeners.CompareAndSwap(cur, n) {
			return
		}
	}
}

// DecListeners records a subscriber disconnecting. Every IncListeners is
// matched by exactly one DecListeners over a subscription's lifetime.
func (s *Stats) DecListeners() {
	s.listeners.Add(-1)
}

// Listeners returns the current listener count.
func (s *Stats) Listeners() int64 {
	return s.listeners.Load()
}

// MaxListeners returns the peak listener count observed so far.
func (s *Stats) MaxListeners() int64 {
	return s.maxListeners.Load()
}

// AddTranscoded records n re-encoded bytes produced and n*subscribers bytes
// sent.
func (s *Stats) AddTranscoded(n int, subscribers int) {
	s.bytesTranscoded.Add(int64(n))
	s.addSent(n, subscribers)
}

// AddCopied records n bit-copied bytes produced and n*subscribers bytes
// sent.
func (s *Stats) AddCopied(n int, subscribers int) {
	s.bytesCopied.Add(int64(n))
	s.addSent(n, subscribers)
}

func (s *Stats) addSent(n int, subscribers int) {
	s.bytesSent.Add(int64(n * subscribers))

	s.mu.Lock()
	s.accum += int64(n)
	if since := time.Since(s.lastTick); since >= time.Second {
		s.targetBandwidth.Store(s.accum * int64(subscribers))
		s.accum = 0
		s.lastTick = time.Now()
	}
	s.mu.Unlock()
}

// BytesTranscoded returns the running total of re-encoded bytes produced.
func (s *Stats) BytesTranscoded() int64 { return s.bytesTranscoded.Load() }

// BytesCopied returns the running total of bit-copied bytes produced.
func (s *Stats) BytesCopied() int64 { return s.bytesCopied.Load() }

// BytesSent returns the running total of bytes delivered across all
// subscribers.
func (s *Stats) BytesSent() int64 { return s.bytesSent.Load() }

// TargetBandwidth returns the most recent one-second bandwidth sample, in
// bytes/second across all current subscribers.
func (s *Stats) TargetBandwidth() int64 { return s.targetBandwidth.Load() }

// TimePlayed returns the duration since the station started.
func (s *Stats) TimePlayed() time.Duration {
	return time.Since(s.startedAt)
}

// ObserveBitrate records the effective bitrate (bits/s) of the track
// currently being played. Once two different values have been observed in
// the same process, BitrateVaries reports true for the rest of the
// station's lifetime.
func (s *Stats) ObserveBitrate(bps int) {
	s.bitrateMu.Lock()
	defer s.bitrateMu.Unlock()
	if !s.bitrateSet {
		s.lastBitrate = bps
		s.bitrateSet = true
		return
	}
	if bps != s.lastBitrate {
		s.bitrateVaries.Store(true)
	}
	s.lastBitrate = bps
}

// BitrateVaries reports whether two different effective bitrates have been
// observed via ObserveBitrate. /stream uses this to decide between sending
// a concrete x-bitrate value and the literal "vary".
func (s *Stats) BitrateVaries() bool {
	return s.bitrateVaries.Load()
}

// LastBitrate returns the most recently observed effective bitrate, or 0 if
// ObserveBitrate has never been called.
func (s *Stats) LastBitrate() int {
	s.bitrateMu.Lock()
	defer s.bitrateMu.Unlock()
	return s.lastBitrate
}

// Snapshot is a point-in-time read of every field, convenient for the
// /webui endpoint.
type Snapshot struct {
	TimePlayed      time.Duration
	Listeners       int64
	MaxListeners    int64
	BytesTranscoded int64
	BytesCopied     int64
	BytesSent       int64
	TargetBandwidth int64
}

// Snapshot returns a consistent-enough read of all fields (individually
// atomic, not transactionally joined — acceptable for a human-readable
// status page).
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TimePlayed:      s.TimePlayed(),
		Listeners:       s.Listeners(),
		MaxListeners:    s.MaxListeners(),
		BytesTranscoded: s.BytesTranscoded(),
		BytesCopied:     s.BytesCopied(),
		BytesSent:       s.BytesSent(),
		TargetBandwidth: s.TargetBandwidth(),
	}
}
