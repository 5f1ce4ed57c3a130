// Package broadcast implements the orchestrator that ties the playlist
// cursor, the probe and transcoder adapters, the metadata ring, the
// album-art holder, the fan-out bus, and the statistics aggregator into the
// station's single continuous play loop.
package broadcast

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/jiftoo/radio/config"
	"github.com/jiftoo/radio/internal/albumart"
	"github.com/jiftoo/radio/internal/bus"
	"github.com/jiftoo/radio/internal/cursor"
	"github.com/jiftoo/radio/internal/notify"
	"github.com/jiftoo/radio/internal/probe"
	"github.com/jiftoo/radio/internal/ring"
	"github.com/jiftoo/radio/internal/stats"
	"github.com/jiftoo/radio/internal/transcoder"
)

const pumpBufferSize = 4096

// transcoderReader is the slice of *transcoder.Reader that pump depends on.
// Tests substitute a fake to exercise the pump loop's stats/EOF/error
// handling without spawning ffmpeg.
type transcoderReader interface {
	ReadInto(buf []byte) transcoder.Result
}

// Engine is the single Broadcast Loop task. There is exactly one per
// process; it owns all writes to the Cursor, the Metadata Ring, the
// Album-Art Holder, and playback-originated Statistics fields.
type Engine struct {
	cursor   *cursor.Cursor
	bus      *bus.Bus
	ring     *ring.Ring
	art      *albumart.Holder
	stats    *stats.Stats
	notifier *notify.Notifier

	sweeperChance float64
	transcodeAll  bool
	bitrateBps    int

	skipCh chan struct{}
}

// New wires an Engine over its already-constructed collaborators.
func New(
	cur *cursor.Cursor,
	b *bus.Bus,
	r *ring.Ring,
	art *albumart.Holder,
	st *stats.Stats,
	n *notify.Notifier,
	cfg *config.Config,
) *Engine {
	return &Engine{
		cursor:        cur,
		bus:           b,
		ring:          r,
		art:           art,
		stats:         st,
		notifier:      n,
		sweeperChance: cfg.SweeperChance,
		transcodeAll:  cfg.TranscodeAll,
		bitrateBps:    cfg.BitrateBps,
		skipCh:        make(chan struct{}, 1),
	}
}

// Skip aborts the currently-playing track, advancing immediately. Safe to
// call from any goroutine.
func (e *Engine) Skip() {
	select {
	case e.skipCh <- struct{}{}:
	default:
	}
}

// Run executes the broadcast loop until ctx is cancelled. It never returns
// an error: every per-track failure is logged and the loop moves on.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("broadcast loop started")
	track := e.cursor.Current()
	advance := false

	for {
		if ctx.Err() != nil {
			slog.Info("broadcast loop stopping")
			return
		}

		if advance {
			track = e.cursor.Advance()
		}
		advance = true

		if err := e.playOne(ctx, track); err != nil {
			slog.Warn("track skipped", "track", track, "error", err)
		}
	}
}

// playOne runs one iteration of the per-track algorithm: probe, sweeper
// selection, album art, transcode, and the pump loop.
func (e *Engine) playOne(ctx context.Context, track string) error {
	meta, err := probe.Probe(ctx, track)
	if err != nil {
		return err
	}
	meta.Filename = filepath.Base(track)

	sweeper := e.selectSweeper()
	copyCodec := !e.transcodeAll && strings.EqualFold(meta.Codec, "mp3") && sweeper == ""

	effectiveBitrate := e.bitrateBps
	if copyCodec && meta.BitrateBps > 0 {
		effectiveBitrate = meta.BitrateBps
	}
	e.stats.ObserveBitrate(effectiveBitrate)

	art, hasArt := e.resolveAlbumArt(track)
	if hasArt {
		e.art.Set(art)
	} else {
		e.art.Clear()
	}

	e.ring.Push(*meta)
	e.notifier.Notify()

	trackCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var skipped bool
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-e.skipCh:
			skipped = true
			cancel()
		case <-trackCtx.Done():
		}
	}()

	r, err := transcoder.Start(trackCtx, transcoder.Options{
		Input:      track,
		Sweeper:    sweeper,
		BitrateBps: e.bitrateBps,
		CopyCodec:  copyCodec,
	})
	if err != nil {
		cancel()
		<-watchDone
		return err
	}

	pumpErr := e.pump(r, copyCodec)
	r.Close()
	cancel()
	<-watchDone

	// cancel() above always makes trackCtx.Err() non-nil by this point, so the
	// only way to tell a genuine transcoder failure from an intentional skip
	// or a parent-context shutdown is the skipped flag the watcher goroutine
	// set and ctx (the parent) itself.
	if pumpErr != nil && ctx.Err() == nil && !skipped {
		return pumpErr
	}
	return nil
}

// pump reads the transcoder's output into a fixed buffer and publishes each
// chunk, updating statistics as it goes, until EOF or a fatal error.
func (e *Engine) pump(r transcoderReader, copyCodec bool) error {
	buf := make([]byte, pumpBufferSize)
	for {
		res := r.ReadInto(buf)
		switch res.Kind {
		case transcoder.KindAudio:
			if res.N == 0 {
				return nil
			}
			subscribers := e.bus.Publish(buf[:res.N])
			if copyCodec {
				e.stats.AddCopied(res.N, subscribers)
			} else {
				e.stats.AddTranscoded(res.N, subscribers)
			}
		case transcoder.KindEOF:
			return nil
		case transcoder.KindError:
			slog.Warn("transcoder error", "text", res.Text)
			return errTranscode(res.Text)
		}
	}
}

type errTranscode string

func (e errTranscode) Error() string { return "transcoder: " + string(e) }

func (e *Engine) selectSweeper() string {
	if e.sweeperChance <= 0 {
		return ""
	}
	if rand.Float64() >= e.sweeperChance {
		return ""
	}
	s, ok := e.cursor.RandomSweeper()
	if !ok {
		return ""
	}
	return s
}

var artExtensions = []string{".png", ".jpg", ".jpeg"}

// resolveAlbumArt implements the embedded-art-then-directory-scan fallback:
// embedded art wins outright; otherwise the track's directory is searched
// for image files, preferring one named "cover", and otherwise racing every
// candidate and accepting the first that yields bytes.
func (e *Engine) resolveAlbumArt(track string) ([]byte, bool) {
	data, result, err := probe.AlbumArtPNG(track)
	if err != nil {
		slog.Debug("embedded album art read failed", "track", track, "error", err)
	}
	if result == probe.ArtFound {
		return data, true
	}

	dir := filepath.Dir(track)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false
	}

	var candidates []string
	var preferred string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		matches := false
		for _, want := range artExtensions {
			if ext == want {
				matches = true
				break
			}
		}
		if !matches {
			continue
		}
		path := filepath.Join(dir, name)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if preferred == "" && strings.EqualFold(stem, "cover") {
			preferred = path
		}
		candidates = append(candidates, path)
	}

	if preferred != "" {
		if b, err := os.ReadFile(preferred); err == nil && len(b) > 0 {
			return b, true
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	return raceReadFirst(candidates)
}

// raceReadFirst reads every candidate concurrently and returns the first
// non-empty result, ignoring slower or failed reads.
func raceReadFirst(candidates []string) ([]byte, bool) {
	type result struct {
		data []byte
		ok   bool
	}
	resultCh := make(chan result, len(candidates))
	for _, path := range candidates {
		path := path
		go func() {
			b, err := os.ReadFile(path)
			resultCh <- result{data: b, ok: err == nil && len(b) > 0}
		}()
	}

	for range candidates {
		res := <-resultCh
		if res.ok {
			return res.data, true
		}
	}
	return nil, false
}
