// Package transcoder supervises an external transcoder subprocess (ffmpeg)
// that re-encodes or bit-copies one input file, optionally mixing in a
// sweeper jingle, at real-time pacing.
package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// Kind distinguishes the three outcomes of a Reader.ReadInto.
type Kind int

const (
	KindAudio Kind = iota
	KindEOF
	KindError
)

// Result is returned by Reader.ReadInto instead of the usual (n, err) pair so
// that "zero-length audio" (EOF) and "fatal stderr text" (Error) are not
// conflated with ordinary io.Reader error handling.
type Result struct {
	Kind Kind
	N    int    // valid when Kind == KindAudio
	Text string // valid when Kind == KindError
}

// Options configures one transcode run.
type Options struct {
	Input      string
	Sweeper    string // optional; empty means no sweeper
	BitrateBps int
	CopyCodec  bool // bit-copy instead of re-encoding; incompatible with Sweeper
}

// Reader supervises one ffmpeg subprocess and exposes a non-blocking-style
// read interface over its stdout/stderr pipes.
type Reader struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	dataCh  chan []byte
	errCh   chan string
	closeCh chan struct{}

	leftover []byte
}

// Start launches ffmpeg per opts and begins pumping its stdout/stderr in the
// background. The caller must call Close when done (EOF, Error, or giving up
// early) to guarantee the subprocess is not leaked.
func Start(ctx context.Context, opts Options) (*Reader, error) {
	args := buildArgs(opts)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	r := &Reader{
		cmd:     cmd,
		stdout:  stdout,
		stderr:  stderr,
		dataCh:  make(chan []byte, 8),
		errCh:   make(chan string, 1),
		closeCh: make(chan struct{}),
	}

	go r.pumpStdout()
	go r.pumpStderr()

	return r, nil
}

func buildArgs(opts Options) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-re", "-threads", "1", "-i", opts.Input}

	if opts.Sweeper != "" {
		// Mix the sweeper over the track starting 1 second in: the track plays
		// unmixed for the first second (amix's "first" duration mode simply
		// uses input 0's length, so the main bed dominates until the delayed
		// sweeper has data), then amix blends main bed, a duplicate bed, and
		// the delayed sweeper at relative weights 1:1:0.1 with a 0.5s
		// crossfade back to just the track once the sweeper runs out.
		args = append(args, "-i", opts.Sweeper)
		filter := "[0:a]asplit=2[bed1][bed2];" +
			"[1:a]adelay=1000|1000[swdelayed];" +
			"[bed1][bed2][swdelayed]amix=inputs=3:duration=first:dropout_transition=0.5:weights=1 1 0.1[mixout]"
		args = append(args, "-filter_complex", filter, "-map", "[mixout]")
	}

	if opts.CopyCodec && opts.Sweeper == "" {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", "mp3", "-b:a", strconv.Itoa(opts.BitrateBps))
	}

	args = append(args,
		"-write_xing", "0",
		"-id3v2_version", "0",
		"-map_metadata", "-1",
		"-vn",
		"-f", "mp3",
		"pipe:1",
	)
	return args
}

func (r *Reader) pumpStdout() {
	buf := make([]byte, 4096)
	for {
		n, err := r.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case r.dataCh <- chunk:
			case <-r.closeCh:
				return
			}
		}
		if err != nil {
			close(r.dataCh)
			return
		}
	}
}

func (r *Reader) pumpStderr() {
	buf := make([]byte, 4096)
	n, _ := r.stderr.Read(buf)
	if n <= 0 {
		return
	}
	var acc bytes.Buffer
	acc.Write(buf[:n])
	r.drainQuiescence(&acc)
	select {
	case r.errCh <- acc.String():
	case <-r.closeCh:
	}
}

// drainQuiescence accumulates further stderr output for as long as new bytes
// keep arriving within a 200ms window, then returns. This matches observed
// ffmpeg behavior of writing an error in several small writes.
func (r *Reader) drainQuiescence(acc *bytes.Buffer) {
	buf := make([]byte, 4096)
	type readResult struct {
		n   int
		err error
	}
	resultCh := make(chan readResult, 1)

	for {
		go func() {
			n, err := r.stderr.Read(buf)
			resultCh <- readResult{n, err}
		}()

		timer := time.NewTimer(200 * time.Millisecond)
		select {
		case res := <-resultCh:
			timer.Stop()
			if res.n > 0 {
				acc.Write(buf[:res.n])
				continue
			}
			return
		case <-timer.C:
			return
		}
	}
}

// ReadInto copies the next chunk of audio into buf and returns the Result
// describing what happened; when Kind == KindAudio, buf[:N] holds the bytes.
func (r *Reader) ReadInto(buf []byte) Result {
	if len(r.leftover) > 0 {
		n := copy(buf, r.leftover)
		r.leftover = r.leftover[n:]
		return Result{Kind: KindAudio, N: n}
	}

	// Non-blocking priority check: audio data takes precedence over stderr
	// when both are ready, the same bias the original reader gave stdout.
	select {
	case chunk, ok := <-r.dataCh:
		if !ok {
			return Result{Kind: KindEOF}
		}
		return r.fill(buf, chunk)
	default:
	}

	select {
	case chunk, ok := <-r.dataCh:
		if !ok {
			return Result{Kind: KindEOF}
		}
		return r.fill(buf, chunk)
	case text, ok := <-r.errCh:
		if !ok {
			return Result{Kind: KindEOF}
		}
		return Result{Kind: KindError, Text: text}
	}
}

func (r *Reader) fill(buf []byte, chunk []byte) Result {
	n := copy(buf, chunk)
	if n < len(chunk) {
		r.leftover = chunk[n:]
	}
	return Result{Kind: KindAudio, N: n}
}

// Close kills the subprocess (if still running) and releases its pipes.
// Safe to call more than once.
func (r *Reader) Close() error {
	select {
	case <-r.closeCh:
		return nil
	default:
		close(r.closeCh)
	}
	if r.cmd.Process != nil {
		if err := r.cmd.Process.Kill(); err != nil {
			slog.Debug("transcoder kill", "error", err)
		}
	}
	_ = r.cmd.Wait()
	return nil
}
