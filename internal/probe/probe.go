// Package probe wraps an external audio-probing tool (ffprobe) to extract
// per-track metadata, and the dhowden/tag library to extract embedded cover
// art without spawning a second subprocess.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata is the structured report for one track. All fields except Codec
// are optional; a zero value means "unset", not "empty string".
type Metadata struct {
	Filename    string
	Title       string
	Album       string
	Artist      string
	AlbumArtist string
	Publisher   string
	Disc        string
	Track       string
	Genre       string
	BitrateBps  int // 0 means unset
	Codec       string
}

// Error reports a probe failure. The caller skips the track on any Error.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %s", e.Path, e.Reason)
}

type ffprobeFormat struct {
	BitRate string            `json:"bit_rate"`
	Tags    map[string]string `json:"tags"`
}

type ffprobeStream struct {
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	BitRate   string            `json:"bit_rate"`
	Tags      map[string]string `json:"tags"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// Probe runs ffprobe against path and parses its JSON report into Metadata.
// Any non-zero exit or unparseable output yields *Error.
func Probe(ctx context.Context, path string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &Error{Path: path, Reason: fmt.Sprintf("ffprobe failed: %v: %s", err, strings.TrimSpace(stderr.String()))}
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, &Error{Path: path, Reason: fmt.Sprintf("unparseable ffprobe output: %v", err)}
	}

	var audio *ffprobeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "audio" {
			audio = &out.Streams[i]
			break
		}
	}
	if audio == nil {
		return nil, &Error{Path: path, Reason: "no audio stream"}
	}

	meta := &Metadata{
		Codec: audio.CodecName,
	}
	if meta.Codec == "" {
		return nil, &Error{Path: path, Reason: "empty codec name"}
	}

	if bps := firstNonEmpty(audio.BitRate, out.Format.BitRate); bps != "" {
		if n, err := strconv.Atoi(bps); err == nil {
			meta.BitrateBps = n
		}
	}

	tags := mergeTagsCaseInsensitive(out.Format.Tags, audio.Tags)
	meta.Title = tags["title"]
	meta.Album = tags["album"]
	meta.Artist = tags["artist"]
	meta.AlbumArtist = firstNonEmpty(tags["album_artist"], tags["albumartist"])
	meta.Publisher = firstNonEmpty(tags["publisher"], tags["label"])
	meta.Disc = tags["disc"]
	meta.Track = tags["track"]
	meta.Genre = tags["genre"]

	return meta, nil
}

func mergeTagsCaseInsensitive(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			key := strings.ToLower(k)
			if v != "" {
				merged[key] = v
			}
		}
	}
	return merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// AlbumArtResult distinguishes the three outcomes AlbumArtPNG can produce.
type AlbumArtResult int

const (
	// ArtFound means the returned byte slice holds the embedded image data.
	ArtFound AlbumArtResult = iota
	// ArtAbsent means the file has no embedded picture stream at all.
	ArtAbsent
	// ArtEmpty means a picture stream exists but yielded zero bytes.
	ArtEmpty
)

// AlbumArtPNG reads path's embedded cover image via its container tags
// (ID3/FLAC/MP4 picture frames). It distinguishes "no embedded image"
// (ArtAbsent) from "embedded image present but empty" (ArtEmpty) from a
// genuine read error.
func AlbumArtPNG(path string) ([]byte, AlbumArtResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ArtAbsent, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		// No readable tag container at all is treated as "no embedded art",
		// not an error: most wav/opus files simply lack one.
		return nil, ArtAbsent, nil
	}

	pic := m.Picture()
	if pic == nil {
		return nil, ArtAbsent, nil
	}
	if len(pic.Data) == 0 {
		return nil, ArtEmpty, nil
	}
	return pic.Data, ArtFound, nil
}
