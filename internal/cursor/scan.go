package cursor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jiftoo/radio/config"
)

// SupportedExtensions lists the audio file extensions recognized by the
// playlist scanner (case-insensitive, without the leading dot).
var SupportedExtensions = []string{"mp3", "flac", "opus", "wav"}

func isSupportedExtension(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ScanPlaylist walks every configured directory root and returns the sorted,
// deduplicated list of playable audio files, applying each root's
// include/exclude filter.
func ScanPlaylist(dirs []config.DirectoryConfig) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	for _, dir := range dirs {
		found, err := walkOne(dir)
		if err != nil {
			return nil, fmt.Errorf("scanning %q: %w", dir.Root, err)
		}
		for _, p := range found {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}

	sort.Strings(out)
	slog.Info("playlist scan complete", "tracks", len(out))
	return out, nil
}

func walkOne(dir config.DirectoryConfig) ([]string, error) {
	var out []string
	err := filepath.Walk(dir.Root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			slog.Warn("scan: skipping path", "path", path, "error", walkErr)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !isSupportedExtension(path) {
			return nil
		}
		if !passesFilter(path, dir) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// passesFilter implements the Include/Exclude semantics: exclude drops a
// path if it starts with any excluded prefix; include keeps a path only if
// it starts with some included prefix. The two modes are mutually exclusive
// per directory entry.
func passesFilter(path string, dir config.DirectoryConfig) bool {
	if len(dir.Paths) == 0 {
		return true
	}
	switch dir.Mode {
	case config.ModeInclude:
		for _, p := range dir.Paths {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	case config.ModeExclude:
		for _, p := range dir.Paths {
			if strings.HasPrefix(path, p) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// ScanSweepers lists the contents of dir non-recursively and returns the
// sorted set of playable audio files found directly inside it. An empty or
// missing directory yields an empty (not error) result.
func ScanSweepers(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sweeper directory %q: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isSupportedExtension(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
