package cursor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jiftoo/radio/config"
)

func writeTempFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		full := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanPlaylistFiltersExtensions(t *testing.T) {
	root := t.TempDir()
	writeTempFiles(t, root, "a.mp3", "b.flac", "c.opus", "d.wav", "e.txt", "f.MP3")

	tracks, err := ScanPlaylist([]config.DirectoryConfig{{Root: root, Mode: config.ModeExclude}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 5 {
		t.Fatalf("expected 5 supported tracks, got %d: %v", len(tracks), tracks)
	}
}

func TestScanPlaylistExcludeFilter(t *testing.T) {
	root := t.TempDir()
	writeTempFiles(t, root, "keep/a.mp3", "skip/b.mp3")

	tracks, err := ScanPlaylist([]config.DirectoryConfig{{
		Root:  root,
		Mode:  config.ModeExclude,
		Paths: []string{filepath.Join(root, "skip")},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || filepath.Base(tracks[0]) != "a.mp3" {
		t.Fatalf("expected only keep/a.mp3, got %v", tracks)
	}
}

func TestScanPlaylistIncludeFilter(t *testing.T) {
	root := t.TempDir()
	writeTempFiles(t, root, "keep/a.mp3", "other/b.mp3")

	tracks, err := ScanPlaylist([]config.DirectoryConfig{{
		Root:  root,
		Mode:  config.ModeInclude,
		Paths: []string{filepath.Join(root, "keep")},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || filepath.Base(tracks[0]) != "a.mp3" {
		t.Fatalf("expected only keep/a.mp3, got %v", tracks)
	}
}

func TestScanSweepersNonRecursive(t *testing.T) {
	root := t.TempDir()
	writeTempFiles(t, root, "top.mp3", "nested/deep.mp3")

	sweepers, err := ScanSweepers(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(sweepers) != 1 || filepath.Base(sweepers[0]) != "top.mp3" {
		t.Fatalf("expected only top.mp3, got %v", sweepers)
	}
}

func TestScanSweepersMissingDirIsEmptyNotError(t *testing.T) {
	sweepers, err := ScanSweepers(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sweepers) != 0 {
		t.Fatalf("expected no sweepers, got %v", sweepers)
	}
}
