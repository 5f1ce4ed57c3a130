// Package config loads the station configuration either from a TOML file or,
// when no file is found, from CLI flags layered over built-in defaults.
// Environment variables are not read.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

// DirectoryMode selects how a DirectoryConfig's Paths list is interpreted.
type DirectoryMode string

const (
	ModeInclude DirectoryMode = "include"
	ModeExclude DirectoryMode = "exclude"
)

// DirectoryConfig is one playlist scan root, with an optional include or
// exclude filter (never both — see Config.Validate).
type DirectoryConfig struct {
	Root  string        `toml:"root"`
	Mode  DirectoryMode `toml:"mode"`
	Paths []string      `toml:"paths"`
}

// Config is the fully-resolved station configuration.
type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	Dirs       []DirectoryConfig `toml:"dirs"`
	SweeperDir string            `toml:"sweeper_dir"`

	Shuffle       bool `toml:"shuffle"`
	TranscodeAll  bool `toml:"transcode_all"`
	BitrateBps    int  `toml:"bitrate"`
	SweeperChance float64 `toml:"sweeper_chance"`

	EnableMediainfo  bool `toml:"enable_mediainfo"`
	MediainfoHistory int  `toml:"mediainfo_history"`
	EnableWebUI      bool `toml:"enable_webui"`

	StationName string `toml:"station_name"`
	WebDir      string `toml:"web_dir"`

	MaxClients int `toml:"max_clients"`
}

// Default mirrors the original station's built-in defaults.
func Default() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             9005,
		Dirs:             []DirectoryConfig{{Root: "./music", Mode: ModeExclude}},
		SweeperDir:       "./sweepers",
		Shuffle:          true,
		TranscodeAll:     false,
		BitrateBps:       128_000,
		SweeperChance:    0,
		EnableMediainfo:  true,
		MediainfoHistory: 16,
		EnableWebUI:      true,
		StationName:      "radio",
		WebDir:           "./web/dist",
		MaxClients:       100,
	}
}

// configFilePath mirrors create_and_load's platform-specific location: a
// system path when running as root, a user path otherwise.
func configFilePath() string {
	if os.Geteuid() == 0 {
		return "/etc/radio/config.toml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "radio", "config.toml")
}

// Load resolves configuration in priority order: an explicit --config file if
// given, else the platform-default TOML path if it exists, else CLI flags
// layered over built-in defaults. The resolved value is always validated.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("radio", pflag.ContinueOnError)

	def := Default()
	configPath := fs.String("config", "", "path to a TOML config file; when set, all other flags are ignored")
	host := fs.String("host", def.Host, "address to bind to")
	port := fs.Int("port", def.Port, "port to bind to")
	root := fs.String("root", "./music", "root directory to scan for music")
	sweeperDir := fs.String("sweeper-dir", def.SweeperDir, "directory of sweeper jingles")
	include := fs.StringSlice("include", nil, "if set, only scan paths under the root with these prefixes")
	exclude := fs.StringSlice("exclude", nil, "paths under the root with these prefixes are skipped")
	shuffle := fs.Bool("shuffle", def.Shuffle, "advance the playlist by random choice instead of sequentially")
	transcodeAll := fs.Bool("transcode-all", def.TranscodeAll, "re-encode every track, even ones already in the target codec")
	bitrate := fs.String("bitrate", "128k", "transcode bitrate; plain value for bps, or suffixed with 'k' for kbps")
	sweeperChance := fs.Float64("sweeper-chance", def.SweeperChance, "probability in [0,1] of mixing a sweeper over a track")
	enableMediainfo := fs.Bool("enable-mediainfo", def.EnableMediainfo, "serve /mediainfo and /mediainfo/ws")
	mediainfoHistory := fs.Int("mediainfo-history", def.MediainfoHistory, "number of recently-played tracks to remember")
	enableWebUI := fs.Bool("enable-webui", def.EnableWebUI, "serve /webui")
	stationName := fs.String("station-name", def.StationName, "station name advertised in icy headers")
	webDir := fs.String("web-dir", def.WebDir, "directory of static web UI assets")
	maxClients := fs.Int("max-clients", def.MaxClients, "maximum simultaneous /stream listeners")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	path := *configPath
	if path == "" {
		if p := configFilePath(); fileExists(p) {
			path = p
		}
	}
	if path != "" {
		cfg, err := loadTOML(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file %q: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config %q: %w", path, err)
		}
		slog.Info("loaded config file", "path", path)
		return cfg, nil
	}

	bps, err := ParseBitrate(*bitrate)
	if err != nil {
		return nil, fmt.Errorf("invalid --bitrate %q: %w", *bitrate, err)
	}

	dir := DirectoryConfig{Root: *root, Mode: ModeExclude}
	switch {
	case len(*include) > 0:
		dir = DirectoryConfig{Root: *root, Mode: ModeInclude, Paths: *include}
	case len(*exclude) > 0:
		dir = DirectoryConfig{Root: *root, Mode: ModeExclude, Paths: *exclude}
	}

	cfg := &Config{
		Host:             *host,
		Port:             *port,
		Dirs:             []DirectoryConfig{dir},
		SweeperDir:       *sweeperDir,
		Shuffle:          *shuffle,
		TranscodeAll:     *transcodeAll,
		BitrateBps:       bps,
		SweeperChance:    *sweeperChance,
		EnableMediainfo:  *enableMediainfo,
		MediainfoHistory: *mediainfoHistory,
		EnableWebUI:      *enableWebUI,
		StationName:      *stationName,
		WebDir:           *webDir,
		MaxClients:       *maxClients,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadTOML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path in TOML form, creating parent directories as
// needed. Mirrors create_and_load's first-run behavior of persisting
// defaults.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configuration that is structurally unsafe to run with.
// Bad config is an AdminMisuse error: it is rejected at load, never at
// runtime.
func (c *Config) Validate() error {
	if len(c.Dirs) == 0 {
		return fmt.Errorf("at least one directory root is required")
	}
	for _, d := range c.Dirs {
		if d.Root == "" {
			return fmt.Errorf("directory root must not be empty")
		}
		if len(d.Paths) > 0 && d.Mode != ModeInclude && d.Mode != ModeExclude {
			return fmt.Errorf("directory %q: mode must be %q or %q", d.Root, ModeInclude, ModeExclude)
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.BitrateBps <= 0 {
		return fmt.Errorf("bitrate must be positive")
	}
	if c.SweeperChance < 0 || c.SweeperChance > 1 {
		return fmt.Errorf("sweeper_chance must be in [0, 1], got %v", c.SweeperChance)
	}
	if c.SweeperChance > 0 && c.SweeperDir == "" {
		return fmt.Errorf("sweeper_chance > 0 requires a sweeper_dir")
	}
	if c.MediainfoHistory <= 0 {
		return fmt.Errorf("mediainfo_history must be greater than 0")
	}
	return nil
}

// ParseBitrate parses a plain integer (bits/s) or an integer suffixed with
// 'k'/'K' (kbit/s).
func ParseBitrate(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty bitrate")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("bitrate must be positive")
		}
		return n, nil
	}
	last := s[len(s)-1]
	if last == 'k' || last == 'K' {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid bitrate %q: %w", s, err)
		}
		if n <= 0 {
			return 0, fmt.Errorf("bitrate must be positive")
		}
		return n * 1000, nil
	}
	return 0, fmt.Errorf("invalid bitrate %q: expected an integer or integer+k", s)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CheckExecutables probes PATH for the external tools the broadcast engine
// shells out to. Their absence is a user-visible warning, not a startup
// failure — it only becomes fatal once playback is actually attempted.
func CheckExecutables() (allPresent bool, found map[string]bool) {
	found = make(map[string]bool)
	allPresent = true
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		_, err := exec.LookPath(name)
		found[name] = err == nil
		if err != nil {
			allPresent = false
			slog.Warn("external tool not found on PATH", "tool", name)
		}
	}
	return allPresent, found
}
