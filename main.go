package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jiftoo/radio/config"
	"github.com/jiftoo/radio/internal/albumart"
	"github.com/jiftoo/radio/internal/broadcast"
	"github.com/jiftoo/radio/internal/bus"
	"github.com/jiftoo/radio/internal/cursor"
	"github.com/jiftoo/radio/internal/httpapi"
	"github.com/jiftoo/radio/internal/notify"
	"github.com/jiftoo/radio/internal/ring"
	"github.com/jiftoo/radio/internal/stats"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("configuration rejected", "error", err)
		os.Exit(1)
	}

	config.CheckExecutables()

	if err := run(cfg); err != nil {
		slog.Error("station exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	tracks, err := cursor.ScanPlaylist(cfg.Dirs)
	if err != nil {
		return fmt.Errorf("scanning playlist: %w", err)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("playlist is empty: no supported audio files found")
	}

	sweepers, err := cursor.ScanSweepers(cfg.SweeperDir)
	if err != nil {
		return fmt.Errorf("scanning sweepers: %w", err)
	}
	if cfg.SweeperChance > 0 && len(sweepers) == 0 {
		return fmt.Errorf("sweeper_chance is %v but no sweepers were found in %q", cfg.SweeperChance, cfg.SweeperDir)
	}

	cur, err := cursor.New(tracks, sweepers, cfg.Shuffle)
	if err != nil {
		return fmt.Errorf("building playlist cursor: %w", err)
	}

	slog.Info("starting station",
		"host", cfg.Host,
		"port", cfg.Port,
		"tracks", len(tracks),
		"sweepers", len(sweepers),
		"station_name", cfg.StationName,
	)

	b := bus.New(bus.DefaultQueueCapacity)
	metaRing := ring.New(cfg.MediainfoHistory)
	art := albumart.New()
	st := stats.New()
	notifier := notify.New()

	engine := broadcast.New(cur, b, metaRing, art, st, notifier, cfg)

	server := httpapi.New(httpapi.Config{
		Addr:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		StationName:     cfg.StationName,
		BitrateBps:      cfg.BitrateBps,
		MaxClients:      cfg.MaxClients,
		EnableMediainfo: cfg.EnableMediainfo,
		EnableWebUI:     cfg.EnableWebUI,
		WebDir:          cfg.WebDir,
	}, b, metaRing, art, st, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	go engine.Run(ctx)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("shutting down gracefully")
	time.Sleep(500 * time.Millisecond)
	slog.Info("station stopped")
	return nil
}
