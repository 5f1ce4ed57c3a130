// Package httpapi is the thin HTTP surface over the broadcast engine:
// endpoints that subscribe to the fan-out bus, read metadata, read album
// art, observe track-change events, and report statistics, plus static web
// assets.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jiftoo/radio/internal/albumart"
	"github.com/jiftoo/radio/internal/bus"
	"github.com/jiftoo/radio/internal/notify"
	"github.com/jiftoo/radio/internal/ring"
	"github.com/jiftoo/radio/internal/stats"
)

// Server is the gin-based HTTP surface.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	bus      *bus.Bus
	ring     *ring.Ring
	art      *albumart.Holder
	stats    *stats.Stats
	notifier *notify.Notifier

	stationName      string
	bitrateBps       int
	maxClients       int
	enableMediainfo  bool
	enableWebUI      bool

	upgrader websocket.Upgrader
}

// Config bundles the constructor inputs that aren't collaborator handles.
type Config struct {
	Addr            string
	StationName     string
	BitrateBps      int
	MaxClients      int
	EnableMediainfo bool
	EnableWebUI     bool
	WebDir          string
}

// New builds the HTTP surface. The returned Server is not yet listening;
// call Start.
func New(
	cfg Config,
	b *bus.Bus,
	r *ring.Ring,
	art *albumart.Holder,
	st *stats.Stats,
	n *notify.Notifier,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		engine:          engine,
		bus:             b,
		ring:            r,
		art:             art,
		stats:           st,
		notifier:        n,
		stationName:     cfg.StationName,
		bitrateBps:      cfg.BitrateBps,
		maxClients:      cfg.MaxClients,
		enableMediainfo: cfg.EnableMediainfo,
		enableWebUI:     cfg.EnableWebUI,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	s.routes(cfg.WebDir)

	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: engine,
	}
	return s
}

func (s *Server) routes(webDir string) {
	s.engine.GET("/stream", s.handleStream)

	if s.enableMediainfo {
		s.engine.GET("/mediainfo", s.handleMediainfo)
		s.engine.GET("/mediainfo/ws", s.handleMediainfoWS)
	}

	s.engine.GET("/album_art", s.handleAlbumArt)

	if s.enableWebUI {
		s.engine.GET("/webui", s.handleWebUI)
	}

	if webDir != "" {
		s.engine.NoRoute(spaHandler(webDir))
	}
}

// Handler returns the underlying http.Handler, primarily so tests can drive
// routes with httptest without binding a real socket.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving and blocks until ctx is cancelled, at which point it
// shuts the HTTP server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// bitrateHeader reports the effective bitrate shared by every track played
// so far this session (the configured bitrate before any track has been
// observed), else the literal "vary" once the engine has observed a second
// distinct effective bitrate (bit-copied source bitrate or re-encode target
// differing from track to track).
func (s *Server) bitrateHeader() string {
	if s.stats.BitrateVaries() {
		return "vary"
	}
	if last := s.stats.LastBitrate(); last > 0 {
		return strconv.Itoa(last)
	}
	return strconv.Itoa(s.bitrateBps)
}

func (s *Server) handleStream(c *gin.Context) {
	sub, ok := s.bus.SubscribeIfUnder(s.maxClients)
	if !ok {
		c.String(http.StatusServiceUnavailable, "too many listeners")
		return
	}

	s.stats.IncListeners()
	defer func() {
		s.bus.Unsubscribe(sub)
		s.stats.DecListeners()
	}()

	w := c.Writer
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("x-bitrate", s.bitrateHeader())
	w.Header().Set("icy-name", s.stationName)
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-sub.Messages():
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.Flush()
		}
	}
}

func (s *Server) handleMediainfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.ring.Snapshot())
}

func (s *Server) handleMediainfoWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()

	// Detect the client half-closing the connection.
	closeCh := make(chan struct{})
	go func() {
		defer close(closeCh)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		if err := s.notifier.Wait(ctx); err != nil {
			return
		}
		select {
		case <-closeCh:
			return
		default:
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte("next")); err != nil {
			return
		}
	}
}

func (s *Server) handleAlbumArt(c *gin.Context) {
	data, ok := s.art.Get()

	etag := `"no-image"`
	if ok {
		checksum, _ := s.art.Checksum()
		etag = fmt.Sprintf("%x", checksum)
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("ETag", etag)

	if match := c.GetHeader("If-None-Match"); match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) handleWebUI(c *gin.Context) {
	snap := s.stats.Snapshot()
	c.String(http.StatusOK,
		"time played: %s\nlisteners: %d\npeak listeners: %d\nbytes sent: %d\nbytes transcoded: %d\nbytes copied: %d\ntarget bandwidth: %d B/s\n",
		snap.TimePlayed.Round(time.Second),
		snap.Listeners,
		snap.MaxListeners,
		snap.BytesSent,
		snap.BytesTranscoded,
		snap.BytesCopied,
		snap.TargetBandwidth,
	)
}
