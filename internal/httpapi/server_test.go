package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jiftoo/radio/internal/albumart"
	"github.com/jiftoo/radio/internal/bus"
	"github.com/jiftoo/radio/internal/notify"
	"github.com/jiftoo/radio/internal/ring"
	"github.com/jiftoo/radio/internal/stats"
)

func newTestServer() (*Server, *bus.Bus, *albumart.Holder, *stats.Stats) {
	b := bus.New(4)
	r := ring.New(4)
	art := albumart.New()
	st := stats.New()
	n := notify.New()
	s := New(Config{
		StationName:     "test radio",
		BitrateBps:      128000,
		MaxClients:      10,
		EnableMediainfo: true,
		EnableWebUI:     true,
	}, b, r, art, st, n)
	return s, b, art, st
}

func TestAlbumArtNoContentWhenEmpty(t *testing.T) {
	s, _, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/album_art", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") == "" {
		t.Fatal("expected an ETag even with no art")
	}
}

func TestAlbumArtETagRoundTrip(t *testing.T) {
	s, _, art, _ := newTestServer()
	art.Set([]byte{1, 2, 3})

	req := httptest.NewRequest(http.MethodGet, "/album_art", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/album_art", nil)
	req2.Header.Set("If-None-Match", etag)
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rec2.Code)
	}
}

func TestMediainfoReturnsRingSnapshot(t *testing.T) {
	s, _, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/mediainfo", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
}

func TestWebUIReturnsPlainText(t *testing.T) {
	s, _, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/webui", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected non-empty body")
	}
}

func TestStreamSetsBitrateHeader(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()

	// The handler blocks reading from the subscription channel until the
	// request context is done. Cancel it up front so ServeHTTP returns as
	// soon as the headers are written, without needing a real chunk.
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)

	s.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("x-bitrate") != "128000" {
		t.Fatalf("expected x-bitrate 128000, got %q", rec.Header().Get("x-bitrate"))
	}
}

func TestStreamSendsVaryOnceBitrateDiffers(t *testing.T) {
	s, _, _, st := newTestServer()
	st.ObserveBitrate(128000)
	st.ObserveBitrate(320000)

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)

	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("x-bitrate"); got != "vary" {
		t.Fatalf("expected x-bitrate vary, got %q", got)
	}
}

func TestStreamReportsSingleObservedBitrate(t *testing.T) {
	s, _, _, st := newTestServer()
	st.ObserveBitrate(256000)

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)

	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("x-bitrate"); got != "256000" {
		t.Fatalf("expected x-bitrate 256000, got %q", got)
	}
}
