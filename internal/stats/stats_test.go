package stats

import (
	"sync"
	"testing"
)

func TestListenerAccounting(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncListeners()
			s.DecListeners()
		}()
	}
	wg.Wait()
	if s.Listeners() != 0 {
		t.Fatalf("expected 0 listeners after matched inc/dec, got %d", s.Listeners())
	}
}

func TestMaxListenersTracksPeak(t *testing.T) {
	s := New()
	s.IncListeners()
	s.IncListeners()
	s.IncListeners()
	s.DecListeners()
	if s.MaxListeners() != 3 {
		t.Fatalf("expected peak 3, got %d", s.MaxListeners())
	}
	if s.Listeners() != 2 {
		t.Fatalf("expected current 2, got %d", s.Listeners())
	}
}

func TestByteAccounting(t *testing.T) {
	s := New()
	s.AddTranscoded(100, 3)
	s.AddCopied(50, 3)

	if s.BytesTranscoded() != 100 {
		t.Fatalf("expected 100 transcoded, got %d", s.BytesTranscoded())
	}
	if s.BytesCopied() != 50 {
		t.Fatalf("expected 50 copied, got %d", s.BytesCopied())
	}
	wantSent := int64(100*3 + 50*3)
	if s.BytesSent() != wantSent {
		t.Fatalf("expected %d bytes sent, got %d", wantSent, s.BytesSent())
	}
}

func TestBitrateDoesNotVaryWithOneValue(t *testing.T) {
	s := New()
	s.ObserveBitrate(128000)
	s.ObserveBitrate(128000)
	s.ObserveBitrate(128000)
	if s.BitrateVaries() {
		t.Fatal("expected no variance with a single repeated bitrate")
	}
	if s.LastBitrate() != 128000 {
		t.Fatalf("expected last bitrate 128000, got %d", s.LastBitrate())
	}
}

func TestBitrateVariesAfterDifferingValue(t *testing.T) {
	s := New()
	s.ObserveBitrate(128000)
	s.ObserveBitrate(320000)
	if !s.BitrateVaries() {
		t.Fatal("expected variance after a differing bitrate")
	}
}

func TestBitrateVariesStaysTrueOnceSet(t *testing.T) {
	s := New()
	s.ObserveBitrate(128000)
	s.ObserveBitrate(320000)
	s.ObserveBitrate(128000)
	if !s.BitrateVaries() {
		t.Fatal("expected variance to remain sticky even if values coincide again")
	}
}

func TestLastBitrateZeroBeforeFirstObservation(t *testing.T) {
	s := New()
	if s.LastBitrate() != 0 {
		t.Fatalf("expected 0 before any observation, got %d", s.LastBitrate())
	}
}
