package cursor

import "testing"

func TestNewRejectsEmptyPlaylist(t *testing.T) {
	if _, err := New(nil, nil, false); err == nil {
		t.Fatal("expected error for empty playlist")
	}
}

func TestAdvanceSequentialWraps(t *testing.T) {
	c, err := New([]string{"a", "b", "c"}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Current(); got != "a" {
		t.Fatalf("expected initial track a, got %s", got)
	}
	seq := []string{"b", "c", "a", "b"}
	for i, want := range seq {
		if got := c.Advance(); got != want {
			t.Fatalf("advance %d: got %s, want %s", i, got, want)
		}
	}
}

func TestAdvanceSequentialRangeInvariant(t *testing.T) {
	c, err := New([]string{"a", "b", "c", "d"}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		c.Advance()
		idx := c.Index()
		if idx < 0 || idx >= c.Len() {
			t.Fatalf("index %d out of range [0, %d)", idx, c.Len())
		}
	}
}

func TestAdvanceShuffleNoImmediateRepeat(t *testing.T) {
	c, err := New([]string{"a", "b", "c", "d", "e"}, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	prev := c.Index()
	for i := 0; i < 500; i++ {
		c.Advance()
		next := c.Index()
		if next == prev {
			t.Fatalf("shuffle repeated index %d on consecutive advances", next)
		}
		prev = next
	}
}

func TestAdvanceShuffleSingleTrackAlwaysRepeats(t *testing.T) {
	c, err := New([]string{"only"}, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if got := c.Advance(); got != "only" {
			t.Fatalf("expected only track, got %s", got)
		}
	}
}

func TestRandomSweeperEmptyList(t *testing.T) {
	c, err := New([]string{"a"}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.RandomSweeper(); ok {
		t.Fatal("expected no sweeper from an empty list")
	}
}

func TestRandomSweeperPicksFromList(t *testing.T) {
	c, err := New([]string{"a"}, []string{"jingle1", "jingle2"}, false)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := c.RandomSweeper()
	if !ok {
		t.Fatal("expected a sweeper")
	}
	if s != "jingle1" && s != "jingle2" {
		t.Fatalf("unexpected sweeper %q", s)
	}
}
