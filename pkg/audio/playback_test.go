package audio

import (
	"sync"
	"testing"
	"time"
)

type fakeSink struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (f *fakeSink) Write(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), pcm...))
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func pcmOfDuration(cfg Config, d time.Duration) []byte {
	return make([]byte, cfg.BytesForDuration(d))
}

func TestSchedulerBackToBackSegments(t *testing.T) {
	cfg := PlaybackConfig()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base
	s := NewScheduler(cfg, nil)
	s.SetClock(func() time.Time { return now })

	// 1.0s and 0.5s segments arrive back to back while the clock has not
	// advanced past the first segment's end.
	first, err := s.Schedule(pcmOfDuration(cfg, time.Second))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	second, err := s.Schedule(pcmOfDuration(cfg, 500*time.Millisecond))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if !first.StartAt.Equal(base) {
		t.Errorf("first start = %v, want %v", first.StartAt, base)
	}
	wantSecond := base.Add(time.Second)
	if !second.StartAt.Equal(wantSecond) {
		t.Errorf("second start = %v, want %v (no overlap, no gap)", second.StartAt, wantSecond)
	}
	if second.StartAt.Before(first.StartAt.Add(first.Duration)) {
		t.Errorf("segments overlap")
	}
}

func TestSchedulerLateSegmentStartsImmediately(t *testing.T) {
	cfg := PlaybackConfig()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base
	s := NewScheduler(cfg, nil)
	s.SetClock(func() time.Time { return now })

	if _, err := s.Schedule(pcmOfDuration(cfg, 100*time.Millisecond)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// The next segment arrives well after the first finished: it must start
	// at the current clock, not at the stale cursor.
	now = base.Add(5 * time.Second)
	late, err := s.Schedule(pcmOfDuration(cfg, 100*time.Millisecond))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !late.StartAt.Equal(now) {
		t.Errorf("late start = %v, want %v", late.StartAt, now)
	}
}

func TestSchedulerMonotonicStarts(t *testing.T) {
	cfg := PlaybackConfig()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s := NewScheduler(cfg, nil)
	s.SetClock(func() time.Time { return now })

	var prev time.Time
	for i := 0; i < 10; i++ {
		seg, err := s.Schedule(pcmOfDuration(cfg, 50*time.Millisecond))
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		if seg.StartAt.Before(prev) {
			t.Fatalf("segment %d starts at %v, before previous %v", i, seg.StartAt, prev)
		}
		prev = seg.StartAt
		now = now.Add(20 * time.Millisecond)
	}
}

func TestSchedulerPrunesFinishedHandles(t *testing.T) {
	cfg := PlaybackConfig()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base
	s := NewScheduler(cfg, nil)
	s.SetClock(func() time.Time { return now })

	s.Schedule(pcmOfDuration(cfg, time.Second))
	s.Schedule(pcmOfDuration(cfg, time.Second))
	if got := len(s.Live()); got != 2 {
		t.Fatalf("live = %d, want 2", got)
	}

	now = base.Add(1500 * time.Millisecond)
	if got := len(s.Live()); got != 1 {
		t.Fatalf("live = %d after first finished, want 1", got)
	}

	now = base.Add(3 * time.Second)
	if got := len(s.Live()); got != 0 {
		t.Fatalf("live = %d after all finished, want 0", got)
	}
}

func TestSchedulerStopClearsHandlesAndDropsWrites(t *testing.T) {
	cfg := PlaybackConfig()
	sink := &fakeSink{}
	s := NewScheduler(cfg, sink)

	s.Schedule(pcmOfDuration(cfg, time.Second))
	s.Stop()
	if got := len(s.Live()); got != 0 {
		t.Fatalf("live = %d after stop, want 0", got)
	}

	seg, err := s.Schedule(pcmOfDuration(cfg, time.Second))
	if err != nil {
		t.Fatalf("Schedule after stop: %v", err)
	}
	if seg.ID != 0 {
		t.Fatalf("stopped scheduler issued handle %d", seg.ID)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.writes) != 1 {
		t.Fatalf("writes = %d, want 1 (post-stop write dropped)", len(sink.writes))
	}
}

func TestSchedulerWritesToSinkInOrder(t *testing.T) {
	cfg := PlaybackConfig()
	sink := &fakeSink{}
	s := NewScheduler(cfg, sink)

	a := []byte{1, 2}
	b := []byte{3, 4}
	s.Schedule(a)
	s.Schedule(b)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.writes) != 2 || sink.writes[0][0] != 1 || sink.writes[1][0] != 3 {
		t.Fatalf("writes = %v", sink.writes)
	}
}
