package audio

import (
	"sync"
	"time"
)

// Sink receives raw s16le PCM in playback order. Implementations must play
// writes sequentially; the Speaker below does, and tests substitute a fake.
type Sink interface {
	Write(pcm []byte) error
	Close() error
}

// Segment is one scheduled chunk of inbound model audio.
type Segment struct {
	ID       uint64
	StartAt  time.Time
	Duration time.Duration
}

// Scheduler serializes inbound audio segments for gapless playback.
//
// Each segment starts at max(cursor, now): a segment arriving while earlier
// audio is still playing queues immediately after it; a segment arriving
// into silence starts right away. Segments therefore never overlap and
// never leave an avoidable gap, regardless of network jitter.
//
// Finished segment handles are pruned lazily on access so the live-handle
// set cannot grow without bound.
type Scheduler struct {
	cfg  Config
	sink Sink

	mu      sync.Mutex
	now     func() time.Time
	cursor  time.Time
	live    map[uint64]Segment
	nextID  uint64
	stopped bool
}

// NewScheduler creates a scheduler over the given playback format. sink may
// be nil when the caller only needs scheduling bookkeeping.
func NewScheduler(cfg Config, sink Sink) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		sink: sink,
		now:  time.Now,
		live: make(map[uint64]Segment),
	}
}

// SetClock overrides the scheduler's clock for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
}

// Schedule queues one PCM segment and returns its handle. Write order into
// the sink matches schedule order, which matches arrival order.
func (s *Scheduler) Schedule(pcm []byte) (Segment, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Segment{}, nil
	}

	now := s.now()
	startAt := s.cursor
	if now.After(startAt) {
		startAt = now
	}
	dur := s.cfg.Duration(len(pcm))
	s.cursor = startAt.Add(dur)

	s.nextID++
	seg := Segment{ID: s.nextID, StartAt: startAt, Duration: dur}
	s.live[seg.ID] = seg
	s.pruneLocked(now)
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		if err := sink.Write(pcm); err != nil {
			return seg, err
		}
	}
	return seg, nil
}

// Live returns the handles of segments that have not finished playing.
func (s *Scheduler) Live() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	out := make([]Segment, 0, len(s.live))
	for _, seg := range s.live {
		out = append(out, seg)
	}
	return out
}

// pruneLocked drops handles whose playback window has passed.
func (s *Scheduler) pruneLocked(now time.Time) {
	for id, seg := range s.live {
		if !now.Before(seg.StartAt.Add(seg.Duration)) {
			delete(s.live, id)
		}
	}
}

// Stop discards every scheduled handle and resets the cursor. Safe to call
// repeatedly; a stopped scheduler silently drops further Schedule calls.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.live = make(map[uint64]Segment)
	s.cursor = time.Time{}
}
