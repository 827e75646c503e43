package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks queue performance metrics.
type Statistics struct {
	// Atomic counters for thread-safe updates
	writes  int64
	drained int64
	drops   int64

	// Protected by mutex
	mu           sync.RWMutex
	startTime    time.Time
	currentDepth int64
	peakDepth    int64
	currentBytes int64
	peakBytes    int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Write records one event accepted into the queue.
func (s *Statistics) Write() {
	atomic.AddInt64(&s.writes, 1)
}

// DrainN records n events removed by a drain.
func (s *Statistics) DrainN(n int64) {
	atomic.AddInt64(&s.drained, n)
}

// Drop records one event discarded by the queue.
func (s *Statistics) Drop() {
	atomic.AddInt64(&s.drops, 1)
}

// DropN records n events discarded by the queue.
func (s *Statistics) DropN(n int64) {
	atomic.AddInt64(&s.drops, n)
}

// UpdateDepth updates the current queue depth and byte size.
func (s *Statistics) UpdateDepth(depth, bytes int64) {
	s.mu.Lock()
	s.currentDepth = depth
	if depth > s.peakDepth {
		s.peakDepth = depth
	}
	s.currentBytes = bytes
	if bytes > s.peakBytes {
		s.peakBytes = bytes
	}
	s.mu.Unlock()
}

// Writes returns the total number of events accepted.
func (s *Statistics) Writes() int64 {
	return atomic.LoadInt64(&s.writes)
}

// Drained returns the total number of events removed by drains.
func (s *Statistics) Drained() int64 {
	return atomic.LoadInt64(&s.drained)
}

// Drops returns the total number of discarded events.
func (s *Statistics) Drops() int64 {
	return atomic.LoadInt64(&s.drops)
}

// CurrentDepth returns the current number of queued events.
func (s *Statistics) CurrentDepth() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentDepth
}

// PeakDepth returns the largest number of events the queue has held.
func (s *Statistics) PeakDepth() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakDepth
}

// CurrentBytes returns the serialized size of all queued events.
func (s *Statistics) CurrentBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentBytes
}

// PeakBytes returns the largest serialized size the queue has held.
func (s *Statistics) PeakBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakBytes
}

// Throughput returns the average number of writes per second.
func (s *Statistics) Throughput() float64 {
	s.mu.RLock()
	elapsed := time.Since(s.startTime)
	s.mu.RUnlock()

	if elapsed == 0 {
		return 0.0
	}

	return float64(s.Writes()) / elapsed.Seconds()
}

// DrainThroughput returns the average number of drained events per second.
func (s *Statistics) DrainThroughput() float64 {
	s.mu.RLock()
	elapsed := time.Since(s.startTime)
	s.mu.RUnlock()

	if elapsed == 0 {
		return 0.0
	}

	return float64(s.Drained()) / elapsed.Seconds()
}

// DropRate returns the fraction of writes that resulted in drops (0.0 to 1.0).
func (s *Statistics) DropRate() float64 {
	writes := s.Writes()
	drops := s.Drops()

	if writes == 0 {
		return 0.0
	}

	return float64(drops) / float64(writes)
}

// Utilization returns the current queue utilization as a fraction (0.0 to 1.0).
func (s *Statistics) Utilization(capacity int64) float64 {
	if capacity == 0 {
		return 0.0
	}

	return float64(s.CurrentDepth()) / float64(capacity)
}

// Uptime returns how long the queue has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Reset resets all statistics to zero.
func (s *Statistics) Reset() {
	atomic.StoreInt64(&s.writes, 0)
	atomic.StoreInt64(&s.drained, 0)
	atomic.StoreInt64(&s.drops, 0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.currentDepth = 0
	s.peakDepth = 0
	s.currentBytes = 0
	s.peakBytes = 0
	s.mu.Unlock()
}

// StatsSummary is a snapshot of all statistics.
type StatsSummary struct {
	Writes          int64         `json:"writes"`
	Drained         int64         `json:"drained"`
	Drops           int64         `json:"drops"`
	CurrentDepth    int64         `json:"current_depth"`
	PeakDepth       int64         `json:"peak_depth"`
	CurrentBytes    int64         `json:"current_bytes"`
	PeakBytes       int64         `json:"peak_bytes"`
	Throughput      float64       `json:"throughput"`
	DrainThroughput float64       `json:"drain_throughput"`
	DropRate        float64       `json:"drop_rate"`
	Uptime          time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Writes:          s.Writes(),
		Drained:         s.Drained(),
		Drops:           s.Drops(),
		CurrentDepth:    s.CurrentDepth(),
		PeakDepth:       s.PeakDepth(),
		CurrentBytes:    s.CurrentBytes(),
		PeakBytes:       s.PeakBytes(),
		Throughput:      s.Throughput(),
		DrainThroughput: s.DrainThroughput(),
		DropRate:        s.DropRate(),
		Uptime:          s.Uptime(),
	}
}
