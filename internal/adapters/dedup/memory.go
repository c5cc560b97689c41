package dedup

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the DedupStore interface.
// Entries older than the window are swept periodically so memory stays
// bounded by the reports seen within one live window.
type MemoryStore struct {
	entries   map[string]time.Time
	mu        sync.Mutex
	logger    *zap.Logger
	window    time.Duration
	sweepFreq time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewMemoryStore creates a new in-memory dedup store
func NewMemoryStore(logger *zap.Logger, window, sweepFreq time.Duration) *MemoryStore {
	store := &MemoryStore{
		entries:   make(map[string]time.Time),
		logger:    logger,
		window:    window,
		sweepFreq: sweepFreq,
		stopCh:    make(chan struct{}),
	}

	// Start background sweep
	go store.startSweepTask()

	return store
}

// CheckAndRecord reports whether a submission for messageID is fresh,
// recording now as the acceptance time when it is. A duplicate inside the
// window leaves the recorded time untouched. The lookup and the record are
// one critical section, so concurrent submissions of the same id cannot
// both observe fresh.
func (s *MemoryStore) CheckAndRecord(messageID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.entries[messageID]; ok && now.Sub(last) < s.window {
		return false
	}

	s.entries[messageID] = now
	return true
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes entries whose window has elapsed
func (s *MemoryStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiredCount := 0
	for id, last := range s.entries {
		if now.Sub(last) >= s.window {
			delete(s.entries, id)
			expiredCount++
		}
	}

	if expiredCount > 0 && s.logger != nil {
		s.logger.Debug("Swept expired dedup entries", zap.Int("expired_count", expiredCount))
	}
}

// startSweepTask runs the periodic sweep until Stop is called
func (s *MemoryStore) startSweepTask() {
	ticker := time.NewTicker(s.sweepFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background sweep task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}
