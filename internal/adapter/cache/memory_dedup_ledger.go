package cache

import (
	"context"
	"sync"
	"time"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// MemoryDedupLedger serves single-process deployments without Redis. The map
// is pruned lazily on each insert once entries outlive the TTL; there is no
// background goroutine to leak.
type MemoryDedupLedger struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryDedupLedger(ttl time.Duration) *MemoryDedupLedger {
	return &MemoryDedupLedger{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

func (l *MemoryDedupLedger) FirstSeen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, at := range l.entries {
		if now.Sub(at) > l.ttl {
			delete(l.entries, k)
		}
	}

	if at, ok := l.entries[key]; ok && now.Sub(at) <= l.ttl {
		return false, nil
	}
	l.entries[key] = now
	return true, nil
}

var _ usecase.DedupLedger = (*MemoryDedupLedger)(nil)
