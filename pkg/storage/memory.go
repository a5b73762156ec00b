package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore keeps interactions in process memory. A background sweep runs
// every CleanupInterval and drops the whole log of a callback id as soon as
// any of its records is older than InteractionTTL.
type MemoryStore struct {
	entries  sync.Map // cbid -> *memoryEntry
	ttl      time.Duration
	interval time.Duration
	clock    clockwork.Clock

	cancel context.CancelFunc
	done   chan struct{}
}

type memoryEntry struct {
	mu           sync.Mutex
	interactions []Interaction
	// removed is set once the entry has been unlinked from the map; writers
	// holding a stale pointer must retry with a fresh entry.
	removed bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemory(cfg MemoryConfig, clock clockwork.Clock) (*MemoryStore, error) {
	if cfg.InteractionTTL <= 0 {
		return nil, errors.New("storage: interaction ttl must be positive")
	}
	if cfg.CleanupInterval <= 0 {
		return nil, errors.New("storage: cleanup interval must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		ttl:      cfg.InteractionTTL,
		interval: cfg.CleanupInterval,
		clock:    clock,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.cleanupLoop(ctx)
	return s, nil
}

func (s *MemoryStore) Add(_ context.Context, cbid string, kind Kind) error {
	interaction, err := newInteraction(kind, s.clock.Now())
	if err != nil {
		return err
	}

	for {
		v, _ := s.entries.LoadOrStore(cbid, new(memoryEntry))
		e := v.(*memoryEntry)

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.interactions = append(e.interactions, interaction)
		e.mu.Unlock()
		return nil
	}
}

func (s *MemoryStore) Get(_ context.Context, cbid string) ([]Interaction, error) {
	v, ok := s.entries.Load(cbid)
	if !ok {
		return []Interaction{}, nil
	}
	e := v.(*memoryEntry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return []Interaction{}, nil
	}
	out := make([]Interaction, len(e.interactions))
	copy(out, e.interactions)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, cbid string) error {
	v, ok := s.entries.LoadAndDelete(cbid)
	if !ok {
		return nil
	}
	e := v.(*memoryEntry)
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	return nil
}

// Close stops the background sweep and waits for it to exit.
func (s *MemoryStore) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *MemoryStore) cleanupLoop(ctx context.Context) {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.cleanup()
		}
	}
}

// cleanup evicts expired entries one key at a time, so writers on other keys
// are never blocked by the scan.
func (s *MemoryStore) cleanup() (evicted int) {
	now := s.clock.Now()
	s.entries.Range(func(k, v any) bool {
		e := v.(*memoryEntry)

		e.mu.Lock()
		if !e.removed && s.isExpired(e.interactions, now) {
			e.removed = true
			s.entries.CompareAndDelete(k, e)
			evicted++
		}
		e.mu.Unlock()
		return true
	})
	return evicted
}

func (s *MemoryStore) isExpired(interactions []Interaction, now time.Time) bool {
	for _, i := range interactions {
		if now.After(i.RecordTime.Add(s.ttl)) {
			return true
		}
	}
	return false
}
