package tools

import (
	"context"
	"sync"
)

// IdemStore deduplicates booking-class executions by key. The first call
// for a key runs; concurrent duplicates wait for it and share its output.
// Successful results stick for the store's lifetime (one call), failed
// attempts are forgotten so the key stays retryable.
type IdemStore struct {
	mu      sync.Mutex
	entries map[string]*idemEntry
}

type idemEntry struct {
	done   chan struct{}
	output map[string]any
	err    error
}

// NewIdemStore returns an empty store.
func NewIdemStore() *IdemStore {
	return &IdemStore{entries: make(map[string]*idemEntry)}
}

// Do executes exec at most once per key. A caller that loses the insert
// race waits for the winner and receives its result; replayed reports
// whether the result came from a completed earlier call.
func (s *IdemStore) Do(ctx context.Context, key string, exec func(ctx context.Context) (map[string]any, error)) (output map[string]any, replayed bool, err error) {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &idemEntry{done: make(chan struct{})}
			s.entries[key] = e
			s.mu.Unlock()

			e.output, e.err = exec(ctx)
			if e.err != nil {
				s.mu.Lock()
				delete(s.entries, key)
				s.mu.Unlock()
			}
			close(e.done)
			return e.output, false, e.err
		}
		s.mu.Unlock()

		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		if e.err == nil {
			return e.output, true, nil
		}
		// The execution this caller waited on failed and was evicted.
		// Run our own attempt on the next pass.
	}
}

// Completed reports whether the key already holds a successful result.
func (s *IdemStore) Completed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	select {
	case <-e.done:
		return e.err == nil
	default:
		return false
	}
}
