// Package memory provides an in-memory blob store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wolfeidau/orgpurge/internal/blob"
)

var _ blob.Deleter = (*Store)(nil)

// Store implements blob.Deleter over in-memory buckets.
type Store struct {
	mu      sync.Mutex
	buckets map[string]map[string]struct{}
	calls   int
	hook    func(bucket string, keys []string) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{buckets: make(map[string]map[string]struct{})}
}

// Put adds keys to bucket.
func (s *Store) Put(bucket string, keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string]struct{})
		s.buckets[bucket] = b
	}
	for _, k := range keys {
		b[k] = struct{}{}
	}
}

// Keys returns the sorted keys present in bucket.
func (s *Store) Keys(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.buckets[bucket]))
	for k := range s.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns the number of BulkDelete calls made.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// OnDelete installs a hook run before every BulkDelete; a non nil error fails the call.
func (s *Store) OnDelete(hook func(bucket string, keys []string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// BulkDelete implements blob.Deleter. Absent keys count as deleted.
func (s *Store) BulkDelete(ctx context.Context, bucket string, keys []string) (*blob.DeleteResult, error) {
	s.mu.Lock()
	s.calls++
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(bucket, keys); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.buckets[bucket], k)
	}

	return &blob.DeleteResult{Deleted: len(keys)}, nil
}
