package sharded

import "sync"

// numSetShards is a power of 2 for fast bitwise mod.
const numSetShards = 64

type setShard struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// ShardedSet is a concurrent string set with per-shard locking. Under a
// worker pool all touching disjoint but interleaved keys (destination
// directory paths), sharding keeps lock contention negligible compared to a
// single RWMutex-guarded map.
type ShardedSet []*setShard

// NewShardedSet creates an empty set.
func NewShardedSet() *ShardedSet {
	s := make(ShardedSet, numSetShards)
	for i := 0; i < numSetShards; i++ {
		s[i] = &setShard{items: make(map[string]struct{})}
	}
	return &s
}

func (s *ShardedSet) getShard(key string) *setShard {
	return (*s)[getShardIndex(key, numSetShards)]
}

// Store adds a key to the set.
func (s *ShardedSet) Store(key string) {
	shard := s.getShard(key)
	shard.mu.Lock()
	shard.items[key] = struct{}{}
	shard.mu.Unlock()
}

// Has reports whether the key is in the set.
func (s *ShardedSet) Has(key string) bool {
	shard := s.getShard(key)
	shard.mu.RLock()
	_, ok := shard.items[key]
	shard.mu.RUnlock()
	return ok
}

// Len returns the total number of keys across all shards.
func (s *ShardedSet) Len() int {
	n := 0
	for _, shard := range *s {
		shard.mu.RLock()
		n += len(shard.items)
		shard.mu.RUnlock()
	}
	return n
}

// Keys returns a snapshot of all keys in the set, in no particular order.
func (s *ShardedSet) Keys() []string {
	keys := make([]string, 0, s.Len())
	for _, shard := range *s {
		shard.mu.RLock()
		for k := range shard.items {
			keys = append(keys, k)
		}
		shard.mu.RUnlock()
	}
	return keys
}
